package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"chaptercut/internal/adapter/jobfs"
	"chaptercut/internal/adapter/ytdlp"
	"chaptercut/internal/config"
	httphandler "chaptercut/internal/handler/http"
	statsrepo "chaptercut/internal/repository/stats"
	srvextract "chaptercut/internal/service/extract"
	srvstats "chaptercut/internal/service/stats"
	"chaptercut/internal/storage/retention"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	sweepTimeout    = time.Minute
	shutdownTimeout = 5 * time.Second
)

type sweeper interface {
	Sweep(ctx context.Context)
}

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	sweeper sweeper
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	// Fetch counters are optional, the service runs without redis.
	var (
		extractStats srvextract.StatsRepository
		statsSrv     httphandler.StatsService
	)
	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			panic(err)
		}

		repo := statsrepo.NewStatsRepository(rdb, log)
		extractStats = repo
		statsSrv = srvstats.NewStatsService(repo, log)
	}

	fs := afero.NewOsFs()

	store := jobfs.NewJobFSWithFS(fs, a.cfg.StoreConfig(), log)
	if err := store.Init(); err != nil {
		panic(err)
	}

	dl, err := ytdlp.New(&a.cfg.Extractor, log)
	if err != nil {
		panic(err)
	}

	pruner := retention.NewPrunerWithFS(fs, a.cfg.RetentionConfig(), log)

	extractSrv := srvextract.NewExtractService(dl, store, pruner, extractStats, log)
	a.sweeper = extractSrv

	mux := http.NewServeMux()
	mux.Handle("POST /api/extract", httphandler.NewExtractHandler(extractSrv, log))
	mux.Handle("GET /temp/{id}/{filename}", httphandler.NewFileHandler(fs, a.cfg.WorkDir, statsSrv, log))
	mux.Handle("GET /jobs/{id}/{$}", httphandler.NewPageHandler(store, log))
	if statsSrv != nil {
		mux.Handle("GET /api/jobs/{id}/stats", httphandler.NewStatsHandler(statsSrv, log))
	}

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// Sweep runs a retention pass on demand, outside the request path.
func (a *App) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	a.sweeper.Sweep(ctx)
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.srv.Shutdown(ctx)
}
