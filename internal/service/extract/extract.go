package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chaptercut/internal/common"
	"chaptercut/internal/entity"

	"github.com/google/uuid"
)

const (
	serviceName = "extract"
)

type Downloader interface {
	Download(ctx context.Context, rawURL, destDir string) error
}

type JobStore interface {
	CreateJobDir(id string) (string, error)
	Assemble(id string) (*entity.ExtractionResult, error)
}

type Pruner interface {
	Prune(ctx context.Context) ([]string, error)
}

type StatsRepository interface {
	DropJobCounters(ctx context.Context, jobIDs []string) error
}

type extractService struct {
	dl     Downloader
	store  JobStore
	pruner Pruner
	stats  StatsRepository // may be nil, counters are optional
	log    *slog.Logger
}

func NewExtractService(dl Downloader, store JobStore, pruner Pruner, stats StatsRepository, log *slog.Logger) *extractService {
	return &extractService{
		dl:     dl,
		store:  store,
		pruner: pruner,
		stats:  stats,
		log:    log.With(slog.String("service", serviceName)),
	}
}

/*
Extract runs one job end to end: allocate an id, create the job folder, run
the downloader, assemble the result from the folder contents and prune old
job folders. The downloader call blocks until the external process exits.
On downloader failure the job folder is left on disk and no pruning happens.
*/
func (s *extractService) Extract(ctx context.Context, rawURL string) (*entity.ExtractionResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, common.ErrEmptyURL
	}

	id := uuid.NewString()
	log := s.log.With(slog.String("job_id", id))

	jobDir, err := s.store.CreateJobDir(id)
	if err != nil {
		log.Error("Cannot create job dir", slog.Any("error", err))

		return nil, fmt.Errorf("cannot create job dir: %w", err)
	}

	log.Info("Job started", slog.String("url", rawURL))

	if err := s.dl.Download(ctx, rawURL, jobDir); err != nil {
		// the folder stays behind until a later retention pass
		return nil, err
	}

	result, err := s.store.Assemble(id)
	if err != nil {
		log.Error("Cannot assemble result", slog.Any("error", err))

		return nil, fmt.Errorf("cannot assemble result: %w", err)
	}

	log.Info("Job done", slog.String("title", result.Title), slog.Int("chapters", len(result.Chapters)))

	s.cleanup(ctx)

	return result, nil
}

// Sweep runs a retention pass outside the request path.
func (s *extractService) Sweep(ctx context.Context) {
	s.cleanup(ctx)
}

func (s *extractService) cleanup(ctx context.Context) {
	deleted, err := s.pruner.Prune(ctx)
	if err != nil {
		if errors.Is(err, common.ErrRetentionProcessHasAlreadyStarted) {
			s.log.Info("Skip retention pass, another one is running")

			return
		}

		s.log.Error("Retention pass failed", slog.Any("error", err))

		return
	}

	if s.stats == nil || len(deleted) < 1 {
		return
	}

	if err := s.stats.DropJobCounters(ctx, deleted); err != nil {
		s.log.Error("Cannot drop counters of reclaimed jobs", slog.Any("error", err))
	}
}
