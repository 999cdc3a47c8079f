package retention

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"chaptercut/internal/common"
	"chaptercut/internal/config"

	"github.com/spf13/afero"
)

type jobDir struct {
	name    string
	modTime time.Time
}

type pruner struct {
	running   atomic.Bool
	fs        afero.Fs
	workDir   string
	keepCount int
	log       *slog.Logger
}

func NewPruner(cfg *config.RetentionConfig, log *slog.Logger) *pruner {
	return NewPrunerWithFS(afero.NewOsFs(), cfg, log)
}

func NewPrunerWithFS(fs afero.Fs, cfg *config.RetentionConfig, log *slog.Logger) *pruner {
	return &pruner{
		fs:        fs,
		workDir:   cfg.WorkDir,
		keepCount: cfg.KeepCount,
		log:       log.With(slog.String("item", "Pruner")),
	}
}

/*
Prune lists the immediate subfolders of the work dir, keeps the keepCount
most recently modified ones and deletes the rest recursively. Folders with
equal mtimes are ordered by name descending so the outcome does not depend
on sort stability. Returns the ids of the deleted folders.

Only one pass runs at a time, a concurrent call gets
common.ErrRetentionProcessHasAlreadyStarted. The scan is not atomic with
respect to concurrent job creation.
*/
func (p *pruner) Prune(ctx context.Context) ([]string, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, common.ErrRetentionProcessHasAlreadyStarted
	}
	defer p.running.Store(false)

	entries, err := afero.ReadDir(p.fs, p.workDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read work dir %s: %w", p.workDir, err)
	}

	var dirs []jobDir
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, jobDir{name: entry.Name(), modTime: entry.ModTime()})
		}
	}

	if len(dirs) <= p.keepCount {
		return nil, nil
	}

	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].modTime.Equal(dirs[j].modTime) {
			return dirs[i].name > dirs[j].name
		}

		return dirs[i].modTime.After(dirs[j].modTime)
	})

	var deleted []string
	for _, dir := range dirs[p.keepCount:] {
		select {
		case <-ctx.Done():
			return deleted, ctx.Err()
		default:
		}

		path := filepath.Join(p.workDir, dir.name)
		if err := p.fs.RemoveAll(path); err != nil {
			p.log.Error("Cannot remove job dir", slog.String("path", path), slog.Any("error", err))

			continue
		}

		p.log.Info("Removed job dir", slog.String("path", path))
		deleted = append(deleted, dir.name)
	}

	return deleted, nil
}
