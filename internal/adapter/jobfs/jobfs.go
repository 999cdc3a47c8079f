package jobfs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"chaptercut/internal/common"
	"chaptercut/internal/config"
	"chaptercut/internal/entity"

	"github.com/spf13/afero"
)

const (
	// DefaultTitle is used when the metadata document is missing, unreadable
	// or has no title field.
	DefaultTitle = "Untitled"

	audioSuffix    = ".mp3"
	metadataSuffix = ".info.json"

	dirPerm = 0o755
)

var thumbnailSuffixes = []string{".jpg", ".webp"}

type metadata struct {
	Title string `json:"title"`
}

type jobFS struct {
	fs      afero.Fs
	workDir string
	baseURL string

	log *slog.Logger
}

func NewJobFS(cfg *config.StoreConfig, log *slog.Logger) *jobFS {
	return NewJobFSWithFS(afero.NewOsFs(), cfg, log)
}

func NewJobFSWithFS(fs afero.Fs, cfg *config.StoreConfig, log *slog.Logger) *jobFS {
	return &jobFS{
		fs:      fs,
		workDir: cfg.WorkDir,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		log:     log.With(slog.String("item", "JobFS")),
	}
}

// Init creates the work dir if it does not exist yet.
func (a *jobFS) Init() error {
	if err := a.fs.MkdirAll(a.workDir, dirPerm); err != nil {
		return fmt.Errorf("cannot create work dir %s: %w", a.workDir, err)
	}

	return nil
}

// CreateJobDir creates an empty folder for a new job and returns its path.
func (a *jobFS) CreateJobDir(id string) (string, error) {
	jobDir := filepath.Join(a.workDir, id)

	if err := a.fs.MkdirAll(jobDir, dirPerm); err != nil {
		return "", fmt.Errorf("cannot create job dir %s: %w", jobDir, err)
	}

	return jobDir, nil
}

/*
Assemble lists the job folder (not recursive) and classifies every entry by
suffix: audio files become chapter entries in listing order, the first image
becomes the thumbnail, the metadata document provides the title. A missing or
malformed metadata document is tolerated, the title then falls back to
DefaultTitle.
*/
func (a *jobFS) Assemble(id string) (*entity.ExtractionResult, error) {
	jobDir := filepath.Join(a.workDir, id)

	entries, err := afero.ReadDir(a.fs, jobDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrJobNotFoundError
		}

		return nil, fmt.Errorf("cannot read job dir %s: %w", jobDir, err)
	}

	result := &entity.ExtractionResult{
		ID:       id,
		Title:    DefaultTitle,
		Chapters: []entity.Chapter{},
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		switch {
		case strings.HasSuffix(name, audioSuffix):
			result.Chapters = append(result.Chapters, entity.Chapter{
				Name: name,
				URL:  a.fileURL(id, name),
			})
		case strings.HasSuffix(name, metadataSuffix):
			result.Title = a.readTitle(filepath.Join(jobDir, name))
		case isThumbnail(name):
			if result.Thumbnail == "" {
				result.Thumbnail = a.fileURL(id, name)
			}
		}
	}

	return result, nil
}

// Exists reports whether a folder for the given job id is on disk.
func (a *jobFS) Exists(id string) bool {
	ok, err := afero.DirExists(a.fs, filepath.Join(a.workDir, id))

	return err == nil && ok
}

func (a *jobFS) readTitle(path string) string {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		a.log.Error("Cannot read metadata", slog.String("path", path), slog.Any("error", err))

		return DefaultTitle
	}

	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		a.log.Error("Cannot parse metadata", slog.String("path", path), slog.Any("error", err))

		return DefaultTitle
	}

	if meta.Title == "" {
		return DefaultTitle
	}

	return meta.Title
}

func (a *jobFS) fileURL(id, name string) string {
	return fmt.Sprintf("%s/temp/%s/%s", a.baseURL, id, url.PathEscape(name))
}

func isThumbnail(name string) bool {
	for _, suffix := range thumbnailSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}
