package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	_ "embed"

	"chaptercut/internal/common"
	"chaptercut/internal/entity"

	"github.com/spf13/afero"
)

var (
	idRegexp = regexp.MustCompile(`^[a-f\d]{8}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{4}-[a-f\d]{12}$`)

	//go:embed templates/page.html
	pageTemplateContent string

	pageTemplate = template.Must(template.New("page").Parse(pageTemplateContent))
)

type ExtractService interface {
	Extract(ctx context.Context, rawURL string) (*entity.ExtractionResult, error)
}

type StatsService interface {
	CountFetch(ctx context.Context, jobID, name string) (int64, error)
	GetJobCounters(ctx context.Context, jobID string) (map[string]int64, error)
}

type JobStore interface {
	Assemble(id string) (*entity.ExtractionResult, error)
}

type extractRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NewExtractHandler(srv ExtractService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ExtractHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})

			return
		}

		result, err := srv.Extract(r.Context(), req.URL)
		if err != nil {
			var dlErr *common.DownloadError

			switch {
			case errors.Is(err, common.ErrEmptyURL):
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
			case errors.As(err, &dlErr):
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Download failed", Details: dlErr.Output})
			default:
				log.Error("Extraction failed", slog.Any("error", err))
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Extraction failed", Details: err.Error()})
			}

			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

/*
NewFileHandler serves produced files directly from the work dir, one path
segment for the job id and one for the file name. There is no access control,
anyone who knows a job id and file name can fetch the file. When a stats
service is provided every completed response increments the fetch counter.
*/
func NewFileHandler(fs afero.Fs, workDir string, srv StatsService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "FileHandler"))
	httpFs := afero.NewHttpFs(fs)

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		name := r.PathValue("filename")
		if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		file, err := httpFs.Open(filepath.Join(workDir, id, name))
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)

			return
		}
		defer file.Close()

		stat, err := file.Stat()
		if err != nil || stat.IsDir() {
			http.Error(w, "File not found", http.StatusNotFound)

			return
		}

		http.ServeContent(w, r, name, stat.ModTime(), file)

		if srv != nil {
			counter, err := srv.CountFetch(r.Context(), id, name)
			if err == nil {
				log.Info("File fetched", slog.String("job_id", id), slog.String("name", name), slog.Int64("counter", counter))
			}
		}
	}
}

func NewStatsHandler(srv StatsService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		counters, err := srv.GetJobCounters(r.Context(), id)
		if err != nil {
			http.Error(w, "Cannot get counters", http.StatusInternalServerError)

			return
		}

		writeJSON(w, http.StatusOK, counters)
	}
}

type pageContext struct {
	Result *entity.ExtractionResult
}

// NewPageHandler renders an HTML page listing a job's chapter files with
// download links. Fetch counters are filled in client side from the stats
// endpoint.
func NewPageHandler(store JobStore, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PageHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		result, err := store.Assemble(id)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrJobNotFoundError):
				http.Error(w, "Job not found", http.StatusNotFound)
			default:
				log.Error("Cannot build page", slog.String("job_id", id), slog.Any("error", err))
				http.Error(w, "Cannot build page", http.StatusInternalServerError)
			}

			return
		}

		buf := bytes.Buffer{}
		if err := pageTemplate.Execute(&buf, &pageContext{Result: result}); err != nil {
			log.Error("Cannot render page", slog.String("job_id", id), slog.Any("error", err))
			http.Error(w, "Cannot build page", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
