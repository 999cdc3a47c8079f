package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chaptercut/internal/common"
	"chaptercut/internal/entity"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testJobID = "123e4567-e89b-12d3-a456-426614174000"

type fakeExtractService struct {
	result *entity.ExtractionResult
	err    error
	gotURL string
}

func (s *fakeExtractService) Extract(ctx context.Context, rawURL string) (*entity.ExtractionResult, error) {
	s.gotURL = rawURL

	if s.err != nil {
		return nil, s.err
	}

	return s.result, nil
}

type fakeStatsService struct {
	counters map[string]int64
	err      error
	counted  []string
}

func (s *fakeStatsService) CountFetch(ctx context.Context, jobID, name string) (int64, error) {
	s.counted = append(s.counted, jobID+"/"+name)

	return 1, s.err
}

func (s *fakeStatsService) GetJobCounters(ctx context.Context, jobID string) (map[string]int64, error) {
	if s.err != nil {
		return nil, s.err
	}

	return s.counters, nil
}

type fakeJobStore struct {
	result *entity.ExtractionResult
	err    error
}

func (s *fakeJobStore) Assemble(id string) (*entity.ExtractionResult, error) {
	if s.err != nil {
		return nil, s.err
	}

	result := *s.result
	result.ID = id

	return &result, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestExtractHandler(t *testing.T) {
	testCases := []struct {
		name           string
		body           string
		srv            *fakeExtractService
		expectedStatus int
		expectedBody   map[string]any
	}{
		{
			name:           "missing url field",
			body:           `{}`,
			srv:            &fakeExtractService{err: common.ErrEmptyURL},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   map[string]any{"error": "url is required"},
		},
		{
			name:           "invalid body",
			body:           `{not json`,
			srv:            &fakeExtractService{},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   map[string]any{"error": "url is required"},
		},
		{
			name: "download failure",
			body: `{"url":"https://example.com/video"}`,
			srv: &fakeExtractService{
				err: &common.DownloadError{Err: errors.New("exit status 1"), Output: "network error"},
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   map[string]any{"error": "Download failed", "details": "network error"},
		},
		{
			name: "success",
			body: `{"url":"https://example.com/video"}`,
			srv: &fakeExtractService{
				result: &entity.ExtractionResult{
					ID:        testJobID,
					Title:     "Song",
					Thumbnail: "http://localhost:8000/temp/" + testJobID + "/thumb.jpg",
					Chapters: []entity.Chapter{
						{Name: "Song [0][Intro].mp3", URL: "http://localhost:8000/temp/" + testJobID + "/Song%20%5B0%5D%5BIntro%5D.mp3"},
					},
				},
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewExtractHandler(tc.srv, newTestLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler(rec, req)

			require.Equal(t, tc.expectedStatus, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tc.expectedBody != nil {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				require.Equal(t, tc.expectedBody, body)
			}
		})
	}
}

func TestExtractHandlerSuccessBody(t *testing.T) {
	srv := &fakeExtractService{
		result: &entity.ExtractionResult{
			ID:    testJobID,
			Title: "Song",
			Chapters: []entity.Chapter{
				{Name: "Song [0][Intro].mp3", URL: "u0"},
				{Name: "Song [1][Verse].mp3", URL: "u1"},
			},
		},
	}
	handler := NewExtractHandler(srv, newTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"url":"https://example.com/video"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://example.com/video", srv.gotURL)

	var result entity.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, testJobID, result.ID)
	require.Equal(t, "Song", result.Title)
	require.Empty(t, result.Thumbnail)
	require.Len(t, result.Chapters, 2)
	require.Equal(t, "Song [0][Intro].mp3", result.Chapters[0].Name)
}

func newFileMux(fs afero.Fs, srv StatsService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /temp/{id}/{filename}", NewFileHandler(fs, "temp", srv, newTestLogger()))

	return mux
}

func TestFileHandler(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("temp", testJobID, "chapter.mp3")
	require.NoError(t, afero.WriteFile(fs, path, []byte("audio content"), os.ModePerm))

	stats := &fakeStatsService{}
	mux := newFileMux(fs, stats)

	req := httptest.NewRequest(http.MethodGet, "/temp/"+testJobID+"/chapter.mp3", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio content", rec.Body.String())
	require.Equal(t, []string{testJobID + "/chapter.mp3"}, stats.counted)
}

func TestFileHandlerNotFound(t *testing.T) {
	mux := newFileMux(afero.NewMemMapFs(), nil)

	req := httptest.NewRequest(http.MethodGet, "/temp/"+testJobID+"/missing.mp3", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileHandlerBadID(t *testing.T) {
	mux := newFileMux(afero.NewMemMapFs(), nil)

	req := httptest.NewRequest(http.MethodGet, "/temp/not-a-uuid/chapter.mp3", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileHandlerWithoutStats(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("temp", testJobID, "chapter.mp3")
	require.NoError(t, afero.WriteFile(fs, path, []byte("audio content"), os.ModePerm))

	mux := newFileMux(fs, nil)

	req := httptest.NewRequest(http.MethodGet, "/temp/"+testJobID+"/chapter.mp3", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsHandler(t *testing.T) {
	srv := &fakeStatsService{
		counters: map[string]int64{"Song [0][Intro].mp3": 3},
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/jobs/{id}/stats", NewStatsHandler(srv, newTestLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+testJobID+"/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var counters map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counters))
	require.Equal(t, srv.counters, counters)
}

func TestPageHandler(t *testing.T) {
	store := &fakeJobStore{
		result: &entity.ExtractionResult{
			Title: "Song",
			Chapters: []entity.Chapter{
				{Name: "Song [0][Intro].mp3", URL: "http://localhost:8000/temp/" + testJobID + "/Song%20%5B0%5D%5BIntro%5D.mp3"},
			},
		},
	}

	mux := http.NewServeMux()
	mux.Handle("GET /jobs/{id}/{$}", NewPageHandler(store, newTestLogger()))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID+"/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	require.Contains(t, body, "Song")
	require.Contains(t, body, "Song [0][Intro].mp3")
}

func TestPageHandlerNotFound(t *testing.T) {
	store := &fakeJobStore{err: common.ErrJobNotFoundError}

	mux := http.NewServeMux()
	mux.Handle("GET /jobs/{id}/{$}", NewPageHandler(store, newTestLogger()))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID+"/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
