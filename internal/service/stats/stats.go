package stats

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	serviceName = "stats"
)

type StatsRepository interface {
	IncFetchCounter(ctx context.Context, jobID, name string) (int64, error)
	GetJobCounters(ctx context.Context, jobID string) (map[string]int64, error)
}

type statsService struct {
	repo StatsRepository
	log  *slog.Logger
}

func NewStatsService(repo StatsRepository, log *slog.Logger) *statsService {
	return &statsService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (s *statsService) CountFetch(ctx context.Context, jobID, name string) (int64, error) {
	counter, err := s.repo.IncFetchCounter(ctx, jobID, name)
	if err != nil {
		s.log.Error("Cannot count fetch", slog.String("job_id", jobID), slog.String("name", name), slog.Any("error", err))

		return 0, fmt.Errorf("cannot count fetch of %s/%s: %w", jobID, name, err)
	}

	return counter, nil
}

func (s *statsService) GetJobCounters(ctx context.Context, jobID string) (map[string]int64, error) {
	counters, err := s.repo.GetJobCounters(ctx, jobID)
	if err != nil {
		s.log.Error("Cannot get job counters", slog.String("job_id", jobID), slog.Any("error", err))

		return nil, fmt.Errorf("cannot get job %s counters: %w", jobID, err)
	}

	return counters, nil
}
