package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	KeyFetchStats = "fs" // HASH per job. fs:{job_id} file_name -> counter
	KeySeparator  = ":"
)

type statsRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewStatsRepository(cl *redis.Client, log *slog.Logger) *statsRepository {
	return &statsRepository{
		cl:  cl,
		log: log.With(slog.String("item", "StatsRepository")),
	}
}

func (r *statsRepository) IncFetchCounter(ctx context.Context, jobID, name string) (int64, error) {
	counter, err := r.cl.HIncrBy(ctx, getKey(KeyFetchStats, jobID), name, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot increment counter for %s/%s: %w", jobID, name, err)
	}

	return counter, nil
}

func (r *statsRepository) GetJobCounters(ctx context.Context, jobID string) (map[string]int64, error) {
	values, err := r.cl.HGetAll(ctx, getKey(KeyFetchStats, jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get job %s counters: %w", jobID, err)
	}

	counters := make(map[string]int64, len(values))
	for name, val := range values {
		counter, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter to int", slog.String("name", name), slog.Any("error", err))

			continue
		}

		counters[name] = counter
	}

	return counters, nil
}

// DropJobCounters removes the counter hashes of reclaimed jobs so the keys
// do not outlive their folders.
func (r *statsRepository) DropJobCounters(ctx context.Context, jobIDs []string) error {
	if len(jobIDs) < 1 {
		return nil
	}

	keys := make([]string, 0, len(jobIDs))
	for _, id := range jobIDs {
		keys = append(keys, getKey(KeyFetchStats, id))
	}

	if _, err := r.cl.Del(ctx, keys...).Result(); err != nil {
		return fmt.Errorf("cannot drop job counters: %w", err)
	}

	return nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
