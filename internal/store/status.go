package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mainos-ai/mainos/config"
)

// statusTTL bounds how long a live status entry outlives its last update.
const statusTTL = 24 * time.Hour

// RunStatus is the live view of a run, cheap enough to poll.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	ReportID  string    `json:"report_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusTracker keeps per-run progress in Redis so status polls never touch
// Postgres.
type StatusTracker struct {
	rdb *redis.Client
}

func NewStatusTracker(ctx context.Context, cfg config.RedisConfig) (*StatusTracker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Host, cfg.Port, err)
	}
	return &StatusTracker{rdb: rdb}, nil
}

func NewStatusTrackerWithClient(rdb *redis.Client) *StatusTracker {
	return &StatusTracker{rdb: rdb}
}

func statusKey(runID string) string { return "mainos:run:" + runID }

func (t *StatusTracker) Set(ctx context.Context, st RunStatus) error {
	st.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return t.rdb.Set(ctx, statusKey(st.RunID), payload, statusTTL).Err()
}

func (t *StatusTracker) Get(ctx context.Context, runID string) (RunStatus, error) {
	raw, err := t.rdb.Get(ctx, statusKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RunStatus{}, ErrNotFound
	}
	if err != nil {
		return RunStatus{}, err
	}
	var st RunStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return RunStatus{}, err
	}
	return st, nil
}

func (t *StatusTracker) Close() error { return t.rdb.Close() }
