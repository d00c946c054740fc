package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps per-user quiz history in a Redis hash:
//
//	HSET quiz:progress:{userID} completed_before 1 failed_before 0 passed 0 ...
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore builds a store; ttl <= 0 keeps progress forever.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.Progress, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return domain.Progress{}, fmt.Errorf("load progress %s: %w", userID, err)
	}
	return progressFromHash(fields), nil
}

func (s *ProgressStore) Set(ctx context.Context, userID string, p domain.Progress) error {
	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"completed_before", boolField(p.CompletedBefore),
		"failed_before", boolField(p.FailedBefore),
		"passed", boolField(p.Passed),
		"last_outcome", p.LastOutcome,
		"last_score", p.LastScore,
		"pass_score", p.PassScore,
		"attempts", p.Attempts,
		"updated_at", p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save progress %s: %w", userID, err)
	}
	return nil
}

func (s *ProgressStore) key(userID string) string {
	return "quiz:progress:" + userID
}

func progressFromHash(fields map[string]string) domain.Progress {
	p := domain.Progress{
		CompletedBefore: fields["completed_before"] == "1",
		FailedBefore:    fields["failed_before"] == "1",
		Passed:          fields["passed"] == "1",
		LastOutcome:     fields["last_outcome"],
	}
	p.LastScore, _ = strconv.Atoi(fields["last_score"])
	p.PassScore, _ = strconv.Atoi(fields["pass_score"])
	p.Attempts, _ = strconv.Atoi(fields["attempts"])
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		p.UpdatedAt = ts
	}
	return p
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
