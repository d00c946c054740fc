package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const bankKey = "quiz:bank"

// QuestionLoader fetches the question bank from a backing store (e.g., Postgres).
type QuestionLoader interface {
	GetAll(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the whole question bank in Redis as one JSON value and
// falls back to a loader on cache miss.
//
//	SET quiz:bank [{"id":1,"question":...},...] EX ttl
type QuestionBank struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) GetAll(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := b.cached(ctx); ok {
		return questions, nil
	}

	result, err, _ := b.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := b.cached(ctx); ok {
			return questions, nil
		}

		questions, err := b.loader.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(questions); err == nil {
			_ = b.client.Set(ctx, bankKey, payload, b.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// InvalidateQuestionBank drops the cached bank so the next read on any
// instance goes to the loader. Run it after the questions table changes.
func InvalidateQuestionBank(ctx context.Context, client *redis.Client) error {
	if err := client.Del(ctx, bankKey).Err(); err != nil {
		return fmt.Errorf("invalidate question bank: %w", err)
	}
	return nil
}

func (b *QuestionBank) cached(ctx context.Context) ([]domain.Question, bool) {
	payload, err := b.client.Get(ctx, bankKey).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(payload, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
