package memory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quiz-gate-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

//go:embed questions.json
var defaultQuestionsJSON []byte

// BankLoader fetches the question bank from a backing store (e.g., Postgres).
type BankLoader interface {
	GetAll(ctx context.Context) ([]domain.Question, error)
}

// StaticBank is a bank backed by an in-memory slice (useful for tests/demos).
type StaticBank struct {
	questions []domain.Question
}

// NewStaticBank validates questions and wraps them.
func NewStaticBank(questions []domain.Question) (*StaticBank, error) {
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return &StaticBank{questions: questions}, nil
}

// DefaultQuestions returns the bundled question bank.
func DefaultQuestions() ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(defaultQuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode bundled questions: %w", err)
	}
	return questions, nil
}

// NewDefaultBank builds a StaticBank from the bundled questions.
func NewDefaultBank() (*StaticBank, error) {
	questions, err := DefaultQuestions()
	if err != nil {
		return nil, err
	}
	return NewStaticBank(questions)
}

func (b *StaticBank) GetAll(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(b.questions))
	copy(out, b.questions)
	return out, nil
}

// CachedBank caches the bank with a TTL to avoid repeated DB hits.
type CachedBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
}

func NewCachedBank(loader BankLoader, ttl time.Duration) *CachedBank {
	return &CachedBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *CachedBank) GetAll(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := b.cached(b.clock()); ok {
		return questions, nil
	}

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		now := b.clock()
		if questions, ok := b.cached(now); ok {
			return questions, nil
		}

		questions, err := b.loader.GetAll(ctx)
		if err != nil {
			return nil, err
		}

		expiresAt := now.Add(b.ttlWithJitter())
		b.mu.Lock()
		b.questions = questions
		b.expiresAt = expiresAt
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *CachedBank) cached(now time.Time) ([]domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.questions != nil && b.expiresAt.After(now) {
		return b.questions, true
	}
	return nil, false
}

func (b *CachedBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
