package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-gate-service/internal/domain"
)

func TestCachedBankCaches(t *testing.T) {
	loader := &countingLoader{BankLoader: mustStaticBank(t)}
	bank := NewCachedBank(loader, time.Minute)

	if _, err := bank.GetAll(context.Background()); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	questions, err := bank.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
}

func TestCachedBankReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{BankLoader: mustStaticBank(t)}
	bank := NewCachedBank(loader, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	bank.clock = func() time.Time { return now }

	_, _ = bank.GetAll(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = bank.GetAll(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

func TestCachedBankDoesNotCacheErrors(t *testing.T) {
	loader := &failingLoader{err: errors.New("db down")}
	bank := NewCachedBank(loader, time.Minute)

	if _, err := bank.GetAll(context.Background()); err == nil {
		t.Fatalf("expected loader error")
	}
	if _, err := bank.GetAll(context.Background()); err == nil {
		t.Fatalf("expected loader error on retry")
	}
	if loader.calls != 2 {
		t.Fatalf("expected loader retried, calls %d", loader.calls)
	}
}

func TestDefaultBankIsValid(t *testing.T) {
	bank, err := NewDefaultBank()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}
	questions, _ := bank.GetAll(context.Background())
	if len(questions) < 10 {
		t.Fatalf("expected at least 10 bundled questions, got %d", len(questions))
	}
	seen := map[int]bool{}
	for _, q := range questions {
		if seen[q.ID] {
			t.Fatalf("duplicate question id %d", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestStaticBankRejectsInvalidQuestion(t *testing.T) {
	_, err := NewStaticBank([]domain.Question{{ID: 1, Options: []string{"a", "b"}, CorrectOption: "c"}})
	if err == nil {
		t.Fatalf("expected invalid question to be rejected")
	}
}

type countingLoader struct {
	BankLoader
	calls int
}

func (l *countingLoader) GetAll(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.BankLoader.GetAll(ctx)
}

type failingLoader struct {
	err   error
	calls int
}

func (l *failingLoader) GetAll(context.Context) ([]domain.Question, error) {
	l.calls++
	return nil, l.err
}

func mustStaticBank(t *testing.T) *StaticBank {
	t.Helper()
	bank, err := NewStaticBank(sampleQuestions())
	if err != nil {
		t.Fatalf("static bank: %v", err)
	}
	return bank
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectOption: "4"},
		{ID: 2, Prompt: "What is 3 + 3?", Options: []string{"6", "7"}, CorrectOption: "6"},
	}
}
