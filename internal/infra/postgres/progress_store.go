package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/uptrace/bun"
)

type progressRow struct {
	bun.BaseModel `bun:"table:user_progress"`

	UserID          string    `bun:"user_id,pk"`
	CompletedBefore bool      `bun:"completed_before,notnull"`
	FailedBefore    bool      `bun:"failed_before,notnull"`
	Passed          bool      `bun:"passed,notnull"`
	LastOutcome     string    `bun:"last_outcome,notnull"`
	LastScore       int       `bun:"last_score,notnull"`
	PassScore       int       `bun:"pass_score,notnull"`
	Attempts        int       `bun:"attempts,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

// ProgressStore persists user progress in the user_progress table.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.Progress, error) {
	var row progressRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Progress{}, nil
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("load progress %s: %w", userID, err)
	}
	return domain.Progress{
		CompletedBefore: row.CompletedBefore,
		FailedBefore:    row.FailedBefore,
		Passed:          row.Passed,
		LastOutcome:     row.LastOutcome,
		LastScore:       row.LastScore,
		PassScore:       row.PassScore,
		Attempts:        row.Attempts,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (s *ProgressStore) Set(ctx context.Context, userID string, p domain.Progress) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	row := progressRow{
		UserID:          userID,
		CompletedBefore: p.CompletedBefore,
		FailedBefore:    p.FailedBefore,
		Passed:          p.Passed,
		LastOutcome:     p.LastOutcome,
		LastScore:       p.LastScore,
		PassScore:       p.PassScore,
		Attempts:        p.Attempts,
		UpdatedAt:       updatedAt,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("completed_before = EXCLUDED.completed_before").
		Set("failed_before = EXCLUDED.failed_before").
		Set("passed = EXCLUDED.passed").
		Set("last_outcome = EXCLUDED.last_outcome").
		Set("last_score = EXCLUDED.last_score").
		Set("pass_score = EXCLUDED.pass_score").
		Set("attempts = EXCLUDED.attempts").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save progress %s: %w", userID, err)
	}
	return nil
}
