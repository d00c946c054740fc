package postgres

import (
	"context"
	"fmt"
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/uptrace/bun"
)

type registrationRow struct {
	bun.BaseModel `bun:"table:registrations"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Number    string    `bun:"number,notnull"`
	Gender    string    `bun:"gender,notnull"`
	Branch    string    `bun:"branch,notnull"`
	Interests string    `bun:"interests,notnull"`
	Score     string    `bun:"score,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type contactRow struct {
	bun.BaseModel `bun:"table:contact_messages"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	Message   string    `bun:"message,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// RegistrationStore writes registrations and contact messages to Postgres.
type RegistrationStore struct {
	db *bun.DB
}

func NewRegistrationStore(db *bun.DB) *RegistrationStore {
	return &RegistrationStore{db: db}
}

// EnsureHeader is a no-op; the table schema is the header.
func (s *RegistrationStore) EnsureHeader(context.Context) error { return nil }

func (s *RegistrationStore) Append(ctx context.Context, reg domain.Registration) error {
	row := registrationRow{
		Name:      reg.Name,
		Number:    reg.Number,
		Gender:    reg.Gender,
		Branch:    reg.Branch,
		Interests: reg.Interests,
		Score:     reg.Score,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *RegistrationStore) AppendContact(ctx context.Context, msg domain.ContactMessage) error {
	row := contactRow{Name: msg.Name, Email: msg.Email, Message: msg.Message}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

// Registrations lists stored registrations oldest first.
func (s *RegistrationStore) Registrations(ctx context.Context) ([]domain.Registration, error) {
	var rows []registrationRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := make([]domain.Registration, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Registration{
			Name: r.Name, Number: r.Number, Gender: r.Gender,
			Branch: r.Branch, Interests: r.Interests, Score: r.Score,
		})
	}
	return out, nil
}
