package app

import (
	"context"
	"errors"
	"net"
	"strconv"

	"quiz-gate-service/internal/domain"

	"go.uber.org/zap"
)

// RegistrationStore persists registration rows.
type RegistrationStore interface {
	// EnsureHeader writes the header row if the store has none.
	EnsureHeader(ctx context.Context) error
	Append(ctx context.Context, reg domain.Registration) error
}

// ContactStore persists contact-form messages.
type ContactStore interface {
	AppendContact(ctx context.Context, msg domain.ContactMessage) error
}

// RegistrationService validates and forwards form submissions to the stores.
type RegistrationService struct {
	store       RegistrationStore
	contacts    ContactStore
	progress    ProgressStore
	requirePass bool
	log         *zap.Logger
}

func NewRegistrationService(store RegistrationStore, contacts ContactStore, progress ProgressStore, requirePass bool, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		store:       store,
		contacts:    contacts,
		progress:    progress,
		requirePass: requirePass,
		log:         logger,
	}
}

// Submit validates reg and appends it. When userID is set the score is taken from the
// user's best passing result, and with pass gating on, only users who passed may register.
func (s *RegistrationService) Submit(ctx context.Context, userID string, reg domain.Registration) error {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return err
	}

	if userID != "" {
		progress, err := s.progress.Get(ctx, userID)
		if err != nil {
			return classify("Failed to load quiz result", err)
		}
		if s.requirePass && !progress.Passed {
			return domain.NewValidationError("Quiz not passed")
		}
		if progress.Passed {
			reg.Score = strconv.Itoa(progress.PassScore)
		}
	} else if s.requirePass {
		return domain.NewValidationError("Quiz not passed")
	}

	if err := s.store.EnsureHeader(ctx); err != nil {
		// header init failure is not fatal; the append below decides the result
		s.log.Warn("initialize registration sheet", zap.Error(err))
	}
	if err := s.store.Append(ctx, reg); err != nil {
		s.log.Error("append registration", zap.Error(err))
		return classify("Failed to submit registration", err)
	}
	return nil
}

// SubmitContact validates and stores a contact-form message.
func (s *RegistrationService) SubmitContact(ctx context.Context, msg domain.ContactMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := s.contacts.AppendContact(ctx, msg); err != nil {
		s.log.Error("append contact message", zap.Error(err))
		return classify("Failed to submit form", err)
	}
	return nil
}

// classify turns a store failure into a user-visible SubmissionError.
func classify(msg string, err error) error {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) {
		return subErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.SubmissionError{Kind: domain.SubmissionNetwork, Msg: msg, Err: err}
	}
	return &domain.SubmissionError{Kind: domain.SubmissionServer, Msg: msg, Err: err}
}
