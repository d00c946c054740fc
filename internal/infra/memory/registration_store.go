package memory

import (
	"context"
	"sync"

	"quiz-gate-service/internal/domain"
)

// RegistrationStore keeps submitted rows in memory, mirroring the sheet layout.
type RegistrationStore struct {
	mu       sync.Mutex
	header   []string
	rows     []domain.Registration
	contacts []domain.ContactMessage
}

func NewRegistrationStore() *RegistrationStore {
	return &RegistrationStore{}
}

func (s *RegistrationStore) EnsureHeader(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.header == nil {
		s.header = append([]string(nil), domain.SheetHeader...)
	}
	return nil
}

func (s *RegistrationStore) Append(_ context.Context, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, reg)
	return nil
}

func (s *RegistrationStore) AppendContact(_ context.Context, msg domain.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, msg)
	return nil
}

// Registrations returns a copy of the stored rows.
func (s *RegistrationStore) Registrations() []domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Registration(nil), s.rows...)
}

// Contacts returns a copy of the stored contact messages.
func (s *RegistrationStore) Contacts() []domain.ContactMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ContactMessage(nil), s.contacts...)
}

// HasHeader reports whether EnsureHeader has run.
func (s *RegistrationStore) HasHeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header != nil
}
