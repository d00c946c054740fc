package events

import (
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/google/uuid"
)

const (
	// ExchangeName is the topic exchange quiz events are published to.
	ExchangeName = "quiz.events"

	RoutingKeySessionStarted = "quiz.session.started"
	routingKeyOutcomePrefix  = "quiz.outcome."
)

// OutcomeRoutingKey is quiz.outcome.<kind>, e.g. quiz.outcome.passed.
func OutcomeRoutingKey(kind domain.OutcomeKind) string {
	return routingKeyOutcomePrefix + string(kind)
}

// OutcomeEvent is published once per finished session.
type OutcomeEvent struct {
	EventID    string               `json:"eventId"`
	Type       string               `json:"type"`
	SessionID  string               `json:"sessionId"`
	UserID     string               `json:"userId"`
	Outcome    domain.OutcomeKind   `json:"outcome"`
	Passed     bool                 `json:"passed"`
	Score      int                  `json:"score"`
	Total      int                  `json:"total"`
	Violation  domain.ViolationKind `json:"violation,omitempty"`
	OccurredAt time.Time            `json:"occurredAt"`
}

func NewOutcomeEvent(o domain.Outcome) OutcomeEvent {
	return OutcomeEvent{
		EventID:    uuid.NewString(),
		Type:       OutcomeRoutingKey(o.Kind),
		SessionID:  o.SessionID,
		UserID:     o.UserID,
		Outcome:    o.Kind,
		Passed:     o.Passed,
		Score:      o.Score,
		Total:      o.Total,
		Violation:  o.Violation,
		OccurredAt: o.At,
	}
}

// SessionStartedEvent is published when a session is allocated.
type SessionStartedEvent struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	Questions  int       `json:"questions"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewSessionStartedEvent(snap domain.Snapshot, at time.Time) SessionStartedEvent {
	return SessionStartedEvent{
		EventID:    uuid.NewString(),
		Type:       RoutingKeySessionStarted,
		SessionID:  snap.SessionID,
		UserID:     snap.UserID,
		Questions:  snap.Total,
		OccurredAt: at,
	}
}
