package domain

import (
	"fmt"
	"time"
)

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            int      `json:"id"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctAnswer"`
}

// Validate checks the bank invariants: at least two unique options, one of which is correct.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("question %d: need at least 2 options, got %d", q.ID, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("question %d: duplicate option %q", q.ID, opt)
		}
		seen[opt] = struct{}{}
	}
	if _, ok := seen[q.CorrectOption]; !ok {
		return fmt.Errorf("question %d: correct option %q is not among the options", q.ID, q.CorrectOption)
	}
	return nil
}

// HasOption reports whether option is one of the question's choices.
func (q Question) HasOption(option string) bool {
	for _, opt := range q.Options {
		if opt == option {
			return true
		}
	}
	return false
}

// QuestionSet is the ordered, per-session selection drawn from the bank.
type QuestionSet []Question

// IDs returns the question ids in session order.
func (s QuestionSet) IDs() []int {
	ids := make([]int, len(s))
	for i, q := range s {
		ids[i] = q.ID
	}
	return ids
}

// AnswerRecord is the write-once answer for one question index.
type AnswerRecord struct {
	QuestionIndex int    `json:"questionIndex"`
	ChosenOption  string `json:"chosenOption"`
	IsCorrect     bool   `json:"isCorrect"`
}

// Phase is the lifecycle stage of a quiz session.
type Phase string

const (
	PhaseIntro      Phase = "intro"
	PhaseInProgress Phase = "in_progress"
	PhaseTimedOut   Phase = "timed_out"
	PhaseCompleted  Phase = "completed"
	PhaseViolated   Phase = "violated"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseTimedOut || p == PhaseCompleted || p == PhaseViolated
}

// ViolationKind identifies the anti-cheat signal reported by the client.
type ViolationKind string

const (
	ViolationTabSwitch      ViolationKind = "tab_switch"
	ViolationBackNavigation ViolationKind = "back_navigation"
)

// ParseViolationKind validates a client-supplied violation kind.
func ParseViolationKind(raw string) (ViolationKind, error) {
	switch ViolationKind(raw) {
	case ViolationTabSwitch, ViolationBackNavigation:
		return ViolationKind(raw), nil
	}
	return "", fmt.Errorf("unknown violation kind %q", raw)
}

// OutcomeKind categorises how a session ended.
type OutcomeKind string

const (
	OutcomePassed    OutcomeKind = "passed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeTimeout   OutcomeKind = "timeout"
	OutcomeViolation OutcomeKind = "violation"
)

// Outcome is emitted exactly once when a session reaches a terminal phase.
type Outcome struct {
	SessionID string        `json:"sessionId"`
	UserID    string        `json:"userId"`
	Kind      OutcomeKind   `json:"kind"`
	Passed    bool          `json:"passed"`
	Score     int           `json:"score"`
	Total     int           `json:"total"`
	Violation ViolationKind `json:"violation,omitempty"`
	At        time.Time     `json:"at"`
}

// Destination is the client route for the outcome.
func (o Outcome) Destination() string {
	switch o.Kind {
	case OutcomePassed:
		return "/register"
	case OutcomeFailed:
		return "/try-again"
	case OutcomeTimeout:
		return "/timeout"
	default:
		return "/"
	}
}

// QuestionView is the presentation-safe form of a question (no correct option).
type QuestionView struct {
	ID      int      `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	SessionID        string        `json:"sessionId"`
	UserID           string        `json:"userId"`
	Phase            Phase         `json:"phase"`
	CurrentIndex     int           `json:"currentIndex"`
	Total            int           `json:"total"`
	Question         *QuestionView `json:"question,omitempty"`
	Answered         bool          `json:"answered"`
	Score            int           `json:"score"`
	TimeRemaining    int           `json:"timeRemaining"`
	QuestionDuration int           `json:"questionDuration"`
	TimerRunning     bool          `json:"timerRunning"`
	Outcome          *Outcome      `json:"outcome,omitempty"`
}

// EventType distinguishes session events delivered to subscribers.
type EventType string

const (
	EventState   EventType = "state"
	EventOutcome EventType = "outcome"
)

// Event is pushed to session subscribers on every mutation and tick.
type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Progress replaces the browser-global "completed before / failed before" flags.
type Progress struct {
	CompletedBefore bool      `json:"completedBefore"`
	FailedBefore    bool      `json:"failedBefore"`
	Passed          bool      `json:"passed"`
	LastOutcome     string    `json:"lastOutcome,omitempty"`
	LastScore       int       `json:"lastScore"`
	PassScore       int       `json:"passScore"` // best passing score; later failed retakes keep it
	Attempts        int       `json:"attempts"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Apply folds an outcome into the progress record.
func (p Progress) Apply(o Outcome) Progress {
	p.Attempts++
	p.CompletedBefore = true
	p.LastOutcome = string(o.Kind)
	p.LastScore = o.Score
	// violations send the user home without counting as a failed attempt
	switch o.Kind {
	case OutcomePassed:
		p.Passed = true
		if o.Score > p.PassScore {
			p.PassScore = o.Score
		}
	case OutcomeFailed, OutcomeTimeout:
		p.FailedBefore = true
	}
	p.UpdatedAt = o.At
	return p
}

// Notice is the home-page notification key for a returning user.
func (p Progress) Notice(blockAfterFailure bool) string {
	switch {
	case p.Passed:
		return ""
	case blockAfterFailure && p.FailedBefore:
		return "blocked"
	case p.LastOutcome == string(OutcomeTimeout):
		return "timeout"
	case p.FailedBefore:
		return "failed"
	}
	return ""
}
