package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or was already dropped.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidState is returned when an operation is not allowed in the session's phase.
	ErrInvalidState = errors.New("operation not allowed in current phase")
	// ErrSeed indicates the question bank cannot satisfy the requested selection.
	ErrSeed = errors.New("cannot select questions from bank")
	// ErrOptionNotFound indicates a submitted option is not one of the current question's options.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAlreadyAnswered indicates the current question already has an answer.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNoAnswer indicates advance was requested before an answer was selected.
	ErrNoAnswer = errors.New("no answer selected for current question")
	// ErrUserBlocked is returned when a user who failed before tries to start again.
	ErrUserBlocked = errors.New("user is blocked from taking the quiz")
)

// InvalidStateError records which operation was rejected in which phase.
type InvalidStateError struct {
	Op    string
	Phase Phase
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: not allowed in phase %s", e.Op, e.Phase)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// SeedError reports an unsatisfiable question selection.
type SeedError struct {
	Requested int
	Available int
}

func (e *SeedError) Error() string {
	if e.Available == 0 {
		return "question bank is empty"
	}
	return fmt.Sprintf("requested %d questions but bank has %d", e.Requested, e.Available)
}

func (e *SeedError) Unwrap() error { return ErrSeed }

// SubmissionKind classifies registration/contact failures for the client.
type SubmissionKind string

const (
	SubmissionValidation SubmissionKind = "validation"
	SubmissionNetwork    SubmissionKind = "network"
	SubmissionServer     SubmissionKind = "server"
)

// SubmissionError is a user-visible, retryable submission failure.
type SubmissionError struct {
	Kind SubmissionKind
	Msg  string
	Err  error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NewValidationError builds a validation SubmissionError.
func NewValidationError(msg string) *SubmissionError {
	return &SubmissionError{Kind: SubmissionValidation, Msg: msg}
}
