package app

import (
	"sync"
	"time"

	"quiz-gate-service/internal/domain"
)

// SessionConfig holds the per-session settings fixed at start.
type SessionConfig struct {
	QuestionDuration int // seconds
	PassThreshold    float64
	Now              func() time.Time
	NewTicker        TickerFunc
	// OnOutcome runs exactly once, outside the session lock, when the session ends.
	OnOutcome func(domain.Outcome)
}

// Session drives one quiz attempt from intro to a terminal outcome.
// All mutations, including countdown ticks, are serialised by mu.
type Session struct {
	id        string
	userID    string
	questions domain.QuestionSet
	threshold float64
	now       func() time.Time
	newTicker TickerFunc
	onOutcome func(domain.Outcome)

	mu           sync.Mutex
	phase        domain.Phase
	current      int
	answers      map[int]domain.AnswerRecord
	score        int
	duration     int
	remaining    int
	timerGen     uint64
	timerRunning bool
	stopTimer    func()
	outcome      *domain.Outcome
	closed       bool
	subscribers  map[chan domain.Event]struct{}
}

// NewSession allocates a session in the intro phase.
func NewSession(id, userID string, questions domain.QuestionSet, cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewRealTicker
	}
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = DefaultPassThreshold
	}
	return &Session{
		id:          id,
		userID:      userID,
		questions:   questions,
		threshold:   cfg.PassThreshold,
		now:         cfg.Now,
		newTicker:   cfg.NewTicker,
		onOutcome:   cfg.OnOutcome,
		phase:       domain.PhaseIntro,
		answers:     make(map[int]domain.AnswerRecord),
		duration:    cfg.QuestionDuration,
		remaining:   cfg.QuestionDuration,
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the user the session was started for.
func (s *Session) UserID() string { return s.userID }

// BeginQuestionTimer starts the countdown for the current question.
// A non-positive duration reuses the session's per-question duration.
func (s *Session) BeginQuestionTimer(durationSeconds int) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "beginQuestionTimer"
	if s.closed {
		return domain.Snapshot{}, &domain.InvalidStateError{Op: op, Phase: s.phase}
	}
	switch {
	case s.phase == domain.PhaseIntro:
	case s.phase == domain.PhaseInProgress && !s.timerRunning:
	default:
		return domain.Snapshot{}, &domain.InvalidStateError{Op: op, Phase: s.phase}
	}

	if durationSeconds > 0 {
		s.duration = durationSeconds
	}
	if s.duration <= 0 {
		s.duration = 60
	}
	s.phase = domain.PhaseInProgress
	s.remaining = s.duration
	s.startTimerLocked()
	return s.broadcastLocked(domain.EventState), nil
}

// SelectAnswer records the answer for the current question. Answers are write-once.
func (s *Session) SelectAnswer(option string) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.phase != domain.PhaseInProgress {
		return domain.Snapshot{}, &domain.InvalidStateError{Op: "selectAnswer", Phase: s.phase}
	}
	if _, ok := s.answers[s.current]; ok {
		return domain.Snapshot{}, domain.ErrAlreadyAnswered
	}
	question := s.questions[s.current]
	if !question.HasOption(option) {
		return domain.Snapshot{}, domain.ErrOptionNotFound
	}

	s.answers[s.current] = domain.AnswerRecord{
		QuestionIndex: s.current,
		ChosenOption:  option,
		IsCorrect:     option == question.CorrectOption,
	}
	s.score = scoreAnswers(s.answers)
	return s.broadcastLocked(domain.EventState), nil
}

// Advance moves to the next question, or completes the session on the last one.
// On a non-final advance the countdown is stopped and must be restarted with BeginQuestionTimer.
func (s *Session) Advance() (domain.Snapshot, error) {
	s.mu.Lock()

	if s.closed || s.phase != domain.PhaseInProgress {
		phase := s.phase
		s.mu.Unlock()
		return domain.Snapshot{}, &domain.InvalidStateError{Op: "advance", Phase: phase}
	}
	if _, ok := s.answers[s.current]; !ok {
		s.mu.Unlock()
		return domain.Snapshot{}, domain.ErrNoAnswer
	}

	s.stopTimerLocked()
	if s.current < len(s.questions)-1 {
		s.current++
		s.remaining = s.duration
		snap := s.broadcastLocked(domain.EventState)
		s.mu.Unlock()
		return snap, nil
	}

	s.score = scoreAnswers(s.answers)
	total := len(s.questions)
	kind := domain.OutcomeFailed
	if Passed(s.score, total, s.threshold) {
		kind = domain.OutcomePassed
	}
	s.phase = domain.PhaseCompleted
	outcome := s.finishLocked(kind, "")
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(outcome)
	return snap, nil
}

// ReportViolation ends the session because the client detected a tab switch or back navigation.
// On an already terminal session it is a no-op returning the existing outcome.
func (s *Session) ReportViolation(kind domain.ViolationKind) (domain.Outcome, error) {
	s.mu.Lock()

	if s.phase.Terminal() {
		existing := *s.outcome
		s.mu.Unlock()
		return existing, nil
	}
	if s.closed {
		phase := s.phase
		s.mu.Unlock()
		return domain.Outcome{}, &domain.InvalidStateError{Op: "reportIntegrityViolation", Phase: phase}
	}

	s.stopTimerLocked()
	s.phase = domain.PhaseViolated
	outcome := s.finishLocked(domain.OutcomeViolation, kind)
	s.mu.Unlock()

	s.emit(outcome)
	return outcome, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Outcome returns the terminal outcome, if any.
func (s *Session) Outcome() (domain.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return domain.Outcome{}, false
	}
	return *s.outcome, true
}

// Subscribe returns a channel of session events. The channel is closed after the
// outcome event or when the session is closed; cancel is safe to call at any time.
func (s *Session) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	s.mu.Lock()
	if s.phase.Terminal() || s.closed {
		evType := domain.EventState
		if s.outcome != nil {
			evType = domain.EventOutcome
		}
		ch <- domain.Event{Type: evType, Snapshot: s.snapshotLocked()}
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- domain.Event{Type: domain.EventState, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the countdown without emitting an outcome (abandonment, shutdown).
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.closed = true
	s.closeSubscribersLocked()
}

func (s *Session) startTimerLocked() {
	s.stopTimerLocked()

	gen := s.timerGen
	ticker := s.newTicker(time.Second)
	done := make(chan struct{})
	s.stopTimer = func() {
		ticker.Stop()
		close(done)
	}
	s.timerRunning = true

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				if !s.tick(gen) {
					return
				}
			}
		}
	}()
}

// stopTimerLocked cancels the running countdown. Bumping the generation makes any
// tick already in flight a no-op, so cancellation always wins.
func (s *Session) stopTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.timerRunning = false
	s.timerGen++
}

// tick decrements the countdown for generation gen. It reports whether the
// countdown should keep running.
func (s *Session) tick(gen uint64) bool {
	s.mu.Lock()
	if gen != s.timerGen || !s.timerRunning || s.phase != domain.PhaseInProgress || s.closed {
		s.mu.Unlock()
		return false
	}

	s.remaining--
	if s.remaining > 0 {
		s.broadcastLocked(domain.EventState)
		s.mu.Unlock()
		return true
	}

	s.remaining = 0
	s.stopTimerLocked()
	s.phase = domain.PhaseTimedOut
	outcome := s.finishLocked(domain.OutcomeTimeout, "")
	s.mu.Unlock()

	s.emit(outcome)
	return false
}

// finishLocked records the outcome, notifies subscribers and closes their channels.
func (s *Session) finishLocked(kind domain.OutcomeKind, violation domain.ViolationKind) domain.Outcome {
	outcome := domain.Outcome{
		SessionID: s.id,
		UserID:    s.userID,
		Kind:      kind,
		Passed:    kind == domain.OutcomePassed,
		Score:     s.score,
		Total:     len(s.questions),
		Violation: violation,
		At:        s.now(),
	}
	s.outcome = &outcome
	s.broadcastLocked(domain.EventOutcome)
	s.closeSubscribersLocked()
	return outcome
}

func (s *Session) emit(outcome domain.Outcome) {
	if s.onOutcome != nil {
		s.onOutcome(outcome)
	}
}

func (s *Session) closeSubscribersLocked() {
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) broadcastLocked(evType domain.EventType) domain.Snapshot {
	snap := s.snapshotLocked()
	ev := domain.Event{Type: evType, Snapshot: snap}
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event so the newest always lands
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	return snap
}

func (s *Session) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:        s.id,
		UserID:           s.userID,
		Phase:            s.phase,
		CurrentIndex:     s.current,
		Total:            len(s.questions),
		Score:            s.score,
		TimeRemaining:    s.remaining,
		QuestionDuration: s.duration,
		TimerRunning:     s.timerRunning,
	}
	if s.current < len(s.questions) {
		q := s.questions[s.current]
		snap.Question = &domain.QuestionView{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
		}
	}
	_, snap.Answered = s.answers[s.current]
	if s.outcome != nil {
		outcome := *s.outcome
		snap.Outcome = &outcome
	}
	return snap
}
