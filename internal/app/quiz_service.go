package app

import (
	"context"
	"sync"
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	All() []*Session
}

// QuestionBank returns the full ordered question collection.
type QuestionBank interface {
	GetAll(ctx context.Context) ([]domain.Question, error)
}

// ProgressStore persists per-user quiz history across visits.
type ProgressStore interface {
	Get(ctx context.Context, userID string) (domain.Progress, error)
	Set(ctx context.Context, userID string, progress domain.Progress) error
}

// OutcomeReporter receives every terminal outcome.
type OutcomeReporter interface {
	OnOutcome(ctx context.Context, outcome domain.Outcome)
}

// StartObserver is optionally implemented by reporters that also track session starts.
type StartObserver interface {
	OnStart(ctx context.Context, snapshot domain.Snapshot)
}

// Options tunes the quiz rules.
type Options struct {
	QuestionCount     int
	QuestionDuration  int // seconds
	PassThreshold     float64
	BlockAfterFailure bool
	AutoStartTimer    bool
	Retention         time.Duration
	IdleTimeout       time.Duration // unfinished sessions without client activity are dropped
	Clock             func() time.Time
	NewTicker         TickerFunc
	Logger            *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.QuestionCount <= 0 {
		o.QuestionCount = 10
	}
	if o.QuestionDuration <= 0 {
		o.QuestionDuration = 60
	}
	if o.PassThreshold <= 0 {
		o.PassThreshold = DefaultPassThreshold
	}
	if o.Retention <= 0 {
		o.Retention = 10 * time.Minute
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 15 * time.Minute
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewTicker == nil {
		o.NewTicker = NewRealTicker
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// QuizService contains the quiz use cases.
type QuizService struct {
	sessions  SessionRepository
	bank      QuestionBank
	progress  ProgressStore
	reporters []OutcomeReporter
	opts      Options
	log       *zap.Logger

	mu       sync.Mutex
	reapers  map[string]*time.Timer
	idle     map[string]*time.Timer
	shutdown bool
}

func NewQuizService(sessions SessionRepository, bank QuestionBank, progress ProgressStore, opts Options, reporters ...OutcomeReporter) *QuizService {
	opts = opts.withDefaults()
	return &QuizService{
		sessions:  sessions,
		bank:      bank,
		progress:  progress,
		reporters: reporters,
		opts:      opts,
		log:       opts.Logger,
		reapers:   make(map[string]*time.Timer),
		idle:      make(map[string]*time.Timer),
	}
}

// Options returns the effective quiz rules.
func (s *QuizService) Options() Options {
	return s.opts
}

// Start selects a deterministic question set for userID and allocates a session in the intro phase.
func (s *QuizService) Start(ctx context.Context, userID string, questionCount int) (domain.Snapshot, error) {
	if userID == "" {
		userID = "anon-" + uuid.NewString()
	}
	if questionCount <= 0 {
		questionCount = s.opts.QuestionCount
	}

	progress, err := s.progress.Get(ctx, userID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if s.opts.BlockAfterFailure && progress.FailedBefore && !progress.Passed {
		return domain.Snapshot{}, domain.ErrUserBlocked
	}

	bank, err := s.bank.GetAll(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	questions, err := SelectQuestions(bank, userID, questionCount, RepeatOffset(progress, questionCount))
	if err != nil {
		return domain.Snapshot{}, err
	}

	id := uuid.NewString()
	session := NewSession(id, userID, questions, SessionConfig{
		QuestionDuration: s.opts.QuestionDuration,
		PassThreshold:    s.opts.PassThreshold,
		Now:              s.opts.Clock,
		NewTicker:        s.opts.NewTicker,
		OnOutcome:        s.handleOutcome,
	})
	s.sessions.Put(session)
	s.touch(id)

	snap := session.Snapshot()
	for _, r := range s.reporters {
		if obs, ok := r.(StartObserver); ok {
			obs.OnStart(ctx, snap)
		}
	}
	s.log.Info("quiz session started",
		zap.String("session_id", id),
		zap.String("user_id", userID),
		zap.Int("questions", len(questions)),
		zap.Bool("repeat", progress.CompletedBefore),
	)
	return snap, nil
}

// BeginQuestionTimer starts the countdown for the current question.
func (s *QuizService) BeginQuestionTimer(_ context.Context, sessionID string, durationSeconds int) (domain.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.BeginQuestionTimer(durationSeconds)
}

// SelectAnswer records the answer for the current question.
func (s *QuizService) SelectAnswer(_ context.Context, sessionID, option string) (domain.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.SelectAnswer(option)
}

// Advance moves to the next question (restarting the countdown when AutoStartTimer is set)
// or completes the session.
func (s *QuizService) Advance(_ context.Context, sessionID string) (domain.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := session.Advance()
	if err != nil || snap.Outcome != nil || !s.opts.AutoStartTimer {
		return snap, err
	}
	started, err := session.BeginQuestionTimer(0)
	if err != nil {
		// ended concurrently (violation); report the state as it is now
		return session.Snapshot(), nil
	}
	return started, nil
}

// ReportViolation ends the session on a client-detected integrity violation.
func (s *QuizService) ReportViolation(_ context.Context, sessionID string, kind domain.ViolationKind) (domain.Outcome, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.Outcome{}, err
	}
	return session.ReportViolation(kind)
}

// Snapshot returns the current state of a session.
func (s *QuizService) Snapshot(_ context.Context, sessionID string) (domain.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives state and outcome events for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	session, err := s.get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Abandon stops an unfinished session without an outcome and drops it.
func (s *QuizService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	if _, finished := session.Outcome(); finished {
		return
	}
	s.disarmIdle(sessionID)
	session.Close()
	s.sessions.Delete(sessionID)
	s.log.Info("quiz session abandoned", zap.String("session_id", sessionID))
}

// Progress returns the user's history and the home-page notice derived from it.
func (s *QuizService) Progress(ctx context.Context, userID string) (domain.Progress, string, error) {
	progress, err := s.progress.Get(ctx, userID)
	if err != nil {
		return domain.Progress{}, "", err
	}
	return progress, progress.Notice(s.opts.BlockAfterFailure), nil
}

// Shutdown closes every live session so no countdown outlives the process.
func (s *QuizService) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	for id, t := range s.reapers {
		t.Stop()
		delete(s.reapers, id)
	}
	for id, t := range s.idle {
		t.Stop()
		delete(s.idle, id)
	}
	s.mu.Unlock()

	for _, session := range s.sessions.All() {
		session.Close()
		s.sessions.Delete(session.ID())
	}
}

func (s *QuizService) get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if _, finished := session.Outcome(); !finished {
		s.touch(sessionID)
	}
	return session, nil
}

// touch (re)arms the idle timer of an unfinished session.
func (s *QuizService) touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	if t, ok := s.idle[sessionID]; ok {
		t.Reset(s.opts.IdleTimeout)
		return
	}
	s.idle[sessionID] = time.AfterFunc(s.opts.IdleTimeout, func() {
		s.expireIdle(sessionID)
	})
}

func (s *QuizService) disarmIdle(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.idle[sessionID]; ok {
		t.Stop()
		delete(s.idle, sessionID)
	}
}

// expireIdle drops a session nobody has touched for IdleTimeout. Finished
// sessions are left to the retention reaper.
func (s *QuizService) expireIdle(sessionID string) {
	s.mu.Lock()
	delete(s.idle, sessionID)
	s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	if _, finished := session.Outcome(); finished {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
	s.log.Info("idle quiz session expired", zap.String("session_id", sessionID))
}

// handleOutcome runs once per session, from whichever call ended it.
func (s *QuizService) handleOutcome(outcome domain.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.recordProgress(ctx, outcome); err != nil {
		s.log.Error("record quiz progress", zap.String("user_id", outcome.UserID), zap.Error(err))
	}
	for _, r := range s.reporters {
		r.OnOutcome(ctx, outcome)
	}
	s.log.Info("quiz session finished",
		zap.String("session_id", outcome.SessionID),
		zap.String("user_id", outcome.UserID),
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("score", outcome.Score),
		zap.Int("total", outcome.Total),
	)
	s.disarmIdle(outcome.SessionID)
	s.scheduleRemoval(outcome.SessionID)
}

func (s *QuizService) recordProgress(ctx context.Context, outcome domain.Outcome) error {
	progress, err := s.progress.Get(ctx, outcome.UserID)
	if err != nil {
		return err
	}
	return s.progress.Set(ctx, outcome.UserID, progress.Apply(outcome))
}

// scheduleRemoval keeps finished sessions readable for the retention window.
func (s *QuizService) scheduleRemoval(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	s.reapers[sessionID] = time.AfterFunc(s.opts.Retention, func() {
		s.sessions.Delete(sessionID)
		s.mu.Lock()
		delete(s.reapers, sessionID)
		s.mu.Unlock()
	})
}
