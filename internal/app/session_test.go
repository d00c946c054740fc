package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-gate-service/internal/domain"
)

func TestFullRunAllCorrectPasses(t *testing.T) {
	session, outcomes, _ := newTestSession(t, 10, 60)

	mustBegin(t, session)
	for i := 0; i < 10; i++ {
		answerCurrent(t, session, true)
		snap, err := session.Advance()
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if i < 9 {
			if snap.CurrentIndex != i+1 || snap.TimeRemaining != 60 {
				t.Fatalf("expected index %d with reset timer, got %+v", i+1, snap)
			}
			mustBegin(t, session)
		}
	}

	out := outcomes.only(t)
	if out.Kind != domain.OutcomePassed || !out.Passed || out.Score != 10 || out.Total != 10 {
		t.Fatalf("expected 10/10 pass, got %+v", out)
	}
	if session.Snapshot().Phase != domain.PhaseCompleted {
		t.Fatalf("expected completed phase")
	}
}

func TestFullRunHalfCorrectFails(t *testing.T) {
	session, outcomes, _ := newTestSession(t, 10, 60)

	mustBegin(t, session)
	for i := 0; i < 10; i++ {
		answerCurrent(t, session, i%2 == 0)
		if _, err := session.Advance(); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if i < 9 {
			mustBegin(t, session)
		}
	}

	out := outcomes.only(t)
	if out.Kind != domain.OutcomeFailed || out.Passed || out.Score != 5 || out.Total != 10 {
		t.Fatalf("expected 5/10 fail, got %+v", out)
	}
	if out.Destination() != "/try-again" {
		t.Fatalf("expected retry destination, got %s", out.Destination())
	}
}

func TestOperationsRequireInProgress(t *testing.T) {
	session, _, _ := newTestSession(t, 3, 60)

	if _, err := session.SelectAnswer("a0"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before timer, got %v", err)
	}
	if _, err := session.Advance(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on advance in intro, got %v", err)
	}

	mustBegin(t, session)
	if _, err := session.BeginQuestionTimer(10); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state when timer already running, got %v", err)
	}
	if _, err := session.Advance(); !errors.Is(err, domain.ErrNoAnswer) {
		t.Fatalf("expected no answer error, got %v", err)
	}
}

func TestAnswerIsWriteOnce(t *testing.T) {
	session, _, _ := newTestSession(t, 3, 60)
	mustBegin(t, session)

	if _, err := session.SelectAnswer("nope"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
	answerCurrent(t, session, true)
	_, err := session.SelectAnswer(session.questions[0].Options[1])
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
	if snap := session.Snapshot(); snap.Score != 1 || !snap.Answered {
		t.Fatalf("expected score 1 from first answer only, got %+v", snap)
	}
}

func TestTimerExpiryTimesOutOnce(t *testing.T) {
	session, outcomes, clock := newTestSession(t, 10, 3)
	events, cancel := session.Subscribe()
	defer cancel()
	<-events // initial snapshot

	mustBegin(t, session)
	expectEvent(t, events, domain.EventState)

	for i := 2; i >= 1; i-- {
		clock.tick(t)
		ev := expectEvent(t, events, domain.EventState)
		if ev.Snapshot.TimeRemaining != i {
			t.Fatalf("expected %d seconds left, got %d", i, ev.Snapshot.TimeRemaining)
		}
	}
	clock.tick(t)
	ev := expectEvent(t, events, domain.EventOutcome)
	if ev.Snapshot.Phase != domain.PhaseTimedOut || ev.Snapshot.Outcome.Kind != domain.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %+v", ev.Snapshot)
	}
	if _, open := <-events; open {
		t.Fatalf("expected subscription closed after outcome")
	}

	out := outcomes.only(t)
	if out.Score != 0 || out.Destination() != "/timeout" {
		t.Fatalf("unexpected timeout outcome %+v", out)
	}
	if !clock.latest().isStopped() {
		t.Fatalf("expected ticker stopped after timeout")
	}
}

func TestConcurrentTicksTimeOutExactlyOnce(t *testing.T) {
	session, outcomes, _ := newTestSession(t, 10, 1)
	mustBegin(t, session)

	session.mu.Lock()
	gen := session.timerGen
	session.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.tick(gen)
		}()
	}
	wg.Wait()

	outcomes.only(t)
	if snap := session.Snapshot(); snap.Phase != domain.PhaseTimedOut || snap.TimeRemaining != 0 {
		t.Fatalf("expected timed out with 0 remaining, got %+v", snap)
	}
}

func TestStaleTickAfterAdvanceIsIgnored(t *testing.T) {
	session, outcomes, _ := newTestSession(t, 3, 1)
	mustBegin(t, session)

	session.mu.Lock()
	staleGen := session.timerGen
	session.mu.Unlock()

	answerCurrent(t, session, true)
	if _, err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if session.tick(staleGen) {
		t.Fatalf("expected stale tick to stop")
	}
	snap := session.Snapshot()
	if snap.Phase != domain.PhaseInProgress || snap.TimeRemaining != 1 || snap.TimerRunning {
		t.Fatalf("stale tick mutated state: %+v", snap)
	}
	if outcomes.count() != 0 {
		t.Fatalf("expected no outcome from stale tick")
	}
}

func TestTerminalSessionIsIdempotent(t *testing.T) {
	session, outcomes, _ := newTestSession(t, 1, 60)
	mustBegin(t, session)
	answerCurrent(t, session, true)
	if _, err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	before := session.Snapshot()

	if _, err := session.SelectAnswer("a0"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after completion, got %v", err)
	}
	if _, err := session.Advance(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after completion, got %v", err)
	}
	if _, err := session.BeginQuestionTimer(5); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after completion, got %v", err)
	}
	session.mu.Lock()
	gen := session.timerGen
	session.mu.Unlock()
	if session.tick(gen) {
		t.Fatalf("expected tick to be rejected")
	}
	out, err := session.ReportViolation(domain.ViolationTabSwitch)
	if err != nil {
		t.Fatalf("violation on terminal session: %v", err)
	}
	if out.Kind != domain.OutcomePassed {
		t.Fatalf("expected existing outcome kept, got %s", out.Kind)
	}

	after := session.Snapshot()
	if after.Score != before.Score || after.CurrentIndex != before.CurrentIndex || after.Phase != domain.PhaseCompleted {
		t.Fatalf("terminal state changed: before %+v after %+v", before, after)
	}
	outcomes.only(t)
}

func TestViolationEndsSessionImmediately(t *testing.T) {
	session, outcomes, clock := newTestSession(t, 5, 60)
	mustBegin(t, session)
	answerCurrent(t, session, true)

	out, err := session.ReportViolation(domain.ViolationBackNavigation)
	if err != nil {
		t.Fatalf("violation: %v", err)
	}
	if out.Kind != domain.OutcomeViolation || out.Violation != domain.ViolationBackNavigation || out.Passed {
		t.Fatalf("unexpected violation outcome %+v", out)
	}
	if out.Destination() != "/" {
		t.Fatalf("expected home destination, got %s", out.Destination())
	}
	if session.Snapshot().Phase != domain.PhaseViolated {
		t.Fatalf("expected violated phase")
	}
	if !clock.latest().isStopped() {
		t.Fatalf("expected countdown stopped on violation")
	}
	outcomes.only(t)
}

func TestViolationDuringIntro(t *testing.T) {
	session, outcomes, _ := newTestSession(t, 5, 60)
	if _, err := session.ReportViolation(domain.ViolationTabSwitch); err != nil {
		t.Fatalf("violation: %v", err)
	}
	if outcomes.only(t).Kind != domain.OutcomeViolation {
		t.Fatalf("expected violation outcome")
	}
}

func TestCloseStopsCountdownWithoutOutcome(t *testing.T) {
	session, outcomes, clock := newTestSession(t, 5, 60)
	events, cancel := session.Subscribe()
	defer cancel()
	mustBegin(t, session)

	session.Close()
	if !clock.latest().isStopped() {
		t.Fatalf("expected ticker stopped")
	}
	for range events {
	}
	if outcomes.count() != 0 {
		t.Fatalf("expected no outcome on close")
	}
	if _, err := session.SelectAnswer("a0"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected closed session to reject answers, got %v", err)
	}
}

func TestSnapshotHidesCorrectOption(t *testing.T) {
	session, _, _ := newTestSession(t, 2, 60)
	snap := session.Snapshot()
	if snap.Question == nil || len(snap.Question.Options) != 4 {
		t.Fatalf("expected question view with options, got %+v", snap.Question)
	}
	snap.Question.Options[0] = "mutated"
	if session.questions[0].Options[0] == "mutated" {
		t.Fatalf("snapshot must not alias session options")
	}
}

// test helpers

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
	n        atomic.Int32
}

func (r *outcomeRecorder) record(o domain.Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
	r.n.Add(1)
}

func (r *outcomeRecorder) count() int { return int(r.n.Load()) }

func (r *outcomeRecorder) only(t *testing.T) domain.Outcome {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) != 1 {
		t.Fatalf("expected exactly one outcome, got %d", len(r.outcomes))
	}
	return r.outcomes[0]
}

type manualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (m *manualTicker) C() <-chan time.Time { return m.c }

func (m *manualTicker) Stop() { m.once.Do(func() { close(m.stopped) }) }

func (m *manualTicker) isStopped() bool {
	select {
	case <-m.stopped:
		return true
	default:
		return false
	}
}

type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (c *manualClock) newTicker(time.Duration) Ticker {
	t := &manualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *manualClock) latest() *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[len(c.tickers)-1]
}

func (c *manualClock) tick(t *testing.T) {
	t.Helper()
	ticker := c.latest()
	select {
	case ticker.c <- time.Now():
	case <-ticker.stopped:
		t.Fatalf("tick on stopped ticker")
	case <-time.After(2 * time.Second):
		t.Fatalf("countdown goroutine did not receive tick")
	}
}

func newTestSession(t *testing.T, n, durationSeconds int) (*Session, *outcomeRecorder, *manualClock) {
	t.Helper()
	rec := &outcomeRecorder{}
	clock := &manualClock{}
	session := NewSession("s1", "u1", testQuestions(n), SessionConfig{
		QuestionDuration: durationSeconds,
		PassThreshold:    0.6,
		Now:              func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
		NewTicker:        clock.newTicker,
		OnOutcome:        rec.record,
	})
	t.Cleanup(session.Close)
	return session, rec, clock
}

func testQuestions(n int) domain.QuestionSet {
	set := make(domain.QuestionSet, 0, n)
	for i := 0; i < n; i++ {
		set = append(set, domain.Question{
			ID:            i + 1,
			Prompt:        fmt.Sprintf("question %d", i+1),
			Options:       []string{"a0", "a1", "a2", "a3"},
			CorrectOption: fmt.Sprintf("a%d", i%4),
		})
	}
	return set
}

func mustBegin(t *testing.T, s *Session) {
	t.Helper()
	if _, err := s.BeginQuestionTimer(0); err != nil {
		t.Fatalf("begin timer: %v", err)
	}
}

func answerCurrent(t *testing.T, s *Session, correct bool) {
	t.Helper()
	snap := s.Snapshot()
	q := s.questions[snap.CurrentIndex]
	option := q.CorrectOption
	if !correct {
		for _, opt := range q.Options {
			if opt != q.CorrectOption {
				option = opt
				break
			}
		}
	}
	if _, err := s.SelectAnswer(option); err != nil {
		t.Fatalf("select answer: %v", err)
	}
}

func expectEvent(t *testing.T, events <-chan domain.Event, want domain.EventType) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatalf("events closed, wanted %s", want)
		}
		if ev.Type != want {
			t.Fatalf("expected %s event, got %s", want, ev.Type)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s event", want)
	}
	return domain.Event{}
}
