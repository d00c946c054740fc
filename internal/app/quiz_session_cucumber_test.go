//go:build cucumber

package app_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"quiz-gate-service/internal/app"
	"quiz-gate-service/internal/domain"
	"quiz-gate-service/internal/infra/memory"

	"github.com/cucumber/godog"
)

// TestQuizSessionScenarios runs the quiz session feature scenarios.
func TestQuizSessionScenarios(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "quiz-session",
		ScenarioInitializer: InitializeQuizScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("testdata", "features", "quiz_session.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeQuizScenario wires steps for the quiz session scenarios.
func InitializeQuizScenario(ctx *godog.ScenarioContext) {
	state := &quizScenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if state.service != nil {
			state.service.Shutdown()
		}
		return ctx, err
	})

	ctx.Step(`^a question bank of (\d+) questions$`, state.givenBank)
	ctx.Step(`^each question allows (\d+) seconds$`, state.givenDuration)
	ctx.Step(`^user "([^"]+)" has completed the quiz before$`, state.givenCompletedBefore)
	ctx.Step(`^user "([^"]+)" starts a quiz of (\d+) questions$`, state.whenStart)
	ctx.Step(`^the user answers (\d+) questions correctly$`, state.whenAnswerCorrectly)
	ctx.Step(`^the user answers (\d+) correctly and (\d+) incorrectly$`, state.whenAnswerMixed)
	ctx.Step(`^the client reports a "([^"]+)" violation$`, state.whenViolation)
	ctx.Step(`^the outcome is "([^"]+)" with score (\d+) of (\d+)$`, state.thenOutcome)
	ctx.Step(`^the user is sent to "([^"]+)"$`, state.thenDestination)
	ctx.Step(`^none of the questions were shown on the first visit$`, state.thenDisjoint)
}

type quizScenarioState struct {
	bank      []domain.Question
	duration  int
	progress  *memory.ProgressStore
	service   *app.QuizService
	sessionID string
	seen      map[int]bool
	firstSeen map[int]bool
	outcome   *domain.Outcome
}

func (s *quizScenarioState) reset() {
	*s = quizScenarioState{progress: memory.NewProgressStore(), seen: map[int]bool{}}
}

func (s *quizScenarioState) givenBank(n int) error {
	s.bank = testBank(n)
	return nil
}

func (s *quizScenarioState) givenDuration(seconds int) error {
	s.duration = seconds
	return nil
}

func (s *quizScenarioState) givenCompletedBefore(userID string) error {
	first, err := app.SelectQuestions(s.bank, userID, 10, 0)
	if err != nil {
		return err
	}
	s.firstSeen = map[int]bool{}
	for _, id := range first.IDs() {
		s.firstSeen[id] = true
	}
	return s.progress.Set(context.Background(), userID, domain.Progress{CompletedBefore: true, Attempts: 1})
}

func (s *quizScenarioState) whenStart(userID string, count int) error {
	bank, err := memory.NewStaticBank(s.bank)
	if err != nil {
		return err
	}
	s.service = app.NewQuizService(memory.NewSessionStore(), bank, s.progress, app.Options{
		QuestionDuration: s.duration,
		AutoStartTimer:   true,
		NewTicker:        newIdleTicker,
	})
	snap, err := s.service.Start(context.Background(), userID, count)
	if err != nil {
		return err
	}
	s.sessionID = snap.SessionID
	started, err := s.service.BeginQuestionTimer(context.Background(), s.sessionID, 0)
	if err != nil {
		return err
	}
	s.seen[started.Question.ID] = true
	return nil
}

func (s *quizScenarioState) answer(correct bool) error {
	ctx := context.Background()
	option := "wrong"
	if correct {
		option = "right"
	}
	if _, err := s.service.SelectAnswer(ctx, s.sessionID, option); err != nil {
		return err
	}
	snap, err := s.service.Advance(ctx, s.sessionID)
	if err != nil {
		return err
	}
	if snap.Outcome != nil {
		s.outcome = snap.Outcome
	} else if snap.Question != nil {
		s.seen[snap.Question.ID] = true
	}
	return nil
}

func (s *quizScenarioState) whenAnswerCorrectly(n int) error {
	for i := 0; i < n; i++ {
		if err := s.answer(true); err != nil {
			return err
		}
	}
	return nil
}

func (s *quizScenarioState) whenAnswerMixed(right, wrong int) error {
	if err := s.whenAnswerCorrectly(right); err != nil {
		return err
	}
	for i := 0; i < wrong; i++ {
		if err := s.answer(false); err != nil {
			return err
		}
	}
	return nil
}

func (s *quizScenarioState) whenViolation(raw string) error {
	kind, err := domain.ParseViolationKind(raw)
	if err != nil {
		return err
	}
	out, err := s.service.ReportViolation(context.Background(), s.sessionID, kind)
	if err != nil {
		return err
	}
	s.outcome = &out
	return nil
}

func (s *quizScenarioState) thenOutcome(kind string, score, total int) error {
	if s.outcome == nil {
		return fmt.Errorf("session has no outcome")
	}
	if string(s.outcome.Kind) != kind || s.outcome.Score != score || s.outcome.Total != total {
		return fmt.Errorf("expected %s %d/%d, got %s %d/%d", kind, score, total, s.outcome.Kind, s.outcome.Score, s.outcome.Total)
	}
	return nil
}

func (s *quizScenarioState) thenDestination(path string) error {
	if s.outcome == nil {
		return fmt.Errorf("session has no outcome")
	}
	if got := s.outcome.Destination(); got != path {
		return fmt.Errorf("expected destination %s, got %s", path, got)
	}
	return nil
}

func (s *quizScenarioState) thenDisjoint() error {
	if err := s.whenAnswerCorrectly(9); err != nil {
		return err
	}
	for id := range s.seen {
		if s.firstSeen[id] {
			return fmt.Errorf("question %d was shown on the first visit", id)
		}
	}
	return nil
}
