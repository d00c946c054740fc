package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-gate-service/internal/app"
	"quiz-gate-service/internal/domain"
	"quiz-gate-service/internal/infra/memory"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

type idleTicker struct{ c chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.c }
func (t idleTicker) Stop()               {}

type testEnv struct {
	router        *gin.Engine
	quiz          *app.QuizService
	progress      *memory.ProgressStore
	registrations *memory.RegistrationStore
	oauth         *fakeOAuth
}

func newTestEnv(t *testing.T, opts app.Options, requirePass bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	questions := make([]domain.Question, 0, 20)
	for i := 1; i <= 20; i++ {
		questions = append(questions, domain.Question{
			ID:            i,
			Prompt:        fmt.Sprintf("question %d", i),
			Options:       []string{"wrong", "right"},
			CorrectOption: "right",
		})
	}
	bank, err := memory.NewStaticBank(questions)
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	if opts.NewTicker == nil {
		opts.NewTicker = func(time.Duration) app.Ticker { return idleTicker{c: make(chan time.Time)} }
	}

	env := &testEnv{
		progress:      memory.NewProgressStore(),
		registrations: memory.NewRegistrationStore(),
		oauth:         &fakeOAuth{},
	}
	env.quiz = app.NewQuizService(memory.NewSessionStore(), bank, env.progress, opts)
	t.Cleanup(env.quiz.Shutdown)
	registration := app.NewRegistrationService(env.registrations, env.registrations, env.progress, requirePass, nil)

	env.router = NewRouter(RouterConfig{
		Quiz:            env.quiz,
		Registration:    registration,
		OAuth:           env.oauth,
		AllowOrigins:    []string{"http://localhost:3000"},
		RateLimit:       100,
		RateLimitWindow: time.Minute,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type fakeOAuth struct {
	exchanged []string
	err       error
}

func (f *fakeOAuth) AuthURL(state string) string {
	return "https://accounts.example.com/auth?access_type=offline&prompt=consent&state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.exchanged = append(f.exchanged, code)
	return &oauth2.Token{AccessToken: "a", RefreshToken: "r"}, nil
}

var _ http.Handler = (*gin.Engine)(nil)

// testContext mirrors testing.T.Context (Go 1.24+) for older toolchains.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
