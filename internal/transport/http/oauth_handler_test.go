package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quiz-gate-service/internal/app"
)

func TestOAuthURLSetsStateCookie(t *testing.T) {
	env := newTestEnv(t, app.Options{}, false)

	rec := env.do(t, http.MethodGet, "/admin/oauth/url", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != stateCookie {
		t.Fatalf("expected state cookie, got %v", cookies)
	}
	if !strings.HasSuffix(body["url"], "state="+cookies[0].Value) {
		t.Fatalf("expected url to carry state, got %s", body["url"])
	}
}

func TestOAuthCallback(t *testing.T) {
	env := newTestEnv(t, app.Options{}, false)

	if rec := env.do(t, http.MethodGet, "/api/auth/callback/google", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without code, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?code=c1&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "other"})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on state mismatch, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/auth/callback/google?code=c1", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/auth-success" {
		t.Fatalf("expected redirect to /auth-success, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if len(env.oauth.exchanged) != 1 || env.oauth.exchanged[0] != "c1" {
		t.Fatalf("expected code exchanged, got %v", env.oauth.exchanged)
	}

	env.oauth.err = errors.New("invalid_grant")
	if rec := env.do(t, http.MethodGet, "/api/auth/callback/google?code=c2", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on exchange failure, got %d", rec.Code)
	}
}
