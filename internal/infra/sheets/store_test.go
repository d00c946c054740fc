package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"quiz-gate-service/internal/domain"

	"google.golang.org/api/option"
)

type staticClient struct{ client *http.Client }

func (s staticClient) Client(context.Context) (*http.Client, error) { return s.client, nil }

type fakeSheet struct {
	mu       sync.Mutex
	header   [][]interface{}
	appended map[string][][]interface{}
	params   []string
	status   int
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")

	var body struct {
		Values [][]interface{} `json:"values"`
	}
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
	}

	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"range": "Sheet1!A1:F1", "values": f.header})
	case r.Method == http.MethodPut:
		f.header = body.Values
		f.params = append(f.params, r.URL.Query().Get("valueInputOption"))
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		rng := strings.TrimSuffix(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], ":append")
		f.appended[rng] = append(f.appended[rng], body.Values...)
		f.params = append(f.params, r.URL.Query().Get("valueInputOption")+"/"+r.URL.Query().Get("insertDataOption"))
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeStore(t *testing.T) (*Store, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{appended: map[string][][]interface{}{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store := NewStore(staticClient{client: srv.Client()}, "sheet-id", nil, option.WithEndpoint(srv.URL+"/"))
	return store, fake
}

func TestEnsureHeaderWritesOnce(t *testing.T) {
	store, fake := newFakeStore(t)
	ctx := context.Background()

	if err := store.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if err := store.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header again: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.header) != 1 || len(fake.header[0]) != 6 || fake.header[0][5] != "Score" {
		t.Fatalf("unexpected header %v", fake.header)
	}
	if len(fake.params) != 1 || fake.params[0] != "RAW" {
		t.Fatalf("expected a single RAW header write, got %v", fake.params)
	}
}

func TestAppendRegistrationAndContact(t *testing.T) {
	store, fake := newFakeStore(t)
	ctx := context.Background()

	reg := domain.Registration{Name: "Ann", Number: "0123", Gender: "F", Branch: "CSE", Interests: "Go", Score: "8"}
	if err := store.Append(ctx, reg); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendContact(ctx, domain.ContactMessage{Name: "Bob", Email: "bob@example.com", Message: "hi"}); err != nil {
		t.Fatalf("append contact: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	rows := fake.appended["Sheet1!A:F"]
	if len(rows) != 1 || rows[0][0] != "Ann" || rows[0][5] != "8" {
		t.Fatalf("unexpected registration rows %v", fake.appended)
	}
	if contacts := fake.appended["Contact!A:C"]; len(contacts) != 1 || contacts[0][1] != "bob@example.com" {
		t.Fatalf("unexpected contact rows %v", fake.appended)
	}
	for _, p := range fake.params {
		if p != "RAW/INSERT_ROWS" {
			t.Fatalf("expected RAW/INSERT_ROWS append, got %s", p)
		}
	}
}

func TestAppendSurfacesAPIErrors(t *testing.T) {
	store, fake := newFakeStore(t)
	fake.status = http.StatusInternalServerError

	err := store.Append(context.Background(), domain.Registration{Name: "Ann"})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected api status in error, got %v", err)
	}
}

func TestStoreWithoutCredentials(t *testing.T) {
	store := NewStore(NewAuthenticator(AuthConfig{}, nil), "sheet-id", nil)
	if err := store.Append(context.Background(), domain.Registration{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}
