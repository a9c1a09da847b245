package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/store"
)

// fakeAnswerer implements the answerer interface for tests. It records the
// query and caller it was invoked with and returns a canned result.
type fakeAnswerer struct {
	result    engine.QueryResult
	gotQuery  string
	gotCaller string
	calls     int
}

func (f *fakeAnswerer) Answer(_ context.Context, query, caller string) engine.QueryResult {
	f.calls++
	f.gotQuery = query
	f.gotCaller = caller
	return f.result
}

// fakeHistory records appended exchanges in memory.
type fakeHistory struct {
	appended []store.Exchange
}

func (f *fakeHistory) Append(_ context.Context, ex store.Exchange) error {
	f.appended = append(f.appended, ex)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, caller string, n int) ([]store.Exchange, error) {
	return f.appended, nil
}

func (f *fakeHistory) Close() error { return nil }

// newChatTestServer builds a *Server wired with the given answerer fake.
func newChatTestServer(a answerer, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Server{
		engine:  a,
		cfg:     cfg,
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func postChat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleChat(w, req)
	return w
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newChatTestServer(nil, nil)
	w := postChat(t, s, `not-json`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{result: engine.QueryResult{
		Answer:    "The pension age is 60.",
		Sources:   []string{"https://gov.example/pension.pdf"},
		QueryTime: 1.5,
	}}
	s := newChatTestServer(fake, nil)

	w := postChat(t, s, `{"query":"what is the pension age?","caller_id":"alice"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fake.gotQuery != "what is the pension age?" || fake.gotCaller != "alice" {
		t.Errorf("engine invoked with query=%q caller=%q", fake.gotQuery, fake.gotCaller)
	}

	var result engine.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Answer != fake.result.Answer {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Sources) != 1 {
		t.Errorf("sources = %v", result.Sources)
	}
}

func TestHandleChat_CallerFallsBackToIP(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{result: engine.QueryResult{Answer: "a", Sources: []string{}}}
	s := newChatTestServer(fake, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"query":"q"}`))
	req.RemoteAddr = "203.0.113.9:54321"
	w := httptest.NewRecorder()
	s.handleChat(w, req)

	if fake.gotCaller != "203.0.113.9" {
		t.Errorf("caller = %q, want client IP", fake.gotCaller)
	}
}

func TestHandleChat_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		result     engine.QueryResult
		wantStatus int
	}{
		{
			name:       "validation error",
			result:     engine.QueryResult{Error: engine.ErrValidation, Sources: []string{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rate limited",
			result:     engine.QueryResult{Error: engine.ErrRateLimited, RetryAfter: 55, Sources: []string{}},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "backend failure",
			result:     engine.QueryResult{Error: engine.ErrBackend, Sources: []string{}},
			wantStatus: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newChatTestServer(&fakeAnswerer{result: tt.result}, nil)
			w := postChat(t, s, `{"query":"q"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestHandleChat_RetryAfterHeader(t *testing.T) {
	t.Parallel()

	s := newChatTestServer(&fakeAnswerer{result: engine.QueryResult{
		Error:      engine.ErrRateLimited,
		RetryAfter: 55,
		Sources:    []string{},
	}}, nil)

	w := postChat(t, s, `{"query":"q"}`)
	if got := w.Header().Get("Retry-After"); got != "55" {
		t.Errorf("Retry-After = %q, want 55", got)
	}
}

func TestHandleChat_GuardRejects(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{result: engine.QueryResult{Answer: "a"}}
	s := newChatTestServer(fake, nil)

	w := postChat(t, s, `{"query":"anything; DROP TABLE vectors"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if fake.calls != 0 {
		t.Error("guarded query reached the engine")
	}
}

func TestHandleChat_RecordsHistory(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	fake := &fakeAnswerer{result: engine.QueryResult{
		Answer:  "answer",
		Sources: []string{"doc.pdf"},
	}}
	s := newChatTestServer(fake, &Config{History: history})

	postChat(t, s, `{"query":"q","caller_id":"alice"}`)

	if len(history.appended) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history.appended))
	}
	got := history.appended[0]
	if got.Caller != "alice" || got.Query != "q" || got.Answer != "answer" {
		t.Errorf("recorded exchange = %+v", got)
	}
}

func TestHandleChat_ErrorsNotRecorded(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	s := newChatTestServer(&fakeAnswerer{result: engine.QueryResult{
		Error:   engine.ErrBackend,
		Sources: []string{},
	}}, &Config{History: history})

	postChat(t, s, `{"query":"q"}`)

	if len(history.appended) != 0 {
		t.Errorf("history entries = %d, want 0", len(history.appended))
	}
}
