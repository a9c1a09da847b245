package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// fakeSourceLister returns canned document links.
type fakeSourceLister struct {
	links []string
	err   error
}

func (f *fakeSourceLister) ListSources(_ context.Context, _ int) ([]string, error) {
	return f.links, f.err
}

func newUpdatesTestServer(lister *fakeSourceLister) *Server {
	return &Server{
		cfg:     &Config{Sources: lister},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func TestHandleUpdates(t *testing.T) {
	t.Parallel()

	s := newUpdatesTestServer(&fakeSourceLister{links: []string{
		"https://gov.example/docs/Pension%20Scheme%202025.pdf",
		"https://gov.example/docs/housing-policy.pdf",
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/updates", nil)
	w := httptest.NewRecorder()
	s.handleUpdates(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp updatesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(resp.Updates))
	}
	if resp.Updates[0].Title != "Pension Scheme 2025" {
		t.Errorf("title = %q, want unescaped name without extension", resp.Updates[0].Title)
	}
	if resp.Updates[0].URL != "https://gov.example/docs/Pension%20Scheme%202025.pdf" {
		t.Errorf("url = %q", resp.Updates[0].URL)
	}
}

func TestHandleUpdates_IndexUnavailable(t *testing.T) {
	t.Parallel()

	s := newUpdatesTestServer(&fakeSourceLister{err: errors.New("qdrant down")})

	req := httptest.NewRequest(http.MethodGet, "/api/updates", nil)
	w := httptest.NewRecorder()
	s.handleUpdates(w, req)

	// The feed degrades to empty rather than failing.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp updatesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Updates) != 0 {
		t.Errorf("updates = %v, want empty", resp.Updates)
	}
}

func TestTitleFromLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link string
		want string
	}{
		{"https://gov.example/a/b/Benefit%20Guide.pdf", "Benefit Guide"},
		{"https://gov.example/plain.pdf", "plain"},
		{"no-slashes.pdf", "no-slashes"},
		{"https://gov.example/page", "page"},
		{"https://gov.example/", "https://gov.example/"},
	}
	for _, tt := range tests {
		if got := titleFromLink(tt.link); got != tt.want {
			t.Errorf("titleFromLink(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}
