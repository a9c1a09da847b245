package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/peoplesagent/pagent/internal/logging"
)

// maxUpdates bounds the GET /api/updates feed.
const maxUpdates = 5

// handleUpdates handles GET /api/updates: the most recently indexed source
// documents, deduplicated by link. The feed degrades to empty when the index
// is unreachable — it is a convenience surface, not a dependency.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := updatesResponse{Updates: []update{}}

	if s.cfg.Sources != nil {
		links, err := s.cfg.Sources.ListSources(r.Context(), maxUpdates)
		if err != nil {
			log.Warn("updates feed unavailable", slog.Any("error", err))
		}
		for _, link := range links {
			resp.Updates = append(resp.Updates, update{
				Title: titleFromLink(link),
				URL:   link,
				Date:  "Recently Indexed",
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("updates encode error", slog.Any("error", err))
	}
}

// titleFromLink derives a display title from a document link: the final path
// segment, URL-unescaped, with the .pdf suffix stripped.
func titleFromLink(link string) string {
	title := link
	if i := strings.LastIndex(title, "/"); i >= 0 {
		title = title[i+1:]
	}
	if unescaped, err := url.PathUnescape(title); err == nil {
		title = unescaped
	}
	title = strings.TrimSuffix(title, ".pdf")
	if title == "" {
		return link
	}
	return title
}
