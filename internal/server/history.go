package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/peoplesagent/pagent/internal/engine"
	"github.com/peoplesagent/pagent/internal/logging"
	"github.com/peoplesagent/pagent/internal/store"
)

// defaultHistoryLimit is the number of exchanges returned by GET /api/history
// when no limit parameter is given.
const defaultHistoryLimit = 20

// maxHistoryLimit caps the limit parameter.
const maxHistoryLimit = 200

// handleHistory handles GET /api/history. Optional query parameters:
// caller (filter to one caller) and limit (1..200, default 20).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := historyResponse{Exchanges: []store.Exchange{}}

	if s.cfg.History != nil {
		caller := r.URL.Query().Get("caller")
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxHistoryLimit {
				http.Error(w, "limit must be an integer between 1 and 200", http.StatusBadRequest)
				return
			}
			limit = n
		}

		exs, err := s.cfg.History.Recent(r.Context(), caller, limit)
		if err != nil {
			log.Error("history read failed", slog.Any("error", err))
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		if exs != nil {
			resp.Exchanges = exs
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("history encode error", slog.Any("error", err))
	}
}

// exchangeFromResult converts an engine result into a history record.
func exchangeFromResult(caller, query string, result engine.QueryResult) store.Exchange {
	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	return store.Exchange{
		Caller:  caller,
		Query:   query,
		Answer:  result.Answer,
		Sources: sources,
		Cached:  result.Cached,
	}
}
