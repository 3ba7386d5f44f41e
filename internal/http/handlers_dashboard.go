package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/karansanghvi/spendly/internal/auth"
	"github.com/karansanghvi/spendly/internal/core"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	records, err := s.expenses.ListExpenses(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryJSON(core.BuildSummary(records, topDashboardExpenses)))
}

// handleDashboardStream serves the owner's dashboard as server-sent
// events: the current summary immediately, then a fresh one on every
// change to the underlying collection. The subscription is dropped as
// soon as the client disconnects.
func (s *Server) handleDashboardStream(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// ResponseController reaches Flush through middleware wrappers that
	// a plain type assertion on w would miss.
	rc := http.NewResponseController(w)

	sub := s.hub.Subscribe(userID)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Initial snapshot so the client renders without waiting for a change.
	records, err := s.expenses.ListExpenses(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load initial snapshot",
			"user_id", userID, "error", err)
		return
	}
	if err := writeSummaryEvent(w, records); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		slog.ErrorContext(r.Context(), "Streaming unsupported by connection",
			"user_id", userID, "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSummaryEvent(w, snapshot); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSummaryEvent(w http.ResponseWriter, records []core.ExpenseRecord) error {
	payload, err := json.Marshal(toSummaryJSON(core.BuildSummary(records, topDashboardExpenses)))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: summary\ndata: %s\n\n", payload)
	return err
}
