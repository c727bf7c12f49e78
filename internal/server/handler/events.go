package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// EventService provides read access to the ledger event log.
type EventService interface {
	ListRecent(ctx context.Context, limit int) ([]domain.LedgerEvent, error)
}

// EventHandler serves the event log endpoint.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// ListEvents returns recent ledger events, newest first.
// GET /api/events?limit=50
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
