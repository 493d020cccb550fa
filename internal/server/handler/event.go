package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// EventDirectory serves event metadata, catalog merged with the local
// mirror, plus the admin create and delete operations.
type EventDirectory interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.EventMeta, error)
	GetByID(ctx context.Context, eventID uint64) (domain.EventMeta, error)
	Create(ctx context.Context, meta domain.EventMeta) (domain.EventMeta, error)
	Delete(ctx context.Context, eventID uint64) error
}

// EventHandler serves event-catalog metadata.
type EventHandler struct {
	events EventDirectory
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventDirectory, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// ListEvents returns known events with pagination.
// GET /api/events?limit=50&offset=0
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	events, err := h.events.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []domain.EventMeta{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent returns one event's metadata.
// GET /api/events/{eventId}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	meta, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get event failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// CreateEvent registers event metadata locally and pushes it to the
// catalog.
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var meta domain.EventMeta
	if err := decodeJSON(r, &meta); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.events.Create(r.Context(), meta)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid event payload")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create event failed",
			slog.Uint64("event_id", meta.EventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteEvent removes an event from the catalog and the local mirror.
// DELETE /api/events/{eventId}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.events.Delete(r.Context(), eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: delete event failed",
			slog.Uint64("event_id", eventID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
