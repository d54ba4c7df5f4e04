package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bean-lens/beanlens/internal/queue"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// receiver status labels for metrics
const (
	statusAccepted     = "accepted"
	statusUnauthorized = "unauthorized"
	statusInvalid      = "invalid"
	statusFailed       = "failed"
)

// DefaultReceivedSource tags received events that carry no source
const DefaultReceivedSource = "webhook"

// HandleUnknownQueue accepts one event per POST
func (h *Handler) HandleUnknownQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		h.recorder.Received(statusUnauthorized)
		h.writeError(w, "invalid webhook token", http.StatusUnauthorized)
		return
	}

	var event queue.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&event); err != nil {
		h.recorder.Received(statusInvalid)
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := event.Validate(); err != nil {
		h.recorder.Received(statusInvalid)
		h.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	now := h.now().UTC()
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if event.Source == "" {
		event.Source = DefaultReceivedSource
	}

	if h.sink != nil {
		if err := h.sink.Append(r.Context(), event); err != nil {
			h.recorder.Received(statusFailed)
			slog.Error("Failed to store received event", "domain", event.Domain, "err", err)
			h.writeError(w, "Failed to store event", http.StatusInternalServerError)
			return
		}
	}

	received := h.store.Add(event, now)
	h.recorder.Received(statusAccepted)
	slog.Info("Received unknown queue event", "id", received.ID, "domain", event.Domain, "reason", event.Reason, "source", event.Source)

	h.writeJSON(w, http.StatusOK, map[string]int64{"id": received.ID})
}

// HandleRecent lists the most recently received events, newest first
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		h.writeError(w, "invalid webhook token", http.StatusUnauthorized)
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentLimit {
			h.writeError(w, "limit must be an integer between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	h.writeJSON(w, http.StatusOK, h.store.Recent(limit))
}

// HandleEventDetail returns one held event by id
func (h *Handler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		h.writeError(w, "invalid webhook token", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/unknown-queue/events/"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid event id", http.StatusBadRequest)
		return
	}
	received, ok := h.store.Get(id)
	if !ok {
		h.writeError(w, "Event not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, received)
}
