// Package handlers serves the unknown queue webhook receiver and the
// normalization endpoint over HTTP.
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bean-lens/beanlens/internal/metrics"
	"github.com/bean-lens/beanlens/internal/normalizer"
	"github.com/bean-lens/beanlens/internal/queue"
	"github.com/bean-lens/beanlens/internal/storage"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Options wires the handler's collaborators. Service may be nil, which
// disables /normalize.
type Options struct {
	Sink           queue.Sink
	Store          *storage.RecentStore
	Token          string
	Recorder       *metrics.Recorder
	Service        *normalizer.Service
	DefaultVersion string
}

type Handler struct {
	sink           queue.Sink
	store          *storage.RecentStore
	token          string
	recorder       *metrics.Recorder
	service        *normalizer.Service
	defaultVersion string
	now            func() time.Time
}

func New(opts Options) *Handler {
	store := opts.Store
	if store == nil {
		store = storage.New(500)
	}
	return &Handler{
		sink:           opts.Sink,
		store:          store,
		token:          opts.Token,
		recorder:       opts.Recorder,
		service:        opts.Service,
		defaultVersion: opts.DefaultVersion,
		now:            time.Now,
	}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/unknown-queue", h.HandleUnknownQueue)
	mux.HandleFunc("/unknown-queue/recent", h.HandleRecent)
	mux.HandleFunc("/unknown-queue/events/", h.HandleEventDetail)
	mux.HandleFunc("/normalize", h.HandleNormalize)
	if h.recorder != nil {
		mux.Handle("/metrics", h.recorder.Handler())
	}
	return mux
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "code", code)
	}
	h.writeJSON(w, code, map[string]string{"detail": message})
}

// authorized accepts a bearer token or X-Webhook-Token. With no token
// configured every request is accepted.
func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	presented := r.Header.Get("X-Webhook-Token")
	if auth := r.Header.Get("Authorization"); presented == "" && strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}
