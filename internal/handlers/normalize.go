package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/models"
)

// HandleNormalize normalizes one extracted bean record. The dictionary
// version comes from ?version= and falls back to the configured default.
func (h *Handler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.service == nil {
		h.writeError(w, "Normalization is not enabled", http.StatusNotFound)
		return
	}

	var bean models.BeanInfo
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&bean); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	version := strings.TrimSpace(r.URL.Query().Get("version"))
	if version == "" {
		version = h.defaultVersion
	}

	result, err := h.service.NormalizeBean(r.Context(), version, bean)
	if err != nil {
		if errors.Is(err, dictionary.ErrVersionNotFound) {
			h.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, "Failed to normalize: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
