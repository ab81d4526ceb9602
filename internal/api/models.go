package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// getModelCapabilities probes (or serves the cached record for) one model.
// First call for a model triggers a live probe round; probe failures fall
// back to the static table, never to an error response.
func (s *Server) getModelCapabilities(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "provider") + "/" + chi.URLParam(r, "model")

	caps, err := s.detector.GetModelCapabilities(r.Context(), modelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, caps)
}
