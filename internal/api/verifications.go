package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ResolveRequest is the JSON body for resolving a pending verification.
type ResolveRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

func (s *Server) listVerifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.verifier.Pending())
}

// resolveVerification unblocks the workflow parked on this request.
func (s *Server) resolveVerification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolve JSON: "+err.Error())
		return
	}

	if err := s.verifier.Resolve(id, req.Approved, req.Feedback); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": id, "approved": req.Approved})
}
