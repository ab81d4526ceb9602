package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soyeon/reflow/internal/engine"
	"github.com/soyeon/reflow/internal/reflow"
	"github.com/soyeon/reflow/internal/repository"
	"github.com/soyeon/reflow/internal/services"
)

// RunRequest is the JSON body for workflow execution. When Workflow is
// provided, it is executed directly instead of being looked up by id.
type RunRequest struct {
	Inputs      map[string]any            `json:"inputs"`
	Workflow    *reflow.ReasoningWorkflow `json:"workflow,omitempty"`
	StopOnError bool                      `json:"stop_on_error,omitempty"`
}

// runWorkflow starts a workflow execution in the background and returns the
// run id immediately. Clients connect to GET /api/runs/{id}/events to stream
// execution events via SSE.
func (s *Server) runWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RunRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			req.Inputs = nil
		}
	}

	var wf *reflow.ReasoningWorkflow
	if req.Workflow != nil {
		wf = req.Workflow
		if wf.ID == "" {
			wf.ID = id
		}
	} else {
		var err error
		wf, err = s.repo.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, "workflow not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	// Reject structurally broken workflows before accepting the run.
	if err := wf.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := engine.ResolveOrder(wf); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := s.Launch(wf, req.Inputs, req.StopOnError)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// Launch registers a run buffer and starts execution in the background,
// gated by the concurrency limiter. It is also the scheduler's entry point.
func (s *Server) Launch(wf *reflow.ReasoningWorkflow, inputs map[string]any, stopOnError bool) string {
	runID := reflow.NewID("run")
	s.runs.Register(runID)
	// Track the run before returning the id so an immediate cancel or
	// status lookup never races the background goroutine.
	s.orch.Registry().Track(runID, wf.ID)

	go func() {
		ctx := context.Background()
		if err := s.limiter.Acquire(ctx, wf.ID); err != nil {
			s.orch.Registry().MarkFailed(runID)
			s.runs.Complete(runID, map[string]any{"final_state": "failed", "error": err.Error()})
			return
		}
		defer s.limiter.Release(wf.ID)

		opts := []engine.ExecOption{engine.WithExecutionID(runID)}
		if stopOnError {
			opts = append(opts, engine.WithStopOnError())
		}
		if _, err := s.orch.Execute(ctx, wf, inputs, opts...); err != nil {
			// Validation failures caught before any event was emitted.
			slog.Error("background run failed to start", "run_id", runID, "err", err)
			s.orch.Registry().MarkFailed(runID)
			s.runs.Complete(runID, map[string]any{"final_state": "failed", "error": err.Error()})
		}
	}()

	return runID
}

func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Registry().List())
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	info, ok := s.orch.Registry().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orch.Registry().Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"run_id": id, "status": "cancelling"})
}

// streamRunEvents streams execution events for a run via SSE. Supports
// initial connection (replays all buffered events) and reconnection (replays
// from Last-Event-ID onward). The run continues in the background regardless
// of client connection state.
func (s *Server) streamRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	lastSeq := -1
	if idStr := r.Header.Get("Last-Event-ID"); idStr != "" {
		if n, err := strconv.Atoi(idStr); err == nil {
			lastSeq = n
		}
	}
	startSeq := lastSeq + 1

	events, notify, done, donePayload, found := s.runs.Subscribe(runID, startSeq)
	if !found {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, ev := range events {
		writeSSEEvent(w, ev)
	}
	flusher.Flush()

	if done {
		writeDoneEvent(w, donePayload)
		flusher.Flush()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			// Client disconnected; run continues in background.
			return
		case <-notify:
			nextSeq := startSeq + len(events)
			events, notify, done, donePayload, found = s.runs.Subscribe(runID, nextSeq)
			if !found {
				return
			}
			startSeq = nextSeq

			for _, ev := range events {
				writeSSEEvent(w, ev)
			}
			flusher.Flush()

			if done {
				writeDoneEvent(w, donePayload)
				flusher.Flush()
				return
			}
		}
	}
}

// writeSSEEvent writes a single event as an SSE frame with the seq as the id.
func writeSSEEvent(w http.ResponseWriter, ev services.EventRecord) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
}

// writeDoneEvent writes the final "done" SSE event.
func writeDoneEvent(w http.ResponseWriter, payload map[string]any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
}
