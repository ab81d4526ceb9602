package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
)

// ExecutionInfo is the registry's view of one run.
type ExecutionInfo struct {
	ExecutionID string                `json:"execution_id"`
	WorkflowID  string                `json:"workflow_id"`
	State       reflow.ExecutionState `json:"state"`
	StartedAt   time.Time             `json:"started_at"`
}

type executionEntry struct {
	info       ExecutionInfo
	cancelled  atomic.Bool
	finishedAt time.Time
}

// ExecutionRegistry tracks concurrent workflow executions. It is the only
// mutable state shared across runs besides the event bus.
type ExecutionRegistry struct {
	mu      sync.RWMutex
	entries map[string]*executionEntry
	stop    chan struct{}
}

func NewExecutionRegistry() *ExecutionRegistry {
	return &ExecutionRegistry{entries: make(map[string]*executionEntry)}
}

// Track pre-registers a run in pending state so callers can look it up (and
// cancel it) before the execution goroutine reaches the orchestrator. An
// already-tracked id is left untouched.
func (r *ExecutionRegistry) Track(executionID, workflowID string) {
	r.mu.Lock()
	if _, ok := r.entries[executionID]; !ok {
		r.entries[executionID] = &executionEntry{info: ExecutionInfo{
			ExecutionID: executionID,
			WorkflowID:  workflowID,
			State:       reflow.StatePending,
			StartedAt:   time.Now(),
		}}
	}
	r.mu.Unlock()
}

func (r *ExecutionRegistry) register(executionID, workflowID string) *executionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	// A tracked entry is promoted in place so a cancellation that arrived
	// before the run started is not lost.
	if e, ok := r.entries[executionID]; ok {
		e.info.WorkflowID = workflowID
		e.info.State = reflow.StateRunning
		e.info.StartedAt = time.Now()
		return e
	}
	e := &executionEntry{info: ExecutionInfo{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		State:       reflow.StateRunning,
		StartedAt:   time.Now(),
	}}
	r.entries[executionID] = e
	return e
}

func (r *ExecutionRegistry) setState(executionID string, state reflow.ExecutionState) {
	r.mu.Lock()
	if e, ok := r.entries[executionID]; ok {
		e.info.State = state
		switch state {
		case reflow.StateCompleted, reflow.StateFailed, reflow.StateCancelled:
			e.finishedAt = time.Now()
		}
	}
	r.mu.Unlock()
}

// MarkFailed records a terminal failed state for a run that never reached
// the orchestrator, so the sweep can evict it.
func (r *ExecutionRegistry) MarkFailed(executionID string) {
	r.setState(executionID, reflow.StateFailed)
}

// Cancel flips the execution's cancellation flag. The orchestrator checks
// it at each block boundary; an in-flight block finishes but its successor
// never starts.
func (r *ExecutionRegistry) Cancel(executionID string) error {
	r.mu.RLock()
	e, ok := r.entries[executionID]
	r.mu.RUnlock()
	if !ok {
		return reflow.ErrExecutionNotFound
	}
	e.cancelled.Store(true)
	return nil
}

// Cancelled reports the cancellation flag for a run.
func (r *ExecutionRegistry) Cancelled(executionID string) bool {
	r.mu.RLock()
	e, ok := r.entries[executionID]
	r.mu.RUnlock()
	return ok && e.cancelled.Load()
}

// Get returns the registry info for a run.
func (r *ExecutionRegistry) Get(executionID string) (ExecutionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[executionID]
	if !ok {
		return ExecutionInfo{}, false
	}
	return e.info, true
}

// List returns info for all known runs.
func (r *ExecutionRegistry) List() []ExecutionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ExecutionInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	return out
}

// StartGC evicts finished runs older than ttl on a periodic sweep, keeping
// the registry bounded in a long-lived process.
func (r *ExecutionRegistry) StartGC(ttl time.Duration) {
	r.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.collectExpired(ttl)
			}
		}
	}()
}

// StopGC terminates the sweep goroutine.
func (r *ExecutionRegistry) StopGC() {
	if r.stop != nil {
		close(r.stop)
	}
}

func (r *ExecutionRegistry) collectExpired(ttl time.Duration) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if !e.finishedAt.IsZero() && now.Sub(e.finishedAt) > ttl {
			delete(r.entries, id)
		}
	}
}
