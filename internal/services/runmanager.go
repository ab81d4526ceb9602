// Package services carries the run-facing infrastructure around the engine:
// the per-run event buffer backing the SSE endpoint, the concurrency
// limiter, and the cron scheduler.
package services

import (
	"sync"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
)

// EventRecord is a sequenced execution event stored in the per-run buffer.
type EventRecord struct {
	Seq       int            `json:"seq"`
	Type      string         `json:"type"`
	BlockID   string         `json:"block_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// runEntry holds the in-memory state for one run: buffered events, done
// state, and subscriber wakeup channels.
type runEntry struct {
	mu          sync.RWMutex
	events      []EventRecord
	done        bool
	donePayload map[string]any
	subs        []chan struct{} // closed-and-replaced on each new event
	completedAt time.Time
}

func (e *runEntry) snapshot(startSeq int) (events []EventRecord, notify <-chan struct{}, done bool, donePayload map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if startSeq < len(e.events) {
		events = make([]EventRecord, len(e.events)-startSeq)
		copy(events, e.events[startSeq:])
	}

	ch := make(chan struct{})
	e.subs = append(e.subs, ch)
	return events, ch, e.done, e.donePayload
}

// RunManager buffers execution events per run id so SSE clients can attach
// late or reconnect with Last-Event-ID. Completed buffers are kept for a
// TTL, then garbage-collected.
type RunManager struct {
	mu   sync.RWMutex
	runs map[string]*runEntry
	ttl  time.Duration
	stop chan struct{}
}

func NewRunManager(ttl time.Duration) *RunManager {
	rm := &RunManager{
		runs: make(map[string]*runEntry),
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go rm.gc()
	return rm
}

// Stop terminates the GC goroutine.
func (rm *RunManager) Stop() {
	close(rm.stop)
}

// Register creates the buffer for a run. Call before launching execution.
func (rm *RunManager) Register(runID string) {
	rm.mu.Lock()
	rm.runs[runID] = &runEntry{}
	rm.mu.Unlock()
}

// Consume attaches the manager to the engine's broadcast bus: every event
// for a registered run is appended to that run's buffer, and terminal
// events mark the run done. Events for unregistered runs are ignored.
func (rm *RunManager) Consume(ev reflow.Event) {
	rec := EventRecord{
		Type:      string(ev.Type),
		BlockID:   ev.BlockID,
		Payload:   ev.Payload,
		Timestamp: ev.Timestamp,
	}
	rm.Append(ev.ExecutionID, rec)
	if ev.Type == reflow.EventCompleted || ev.Type == reflow.EventFailed {
		rm.Complete(ev.ExecutionID, ev.Payload)
	}
}

// Append adds an event to the run's buffer and wakes all subscribers.
func (rm *RunManager) Append(runID string, ev EventRecord) {
	rm.mu.RLock()
	entry, ok := rm.runs[runID]
	rm.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	ev.Seq = len(entry.events)
	entry.events = append(entry.events, ev)
	subs := entry.subs
	entry.subs = nil
	entry.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Complete marks a run done with the given payload and wakes subscribers.
func (rm *RunManager) Complete(runID string, payload map[string]any) {
	rm.mu.RLock()
	entry, ok := rm.runs[runID]
	rm.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.done = true
	entry.donePayload = payload
	entry.completedAt = time.Now()
	subs := entry.subs
	entry.subs = nil
	entry.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Subscribe returns buffered events from startSeq onward, a channel closed
// when new events arrive, and the run's done state. found=false means the
// run id is not tracked.
func (rm *RunManager) Subscribe(runID string, startSeq int) (events []EventRecord, notify <-chan struct{}, done bool, donePayload map[string]any, found bool) {
	rm.mu.RLock()
	entry, ok := rm.runs[runID]
	rm.mu.RUnlock()
	if !ok {
		return nil, nil, false, nil, false
	}
	events, notify, done, donePayload = entry.snapshot(startSeq)
	return events, notify, done, donePayload, true
}

func (rm *RunManager) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.C:
			rm.collectExpired()
		}
	}
}

func (rm *RunManager) collectExpired() {
	now := time.Now()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for id, entry := range rm.runs {
		entry.mu.RLock()
		expired := entry.done && now.Sub(entry.completedAt) > rm.ttl
		entry.mu.RUnlock()
		if expired {
			delete(rm.runs, id)
		}
	}
}
