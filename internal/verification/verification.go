// Package verification implements the human-approval collaborator consumed
// by HumanVerification blocks: a request is parked until an operator
// resolves it or its timeout elapses.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
)

// Request describes one pending human verification.
type Request struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Timeout     time.Duration  `json:"timeout"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Result is the operator's decision.
type Result struct {
	Approved  bool      `json:"approved"`
	Feedback  string    `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Verifier is the collaborator contract. RequestVerification blocks the
// calling goroutine (a suspension point, not a thread block) until the
// request is resolved, times out, or the context is cancelled. A timeout
// returns reflow.ErrVerificationTimeout.
type Verifier interface {
	RequestVerification(ctx context.Context, req *Request) (*Result, error)
}

type pendingRequest struct {
	req *Request
	ch  chan *Result
}

// Manager is the in-process Verifier. Operators resolve requests through
// the HTTP API, which calls Resolve.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func NewManager() *Manager {
	return &Manager{pending: make(map[string]*pendingRequest)}
}

// RequestVerification registers the request and parks until resolution.
func (m *Manager) RequestVerification(ctx context.Context, req *Request) (*Result, error) {
	if req.ID == "" {
		req.ID = reflow.NewID("verify")
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if req.Timeout <= 0 {
		req.Timeout = 5 * time.Minute
	}

	p := &pendingRequest{req: req, ch: make(chan *Result, 1)}
	m.mu.Lock()
	m.pending[req.ID] = p
	m.mu.Unlock()

	slog.Info("human verification requested",
		"request_id", req.ID, "source", req.Source, "timeout", req.Timeout)

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()
	defer m.remove(req.ID)

	select {
	case res := <-p.ch:
		return res, nil
	case <-timer.C:
		return nil, reflow.ErrVerificationTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve unblocks a pending request with the operator's decision.
func (m *Manager) Resolve(requestID string, approved bool, feedback string) error {
	m.mu.Lock()
	p, ok := m.pending[requestID]
	if ok {
		delete(m.pending, requestID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending verification %q", requestID)
	}
	p.ch <- &Result{Approved: approved, Feedback: feedback, Timestamp: time.Now()}
	return nil
}

// Pending lists requests currently awaiting resolution.
func (m *Manager) Pending() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p.req)
	}
	return out
}

func (m *Manager) remove(requestID string) {
	m.mu.Lock()
	delete(m.pending, requestID)
	m.mu.Unlock()
}
