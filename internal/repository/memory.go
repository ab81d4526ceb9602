package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
)

// MemoryRepository is the in-process WorkflowRepository used by the server
// and by tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	workflows map[string]*reflow.ReasoningWorkflow
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{workflows: make(map[string]*reflow.ReasoningWorkflow)}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*reflow.ReasoningWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return wf, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*reflow.ReasoningWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*reflow.ReasoningWorkflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Save(_ context.Context, wf *reflow.ReasoningWorkflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now
	r.workflows[wf.ID] = wf
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(r.workflows, id)
	return nil
}
