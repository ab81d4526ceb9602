package services

import (
	"context"
	"sync"
	"sync/atomic"
)

// ConcurrencyLimits bounds simultaneous workflow executions.
type ConcurrencyLimits struct {
	GlobalMax   int `yaml:"global_max"`
	PerWorkflow int `yaml:"per_workflow"`
}

// ConcurrencyLimiter controls how many workflow executions run at once,
// with channel-based counting semaphores at two levels: global and
// per-workflow.
type ConcurrencyLimiter struct {
	global      chan struct{}
	perWorkflow map[string]chan struct{}
	mu          sync.Mutex
	limits      ConcurrencyLimits
	activeCount atomic.Int64
}

func NewConcurrencyLimiter(limits ConcurrencyLimits) *ConcurrencyLimiter {
	if limits.GlobalMax <= 0 {
		limits.GlobalMax = 10
	}
	if limits.PerWorkflow <= 0 {
		limits.PerWorkflow = 3
	}
	return &ConcurrencyLimiter{
		global:      make(chan struct{}, limits.GlobalMax),
		perWorkflow: make(map[string]chan struct{}),
		limits:      limits,
	}
}

// Acquire blocks until both global and per-workflow slots are available, or
// returns the context error.
func (c *ConcurrencyLimiter) Acquire(ctx context.Context, workflowID string) error {
	select {
	case c.global <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	wfCh := c.getOrCreateWorkflowChan(workflowID)
	select {
	case wfCh <- struct{}{}:
		c.activeCount.Add(1)
		return nil
	case <-ctx.Done():
		<-c.global
		return ctx.Err()
	}
}

// Release returns both slots.
func (c *ConcurrencyLimiter) Release(workflowID string) {
	c.activeCount.Add(-1)

	c.mu.Lock()
	if ch, ok := c.perWorkflow[workflowID]; ok {
		select {
		case <-ch:
		default:
		}
	}
	c.mu.Unlock()

	select {
	case <-c.global:
	default:
	}
}

// ConcurrencyStats reports current usage.
type ConcurrencyStats struct {
	ActiveRuns  int `json:"active_runs"`
	GlobalMax   int `json:"global_max"`
	PerWorkflow int `json:"per_workflow"`
}

func (c *ConcurrencyLimiter) Stats() ConcurrencyStats {
	return ConcurrencyStats{
		ActiveRuns:  int(c.activeCount.Load()),
		GlobalMax:   c.limits.GlobalMax,
		PerWorkflow: c.limits.PerWorkflow,
	}
}

func (c *ConcurrencyLimiter) getOrCreateWorkflowChan(id string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.perWorkflow[id]
	if !ok {
		ch = make(chan struct{}, c.limits.PerWorkflow)
		c.perWorkflow[id] = ch
	}
	return ch
}
