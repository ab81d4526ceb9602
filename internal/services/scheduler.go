package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/soyeon/reflow/internal/reflow"
	"github.com/soyeon/reflow/internal/repository"
)

// LaunchFunc starts one execution of a workflow. The scheduler never talks
// to the orchestrator directly; the server wires this through the same path
// API-triggered runs take (concurrency limiter, run buffer, execution).
type LaunchFunc func(ctx context.Context, wf *reflow.ReasoningWorkflow)

// Scheduler triggers workflow runs on cron expressions. A workflow opts in
// by carrying a "schedule" entry in its metadata, e.g.
//
//	metadata:
//	  schedule: "0 */6 * * *"
type Scheduler struct {
	cron   *cron.Cron
	repo   repository.WorkflowRepository
	launch LaunchFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID // workflow id -> cron entry
}

func NewScheduler(repo repository.WorkflowRepository, launch LaunchFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		repo:    repo,
		launch:  launch,
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers schedules for all stored workflows and starts the cron
// runner.
func (s *Scheduler) Start(ctx context.Context) error {
	wfs, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing workflows for scheduling: %w", err)
	}
	for _, wf := range wfs {
		if err := s.Sync(wf); err != nil {
			slog.Warn("skipping workflow schedule", "workflow_id", wf.ID, "err", err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for in-flight triggers to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sync reconciles one workflow's schedule: it registers the cron entry when
// the workflow carries a schedule, replaces a stale one, and removes the
// entry when the schedule is gone.
func (s *Scheduler) Sync(wf *reflow.ReasoningWorkflow) error {
	spec, _ := wf.Metadata["schedule"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[wf.ID]; ok {
		s.cron.Remove(id)
		delete(s.entries, wf.ID)
	}
	if spec == "" {
		return nil
	}

	wfID := wf.ID
	entryID, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		current, err := s.repo.Get(ctx, wfID)
		if err != nil {
			slog.Warn("scheduled workflow no longer available", "workflow_id", wfID, "err", err)
			return
		}
		slog.Info("scheduled run triggered", "workflow_id", wfID)
		s.launch(ctx, current)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for workflow %q: %w", spec, wf.ID, err)
	}
	s.entries[wf.ID] = entryID
	return nil
}

// Remove drops a workflow's cron entry if present.
func (s *Scheduler) Remove(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[workflowID]; ok {
		s.cron.Remove(id)
		delete(s.entries, workflowID)
	}
}
