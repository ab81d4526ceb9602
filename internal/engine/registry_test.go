package engine

import (
	"context"
	"testing"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
)

func TestRegistry_TrackExposesPendingRun(t *testing.T) {
	r := NewExecutionRegistry()
	r.Track("run-1", "wf-1")

	info, ok := r.Get("run-1")
	if !ok {
		t.Fatal("tracked run not found")
	}
	if info.State != reflow.StatePending {
		t.Fatalf("state = %s, want pending", info.State)
	}
	if info.WorkflowID != "wf-1" {
		t.Fatalf("workflow id = %s", info.WorkflowID)
	}
}

func TestRegistry_CancelBeforeStartIsHonoured(t *testing.T) {
	p := &scriptedProvider{replies: []string{"Answer: ok\nCONFIDENCE: 80"}}
	orch, _ := newTestOrchestrator(p)

	// The run id is handed out (and cancellable) before execution starts.
	orch.Registry().Track("run-early", "wf-linear")
	if err := orch.Registry().Cancel("run-early"); err != nil {
		t.Fatal(err)
	}

	res, err := orch.Execute(context.Background(), linearWorkflow(), nil, WithExecutionID("run-early"))
	if err != nil {
		t.Fatal(err)
	}
	if res.FinalState != reflow.StateCancelled {
		t.Fatalf("final state = %s, want cancelled", res.FinalState)
	}
	if len(res.BlockResults) != 0 {
		t.Fatalf("block results = %d, want 0", len(res.BlockResults))
	}
}

func TestRegistry_MarkFailedSettlesTrackedRun(t *testing.T) {
	r := NewExecutionRegistry()
	r.Track("run-1", "wf-1")
	r.MarkFailed("run-1")

	info, _ := r.Get("run-1")
	if info.State != reflow.StateFailed {
		t.Fatalf("state = %s, want failed", info.State)
	}

	time.Sleep(time.Millisecond)
	r.collectExpired(0)
	if _, ok := r.Get("run-1"); ok {
		t.Fatal("failed run should be evicted")
	}
}

func TestRegistry_CollectExpiredKeepsLiveRuns(t *testing.T) {
	r := NewExecutionRegistry()
	r.register("run-live", "wf-1")
	r.register("run-done", "wf-1")
	r.setState("run-done", reflow.StateCompleted)

	time.Sleep(time.Millisecond)
	r.collectExpired(0)

	if _, ok := r.Get("run-live"); !ok {
		t.Fatal("running entry must survive the sweep")
	}
	if _, ok := r.Get("run-done"); ok {
		t.Fatal("finished entry past its ttl must be evicted")
	}
}
