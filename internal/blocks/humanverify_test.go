package blocks

import (
	"context"
	"testing"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
	"github.com/soyeon/reflow/internal/verification"
)

func verifyBlock(timeoutSeconds float64) *reflow.LogicBlock {
	return &reflow.LogicBlock{
		ID:         "hv",
		Type:       reflow.BlockTypeHumanVerification,
		Label:      "Check before refund",
		Properties: map[string]any{"timeout_seconds": timeoutSeconds},
	}
}

func TestHumanVerification_Approved(t *testing.T) {
	mgr := verification.NewManager()
	var published []reflow.Event
	deps := Deps{Verifier: mgr, Publish: func(ev reflow.Event) { published = append(published, ev) }}
	p := &HumanVerificationProcessor{deps: deps}

	go func() {
		// Wait until the request is parked, then approve it.
		for i := 0; i < 100; i++ {
			if pending := mgr.Pending(); len(pending) == 1 {
				mgr.Resolve(pending[0].ID, true, "looks good")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	res, err := p.Process(context.Background(), verifyBlock(5), newEC(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Successful || res.Confidence != 1.0 {
		t.Fatalf("approved result = %+v", res)
	}
	if res.ContextUpdates["verification_approved"] != true {
		t.Error("verification_approved not true")
	}
	if res.ContextUpdates["verification_feedback"] != "looks good" {
		t.Errorf("feedback = %v", res.ContextUpdates["verification_feedback"])
	}

	if len(published) != 1 || published[0].Type != reflow.EventVerificationRequired {
		t.Fatalf("published events = %+v", published)
	}
	if published[0].Payload["request_id"] == "" {
		t.Error("verification event missing request_id")
	}
}

func TestHumanVerification_Rejected(t *testing.T) {
	mgr := verification.NewManager()
	p := &HumanVerificationProcessor{deps: Deps{Verifier: mgr}}

	go func() {
		for i := 0; i < 100; i++ {
			if pending := mgr.Pending(); len(pending) == 1 {
				mgr.Resolve(pending[0].ID, false, "numbers do not add up")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	res, err := p.Process(context.Background(), verifyBlock(5), newEC(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful || res.Confidence != 0.0 {
		t.Fatalf("rejected result = %+v", res)
	}
	if res.ContextUpdates["verification_approved"] != false {
		t.Error("verification_approved should be false")
	}
}

func TestHumanVerification_TimeoutIsFailedResultNotError(t *testing.T) {
	mgr := verification.NewManager()
	p := &HumanVerificationProcessor{deps: Deps{Verifier: mgr}}

	res, err := p.Process(context.Background(), verifyBlock(0.05), newEC(nil))
	if err != nil {
		t.Fatalf("timeout must not surface as a processor error, got %v", err)
	}
	if res.Successful {
		t.Fatal("timed-out verification must be unsuccessful")
	}
	if res.Metadata["timeout"] != true {
		t.Error("timeout metadata missing")
	}
}
