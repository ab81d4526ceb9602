package blocks

import (
	"context"
	"testing"

	"github.com/soyeon/reflow/internal/reflow"
)

func exitBlock(props map[string]any) *reflow.LogicBlock {
	return &reflow.LogicBlock{ID: "exit", Type: reflow.BlockTypeExit, Properties: props}
}

func TestExit_CompleteSuccess(t *testing.T) {
	p := &ExitProcessor{}
	ec := newEC(nil)
	ec.Variables["goal"] = "decide"
	ec.Variables["last_output"] = "refund approved"

	res, err := p.Process(context.Background(), exitBlock(nil), ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["exit_status"] != StatusCompleteSuccess {
		t.Fatalf("status = %v", res.ContextUpdates["exit_status"])
	}
	if !res.Successful {
		t.Error("complete_success should be a successful result")
	}
	if res.ContextUpdates["final_output"] != "refund approved" {
		t.Errorf("final_output = %v", res.ContextUpdates["final_output"])
	}
	if res.Confidence != 1.0 {
		t.Errorf("score = %v, want 1.0", res.Confidence)
	}
}

func TestExit_GatewayDeferCapsAtPartial(t *testing.T) {
	p := &ExitProcessor{}
	ec := newEC(nil)
	ec.Variables["goal"] = "decide"
	ec.Variables["last_output"] = "tentative answer"
	ec.Variables["gateway_decision"] = DecisionDefer

	res, err := p.Process(context.Background(), exitBlock(nil), ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["exit_status"] != StatusPartialSuccess {
		t.Fatalf("status = %v, want partial_success", res.ContextUpdates["exit_status"])
	}
	if !res.Successful {
		t.Error("partial_success still counts as a successful block")
	}
}

func TestExit_EarlierDeferSurvivesLaterProceed(t *testing.T) {
	p := &ExitProcessor{}
	ec := newEC(nil)
	ec.Variables["goal"] = "decide"
	ec.Variables["last_output"] = "tentative answer"
	// A second gateway proceeded and overwrote the shared key; the first
	// gateway's own key still records the defer.
	ec.Variables["gateway_gw1_decision"] = DecisionDefer
	ec.Variables["gateway_gw2_decision"] = DecisionProceed
	ec.Variables["gateway_decision"] = DecisionProceed

	res, err := p.Process(context.Background(), exitBlock(nil), ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["exit_status"] != StatusPartialSuccess {
		t.Fatalf("status = %v, want partial_success", res.ContextUpdates["exit_status"])
	}
}

func TestExit_ErrorsWithOutputIsPartial(t *testing.T) {
	p := &ExitProcessor{}
	ec := newEC(nil)
	ec.Variables["goal"] = "decide"
	ec.Variables["last_output"] = "managed an answer"
	ec.RecordError("r", errStub("one provider call failed"))

	res, err := p.Process(context.Background(), exitBlock(nil), ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["exit_status"] != StatusPartialSuccess {
		t.Fatalf("status = %v, want partial_success", res.ContextUpdates["exit_status"])
	}
}

func TestExit_FailedWithErrors(t *testing.T) {
	p := &ExitProcessor{}
	ec := newEC(nil)
	ec.Variables["goal"] = "decide"
	ec.RecordError("r", errStub("provider down"))

	res, err := p.Process(context.Background(), exitBlock(nil), ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["exit_status"] != StatusFailedWithErrors {
		t.Fatalf("status = %v, want failed_with_errors", res.ContextUpdates["exit_status"])
	}
	if res.Successful {
		t.Error("failed_with_errors must be unsuccessful")
	}
}

func TestExit_Incomplete(t *testing.T) {
	p := &ExitProcessor{}

	res, err := p.Process(context.Background(), exitBlock(nil), newEC(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["exit_status"] != StatusIncomplete {
		t.Fatalf("status = %v, want incomplete", res.ContextUpdates["exit_status"])
	}
	if res.Successful {
		t.Error("incomplete must be unsuccessful")
	}
}

func TestExit_QualityThresholdProperty(t *testing.T) {
	p := &ExitProcessor{}
	ec := newEC(nil)
	// goal + output, no errors: score 1.0, but a threshold above it blocks
	// complete_success.
	ec.Variables["goal"] = "decide"
	ec.Variables["last_output"] = "answer"
	ec.RecordError("r", errStub("minor"))

	// score = 0.4 + 0.4 = 0.8 with errors; threshold 0.9 unreachable
	res, err := p.Process(context.Background(), exitBlock(map[string]any{"quality_threshold": 0.9}), ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata["threshold_met"] != false {
		t.Error("threshold_met should be false at 0.8 < 0.9")
	}
	if res.ContextUpdates["exit_status"] != StatusPartialSuccess {
		t.Fatalf("status = %v", res.ContextUpdates["exit_status"])
	}
}
