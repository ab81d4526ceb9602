package blocks

import (
	"context"
	"strings"
	"testing"

	"github.com/soyeon/reflow/internal/provider"
	"github.com/soyeon/reflow/internal/reasoning"
	"github.com/soyeon/reflow/internal/reflow"
)

// fakeProvider answers every chat with a fixed reply.
type fakeProvider struct {
	reply string
	calls int
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{MaxContextLength: 8192}
}

func (p *fakeProvider) Chat(_ context.Context, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &provider.ChatResponse{Content: p.reply}, nil
}

func testDeps(p provider.Provider) Deps {
	reg := provider.NewRegistry()
	if p != nil {
		reg.Register(p)
	}
	return Deps{
		Providers: reg,
		Reasoner:  reasoning.NewEngine(reg),
	}
}

func newEC(inputs map[string]any) *reflow.ExecutionContext {
	return reflow.NewExecutionContext("exec-test", "wf-test", inputs)
}

func TestDefaultRegistry_CoversAllTypes(t *testing.T) {
	r := DefaultRegistry(testDeps(nil))
	for _, bt := range []reflow.BlockType{
		reflow.BlockTypeGoal, reflow.BlockTypeContext, reflow.BlockTypeGateway,
		reflow.BlockTypeReasoning, reflow.BlockTypeFallback, reflow.BlockTypeTrace,
		reflow.BlockTypeExit, reflow.BlockTypeHumanVerification,
	} {
		if _, ok := r.Get(bt); !ok {
			t.Errorf("no processor registered for %s", bt)
		}
	}
}

func TestGoal_FromProperty(t *testing.T) {
	p := &GoalProcessor{}
	blk := &reflow.LogicBlock{ID: "g", Type: reflow.BlockTypeGoal,
		Properties: map[string]any{"goal": "resolve dispute", "success_criteria": "customer satisfied"}}

	res, err := p.Process(context.Background(), blk, newEC(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Successful || res.Confidence != 1.0 {
		t.Fatalf("goal result = %+v", res)
	}
	if res.ContextUpdates["goal"] != "resolve dispute" {
		t.Errorf("goal update = %v", res.ContextUpdates["goal"])
	}
	if res.ContextUpdates["success_criteria"] != "customer satisfied" {
		t.Errorf("success_criteria update = %v", res.ContextUpdates["success_criteria"])
	}
}

func TestGoal_FallsBackToMessageInput(t *testing.T) {
	p := &GoalProcessor{}
	blk := &reflow.LogicBlock{ID: "g", Type: reflow.BlockTypeGoal}

	res, err := p.Process(context.Background(), blk, newEC(map[string]any{"message": "from input"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["goal"] != "from input" {
		t.Errorf("goal update = %v", res.ContextUpdates["goal"])
	}
}

func TestContext_NoData(t *testing.T) {
	p := &ContextProcessor{}
	blk := &reflow.LogicBlock{ID: "c", Type: reflow.BlockTypeContext}

	res, err := p.Process(context.Background(), blk, newEC(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful || res.Confidence != 0.0 {
		t.Fatalf("empty context should be an unsuccessful zero-confidence result, got %+v", res)
	}
}

func TestContext_Filter(t *testing.T) {
	p := &ContextProcessor{}
	blk := &reflow.LogicBlock{ID: "c", Type: reflow.BlockTypeContext,
		Properties: map[string]any{"filter": "billing"}}
	ec := newEC(map[string]any{"context_data": "billing history clean\nshipping delayed\nBilling dispute open"})

	res, err := p.Process(context.Background(), blk, ec)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Successful {
		t.Fatal("expected successful filter")
	}
	filtered := res.ContextUpdates["filtered_context"].(string)
	if strings.Contains(filtered, "shipping") {
		t.Errorf("filter kept non-matching line: %q", filtered)
	}
	if !strings.Contains(filtered, "Billing dispute") {
		t.Errorf("filter dropped case-insensitive match: %q", filtered)
	}
}

func TestContext_FilterNoMatchPassesThrough(t *testing.T) {
	p := &ContextProcessor{}
	blk := &reflow.LogicBlock{ID: "c", Type: reflow.BlockTypeContext,
		Properties: map[string]any{"filter": "nonexistent"}}
	ec := newEC(map[string]any{"context_data": "line one\nline two"})

	res, err := p.Process(context.Background(), blk, ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextUpdates["filtered_context"] != "line one\nline two" {
		t.Errorf("no-match filter should pass full text, got %v", res.ContextUpdates["filtered_context"])
	}
}

func TestTrace_NeverAltersState(t *testing.T) {
	p := &TraceProcessor{}
	blk := &reflow.LogicBlock{ID: "t", Type: reflow.BlockTypeTrace, Label: "checkpoint"}
	ec := newEC(nil)
	ec.Record(reflow.BlockExecutionResult{BlockID: "g", Successful: true})

	res, err := p.Process(context.Background(), blk, ec)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Successful || res.Confidence != 1.0 {
		t.Fatalf("trace result = %+v", res)
	}
	if len(res.ContextUpdates) != 0 {
		t.Errorf("trace wrote context updates: %v", res.ContextUpdates)
	}
}

func TestFallback_InertWithoutErrors(t *testing.T) {
	p := &FallbackProcessor{}
	blk := &reflow.LogicBlock{ID: "f", Type: reflow.BlockTypeFallback}

	res, err := p.Process(context.Background(), blk, newEC(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Successful || res.Confidence != 1.0 {
		t.Fatalf("inert fallback result = %+v", res)
	}
	if _, ok := res.ContextUpdates["fallback_action"]; ok {
		t.Error("inert fallback should not record an action")
	}
}

func TestFallback_EscalationPaths(t *testing.T) {
	tests := []struct {
		path       string
		action     string
		successful bool
	}{
		{"human", "escalate_to_human", true},
		{"retry", "retry_failed_blocks", true},
		{"abort", "abort_execution", false},
		{"bogus", "escalate_to_human", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p := &FallbackProcessor{}
			blk := &reflow.LogicBlock{ID: "f", Type: reflow.BlockTypeFallback,
				Properties: map[string]any{"escalation_path": tt.path}}
			ec := newEC(nil)
			ec.RecordError("r", errStub("provider down"))

			res, err := p.Process(context.Background(), blk, ec)
			if err != nil {
				t.Fatal(err)
			}
			if res.ContextUpdates["fallback_action"] != tt.action {
				t.Errorf("action = %v, want %s", res.ContextUpdates["fallback_action"], tt.action)
			}
			if res.Successful != tt.successful {
				t.Errorf("successful = %t, want %t", res.Successful, tt.successful)
			}
		})
	}
}

func TestReasoningBlock_RequiresModel(t *testing.T) {
	p := &ReasoningProcessor{deps: testDeps(nil)}
	blk := &reflow.LogicBlock{ID: "r", Type: reflow.BlockTypeReasoning}

	if _, err := p.Process(context.Background(), blk, newEC(nil)); err == nil {
		t.Fatal("expected error when no model is configured")
	}
}

func TestReasoningBlock_WritesOutputs(t *testing.T) {
	fp := &fakeProvider{reply: "1. step\nAnswer: refund approved\nCONFIDENCE: 88"}
	p := &ReasoningProcessor{deps: testDeps(fp)}
	blk := &reflow.LogicBlock{ID: "r", Type: reflow.BlockTypeReasoning,
		Properties: map[string]any{"pattern": "cot", "model": "fake/test-model"}}
	ec := newEC(map[string]any{"message": "decide the refund"})

	res, err := p.Process(context.Background(), blk, ec)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Successful {
		t.Fatal("reasoning block should succeed")
	}
	if res.Confidence != 0.88 {
		t.Errorf("confidence = %v, want 0.88", res.Confidence)
	}
	if res.ContextUpdates["last_output"] == "" {
		t.Error("last_output not written")
	}
	if res.Metadata["pattern"] != "cot" {
		t.Errorf("pattern metadata = %v", res.Metadata["pattern"])
	}
}

type errStub string

func (e errStub) Error() string { return string(e) }
