package engine

import (
	"reflect"
	"testing"

	"github.com/soyeon/reflow/internal/reflow"
)

func wfWith(blocks []reflow.LogicBlock, conns []reflow.BlockConnection) *reflow.ReasoningWorkflow {
	return &reflow.ReasoningWorkflow{ID: "wf", Name: "wf", Blocks: blocks, Connections: conns}
}

func conn(src, dst string) reflow.BlockConnection {
	return reflow.BlockConnection{SourceID: src, TargetID: dst}
}

func TestResolveOrder_Linear(t *testing.T) {
	wf := wfWith([]reflow.LogicBlock{
		{ID: "g", Type: reflow.BlockTypeGoal},
		{ID: "r", Type: reflow.BlockTypeReasoning},
		{ID: "x", Type: reflow.BlockTypeExit},
	}, []reflow.BlockConnection{conn("g", "r"), conn("r", "x")})

	order, err := ResolveOrder(wf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"g", "r", "x"}) {
		t.Fatalf("order = %v", order)
	}
}

func TestResolveOrder_DiamondFoldsOnce(t *testing.T) {
	// g -> a, g -> b, a -> x, b -> x: x appears exactly once, first-reach
	// path wins.
	wf := wfWith([]reflow.LogicBlock{
		{ID: "g", Type: reflow.BlockTypeGoal},
		{ID: "a", Type: reflow.BlockTypeReasoning},
		{ID: "b", Type: reflow.BlockTypeContext},
		{ID: "x", Type: reflow.BlockTypeExit},
	}, []reflow.BlockConnection{conn("g", "a"), conn("g", "b"), conn("a", "x"), conn("b", "x")})

	order, err := ResolveOrder(wf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"g", "a", "x", "b"}) {
		t.Fatalf("order = %v", order)
	}
}

func TestResolveOrder_CycleRejected(t *testing.T) {
	wf := wfWith([]reflow.LogicBlock{
		{ID: "g", Type: reflow.BlockTypeGoal},
		{ID: "a", Type: reflow.BlockTypeReasoning},
		{ID: "b", Type: reflow.BlockTypeGateway},
	}, []reflow.BlockConnection{conn("g", "a"), conn("a", "b"), conn("b", "a")})

	_, err := ResolveOrder(wf)
	if !reflow.IsValidation(err, reflow.ValidationCycle) {
		t.Fatalf("err = %v, want cycle validation error", err)
	}
}

func TestResolveOrder_NoEntry(t *testing.T) {
	// Two non-goal blocks pointing at each other: no in-degree-zero block
	// and no goal.
	wf := wfWith([]reflow.LogicBlock{
		{ID: "a", Type: reflow.BlockTypeReasoning},
		{ID: "b", Type: reflow.BlockTypeGateway},
	}, []reflow.BlockConnection{conn("a", "b"), conn("b", "a")})

	_, err := ResolveOrder(wf)
	if !reflow.IsValidation(err, reflow.ValidationNoEntry) {
		t.Fatalf("err = %v, want no_entry validation error", err)
	}
}

func TestResolveOrder_GoalAlwaysEntry(t *testing.T) {
	// The goal has an incoming edge but still starts a traversal.
	wf := wfWith([]reflow.LogicBlock{
		{ID: "c", Type: reflow.BlockTypeContext},
		{ID: "g", Type: reflow.BlockTypeGoal},
		{ID: "x", Type: reflow.BlockTypeExit},
	}, []reflow.BlockConnection{conn("c", "g"), conn("g", "x")})

	order, err := ResolveOrder(wf)
	if err != nil {
		t.Fatal(err)
	}
	// c is in-degree zero and declared first; g is a goal entry but already
	// visited via c's traversal.
	if !reflect.DeepEqual(order, []string{"c", "g", "x"}) {
		t.Fatalf("order = %v", order)
	}
}

func TestResolveOrder_EntryTieBreakByDeclaration(t *testing.T) {
	wf := wfWith([]reflow.LogicBlock{
		{ID: "b", Type: reflow.BlockTypeContext},
		{ID: "a", Type: reflow.BlockTypeContext},
	}, nil)

	order, err := ResolveOrder(wf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"b", "a"}) {
		t.Fatalf("order = %v, want declaration order", order)
	}
}

func TestResolveOrder_IsolatedBlockIncluded(t *testing.T) {
	wf := wfWith([]reflow.LogicBlock{
		{ID: "g", Type: reflow.BlockTypeGoal},
		{ID: "x", Type: reflow.BlockTypeExit},
		{ID: "island", Type: reflow.BlockTypeTrace},
	}, []reflow.BlockConnection{conn("g", "x")})

	order, err := ResolveOrder(wf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"g", "x", "island"}) {
		t.Fatalf("order = %v", order)
	}
}
