package engine

import (
	"fmt"

	"github.com/soyeon/reflow/internal/reflow"
)

// ResolveOrder turns a workflow graph into the deterministic, cycle-free
// sequence of block ids the orchestrator will execute.
//
// Entry blocks are those with no incoming connection, plus every Goal block
// regardless of in-degree (an authored goal always starts a run). Ties break
// by declaration order. From each entry, a depth-first traversal follows
// outgoing connections, visiting each block at most once: diamonds fold into
// a single linear appearance, first reaching path wins. A block revisited
// while still on the current path is a cycle and rejects the workflow.
func ResolveOrder(wf *reflow.ReasoningWorkflow) ([]string, error) {
	children := make(map[string][]string, len(wf.Blocks))
	incoming := make(map[string]int, len(wf.Blocks))
	for _, c := range wf.Connections {
		children[c.SourceID] = append(children[c.SourceID], c.TargetID)
		incoming[c.TargetID]++
	}

	var entries []string
	entrySeen := make(map[string]bool)
	for _, b := range wf.Blocks {
		if incoming[b.ID] == 0 || b.Type == reflow.BlockTypeGoal {
			if !entrySeen[b.ID] {
				entrySeen[b.ID] = true
				entries = append(entries, b.ID)
			}
		}
	}
	if len(entries) == 0 {
		return nil, &reflow.ValidationError{
			Workflow: wf.ID,
			Kind:     reflow.ValidationNoEntry,
			Detail:   "no entry blocks: every block has an incoming connection and none is a goal",
		}
	}

	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(wf.Blocks))
	var order []string

	// Iterative DFS; each frame tracks how far through its children it is,
	// so the grey marking survives until the subtree is done.
	type frame struct {
		id   string
		next int
	}
	for _, entry := range entries {
		if color[entry] != white {
			continue
		}
		stack := []frame{{id: entry}}
		color[entry] = grey
		order = append(order, entry)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			kids := children[top.id]
			if top.next >= len(kids) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := kids[top.next]
			top.next++

			switch color[child] {
			case grey:
				return nil, &reflow.ValidationError{
					Workflow: wf.ID,
					Kind:     reflow.ValidationCycle,
					Detail:   fmt.Sprintf("cycle detected through block %q", child),
				}
			case black:
				// Already linearized via an earlier path; fold the diamond.
			default:
				color[child] = grey
				order = append(order, child)
				stack = append(stack, frame{id: child})
			}
		}
	}
	return order, nil
}
