package core_test

import (
	"context"
	"testing"

	"github.com/zenmcp/zen/internal/core"
	"github.com/zenmcp/zen/internal/toolspec"
)

// ── stub node for testing ──
//
// The shared State parameter is toolspec.WorkflowStepState, the real
// aggregate internal/workflow threads through its own gate/expert Flow —
// not a fabricated fixture type — so these tests exercise core.Node/
// core.Flow against the same State shape the one real caller uses.
// "Visited" phases are recorded in its CustomState map, the same bucket
// docgen's WorkflowGate reads its own per-tool fields from.

func visited(state *toolspec.WorkflowStepState) []string {
	v, _ := state.CustomState["visited"].([]string)
	return v
}

func recordVisit(state *toolspec.WorkflowStepState, phase string) {
	if state.CustomState == nil {
		state.CustomState = map[string]any{}
	}
	state.CustomState["visited"] = append(visited(state), phase)
}

type stubBaseNode struct {
	name    string
	execErr error
	action  core.Action
}

func (s *stubBaseNode) Prep(state *toolspec.WorkflowStepState) []string {
	recordVisit(state, s.name+":prep")
	return []string{"item"}
}

func (s *stubBaseNode) Exec(_ context.Context, _ string) (string, error) {
	return "result", s.execErr
}

func (s *stubBaseNode) Post(state *toolspec.WorkflowStepState, _ []string, _ ...string) core.Action {
	recordVisit(state, s.name+":post")
	return s.action
}

func (s *stubBaseNode) ExecFallback(_ error) string {
	return "fallback"
}

func newStubNode(name string, action core.Action) *core.Node[toolspec.WorkflowStepState, string, string] {
	return core.NewNode[toolspec.WorkflowStepState, string, string](&stubBaseNode{name: name, action: action}, 0)
}

// ── Flow tests ──

func TestFlow_RunSingleNode(t *testing.T) {
	state := &toolspec.WorkflowStepState{}
	n := newStubNode("A", core.ActionEnd)
	flow := core.NewFlow[toolspec.WorkflowStepState](n)

	action := flow.Run(context.Background(), state)

	if action != core.ActionEnd {
		t.Errorf("expected ActionEnd, got %q", action)
	}
	if len(visited(state)) != 2 {
		t.Errorf("expected 2 visited phases, got %v", visited(state))
	}
}

func TestFlow_RunChainTwoNodes(t *testing.T) {
	state := &toolspec.WorkflowStepState{}
	a := newStubNode("A", core.ActionContinue)
	b := newStubNode("B", core.ActionEnd)
	a.AddSuccessor(b, core.ActionContinue)

	flow := core.NewFlow[toolspec.WorkflowStepState](a)
	action := flow.Run(context.Background(), state)

	if action != core.ActionEnd {
		t.Errorf("expected ActionEnd, got %q", action)
	}
	// A:prep, A:post, B:prep, B:post — the same gate-then-expert shape
	// internal/workflow's two-node Flow runs per step submission.
	if len(visited(state)) != 4 {
		t.Errorf("expected 4 visited phases, got %v", visited(state))
	}
}

func TestFlow_NilStartNode(t *testing.T) {
	state := &toolspec.WorkflowStepState{}
	flow := core.NewFlow[toolspec.WorkflowStepState](nil)
	action := flow.Run(context.Background(), state)

	if action != core.ActionFailure {
		t.Errorf("expected ActionFailure for nil start node, got %q", action)
	}
}

func TestFlow_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before Run

	state := &toolspec.WorkflowStepState{}
	n := newStubNode("A", core.ActionContinue)
	flow := core.NewFlow[toolspec.WorkflowStepState](n)
	action := flow.Run(ctx, state)

	if action != core.ActionFailure {
		t.Errorf("expected ActionFailure on cancelled context, got %q", action)
	}
}

func TestFlow_FlowLevelSuccessor(t *testing.T) {
	state := &toolspec.WorkflowStepState{}
	a := newStubNode("A", core.ActionContinue)
	b := newStubNode("B", core.ActionEnd)

	flow := core.NewFlow[toolspec.WorkflowStepState](a)
	flow.AddSuccessor(b, core.ActionContinue)

	action := flow.Run(context.Background(), state)

	if action != core.ActionEnd {
		t.Errorf("expected ActionEnd via flow-level successor, got %q", action)
	}
}

func TestFlow_NoSuccessor_StopsAfterFirstNode(t *testing.T) {
	state := &toolspec.WorkflowStepState{}
	a := newStubNode("A", core.ActionContinue) // no successor registered
	flow := core.NewFlow[toolspec.WorkflowStepState](a)

	action := flow.Run(context.Background(), state)

	// No successor → loop ends after A; last action is ActionContinue
	if action != core.ActionContinue {
		t.Errorf("expected ActionContinue (no successor stops loop), got %q", action)
	}
}

func TestFlow_DefaultSuccessor(t *testing.T) {
	state := &toolspec.WorkflowStepState{}
	a := newStubNode("A", core.ActionSuccess)
	b := newStubNode("B", core.ActionEnd)

	a.AddSuccessor(b) // no action arg → ActionDefault

	flow := core.NewFlow[toolspec.WorkflowStepState](a)
	action := flow.Run(context.Background(), state)

	// A returns ActionSuccess; default successor is not matched by ActionSuccess
	// so successor lookup returns nil and flow stops.
	if action != core.ActionSuccess {
		t.Errorf("expected ActionSuccess (ActionDefault != ActionSuccess), got %q", action)
	}
}
