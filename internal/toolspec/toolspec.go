// Package toolspec declares the Tool descriptor record and the catalogue
// of domain tools Zen exposes over MCP. It replaces a per-tool class
// hierarchy (one subclass per tool, overriding hook methods) with a single
// data record plus function-valued hooks, with C7/C8 as the one runtime
// parameterized by that record (spec.md §9 "dynamic dispatch via class
// hierarchy").
package toolspec

import (
	"encoding/json"

	"github.com/zenmcp/zen/internal/capability"
)

// RuntimeKind selects which execution pipeline (C7 or C8) drives a Tool.
type RuntimeKind string

const (
	RuntimeSimple   RuntimeKind = "simple"
	RuntimeWorkflow RuntimeKind = "workflow"
)

// WorkflowStepState is the subset of a workflow step submission a
// Tool's WorkflowGate needs to enforce its completion preconditions
// (spec.md §4.8).
type WorkflowStepState struct {
	StepNumber        int
	TotalSteps        int
	NextStepRequired  bool
	RelevantFiles     []string
	Confidence        string
	CustomState       map[string]any // per-tool fields, e.g. docgen's num_files_documented
}

// GateViolation names a precondition a workflow step submission failed,
// surfaced to the host as a structured WorkflowPreconditionViolated error.
type GateViolation string

// WorkflowGate enforces a tool's monotone step preconditions. It returns a
// non-empty GateViolation when the submitted state violates one, and an
// empty string when the transition is allowed.
type WorkflowGate func(state WorkflowStepState) GateViolation

// Tool is the descriptor record every domain tool is defined as: a name,
// its JSON Schema, which runtime drives it, its primary input field (for
// cross-tool continuation, spec.md §4.5), its system prompt, its routing
// category, and any declared hooks.
type Tool struct {
	Name            string
	Description     string
	RuntimeKind     RuntimeKind
	PrimaryField    string
	SystemPrompt    string
	Category        capability.Category
	Schema          json.RawMessage
	StrictSchema    bool // reject unknown fields rather than ignoring them

	// WorkflowGate is nil for simple tools. For workflow tools it is
	// consulted on every step submission.
	WorkflowGate WorkflowGate

	// ShouldCallExpertAnalysis decides, at the terminal step, whether the
	// workflow runtime should invoke the provider at all (spec.md §4.8:
	// "If the tool declares should_call_expert_analysis=false ... the
	// expert call is skipped"). Nil means always call.
	ShouldCallExpertAnalysis func(state WorkflowStepState) bool
}

// SchemaParam describes one schema property, mirroring the teacher's
// tool.SchemaParam shape.
type SchemaParam struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// BuildSchema generalizes the teacher's tool.BuildSchema helper to emit a
// standard JSON Schema object from a parameter list.
func BuildSchema(params ...SchemaParam) json.RawMessage {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, _ := json.Marshal(schema)
	return data
}
