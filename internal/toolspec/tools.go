package toolspec

import "github.com/zenmcp/zen/internal/capability"

// workflowSchema builds the shared step-protocol schema every workflow
// tool extends with its own investigation-specific fields (spec.md §4.8,
// §6.3 "workflow-specific investigation fields").
func workflowSchema(extra ...SchemaParam) []byte {
	base := []SchemaParam{
		{Name: "step", Type: "string", Description: "what was just investigated", Required: true},
		{Name: "step_number", Type: "integer", Required: true},
		{Name: "total_steps", Type: "integer", Required: true},
		{Name: "next_step_required", Type: "boolean", Required: true},
		{Name: "findings", Type: "string", Description: "new findings to append", Required: true},
		{Name: "files_checked", Type: "array"},
		{Name: "relevant_files", Type: "array"},
		{Name: "relevant_context", Type: "array"},
		{Name: "confidence", Type: "string", Enum: []string{"exploring", "low", "medium", "high", "certain"}},
		{Name: "issues_found", Type: "array"},
		{Name: "hypothesis", Type: "string"},
		{Name: "backtrack_from_step", Type: "integer"},
		{Name: "images", Type: "array"},
		{Name: "continuation_id", Type: "string"},
		{Name: "model", Type: "string", Description: "explicit model name, or \"auto\", used for the expert analysis call"},
		{Name: "temperature", Type: "number"},
		{Name: "thinking_mode", Type: "string", Enum: []string{"minimal", "low", "medium", "high", "max"}},
	}
	return BuildSchema(append(base, extra...)...)
}

// alwaysAllowed is the WorkflowGate for tools with no per-tool completion
// precondition beyond the generic state machine rules.
func alwaysAllowed(WorkflowStepState) GateViolation { return "" }

// noTerminalGate is the terminal-state check every workflow tool without
// extra preconditions uses.
func noTerminalGate(state WorkflowStepState) GateViolation {
	return alwaysAllowed(state)
}

// DefaultTools returns the catalogue of domain tools Zen exposes,
// grounded on spec.md's named tool list (chat, thinkdeep, analyze,
// codereview, debug, precommit, consensus, planner, refactor, testgen,
// docgen, tracer, secaudit).
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:         "chat",
			Description:  "General-purpose conversation and brainstorming with a chosen or auto-selected model.",
			RuntimeKind:  RuntimeSimple,
			PrimaryField: "prompt",
			Category:     capability.CategoryFast,
			SystemPrompt: chatSystemPrompt,
			Schema: BuildSchema(
				SchemaParam{Name: "prompt", Type: "string", Description: "the message to send", Required: true},
				SchemaParam{Name: "model", Type: "string", Description: "explicit model name, or \"auto\""},
				SchemaParam{Name: "files", Type: "array"},
				SchemaParam{Name: "images", Type: "array"},
				SchemaParam{Name: "continuation_id", Type: "string"},
				SchemaParam{Name: "locale", Type: "string"},
				SchemaParam{Name: "use_websearch", Type: "boolean"},
				SchemaParam{Name: "temperature", Type: "number"},
				SchemaParam{Name: "thinking_mode", Type: "string", Enum: []string{"minimal", "low", "medium", "high", "max"}},
			),
		},
		{
			Name:         "thinkdeep",
			Description:  "Multi-step extended reasoning over a hard problem, escalating to deep-reasoning models.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryDeepReasoning,
			SystemPrompt: thinkdeepSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "analyze",
			Description:  "Investigates a codebase or design to answer an open-ended architectural question.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: analyzeSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "codereview",
			Description:  "Systematic multi-file code review: correctness, security, maintainability.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: codereviewSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "debug",
			Description:  "Root-causes a bug through iterative investigation before proposing a fix.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryDeepReasoning,
			SystemPrompt: debugSystemPrompt,
			Schema:       workflowSchema(SchemaParam{Name: "error_description", Type: "string"}),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "precommit",
			Description:  "Reviews staged/pending changes for regressions and incomplete work before commit.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: precommitSystemPrompt,
			Schema:       workflowSchema(SchemaParam{Name: "path", Type: "string"}),
			WorkflowGate: precommitGate,
		},
		{
			Name:         "consensus",
			Description:  "Polls multiple models for independent opinions on a proposal and synthesizes them.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: consensusSystemPrompt,
			Schema:       workflowSchema(SchemaParam{Name: "models", Type: "array", Description: "models to poll"}),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "planner",
			Description:  "Breaks a large task into an ordered, dependency-aware step plan.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: plannerSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "refactor",
			Description:  "Identifies refactoring opportunities (decomposition, duplication, dead code) in a codebase.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: refactorSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "testgen",
			Description:  "Generates test cases covering edge cases and failure modes for target code.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: testgenSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "docgen",
			Description:  "Writes or updates documentation for a set of files, tracking per-file completion.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryFast,
			SystemPrompt: docgenSystemPrompt,
			Schema: workflowSchema(
				SchemaParam{Name: "num_files_documented", Type: "integer"},
				SchemaParam{Name: "total_files_to_document", Type: "integer"},
			),
			WorkflowGate: docgenGate,
		},
		{
			Name:         "tracer",
			Description:  "Traces a call path or data flow through a codebase step by step.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryBalanced,
			SystemPrompt: tracerSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
		{
			Name:         "secaudit",
			Description:  "Security-focused audit of a codebase against a standard vulnerability checklist.",
			RuntimeKind:  RuntimeWorkflow,
			PrimaryField: "findings",
			Category:     capability.CategoryDeepReasoning,
			SystemPrompt: secauditSystemPrompt,
			Schema:       workflowSchema(),
			WorkflowGate: noTerminalGate,
		},
	}
}

// precommitGate enforces spec.md §4.8, §8 S5: a step cannot complete
// (next_step_required=false) with an empty relevant_files list, no matter
// which step number it completes on.
func precommitGate(state WorkflowStepState) GateViolation {
	if !state.NextStepRequired && len(state.RelevantFiles) == 0 {
		return "relevant_files_required_by_step_2"
	}
	return ""
}

// docgenGate enforces spec.md §4.8: "The documentation workflow tracks
// num_files_documented vs total_files_to_document and refuses
// next_step_required=false until they are equal." CustomState holds raw
// json.Unmarshal output, so both counters decode as float64, never int.
func docgenGate(state WorkflowStepState) GateViolation {
	if state.NextStepRequired {
		return ""
	}
	documented, _ := state.CustomState["num_files_documented"].(float64)
	total, _ := state.CustomState["total_files_to_document"].(float64)
	if documented != total {
		return "num_files_documented_must_equal_total_before_completion"
	}
	return ""
}

const chatSystemPrompt = `You are a capable, direct conversational assistant. Answer the user's message clearly; ask a clarifying question only when the request is genuinely ambiguous.`

const thinkdeepSystemPrompt = `You perform extended, multi-angle reasoning on a hard problem. Consider alternative framings before committing to a conclusion. State assumptions explicitly.`

const analyzeSystemPrompt = `You analyze a codebase or design to answer an architectural question. Ground every claim in the files actually provided; do not speculate about code you have not seen.`

const codereviewSystemPrompt = `You review code changes for correctness, security, and maintainability. Flag the most severe issues first. Do not nitpick style when a correctness or security issue is present.`

const debugSystemPrompt = `You root-cause a bug through iterative investigation. Do not propose a fix until you can state the mechanism of failure with evidence from the files examined.`

const precommitSystemPrompt = `You review pending changes before commit for regressions, missing tests, and incomplete work. Call out anything that looks unfinished.`

const consensusSystemPrompt = `You synthesize independent model opinions on a proposal into a single recommendation, naming where the opinions agreed and where they diverged.`

const plannerSystemPrompt = `You break a large task into an ordered, dependency-aware set of steps. Each step must be independently actionable.`

const refactorSystemPrompt = `You identify refactoring opportunities: duplication, poor decomposition, dead code. Prioritize by impact, not by count of occurrences.`

const testgenSystemPrompt = `You generate test cases covering edge cases and realistic failure modes for the given code. Prefer few well-chosen cases over an exhaustive grid.`

const docgenSystemPrompt = `You write or update documentation for the given files, matching the existing documentation's tone and density rather than imposing a uniform template.`

const tracerSystemPrompt = `You trace a call path or data flow through a codebase, step by step, citing the file and line where each hop occurs.`

const secauditSystemPrompt = `You audit a codebase against a standard vulnerability checklist (injection, auth, secrets handling, deserialization). State which checklist items you actually verified versus merely did not find evidence against.`
