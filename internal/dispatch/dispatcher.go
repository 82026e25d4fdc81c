// Package dispatch's Dispatcher is the Request Dispatcher (C9): it resolves
// an incoming MCP call_tool name against the toolspec.Registry, routes to
// the Simple or Workflow runtime per the tool's RuntimeKind, and serializes
// the result (or a failure) into the JSON envelope spec.md §4.10 describes:
// {status, content, content_type, metadata: {tool, model, thread_id?,
// turn_index?, tokens: {input, output}}}.
package dispatch

import (
	"context"

	"github.com/zenmcp/zen/internal/conversation"
	"github.com/zenmcp/zen/internal/simpletool"
	"github.com/zenmcp/zen/internal/toolspec"
	"github.com/zenmcp/zen/internal/workflow"
)

// Status is the envelope's top-level machine-readable outcome, spec.md
// §4.10's fixed set.
type Status string

const (
	StatusSuccess                Status = "success"
	StatusContinuationAvailable  Status = "continuation_available"
	StatusRequiresClarification  Status = "requires_clarification"
	StatusFilesRequiredToContinue Status = "files_required_to_continue"
	StatusPauseForInvestigation  Status = "pause_for_investigation"
	StatusCallingExpertAnalysis  Status = "calling_expert_analysis"
	StatusLocalWorkComplete      Status = "local_work_complete"
)

// Tokens mirrors the envelope's metadata.tokens shape.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Metadata is the envelope's metadata object. Error envelopes carry only
// Tool. Success envelopes always carry TurnIndex (0 when the thread cannot
// be read back from the store); Tokens is set for simple-tool results only.
type Metadata struct {
	Tool       string  `json:"tool"`
	Model      string  `json:"model,omitempty"`
	ThreadID   string  `json:"thread_id,omitempty"`
	TurnIndex  *int    `json:"turn_index,omitempty"`
	Tokens     *Tokens `json:"tokens,omitempty"`
}

// Envelope is the uniform JSON payload returned to the MCP caller for every
// tool invocation, success or failure.
type Envelope struct {
	Status      Status   `json:"status"`
	Content     string   `json:"content"`
	ContentType string   `json:"content_type"`
	Metadata    Metadata `json:"metadata"`

	// Error fields are populated only when Status carries no successful
	// content — spec.md §7's "message, kind, metadata" error envelope.
	ErrorKind    Kind              `json:"error_kind,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ErrorMeta    map[string]string `json:"error_metadata,omitempty"`
}

// Dispatcher owns the tool registry and the two runtimes, and is the single
// entry point cmd/zenmcp's MCP server wiring calls for every call_tool.
type Dispatcher struct {
	Registry *toolspec.Registry
	Simple   *simpletool.Runtime
	Workflow *workflow.Runtime
	Store    *conversation.Store
}

// NewDispatcher wires the already-constructed registry and runtimes into a
// Dispatcher.
func NewDispatcher(registry *toolspec.Registry, simple *simpletool.Runtime, wf *workflow.Runtime, store *conversation.Store) *Dispatcher {
	return &Dispatcher{Registry: registry, Simple: simple, Workflow: wf, Store: store}
}

// Dispatch looks up name in the Registry (honoring whatever DISABLED_TOOLS
// view the caller built the Registry with) and routes rawArgs to the
// appropriate runtime, always returning a well-formed Envelope — callers
// never need to branch on error vs. success themselves.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rawArgs []byte) Envelope {
	tool, ok := d.Registry.Get(name)
	if !ok {
		return errorEnvelope(name, New(KindUnknownTool, "no tool named \""+name+"\" is registered"))
	}

	switch tool.RuntimeKind {
	case toolspec.RuntimeWorkflow:
		return d.dispatchWorkflow(ctx, tool, rawArgs)
	default:
		return d.dispatchSimple(ctx, tool, rawArgs)
	}
}

func (d *Dispatcher) dispatchSimple(ctx context.Context, tool toolspec.Tool, rawArgs []byte) Envelope {
	resp, zerr := d.Simple.Execute(ctx, tool, rawArgs)
	if zerr != nil {
		return errorEnvelope(tool.Name, zerr)
	}

	turnIndex := 0
	if thread, err := d.Store.Get(resp.ThreadID); err == nil {
		turnIndex = len(thread.Turns)
	}

	status := StatusSuccess
	if resp.ContinuationAvailable {
		status = StatusContinuationAvailable
	}

	return Envelope{
		Status:      status,
		Content:     resp.Content,
		ContentType: "text/plain",
		Metadata: Metadata{
			Tool:      tool.Name,
			Model:     resp.Model,
			ThreadID:  resp.ThreadID,
			TurnIndex: intPtr(turnIndex),
			Tokens:    &Tokens{Input: resp.Usage.InputTokens, Output: resp.Usage.OutputTokens},
		},
	}
}

func (d *Dispatcher) dispatchWorkflow(ctx context.Context, tool toolspec.Tool, rawArgs []byte) Envelope {
	resp, zerr := d.Workflow.Execute(ctx, tool, rawArgs)
	if zerr != nil {
		return errorEnvelope(tool.Name, zerr)
	}

	turnIndex := 0
	if thread, err := d.Store.Get(resp.ThreadID); err == nil {
		turnIndex = len(thread.Turns)
	}

	var status Status
	var content string
	switch {
	case resp.Phase == workflow.PhaseActive:
		status = StatusPauseForInvestigation
		content = resp.ExpertContent
	case resp.Phase == workflow.PhaseExpertPending:
		status = StatusCallingExpertAnalysis
	case resp.ExpertContent != "":
		status = StatusSuccess
		content = resp.ExpertContent
	default:
		status = StatusLocalWorkComplete
	}

	return Envelope{
		Status:      status,
		Content:     content,
		ContentType: "text/plain",
		Metadata: Metadata{
			Tool:      tool.Name,
			Model:     resp.Model,
			ThreadID:  resp.ThreadID,
			TurnIndex: intPtr(turnIndex),
		},
	}
}

func errorEnvelope(toolName string, zerr *ZenError) Envelope {
	status := statusForKind(zerr.Kind)
	return Envelope{
		Status:       status,
		Content:      zerr.Message,
		ContentType:  "text/plain",
		Metadata:     Metadata{Tool: toolName},
		ErrorKind:    zerr.Kind,
		ErrorMessage: zerr.Message,
		ErrorMeta:    zerr.Metadata,
	}
}

// statusForKind maps the handful of error kinds that carry their own
// dedicated envelope status (spec.md §4.10's "(or equivalent kind)" note on
// the large-prompt escape) rather than a bare failure.
func statusForKind(k Kind) Status {
	switch k {
	case KindLargePromptEscape:
		return StatusFilesRequiredToContinue
	case KindValidationError:
		return StatusRequiresClarification
	default:
		return Status("error")
	}
}

func intPtr(i int) *int { return &i }
