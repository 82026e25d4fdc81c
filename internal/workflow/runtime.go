// Package workflow implements the Workflow Tool Runtime (C8): the
// multi-step investigation state machine shared by every RuntimeWorkflow
// tool (spec.md §4.8). Each MCP call submits one step; state persists
// across calls through the conversation thread, not in process memory.
//
// The per-call phase decision (record findings only, or additionally call
// the expert model) is expressed as a two-node core.Flow, adapting the
// teacher's DecideNode/ToolNode routing shape (internal/agent/flow.go) from
// an in-process multi-turn loop to a single routing decision per network
// call.
package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/contextassembler"
	"github.com/zenmcp/zen/internal/conversation"
	"github.com/zenmcp/zen/internal/core"
	"github.com/zenmcp/zen/internal/dispatch"
	"github.com/zenmcp/zen/internal/fileembed"
	"github.com/zenmcp/zen/internal/provider"
	"github.com/zenmcp/zen/internal/toolspec"
)

// Phase names the workflow's position in the state machine spec.md §4.8
// names: ACTIVE while steps are still being submitted, EXPERT_PENDING once
// the terminal step has triggered an expert call, COMPLETE once that call
// (or the decision to skip it) has resolved.
type Phase string

const (
	PhaseActive        Phase = "ACTIVE"
	PhaseExpertPending Phase = "EXPERT_PENDING"
	PhaseComplete      Phase = "COMPLETE"
)

// Runtime executes every RuntimeWorkflow tool's step submissions.
type Runtime struct {
	Store                *conversation.Store
	Router               *provider.Router
	Registry             *capability.Registry
	TransportBudgetChars int
}

// NewRuntime builds a Runtime over the already-constructed C1-C4 components.
func NewRuntime(store *conversation.Store, router *provider.Router, registry *capability.Registry) *Runtime {
	return &Runtime{Store: store, Router: router, Registry: registry, TransportBudgetChars: 50_000}
}

// Response is the normalized result of one workflow step submission.
type Response struct {
	ThreadID         string
	Phase            Phase
	StepNumber       int
	TotalSteps       int
	NextStepRequired bool
	ExpertContent    string // empty until the terminal step resolves
	Model            string
}

// state is threaded through the request's Flow.Run call. It is built fresh
// per request and never shared across goroutines (same single-writer
// discipline as the teacher's AgentState).
type state struct {
	rt             *Runtime
	tool           toolspec.Tool
	step           stepArgs
	thread         conversation.Thread
	haveThread     bool
	canonicalModel string
	expertResp     provider.Response
	expertCalled   bool
	result         Response
	zerr           *dispatch.ZenError
}

// expertCall pairs the resolved driver with its request and a back-pointer
// to the shared state, since core.BaseNode.Exec only receives the
// PrepResult item, not the state Prep built it from — the error translation
// in Exec needs somewhere to record a typed ZenError rather than flattening
// it to a string the way the teacher's ExecFallback-only error path would.
type expertCall struct {
	driver provider.Driver
	req    provider.Request
	st     *state
}

// stepArgs is the parsed subset of a workflow tool's schema spec.md §4.8
// names for the step protocol.
type stepArgs struct {
	Step              string
	StepNumber        int
	TotalSteps        int
	NextStepRequired  bool
	Findings          string
	FilesChecked      []string
	RelevantFiles     []string
	RelevantContext   []string
	Confidence        string
	IssuesFound       []string
	Hypothesis        string
	BacktrackFromStep int
	Images            []string
	ContinuationID    string
	Model             string
	Temperature       float64
	ThinkingMode      string
	Custom            map[string]any
}

// Execute runs one step submission for tool against the raw JSON arguments
// of one MCP call.
func (rt *Runtime) Execute(ctx context.Context, tool toolspec.Tool, rawArgs []byte) (Response, *dispatch.ZenError) {
	if err := tool.Validate(rawArgs); err != nil {
		return Response{}, dispatch.New(dispatch.KindValidationError, err.Error())
	}
	step, perr := parseStepArgs(rawArgs)
	if perr != nil {
		return Response{}, perr
	}

	st := &state{rt: rt, tool: tool, step: step}

	if step.ContinuationID != "" {
		thread, err := rt.Store.Get(step.ContinuationID)
		if err != nil {
			return Response{}, dispatch.FromConversationError(err)
		}
		st.thread, st.haveThread = thread, true
	}

	gateViolation := tool.WorkflowGate(toolspec.WorkflowStepState{
		StepNumber:       step.StepNumber,
		TotalSteps:       step.TotalSteps,
		NextStepRequired: step.NextStepRequired,
		RelevantFiles:    step.RelevantFiles,
		Confidence:       step.Confidence,
		CustomState:      step.Custom,
	})
	if gateViolation != "" {
		return Response{}, dispatch.New(dispatch.KindWorkflowPreconditionViolated, string(gateViolation))
	}

	gate := core.NewNode[state, struct{}, struct{}](&gateNode{}, 0)
	expert := core.NewNode[state, expertCall, provider.Response](&expertNode{}, 1)
	gate.AddSuccessor(expert, core.ActionContinue)
	flow := core.NewFlow[state](gate)
	flow.Run(ctx, st)

	if st.zerr != nil {
		return Response{}, st.zerr
	}

	// Append this step's findings as a user turn, and the expert response
	// (if any) as an assistant turn, so later steps see the full history.
	now := time.Now()
	userTurn := conversation.Turn{
		Role: "user", Content: step.Findings, ToolName: tool.Name, ModelName: step.Model,
		Files: step.RelevantFiles, Images: step.Images, Timestamp: now,
	}
	threadID := step.ContinuationID
	if !st.haveThread {
		threadID = rt.Store.Create(tool.Name, step.Model, userTurn)
	} else if aerr := rt.Store.Append(threadID, userTurn); aerr != nil {
		return Response{}, dispatch.FromConversationError(aerr)
	}
	if st.expertCalled {
		assistantTurn := conversation.Turn{
			Role: "assistant", Content: st.expertResp.Content, ToolName: tool.Name, ModelName: st.canonicalModel,
			Timestamp: now,
			Tokens:    &conversation.TokenAccounting{InputTokens: st.expertResp.Usage.InputTokens, OutputTokens: st.expertResp.Usage.OutputTokens},
		}
		if aerr := rt.Store.Append(threadID, assistantTurn); aerr != nil {
			return Response{}, dispatch.FromConversationError(aerr)
		}
	}

	st.result.ThreadID = threadID
	return st.result, nil
}

// gateNode decides, for this single step submission, whether an expert call
// is needed at all (terminal step, ShouldCallExpertAnalysis true) or whether
// the step merely records findings and returns (every intermediate step,
// and any terminal step that opts out of the expert call).
type gateNode struct{}

func (g *gateNode) Prep(st *state) []struct{} { return []struct{}{{}} }

func (g *gateNode) Exec(_ context.Context, _ struct{}) (struct{}, error) { return struct{}{}, nil }

func (g *gateNode) ExecFallback(error) struct{} { return struct{}{} }

func (g *gateNode) Post(st *state, _ []struct{}, _ ...struct{}) core.Action {
	step := st.step
	if step.NextStepRequired {
		st.result = Response{Phase: PhaseActive, StepNumber: step.StepNumber, TotalSteps: step.TotalSteps, NextStepRequired: true}
		return core.ActionEnd
	}
	if st.tool.ShouldCallExpertAnalysis != nil && !st.tool.ShouldCallExpertAnalysis(toolspec.WorkflowStepState{
		StepNumber: step.StepNumber, TotalSteps: step.TotalSteps, NextStepRequired: step.NextStepRequired,
		RelevantFiles: step.RelevantFiles, Confidence: step.Confidence, CustomState: step.Custom,
	}) {
		st.result = Response{Phase: PhaseComplete, StepNumber: step.StepNumber, TotalSteps: step.TotalSteps, NextStepRequired: false}
		return core.ActionEnd
	}
	st.result = Response{Phase: PhaseExpertPending, StepNumber: step.StepNumber, TotalSteps: step.TotalSteps, NextStepRequired: false}
	return core.ActionContinue
}

// expertNode composes the terminal-step prompt and calls the provider.
type expertNode struct{}

func (e *expertNode) Prep(st *state) []expertCall {
	model := st.step.Model
	if model == "" || model == "auto" {
		if st.haveThread {
			model = lastModel(st.thread)
		}
	}
	if model == "" || model == "auto" {
		picked, err := st.rt.Router.PickModelForCategory(st.tool.Category)
		if err != nil {
			st.zerr = dispatch.New(dispatch.KindNoProviderForModel, err.Error())
			return nil
		}
		model = picked
	}
	driver, canonicalModel, err := st.rt.Router.PickDriver(model)
	if err != nil {
		st.zerr = dispatch.FromProviderError(err)
		return nil
	}
	st.canonicalModel = canonicalModel
	contextWindow := 128_000
	maxOutputTokens := 0
	temperature := st.step.Temperature
	if caps, err := st.rt.Registry.Get(canonicalModel); err == nil {
		contextWindow = caps.ContextWindow
		maxOutputTokens = caps.MaxOutputTokens
		temperature = caps.Temperature.Resolve(st.step.Temperature)
	}

	historyBudget := contextassembler.HistoryBudgetChars(contextWindow, st.tool.Category)
	fileBudget := contextassembler.FileBudgetChars(contextWindow, st.tool.Category)
	var historyText string
	embeddedFiles := map[string]time.Time{}
	if st.haveThread {
		assembled := contextassembler.Assemble(st.thread, historyBudget)
		historyText = assembled.Text
		embeddedFiles = assembled.EmbeddedFiles
	}

	consolidated := consolidatedFindings(st.thread, st.haveThread, st.step)
	var filesBlock string
	if len(st.step.RelevantFiles) > 0 {
		result, err := fileembed.Embed(st.step.RelevantFiles, fileBudget, embeddedFiles, st.tool.Name, true)
		if err == nil {
			filesBlock = result.Block
		}
	}
	content := consolidated
	if filesBlock != "" {
		content = content + "\n\n" + filesBlock
	}
	composed := contextassembler.WriteToPrimaryField(contextassembler.Assembled{Text: historyText}, content)

	return []expertCall{{
		driver: driver,
		st:     st,
		req: provider.Request{
			CanonicalModel:  canonicalModel,
			Prompt:          composed,
			SystemPrompt:    st.tool.SystemPrompt,
			Temperature:     temperature,
			ThinkingMode:    provider.ThinkingMode(st.step.ThinkingMode),
			MaxOutputTokens: maxOutputTokens,
		},
	}}
}

// Exec calls the provider, translating a failure into the request's
// ZenError immediately (via the back-pointer in call.st) rather than
// through ExecFallback's plain-error signature, so the original error's
// kind (auth, rate-limited, safety-blocked, ...) survives instead of
// collapsing to one generic failure kind.
func (e *expertNode) Exec(ctx context.Context, call expertCall) (provider.Response, error) {
	resp, err := call.driver.Generate(ctx, call.req)
	if err != nil {
		call.st.zerr = dispatch.FromProviderError(err)
		return provider.Response{}, err
	}
	return resp, nil
}

func (e *expertNode) ExecFallback(error) provider.Response { return provider.Response{} }

func (e *expertNode) Post(st *state, _ []expertCall, results ...provider.Response) core.Action {
	if st.zerr != nil {
		return core.ActionFailure
	}
	if len(results) == 0 {
		st.zerr = dispatch.New(dispatch.KindProviderTransientError, "expert analysis call produced no result")
		return core.ActionFailure
	}
	st.expertResp = results[0]
	st.expertCalled = true
	st.result = Response{
		Phase: PhaseComplete, StepNumber: st.step.StepNumber, TotalSteps: st.step.TotalSteps,
		NextStepRequired: false, ExpertContent: results[0].Content, Model: st.canonicalModel,
	}
	return core.ActionEnd
}

func lastModel(t conversation.Thread) string {
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].ModelName != "" {
			return t.Turns[i].ModelName
		}
	}
	return t.InitialModel
}

// consolidatedFindings joins every prior step's findings with this step's,
// since the expert call at the terminal step reasons over the whole
// investigation, not just its last step (spec.md §4.8).
func consolidatedFindings(thread conversation.Thread, haveThread bool, step stepArgs) string {
	var out string
	if haveThread {
		for _, turn := range thread.Turns {
			if turn.Role == "user" {
				out += turn.Content + "\n"
			}
		}
	}
	return out + step.Findings
}

func parseStepArgs(rawArgs []byte) (stepArgs, *dispatch.ZenError) {
	var raw map[string]any
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &raw); err != nil {
			return stepArgs{}, dispatch.New(dispatch.KindValidationError, err.Error())
		}
	}
	step := stepArgs{
		Step:              getString(raw, "step"),
		StepNumber:        getInt(raw, "step_number"),
		TotalSteps:        getInt(raw, "total_steps"),
		NextStepRequired:  getBool(raw, "next_step_required"),
		Findings:          getString(raw, "findings"),
		FilesChecked:      getStringSlice(raw, "files_checked"),
		RelevantFiles:     getStringSlice(raw, "relevant_files"),
		RelevantContext:   getStringSlice(raw, "relevant_context"),
		Confidence:        getString(raw, "confidence"),
		IssuesFound:       getStringSlice(raw, "issues_found"),
		Hypothesis:        getString(raw, "hypothesis"),
		BacktrackFromStep: getInt(raw, "backtrack_from_step"),
		Images:            getStringSlice(raw, "images"),
		ContinuationID:    getString(raw, "continuation_id"),
		Model:             getString(raw, "model"),
		Temperature:       getFloat(raw, "temperature"),
		ThinkingMode:      getString(raw, "thinking_mode"),
		Custom:            raw,
	}
	return step, nil
}

func getString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getFloat(args map[string]any, key string) float64 {
	if v, ok := args[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

func getBool(args map[string]any, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getInt(args map[string]any, key string) int {
	if v, ok := args[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 0
}

func getStringSlice(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
