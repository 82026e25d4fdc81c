// Package simpletool implements the Simple Tool Runtime (C7): the one-shot
// request/response pipeline shared by every RuntimeSimple tool (spec.md
// §4.7). A single Runtime, parameterized by a toolspec.Tool record, replaces
// what the teacher expresses as a dedicated agent.Flow per tool kind.
package simpletool

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/contextassembler"
	"github.com/zenmcp/zen/internal/conversation"
	"github.com/zenmcp/zen/internal/dispatch"
	"github.com/zenmcp/zen/internal/fileembed"
	"github.com/zenmcp/zen/internal/provider"
	"github.com/zenmcp/zen/internal/toolspec"
)

// defaultMaxImageBytes applies when a resolved model declares no explicit
// image size cap of its own.
const defaultMaxImageBytes = 5 << 20

// TransportBudgetChars caps the size of one MCP response/request payload
// over stdio before the large-prompt escape applies (spec.md §6.1).
const TransportBudgetChars = 50_000

// defaultContextWindow is used when a resolved model has no catalogue entry
// (e.g. the aggregator serving a name Zen's own registry never heard of).
const defaultContextWindow = 128_000

// Runtime executes every RuntimeSimple tool.
type Runtime struct {
	Store                *conversation.Store
	Router               *provider.Router
	Registry             *capability.Registry
	TransportBudgetChars int
}

// NewRuntime builds a Runtime over the already-constructed C1-C4 components.
func NewRuntime(store *conversation.Store, router *provider.Router, registry *capability.Registry) *Runtime {
	return &Runtime{
		Store:                store,
		Router:               router,
		Registry:             registry,
		TransportBudgetChars: TransportBudgetChars,
	}
}

// Response is the normalized result of one simple-tool call.
type Response struct {
	Content               string
	ThreadID              string
	ContinuationAvailable bool
	Model                 string
	ImagesAttached        int
	Usage                 provider.Usage
}

// Execute runs the ten-step pipeline (spec.md §4.7) for tool against the raw
// JSON arguments of one MCP call.
func (rt *Runtime) Execute(ctx context.Context, tool toolspec.Tool, rawArgs []byte) (Response, *dispatch.ZenError) {
	// Step 1: validate request against the tool's declared schema.
	if err := tool.Validate(rawArgs); err != nil {
		return Response{}, dispatch.New(dispatch.KindValidationError, err.Error())
	}
	args, perr := parseArgs(rawArgs)
	if perr != nil {
		return Response{}, perr
	}

	currentContent := getString(args, tool.PrimaryField)
	files := getStringSlice(args, "files")
	images := getStringSlice(args, "images")
	explicitModel := getString(args, "model")
	useWebSearch := getBool(args, "use_websearch")
	continuationID := getString(args, "continuation_id")
	requestedTemperature := getFloat(args, "temperature")
	thinkingMode := provider.ThinkingMode(getString(args, "thinking_mode"))
	locale := getString(args, "locale")

	// Step 2: fetch the continued thread, if any.
	var thread conversation.Thread
	var haveThread bool
	if continuationID != "" {
		t, err := rt.Store.Get(continuationID)
		if err != nil {
			return Response{}, dispatch.FromConversationError(err)
		}
		thread, haveThread = t, true
	}

	// Step 3: resolve the model — explicit > thread's last model > category default.
	model := explicitModel
	if model == "" || model == "auto" {
		if haveThread {
			model = lastModel(thread)
		}
	}
	if model == "" || model == "auto" {
		picked, err := rt.Router.PickModelForCategory(tool.Category)
		if err != nil {
			return Response{}, dispatch.New(dispatch.KindNoProviderForModel, err.Error())
		}
		model = picked
	}
	driver, canonicalModel, err := rt.Router.PickDriver(model)
	if err != nil {
		return Response{}, dispatch.FromProviderError(err)
	}
	contextWindow := defaultContextWindow
	maxOutputTokens := 0
	var maxImageBytes int64
	temperature := requestedTemperature
	if caps, err := rt.Registry.Get(canonicalModel); err == nil {
		contextWindow = caps.ContextWindow
		maxOutputTokens = caps.MaxOutputTokens
		maxImageBytes = caps.MaxImageBytes
		temperature = caps.Temperature.Resolve(requestedTemperature)
	}

	systemPrompt := tool.SystemPrompt
	if locale != "" {
		systemPrompt = systemPrompt + "\n\nRespond in " + locale + "."
	}

	// Step 4: compose the prompt.
	historyBudget := contextassembler.HistoryBudgetChars(contextWindow, tool.Category)
	fileBudget := contextassembler.FileBudgetChars(contextWindow, tool.Category)
	embeddedFiles := map[string]time.Time{}
	var historyText string
	if haveThread {
		assembled := contextassembler.Assemble(thread, historyBudget)
		historyText = assembled.Text
		embeddedFiles = assembled.EmbeddedFiles
		images = mergeImages(images, assembled.ReattachImages, contextassembler.MaxImages)
	}

	effectivePrompt, remainingFiles, escaped, err := fileembed.ResolveLargePromptEscape(files)
	if err != nil {
		return Response{}, dispatch.New(dispatch.KindFileNotFound, err.Error())
	}
	if escaped {
		currentContent = effectivePrompt
		files = remainingFiles
	}

	var filesBlock string
	if len(files) > 0 {
		result, err := fileembed.Embed(files, fileBudget, embeddedFiles, tool.Name, false)
		if err != nil {
			if err == fileembed.ErrFilePathNotAbsolute {
				return Response{}, dispatch.New(dispatch.KindFilePathNotAbsolute, err.Error())
			}
			return Response{}, dispatch.New(dispatch.KindFileAccessDenied, err.Error())
		}
		filesBlock = result.Block
	}

	composedContent := currentContent
	if filesBlock != "" {
		composedContent = composedContent + "\n\n" + filesBlock
	}
	if useWebSearch {
		composedContent = composedContent + "\n\n" + webSearchStanza
	}
	composed := contextassembler.WriteToPrimaryField(contextassembler.Assembled{Text: historyText}, composedContent)

	// Step 5: transport size check.
	if fileembed.ExceedsTransportBudget(composed, rt.budget()) {
		return Response{}, dispatch.New(dispatch.KindLargePromptEscape,
			fmt.Sprintf("composed request is %d characters, which exceeds the %d character transport budget; use the %s escape file instead", len(composed), rt.budget(), fileembed.PromptEscapeFilename))
	}

	// Step 6: token budget check.
	reserves := contextassembler.ReservesFor(tool.Category)
	maxPromptChars := int(float64(contextWindow) * 4 * (1 - reserves.ResponseReserve))
	if maxPromptChars > 0 && len(composed) > maxPromptChars {
		largest := "history"
		if len(filesBlock) > len(historyText) {
			largest = "files"
		}
		return Response{}, dispatch.New(dispatch.KindContextOverflow,
			fmt.Sprintf("composed prompt is %d characters, exceeding the %d character budget for %s", len(composed), maxPromptChars, canonicalModel),
			"largest_component", largest)
	}

	// Step 7: call the provider.
	driverImages, err := loadImages(images, maxImageBytes)
	if err != nil {
		return Response{}, dispatch.New(dispatch.KindFileAccessDenied, err.Error())
	}
	resp, err := driver.Generate(ctx, provider.Request{
		CanonicalModel:  canonicalModel,
		Prompt:          composed,
		SystemPrompt:    systemPrompt,
		Temperature:     temperature,
		ThinkingMode:    thinkingMode,
		Images:          driverImages,
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return Response{}, dispatch.FromProviderError(err)
	}

	// Step 8/9: append turns, creating a thread if one didn't exist.
	now := time.Now()
	userTurn := conversation.Turn{
		Role: "user", Content: currentContent, ToolName: tool.Name, ModelName: canonicalModel,
		Files: files, Images: images, Timestamp: now,
	}
	assistantTurn := conversation.Turn{
		Role: "assistant", Content: resp.Content, ToolName: tool.Name, ModelName: canonicalModel,
		Timestamp: now,
		Tokens:    &conversation.TokenAccounting{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}

	threadID := continuationID
	if !haveThread {
		threadID = rt.Store.Create(tool.Name, canonicalModel, userTurn)
		if aerr := rt.Store.Append(threadID, assistantTurn); aerr != nil {
			log.Printf("[SimpleTool] WARNING: failed to append assistant turn to freshly created thread %s: %v", threadID, aerr)
		}
	} else {
		if aerr := rt.Store.Append(threadID, userTurn); aerr != nil {
			return Response{}, dispatch.FromConversationError(aerr)
		}
		if aerr := rt.Store.Append(threadID, assistantTurn); aerr != nil {
			log.Printf("[SimpleTool] WARNING: failed to append assistant turn to thread %s: %v", threadID, aerr)
		}
	}

	// Step 10: return.
	return Response{
		Content:               resp.Content,
		ThreadID:              threadID,
		ContinuationAvailable: true,
		Model:                 canonicalModel,
		ImagesAttached:        len(driverImages),
		Usage:                 resp.Usage,
	}, nil
}

func (rt *Runtime) budget() int {
	if rt.TransportBudgetChars > 0 {
		return rt.TransportBudgetChars
	}
	return TransportBudgetChars
}

const webSearchStanza = "Use web search to verify current facts before answering if the question depends on information that may have changed since training."

func lastModel(t conversation.Thread) string {
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].ModelName != "" {
			return t.Turns[i].ModelName
		}
	}
	return t.InitialModel
}

func mergeImages(current, reattached []string, max int) []string {
	seen := make(map[string]bool, len(current))
	out := make([]string, 0, len(current)+len(reattached))
	for _, img := range current {
		if !seen[img] {
			seen[img] = true
			out = append(out, img)
		}
	}
	for _, img := range reattached {
		if len(out) >= max {
			break
		}
		if !seen[img] {
			seen[img] = true
			out = append(out, img)
		}
	}
	return out
}

func parseArgs(rawArgs []byte) (map[string]any, *dispatch.ZenError) {
	args := map[string]any{}
	if len(rawArgs) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, dispatch.New(dispatch.KindValidationError, err.Error())
	}
	return args, nil
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

// loadImages reads each absolute image path into a provider.Image, rejecting
// files over the model's size cap (spec.md §4.6: image embedding obeys the
// same absolute-path and size-cap discipline as the file embedder).
func loadImages(paths []string, maxBytes int64) ([]provider.Image, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	images := make([]provider.Image, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return nil, fileembed.ErrFilePathNotAbsolute
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.Size() > maxBytes {
			return nil, fmt.Errorf("simpletool: image %s is %d bytes, exceeding the %d byte cap", p, info.Size(), maxBytes)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		images = append(images, provider.Image{Data: data, MimeType: http.DetectContentType(data)})
	}
	return images, nil
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
