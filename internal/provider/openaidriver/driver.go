// Package openaidriver implements the native-B provider family (spec.md
// §4.2): a fixed-endpoint OpenAI driver. It generalizes the teacher's
// internal/llm/openai/client.go wrapper around sashabaranov/go-openai,
// replacing the teacher's single-model Config with per-call canonical
// model names resolved through the capability registry.
package openaidriver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openailib "github.com/sashabaranov/go-openai"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/provider"
)

// Driver implements provider.Driver against the native OpenAI API.
type Driver struct {
	client   *openailib.Client
	registry *capability.Registry
	models   map[string]bool // canonical names this driver owns
}

// New builds a Driver scoped to the models in modelNames (every
// capability.ModelCapability with ProviderTag == capability.ProviderOpenAI).
func New(apiKey string, httpTimeout time.Duration, registry *capability.Registry, modelNames []string) (*Driver, error) {
	if apiKey == "" {
		return nil, errors.New("openaidriver: api key is required")
	}
	cfg := openailib.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: httpTimeout}

	models := make(map[string]bool, len(modelNames))
	for _, m := range modelNames {
		models[m] = true
	}

	return &Driver{
		client:   openailib.NewClientWithConfig(cfg),
		registry: registry,
		models:   models,
	}, nil
}

func (d *Driver) ProviderTag() string { return capability.ProviderOpenAI }

func (d *Driver) SupportsModel(canonicalModel string) bool { return d.models[canonicalModel] }

func (d *Driver) Capabilities(canonicalModel string) (capability.ModelCapability, error) {
	return d.registry.Get(canonicalModel)
}

func (d *Driver) CountTokens(text string, _ string) (int, error) {
	// No local tokenizer is wired; the declared estimator is the spec's
	// documented fallback (spec.md §4.2: "otherwise a declared estimator
	// (default: ⌈chars/4⌉)").
	return (len(text) + 3) / 4, nil
}

func (d *Driver) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	cap, err := d.registry.Get(req.CanonicalModel)
	if err != nil {
		return provider.Response{}, &provider.InvalidRequestError{Provider: d.ProviderTag(), Err: err}
	}
	if len(req.Images) > 0 && !cap.SupportsVision {
		return provider.Response{}, &provider.UnsupportedCapabilityError{Provider: d.ProviderTag(), Feature: "vision"}
	}

	temp := cap.Temperature.Resolve(req.Temperature)

	msgs := buildMessages(req)
	ccr := openailib.ChatCompletionRequest{
		Model:       req.CanonicalModel,
		Messages:    msgs,
		Temperature: float32(temp),
	}
	if req.MaxOutputTokens > 0 {
		ccr.MaxTokens = req.MaxOutputTokens
	} else if cap.MaxOutputTokens > 0 {
		ccr.MaxTokens = cap.MaxOutputTokens
	}
	if cap.SupportsExtendedThink && req.ThinkingMode != "" {
		ccr.ReasoningEffort = mapThinkingMode(req.ThinkingMode)
	}

	return provider.WithRetry(ctx, provider.DefaultRetryPolicy, func(ctx context.Context) (provider.Response, error) {
		resp, err := d.client.CreateChatCompletion(ctx, ccr)
		if err != nil {
			return provider.Response{}, classifyError(d.ProviderTag(), err)
		}
		if len(resp.Choices) == 0 {
			return provider.Response{}, &provider.InvalidRequestError{Provider: d.ProviderTag(), Err: fmt.Errorf("no choices returned")}
		}
		usage := provider.NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		return provider.Response{
			Content:        resp.Choices[0].Message.Content,
			Usage:          usage,
			CanonicalModel: req.CanonicalModel,
			ProviderTag:    d.ProviderTag(),
			Metadata:       map[string]string{"finish_reason": string(resp.Choices[0].FinishReason)},
		}, nil
	})
}

func buildMessages(req provider.Request) []openailib.ChatCompletionMessage {
	var msgs []openailib.ChatCompletionMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, openailib.ChatCompletionMessage{Role: openailib.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	msgs = append(msgs, openailib.ChatCompletionMessage{Role: openailib.ChatMessageRoleUser, Content: req.Prompt})
	return msgs
}

func mapThinkingMode(m provider.ThinkingMode) string {
	switch m {
	case provider.ThinkingMinimal, provider.ThinkingLow:
		return "low"
	case provider.ThinkingHigh, provider.ThinkingMax:
		return "high"
	default:
		return "medium"
	}
}

// classifyError maps go-openai's error shapes into Zen's driver-level
// taxonomy (spec.md §4.2) so the shared retry helper can recognize
// retryable failures.
func classifyError(providerTag string, err error) error {
	var apiErr *openailib.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &provider.AuthError{Provider: providerTag, Err: err}
		case http.StatusTooManyRequests:
			return &provider.RateLimitedError{Provider: providerTag, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &provider.TimeoutError{Provider: providerTag, Err: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &provider.InvalidRequestError{Provider: providerTag, Err: err}
		}
		if apiErr.HTTPStatusCode >= 500 {
			return &provider.TransientError{Provider: providerTag, Err: err}
		}
	}
	var reqErr *openailib.RequestError
	if errors.As(err, &reqErr) {
		return &provider.TransientError{Provider: providerTag, Err: err}
	}
	return &provider.InvalidRequestError{Provider: providerTag, Err: err}
}
