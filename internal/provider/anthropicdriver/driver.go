// Package anthropicdriver implements the native-A provider family (spec.md
// §4.2): Claude models served directly through Anthropic's Messages API.
// Request/response translation follows the shape used by
// goa-ai's features/model/anthropic/client.go — params.New, text/thinking
// content blocks, usage accounting — reduced to Zen's single-turn
// text(+image)-in/text-out Generate contract (no tool-use loop).
package anthropicdriver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/provider"
)

// MessagesClient is the subset of the Anthropic SDK used here, letting tests
// substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Driver implements provider.Driver against the native Anthropic API.
type Driver struct {
	msg      MessagesClient
	registry *capability.Registry
	models   map[string]bool
}

// New builds a Driver scoped to modelNames, all of which must resolve in
// registry with ProviderTag == capability.ProviderAnthropic.
func New(apiKey string, registry *capability.Registry, modelNames []string) (*Driver, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicdriver: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	models := make(map[string]bool, len(modelNames))
	for _, m := range modelNames {
		models[m] = true
	}
	return &Driver{msg: &client.Messages, registry: registry, models: models}, nil
}

// NewWithClient builds a Driver around an already-constructed MessagesClient,
// used by tests to inject a fake.
func NewWithClient(msg MessagesClient, registry *capability.Registry, modelNames []string) *Driver {
	models := make(map[string]bool, len(modelNames))
	for _, m := range modelNames {
		models[m] = true
	}
	return &Driver{msg: msg, registry: registry, models: models}
}

func (d *Driver) ProviderTag() string { return capability.ProviderAnthropic }

func (d *Driver) SupportsModel(canonicalModel string) bool { return d.models[canonicalModel] }

func (d *Driver) Capabilities(canonicalModel string) (capability.ModelCapability, error) {
	return d.registry.Get(canonicalModel)
}

func (d *Driver) CountTokens(text string, _ string) (int, error) {
	return (len(text) + 3) / 4, nil
}

// thinkingBudgetFraction is the share of MaxOutputTokens reserved for
// extended thinking when a ThinkingMode is requested (spec.md §4.2: "a
// budget fraction of the response reservation, not a separate allocation").
var thinkingBudgetFraction = map[provider.ThinkingMode]float64{
	provider.ThinkingMinimal: 0.1,
	provider.ThinkingLow:     0.25,
	provider.ThinkingMedium:  0.5,
	provider.ThinkingHigh:    0.75,
	provider.ThinkingMax:     0.9,
}

func (d *Driver) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	cap, err := d.registry.Get(req.CanonicalModel)
	if err != nil {
		return provider.Response{}, &provider.InvalidRequestError{Provider: d.ProviderTag(), Err: err}
	}
	if len(req.Images) > 0 && !cap.SupportsVision {
		return provider.Response{}, &provider.UnsupportedCapabilityError{Provider: d.ProviderTag(), Feature: "vision"}
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = cap.MaxOutputTokens
	}
	if maxTokens <= 0 {
		return provider.Response{}, &provider.InvalidRequestError{Provider: d.ProviderTag(), Err: fmt.Errorf("max_tokens must be positive")}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.CanonicalModel),
		MaxTokens: int64(maxTokens),
		Messages:  []sdk.MessageParam{buildUserMessage(req)},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	temp := cap.Temperature.Resolve(req.Temperature)
	if cap.SupportsExtendedThink && req.ThinkingMode != "" {
		frac, ok := thinkingBudgetFraction[req.ThinkingMode]
		if !ok {
			frac = 0.5
		}
		budget := int64(float64(maxTokens) * frac)
		if budget < 1024 {
			budget = 1024
		}
		if budget >= int64(maxTokens) {
			budget = int64(maxTokens) - 1
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
		// Anthropic rejects temperature != 1 when thinking is enabled.
	} else {
		params.Temperature = sdk.Float(temp)
	}

	return provider.WithRetry(ctx, provider.DefaultRetryPolicy, func(ctx context.Context) (provider.Response, error) {
		msg, err := d.msg.New(ctx, params)
		if err != nil {
			return provider.Response{}, classifyError(d.ProviderTag(), err)
		}
		return translateResponse(msg, req.CanonicalModel, d.ProviderTag())
	})
}

func buildUserMessage(req provider.Request) sdk.MessageParam {
	blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(req.Images))
	for _, img := range req.Images {
		encoded := base64.StdEncoding.EncodeToString(img.Data)
		blocks = append(blocks, sdk.NewImageBlock(sdk.Base64ImageSourceParam{
			MediaType: sdk.Base64ImageSourceMediaType(img.MimeType),
			Data:      encoded,
		}))
	}
	blocks = append(blocks, sdk.NewTextBlock(req.Prompt))
	return sdk.NewUserMessage(blocks...)
}

func translateResponse(msg *sdk.Message, canonicalModel, providerTag string) (provider.Response, error) {
	if msg == nil {
		return provider.Response{}, &provider.InvalidRequestError{Provider: providerTag, Err: fmt.Errorf("nil response message")}
	}
	var content string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			if content != "" {
				content += "\n"
			}
			content += block.Text
		}
	}
	usage := provider.NewUsage(int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens))
	return provider.Response{
		Content:        content,
		Usage:          usage,
		CanonicalModel: canonicalModel,
		ProviderTag:    providerTag,
		Metadata:       map[string]string{"stop_reason": string(msg.StopReason)},
	}, nil
}

func classifyError(providerTag string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &provider.AuthError{Provider: providerTag, Err: err}
		case http.StatusTooManyRequests:
			return &provider.RateLimitedError{Provider: providerTag, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &provider.TimeoutError{Provider: providerTag, Err: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &provider.InvalidRequestError{Provider: providerTag, Err: err}
		}
		if apiErr.StatusCode >= 500 {
			return &provider.TransientError{Provider: providerTag, Err: err}
		}
	}
	return &provider.InvalidRequestError{Provider: providerTag, Err: err}
}
