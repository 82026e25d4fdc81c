// Package compatdriver implements the parameterized openai-compatible driver
// that serves three of Zen's provider roles (spec.md §4.2, §6 S6): the
// custom/local endpoint, the aggregator gateway catch-all, and any other
// openai-wire-compatible backend. All three are the same wire protocol
// pointed at a different base URL, so a single Driver type with a Role field
// covers all of them rather than three near-duplicate packages.
package compatdriver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openailib "github.com/sashabaranov/go-openai"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/provider"
)

// Role distinguishes the custom/local and aggregator roles in error messages
// and response metadata; the wire protocol is identical. Routing priority
// does not read Role: the router takes it from SetCustom/SetAggregator.
type Role string

const (
	RoleCustom     Role = "custom"
	RoleAggregator Role = "aggregator"
)

// Driver implements provider.Driver against any OpenAI-wire-compatible base
// URL. Unlike openaidriver, it may be configured as a catch-all (no fixed
// model set): when models is nil, SupportsModel always reports true and the
// driver accepts any name verbatim (spec.md S6 — the aggregator forwards
// unknown model names rather than rejecting them).
type Driver struct {
	client      *openailib.Client
	registry    *capability.Registry
	providerTag string
	role        Role
	models      map[string]bool // nil means catch-all
}

// Config configures one compat driver instance.
type Config struct {
	APIKey      string
	BaseURL     string
	ProviderTag string // capability.ProviderCustom or capability.ProviderAggregator (or a custom tag)
	Role        Role
	HTTPTimeout time.Duration
	// Models restricts SupportsModel to a fixed set (used for the custom/local
	// role, which usually serves one declared model). Leave nil for the
	// aggregator's catch-all behavior.
	Models []string
}

// New builds a compat Driver from cfg.
func New(cfg Config, registry *capability.Registry) (*Driver, error) {
	if cfg.APIKey == "" && cfg.Role != RoleCustom {
		return nil, errors.New("compatdriver: api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("compatdriver: base URL is required for role %s", cfg.Role)
	}

	clientCfg := openailib.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	var models map[string]bool
	if len(cfg.Models) > 0 {
		models = make(map[string]bool, len(cfg.Models))
		for _, m := range cfg.Models {
			models[m] = true
		}
	}

	return &Driver{
		client:      openailib.NewClientWithConfig(clientCfg),
		registry:    registry,
		providerTag: cfg.ProviderTag,
		role:        cfg.Role,
		models:      models,
	}, nil
}

func (d *Driver) ProviderTag() string { return d.providerTag }

// SupportsModel reports true for any name when this driver has no declared
// model set (the aggregator catch-all role).
func (d *Driver) SupportsModel(canonicalModel string) bool {
	if d.models == nil {
		return true
	}
	return d.models[canonicalModel]
}

func (d *Driver) Capabilities(canonicalModel string) (capability.ModelCapability, error) {
	if cap, err := d.registry.Get(canonicalModel); err == nil {
		return cap, nil
	}
	// Unknown-to-the-catalogue models reaching the aggregator still need a
	// capability value for downstream budget math; synthesize a permissive
	// default rather than failing (spec.md S6).
	return capability.ModelCapability{
		CanonicalName:   canonicalModel,
		ProviderTag:     d.providerTag,
		ContextWindow:   128_000,
		MaxOutputTokens: 4096,
		Temperature:     capability.TemperatureConstraint{Kind: capability.TemperatureRange, Min: 0, Max: 2, Default: 1},
		Category:        capability.CategoryBalanced,
	}, nil
}

func (d *Driver) CountTokens(text string, _ string) (int, error) {
	return (len(text) + 3) / 4, nil
}

func (d *Driver) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	cap, err := d.Capabilities(req.CanonicalModel)
	if err != nil {
		return provider.Response{}, &provider.InvalidRequestError{Provider: d.providerTag, Err: err}
	}
	if len(req.Images) > 0 && !cap.SupportsVision {
		return provider.Response{}, &provider.UnsupportedCapabilityError{Provider: d.providerTag, Feature: "vision"}
	}

	temp := cap.Temperature.Resolve(req.Temperature)

	var msgs []openailib.ChatCompletionMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, openailib.ChatCompletionMessage{Role: openailib.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	msgs = append(msgs, openailib.ChatCompletionMessage{Role: openailib.ChatMessageRoleUser, Content: req.Prompt})

	ccr := openailib.ChatCompletionRequest{
		// req.CanonicalModel, not cap.CanonicalName: an aggregator-routed name
		// must be forwarded exactly as the caller resolved it (spec S2), since
		// the aggregator's own catalogue may use different spellings than
		// Zen's.
		Model:       req.CanonicalModel,
		Messages:    msgs,
		Temperature: float32(temp),
	}
	if req.MaxOutputTokens > 0 {
		ccr.MaxTokens = req.MaxOutputTokens
	} else if cap.MaxOutputTokens > 0 {
		ccr.MaxTokens = cap.MaxOutputTokens
	}

	return provider.WithRetry(ctx, provider.DefaultRetryPolicy, func(ctx context.Context) (provider.Response, error) {
		resp, err := d.client.CreateChatCompletion(ctx, ccr)
		if err != nil {
			return provider.Response{}, classifyError(d.providerTag, err)
		}
		if len(resp.Choices) == 0 {
			return provider.Response{}, &provider.InvalidRequestError{Provider: d.providerTag, Err: fmt.Errorf("no choices returned")}
		}
		usage := provider.NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		return provider.Response{
			Content:        resp.Choices[0].Message.Content,
			Usage:          usage,
			CanonicalModel: req.CanonicalModel,
			ProviderTag:    d.providerTag,
			Metadata:       map[string]string{"finish_reason": string(resp.Choices[0].FinishReason), "role": string(d.role)},
		}, nil
	})
}

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
