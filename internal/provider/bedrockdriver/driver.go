// Package bedrockdriver implements the native-C provider family (spec.md
// §4.2): Claude-on-Bedrock models served through the AWS Bedrock Converse
// API. Message/response encoding follows goa-ai's
// features/model/bedrock/client.go, reduced to Zen's single-turn
// text(+image)-in/text-out Generate contract (no tool-use loop, no
// transcript ledger).
package bedrockdriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/provider"
)

// RuntimeClient is the subset of *bedrockruntime.Client used here, letting
// tests substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Driver implements provider.Driver against AWS Bedrock's Converse API.
type Driver struct {
	runtime  RuntimeClient
	registry *capability.Registry
	models   map[string]bool
}

// New builds a Driver around an AWS Bedrock runtime client, scoped to
// modelNames (every capability.ModelCapability with ProviderTag ==
// capability.ProviderBedrock).
func New(runtime *bedrockruntime.Client, registry *capability.Registry, modelNames []string) (*Driver, error) {
	if runtime == nil {
		return nil, errors.New("bedrockdriver: runtime client is required")
	}
	models := make(map[string]bool, len(modelNames))
	for _, m := range modelNames {
		models[m] = true
	}
	return &Driver{runtime: runtime, registry: registry, models: models}, nil
}

// NewWithClient builds a Driver around an already-constructed RuntimeClient,
// used by tests to inject a fake.
func NewWithClient(runtime RuntimeClient, registry *capability.Registry, modelNames []string) *Driver {
	models := make(map[string]bool, len(modelNames))
	for _, m := range modelNames {
		models[m] = true
	}
	return &Driver{runtime: runtime, registry: registry, models: models}
}

func (d *Driver) ProviderTag() string { return capability.ProviderBedrock }

func (d *Driver) SupportsModel(canonicalModel string) bool { return d.models[canonicalModel] }

func (d *Driver) Capabilities(canonicalModel string) (capability.ModelCapability, error) {
	return d.registry.Get(canonicalModel)
}

func (d *Driver) CountTokens(text string, _ string) (int, error) {
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

	blocks := make([]brtypes.ContentBlock, 0, 1+len(req.Images))
	for _, img := range req.Images {
		blocks = append(blocks, &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
			Format: imageFormat(img.MimeType),
			Source: &brtypes.ImageSourceMemberBytes{Value: img.Data},
		}})
	}
	blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: req.Prompt})

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.CanonicalModel),
		Messages: []brtypes.Message{
			{Role: brtypes.ConversationRoleUser, Content: blocks},
		},
	}
	if req.SystemPrompt != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = cap.MaxOutputTokens
	}
	temp := cap.Temperature.Resolve(req.Temperature)
	infCfg := brtypes.InferenceConfiguration{}
	if maxTokens > 0 {
		infCfg.MaxTokens = aws.Int32(int32(maxTokens))
	}
	infCfg.Temperature = aws.Float32(float32(temp))
	input.InferenceConfig = &infCfg

	return provider.WithRetry(ctx, provider.DefaultRetryPolicy, func(ctx context.Context) (provider.Response, error) {
		out, err := d.runtime.Converse(ctx, input)
		if err != nil {
			return provider.Response{}, classifyError(d.ProviderTag(), err)
		}
		return translateResponse(out, req.CanonicalModel, d.ProviderTag())
	})
}

func imageFormat(mimeType string) brtypes.ImageFormat {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return brtypes.ImageFormatJpeg
	case "image/gif":
		return brtypes.ImageFormatGif
	case "image/webp":
		return brtypes.ImageFormatWebp
	default:
		return brtypes.ImageFormatPng
	}
}

func translateResponse(out *bedrockruntime.ConverseOutput, canonicalModel, providerTag string) (provider.Response, error) {
	if out == nil {
		return provider.Response{}, &provider.InvalidRequestError{Provider: providerTag, Err: fmt.Errorf("nil converse output")}
	}
	var content string
	if msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if tb, ok := block.(*brtypes.ContentBlockMemberText); ok && tb.Value != "" {
				if content != "" {
					content += "\n"
				}
				content += tb.Value
			}
		}
	}
	var input, output int
	if out.Usage != nil {
		input = int(ptrValue(out.Usage.InputTokens))
		output = int(ptrValue(out.Usage.OutputTokens))
	}
	return provider.Response{
		Content:        content,
		Usage:          provider.NewUsage(input, output),
		CanonicalModel: canonicalModel,
		ProviderTag:    providerTag,
		Metadata:       map[string]string{"stop_reason": string(out.StopReason)},
	}, nil
}

func ptrValue[T ~int32 | ~int64](ptr *T) T {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func classifyError(providerTag string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return &provider.RateLimitedError{Provider: providerTag, Err: err}
		case "AccessDeniedException", "UnauthorizedException":
			return &provider.AuthError{Provider: providerTag, Err: err}
		case "ValidationException":
			return &provider.InvalidRequestError{Provider: providerTag, Err: err}
		case "ModelTimeoutException":
			return &provider.TimeoutError{Provider: providerTag, Err: err}
		case "ServiceUnavailableException", "InternalServerException":
			return &provider.TransientError{Provider: providerTag, Err: err}
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.HTTPStatusCode() == 429:
			return &provider.RateLimitedError{Provider: providerTag, Err: err}
		case respErr.HTTPStatusCode() >= 500:
			return &provider.TransientError{Provider: providerTag, Err: err}
		}
	}
	return &provider.InvalidRequestError{Provider: providerTag, Err: err}
}
