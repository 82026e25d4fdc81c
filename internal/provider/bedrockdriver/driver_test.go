package bedrockdriver

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/provider"
)

type fakeRuntime struct {
	out  *bedrockruntime.ConverseOutput
	err  error
	seen *bedrockruntime.ConverseInput
}

func (f *fakeRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.seen = params
	return f.out, f.err
}

func testRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	r, err := capability.NewBuilder().
		Add(capability.ModelCapability{
			CanonicalName:   "anthropic.claude-test-v1:0",
			ProviderTag:     capability.ProviderBedrock,
			MaxOutputTokens: 4096,
			SupportsVision:  true,
			Temperature:     capability.TemperatureConstraint{Kind: capability.TemperatureRange, Min: 0, Max: 1, Default: 0.7},
			Category:        capability.CategoryBalanced,
		}).
		Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return r
}

func TestGenerateBuildsConverseInput(t *testing.T) {
	reg := testRegistry(t)
	fake := &fakeRuntime{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hello back"}},
		}},
		Usage: &brtypes.TokenUsage{InputTokens: aws.Int32(5), OutputTokens: aws.Int32(7)},
	}}
	d := NewWithClient(fake, reg, []string{"anthropic.claude-test-v1:0"})

	resp, err := d.Generate(context.Background(), provider.Request{
		CanonicalModel: "anthropic.claude-test-v1:0",
		Prompt:         "hi",
		SystemPrompt:   "be terse",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "hello back" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("expected total 12, got %d", resp.Usage.TotalTokens)
	}
	if fake.seen.ModelId == nil || *fake.seen.ModelId != "anthropic.claude-test-v1:0" {
		t.Errorf("expected model id forwarded, got %+v", fake.seen.ModelId)
	}
	if len(fake.seen.System) != 1 {
		t.Errorf("expected system block set, got %+v", fake.seen.System)
	}
}

func TestGenerateRejectsImagesForNonVisionModel(t *testing.T) {
	reg, err := capability.NewBuilder().
		Add(capability.ModelCapability{CanonicalName: "text-only", ProviderTag: capability.ProviderBedrock, MaxOutputTokens: 100, SupportsVision: false}).
		Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	d := NewWithClient(&fakeRuntime{}, reg, []string{"text-only"})

	_, err = d.Generate(context.Background(), provider.Request{
		CanonicalModel: "text-only",
		Prompt:         "describe",
		Images:         []provider.Image{{Data: []byte("fake"), MimeType: "image/png"}},
	})
	if _, ok := err.(*provider.UnsupportedCapabilityError); !ok {
		t.Fatalf("expected *provider.UnsupportedCapabilityError, got %T", err)
	}
}

func TestImageFormatMapping(t *testing.T) {
	tests := []struct {
		mime string
		want brtypes.ImageFormat
	}{
		{"image/jpeg", brtypes.ImageFormatJpeg},
		{"image/jpg", brtypes.ImageFormatJpeg},
		{"image/gif", brtypes.ImageFormatGif},
		{"image/webp", brtypes.ImageFormatWebp},
		{"image/png", brtypes.ImageFormatPng},
		{"unknown/type", brtypes.ImageFormatPng},
	}
	for _, tt := range tests {
		if got := imageFormat(tt.mime); got != tt.want {
			t.Errorf("imageFormat(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}
