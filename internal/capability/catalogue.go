package capability

// ProviderTag identifies a driver family; it is also stored on each
// ModelCapability so the registry and router can cross-reference without a
// back-pointer.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderBedrock    = "bedrock"
	ProviderCustom     = "custom"
	ProviderAggregator = "aggregator"
)

// NativeCatalogue returns the hard-coded descriptors for the three native
// vendor families (spec.md §4.1: "hard-coded descriptors for native
// providers"). Detection of extended-thinking / vision support here mirrors
// the teacher's internal/llm/capabilities.go prefix-list approach, applied
// to a declarative table instead of runtime string sniffing, since Zen
// knows its full catalogue ahead of time rather than meeting arbitrary
// model names at runtime the way an OpenAI-compatible gateway does.
func NativeCatalogue() []ModelCapability {
	return []ModelCapability{
		{
			CanonicalName:         "claude-opus-4-5-20251101",
			FriendlyName:          "Claude Opus 4.5",
			ProviderTag:           ProviderAnthropic,
			ContextWindow:         200_000,
			MaxOutputTokens:       32_000,
			SupportsExtendedThink: true,
			SupportsVision:        true,
			MaxImageBytes:         5 << 20,
			Temperature: TemperatureConstraint{
				Kind: TemperatureRange, Default: 1.0, Min: 0, Max: 1,
			},
			Aliases:     []string{"opus", "claude-opus"},
			Category:    CategoryDeepReasoning,
			Description: "Anthropic's most capable model; strong multi-step reasoning.",
		},
		{
			CanonicalName:         "claude-sonnet-4-5-20250929",
			FriendlyName:          "Claude Sonnet 4.5",
			ProviderTag:           ProviderAnthropic,
			ContextWindow:         200_000,
			MaxOutputTokens:       16_000,
			SupportsExtendedThink: true,
			SupportsVision:        true,
			MaxImageBytes:         5 << 20,
			Temperature: TemperatureConstraint{
				Kind: TemperatureRange, Default: 1.0, Min: 0, Max: 1,
			},
			Aliases:     []string{"sonnet", "claude-sonnet", "claude"},
			Category:    CategoryBalanced,
			Description: "Balanced cost/capability Claude model.",
		},
		{
			CanonicalName:   "claude-haiku-4-5-20251001",
			FriendlyName:    "Claude Haiku 4.5",
			ProviderTag:     ProviderAnthropic,
			ContextWindow:   200_000,
			MaxOutputTokens: 8_000,
			SupportsVision:  true,
			MaxImageBytes:   5 << 20,
			Temperature: TemperatureConstraint{
				Kind: TemperatureRange, Default: 1.0, Min: 0, Max: 1,
			},
			Aliases:     []string{"haiku", "claude-haiku"},
			Category:    CategoryFast,
			Description: "Low-latency Claude model for quick chat and simple tools.",
		},
		{
			CanonicalName:         "gpt-5.1",
			FriendlyName:          "GPT-5.1",
			ProviderTag:           ProviderOpenAI,
			ContextWindow:         272_000,
			MaxOutputTokens:       32_000,
			SupportsExtendedThink: true,
			SupportsVision:        true,
			MaxImageBytes:         20 << 20,
			Temperature: TemperatureConstraint{
				Kind: TemperatureFixed, Default: 1.0,
			},
			Aliases:     []string{"gpt5", "gpt-5"},
			Category:    CategoryDeepReasoning,
			Description: "OpenAI flagship reasoning model; fixed temperature.",
		},
		{
			CanonicalName:   "gpt-5.1-mini",
			FriendlyName:    "GPT-5.1 Mini",
			ProviderTag:     ProviderOpenAI,
			ContextWindow:   272_000,
			MaxOutputTokens: 16_000,
			SupportsVision:  true,
			MaxImageBytes:   20 << 20,
			Temperature: TemperatureConstraint{
				Kind: TemperatureDiscrete, Default: 1.0, Allowed: []float64{0, 0.5, 1, 1.5, 2},
			},
			Aliases:     []string{"mini", "o4-mini", "gpt5-mini"},
			Category:    CategoryBalanced,
			Description: "Cheaper GPT-5.1 variant with a discrete temperature set.",
		},
		{
			CanonicalName:   "gpt-5.1-nano",
			FriendlyName:    "GPT-5.1 Nano",
			ProviderTag:     ProviderOpenAI,
			ContextWindow:   128_000,
			MaxOutputTokens: 8_000,
			Temperature: TemperatureConstraint{
				Kind: TemperatureRange, Default: 1.0, Min: 0, Max: 2,
			},
			Aliases:     []string{"nano"},
			Category:    CategoryFast,
			Description: "Smallest, fastest OpenAI tier for one-shot chat.",
		},
		{
			CanonicalName:         "anthropic.claude-opus-4-5-20251101-v1:0",
			FriendlyName:          "Claude Opus 4.5 (Bedrock)",
			ProviderTag:           ProviderBedrock,
			ContextWindow:         200_000,
			MaxOutputTokens:       32_000,
			SupportsExtendedThink: true,
			SupportsVision:        true,
			MaxImageBytes:         5 << 20,
			Temperature: TemperatureConstraint{
				Kind: TemperatureRange, Default: 1.0, Min: 0, Max: 1,
			},
			Aliases:     []string{"bedrock-opus"},
			Category:    CategoryDeepReasoning,
			Description: "Claude Opus served through AWS Bedrock Converse.",
		},
		{
			CanonicalName:   "anthropic.claude-haiku-4-5-20251001-v1:0",
			FriendlyName:    "Claude Haiku 4.5 (Bedrock)",
			ProviderTag:     ProviderBedrock,
			ContextWindow:   200_000,
			MaxOutputTokens: 8_000,
			SupportsVision:  true,
			MaxImageBytes:   5 << 20,
			Temperature: TemperatureConstraint{
				Kind: TemperatureRange, Default: 1.0, Min: 0, Max: 1,
			},
			Aliases:     []string{"bedrock-haiku"},
			Category:    CategoryFast,
			Description: "Low-latency Claude model served through AWS Bedrock.",
		},
	}
}
