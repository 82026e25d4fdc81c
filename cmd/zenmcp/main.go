// Command zenmcp is the Zen MCP server process entrypoint: it wires
// configuration, the capability registry, provider drivers, the
// conversation store, the tool catalogue, the C7/C8 runtimes, the
// Dispatcher, and the Public Surface into an MCP server listening on
// stdio. Wiring order follows the teacher's cmd/omega/main.go: load .env,
// load settings, construct dependencies bottom-up, then hand off to the
// long-running server loop.
package main

import (
	"context"
	"log"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/config"
	"github.com/zenmcp/zen/internal/conversation"
	"github.com/zenmcp/zen/internal/dispatch"
	"github.com/zenmcp/zen/internal/mcpserver"
	"github.com/zenmcp/zen/internal/provider"
	"github.com/zenmcp/zen/internal/provider/anthropicdriver"
	"github.com/zenmcp/zen/internal/provider/bedrockdriver"
	"github.com/zenmcp/zen/internal/provider/compatdriver"
	"github.com/zenmcp/zen/internal/provider/openaidriver"
	"github.com/zenmcp/zen/internal/surface"
	"github.com/zenmcp/zen/internal/toolspec"
	"github.com/zenmcp/zen/internal/workflow"

	simpletoolrt "github.com/zenmcp/zen/internal/simpletool"
)

const serverName = "zen"

func main() {
	config.LoadEnv()
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	registry, err := buildCapabilityRegistry(settings)
	if err != nil {
		log.Fatalf("[Main] building capability registry: %v", err)
	}

	router, configuredProviders := buildRouter(settings, registry)

	store := conversation.NewStore(settings.ConversationTimeoutHours, settings.MaxConversationTurns)
	defer store.Close()

	toolRegistry := toolspec.NewRegistry()
	for _, tool := range toolspec.DefaultTools() {
		toolRegistry.Register(tool)
	}
	visibleTools := toolRegistry
	if len(settings.DisabledTools) > 0 {
		visibleTools = toolRegistry.Disabled(settings.DisabledTools...)
	}

	simpleRuntime := simpletoolrt.NewRuntime(store, router, registry)
	workflowRuntime := workflow.NewRuntime(store, router, registry)
	dispatcher := dispatch.NewDispatcher(visibleTools, simpleRuntime, workflowRuntime, store)

	srf := surface.NewSurface(visibleTools, registry, router, configuredProviders)

	srv := mcpserver.New(serverName, surface.Version, dispatcher, srf)
	log.Printf("[Main] zenmcp starting (providers: %v, tools: %d)", configuredProviders, len(visibleTools.List()))
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("[Main] server exited: %v", err)
	}
}

// buildCapabilityRegistry assembles the hard-coded native catalogue plus
// any user-editable custom/aggregator overlay (spec.md §4.1).
func buildCapabilityRegistry(settings *config.Settings) (*capability.Registry, error) {
	builder := capability.NewBuilder()
	for _, m := range capability.NativeCatalogue() {
		builder.Add(m)
	}

	custom, err := capability.LoadCustomCatalogue(settings.CustomModelsPath)
	if err != nil {
		return nil, err
	}
	for _, m := range custom {
		builder.Add(m)
	}

	if settings.CustomAPIURL != "" && settings.CustomModel != "" {
		builder.Add(capability.ModelCapability{
			CanonicalName: settings.CustomModel,
			ProviderTag:   capability.ProviderCustom,
			ContextWindow: 32_000,
			Category:      capability.CategoryBalanced,
			Description:   "Custom/local endpoint model, declared via CUSTOM_MODEL.",
		})
	}

	return builder.Build()
}

// buildRouter constructs every driver whose credential is present and
// registers it in the fixed priority order (native, then custom, then
// aggregator — spec.md §4.3), returning the provider tags that were
// actually wired up for the `version` utility tool.
func buildRouter(settings *config.Settings, registry *capability.Registry) (*provider.Router, []string) {
	router := provider.NewRouter(registry)
	var configured []string

	modelsFor := func(tag string) []string {
		var names []string
		for _, m := range registry.All() {
			if m.ProviderTag == tag {
				names = append(names, m.CanonicalName)
			}
		}
		return names
	}

	if settings.AnthropicAPIKey != "" {
		driver, err := anthropicdriver.New(settings.AnthropicAPIKey, registry, modelsFor(capability.ProviderAnthropic))
		if err != nil {
			log.Fatalf("[Main] anthropic driver: %v", err)
		}
		router.RegisterNative(driver)
		router.SetAllowList(capability.ProviderAnthropic, settings.AnthropicAllowedModels)
		configured = append(configured, capability.ProviderAnthropic)
	}

	if settings.OpenAIAPIKey != "" {
		driver, err := openaidriver.New(settings.OpenAIAPIKey, 60*time.Second, registry, modelsFor(capability.ProviderOpenAI))
		if err != nil {
			log.Fatalf("[Main] openai driver: %v", err)
		}
		router.RegisterNative(driver)
		router.SetAllowList(capability.ProviderOpenAI, settings.OpenAIAllowedModels)
		configured = append(configured, capability.ProviderOpenAI)
	}

	if settings.BedrockEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(settings.BedrockRegion))
		if err != nil {
			log.Fatalf("[Main] loading AWS config for bedrock: %v", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		driver, err := bedrockdriver.New(client, registry, modelsFor(capability.ProviderBedrock))
		if err != nil {
			log.Fatalf("[Main] bedrock driver: %v", err)
		}
		router.RegisterNative(driver)
		router.SetAllowList(capability.ProviderBedrock, settings.BedrockAllowedModels)
		configured = append(configured, capability.ProviderBedrock)
	}

	if settings.CustomAPIURL != "" {
		var models []string
		if settings.CustomModel != "" {
			models = []string{settings.CustomModel}
		}
		driver, err := compatdriver.New(compatdriver.Config{
			APIKey:      settings.CustomAPIKey,
			BaseURL:     settings.CustomAPIURL,
			ProviderTag: capability.ProviderCustom,
			Role:        compatdriver.RoleCustom,
			HTTPTimeout: 60 * time.Second,
			Models:      models,
		}, registry)
		if err != nil {
			log.Fatalf("[Main] custom driver: %v", err)
		}
		router.SetCustom(driver)
		router.SetAllowList(capability.ProviderCustom, settings.CustomAllowedModels)
		configured = append(configured, capability.ProviderCustom)
	}

	if settings.AggregatorAPIKey != "" {
		driver, err := compatdriver.New(compatdriver.Config{
			APIKey:      settings.AggregatorAPIKey,
			BaseURL:     settings.AggregatorAPIURL,
			ProviderTag: capability.ProviderAggregator,
			Role:        compatdriver.RoleAggregator,
			HTTPTimeout: 120 * time.Second,
		}, registry)
		if err != nil {
			log.Fatalf("[Main] aggregator driver: %v", err)
		}
		router.SetAggregator(driver)
		router.SetAllowList(capability.ProviderAggregator, settings.AggregatorAllowedModels)
		configured = append(configured, capability.ProviderAggregator)
	}

	return router, configured
}
