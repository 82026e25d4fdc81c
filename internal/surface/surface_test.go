package surface

import (
	"context"
	"testing"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/provider"
	"github.com/zenmcp/zen/internal/toolspec"
)

type fakeDriver struct {
	providerTag string
	models      map[string]bool
}

func (f *fakeDriver) Generate(context.Context, provider.Request) (provider.Response, error) {
	return provider.Response{}, nil
}
func (f *fakeDriver) CountTokens(string, string) (int, error) { return 0, nil }
func (f *fakeDriver) SupportsModel(name string) bool          { return f.models[name] }
func (f *fakeDriver) Capabilities(name string) (capability.ModelCapability, error) {
	return capability.ModelCapability{CanonicalName: name}, nil
}
func (f *fakeDriver) ProviderTag() string { return f.providerTag }

func buildSurface(t *testing.T) *Surface {
	t.Helper()
	registry, err := capability.NewBuilder().
		Add(capability.ModelCapability{CanonicalName: "reachable-model", ProviderTag: "fake", ContextWindow: 100_000, Category: capability.CategoryFast}).
		Add(capability.ModelCapability{CanonicalName: "unreachable-model", ProviderTag: "other", ContextWindow: 50_000, Category: capability.CategoryBalanced}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	router := provider.NewRouter(registry)
	router.RegisterNative(&fakeDriver{providerTag: "fake", models: map[string]bool{"reachable-model": true}})

	tools := toolspec.NewRegistry()
	for _, tool := range toolspec.DefaultTools() {
		tools.Register(tool)
	}

	return NewSurface(tools, registry, router, []string{"fake"})
}

func TestListTools_ReturnsEveryRegisteredTool(t *testing.T) {
	s := buildSurface(t)
	descriptors := s.ListTools()
	if len(descriptors) != len(toolspec.DefaultTools()) {
		t.Fatalf("got %d descriptors, want %d", len(descriptors), len(toolspec.DefaultTools()))
	}
}

func TestListTools_RespectsDisabledToolsView(t *testing.T) {
	s := buildSurface(t)
	s.Tools = s.Tools.Disabled("chat")
	for _, d := range s.ListTools() {
		if d.Name == "chat" {
			t.Fatal("expected chat to be hidden by the disabled-tools view")
		}
	}
}

func TestVersion_ReportsConfiguredProvidersAndTools(t *testing.T) {
	s := buildSurface(t)
	v := s.Version()
	if v.Version != Version {
		t.Errorf("Version = %q, want %q", v.Version, Version)
	}
	if len(v.ConfiguredProviders) != 1 || v.ConfiguredProviders[0] != "fake" {
		t.Errorf("ConfiguredProviders = %v", v.ConfiguredProviders)
	}
	if len(v.EnabledTools) != len(toolspec.DefaultTools()) {
		t.Errorf("EnabledTools count = %d, want %d", len(v.EnabledTools), len(toolspec.DefaultTools()))
	}
}

func TestListModels_MarksUnreachableModelsWithAReason(t *testing.T) {
	s := buildSurface(t)
	entries := s.ListModels()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	byName := map[string]ModelEntry{}
	for _, e := range entries {
		byName[e.CanonicalName] = e
	}
	if !byName["reachable-model"].Available {
		t.Error("expected reachable-model to be available")
	}
	if byName["unreachable-model"].Available {
		t.Error("expected unreachable-model to be unavailable")
	}
	if byName["unreachable-model"].WhyRestricted == "" {
		t.Error("expected a why_restricted reason for the unavailable model")
	}
}
