package simpletool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/conversation"
	"github.com/zenmcp/zen/internal/dispatch"
	"github.com/zenmcp/zen/internal/provider"
	"github.com/zenmcp/zen/internal/toolspec"
)

type fakeDriver struct {
	providerTag string
	model       string
	response    provider.Response
	err         error
	lastReq     provider.Request
}

func (f *fakeDriver) Generate(_ context.Context, req provider.Request) (provider.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return provider.Response{}, f.err
	}
	if f.response.Content == "" {
		f.response.Content = "ok"
	}
	return f.response, nil
}
func (f *fakeDriver) CountTokens(text string, _ string) (int, error) { return len(text) / 4, nil }
func (f *fakeDriver) SupportsModel(name string) bool                 { return name == f.model }
func (f *fakeDriver) Capabilities(name string) (capability.ModelCapability, error) {
	return capability.ModelCapability{CanonicalName: name}, nil
}
func (f *fakeDriver) ProviderTag() string { return f.providerTag }

func buildRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	r, err := capability.NewBuilder().
		Add(capability.ModelCapability{
			CanonicalName: "fake-model", ProviderTag: "fake",
			ContextWindow: 100_000, MaxOutputTokens: 4096,
			Category: capability.CategoryFast,
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r
}

func newTestRuntime(t *testing.T, driver provider.Driver) (*Runtime, *conversation.Store) {
	t.Helper()
	registry := buildRegistry(t)
	router := provider.NewRouter(registry)
	router.RegisterNative(driver)
	store := conversation.NewStore(time.Hour, 40)
	t.Cleanup(store.Close)
	return NewRuntime(store, router, registry), store
}

func chatTool() toolspec.Tool {
	for _, tool := range toolspec.DefaultTools() {
		if tool.Name == "chat" {
			return tool
		}
	}
	panic("chat tool not found")
}

func TestExecute_FreshCallCreatesThread(t *testing.T) {
	driver := &fakeDriver{providerTag: "fake", model: "fake-model", response: provider.Response{Content: "hello back"}}
	rt, _ := newTestRuntime(t, driver)

	args, _ := json.Marshal(map[string]any{"prompt": "hello", "model": "fake-model"})
	resp, zerr := rt.Execute(context.Background(), chatTool(), args)
	if zerr != nil {
		t.Fatalf("Execute: %v", zerr)
	}
	if resp.Content != "hello back" {
		t.Errorf("Content = %q, want %q", resp.Content, "hello back")
	}
	if resp.ThreadID == "" {
		t.Error("expected a thread id to be assigned")
	}
}

func TestExecute_ContinuationReusesThreadAndLastModel(t *testing.T) {
	driver := &fakeDriver{providerTag: "fake", model: "fake-model", response: provider.Response{Content: "second reply"}}
	rt, store := newTestRuntime(t, driver)

	firstArgs, _ := json.Marshal(map[string]any{"prompt": "first", "model": "fake-model"})
	first, zerr := rt.Execute(context.Background(), chatTool(), firstArgs)
	if zerr != nil {
		t.Fatalf("first Execute: %v", zerr)
	}

	secondArgs, _ := json.Marshal(map[string]any{"prompt": "second", "continuation_id": first.ThreadID})
	second, zerr := rt.Execute(context.Background(), chatTool(), secondArgs)
	if zerr != nil {
		t.Fatalf("second Execute: %v", zerr)
	}
	if second.ThreadID != first.ThreadID {
		t.Errorf("ThreadID = %q, want %q", second.ThreadID, first.ThreadID)
	}
	if second.Model != "fake-model" {
		t.Errorf("Model = %q, want the thread's last model fake-model", second.Model)
	}

	thread, err := store.Get(first.ThreadID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(thread.Turns) != 4 {
		t.Fatalf("expected 4 turns (2 user + 2 assistant), got %d", len(thread.Turns))
	}
}

func TestExecute_UnknownContinuationFailsWithContinuationNotAvailable(t *testing.T) {
	driver := &fakeDriver{providerTag: "fake", model: "fake-model"}
	rt, _ := newTestRuntime(t, driver)

	args, _ := json.Marshal(map[string]any{"prompt": "hi", "continuation_id": "does-not-exist"})
	_, zerr := rt.Execute(context.Background(), chatTool(), args)
	if zerr == nil || zerr.Kind != dispatch.KindContinuationNotAvailable {
		t.Fatalf("expected KindContinuationNotAvailable, got %v", zerr)
	}
}

func TestExecute_MissingRequiredFieldFailsValidation(t *testing.T) {
	driver := &fakeDriver{providerTag: "fake", model: "fake-model"}
	rt, _ := newTestRuntime(t, driver)

	args, _ := json.Marshal(map[string]any{"model": "fake-model"})
	_, zerr := rt.Execute(context.Background(), chatTool(), args)
	if zerr == nil || zerr.Kind != dispatch.KindValidationError {
		t.Fatalf("expected KindValidationError, got %v", zerr)
	}
}

func TestExecute_ProviderErrorTranslated(t *testing.T) {
	driver := &fakeDriver{
		providerTag: "fake", model: "fake-model",
		err: &provider.AuthError{Provider: "fake", Err: context.Canceled},
	}
	rt, _ := newTestRuntime(t, driver)

	args, _ := json.Marshal(map[string]any{"prompt": "hi", "model": "fake-model"})
	_, zerr := rt.Execute(context.Background(), chatTool(), args)
	if zerr == nil || zerr.Kind != dispatch.KindProviderAuthError {
		t.Fatalf("expected KindProviderAuthError, got %v", zerr)
	}
}

func TestExecute_AutoModelFallsBackToCategoryDefault(t *testing.T) {
	driver := &fakeDriver{providerTag: "fake", model: "fake-model", response: provider.Response{Content: "auto reply"}}
	rt, _ := newTestRuntime(t, driver)

	args, _ := json.Marshal(map[string]any{"prompt": "hi", "model": "auto"})
	resp, zerr := rt.Execute(context.Background(), chatTool(), args)
	if zerr != nil {
		t.Fatalf("Execute: %v", zerr)
	}
	if resp.Model != "fake-model" {
		t.Errorf("Model = %q, want category default fake-model", resp.Model)
	}
}

func TestExecute_LargePromptExceedingTransportBudgetEscapes(t *testing.T) {
	driver := &fakeDriver{providerTag: "fake", model: "fake-model"}
	rt, _ := newTestRuntime(t, driver)
	rt.TransportBudgetChars = 100

	huge := make([]byte, 1000)
	for i := range huge {
		huge[i] = 'a'
	}
	args, _ := json.Marshal(map[string]any{"prompt": string(huge), "model": "fake-model"})
	_, zerr := rt.Execute(context.Background(), chatTool(), args)
	if zerr == nil || zerr.Kind != dispatch.KindLargePromptEscape {
		t.Fatalf("expected KindLargePromptEscape, got %v", zerr)
	}
}
