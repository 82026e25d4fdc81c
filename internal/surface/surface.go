// Package surface implements the Public Surface (C10): the handful of
// utility tools that describe the server itself rather than dispatching to
// a provider — `list_tools`, `version`, and `listmodels` (spec.md §4.10).
// These sit beside the Dispatcher, not behind it: they never route through
// simpletool or workflow, since they answer from local state only.
package surface

import (
	"sort"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/provider"
	"github.com/zenmcp/zen/internal/toolspec"
)

// Version is the server's own release string, reported by the `version`
// utility tool alongside configured providers and enabled tools.
const Version = "0.1.0"

// Surface answers the three utility tools over whatever Registry view the
// caller built (so a DISABLED_TOOLS filter applies to `list_tools` the same
// way it applies to the Dispatcher).
type Surface struct {
	Tools     *toolspec.Registry
	Models    *capability.Registry
	Router    *provider.Router
	Providers []string // configured provider tags, for `version`
}

// NewSurface wires the already-constructed registries into a Surface.
func NewSurface(tools *toolspec.Registry, models *capability.Registry, router *provider.Router, providers []string) *Surface {
	return &Surface{Tools: tools, Models: models, Router: router, Providers: providers}
}

// ToolDescriptor is one entry of the list_tools() response (spec.md §4.10:
// "returns each enabled tool's JSON schema").
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RuntimeKind string `json:"runtime_kind"`
	Schema      any    `json:"schema"`
}

// ListTools returns every visible tool's name, description, and schema.
func (s *Surface) ListTools() []ToolDescriptor {
	tools := s.Tools.List()
	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			RuntimeKind: string(t.RuntimeKind),
			Schema:      t.Schema,
		})
	}
	return out
}

// VersionInfo is the version() response payload.
type VersionInfo struct {
	Version             string   `json:"version"`
	ConfiguredProviders []string `json:"configured_providers"`
	EnabledTools        []string `json:"enabled_tools"`
}

// Version reports the server version, configured providers, and the names
// of every tool currently visible through Tools.
func (s *Surface) Version() VersionInfo {
	names := make([]string, 0, len(s.Tools.List()))
	for _, t := range s.Tools.List() {
		names = append(names, t.Name)
	}
	providers := append([]string(nil), s.Providers...)
	sort.Strings(providers)
	return VersionInfo{Version: Version, ConfiguredProviders: providers, EnabledTools: names}
}

// ModelEntry is one entry of the listmodels() response: a catalogue
// descriptor plus whether it is currently reachable under the live
// restriction/registration state, and why not when it isn't (spec.md §4.10
// "returns the catalogue filtered by current restrictions" — supplemented
// here with a human-readable reason rather than silently omitting
// restricted models, so a caller can tell "restricted" apart from "no
// driver configured for this provider at all").
type ModelEntry struct {
	CanonicalName string `json:"canonical_name"`
	FriendlyName  string `json:"friendly_name,omitempty"`
	ProviderTag   string `json:"provider_tag"`
	Category      string `json:"category"`
	ContextWindow int    `json:"context_window"`
	Available     bool   `json:"available"`
	WhyRestricted string `json:"why_restricted,omitempty"`
}

// ListModels returns the full catalogue, each entry annotated with whether
// the router can currently reach it.
func (s *Surface) ListModels() []ModelEntry {
	models := s.Models.All()
	out := make([]ModelEntry, 0, len(models))
	for _, m := range models {
		entry := ModelEntry{
			CanonicalName: m.CanonicalName,
			FriendlyName:  m.FriendlyName,
			ProviderTag:   m.ProviderTag,
			Category:      string(m.Category),
			ContextWindow: m.ContextWindow,
		}
		if _, _, err := s.Router.PickDriver(m.CanonicalName); err != nil {
			entry.Available = false
			entry.WhyRestricted = err.Error()
		} else {
			entry.Available = true
		}
		out = append(out, entry)
	}
	return out
}
