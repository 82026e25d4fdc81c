package capability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// customModelFile is the on-disk shape of the user-editable catalogue
// document (spec.md §4.1: "a user-editable JSON document for
// aggregator/custom entries"). Keeping the wire shape distinct from
// ModelCapability lets the file use plain strings for the temperature
// constraint kind instead of leaking the internal enum.
type customModelFile struct {
	Models []customModelEntry `json:"models"`
}

type customModelEntry struct {
	CanonicalName       string   `json:"canonical_name"`
	FriendlyName        string   `json:"friendly_name"`
	ProviderTag         string   `json:"provider"`
	ContextWindow       int      `json:"context_window"`
	MaxOutputTokens     int      `json:"max_output_tokens"`
	SupportsThinking    bool     `json:"supports_extended_thinking"`
	SupportsVision      bool     `json:"supports_vision"`
	MaxImageBytes       int64    `json:"max_image_bytes"`
	TemperatureKind     string   `json:"temperature_kind"` // "fixed" | "discrete" | "range"
	TemperatureDefault  float64  `json:"temperature_default"`
	TemperatureMin      float64  `json:"temperature_min"`
	TemperatureMax      float64  `json:"temperature_max"`
	TemperatureAllowed  []float64 `json:"temperature_allowed"`
	Aliases             []string `json:"aliases"`
	Category            string   `json:"category"`
	Description         string   `json:"description"`
}

// LoadCustomCatalogue reads the JSON catalogue document at path, returning
// nil (no error) when path is empty or the file does not exist — the
// overlay is optional, matching the teacher's PromptLoader pattern of
// degrading gracefully when an override path is unset (internal/prompt.PromptLoader.Load).
func LoadCustomCatalogue(path string) ([]ModelCapability, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("capability: read custom catalogue %q: %w", path, err)
	}

	var file customModelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("capability: parse custom catalogue %q: %w", path, err)
	}

	out := make([]ModelCapability, 0, len(file.Models))
	for _, e := range file.Models {
		m, err := e.toCapability()
		if err != nil {
			log.Printf("[Capability] WARNING: skipping invalid custom model entry %q: %v", e.CanonicalName, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (e customModelEntry) toCapability() (ModelCapability, error) {
	if e.CanonicalName == "" {
		return ModelCapability{}, fmt.Errorf("canonical_name is required")
	}
	if e.ProviderTag == "" {
		return ModelCapability{}, fmt.Errorf("provider is required")
	}

	var kind TemperatureKind
	switch e.TemperatureKind {
	case "", "range":
		kind = TemperatureRange
		if e.TemperatureMax == 0 {
			e.TemperatureMax = 2
		}
	case "fixed":
		kind = TemperatureFixed
	case "discrete":
		kind = TemperatureDiscrete
	default:
		return ModelCapability{}, fmt.Errorf("unknown temperature_kind %q", e.TemperatureKind)
	}

	cat := Category(e.Category)
	switch cat {
	case CategoryFast, CategoryBalanced, CategoryDeepReasoning:
	case "":
		cat = CategoryBalanced
	default:
		return ModelCapability{}, fmt.Errorf("unknown category %q", e.Category)
	}

	return ModelCapability{
		CanonicalName:         e.CanonicalName,
		FriendlyName:          e.FriendlyName,
		ProviderTag:           e.ProviderTag,
		ContextWindow:         e.ContextWindow,
		MaxOutputTokens:       e.MaxOutputTokens,
		SupportsExtendedThink: e.SupportsThinking,
		SupportsVision:        e.SupportsVision,
		MaxImageBytes:         e.MaxImageBytes,
		Temperature: TemperatureConstraint{
			Kind:    kind,
			Default: e.TemperatureDefault,
			Min:     e.TemperatureMin,
			Max:     e.TemperatureMax,
			Allowed: e.TemperatureAllowed,
		},
		Aliases:     e.Aliases,
		Category:    cat,
		Description: e.Description,
	}, nil
}
