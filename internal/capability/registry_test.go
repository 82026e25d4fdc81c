package capability

import "testing"

func buildTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewBuilder().
		Add(ModelCapability{
			CanonicalName: "model-a", ProviderTag: "p1",
			Aliases: []string{"alias-a", "AA"}, Category: CategoryFast,
			Temperature: TemperatureConstraint{Kind: TemperatureRange, Max: 1},
		}).
		Add(ModelCapability{
			CanonicalName: "model-b", ProviderTag: "p1",
			Aliases: []string{"alias-b"}, Category: CategoryDeepReasoning,
			Temperature: TemperatureConstraint{Kind: TemperatureFixed, Default: 1},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r
}

func TestRegistryResolve(t *testing.T) {
	r := buildTestRegistry(t)

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"model-a", "model-a", false},
		{"alias-a", "model-a", false},
		{"ALIAS-A", "model-a", false}, // case-insensitive
		{"aa", "model-a", false},
		{"alias-b", "model-b", false},
		{"unknown-model", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestRegistryDuplicateAliasRejected(t *testing.T) {
	_, err := NewBuilder().
		Add(ModelCapability{CanonicalName: "a", ProviderTag: "p1", Aliases: []string{"x"}}).
		Add(ModelCapability{CanonicalName: "b", ProviderTag: "p1", Aliases: []string{"x"}}).
		Build()
	if err == nil {
		t.Fatal("expected duplicate alias error, got nil")
	}
}

func TestRegistryDuplicateCanonicalRejected(t *testing.T) {
	_, err := NewBuilder().
		Add(ModelCapability{CanonicalName: "dup", ProviderTag: "p1"}).
		Add(ModelCapability{CanonicalName: "dup", ProviderTag: "p2"}).
		Build()
	if err == nil {
		t.Fatal("expected duplicate canonical name error, got nil")
	}
}

func TestModelsForCategoryDeterministicOrder(t *testing.T) {
	r, err := NewBuilder().
		Add(ModelCapability{CanonicalName: "fast-1", ProviderTag: "p1", Category: CategoryFast}).
		Add(ModelCapability{CanonicalName: "deep-1", ProviderTag: "p1", Category: CategoryDeepReasoning}).
		Add(ModelCapability{CanonicalName: "fast-2", ProviderTag: "p1", Category: CategoryFast}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := r.ModelsForCategory(CategoryFast)
	want := []string{"fast-1", "fast-2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ModelsForCategory(FAST) = %v, want %v", got, want)
	}
}

func TestAllowedEmptyListUnrestricted(t *testing.T) {
	r := buildTestRegistry(t)
	if !r.Allowed("p1", nil, "model-a") {
		t.Error("empty allow-list should permit every model")
	}
}

func TestAllowedRestrictsByResolvedName(t *testing.T) {
	r := buildTestRegistry(t)
	if !r.Allowed("p1", []string{"alias-a"}, "model-a") {
		t.Error("allow-list entry alias-a should resolve and permit model-a")
	}
	if r.Allowed("p1", []string{"alias-a"}, "model-b") {
		t.Error("model-b should not be permitted when only alias-a is allowed")
	}
}

func TestAllowedIgnoresUnresolvableEntries(t *testing.T) {
	r := buildTestRegistry(t)
	// Unresolvable entries must not abort: model-a is allowed even though
	// "ghost-model" can't be resolved (spec.md §4.1).
	if !r.Allowed("p1", []string{"ghost-model", "model-a"}, "model-a") {
		t.Error("unresolvable allow-list entries should be skipped, not fatal")
	}
}

func TestTemperatureConstraintResolve(t *testing.T) {
	tests := []struct {
		name string
		c    TemperatureConstraint
		in   float64
		want float64
	}{
		{"fixed ignores input", TemperatureConstraint{Kind: TemperatureFixed, Default: 1}, 0.3, 1},
		{"range clamps above max", TemperatureConstraint{Kind: TemperatureRange, Min: 0, Max: 1}, 1.5, 1},
		{"range clamps below min", TemperatureConstraint{Kind: TemperatureRange, Min: 0.2, Max: 1}, 0, 0.2},
		{"range passes through", TemperatureConstraint{Kind: TemperatureRange, Min: 0, Max: 2}, 0.7, 0.7},
		{"discrete snaps to nearest", TemperatureConstraint{Kind: TemperatureDiscrete, Allowed: []float64{0, 0.5, 1}}, 0.8, 1},
		{"boundary at upper bound is accepted", TemperatureConstraint{Kind: TemperatureRange, Min: 0, Max: 1}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.Resolve(tt.in)
			if got != tt.want {
				t.Errorf("Resolve(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
