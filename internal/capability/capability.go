// Package capability implements the declarative model catalogue (C1):
// context windows, thinking support, vision support, temperature
// constraints, aliases, and category membership for every model a Zen
// provider driver might be asked to serve.
package capability

import "fmt"

// Category is the coarse routing bucket used by "auto" model selection.
type Category string

const (
	CategoryFast          Category = "FAST"
	CategoryBalanced      Category = "BALANCED"
	CategoryDeepReasoning Category = "DEEP_REASONING"
)

// TemperatureKind selects how a model's temperature constraint is enforced.
type TemperatureKind int

const (
	// TemperatureFixed means the model accepts only TemperatureConstraint.Default.
	TemperatureFixed TemperatureKind = iota
	// TemperatureDiscrete means the model accepts only the values in Allowed.
	TemperatureDiscrete
	// TemperatureRange means the model accepts [Min, Max], clamped.
	TemperatureRange
)

// TemperatureConstraint describes how a model's temperature parameter may be set.
type TemperatureConstraint struct {
	Kind    TemperatureKind
	Default float64
	Min     float64   // used when Kind == TemperatureRange
	Max     float64   // used when Kind == TemperatureRange
	Allowed []float64 // used when Kind == TemperatureDiscrete
}

// Resolve applies the constraint's policy to a requested temperature,
// returning the effective value. Range constraints clamp; discrete and
// fixed constraints snap to the nearest allowed value deterministically
// (fixed has exactly one allowed value).
func (c TemperatureConstraint) Resolve(requested float64) float64 {
	switch c.Kind {
	case TemperatureFixed:
		return c.Default
	case TemperatureRange:
		if requested < c.Min {
			return c.Min
		}
		if requested > c.Max {
			return c.Max
		}
		return requested
	case TemperatureDiscrete:
		if len(c.Allowed) == 0 {
			return c.Default
		}
		best := c.Allowed[0]
		bestDist := diff(requested, best)
		for _, v := range c.Allowed[1:] {
			if d := diff(requested, v); d < bestDist {
				best, bestDist = v, d
			}
		}
		return best
	default:
		return requested
	}
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// ModelCapability is an immutable descriptor for one model (spec.md §3).
type ModelCapability struct {
	CanonicalName          string
	FriendlyName           string
	ProviderTag            string
	ContextWindow          int
	MaxOutputTokens        int
	SupportsExtendedThink  bool
	SupportsVision         bool
	MaxImageBytes          int64
	Temperature            TemperatureConstraint
	Aliases                []string
	Category               Category
	Description            string
}

// ErrNotFound is returned by Resolve/Get when a name is unknown.
type ErrNotFound struct{ Name string }

func (e ErrNotFound) Error() string { return fmt.Sprintf("capability: model %q not found", e.Name) }

// ErrAliasChain is returned at load time when an alias (compared
// case-insensitively) is already registered for a different model, on any
// provider. Aliases are only declared against canonical names, so Build
// treats such a collision as the one way an alias could chain.
type ErrAliasChain struct {
	Alias  string
	Target string
}

func (e ErrAliasChain) Error() string {
	return fmt.Sprintf("capability: alias %q resolves to %q, which is itself an alias (chaining is rejected)", e.Alias, e.Target)
}

// ErrDuplicateAlias is returned at load time when two entries declare the
// same canonical name; Alias then holds that canonical name and Provider the
// second entry's provider. Colliding aliases are reported as ErrAliasChain.
type ErrDuplicateAlias struct {
	Alias    string
	Provider string
}

func (e ErrDuplicateAlias) Error() string {
	return fmt.Sprintf("capability: alias %q already registered for provider %q", e.Alias, e.Provider)
}
