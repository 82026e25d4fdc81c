package provider

import (
	"fmt"

	"github.com/zenmcp/zen/internal/capability"
)

// NoProviderForModelError means no registered driver owns the model and no
// aggregator is configured as a catch-all.
type NoProviderForModelError struct{ Model string }

func (e *NoProviderForModelError) Error() string {
	return fmt.Sprintf("provider: no driver can serve model %q", e.Model)
}

// ModelRestrictedError means the model resolves but is excluded by an
// allow-list (spec.md §4.3).
type ModelRestrictedError struct {
	Model    string
	Provider string
}

func (e *ModelRestrictedError) Error() string {
	return fmt.Sprintf("provider: model %q is restricted for provider %q", e.Model, e.Provider)
}

// Router holds driver instances and applies the fixed priority order from
// spec.md §4.3: native drivers in registration order, then custom/local,
// then the aggregator as a catch-all.
type Router struct {
	registry    *capability.Registry
	nativeOrder []Driver // registration order
	custom      Driver   // nil if not configured
	aggregator  Driver   // nil if not configured

	allowLists map[string][]string // providerTag -> allow-list
}

// NewRouter constructs an empty Router over a built capability Registry.
func NewRouter(registry *capability.Registry) *Router {
	return &Router{registry: registry, allowLists: make(map[string][]string)}
}

// RegisterNative appends a native vendor driver; order of calls is the
// priority order among native drivers (spec.md §4.3 point 1).
func (r *Router) RegisterNative(d Driver) { r.nativeOrder = append(r.nativeOrder, d) }

// SetCustom registers the custom/local endpoint driver (priority 2).
func (r *Router) SetCustom(d Driver) { r.custom = d }

// SetAggregator registers the aggregator gateway driver (priority 3,
// catch-all).
func (r *Router) SetAggregator(d Driver) { r.aggregator = d }

// SetAllowList installs the allow-list overlay for one provider tag.
func (r *Router) SetAllowList(providerTag string, allow []string) {
	r.allowLists[providerTag] = allow
}

// allDrivers returns every configured driver in priority order.
func (r *Router) allDrivers() []Driver {
	out := make([]Driver, 0, len(r.nativeOrder)+2)
	out = append(out, r.nativeOrder...)
	if r.custom != nil {
		out = append(out, r.custom)
	}
	if r.aggregator != nil {
		out = append(out, r.aggregator)
	}
	return out
}

// PickDriver walks the priority order and returns the first driver whose
// SupportsModel returns true for the resolved canonical name; the
// aggregator accepts any name as a catch-all if nothing else matches.
// Restrictions are enforced before returning (spec.md §4.3).
func (r *Router) PickDriver(modelName string) (Driver, string, error) {
	canon, err := r.registry.Resolve(modelName)
	if err != nil {
		// The aggregator is allowed to serve models Zen's own catalogue has
		// never heard of (it's explicitly a catch-all for arbitrary names),
		// so an unresolved name still reaches the aggregator untouched.
		if r.aggregator != nil {
			if e := r.checkRestriction(r.aggregator.ProviderTag(), modelName); e != nil {
				return nil, "", e
			}
			return r.aggregator, modelName, nil
		}
		return nil, "", &NoProviderForModelError{Model: modelName}
	}

	for _, d := range r.nativeOrder {
		if d.SupportsModel(canon) {
			if e := r.checkRestriction(d.ProviderTag(), canon); e != nil {
				return nil, "", e
			}
			return d, canon, nil
		}
	}
	if r.custom != nil && r.custom.SupportsModel(canon) {
		if e := r.checkRestriction(r.custom.ProviderTag(), canon); e != nil {
			return nil, "", e
		}
		return r.custom, canon, nil
	}
	if r.aggregator != nil {
		if e := r.checkRestriction(r.aggregator.ProviderTag(), canon); e != nil {
			return nil, "", e
		}
		return r.aggregator, canon, nil
	}
	return nil, "", &NoProviderForModelError{Model: modelName}
}

func (r *Router) checkRestriction(providerTag, canonicalName string) error {
	allow := r.allowLists[providerTag]
	if !r.registry.Allowed(providerTag, allow, canonicalName) {
		return &ModelRestrictedError{Model: canonicalName, Provider: providerTag}
	}
	return nil
}

// PickModelForCategory selects the first catalogue-declared model in a
// category whose driver is registered and whose name passes current
// restrictions (spec.md §4.3 — used for "auto" model resolution).
func (r *Router) PickModelForCategory(cat capability.Category) (string, error) {
	for _, name := range r.registry.ModelsForCategory(cat) {
		if _, _, err := r.PickDriver(name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("provider: no registered, unrestricted model found for category %s", cat)
}
