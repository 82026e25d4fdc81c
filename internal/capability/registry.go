package capability

import (
	"sort"
	"strings"
)

// Registry is the immutable-after-Build catalogue of every model Zen knows
// about. It is safe for concurrent read-only use once Build returns; no
// mutation methods are exposed after construction (spec.md §5: "Capability
// Registry: read-only after startup; lock-free reads").
type Registry struct {
	byCanonical map[string]ModelCapability
	aliasToCanon map[string]string // lowercased alias -> canonical
	order        []string          // declaration order, for deterministic category iteration
}

// Builder accumulates ModelCapability entries before Build freezes them into
// a Registry. Splitting construction (mutable) from use (immutable) mirrors
// the "ambient singletons" design note (§9): no process-global registry,
// just an explicit value built once in main and passed down.
type Builder struct {
	entries []ModelCapability
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Add registers one ModelCapability. Errors are deferred to Build so callers
// can add every model from every source (hard-coded + custom JSON) before
// validation runs.
func (b *Builder) Add(m ModelCapability) *Builder {
	b.entries = append(b.entries, m)
	return b
}

// Build validates alias disjointness/non-chaining and canonical-name
// uniqueness (spec.md §3 invariant), then freezes the catalogue.
func (b *Builder) Build() (*Registry, error) {
	r := &Registry{
		byCanonical:  make(map[string]ModelCapability, len(b.entries)),
		aliasToCanon: make(map[string]string),
	}

	// First pass: canonical names, so we can detect alias-chaining (an
	// alias that collides with some other model's canonical name is fine;
	// an alias that collides with another model's *alias* is the chaining
	// case spec.md §4.1 rejects).
	for _, m := range b.entries {
		if _, exists := r.byCanonical[m.CanonicalName]; exists {
			return nil, ErrDuplicateAlias{Alias: m.CanonicalName, Provider: m.ProviderTag}
		}
		r.byCanonical[m.CanonicalName] = m
		r.order = append(r.order, m.CanonicalName)
	}

	for _, m := range b.entries {
		for _, alias := range m.Aliases {
			key := strings.ToLower(alias)
			// Aliases are declared only against canonical names (never
			// against other aliases), so chaining cannot arise from this
			// data shape alone; the one way it could still sneak in is an
			// alias string that collides with an *already-registered
			// alias* pointing at a different model — reject that as
			// chaining rather than silently letting the first registrant
			// win, since that collision almost always indicates a
			// catalogue authoring mistake.
			if target, exists := r.aliasToCanon[key]; exists && target != m.CanonicalName {
				return nil, ErrAliasChain{Alias: alias, Target: target}
			}
			r.aliasToCanon[key] = m.CanonicalName
		}
	}

	return r, nil
}

// Resolve performs a single-hop, case-insensitive lookup: exact canonical
// name match wins, then alias match (spec.md §4.1 — "alias wins before
// substring match"; Zen never does substring matching, only exact or alias,
// since substring matching over a global model catalogue is ambiguous by
// construction).
func (r *Registry) Resolve(name string) (string, error) {
	if _, ok := r.byCanonical[name]; ok {
		return name, nil
	}
	lower := strings.ToLower(name)
	for canon := range r.byCanonical {
		if strings.EqualFold(canon, name) {
			return canon, nil
		}
	}
	if canon, ok := r.aliasToCanon[lower]; ok {
		return canon, nil
	}
	return "", ErrNotFound{Name: name}
}

// Get returns the ModelCapability for a canonical name.
func (r *Registry) Get(canonicalName string) (ModelCapability, error) {
	m, ok := r.byCanonical[canonicalName]
	if !ok {
		return ModelCapability{}, ErrNotFound{Name: canonicalName}
	}
	return m, nil
}

// ModelsForCategory returns canonical names in a category, ordered by
// declaration order (spec.md §4.1: "deterministic ordering — explicit
// config override first, then catalogue declaration order"). Zen has no
// separate config-override list at this layer — that ordering is supplied
// by the caller (the provider router, which knows about restrictions) — so
// ModelsForCategory itself guarantees only catalogue-declaration-order,
// which the router then filters and may reorder using its own override list.
func (r *Registry) ModelsForCategory(cat Category) []string {
	var out []string
	for _, name := range r.order {
		if r.byCanonical[name].Category == cat {
			out = append(out, name)
		}
	}
	return out
}

// All returns every ModelCapability sorted by canonical name, used by the
// `listmodels` utility tool (C10).
func (r *Registry) All() []ModelCapability {
	out := make([]ModelCapability, 0, len(r.byCanonical))
	for _, m := range r.byCanonical {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName < out[j].CanonicalName })
	return out
}

// Allowed applies a provider's allow-list overlay. An empty list means
// unrestricted (every model that provider owns is usable). Unresolvable
// entries are the caller's responsibility to log — Allowed itself just
// reports membership (spec.md §4.1: "An unresolvable restriction entry is
// logged but does not abort startup").
func (r *Registry) Allowed(providerTag string, allowList []string, canonicalName string) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, entry := range allowList {
		canon, err := r.Resolve(entry)
		if err != nil {
			continue // unresolvable entries are ignored, not fatal
		}
		if canon == canonicalName {
			return true
		}
	}
	return false
}
