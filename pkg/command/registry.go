package command

import "math"

// MaxTag is the largest tag the engine protocol can carry.
const MaxTag = math.MaxInt32

// Registry mints per-category tags. Tags start at 1, increase by one, and
// are never reused. A Registry is owned by one Session and is not safe for
// concurrent use.
type Registry struct {
	last      [numCategories]int
	exhausted [numCategories]bool
	max       int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{max: MaxTag}
}

// Next allocates the next tag in category c.
func (r *Registry) Next(c Category) (int, error) {
	if !c.Tagged() {
		return 0, newError(KindParameter, "category %s has no tags", c)
	}
	if r.exhausted[c] || r.last[c] >= r.max {
		r.exhausted[c] = true
		return 0, newError(KindRegistryExhausted, "tag range exhausted for category %s", c).
			WithDetail("max", r.max)
	}
	r.last[c]++
	return r.last[c], nil
}

// Last returns the most recently allocated tag in c, or 0.
func (r *Registry) Last(c Category) int {
	if !c.Valid() {
		return 0
	}
	return r.last[c]
}

// Observe advances the counter of c so the next tag is greater than tag.
// Used when replaying a transcript whose tags were minted elsewhere.
func (r *Registry) Observe(c Category, tag int) {
	if !c.Tagged() || tag <= r.last[c] {
		return
	}
	if tag >= r.max {
		r.last[c] = r.max
		r.exhausted[c] = true
		return
	}
	r.last[c] = tag
}

// Snapshot returns the last tag per tagged category.
func (r *Registry) Snapshot() map[Category]int {
	out := make(map[Category]int)
	for _, c := range Categories() {
		if r.last[c] > 0 {
			out[c] = r.last[c]
		}
	}
	return out
}

// Reset clears all counters. Only a wiped session may reuse tags.
func (r *Registry) Reset() {
	r.last = [numCategories]int{}
	r.exhausted = [numCategories]bool{}
}
