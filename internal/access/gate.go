package access

// Gate answers per-slug authorization queries against a resolved effective
// set. Consumers receive one Gate per request and query it repeatedly;
// the expensive resolve runs once, checks are O(1) membership.
//
// The zero Gate fails closed: every Can returns false until a resolved
// set is attached.
type Gate struct {
	effective PermissionSet
}

// NewGate wraps a resolved effective permission set.
func NewGate(effective PermissionSet) Gate {
	return Gate{effective: effective}
}

// Can reports whether the effective set contains slug.
func (g Gate) Can(slug string) bool {
	if g.effective == nil {
		return false
	}
	return g.effective.Has(slug)
}

// CanAny reports whether any of the given slugs is held.
func (g Gate) CanAny(slugs ...string) bool {
	for _, slug := range slugs {
		if g.Can(slug) {
			return true
		}
	}
	return false
}

// CanAll reports whether every given slug is held.
func (g Gate) CanAll(slugs ...string) bool {
	for _, slug := range slugs {
		if !g.Can(slug) {
			return false
		}
	}
	return true
}

// Effective exposes the underlying set, mainly for response payloads.
func (g Gate) Effective() PermissionSet {
	if g.effective == nil {
		return PermissionSet{}
	}
	return g.effective
}
