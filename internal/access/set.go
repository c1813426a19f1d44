package access

import "sort"

// PermissionSet is an unordered collection of permission slugs.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from the given slugs.
func NewPermissionSet(slugs ...string) PermissionSet {
	set := make(PermissionSet, len(slugs))
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		set[slug] = struct{}{}
	}
	return set
}

// Has reports whether slug is a member.
func (s PermissionSet) Has(slug string) bool {
	_, ok := s[slug]
	return ok
}

// Len returns the number of members.
func (s PermissionSet) Len() int {
	return len(s)
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for slug := range s {
		out[slug] = struct{}{}
	}
	return out
}

// Union returns a new set containing members of both sets.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := s.Clone()
	for slug := range other {
		out[slug] = struct{}{}
	}
	return out
}

// Intersect returns a new set with members present in both sets.
func (s PermissionSet) Intersect(other PermissionSet) PermissionSet {
	out := make(PermissionSet)
	for slug := range s {
		if other.Has(slug) {
			out[slug] = struct{}{}
		}
	}
	return out
}

// Diff returns a new set with members of s not present in other.
func (s PermissionSet) Diff(other PermissionSet) PermissionSet {
	out := make(PermissionSet)
	for slug := range s {
		if !other.Has(slug) {
			out[slug] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold exactly the same slugs.
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for slug := range s {
		if !other.Has(slug) {
			return false
		}
	}
	return true
}

// Slice returns the members sorted lexically, for stable JSON payloads.
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for slug := range s {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
