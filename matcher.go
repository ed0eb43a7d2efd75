package hannou

import (
	"strconv"
	"strings"
)

// matcherKey is the canonical form of a Matcher. Two matchers with equal
// keys match exactly the same entities and share one Group.
type matcherKey struct {
	all, any, none bitmask256
}

// Matcher is an immutable predicate over component presence. Build one with
// AllOf, AnyOf or NoneOf and refine it with the chaining methods, each of
// which returns a new Matcher.
type Matcher struct {
	key     matcherKey
	indices []int // union of all three sets, ascending
}

// AllOf matches entities that have every listed kind.
func AllOf(kinds ...int) *Matcher {
	return newMatcher(matcherKey{all: makeMask(kinds)})
}

// AnyOf matches entities that have at least one listed kind.
func AnyOf(kinds ...int) *Matcher {
	return newMatcher(matcherKey{any: makeMask(kinds)})
}

// NoneOf matches entities that have none of the listed kinds.
func NoneOf(kinds ...int) *Matcher {
	return newMatcher(matcherKey{none: makeMask(kinds)})
}

// AllOf returns a matcher that additionally requires every listed kind.
func (m *Matcher) AllOf(kinds ...int) *Matcher {
	k := m.key
	k.all = k.all.or(makeMask(kinds))
	return newMatcher(k)
}

// AnyOf returns a matcher that additionally requires one of the listed kinds.
// Repeated AnyOf calls widen the same any-set.
func (m *Matcher) AnyOf(kinds ...int) *Matcher {
	k := m.key
	k.any = k.any.or(makeMask(kinds))
	return newMatcher(k)
}

// NoneOf returns a matcher that additionally excludes the listed kinds.
func (m *Matcher) NoneOf(kinds ...int) *Matcher {
	k := m.key
	k.none = k.none.or(makeMask(kinds))
	return newMatcher(k)
}

func newMatcher(k matcherKey) *Matcher {
	return &Matcher{key: k, indices: k.all.or(k.any).or(k.none).kinds()}
}

// Matches evaluates the matcher against e's current components. The
// exclusion set is checked first.
func (m *Matcher) Matches(e *Entity) bool {
	return m.matchesMask(e.mask)
}

func (m *Matcher) matchesMask(mask bitmask256) bool {
	if mask.intersects(m.key.none) {
		return false
	}
	if !mask.contains(m.key.all) {
		return false
	}
	if !m.key.any.isZero() && !mask.intersects(m.key.any) {
		return false
	}
	return true
}

// matchesEmpty reports whether an entity without components matches, which
// is the case for matchers built only from NoneOf.
func (m *Matcher) matchesEmpty() bool {
	return m.matchesMask(bitmask256{})
}

// Equal reports whether m and other match exactly the same entities.
func (m *Matcher) Equal(other *Matcher) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.key == other.key
}

// Indices returns every kind the matcher mentions, ascending and without
// duplicates.
func (m *Matcher) Indices() []int {
	return append([]int(nil), m.indices...)
}

// AllOfIndices returns the required kinds, ascending.
func (m *Matcher) AllOfIndices() []int { return m.key.all.kinds() }

// AnyOfIndices returns the alternative kinds, ascending.
func (m *Matcher) AnyOfIndices() []int { return m.key.any.kinds() }

// NoneOfIndices returns the excluded kinds, ascending.
func (m *Matcher) NoneOfIndices() []int { return m.key.none.kinds() }

// String renders the matcher with numeric kinds, e.g. "AllOf(1, 3).NoneOf(2)".
func (m *Matcher) String() string {
	return m.Format(nil)
}

// Format renders the matcher using names for kinds that have one.
func (m *Matcher) Format(names []string) string {
	var sb strings.Builder
	writeSet := func(label string, set bitmask256) {
		if set.isZero() {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(label)
		sb.WriteByte('(')
		for i, k := range set.kinds() {
			if i > 0 {
				sb.WriteString(", ")
			}
			if k < len(names) && names[k] != "" {
				sb.WriteString(names[k])
			} else {
				sb.WriteString(strconv.Itoa(k))
			}
		}
		sb.WriteByte(')')
	}
	writeSet("AllOf", m.key.all)
	writeSet("AnyOf", m.key.any)
	writeSet("NoneOf", m.key.none)
	if sb.Len() == 0 {
		return "AllOf()"
	}
	return sb.String()
}
