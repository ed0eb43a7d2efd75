package hannou

import "math/bits"

// MaxComponentKinds is the number of distinct component kinds a ContextInfo
// may declare. It is fixed by the width of bitmask256.
const MaxComponentKinds = 256

// bitmask256 is the membership signature of an entity: bit k is set iff the
// slot for component kind k is occupied. Matchers compile their index lists
// to the same representation, which makes matching a handful of word ops.
type bitmask256 [4]uint64

// set enables the bit for kind.
func (m *bitmask256) set(kind int) {
	i := kind >> 6 // (kind / 64) to find the uint64 index
	o := kind & 63 // (kind % 64) to find the bit offset
	m[i] |= uint64(1) << uint64(o)
}

// unset disables the bit for kind.
func (m *bitmask256) unset(kind int) {
	i := kind >> 6
	o := kind & 63
	m[i] &= ^(uint64(1) << uint64(o))
}

// contains checks if all the bits set in sub are also set in m.
func (m bitmask256) contains(sub bitmask256) bool {
	return (m[0]&sub[0]) == sub[0] &&
		(m[1]&sub[1]) == sub[1] &&
		(m[2]&sub[2]) == sub[2] &&
		(m[3]&sub[3]) == sub[3]
}

// intersects checks if m has any bits in common with other.
func (m bitmask256) intersects(other bitmask256) bool {
	return (m[0]&other[0] != 0) ||
		(m[1]&other[1] != 0) ||
		(m[2]&other[2] != 0) ||
		(m[3]&other[3] != 0)
}

// containsBit checks if a specific bit is set in the mask.
func (m bitmask256) containsBit(kind int) bool {
	i := kind >> 6
	o := kind & 63
	return (m[i] & (uint64(1) << uint64(o))) != 0
}

func (m bitmask256) isZero() bool {
	return m[0]|m[1]|m[2]|m[3] == 0
}

// or returns the union of m and other.
func (m bitmask256) or(other bitmask256) bitmask256 {
	return bitmask256{m[0] | other[0], m[1] | other[1], m[2] | other[2], m[3] | other[3]}
}

// count returns the number of set bits.
func (m bitmask256) count() int {
	return bits.OnesCount64(m[0]) + bits.OnesCount64(m[1]) +
		bits.OnesCount64(m[2]) + bits.OnesCount64(m[3])
}

// kinds returns the set bits in ascending order.
func (m bitmask256) kinds() []int {
	out := make([]int, 0, m.count())
	for w, word := range m {
		for word != 0 {
			o := bits.TrailingZeros64(word)
			out = append(out, w<<6|o)
			word &= word - 1
		}
	}
	return out
}

// makeMask creates a mask from a list of component kinds. Kinds outside
// [0, MaxComponentKinds) panic.
func makeMask(kinds []int) bitmask256 {
	var m bitmask256
	for _, k := range kinds {
		checkKind(k)
		m.set(k)
	}
	return m
}
