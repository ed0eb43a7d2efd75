package hannou

import (
	"slices"
	"testing"
)

// go test -run ^TestBitmask$ . -count 1
func TestBitmask(t *testing.T) {
	var m bitmask256
	for _, k := range []int{0, 63, 64, 130, 255} {
		m.set(k)
	}
	if got := m.kinds(); !slices.Equal(got, []int{0, 63, 64, 130, 255}) {
		t.Fatalf("kinds() = %v", got)
	}
	if m.count() != 5 || m.isZero() {
		t.Errorf("count=%d zero=%v", m.count(), m.isZero())
	}
	m.unset(64)
	if m.containsBit(64) || !m.containsBit(63) {
		t.Error("unset touched the wrong bit")
	}

	sub := makeMask([]int{0, 255})
	if !m.contains(sub) {
		t.Error("expected m to contain sub")
	}
	if m.contains(makeMask([]int{0, 1})) {
		t.Error("m must not contain a set with a missing bit")
	}
	if !m.intersects(makeMask([]int{1, 130})) || m.intersects(makeMask([]int{1, 2})) {
		t.Error("intersects mismatch")
	}
	if u := makeMask([]int{1}).or(makeMask([]int{200})); !slices.Equal(u.kinds(), []int{1, 200}) {
		t.Errorf("or() = %v", u.kinds())
	}
}

func BenchmarkBitmaskContains(b *testing.B) {
	m := makeMask([]int{1, 5, 70, 140, 250})
	sub := makeMask([]int{5, 140})
	b.ReportAllocs()
	for b.Loop() {
		if !m.contains(sub) {
			b.Fatal("mismatch")
		}
	}
}
