package hannou

import (
	"slices"
	"testing"
)

type intFunc func(int)

func TestEventSubscribeAndEmit(t *testing.T) {
	var ev Event[intFunc]
	received := 0
	ev.Subscribe(func(v int) { received += v })
	ev.Subscribe(func(v int) { received += v * 2 })
	ev.emit(func(fn intFunc) { fn(1) })
	if received != 3 {
		t.Errorf("expected received 3, got %d", received)
	}
	ev.emit(func(fn intFunc) { fn(2) })
	if received != 3+6 {
		t.Errorf("expected received 9, got %d", received)
	}
}

func TestEventNoHandlers(t *testing.T) {
	var ev Event[intFunc]
	// No panic expected
	ev.emit(func(fn intFunc) { fn(42) })
	if ev.Unsubscribe(1) {
		t.Error("unsubscribing from an empty event must report false")
	}
}

func TestEventOrder(t *testing.T) {
	var ev Event[intFunc]
	var order []int
	const numSubs = 100
	for i := 0; i < numSubs; i++ {
		ev.Subscribe(func(int) { order = append(order, i) })
	}
	ev.emit(func(fn intFunc) { fn(0) })
	if len(order) != numSubs {
		t.Fatalf("expected %d calls, got %d", numSubs, len(order))
	}
	if !slices.IsSorted(order) {
		t.Errorf("handlers ran out of subscription order: %v", order)
	}
}

func TestEventUnsubscribe(t *testing.T) {
	var ev Event[intFunc]
	var got []string
	a := ev.Subscribe(func(int) { got = append(got, "a") })
	b := ev.Subscribe(func(int) { got = append(got, "b") })
	ev.Subscribe(func(int) { got = append(got, "c") })

	if !ev.Unsubscribe(b) {
		t.Fatal("expected b to be removed")
	}
	if ev.Unsubscribe(b) {
		t.Error("second unsubscribe must report false")
	}
	ev.emit(func(fn intFunc) { fn(0) })
	if !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("got %v", got)
	}
	ev.Unsubscribe(a)
	if ev.Len() != 1 {
		t.Errorf("expected 1 handler, got %d", ev.Len())
	}
	ev.Clear()
	if ev.Len() != 0 {
		t.Errorf("expected no handlers after Clear, got %d", ev.Len())
	}
}

func TestEventMutationDuringEmit(t *testing.T) {
	var ev Event[intFunc]
	var got []string
	var second Subscription
	ev.Subscribe(func(int) {
		got = append(got, "first")
		ev.Unsubscribe(second)
		ev.Subscribe(func(int) { got = append(got, "late") })
	})
	second = ev.Subscribe(func(int) { got = append(got, "second") })

	ev.emit(func(fn intFunc) { fn(0) })
	if !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("emission must iterate the handlers registered when it started, got %v", got)
	}
	got = nil
	ev.emit(func(fn intFunc) { fn(0) })
	if !slices.Equal(got, []string{"first", "late"}) {
		t.Errorf("got %v", got)
	}
}

func BenchmarkEventEmit(b *testing.B) {
	var ev Event[intFunc]
	sum := 0
	for range 8 {
		ev.Subscribe(func(v int) { sum += v })
	}
	b.ReportAllocs()
	for b.Loop() {
		ev.emit(func(fn intFunc) { fn(1) })
	}
	_ = sum
}
