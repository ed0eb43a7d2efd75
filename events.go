package hannou

// Subscription is the capability returned by Event.Subscribe. Passing it to
// Unsubscribe on the same Event removes exactly that registration.
type Subscription uint64

type handler[F any] struct {
	fn F
	id Subscription
}

// Event is an ordered list of handlers of one callback type. Handlers are
// invoked synchronously in subscription order.
//
// A handler may subscribe or unsubscribe while the event is being emitted:
// the emission in progress keeps iterating the handlers that were registered
// when it started. Emitting does not allocate.
type Event[F any] struct {
	handlers []handler[F]
	nextID   Subscription
}

// Subscribe appends fn and returns its Subscription.
func (ev *Event[F]) Subscribe(fn F) Subscription {
	ev.nextID++
	if cap(ev.handlers) == 0 {
		ev.handlers = make([]handler[F], 0, 4)
	}
	ev.handlers = append(ev.handlers, handler[F]{fn: fn, id: ev.nextID})
	return ev.nextID
}

// Unsubscribe removes the handler registered under s. It reports whether a
// handler was removed.
func (ev *Event[F]) Unsubscribe(s Subscription) bool {
	for i, h := range ev.handlers {
		if h.id != s {
			continue
		}
		// copy so that an emission iterating the old slice is not disturbed
		hs := make([]handler[F], 0, len(ev.handlers)-1)
		hs = append(hs, ev.handlers[:i]...)
		ev.handlers = append(hs, ev.handlers[i+1:]...)
		return true
	}
	return false
}

// Len returns the number of registered handlers.
func (ev *Event[F]) Len() int {
	return len(ev.handlers)
}

// Clear removes every handler.
func (ev *Event[F]) Clear() {
	ev.handlers = nil
}

// emit calls call once per handler, in subscription order.
func (ev *Event[F]) emit(call func(F)) {
	for _, h := range ev.handlers {
		call(h.fn)
	}
}
