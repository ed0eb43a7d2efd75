package hannou

import "reflect"

// Component is plain data stored in an entity slot. Pointer components are
// the common case: they are what a ComponentPool can usefully recycle.
type Component any

// Resetter is implemented by components that must be zeroed before a pooled
// instance is handed out again.
type Resetter interface {
	Reset()
}

// ComponentPool is a free-list of released component instances of one kind.
type ComponentPool struct {
	typ   reflect.Type
	items []Component
}

// Len returns the number of pooled instances.
func (p *ComponentPool) Len() int {
	return len(p.items)
}

// Push returns c to the pool. Nil components are dropped.
func (p *ComponentPool) Push(c Component) {
	if c == nil {
		return
	}
	if r, ok := c.(Resetter); ok {
		r.Reset()
	}
	p.items = append(p.items, c)
}

// Pop removes the most recently pushed instance.
func (p *ComponentPool) Pop() (Component, bool) {
	last := len(p.items) - 1
	if last < 0 {
		return nil, false
	}
	c := p.items[last]
	p.items[last] = nil
	p.items = p.items[:last]
	return c, true
}

// Clear drops every pooled instance.
func (p *ComponentPool) Clear() {
	clear(p.items)
	p.items = p.items[:0]
}

// New pops a pooled instance or constructs a zero value of the bound type.
// Pointer types construct a pointer to a fresh zero value.
func (p *ComponentPool) New() (Component, bool) {
	if c, ok := p.Pop(); ok {
		return c, true
	}
	if p.typ == nil {
		return nil, false
	}
	if p.typ.Kind() == reflect.Pointer {
		return reflect.New(p.typ.Elem()).Interface(), true
	}
	return reflect.New(p.typ).Elem().Interface(), true
}

// componentPools is the per-context arena of component pools, one per kind.
type componentPools []ComponentPool

func newComponentPools(info *ContextInfo) componentPools {
	pools := make(componentPools, len(info.Components))
	for i, c := range info.Components {
		pools[i].typ = c.Type
	}
	return pools
}

func (ps componentPools) clear() {
	for i := range ps {
		ps[i].Clear()
	}
}
