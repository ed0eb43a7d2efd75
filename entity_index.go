package hannou

import (
	"fmt"
	"slices"
)

// EntityIndex is a secondary lookup from a component-derived key to
// entities, kept in sync with a Context. Register one with
// Context.AddEntityIndex.
type EntityIndex interface {
	Name() string
	// Activate subscribes to the context and indexes every live entity.
	Activate() error
	// Deactivate unsubscribes and drops every entry.
	Deactivate()
	IsActive() bool
}

// componentValidator is implemented by indices that can reject a mutation
// before it is applied. A successful claim reserves whatever the mutation
// needs until the index observes it; unclaim drops the reservation of a
// mutation that will not happen.
type componentValidator interface {
	claim(e *Entity, kind int, c Component) error
	unclaim(e *Entity, kind int, c Component)
}

// indexSource is the part shared by both index variants: the context, the
// indexed component kind, the key extractor and the context subscriptions.
type indexSource[K comparable] struct {
	ctx    *Context
	name   string
	kind   int
	key    func(Component) K
	active bool

	subAdded, subRemoved Subscription
	subReplaced          Subscription
	validator            componentValidator
}

func newIndexSource[K comparable, C any](ctx *Context, name string, kind int, key func(C) K) indexSource[K] {
	ctx.checkKind(kind)
	info := &ctx.info
	return indexSource[K]{
		ctx:  ctx,
		name: name,
		kind: kind,
		key: func(c Component) K {
			v, ok := c.(C)
			if !ok {
				panic(fmt.Sprintf("entity index %q: component %s is %T, not %T", name, info.ComponentName(kind), c, v))
			}
			return key(v)
		},
	}
}

func (s *indexSource[K]) Name() string   { return s.name }
func (s *indexSource[K]) IsActive() bool { return s.active }

// Kind returns the indexed component kind.
func (s *indexSource[K]) Kind() int { return s.kind }

// subscribe wires insert and remove to the context's component events for
// the indexed kind. A replacement is a remove of the old key followed by an
// insert of the new one. A non-nil v is registered with the context so it
// sees mutations before they are applied.
func (s *indexSource[K]) subscribe(insert, remove func(*Entity, K), v componentValidator) {
	ctx := s.ctx
	if v != nil {
		ctx.validators = append(ctx.validators, v)
		s.validator = v
	}
	s.subAdded = ctx.onComponentAdded.Subscribe(func(e *Entity, kind int, c Component) {
		if kind == s.kind {
			insert(e, s.key(c))
		}
	})
	s.subRemoved = ctx.onComponentRemoved.Subscribe(func(e *Entity, kind int, c Component) {
		if kind == s.kind {
			remove(e, s.key(c))
		}
	})
	s.subReplaced = ctx.onComponentReplaced.Subscribe(func(e *Entity, kind int, previous, next Component) {
		if kind == s.kind {
			remove(e, s.key(previous))
			insert(e, s.key(next))
		}
	})
	s.active = true
}

func (s *indexSource[K]) unsubscribe() {
	ctx := s.ctx
	if s.validator != nil {
		ctx.validators = slices.DeleteFunc(ctx.validators, func(v componentValidator) bool { return v == s.validator })
		s.validator = nil
	}
	ctx.onComponentAdded.Unsubscribe(s.subAdded)
	ctx.onComponentRemoved.Unsubscribe(s.subRemoved)
	ctx.onComponentReplaced.Unsubscribe(s.subReplaced)
	s.active = false
}

// holds reports whether e still stores a component of the indexed kind
// with key k. Handlers of the same mutation may have changed it since.
func (s *indexSource[K]) holds(e *Entity, k K) bool {
	return e.HasComponent(s.kind) && s.key(e.components[s.kind]) == k
}

// indexed returns the live entities that currently carry the indexed kind.
func (s *indexSource[K]) indexed() []*Entity {
	var out []*Entity
	for _, e := range s.ctx.Entities() {
		if e.HasComponent(s.kind) {
			out = append(out, e)
		}
	}
	return out
}

// PrimaryEntityIndex maps each key to at most one live entity.
type PrimaryEntityIndex[K comparable] struct {
	indexSource[K]
	entries map[K]*Entity
	claims  map[K]*Entity // keys of mutations still being dispatched
}

// NewPrimaryEntityIndex creates an inactive unique index over component
// kind.
//
// Parameters:
//   - ctx: The context to index.
//   - name: The name the index is registered under by Context.AddEntityIndex.
//   - kind: The indexed component kind.
//   - key: Extracts the key from the component, which must be of type C.
//
// Returns:
//   - The index. Activate it, usually through Context.AddEntityIndex.
func NewPrimaryEntityIndex[K comparable, C any](ctx *Context, name string, kind int, key func(C) K) *PrimaryEntityIndex[K] {
	return &PrimaryEntityIndex[K]{
		indexSource: newIndexSource(ctx, name, kind, key),
		entries:     make(map[K]*Entity),
		claims:      make(map[K]*Entity),
	}
}

// Activate indexes every live entity carrying the kind and starts
// rejecting mutations that would map a key to a second entity, whether the
// index was added with Context.AddEntityIndex or activated directly. It
// fails with ErrEntityAlreadyExistsForKey, leaving the index inactive, if
// two of them share a key.
func (ix *PrimaryEntityIndex[K]) Activate() error {
	if ix.active {
		return nil
	}
	for _, e := range ix.indexed() {
		k := ix.key(e.components[ix.kind])
		if other, ok := ix.entries[k]; ok {
			ix.clearEntries()
			return fmt.Errorf("%w: %v maps to %s and %s in index %q", ErrEntityAlreadyExistsForKey, k, other, e, ix.name)
		}
		ix.insert(e, k)
	}
	ix.subscribe(ix.insert, ix.remove, ix)
	return nil
}

// Deactivate unsubscribes and releases every indexed entity.
func (ix *PrimaryEntityIndex[K]) Deactivate() {
	if !ix.active {
		return
	}
	ix.unsubscribe()
	clear(ix.claims)
	ix.clearEntries()
}

// GetEntity returns the entity stored under k.
func (ix *PrimaryEntityIndex[K]) GetEntity(k K) (*Entity, error) {
	e, ok := ix.entries[k]
	if !ok {
		return nil, fmt.Errorf("%w: %v in index %q", ErrKeyNotFound, k, ix.name)
	}
	return e, nil
}

// Count returns the number of keys.
func (ix *PrimaryEntityIndex[K]) Count() int { return len(ix.entries) }

func (ix *PrimaryEntityIndex[K]) String() string {
	return fmt.Sprintf("PrimaryEntityIndex(%s)", ix.name)
}

// claim fails if c's key belongs to, or is being given to, another entity.
// Otherwise the key stays reserved for e until insert sees the mutation, so
// a handler of the same mutation cannot hand it to someone else.
func (ix *PrimaryEntityIndex[K]) claim(e *Entity, kind int, c Component) error {
	if !ix.active || kind != ix.kind {
		return nil
	}
	k := ix.key(c)
	if other, ok := ix.entries[k]; ok && other != e {
		return fmt.Errorf("%w: %v already maps to %s in index %q", ErrEntityAlreadyExistsForKey, k, other, ix.name)
	}
	if other, ok := ix.claims[k]; ok && other != e {
		return fmt.Errorf("%w: %v is being assigned to %s in index %q", ErrEntityAlreadyExistsForKey, k, other, ix.name)
	}
	ix.claims[k] = e
	return nil
}

func (ix *PrimaryEntityIndex[K]) unclaim(e *Entity, kind int, c Component) {
	if kind != ix.kind {
		return
	}
	k := ix.key(c)
	if ix.claims[k] == e {
		delete(ix.claims, k)
	}
}

func (ix *PrimaryEntityIndex[K]) insert(e *Entity, k K) {
	if ix.claims[k] == e {
		delete(ix.claims, k)
	}
	if !ix.holds(e, k) {
		return
	}
	if other, ok := ix.entries[k]; ok {
		if other == e {
			return
		}
		panic(fmt.Errorf("%w: %v maps to %s and %s in index %q", ErrEntityAlreadyExistsForKey, k, other, e, ix.name))
	}
	ix.entries[k] = e
	mustRetain(e, ix)
}

func (ix *PrimaryEntityIndex[K]) remove(e *Entity, k K) {
	if other, ok := ix.entries[k]; !ok || other != e {
		return
	}
	delete(ix.entries, k)
	mustRelease(e, ix)
}

func (ix *PrimaryEntityIndex[K]) clearEntries() {
	entries := ix.entries
	ix.entries = make(map[K]*Entity)
	for _, e := range entries {
		mustRelease(e, ix)
	}
}

// MultiEntityIndex maps each key to the set of live entities sharing it.
type MultiEntityIndex[K comparable] struct {
	indexSource[K]
	entries map[K][]*Entity
}

// NewMultiEntityIndex creates an inactive index over component kind. key
// extracts the key from the component, which must be of type C.
func NewMultiEntityIndex[K comparable, C any](ctx *Context, name string, kind int, key func(C) K) *MultiEntityIndex[K] {
	return &MultiEntityIndex[K]{
		indexSource: newIndexSource(ctx, name, kind, key),
		entries:     make(map[K][]*Entity),
	}
}

// Activate indexes every live entity carrying the kind.
func (ix *MultiEntityIndex[K]) Activate() error {
	if ix.active {
		return nil
	}
	for _, e := range ix.indexed() {
		ix.insert(e, ix.key(e.components[ix.kind]))
	}
	ix.subscribe(ix.insert, ix.remove, nil)
	return nil
}

// Deactivate unsubscribes and releases every indexed entity.
func (ix *MultiEntityIndex[K]) Deactivate() {
	if !ix.active {
		return
	}
	ix.unsubscribe()
	entries := ix.entries
	ix.entries = make(map[K][]*Entity)
	for _, es := range entries {
		for _, e := range es {
			mustRelease(e, ix)
		}
	}
}

// GetEntities returns the entities stored under k in insertion order, or an
// empty slice. The result is a copy.
func (ix *MultiEntityIndex[K]) GetEntities(k K) []*Entity {
	return slices.Clone(ix.entries[k])
}

// Count returns the number of keys.
func (ix *MultiEntityIndex[K]) Count() int { return len(ix.entries) }

func (ix *MultiEntityIndex[K]) String() string {
	return fmt.Sprintf("MultiEntityIndex(%s)", ix.name)
}

func (ix *MultiEntityIndex[K]) insert(e *Entity, k K) {
	if !ix.holds(e, k) {
		return
	}
	es := ix.entries[k]
	if slices.Contains(es, e) {
		return
	}
	ix.entries[k] = append(es, e)
	mustRetain(e, ix)
}

func (ix *MultiEntityIndex[K]) remove(e *Entity, k K) {
	es := ix.entries[k]
	i := slices.Index(es, e)
	if i < 0 {
		return
	}
	es = slices.Delete(es, i, i+1)
	if len(es) == 0 {
		delete(ix.entries, k)
	} else {
		ix.entries[k] = es
	}
	mustRelease(e, ix)
}

// GetPrimaryEntityIndex returns the primary index registered under name.
func GetPrimaryEntityIndex[K comparable](ctx *Context, name string) (*PrimaryEntityIndex[K], error) {
	idx, err := ctx.GetEntityIndex(name)
	if err != nil {
		return nil, err
	}
	ix, ok := idx.(*PrimaryEntityIndex[K])
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T", ErrEntityIndexTypeMismatch, name, idx)
	}
	return ix, nil
}

// GetMultiEntityIndex returns the multi index registered under name.
func GetMultiEntityIndex[K comparable](ctx *Context, name string) (*MultiEntityIndex[K], error) {
	idx, err := ctx.GetEntityIndex(name)
	if err != nil {
		return nil, err
	}
	ix, ok := idx.(*MultiEntityIndex[K])
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T", ErrEntityIndexTypeMismatch, name, idx)
	}
	return ix, nil
}
