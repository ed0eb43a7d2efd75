// Package hannou is the runtime core of a reactive Entity Component System.
//
// A Context creates and destroys Entities, which hold plain-data components
// in slots addressed by a dense kind index. Groups keep the live set of
// entities that satisfy a Matcher up to date on every mutation, Collectors
// turn group membership changes into one-shot batches, and ReactiveSystems
// drain a Collector once per simulation step. Entity indices map a
// component-derived key back to its entities.
//
// Features:
//   - Entity shells and component instances are pooled per Context.
//   - Matchers compile to 256-bit masks; equal matchers share one Group.
//   - All notifications are synchronous and ordered; nested mutations from a
//     handler are fully processed before the outer call returns.
//   - Reference-counted entity lifetime with per-owner retains, so groups,
//     collectors and indices never observe a reused shell.
//
// A Context is not safe for concurrent use.
package hannou

import (
	"fmt"
	"slices"
)

// ContextEntityFunc observes an entity lifecycle step in a Context.
type ContextEntityFunc func(ctx *Context, e *Entity)

// ContextGroupFunc observes a group being created or cleared.
type ContextGroupFunc func(ctx *Context, g *Group)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l Logger) Option {
	return func(ctx *Context) {
		if l != nil {
			ctx.logger = l
		}
	}
}

// WithInitialCapacity pre-allocates n entity shells in the reuse pool.
func WithInitialCapacity(n int) Option {
	return func(ctx *Context) {
		ctx.initialCapacity = max(n, 0)
	}
}

// entityRegistry tracks every entity shell the context ever allocated.
type entityRegistry struct {
	slots         []*Entity // slot id -> shell
	reusable      []*Entity // stack of released shells
	retained      map[*Entity]struct{}
	cache         []*Entity // live entities in slot order, nil when stale
	count         int
	creationIndex int
	totalCreated  int
	totalDestroy  int
}

// groupRegistry holds every group of the context.
type groupRegistry struct {
	byKey         map[matcherKey]*Group
	list          []*Group   // creation order
	forIndex      [][]*Group // kind -> groups whose matcher mentions it
	emptyMatching []*Group   // groups that match an entity without components
}

// pendingChange is a group transition awaiting its event.
type pendingChange struct {
	group  *Group
	change groupChange
}

// changeArena recycles the pending-change lists used by group updates. Each
// nested update takes its own list, so handlers may mutate freely.
type changeArena struct {
	free [][]pendingChange
}

func (a *changeArena) get() []pendingChange {
	if n := len(a.free); n > 0 {
		s := a.free[n-1]
		a.free = a.free[:n-1]
		return s
	}
	return make([]pendingChange, 0, 8)
}

func (a *changeArena) put(s []pendingChange) {
	clear(s)
	a.free = append(a.free, s[:0])
}

// Context is the factory and registry for entities sharing one component
// kind space. It owns entity pooling, component pools, groups and entity
// indices.
type Context struct {
	info     ContextInfo
	names    []string
	logger   Logger
	pools    componentPools
	entities entityRegistry
	groups   groupRegistry
	changes  changeArena

	indices         []EntityIndex
	indexByName     map[string]EntityIndex
	validators      []componentValidator
	initialCapacity int

	onEntityCreated         Event[ContextEntityFunc]
	onEntityWillBeDestroyed Event[ContextEntityFunc]
	onEntityDestroyed       Event[ContextEntityFunc]
	onComponentAdded        Event[ComponentFunc]
	onComponentRemoved      Event[ComponentFunc]
	onComponentReplaced     Event[ComponentReplacedFunc]
	onGroupCreated          Event[ContextGroupFunc]
	onGroupCleared          Event[ContextGroupFunc]
}

// NewContext creates a context for the component kinds described by info.
// The context keeps its own copy of info, so later registrations on the
// caller's ContextInfo do not affect it.
//
// Parameters:
//   - info: The component-kind space. Kind k of every entity of the context
//     is info.Components[k].
//   - opts: Functional options such as WithLogger and WithInitialCapacity.
//
// Returns:
//   - The new, empty Context.
//
// It panics if info declares more than MaxComponentKinds kinds.
func NewContext(info ContextInfo, opts ...Option) *Context {
	if len(info.Components) > MaxComponentKinds {
		panic(fmt.Sprintf("context %q declares %d component kinds, maximum is %d", info.Name, len(info.Components), MaxComponentKinds))
	}
	info.Components = slices.Clone(info.Components)
	ctx := &Context{
		info:        info,
		names:       info.ComponentNames(),
		logger:      NewSlogLogger(nil),
		indexByName: make(map[string]EntityIndex),
		entities: entityRegistry{
			retained: make(map[*Entity]struct{}),
		},
		groups: groupRegistry{
			byKey:    make(map[matcherKey]*Group),
			forIndex: make([][]*Group, len(info.Components)),
		},
	}
	ctx.pools = newComponentPools(&ctx.info)
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.preallocate(ctx.initialCapacity)
	return ctx
}

// preallocate fills the reuse pool with n disabled shells; shell 0 is
// handed out first.
func (ctx *Context) preallocate(n int) {
	if n == 0 {
		return
	}
	ctx.entities.slots = make([]*Entity, 0, n)
	for i := range n {
		e := newEntity(ctx, uint32(i), 0)
		e.enabled = false
		e.pooled = true
		ctx.entities.slots = append(ctx.entities.slots, e)
	}
	ctx.entities.reusable = make([]*Entity, n)
	for i := range n {
		ctx.entities.reusable[i] = ctx.entities.slots[n-1-i]
	}
}

// Info returns the context's component-kind description.
func (ctx *Context) Info() *ContextInfo { return &ctx.info }

// Name returns the context name.
func (ctx *Context) Name() string { return ctx.info.Name }

// TotalComponents returns the number of component kinds.
func (ctx *Context) TotalComponents() int { return len(ctx.info.Components) }

// Logger returns the context's diagnostics logger.
func (ctx *Context) Logger() Logger { return ctx.logger }

func (ctx *Context) String() string { return ctx.info.Name }

// OnEntityCreated returns the event fired after an entity is created.
func (ctx *Context) OnEntityCreated() *Event[ContextEntityFunc] { return &ctx.onEntityCreated }

// OnEntityWillBeDestroyed returns the event fired before a destroyed
// entity's components are removed.
func (ctx *Context) OnEntityWillBeDestroyed() *Event[ContextEntityFunc] {
	return &ctx.onEntityWillBeDestroyed
}

// OnEntityDestroyed returns the event fired after a destroyed entity's
// components are removed and before the context releases it.
func (ctx *Context) OnEntityDestroyed() *Event[ContextEntityFunc] { return &ctx.onEntityDestroyed }

// OnComponentAdded returns the event fired for every component added to any
// entity of the context, after groups have been updated.
func (ctx *Context) OnComponentAdded() *Event[ComponentFunc] { return &ctx.onComponentAdded }

// OnComponentRemoved is the context-wide counterpart of Entity.OnComponentRemoved.
func (ctx *Context) OnComponentRemoved() *Event[ComponentFunc] { return &ctx.onComponentRemoved }

// OnComponentReplaced is the context-wide counterpart of Entity.OnComponentReplaced.
func (ctx *Context) OnComponentReplaced() *Event[ComponentReplacedFunc] {
	return &ctx.onComponentReplaced
}

// OnGroupCreated returns the event fired when GetGroup creates a group.
func (ctx *Context) OnGroupCreated() *Event[ContextGroupFunc] { return &ctx.onGroupCreated }

// OnGroupCleared returns the event fired for each group dropped by ClearGroups.
func (ctx *Context) OnGroupCleared() *Event[ContextGroupFunc] { return &ctx.onGroupCleared }

// CreateEntity returns a live entity, reusing a released shell if one is
// available. The new entity has a creation index never handed out before
// (unless ResetCreationIndex was called).
//
// Returns:
//   - The entity, enabled, empty and retained by the context. Groups whose
//     matcher accepts an empty entity already contain it when
//     OnEntityCreated fires.
func (ctx *Context) CreateEntity() *Entity {
	reg := &ctx.entities
	var e *Entity
	if n := len(reg.reusable); n > 0 {
		e = reg.reusable[n-1]
		reg.reusable[n-1] = nil
		reg.reusable = reg.reusable[:n-1]
		e.pooled = false
		if err := e.Reactivate(reg.creationIndex); err != nil {
			panic(err)
		}
	} else {
		e = newEntity(ctx, uint32(len(reg.slots)), reg.creationIndex)
		reg.slots = append(reg.slots, e)
	}
	reg.creationIndex++
	reg.count++
	reg.totalCreated++
	reg.cache = nil
	mustRetain(e, ctx)
	ctx.updateGroups(e, ctx.groups.emptyMatching, -1, nil)
	ctx.onEntityCreated.emit(func(fn ContextEntityFunc) { fn(ctx, e) })
	return e
}

// DestroyEntity runs the destroy sequence: OnEntityWillBeDestroyed, removal
// of every component in ascending kind order, OnEntityDestroyed, and the
// release of the context's retain. If other owners still retain the entity
// its shell is reused only after their last release.
func (ctx *Context) DestroyEntity(e *Entity) error {
	if e == nil || e.ctx != ctx {
		return fmt.Errorf("%w: %v in context %q", ErrEntityNotInContext, e, ctx.info.Name)
	}
	if e.destroying {
		return fmt.Errorf("%w: %s", ErrEntityIsBeingDestroyed, e)
	}
	if !e.enabled {
		return fmt.Errorf("%w: %s in context %q", ErrEntityNotInContext, e, ctx.info.Name)
	}
	reg := &ctx.entities
	e.destroying = true
	reg.count--
	reg.cache = nil

	ctx.onEntityWillBeDestroyed.emit(func(fn ContextEntityFunc) { fn(ctx, e) })
	e.enabled = false
	e.removeAllComponents()
	ctx.updateGroups(e, ctx.groups.emptyMatching, -1, nil)
	e.onComponentAdded.Clear()
	e.onComponentRemoved.Clear()
	e.onComponentReplaced.Clear()
	reg.totalDestroy++
	ctx.onEntityDestroyed.emit(func(fn ContextEntityFunc) { fn(ctx, e) })

	e.destroying = false
	if e.RetainCount() > 1 {
		reg.retained[e] = struct{}{}
	}
	mustRelease(e, ctx)
	return nil
}

// entityReleased is called by an entity whose last owner released it.
func (ctx *Context) entityReleased(e *Entity) {
	delete(ctx.entities.retained, e)
	if e.pooled {
		return
	}
	e.pooled = true
	ctx.entities.reusable = append(ctx.entities.reusable, e)
}

// HasEntity reports whether e is a live entity of this context.
func (ctx *Context) HasEntity(e *Entity) bool {
	return e != nil && e.ctx == ctx && e.enabled && !e.destroying
}

// Lookup resolves a Handle to its entity if that incarnation is still live.
func (ctx *Context) Lookup(h Handle) (*Entity, bool) {
	if int(h.ID) >= len(ctx.entities.slots) {
		return nil, false
	}
	e := ctx.entities.slots[h.ID]
	if !ctx.HasEntity(e) || e.creationIndex != h.CreationIndex {
		return nil, false
	}
	return e, true
}

// Entities returns the live entities in slot order. The slice is a snapshot
// that stays valid while entities are created or destroyed. Callers must not
// modify it.
func (ctx *Context) Entities() []*Entity {
	reg := &ctx.entities
	if reg.cache == nil {
		reg.cache = make([]*Entity, 0, reg.count)
		for _, e := range reg.slots {
			if ctx.HasEntity(e) {
				reg.cache = append(reg.cache, e)
			}
		}
	}
	return reg.cache
}

// Count returns the number of live entities.
func (ctx *Context) Count() int { return ctx.entities.count }

// ReusableEntitiesCount returns the number of shells waiting for reuse.
func (ctx *Context) ReusableEntitiesCount() int { return len(ctx.entities.reusable) }

// RetainedEntitiesCount returns the number of destroyed entities that are
// still retained by an owner other than the context.
func (ctx *Context) RetainedEntitiesCount() int { return len(ctx.entities.retained) }

// RetainedEntities returns the destroyed-but-retained entities ordered by
// creation index.
func (ctx *Context) RetainedEntities() []*Entity {
	out := make([]*Entity, 0, len(ctx.entities.retained))
	for e := range ctx.entities.retained {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Entity) int { return a.creationIndex - b.creationIndex })
	return out
}

// CreationIndex returns the creation index the next entity will receive.
func (ctx *Context) CreationIndex() int { return ctx.entities.creationIndex }

// TotalCreated returns how many entities were ever created.
func (ctx *Context) TotalCreated() int { return ctx.entities.totalCreated }

// TotalDestroyed returns how many entities were ever destroyed.
func (ctx *Context) TotalDestroyed() int { return ctx.entities.totalDestroy }

// DestroyAllEntities destroys every live entity. It returns
// ErrEntitiesAreStillRetained, after logging each offender, if destroyed
// entities remain retained by owners other than the context. Nothing is
// rolled back in that case.
func (ctx *Context) DestroyAllEntities() error {
	for _, e := range ctx.Entities() {
		if !ctx.HasEntity(e) {
			continue // destroyed by an earlier handler
		}
		if err := ctx.DestroyEntity(e); err != nil {
			return err
		}
	}
	retained := ctx.RetainedEntities()
	if len(retained) == 0 {
		return nil
	}
	for _, e := range retained {
		ctx.logger.Warn("entity is still retained after destroying all entities",
			"context", ctx.info.Name, "entity", e.String(), "owners", fmt.Sprint(e.Owners()))
	}
	return fmt.Errorf("%w: %d entities in context %q", ErrEntitiesAreStillRetained, len(retained), ctx.info.Name)
}

// ResetCreationIndex restarts creation indices at zero.
func (ctx *Context) ResetCreationIndex() {
	ctx.entities.creationIndex = 0
}

// ComponentPool returns the pool for kind.
func (ctx *Context) ComponentPool(kind int) *ComponentPool {
	return &ctx.pools[ctx.checkKind(kind)]
}

// ClearComponentPool drops the pooled instances of kind.
func (ctx *Context) ClearComponentPool(kind int) {
	ctx.pools[ctx.checkKind(kind)].Clear()
}

// ClearComponentPools drops every pooled component instance.
func (ctx *Context) ClearComponentPools() {
	ctx.pools.clear()
}

// CreateComponent returns a pooled instance of kind or a new zero value of
// its bound type.
func (ctx *Context) CreateComponent(kind int) (Component, error) {
	c, ok := ctx.pools[ctx.checkKind(kind)].New()
	if !ok {
		return nil, fmt.Errorf("%w: %s in context %q", ErrComponentTypeNotBound, ctx.info.ComponentName(kind), ctx.info.Name)
	}
	return c, nil
}

// Reset restores a context without live entities to its initial state:
// creation indices restart, component pools are emptied and the entity and
// group lifecycle handlers are removed. Groups, entity indices and
// context-wide component handlers stay.
func (ctx *Context) Reset() error {
	if ctx.entities.count > 0 {
		return fmt.Errorf("%w: %d live entities in context %q", ErrContextNotEmpty, ctx.entities.count, ctx.info.Name)
	}
	ctx.ResetCreationIndex()
	ctx.ClearComponentPools()
	ctx.onEntityCreated.Clear()
	ctx.onEntityWillBeDestroyed.Clear()
	ctx.onEntityDestroyed.Clear()
	ctx.onGroupCreated.Clear()
	ctx.onGroupCleared.Clear()
	return nil
}

func (ctx *Context) checkKind(kind int) int {
	if kind < 0 || kind >= len(ctx.info.Components) {
		panic(fmt.Sprintf("component kind %d out of range for context %q (%d kinds)", kind, ctx.info.Name, len(ctx.info.Components)))
	}
	return kind
}

// GetGroup returns the group for m, creating it on first request. A new
// group is filled with every live entity that matches, without emitting
// group events, and OnGroupCreated fires once it is registered.
//
// Parameters:
//   - m: The matcher. Matchers that are Equal share one group.
//
// Returns:
//   - The group, kept up to date on every later mutation until ClearGroups.
//
// It panics if m mentions a kind outside the context's kind range.
func (ctx *Context) GetGroup(m *Matcher) *Group {
	if g, ok := ctx.groups.byKey[m.key]; ok {
		return g
	}
	for _, k := range m.indices {
		ctx.checkKind(k)
	}
	g := newGroup(m, ctx.names)
	for _, e := range ctx.entities.slots {
		if ctx.HasEntity(e) {
			g.handleEntitySilently(e)
		}
	}
	reg := &ctx.groups
	reg.byKey[m.key] = g
	reg.list = append(reg.list, g)
	for _, k := range m.indices {
		reg.forIndex[k] = append(reg.forIndex[k], g)
	}
	if m.matchesEmpty() {
		reg.emptyMatching = append(reg.emptyMatching, g)
	}
	ctx.logger.Debug("group created", "context", ctx.info.Name, "group", g.String(), "entities", g.Count())
	ctx.onGroupCreated.emit(func(fn ContextGroupFunc) { fn(ctx, g) })
	return g
}

// Groups returns every group in creation order.
func (ctx *Context) Groups() []*Group {
	return slices.Clone(ctx.groups.list)
}

// GroupNames returns the names of every group in creation order.
func (ctx *Context) GroupNames() []string {
	names := make([]string, len(ctx.groups.list))
	for i, g := range ctx.groups.list {
		names[i] = g.String()
	}
	return names
}

// ClearGroups detaches every group: its handlers are removed, its members
// released and OnGroupCleared fires. Later GetGroup calls build new groups.
func (ctx *Context) ClearGroups() {
	list := ctx.groups.list
	ctx.groups = groupRegistry{
		byKey:    make(map[matcherKey]*Group),
		forIndex: make([][]*Group, len(ctx.info.Components)),
	}
	for _, g := range list {
		g.RemoveAllEventHandlers()
		g.clear()
		ctx.logger.Debug("group cleared", "context", ctx.info.Name, "group", g.String())
		ctx.onGroupCleared.emit(func(fn ContextGroupFunc) { fn(ctx, g) })
	}
}

// CreateCollector is shorthand for a Collector over GetGroup(m).
func (ctx *Context) CreateCollector(m *Matcher, event GroupEvent) *Collector {
	return NewCollector(Trigger{Group: ctx.GetGroup(m), Event: event})
}

// AddEntityIndex activates idx and registers it under its name.
func (ctx *Context) AddEntityIndex(idx EntityIndex) error {
	name := idx.Name()
	if _, ok := ctx.indexByName[name]; ok {
		return fmt.Errorf("%w: %q in context %q", ErrEntityIndexAlreadyExists, name, ctx.info.Name)
	}
	if err := idx.Activate(); err != nil {
		return err
	}
	ctx.indexByName[name] = idx
	ctx.indices = append(ctx.indices, idx)
	ctx.logger.Debug("entity index added", "context", ctx.info.Name, "index", name)
	return nil
}

// GetEntityIndex returns the index registered under name.
func (ctx *Context) GetEntityIndex(name string) (EntityIndex, error) {
	idx, ok := ctx.indexByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in context %q", ErrEntityIndexDoesNotExist, name, ctx.info.Name)
	}
	return idx, nil
}

// EntityIndexNames returns the registered index names in registration order.
func (ctx *Context) EntityIndexNames() []string {
	names := make([]string, len(ctx.indices))
	for i, idx := range ctx.indices {
		names[i] = idx.Name()
	}
	return names
}

// DeactivateAndRemoveEntityIndices deactivates and unregisters every index.
func (ctx *Context) DeactivateAndRemoveEntityIndices() {
	for _, idx := range ctx.indices {
		idx.Deactivate()
	}
	ctx.indices = nil
	clear(ctx.indexByName)
}

// validate asks every active index whether storing c in kind on e would
// break its invariants. It runs before any state changes; on success every
// index holds a claim that it settles when it observes the mutation.
func (ctx *Context) validate(e *Entity, kind int, c Component) error {
	for i, v := range ctx.validators {
		if err := v.claim(e, kind, c); err != nil {
			for _, done := range ctx.validators[:i] {
				done.unclaim(e, kind, c)
			}
			return err
		}
	}
	return nil
}

// updateGroups re-evaluates e against groups, then emits the resulting
// group events in the same order.
func (ctx *Context) updateGroups(e *Entity, groups []*Group, kind int, c Component) {
	if len(groups) == 0 {
		return
	}
	pending := ctx.changes.get()
	for _, g := range groups {
		if ch := g.handleEntity(e); ch != groupUnchanged {
			pending = append(pending, pendingChange{group: g, change: ch})
		}
	}
	for _, p := range pending {
		p.group.emitChange(p.change, e, kind, c)
	}
	ctx.changes.put(pending)
}

func (ctx *Context) componentAdded(e *Entity, kind int, c Component) {
	ctx.updateGroups(e, ctx.groups.forIndex[kind], kind, c)
	ctx.onComponentAdded.emit(func(fn ComponentFunc) { fn(e, kind, c) })
}

func (ctx *Context) componentRemoved(e *Entity, kind int, previous Component) {
	ctx.updateGroups(e, ctx.groups.forIndex[kind], kind, previous)
	ctx.onComponentRemoved.emit(func(fn ComponentFunc) { fn(e, kind, previous) })
}

func (ctx *Context) componentReplaced(e *Entity, kind int, previous, next Component) {
	for _, g := range ctx.groups.forIndex[kind] {
		g.updateEntity(e, kind, previous, next)
	}
	ctx.onComponentReplaced.emit(func(fn ComponentReplacedFunc) { fn(e, kind, previous, next) })
}
