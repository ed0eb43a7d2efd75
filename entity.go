package hannou

import (
	"fmt"
	"reflect"
	"strings"
)

// Handle is a weak reference to an entity. It combines the recyclable slot
// ID with the creation index, so a Handle taken before an entity was
// destroyed never resolves to the shell after it has been reused.
type Handle struct {
	// ID is the slot of the entity inside its Context. It is reused.
	ID uint32
	// CreationIndex is unique per Context and never reused.
	CreationIndex int
}

// ComponentFunc observes a component being added to or removed from an entity.
type ComponentFunc func(e *Entity, kind int, c Component)

// ComponentReplacedFunc observes a component value being swapped.
type ComponentReplacedFunc func(e *Entity, kind int, previous, next Component)

// EntityFunc observes an entity lifecycle step.
type EntityFunc func(e *Entity)

// Entity is a container of components addressed by kind index. Entities are
// created by a Context and must not be constructed directly.
type Entity struct {
	ctx        *Context
	components []Component // len == ctx.info.TotalComponents()
	owners     map[Owner]struct{}

	onComponentAdded    Event[ComponentFunc]
	onComponentRemoved  Event[ComponentFunc]
	onComponentReplaced Event[ComponentReplacedFunc]
	onReleased          Event[EntityFunc]

	mask            bitmask256 // bit k set iff components[k] is occupied
	creationIndex   int
	totalComponents int
	id              uint32
	enabled         bool
	destroying      bool
	pooled          bool // in the context's reuse pool
}

func newEntity(ctx *Context, id uint32, creationIndex int) *Entity {
	return &Entity{
		ctx:           ctx,
		id:            id,
		creationIndex: creationIndex,
		components:    make([]Component, ctx.info.TotalComponents()),
		owners:        make(map[Owner]struct{}, 2),
		enabled:       true,
	}
}

// ID returns the entity's slot ID. Slots are reused after release.
func (e *Entity) ID() uint32 { return e.id }

// CreationIndex returns the unique creation index of the entity.
func (e *Entity) CreationIndex() int { return e.creationIndex }

// Handle returns a weak reference that Context.Lookup resolves only while
// this incarnation of the entity is alive.
func (e *Entity) Handle() Handle {
	return Handle{ID: e.id, CreationIndex: e.creationIndex}
}

// Context returns the context that created the entity.
func (e *Entity) Context() *Context { return e.ctx }

// IsEnabled reports whether the entity is alive. Destroyed entities are
// disabled until the context reactivates their shell.
func (e *Entity) IsEnabled() bool { return e.enabled }

// TotalComponents returns the number of occupied slots.
func (e *Entity) TotalComponents() int { return e.totalComponents }

// OnComponentAdded returns the entity's component-added event.
func (e *Entity) OnComponentAdded() *Event[ComponentFunc] { return &e.onComponentAdded }

// OnComponentRemoved returns the entity's component-removed event.
func (e *Entity) OnComponentRemoved() *Event[ComponentFunc] { return &e.onComponentRemoved }

// OnComponentReplaced returns the entity's component-replaced event.
func (e *Entity) OnComponentReplaced() *Event[ComponentReplacedFunc] { return &e.onComponentReplaced }

// OnEntityReleased returns the event fired when the retain count drops to
// zero. Handlers are removed after it fires.
func (e *Entity) OnEntityReleased() *Event[EntityFunc] { return &e.onReleased }

// AddComponent stores c in the slot for kind and emits OnComponentAdded.
// It fails if the entity is disabled, the slot is occupied, or a primary
// entity index already maps c's key to another entity.
func (e *Entity) AddComponent(kind int, c Component) error {
	if err := e.checkEnabled("add", kind); err != nil {
		return err
	}
	if e.HasComponent(kind) {
		return fmt.Errorf("%w: cannot add %s to %s", ErrAlreadyHasComponent, e.ctx.info.ComponentName(kind), e)
	}
	if err := e.ctx.validate(e, kind, c); err != nil {
		return err
	}
	e.addComponent(kind, c)
	return nil
}

func (e *Entity) addComponent(kind int, c Component) {
	e.components[kind] = c
	e.mask.set(kind)
	e.totalComponents++
	e.ctx.componentAdded(e, kind, c)
	e.onComponentAdded.emit(func(fn ComponentFunc) { fn(e, kind, c) })
}

// RemoveComponent clears the slot for kind, emits OnComponentRemoved and
// returns the previous component to the context's pool.
func (e *Entity) RemoveComponent(kind int) error {
	if err := e.checkEnabled("remove", kind); err != nil {
		return err
	}
	if !e.HasComponent(kind) {
		return fmt.Errorf("%w: cannot remove %s from %s", ErrDoesNotHaveComponent, e.ctx.info.ComponentName(kind), e)
	}
	e.removeComponent(kind)
	return nil
}

func (e *Entity) removeComponent(kind int) {
	previous := e.components[kind]
	e.components[kind] = nil
	e.mask.unset(kind)
	e.totalComponents--
	e.ctx.componentRemoved(e, kind, previous)
	e.onComponentRemoved.emit(func(fn ComponentFunc) { fn(e, kind, previous) })
	e.ctx.pools[kind].Push(previous)
}

// ReplaceComponent swaps the component in the slot for kind and emits
// OnComponentReplaced, or behaves as AddComponent if the slot is empty.
// Replacing a component with itself still emits the event.
func (e *Entity) ReplaceComponent(kind int, c Component) error {
	if err := e.checkEnabled("replace", kind); err != nil {
		return err
	}
	if err := e.ctx.validate(e, kind, c); err != nil {
		return err
	}
	if !e.HasComponent(kind) {
		e.addComponent(kind, c)
		return nil
	}
	previous := e.components[kind]
	e.components[kind] = c
	e.ctx.componentReplaced(e, kind, previous, c)
	e.onComponentReplaced.emit(func(fn ComponentReplacedFunc) { fn(e, kind, previous, c) })
	if !sameComponent(previous, c) {
		e.ctx.pools[kind].Push(previous)
	}
	return nil
}

// RemoveAllComponents removes every component in ascending kind order.
func (e *Entity) RemoveAllComponents() error {
	if !e.enabled {
		return fmt.Errorf("%w: cannot remove all components from %s", ErrEntityIsNotEnabled, e)
	}
	e.removeAllComponents()
	return nil
}

func (e *Entity) removeAllComponents() {
	for kind := range e.components {
		if e.mask.containsBit(kind) {
			e.removeComponent(kind)
		}
	}
}

// GetComponent returns the component stored for kind.
func (e *Entity) GetComponent(kind int) (Component, error) {
	if !e.HasComponent(kind) {
		return nil, fmt.Errorf("%w: %s on %s", ErrComponentNotFound, e.ctx.info.ComponentName(kind), e)
	}
	return e.components[kind], nil
}

// GetAs returns the component stored for kind asserted to T.
func GetAs[T any](e *Entity, kind int) (T, bool) {
	var zero T
	if !e.HasComponent(kind) {
		return zero, false
	}
	c, ok := e.components[kind].(T)
	return c, ok
}

// HasComponent reports whether the slot for kind is occupied.
func (e *Entity) HasComponent(kind int) bool {
	if kind < 0 || kind >= len(e.components) {
		return false
	}
	return e.mask.containsBit(kind)
}

// HasComponents reports whether every listed kind is present.
func (e *Entity) HasComponents(kinds ...int) bool {
	for _, k := range kinds {
		if !e.HasComponent(k) {
			return false
		}
	}
	return true
}

// HasAnyComponent reports whether at least one listed kind is present.
func (e *Entity) HasAnyComponent(kinds ...int) bool {
	for _, k := range kinds {
		if e.HasComponent(k) {
			return true
		}
	}
	return false
}

// Components returns the occupied slots' components in kind order.
func (e *Entity) Components() []Component {
	out := make([]Component, 0, e.totalComponents)
	for kind, c := range e.components {
		if e.mask.containsBit(kind) {
			out = append(out, c)
		}
	}
	return out
}

// ComponentIndices returns the occupied kinds in ascending order.
func (e *Entity) ComponentIndices() []int {
	return e.mask.kinds()
}

// RetainCount returns the number of distinct owners retaining the entity.
func (e *Entity) RetainCount() int { return len(e.owners) }

// IsRetainedBy reports whether owner currently retains the entity.
func (e *Entity) IsRetainedBy(owner Owner) bool {
	if checkOwner(owner) != nil {
		return false
	}
	_, ok := e.owners[owner]
	return ok
}

// Owners returns the current retain owners in no particular order.
func (e *Entity) Owners() []Owner {
	out := make([]Owner, 0, len(e.owners))
	for o := range e.owners {
		out = append(out, o)
	}
	return out
}

// Retain records owner as holding a reference to the entity. owner must be
// comparable. A shell waiting in the reuse pool cannot be retained.
func (e *Entity) Retain(owner Owner) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if e.pooled {
		return fmt.Errorf("%w: cannot retain released %s", ErrEntityIsNotEnabled, e)
	}
	if _, ok := e.owners[owner]; ok {
		return fmt.Errorf("%w: %v on %s", ErrAlreadyRetained, owner, e)
	}
	e.owners[owner] = struct{}{}
	return nil
}

// Release drops owner's reference. When the last owner releases, the entity
// fires OnEntityReleased and its shell returns to the context's reuse pool.
// The context's own retain can only be released by destroying the entity.
func (e *Entity) Release(owner Owner) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if _, ok := e.owners[owner]; !ok {
		return fmt.Errorf("%w: %v on %s", ErrNotRetainedByOwner, owner, e)
	}
	if ctx, ok := owner.(*Context); ok && ctx == e.ctx && e.enabled {
		return fmt.Errorf("%w: cannot release context retain of %s", ErrEntityIsNotDestroyed, e)
	}
	delete(e.owners, owner)
	if len(e.owners) == 0 {
		e.onReleased.emit(func(fn EntityFunc) { fn(e) })
		e.onReleased.Clear()
		e.ctx.entityReleased(e)
	}
	return nil
}

// Destroy destroys the entity through its context. See Context.DestroyEntity.
func (e *Entity) Destroy() error {
	return e.ctx.DestroyEntity(e)
}

// Reactivate gives a shell drawn from the reuse pool a new creation index
// and enables it. The shell must be disabled, unretained, empty and already
// taken out of the pool; Context.CreateEntity does this when it reuses a
// shell, so a shell still waiting in the pool is rejected.
func (e *Entity) Reactivate(creationIndex int) error {
	if e.enabled || e.pooled || len(e.owners) != 0 || e.totalComponents != 0 {
		return fmt.Errorf("%w: cannot reactivate %s", ErrEntityIsNotReleased, e)
	}
	e.creationIndex = creationIndex
	e.enabled = true
	e.destroying = false
	return nil
}

func (e *Entity) checkEnabled(op string, kind int) error {
	checkKind(kind)
	if kind >= len(e.components) {
		panic(fmt.Sprintf("component kind %d out of range for context %q (%d kinds)", kind, e.ctx.info.Name, len(e.components)))
	}
	if !e.enabled {
		return fmt.Errorf("%w: cannot %s %s on %s", ErrEntityIsNotEnabled, op, e.ctx.info.ComponentName(kind), e)
	}
	return nil
}

// String renders the entity as Entity_<creationIndex>(*<retainCount>)(<components>).
func (e *Entity) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entity_%d(*%d)(", e.creationIndex, len(e.owners))
	first := true
	for kind := range e.components {
		if !e.mask.containsBit(kind) {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(e.ctx.info.ComponentName(kind))
	}
	sb.WriteByte(')')
	return sb.String()
}

// sameComponent reports whether a and b are the same instance. Values of
// non-comparable types are never the same.
func sameComponent(a, b Component) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
