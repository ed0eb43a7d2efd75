package hannou

import "fmt"

// GroupEvent selects which group membership changes a Collector records.
type GroupEvent int

const (
	// Added fires when an entity starts matching, and when a component of a
	// member is replaced.
	Added GroupEvent = iota
	// Removed fires when an entity stops matching.
	Removed
	// AddedOrRemoved is the union of Added and Removed.
	AddedOrRemoved
)

func (ev GroupEvent) String() string {
	switch ev {
	case Added:
		return "Added"
	case Removed:
		return "Removed"
	case AddedOrRemoved:
		return "AddedOrRemoved"
	}
	return fmt.Sprintf("GroupEvent(%d)", int(ev))
}

// GroupChangedFunc observes an entity entering or leaving a group. kind and
// c are the component whose mutation caused the change; kind is -1 and c nil
// when the change was caused by entity creation or destruction.
type GroupChangedFunc func(g *Group, e *Entity, kind int, c Component)

// GroupUpdatedFunc observes a member's component being replaced.
type GroupUpdatedFunc func(g *Group, e *Entity, kind int, previous, next Component)

type groupChange uint8

const (
	groupUnchanged groupChange = iota
	groupEntityAdded
	groupEntityRemoved
)

// Group is the live set of enabled entities of one Context that satisfy a
// Matcher. Groups are created by Context.GetGroup and kept up to date on
// every component mutation. A group retains each member.
type Group struct {
	matcher *Matcher
	names   []string

	members []*Entity
	slots   []int32 // slot id -> position in members + 1, 0 when absent
	cache   []*Entity

	onAdded   Event[GroupChangedFunc]
	onRemoved Event[GroupChangedFunc]
	onUpdated Event[GroupUpdatedFunc]
}

func newGroup(m *Matcher, names []string) *Group {
	return &Group{matcher: m, names: names}
}

// Matcher returns the group's matcher.
func (g *Group) Matcher() *Matcher { return g.matcher }

// Count returns the number of members.
func (g *Group) Count() int { return len(g.members) }

// Contains reports whether e is a member.
func (g *Group) Contains(e *Entity) bool {
	return g.position(e) >= 0
}

// Entities returns the current members. The returned slice is a snapshot: it
// stays valid, and unchanged, while the group is mutated, which makes it safe
// to destroy entities while ranging over it. Callers must not modify it.
func (g *Group) Entities() []*Entity {
	if g.cache == nil {
		g.cache = make([]*Entity, len(g.members))
		copy(g.cache, g.members)
	}
	return g.cache
}

// SingleEntity returns the only member, nil if the group is empty, or
// ErrSingleEntity if it has more than one.
func (g *Group) SingleEntity() (*Entity, error) {
	switch len(g.members) {
	case 0:
		return nil, nil
	case 1:
		return g.members[0], nil
	}
	return nil, fmt.Errorf("%w: %s has %d entities", ErrSingleEntity, g, len(g.members))
}

// OnEntityAdded returns the event fired when an entity joins the group.
func (g *Group) OnEntityAdded() *Event[GroupChangedFunc] { return &g.onAdded }

// OnEntityRemoved returns the event fired when an entity leaves the group.
func (g *Group) OnEntityRemoved() *Event[GroupChangedFunc] { return &g.onRemoved }

// OnEntityUpdated returns the event fired when a member's component is
// replaced without changing membership.
func (g *Group) OnEntityUpdated() *Event[GroupUpdatedFunc] { return &g.onUpdated }

// RemoveAllEventHandlers drops every subscription to the group's events.
func (g *Group) RemoveAllEventHandlers() {
	g.onAdded.Clear()
	g.onRemoved.Clear()
	g.onUpdated.Clear()
}

func (g *Group) String() string {
	return "Group(" + g.matcher.Format(g.names) + ")"
}

func (g *Group) position(e *Entity) int {
	if int(e.id) >= len(g.slots) {
		return -1
	}
	pos := int(g.slots[e.id]) - 1
	if pos < 0 || g.members[pos] != e {
		return -1
	}
	return pos
}

// handleEntitySilently updates membership without emitting events.
func (g *Group) handleEntitySilently(e *Entity) {
	if e.enabled && g.matcher.Matches(e) {
		g.addSilently(e)
	} else if g.removeSilently(e) {
		mustRelease(e, g)
	}
}

// handleEntity updates membership and reports the transition. Events are
// emitted separately by emitChange once every affected group is updated.
func (g *Group) handleEntity(e *Entity) groupChange {
	if e.enabled && g.matcher.Matches(e) {
		if g.addSilently(e) {
			return groupEntityAdded
		}
		return groupUnchanged
	}
	if g.removeSilently(e) {
		return groupEntityRemoved
	}
	return groupUnchanged
}

// emitChange fires the event for a transition returned by handleEntity and
// drops the group's retain on removed entities afterwards.
func (g *Group) emitChange(ch groupChange, e *Entity, kind int, c Component) {
	switch ch {
	case groupEntityAdded:
		g.onAdded.emit(func(fn GroupChangedFunc) { fn(g, e, kind, c) })
	case groupEntityRemoved:
		g.onRemoved.emit(func(fn GroupChangedFunc) { fn(g, e, kind, c) })
		mustRelease(e, g)
	}
}

// updateEntity handles a replaced component of a possible member.
func (g *Group) updateEntity(e *Entity, kind int, previous, next Component) {
	if !g.Contains(e) {
		return
	}
	g.onUpdated.emit(func(fn GroupUpdatedFunc) { fn(g, e, kind, previous, next) })
}

func (g *Group) addSilently(e *Entity) bool {
	if g.position(e) >= 0 {
		return false
	}
	if int(e.id) >= len(g.slots) {
		g.slots = append(g.slots, make([]int32, int(e.id)+1-len(g.slots))...)
	}
	g.members = append(g.members, e)
	g.slots[e.id] = int32(len(g.members))
	g.cache = nil
	mustRetain(e, g)
	return true
}

// removeSilently swaps e out of members. The caller releases the retain.
func (g *Group) removeSilently(e *Entity) bool {
	pos := g.position(e)
	if pos < 0 {
		return false
	}
	last := len(g.members) - 1
	if pos < last {
		moved := g.members[last]
		g.members[pos] = moved
		g.slots[moved.id] = int32(pos + 1)
	}
	g.members[last] = nil
	g.members = g.members[:last]
	g.slots[e.id] = 0
	g.cache = nil
	return true
}

// clear releases every member without emitting events.
func (g *Group) clear() {
	members := g.members
	g.members = nil
	g.slots = nil
	g.cache = nil
	for _, e := range members {
		mustRelease(e, g)
	}
}

// mustRetain and mustRelease are used by structures that track their own
// retains; a failure means that bookkeeping is corrupt.
func mustRetain(e *Entity, owner Owner) {
	if err := e.Retain(owner); err != nil {
		panic(err)
	}
}

func mustRelease(e *Entity, owner Owner) {
	if err := e.Release(owner); err != nil {
		panic(err)
	}
}
