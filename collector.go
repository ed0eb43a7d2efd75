package hannou

import "strings"

// Trigger pairs a group with the membership changes a Collector records.
type Trigger struct {
	Group *Group
	Event GroupEvent
}

type collectorSub struct {
	event *Event[GroupChangedFunc]
	sub   Subscription
}

type collectorUpdateSub struct {
	event *Event[GroupUpdatedFunc]
	sub   Subscription
}

// Collector accumulates the entities whose membership changed in one or
// more groups since the last ClearCollectedEntities. Each entity is recorded
// once per cycle, in the order it was first seen, and retained by the
// collector until cleared.
type Collector struct {
	triggers   []Trigger
	subs       []collectorSub
	updateSubs []collectorUpdateSub

	entities []*Entity
	seen     map[*Entity]struct{}
	active   bool
}

// NewCollector creates an active collector over the given triggers.
func NewCollector(triggers ...Trigger) *Collector {
	c := &Collector{
		triggers: append([]Trigger(nil), triggers...),
		seen:     make(map[*Entity]struct{}),
	}
	c.Activate()
	return c
}

// Activate subscribes to the triggers' groups. It is a no-op on an active
// collector.
func (c *Collector) Activate() {
	if c.active {
		return
	}
	c.active = true
	for _, t := range c.triggers {
		g := t.Group
		switch t.Event {
		case Added:
			c.subscribe(&g.onAdded)
			c.subscribeUpdates(&g.onUpdated)
		case Removed:
			c.subscribe(&g.onRemoved)
		case AddedOrRemoved:
			c.subscribe(&g.onAdded)
			c.subscribe(&g.onRemoved)
			c.subscribeUpdates(&g.onUpdated)
		}
	}
}

// Deactivate unsubscribes from the groups. Entities already collected are
// kept until ClearCollectedEntities.
func (c *Collector) Deactivate() {
	if !c.active {
		return
	}
	c.active = false
	for _, s := range c.subs {
		s.event.Unsubscribe(s.sub)
	}
	for _, s := range c.updateSubs {
		s.event.Unsubscribe(s.sub)
	}
	c.subs = c.subs[:0]
	c.updateSubs = c.updateSubs[:0]
}

// IsActive reports whether the collector is recording.
func (c *Collector) IsActive() bool { return c.active }

// Triggers returns the collector's triggers.
func (c *Collector) Triggers() []Trigger {
	return append([]Trigger(nil), c.triggers...)
}

// Count returns the number of collected entities.
func (c *Collector) Count() int { return len(c.entities) }

// CollectedEntities returns the entities collected in this cycle. The slice
// is owned by the collector and is reused after ClearCollectedEntities.
func (c *Collector) CollectedEntities() []*Entity { return c.entities }

// ClearCollectedEntities releases and forgets every collected entity.
func (c *Collector) ClearCollectedEntities() {
	entities := c.entities
	c.entities = c.entities[:0]
	clear(c.seen)
	for i, e := range entities {
		entities[i] = nil
		mustRelease(e, c)
	}
}

func (c *Collector) String() string {
	var sb strings.Builder
	sb.WriteString("Collector(")
	for i, t := range c.triggers {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.Group.String())
		sb.WriteByte(' ')
		sb.WriteString(t.Event.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c *Collector) subscribe(ev *Event[GroupChangedFunc]) {
	sub := ev.Subscribe(func(_ *Group, e *Entity, _ int, _ Component) { c.collect(e) })
	c.subs = append(c.subs, collectorSub{event: ev, sub: sub})
}

func (c *Collector) subscribeUpdates(ev *Event[GroupUpdatedFunc]) {
	sub := ev.Subscribe(func(_ *Group, e *Entity, _ int, _, _ Component) { c.collect(e) })
	c.updateSubs = append(c.updateSubs, collectorUpdateSub{event: ev, sub: sub})
}

func (c *Collector) collect(e *Entity) {
	if _, ok := c.seen[e]; ok {
		return
	}
	c.seen[e] = struct{}{}
	c.entities = append(c.entities, e)
	mustRetain(e, c)
}
