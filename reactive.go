package hannou

// TriggerSpec selects a group by matcher and the membership change that
// feeds a ReactiveSystem.
type TriggerSpec struct {
	Matcher *Matcher
	Event   GroupEvent
}

// ReactiveConfig describes a reactive system.
type ReactiveConfig struct {
	// Name identifies the system in diagnostics. A generated token is used
	// when empty.
	Name string
	// Triggers are resolved to groups of the system's context.
	Triggers []TriggerSpec
	// Filter drops collected entities that should not be executed. A nil
	// Filter keeps every entity.
	Filter func(e *Entity) bool
	// Execute receives the filtered entities. It is not called for an empty
	// batch. The slice is reused on the next cycle.
	Execute func(entities []*Entity)
}

// ReactiveSystem runs its Execute callback at most once per Execute call,
// with the entities its collector gathered since the previous call.
type ReactiveSystem struct {
	ctx       *Context
	name      string
	collector *Collector
	filter    func(*Entity) bool
	execute   func([]*Entity)
	buffer    []*Entity
	depth     int
}

// executeCycle is the owner under which one running Execute call retains
// its batch. Nested calls on the same system run at a greater depth.
type executeCycle struct {
	system *ReactiveSystem
	depth  int
}

// NewReactiveSystem builds an active reactive system on ctx.
//
// Parameters:
//   - ctx: The context whose groups feed the system. Each trigger's group is
//     obtained with ctx.GetGroup.
//   - cfg: The system's name, triggers, filter and execute callback.
//
// Returns:
//   - The system. It collects from the moment it is built; call Execute once
//     per simulation step to drain it.
func NewReactiveSystem(ctx *Context, cfg ReactiveConfig) *ReactiveSystem {
	triggers := make([]Trigger, len(cfg.Triggers))
	for i, t := range cfg.Triggers {
		triggers[i] = Trigger{Group: ctx.GetGroup(t.Matcher), Event: t.Event}
	}
	return NewReactiveSystemWithCollector(ctx, cfg, NewCollector(triggers...))
}

// NewReactiveSystemWithCollector builds a reactive system around an existing
// collector; cfg.Triggers is ignored.
func NewReactiveSystemWithCollector(ctx *Context, cfg ReactiveConfig, collector *Collector) *ReactiveSystem {
	name := cfg.Name
	if name == "" {
		name = "reactive-" + NewToken().String()
	}
	return &ReactiveSystem{
		ctx:       ctx,
		name:      name,
		collector: collector,
		filter:    cfg.Filter,
		execute:   cfg.Execute,
	}
}

// Name returns the system name.
func (s *ReactiveSystem) Name() string { return s.name }

// Context returns the context the system was built on.
func (s *ReactiveSystem) Context() *Context { return s.ctx }

// Collector returns the system's collector.
func (s *ReactiveSystem) Collector() *Collector { return s.collector }

// IsActive reports whether the system is collecting.
func (s *ReactiveSystem) IsActive() bool { return s.collector.IsActive() }

// Activate resumes collecting. Changes that happened while the system was
// deactivated are not seen.
func (s *ReactiveSystem) Activate() {
	s.collector.Activate()
}

// Deactivate stops collecting and drops the pending batch.
func (s *ReactiveSystem) Deactivate() {
	s.collector.Deactivate()
	s.collector.ClearCollectedEntities()
}

// Clear drops the pending batch without executing it.
func (s *ReactiveSystem) Clear() {
	s.collector.ClearCollectedEntities()
}

func (s *ReactiveSystem) String() string {
	return "ReactiveSystem(" + s.name + ")"
}

// Execute runs one reactive cycle: the collected entities are snapshotted,
// the collector is cleared so that changes made by the callback start the
// next cycle, the snapshot is filtered and, if anything is left, passed to
// the Execute callback. Entities in the batch are retained for the duration
// of the call. A deactivated system does nothing.
//
// The callback may call Execute on the same system again; the nested call
// processes what was collected since the outer snapshot, with its own batch.
func (s *ReactiveSystem) Execute() {
	if !s.collector.IsActive() || s.collector.Count() == 0 {
		return
	}
	s.depth++
	owner := executeCycle{system: s, depth: s.depth}
	defer func() { s.depth-- }()

	batch := s.buffer[:0]
	s.buffer = nil
	for _, e := range s.collector.CollectedEntities() {
		mustRetain(e, owner)
		batch = append(batch, e)
	}
	s.collector.ClearCollectedEntities()

	kept := batch[:0]
	for _, e := range batch {
		if s.filter == nil || s.filter(e) {
			kept = append(kept, e)
		} else {
			mustRelease(e, owner)
		}
	}
	clear(batch[len(kept):])
	if len(kept) > 0 && s.execute != nil {
		s.execute(kept)
	}
	for i, e := range kept {
		kept[i] = nil
		mustRelease(e, owner)
	}
	s.buffer = kept[:0]
}
