package hannou

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactiveSystem_Execute(t *testing.T) {
	ctx := setupContext(t)
	var (
		sys     *ReactiveSystem
		batches [][]*Entity
	)
	sys = NewReactiveSystem(ctx, ReactiveConfig{
		Name:     "move",
		Triggers: []TriggerSpec{{Matcher: AllOf(kindPosition, kindVelocity), Event: Added}},
		Execute: func(es []*Entity) {
			for _, e := range es {
				assert.True(t, e.IsRetainedBy(executeCycle{system: sys, depth: 1}), "batch entities are retained during execute")
			}
			batches = append(batches, append([]*Entity(nil), es...))
		},
	})

	sys.Execute()
	assert.Empty(t, batches, "an empty cycle does not call execute")

	a, b := ctx.CreateEntity(), ctx.CreateEntity()
	for _, e := range []*Entity{a, b} {
		mustAdd(t, e, kindPosition, &Position{})
		mustAdd(t, e, kindVelocity, &Velocity{})
	}
	sys.Execute()
	require.Len(t, batches, 1)
	assert.Equal(t, []*Entity{a, b}, batches[0])
	assert.Equal(t, 0, sys.Collector().Count())
	assert.False(t, a.IsRetainedBy(executeCycle{system: sys, depth: 1}) || a.IsRetainedBy(sys.Collector()), "system and collector released the batch")

	sys.Execute()
	assert.Len(t, batches, 1, "nothing new collected")
	assert.Equal(t, "ReactiveSystem(move)", sys.String())
	assert.Same(t, ctx, sys.Context())
}

func TestReactiveSystem_Filter(t *testing.T) {
	ctx := setupContext(t)
	var got []*Entity
	sys := NewReactiveSystem(ctx, ReactiveConfig{
		Triggers: []TriggerSpec{{Matcher: AllOf(kindHealth), Event: AddedOrRemoved}},
		Filter:   func(e *Entity) bool { return e.IsEnabled() && e.HasComponent(kindHealth) },
		Execute:  func(es []*Entity) { got = append(got, es...) },
	})
	assert.True(t, strings.HasPrefix(sys.Name(), "reactive-"), "generated name, got %q", sys.Name())

	alive := ctx.CreateEntity()
	mustAdd(t, alive, kindHealth, &Health{Current: 10})
	dead := ctx.CreateEntity()
	mustAdd(t, dead, kindHealth, &Health{})
	require.NoError(t, dead.Destroy())
	require.Equal(t, 1, ctx.RetainedEntitiesCount())

	sys.Execute()
	assert.Equal(t, []*Entity{alive}, got)
	assert.Equal(t, 0, ctx.RetainedEntitiesCount(), "rejected entities are released")
	assert.Equal(t, 1, ctx.ReusableEntitiesCount())

	got = nil
	sys.Execute()
	assert.Empty(t, got)
}

func TestReactiveSystem_ChangesDuringExecuteStartNextCycle(t *testing.T) {
	ctx := setupContext(t)
	other := ctx.CreateEntity()
	var batches [][]*Entity
	sys := NewReactiveSystem(ctx, ReactiveConfig{
		Name:     "chain",
		Triggers: []TriggerSpec{{Matcher: AllOf(kindTag), Event: Added}},
		Execute: func(es []*Entity) {
			batches = append(batches, append([]*Entity(nil), es...))
			if !other.HasComponent(kindTag) {
				mustAdd(t, other, kindTag, Tag{})
			}
		},
	})

	first := ctx.CreateEntity()
	mustAdd(t, first, kindTag, Tag{})
	sys.Execute()
	require.Len(t, batches, 1)
	assert.Equal(t, []*Entity{first}, batches[0])
	assert.Equal(t, []*Entity{other}, sys.Collector().CollectedEntities())

	sys.Execute()
	require.Len(t, batches, 2)
	assert.Equal(t, []*Entity{other}, batches[1])
}

func TestReactiveSystem_Deactivate(t *testing.T) {
	ctx := setupContext(t)
	calls := 0
	sys := NewReactiveSystem(ctx, ReactiveConfig{
		Name:     "idle",
		Triggers: []TriggerSpec{{Matcher: AllOf(kindName), Event: Added}},
		Execute:  func([]*Entity) { calls++ },
	})
	e := ctx.CreateEntity()
	mustAdd(t, e, kindName, &Name{})

	sys.Deactivate()
	assert.False(t, sys.IsActive())
	assert.Equal(t, 0, sys.Collector().Count(), "deactivation drops the pending batch")
	assert.False(t, e.IsRetainedBy(sys.Collector()))

	mustAdd(t, ctx.CreateEntity(), kindName, &Name{})
	sys.Execute()
	assert.Equal(t, 0, calls, "a deactivated system neither collects nor executes")

	sys.Activate()
	mustAdd(t, ctx.CreateEntity(), kindName, &Name{})
	sys.Execute()
	assert.Equal(t, 1, calls)

	mustAdd(t, ctx.CreateEntity(), kindName, &Name{})
	sys.Clear()
	sys.Execute()
	assert.Equal(t, 1, calls, "Clear drops the batch without executing")
}

func TestReactiveSystem_WithCollector(t *testing.T) {
	ctx := setupContext(t)
	collector := ctx.CreateCollector(AnyOf(kindPosition, kindVelocity), Removed)
	var got []*Entity
	sys := NewReactiveSystemWithCollector(ctx, ReactiveConfig{
		Name:    "cleanup",
		Execute: func(es []*Entity) { got = append(got, es...) },
	}, collector)
	assert.Same(t, collector, sys.Collector())

	e := ctx.CreateEntity()
	mustAdd(t, e, kindPosition, &Position{})
	require.NoError(t, e.RemoveComponent(kindPosition))
	sys.Execute()
	assert.Equal(t, []*Entity{e}, got)
}

func TestReactiveSystem_NestedExecute(t *testing.T) {
	ctx := setupContext(t)
	var (
		sys     *ReactiveSystem
		batches [][]*Entity
		depth   int
	)
	sys = NewReactiveSystem(ctx, ReactiveConfig{
		Name:     "nested",
		Triggers: []TriggerSpec{{Matcher: AllOf(kindPosition), Event: Added}},
		Execute: func(es []*Entity) {
			depth++
			defer func() { depth-- }()
			batches = append(batches, append([]*Entity(nil), es...))
			if depth == 1 {
				for _, e := range es {
					require.NoError(t, e.ReplaceComponent(kindPosition, &Position{X: 1}))
				}
				sys.Execute()
				assert.Equal(t, 0, sys.Collector().Count(), "nested call drained the replacements")
			}
		},
	})

	a, b := ctx.CreateEntity(), ctx.CreateEntity()
	mustAdd(t, a, kindPosition, &Position{})
	mustAdd(t, b, kindPosition, &Position{})
	require.NotPanics(t, sys.Execute)

	require.Len(t, batches, 2)
	assert.Equal(t, []*Entity{a, b}, batches[0])
	assert.Equal(t, []*Entity{a, b}, batches[1])
	for _, e := range []*Entity{a, b} {
		assert.ElementsMatch(t, []Owner{ctx, ctx.GetGroup(AllOf(kindPosition))}, e.Owners(),
			"every cycle released its retains")
	}
}
