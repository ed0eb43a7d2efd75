package hannou

import (
	"errors"
	"math/rand"
	"testing"
)

// go test -run ^TestGetGroup$ . -count 1
func TestGetGroup(t *testing.T) {
	ctx := setupContext(t)
	a := ctx.CreateEntity()
	mustAdd(t, a, kindPosition, &Position{})
	b := ctx.CreateEntity()
	mustAdd(t, b, kindVelocity, &Velocity{})

	created := 0
	ctx.OnGroupCreated().Subscribe(func(*Context, *Group) { created++ })

	g := ctx.GetGroup(AllOf(kindPosition))
	if g.Count() != 1 || !g.Contains(a) || g.Contains(b) {
		t.Fatalf("backfill failed: %v", g.Entities())
	}
	if !a.IsRetainedBy(g) || b.IsRetainedBy(g) {
		t.Error("a group retains exactly its members")
	}
	if ctx.GetGroup(AllOf(kindPosition, kindPosition)) != g {
		t.Error("equal matchers must share one group")
	}
	if created != 1 || len(ctx.Groups()) != 1 {
		t.Errorf("created=%d groups=%d", created, len(ctx.Groups()))
	}
}

// go test -run ^TestGroupEvents$ . -count 1
func TestGroupEvents(t *testing.T) {
	ctx := setupContext(t)
	g := ctx.GetGroup(AllOf(kindPosition))

	type change struct {
		event string
		kind  int
		c     Component
	}
	var log []change
	g.OnEntityAdded().Subscribe(func(_ *Group, _ *Entity, kind int, c Component) {
		log = append(log, change{"added", kind, c})
	})
	g.OnEntityRemoved().Subscribe(func(_ *Group, _ *Entity, kind int, c Component) {
		log = append(log, change{"removed", kind, c})
	})
	g.OnEntityUpdated().Subscribe(func(_ *Group, _ *Entity, kind int, _, next Component) {
		log = append(log, change{"updated", kind, next})
	})

	e := ctx.CreateEntity()
	p1, p2 := &Position{X: 1}, &Position{X: 2}
	mustAdd(t, e, kindPosition, p1)
	mustAdd(t, e, kindVelocity, &Velocity{}) // not in the matcher
	if err := e.ReplaceComponent(kindPosition, p2); err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveComponent(kindPosition); err != nil {
		t.Fatal(err)
	}

	want := []change{
		{"added", kindPosition, p1},
		{"updated", kindPosition, p2},
		{"removed", kindPosition, p2},
	}
	if len(log) != len(want) {
		t.Fatalf("got %d events %v, want %v", len(log), log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, log[i], want[i])
		}
	}
}

// go test -run ^TestNoneOfGroup$ . -count 1
func TestNoneOfGroup(t *testing.T) {
	ctx := setupContext(t)
	g := ctx.GetGroup(NoneOf(kindTag))
	var kinds []int
	g.OnEntityAdded().Subscribe(func(_ *Group, _ *Entity, kind int, _ Component) { kinds = append(kinds, kind) })
	g.OnEntityRemoved().Subscribe(func(_ *Group, _ *Entity, kind int, _ Component) { kinds = append(kinds, kind) })

	e := ctx.CreateEntity()
	if !g.Contains(e) {
		t.Fatal("an empty entity matches NoneOf")
	}
	mustAdd(t, e, kindTag, Tag{})
	if g.Contains(e) {
		t.Fatal("tagged entity must leave the group")
	}
	if err := e.RemoveComponent(kindTag); err != nil {
		t.Fatal(err)
	}
	if err := e.Destroy(); err != nil {
		t.Fatal(err)
	}
	if g.Contains(e) || g.Count() != 0 {
		t.Fatal("destroyed entity must leave the group")
	}
	want := []int{-1, kindTag, kindTag, -1}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds = %v, want %v", kinds, want)
			break
		}
	}
}

// go test -run ^TestGroupMembershipProperty$ . -count 1
func TestGroupMembershipProperty(t *testing.T) {
	ctx := setupContext(t)
	matchers := []*Matcher{
		AllOf(kindPosition),
		AllOf(kindPosition, kindVelocity),
		AnyOf(kindHealth, kindName),
		AllOf(kindPosition).NoneOf(kindTag),
		NoneOf(kindVelocity, kindTag),
		AllOf(kindName).AnyOf(kindPosition, kindVelocity).NoneOf(kindHealth),
	}
	groups := make([]*Group, len(matchers))
	for i, m := range matchers {
		groups[i] = ctx.GetGroup(m)
	}
	newComponent := []func() Component{
		func() Component { return &Position{} },
		func() Component { return &Velocity{} },
		func() Component { return &Health{} },
		func() Component { return &Name{} },
		func() Component { return Tag{} },
	}

	rng := rand.New(rand.NewSource(42))
	var live []*Entity
	check := func(step int) {
		t.Helper()
		for _, g := range groups {
			for _, e := range live {
				if g.Contains(e) != g.Matcher().Matches(e) {
					t.Fatalf("step %d: %s.Contains(%s) = %v", step, g, e, g.Contains(e))
				}
			}
			n := 0
			for _, e := range live {
				if g.Matcher().Matches(e) {
					n++
				}
			}
			if g.Count() != n {
				t.Fatalf("step %d: %s has %d members, want %d", step, g, g.Count(), n)
			}
		}
	}
	for step := range 2000 {
		switch op := rng.Intn(10); {
		case op == 0 || len(live) == 0:
			live = append(live, ctx.CreateEntity())
		case op == 1:
			i := rng.Intn(len(live))
			if err := live[i].Destroy(); err != nil {
				t.Fatal(err)
			}
			live = append(live[:i], live[i+1:]...)
		default:
			e := live[rng.Intn(len(live))]
			kind := rng.Intn(len(newComponent))
			var err error
			switch {
			case !e.HasComponent(kind):
				err = e.AddComponent(kind, newComponent[kind]())
			case rng.Intn(3) == 0:
				err = e.ReplaceComponent(kind, newComponent[kind]())
			default:
				err = e.RemoveComponent(kind)
			}
			if err != nil {
				t.Fatal(err)
			}
		}
		check(step)
	}
}

// go test -run ^TestGroupScenario$ . -count 1
func TestGroupScenario(t *testing.T) {
	var info ContextInfo
	info.Name = "scenario"
	RegisterComponent[*Velocity](&info)
	RegisterComponent[*Health](&info)
	RegisterComponent[*Name](&info)
	const position = 3
	if k := RegisterComponent[*Position](&info); k != position {
		t.Fatalf("Position registered as kind %d", k)
	}
	ctx := NewContext(info, WithLogger(discardLogger()))

	g := ctx.GetGroup(AllOf(position))
	addedC := ctx.CreateCollector(AllOf(position), Added)
	removedC := ctx.CreateCollector(AllOf(position), Removed)
	updated := 0
	g.OnEntityUpdated().Subscribe(func(*Group, *Entity, int, Component, Component) { updated++ })

	e1 := ctx.CreateEntity()
	mustAdd(t, e1, position, &Position{X: 0, Y: 0})
	if !g.Contains(e1) || addedC.Count() != 1 || addedC.CollectedEntities()[0] != e1 {
		t.Fatal("group must gain E1 and the added collector must buffer it")
	}
	addedC.ClearCollectedEntities()

	if err := e1.ReplaceComponent(position, &Position{X: 1, Y: 0}); err != nil {
		t.Fatal(err)
	}
	if !g.Contains(e1) || g.Count() != 1 || updated != 1 {
		t.Fatalf("replace must keep membership and emit updated once, updated=%d", updated)
	}

	if err := e1.RemoveComponent(position); err != nil {
		t.Fatal(err)
	}
	if g.Contains(e1) || removedC.Count() != 1 || removedC.CollectedEntities()[0] != e1 {
		t.Fatal("group must lose E1 and the removed collector must buffer it")
	}
	removedC.ClearCollectedEntities()
	addedC.ClearCollectedEntities()

	slot, creation := e1.ID(), e1.CreationIndex()
	if err := e1.Destroy(); err != nil {
		t.Fatal(err)
	}
	if ctx.ReusableEntitiesCount() != 1 || ctx.RetainedEntitiesCount() != 0 {
		t.Fatalf("E1 must enter the reuse pool, reusable=%d retained=%d",
			ctx.ReusableEntitiesCount(), ctx.RetainedEntitiesCount())
	}
	e2 := ctx.CreateEntity()
	if e2.ID() != slot || e2.CreationIndex() <= creation {
		t.Errorf("reused shell: id=%d creation=%d (was %d/%d)", e2.ID(), e2.CreationIndex(), slot, creation)
	}
}

// go test -run ^TestGroupEntitiesSnapshot$ . -count 1
func TestGroupEntitiesSnapshot(t *testing.T) {
	ctx := setupContext(t)
	g := ctx.GetGroup(AllOf(kindHealth))
	for range 10 {
		mustAdd(t, ctx.CreateEntity(), kindHealth, &Health{})
	}
	members := g.Entities()
	for _, e := range members {
		if err := e.Destroy(); err != nil {
			t.Fatal(err)
		}
	}
	if len(members) != 10 || g.Count() != 0 || len(g.Entities()) != 0 {
		t.Errorf("snapshot=%d count=%d", len(members), g.Count())
	}
	if ctx.ReusableEntitiesCount() != 10 {
		t.Errorf("group must release destroyed members, reusable=%d", ctx.ReusableEntitiesCount())
	}
}

// go test -run ^TestGroupSingleEntity$ . -count 1
func TestGroupSingleEntity(t *testing.T) {
	ctx := setupContext(t)
	g := ctx.GetGroup(AllOf(kindName))
	if e, err := g.SingleEntity(); e != nil || err != nil {
		t.Fatalf("empty group: %v %v", e, err)
	}
	a := ctx.CreateEntity()
	mustAdd(t, a, kindName, &Name{Value: "player"})
	if e, err := g.SingleEntity(); e != a || err != nil {
		t.Fatalf("single member: %v %v", e, err)
	}
	mustAdd(t, ctx.CreateEntity(), kindName, &Name{Value: "enemy"})
	if _, err := g.SingleEntity(); !errors.Is(err, ErrSingleEntity) {
		t.Fatalf("expected ErrSingleEntity, got %v", err)
	}
}

// go test -run ^TestClearGroups$ . -count 1
func TestClearGroups(t *testing.T) {
	ctx := setupContext(t)
	g := ctx.GetGroup(AllOf(kindPosition))
	e := ctx.CreateEntity()
	mustAdd(t, e, kindPosition, &Position{})
	g.OnEntityRemoved().Subscribe(func(*Group, *Entity, int, Component) { t.Error("cleared group still fires") })

	ctx.ClearGroups()
	if g.Count() != 0 || e.IsRetainedBy(g) || g.OnEntityRemoved().Len() != 0 {
		t.Error("ClearGroups must release members and drop handlers")
	}
	if err := e.RemoveComponent(kindPosition); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, e, kindPosition, &Position{})
	other := ctx.CreateEntity()
	mustAdd(t, other, kindPosition, &Position{})
	if fresh := ctx.GetGroup(AllOf(kindPosition)); fresh == g || fresh.Count() != 2 {
		t.Errorf("GetGroup after ClearGroups must build a new group, got %v", fresh.Entities())
	}
}
