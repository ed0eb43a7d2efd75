// Profiling:
// go build ./profile/groups
// go tool pprof -http=":8000" -nodefraction=0.001 ./groups cpu.pprof

package main

import (
	"github.com/edwinsyarief/hannou"
	"github.com/pkg/profile"
)

type position struct{ X, Y float64 }
type velocity struct{ X, Y float64 }
type health struct{ HP int }
type frozen struct{}

func main() {
	rounds := 20
	iters := 500
	entities := 2000
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	var info hannou.ContextInfo
	info.Name = "profile"
	kPos := hannou.RegisterComponent[*position](&info)
	kVel := hannou.RegisterComponent[*velocity](&info)
	kHealth := hannou.RegisterComponent[*health](&info)
	kFrozen := hannou.RegisterComponent[frozen](&info)

	for range rounds {
		ctx := hannou.NewContext(info)
		moving := ctx.GetGroup(hannou.AllOf(kPos, kVel).NoneOf(kFrozen))
		damaged := 0
		damage := hannou.NewReactiveSystem(ctx, hannou.ReactiveConfig{
			Name:     "damage",
			Triggers: []hannou.TriggerSpec{{Matcher: hannou.AllOf(kHealth), Event: hannou.Added}},
			Filter:   func(e *hannou.Entity) bool { return e.IsEnabled() },
			Execute:  func(es []*hannou.Entity) { damaged += len(es) },
		})

		all := make([]*hannou.Entity, numEntities)
		for i := range all {
			e := ctx.CreateEntity()
			_ = e.AddComponent(kPos, &position{})
			_ = e.AddComponent(kVel, &velocity{X: 1, Y: 1})
			_ = e.AddComponent(kHealth, &health{HP: 100})
			all[i] = e
		}

		for i := range iters {
			for _, e := range moving.Entities() {
				p, _ := hannou.GetAs[*position](e, kPos)
				v, _ := hannou.GetAs[*velocity](e, kVel)
				p.X += v.X
				p.Y += v.Y
			}
			e := all[i%numEntities]
			if e.HasComponent(kFrozen) {
				_ = e.RemoveComponent(kFrozen)
			} else {
				_ = e.AddComponent(kFrozen, frozen{})
			}
			h, _ := hannou.GetAs[*health](e, kHealth)
			_ = e.ReplaceComponent(kHealth, &health{HP: h.HP - 1})
			damage.Execute()
		}
		_ = ctx.DestroyAllEntities()
		_ = damaged
	}
}
