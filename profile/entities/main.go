// Profiling:
// go build ./profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
	"github.com/edwinsyarief/hannou"
	"github.com/pkg/profile"
)

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

func (c *comp1) Reset() { *c = comp1{} }
func (c *comp2) Reset() { *c = comp2{} }

func main() {
	count := 50
	iters := 1000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	var info hannou.ContextInfo
	info.Name = "profile"
	k1 := hannou.RegisterComponent[*comp1](&info)
	k2 := hannou.RegisterComponent[*comp2](&info)

	for range rounds {
		ctx := hannou.NewContext(info, hannou.WithInitialCapacity(numEntities))
		group := ctx.GetGroup(hannou.AllOf(k1, k2))
		entities := make([]*hannou.Entity, 0, numEntities)

		for range iters {
			for range numEntities {
				e := ctx.CreateEntity()
				c1, _ := ctx.CreateComponent(k1)
				c2, _ := ctx.CreateComponent(k2)
				_ = e.AddComponent(k1, c1)
				_ = e.AddComponent(k2, c2)
				entities = append(entities, e)
			}
			for _, e := range group.Entities() {
				c1, _ := hannou.GetAs[*comp1](e, k1)
				c2, _ := hannou.GetAs[*comp2](e, k2)
				c1.V += c2.V
				c1.W += c2.W
			}
			for _, e := range entities {
				_ = e.Destroy()
			}
			entities = entities[:0]
		}
	}
}
