package world_test

import (
	"fmt"

	"github.com/plus3/chunkq/query"
	"github.com/plus3/chunkq/spatial"
	"github.com/plus3/chunkq/world"
)

type Wolf struct{}
type Sheep struct{}

func ExampleWorld() {
	tags := world.NewTagRegistry()
	wolf := world.RegisterTag[Wolf](tags)
	sheep := world.RegisterTag[Sheep](tags)

	w := world.New(tags, world.DefaultConfig())
	for x := int32(-2); x <= 2; x++ {
		for y := int32(-2); y <= 2; y++ {
			w.LoadRegion(spatial.RegionCoord{X: x, Y: y})
		}
	}

	hunter, _ := w.Spawn(spatial.V(0, 0), wolf)
	w.Spawn(spatial.V(12, 5), sheep)
	w.Spawn(spatial.V(-30, 1), sheep)

	pos, _ := w.Position(hunter)
	prey, ok, err := w.Query().NearestEntity(pos.X, pos.Y, []world.Tag{sheep}, query.Options{})
	if err != nil {
		panic(err)
	}
	fmt.Println(ok, prey.Distance)

	// Chase: step straight at the prey.
	target, _ := w.Position(prey.ID)
	w.Move(hunter, pos.Add(spatial.Direction(pos, target).Scale(6.5)))

	n, _ := w.Query().CountEntitiesInRadius(0, 0, 20, []world.Tag{wolf, sheep}, query.Options{})
	fmt.Println(n)
	// Output:
	// true 13
	// 2
}

func ExampleScheduler() {
	tags := world.NewTagRegistry()
	sheep := world.RegisterTag[Sheep](tags)

	w := world.New(tags, world.DefaultConfig())
	w.LoadRegion(spatial.RegionCoord{})

	scheduler := world.NewScheduler(w)
	scheduler.RegisterNamed("breed", world.SystemFunc(func(f *world.Frame) {
		if f.Tick%2 == 0 {
			f.Commands.Spawn(spatial.V(float64(f.Tick), 1), sheep)
		}
	}))

	for range 6 {
		if err := scheduler.Once(1.0 / 60); err != nil {
			panic(err)
		}
	}

	fmt.Println(w.Len(), w.CollectStats().Tick)
	// Output: 3 6
}
