package world

import "github.com/plus3/chunkq/query"

// Frame is what a system sees during one tick.
type Frame struct {
	Tick      uint64
	DeltaTime float64
	Commands  *Commands
	World     *World
}

func newFrame(tick uint64, dt float64, w *World) *Frame {
	return &Frame{
		Tick:      tick,
		DeltaTime: dt,
		Commands:  NewCommands(),
		World:     w,
	}
}

// Query returns the world's query engine.
func (f *Frame) Query() *query.Engine[Tag] {
	return f.World.Query()
}

// System is a behavior run once per tick by a Scheduler. Systems read the
// world directly and mutate it through frame.Commands.
type System interface {
	Execute(frame *Frame)
}

// SystemFunc adapts a function to System.
type SystemFunc func(frame *Frame)

func (f SystemFunc) Execute(frame *Frame) {
	f(frame)
}
