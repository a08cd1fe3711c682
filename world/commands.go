package world

import (
	"errors"

	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
)

// Commands buffers world mutations issued while systems run. They are applied
// in Flush at the end of the tick so a system never sees the world change
// under its own queries.
type Commands struct {
	spawns   []spawnCommand
	destroys []entity.Id
	attaches []tagCommand
	detaches []tagCommand
	moves    []moveCommand
	defers   []func()
}

type spawnCommand struct {
	pos  spatial.Vec2
	tags []Tag
}

type tagCommand struct {
	entity entity.Id
	tag    Tag
}

type moveCommand struct {
	entity entity.Id
	pos    spatial.Vec2
}

func NewCommands() *Commands {
	return &Commands{}
}

// Spawn queues an entity spawn.
func (c *Commands) Spawn(pos spatial.Vec2, tags ...Tag) {
	c.spawns = append(c.spawns, spawnCommand{pos: pos, tags: tags})
}

// Destroy queues an entity destruction.
func (c *Commands) Destroy(id entity.Id) {
	c.destroys = append(c.destroys, id)
}

// Attach queues a tag attach.
func (c *Commands) Attach(id entity.Id, tag Tag) {
	c.attaches = append(c.attaches, tagCommand{entity: id, tag: tag})
}

// Detach queues a tag detach.
func (c *Commands) Detach(id entity.Id, tag Tag) {
	c.detaches = append(c.detaches, tagCommand{entity: id, tag: tag})
}

// Move queues a position update. Later moves of the same entity win.
func (c *Commands) Move(id entity.Id, pos spatial.Vec2) {
	c.moves = append(c.moves, moveCommand{entity: id, pos: pos})
}

// Defer queues fn to run after every other command has been applied.
func (c *Commands) Defer(fn func()) {
	c.defers = append(c.defers, fn)
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.spawns) + len(c.destroys) + len(c.attaches) + len(c.detaches) + len(c.moves) + len(c.defers)
}

// Flush applies every queued command to w and resets the buffer. Destroys
// run first and suppress any other command aimed at the same entity; then
// detaches, attaches, moves, spawns and deferred functions, each in queue
// order. Failures do not stop the flush and are returned joined.
func (c *Commands) Flush(w *World) error {
	var errs []error
	destroyed := make(map[entity.Id]bool, len(c.destroys))

	for _, id := range c.destroys {
		if destroyed[id] {
			continue
		}
		destroyed[id] = true
		if err := w.Destroy(id); err != nil {
			errs = append(errs, err)
		}
	}

	for _, cmd := range c.detaches {
		if !destroyed[cmd.entity] {
			if err := w.Detach(cmd.entity, cmd.tag); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, cmd := range c.attaches {
		if !destroyed[cmd.entity] {
			if err := w.Attach(cmd.entity, cmd.tag); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, cmd := range c.moves {
		if !destroyed[cmd.entity] {
			if err := w.Move(cmd.entity, cmd.pos); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, cmd := range c.spawns {
		if _, err := w.Spawn(cmd.pos, cmd.tags...); err != nil {
			errs = append(errs, err)
		}
	}

	for _, fn := range c.defers {
		fn()
	}

	c.spawns = c.spawns[:0]
	c.destroys = c.destroys[:0]
	c.attaches = c.attaches[:0]
	c.detaches = c.detaches[:0]
	c.moves = c.moves[:0]
	c.defers = c.defers[:0]

	return errors.Join(errs...)
}
