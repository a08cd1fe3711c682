package world

import (
	"iter"

	"github.com/plus3/chunkq/entity"
	"github.com/plus3/chunkq/spatial"
)

const slotBlockSize = 64

// record is the entity table row: the authoritative position and tags of one
// entity. region is cached from pos so moves can detect region changes.
type record struct {
	pos        spatial.Vec2
	region     spatial.RegionCoord
	tags       []Tag
	generation uint32
}

func (r *record) hasTag(tag Tag) bool {
	for _, t := range r.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// slots stores records in fixed-size blocks. Freed slots are reused, and each
// reuse bumps the slot's generation so ids held across a destroy go stale.
type slots struct {
	blocks    [][slotBlockSize]record
	filled    [][slotBlockSize]bool
	freeSlots []uint32
	nextIndex uint32
	live      int
}

func newSlots(capacity int) slots {
	blocks := (capacity + slotBlockSize - 1) / slotBlockSize
	return slots{
		blocks: make([][slotBlockSize]record, 0, blocks),
		filled: make([][slotBlockSize]bool, 0, blocks),
	}
}

// alloc reserves a slot and returns its id and zeroed record.
func (s *slots) alloc() (entity.Id, *record) {
	var index uint32
	if len(s.freeSlots) > 0 {
		index = s.freeSlots[len(s.freeSlots)-1]
		s.freeSlots = s.freeSlots[:len(s.freeSlots)-1]
	} else {
		index = s.nextIndex
		s.nextIndex++
		if int(index/slotBlockSize) >= len(s.blocks) {
			s.blocks = append(s.blocks, [slotBlockSize]record{})
			s.filled = append(s.filled, [slotBlockSize]bool{})
		}
	}

	blockIdx, slotIdx := index/slotBlockSize, index%slotBlockSize
	rec := &s.blocks[blockIdx][slotIdx]
	generation := rec.generation + 1
	if generation == 0 {
		generation = 1
	}
	*rec = record{generation: generation}
	s.filled[blockIdx][slotIdx] = true
	s.live++

	return entity.NewId(generation, index), rec
}

// get returns the live record for id, or nil when the slot is empty or has
// been reused since id was issued.
func (s *slots) get(id entity.Id) *record {
	index := id.Index()
	blockIdx, slotIdx := index/slotBlockSize, index%slotBlockSize
	if int(blockIdx) >= len(s.blocks) || !s.filled[blockIdx][slotIdx] {
		return nil
	}
	rec := &s.blocks[blockIdx][slotIdx]
	if rec.generation != id.Generation() {
		return nil
	}
	return rec
}

// free releases the slot held by id. The generation is kept so the next
// alloc of this slot issues a different id.
func (s *slots) free(id entity.Id) bool {
	rec := s.get(id)
	if rec == nil {
		return false
	}
	index := id.Index()
	*rec = record{generation: rec.generation}
	s.filled[index/slotBlockSize][index%slotBlockSize] = false
	s.freeSlots = append(s.freeSlots, index)
	s.live--
	return true
}

func (s *slots) len() int {
	return s.live
}

// all yields every live entity in slot order.
func (s *slots) all() iter.Seq2[entity.Id, *record] {
	return func(yield func(entity.Id, *record) bool) {
		for i := uint32(0); i < s.nextIndex; i++ {
			blockIdx, slotIdx := i/slotBlockSize, i%slotBlockSize
			if !s.filled[blockIdx][slotIdx] {
				continue
			}
			rec := &s.blocks[blockIdx][slotIdx]
			if !yield(entity.NewId(rec.generation, i), rec) {
				return
			}
		}
	}
}
