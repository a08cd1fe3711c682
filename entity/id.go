// Package entity defines the opaque handle every index stores in place of an
// owning reference to an entity.
package entity

import "fmt"

// Id encodes both the slot generation (upper 32 bits) and the slot index
// (lower 32 bits). The zero Id never refers to a live entity.
type Id uint64

// NewId creates an Id from a slot generation and slot index.
func NewId(generation uint32, index uint32) Id {
	return Id(uint64(generation)<<32 | uint64(index))
}

// Generation extracts the slot generation from the Id.
func (e Id) Generation() uint32 {
	return uint32(e >> 32)
}

// Index extracts the slot index from the Id.
func (e Id) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// IsZero reports whether e is the zero Id.
func (e Id) IsZero() bool {
	return e == 0
}

func (e Id) String() string {
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}
