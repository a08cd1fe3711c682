package world

import (
	"reflect"
	"slices"
	"strings"
)

// Tag is a capability tag. Tags are Go types, usually empty marker structs,
// so that each package can declare its own without a central enum.
type Tag = reflect.Type

// TagRegistry holds the capability tags known to a World. Each World has its
// own registry, allowing multiple independent worlds to coexist.
type TagRegistry struct {
	tags map[Tag]struct{}
}

// NewTagRegistry creates an empty tag registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{
		tags: make(map[Tag]struct{}),
	}
}

// RegisterTag registers T as a capability tag and returns it. Registering the
// same type twice is a no-op.
func RegisterTag[T any](r *TagRegistry) Tag {
	t := TagOf[T]()
	r.tags[t] = struct{}{}
	return t
}

// TagOf returns the tag for T without registering it.
func TagOf[T any]() Tag {
	return reflect.TypeFor[T]()
}

// Known reports whether tag has been registered.
func (r *TagRegistry) Known(tag Tag) bool {
	if tag == nil {
		return false
	}
	_, ok := r.tags[tag]
	return ok
}

func (r *TagRegistry) Len() int {
	return len(r.tags)
}

// All returns every registered tag sorted by name.
func (r *TagRegistry) All() []Tag {
	out := make([]Tag, 0, len(r.tags))
	for t := range r.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tag) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}
