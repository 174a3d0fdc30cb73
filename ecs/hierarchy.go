package ecs

import "iter"

// Parent points at the entity's parent. It is maintained by the storage:
// spawning an entity with a Parent component attaches it to that parent.
type Parent struct {
	Id EntityId
}

// Children lists the entity's children in attachment order.
type Children struct {
	Ids []EntityId
}

// Len returns the number of children.
func (c Children) Len() int {
	return len(c.Ids)
}

// Bundle is a set of components attached together in one spawn.
type Bundle []any

// Repeat returns a sequence of n bundles holding the same components. The
// values are copied into each entity, but slices and maps inside them are
// shared by every entity of the batch.
func Repeat(n int, components ...any) iter.Seq[Bundle] {
	return func(yield func(Bundle) bool) {
		for i := 0; i < n; i++ {
			if !yield(Bundle(components)) {
				return
			}
		}
	}
}

// Bundles returns a sequence over the given bundles in order.
func Bundles(bundles ...Bundle) iter.Seq[Bundle] {
	return func(yield func(Bundle) bool) {
		for _, b := range bundles {
			if !yield(b) {
				return
			}
		}
	}
}
