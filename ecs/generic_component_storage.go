package ecs

import (
	"iter"
	"reflect"
)

// ComponentRegistry manages component type registration for an ECS instance.
// Each Storage instance has its own ComponentRegistry, allowing multiple
// independent ECS systems to coexist without interference.
type ComponentRegistry struct {
	factories map[reflect.Type]func() iComponentStorage
}

// NewComponentRegistry creates a new component registry. The hierarchy
// components Parent and Children are always registered.
func NewComponentRegistry() *ComponentRegistry {
	r := &ComponentRegistry{
		factories: make(map[reflect.Type]func() iComponentStorage),
	}
	RegisterComponent[Parent](r)
	RegisterComponent[Children](r)
	return r
}

// RegisterComponent registers a new component type with the given registry.
// This must be called for each component type before it can be used.
func RegisterComponent[T any](r *ComponentRegistry) {
	t := reflect.TypeFor[T]()
	r.factories[t] = func() iComponentStorage {
		return &genericComponentStorage[T]{}
	}
}

// IsRegistered reports whether the component type has been registered.
func (r *ComponentRegistry) IsRegistered(t reflect.Type) bool {
	_, ok := r.factories[t]
	return ok
}

// getFactory returns the factory function for a given component type.
// Returns nil if the type is not registered.
func (r *ComponentRegistry) getFactory(t reflect.Type) func() iComponentStorage {
	return r.factories[t]
}

const (
	genericBlockSize = 64
)

// genericComponentStorage stores components of type T in fixed-size blocks
// indexed by entity index. Blocks are allocated lazily as indices grow.
type genericComponentStorage[T any] struct {
	blocks [][genericBlockSize]T
	filled [][genericBlockSize]bool
	count  int
}

// Set stores the component at the given index, replacing any previous value.
func (cs *genericComponentStorage[T]) Set(index int, item any) bool {
	if index < 0 {
		return false
	}

	var concreteItem T
	if ptr, ok := item.(*T); ok {
		concreteItem = *ptr
	} else if val, ok := item.(T); ok {
		concreteItem = val
	} else {
		return false
	}

	blockIdx := index / genericBlockSize
	slotIdx := index % genericBlockSize

	for blockIdx >= len(cs.blocks) {
		cs.blocks = append(cs.blocks, [genericBlockSize]T{})
		cs.filled = append(cs.filled, [genericBlockSize]bool{})
	}

	cs.blocks[blockIdx][slotIdx] = concreteItem
	if !cs.filled[blockIdx][slotIdx] {
		cs.filled[blockIdx][slotIdx] = true
		cs.count++
	}
	return true
}

// Get returns a pointer to the component at the given index.
func (cs *genericComponentStorage[T]) Get(index int) any {
	if !cs.Has(index) {
		return nil
	}
	return &cs.blocks[index/genericBlockSize][index%genericBlockSize]
}

// Delete marks a component slot as empty.
func (cs *genericComponentStorage[T]) Delete(index int) {
	if !cs.Has(index) {
		return
	}

	blockIdx := index / genericBlockSize
	slotIdx := index % genericBlockSize

	cs.filled[blockIdx][slotIdx] = false
	var zero T
	cs.blocks[blockIdx][slotIdx] = zero
	cs.count--
}

// Has checks if a component exists at the given index.
func (cs *genericComponentStorage[T]) Has(index int) bool {
	if index < 0 {
		return false
	}

	blockIdx := index / genericBlockSize
	if blockIdx >= len(cs.filled) {
		return false
	}

	return cs.filled[blockIdx][index%genericBlockSize]
}

func (cs *genericComponentStorage[T]) Len() int {
	return cs.count
}

func (cs *genericComponentStorage[T]) Iter() iter.Seq[int] {
	return func(yield func(int) bool) {
		for blockIdx := range cs.filled {
			for slotIdx, ok := range cs.filled[blockIdx] {
				if !ok {
					continue
				}
				if !yield(blockIdx*genericBlockSize + slotIdx) {
					return
				}
			}
		}
	}
}
