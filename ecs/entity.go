package ecs

import "fmt"

// EntityId encodes the entity index (lower 32 bits) and its generation (upper 32 bits).
// The generation starts at 1 so the zero EntityId is never issued.
type EntityId uint64

// NewEntityId creates an EntityId from an entity index and generation
func NewEntityId(index uint32, generation uint32) EntityId {
	return EntityId(uint64(generation)<<32 | uint64(index))
}

// Index extracts the entity index from the entity ID
func (e EntityId) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// Generation extracts the generation from the entity ID
func (e EntityId) Generation() uint32 {
	return uint32(e >> 32)
}

func (e EntityId) String() string {
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// EntityRef is a stable reference to an entity that is cleared when the entity is deleted
type EntityRef struct {
	Id EntityId
}

type entitySlot struct {
	generation uint32
	reserved   bool
	spawned    bool
}

// entityAllocator hands out generational entity ids from a free list.
type entityAllocator struct {
	slots    []entitySlot
	freeList []uint32
	spawned  int
}

func newEntityAllocator() *entityAllocator {
	return &entityAllocator{
		slots:    make([]entitySlot, 0, 1024),
		freeList: make([]uint32, 0, 256),
	}
}

func (a *entityAllocator) reserve() EntityId {
	if len(a.freeList) > 0 {
		idx := a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		slot := &a.slots[idx]
		slot.reserved = true
		return NewEntityId(idx, slot.generation)
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, entitySlot{generation: 1, reserved: true})
	return NewEntityId(idx, 1)
}

func (a *entityAllocator) slot(id EntityId) *entitySlot {
	idx := id.Index()
	if int(idx) >= len(a.slots) {
		return nil
	}
	slot := &a.slots[idx]
	if slot.generation != id.Generation() || !slot.reserved {
		return nil
	}
	return slot
}

func (a *entityAllocator) alive(id EntityId) bool {
	return a.slot(id) != nil
}

func (a *entityAllocator) isSpawned(id EntityId) bool {
	slot := a.slot(id)
	return slot != nil && slot.spawned
}

// markSpawned flags a reserved id as spawned. It returns false for stale ids
// and for ids that were already spawned.
func (a *entityAllocator) markSpawned(id EntityId) bool {
	slot := a.slot(id)
	if slot == nil || slot.spawned {
		return false
	}
	slot.spawned = true
	a.spawned++
	return true
}

func (a *entityAllocator) free(id EntityId) bool {
	slot := a.slot(id)
	if slot == nil {
		return false
	}
	if slot.spawned {
		a.spawned--
	}
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	slot.reserved = false
	slot.spawned = false
	a.freeList = append(a.freeList, id.Index())
	return true
}

// each yields every spawned entity in index order.
func (a *entityAllocator) each(yield func(EntityId) bool) {
	for idx := range a.slots {
		slot := &a.slots[idx]
		if !slot.spawned {
			continue
		}
		if !yield(NewEntityId(uint32(idx), slot.generation)) {
			return
		}
	}
}

// spawnedAt returns the id of the spawned entity at index, if any.
func (a *entityAllocator) spawnedAt(index uint32) (EntityId, bool) {
	if int(index) >= len(a.slots) {
		return 0, false
	}
	slot := &a.slots[index]
	if !slot.spawned {
		return 0, false
	}
	return NewEntityId(index, slot.generation), true
}
