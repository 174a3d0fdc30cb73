package ecs

import (
	"iter"
	"reflect"
	"slices"
	"unsafe"
	"weak"

	"github.com/kamstrup/intmap"
)

// Storage is the main ECS storage. Entities keep the same EntityId for their
// whole lifetime; component data lives in one column per component type.
type Storage struct {
	entities   *entityAllocator
	columns    map[reflect.Type]iComponentStorage
	singletons map[reflect.Type]*singletonEntry
	refs       *intmap.Map[EntityId, weak.Pointer[EntityRef]]
	registry   *ComponentRegistry
}

type singletonEntry struct {
	value   reflect.Value
	dataPtr unsafe.Pointer
}

var (
	parentType   = reflect.TypeFor[Parent]()
	childrenType = reflect.TypeFor[Children]()
)

// NewStorage creates a new ECS storage system with the given component registry
func NewStorage(registry *ComponentRegistry) *Storage {
	return &Storage{
		entities:   newEntityAllocator(),
		columns:    make(map[reflect.Type]iComponentStorage),
		singletons: make(map[reflect.Type]*singletonEntry),
		refs:       intmap.New[EntityId, weak.Pointer[EntityRef]](256),
		registry:   registry,
	}
}

// Registry returns the component registry backing this storage.
func (s *Storage) Registry() *ComponentRegistry {
	return s.registry
}

// Reserve allocates a new entity id without spawning it. The id is live
// (not stale) but the entity is invisible to views until it is spawned.
func (s *Storage) Reserve() EntityId {
	return s.entities.reserve()
}

// Release frees an id returned by Reserve that was never spawned.
func (s *Storage) Release(id EntityId) bool {
	if s.entities.isSpawned(id) {
		return false
	}
	return s.entities.free(id)
}

// Alive reports whether id is a live (reserved or spawned) entity.
func (s *Storage) Alive(id EntityId) bool {
	return s.entities.alive(id)
}

// IsSpawned reports whether id has been spawned and not deleted since.
func (s *Storage) IsSpawned(id EntityId) bool {
	return s.entities.isSpawned(id)
}

// EntityCount returns the number of spawned entities.
func (s *Storage) EntityCount() int {
	return s.entities.spawned
}

// Entities iterates every spawned entity in index order.
func (s *Storage) Entities() iter.Seq[EntityId] {
	return s.entities.each
}

func (s *Storage) CreateEntityRef(id EntityId) *EntityRef {
	if !s.entities.alive(id) {
		return nil
	}

	// Check if we already have a ref for this entity
	if weakPtr, ok := s.refs.Get(id); ok {
		if ref := weakPtr.Value(); ref != nil {
			return ref
		}
		// Weak pointer is dead, remove it
		s.refs.Del(id)
	}

	ref := &EntityRef{Id: id}
	s.refs.Put(id, weak.Make(ref))
	return ref
}

func (s *Storage) ResolveEntityRef(ref *EntityRef) (EntityId, bool) {
	if ref == nil || ref.Id == 0 {
		return 0, false
	}
	if !s.entities.alive(ref.Id) {
		return 0, false
	}
	return ref.Id, true
}

func (s *Storage) InvalidateEntityRef(ref *EntityRef) bool {
	if ref == nil || ref.Id == 0 {
		return false
	}
	s.refs.Del(ref.Id)
	ref.Id = 0
	return true
}

// Spawn creates a new entity with the provided components. An entity may be
// spawned without components.
func (s *Storage) Spawn(components ...any) EntityId {
	id := s.entities.reserve()
	s.SpawnReserved(id, components...)
	return id
}

// SpawnReserved spawns a previously reserved id with the provided components.
// Returns false if the id is stale or already spawned.
func (s *Storage) SpawnReserved(id EntityId, components ...any) bool {
	types := extractComponentTypes(components)
	if !s.entities.markSpawned(id) {
		return false
	}
	s.setComponents(id, components, types)
	return true
}

// SpawnBatch spawns one entity per bundle and returns the ids in input order.
// The sequence must be finite.
func (s *Storage) SpawnBatch(bundles iter.Seq[Bundle]) []EntityId {
	var ids []EntityId
	for bundle := range bundles {
		ids = append(ids, s.Spawn(bundle...))
	}
	return ids
}

// Delete removes the entity and all its component data. The entity is
// detached from its parent and its children lose their Parent component.
func (s *Storage) Delete(id EntityId) bool {
	if !s.entities.alive(id) {
		return false
	}

	if parent, ok := s.Parent(id); ok {
		s.removeChild(parent, id)
	}
	for _, child := range s.Children(id) {
		s.deleteComponent(child, parentType)
	}

	idx := int(id.Index())
	for _, column := range s.columns {
		column.Delete(idx)
	}

	if weakPtr, ok := s.refs.Get(id); ok {
		if ref := weakPtr.Value(); ref != nil {
			ref.Id = 0
		}
		s.refs.Del(id)
	}

	return s.entities.free(id)
}

// DeleteRecursive deletes the entity and all of its descendants.
func (s *Storage) DeleteRecursive(id EntityId) bool {
	if !s.entities.alive(id) {
		return false
	}
	for _, child := range slices.Clone(s.Children(id)) {
		s.DeleteRecursive(child)
	}
	return s.Delete(id)
}

// AddComponent sets a component on the entity, replacing a previous value of
// the same type. A reserved entity becomes spawned.
func (s *Storage) AddComponent(id EntityId, component any) bool {
	return s.AddComponents(id, component)
}

// AddComponents sets every component on the entity.
func (s *Storage) AddComponents(id EntityId, components ...any) bool {
	types := extractComponentTypes(components)
	if !s.entities.alive(id) {
		return false
	}
	s.entities.markSpawned(id)
	s.setComponents(id, components, types)
	return true
}

func (s *Storage) RemoveComponent(id EntityId, compType reflect.Type) bool {
	if !s.entities.alive(id) {
		return false
	}
	switch compType {
	case parentType:
		if parent, ok := s.Parent(id); ok {
			s.removeChild(parent, id)
		}
		return true
	case childrenType:
		for _, child := range s.Children(id) {
			s.deleteComponent(child, parentType)
		}
	}
	s.deleteComponent(id, compType)
	return true
}

// GetComponent returns a pointer to the component for the given entity ID and
// component type, or nil when the entity does not have it.
func (s *Storage) GetComponent(id EntityId, compType reflect.Type) any {
	if !s.entities.alive(id) {
		return nil
	}
	column, ok := s.columns[compType]
	if !ok {
		return nil
	}
	return column.Get(int(id.Index()))
}

// HasComponent checks if an entity has a specific component type
func (s *Storage) HasComponent(id EntityId, compType reflect.Type) bool {
	if !s.entities.alive(id) {
		return false
	}
	column, ok := s.columns[compType]
	if !ok {
		return false
	}
	return column.Has(int(id.Index()))
}

// AttachChildren records parent as the parent of every child, appending the
// children to the parent's Children in order. A child attached to another
// parent is moved; a child already attached to parent keeps its position.
// Self-attachment is ignored, as is attaching an ancestor of parent, so the
// hierarchy never holds a cycle.
func (s *Storage) AttachChildren(parent EntityId, children ...EntityId) {
	if !s.entities.alive(parent) {
		return
	}
	s.entities.markSpawned(parent)

	kids := s.childrenOf(parent)
	var ids []EntityId
	if kids != nil {
		ids = kids.Ids
	}

	for _, child := range children {
		if !s.entities.alive(child) || s.isAncestor(child, parent) {
			continue
		}
		s.entities.markSpawned(child)

		if old, ok := s.Parent(child); ok {
			if old == parent {
				continue
			}
			s.removeChild(old, child)
		}
		s.column(parentType).Set(int(child.Index()), Parent{Id: parent})
		ids = append(ids, child)
	}

	if kids != nil {
		kids.Ids = ids
	} else if len(ids) > 0 {
		s.column(childrenType).Set(int(parent.Index()), Children{Ids: ids})
	}
}

// isAncestor reports whether ancestor is id itself or one of its parents.
func (s *Storage) isAncestor(ancestor, id EntityId) bool {
	for {
		if id == ancestor {
			return true
		}
		parent, ok := s.Parent(id)
		if !ok {
			return false
		}
		id = parent
	}
}

// Parent returns the entity's parent, if it has one.
func (s *Storage) Parent(id EntityId) (EntityId, bool) {
	comp, ok := s.GetComponent(id, parentType).(*Parent)
	if !ok || comp == nil {
		return 0, false
	}
	return comp.Id, true
}

// Children returns the entity's children in attachment order. The returned
// slice is owned by the storage.
func (s *Storage) Children(id EntityId) []EntityId {
	kids := s.childrenOf(id)
	if kids == nil {
		return nil
	}
	return kids.Ids
}

func (s *Storage) childrenOf(id EntityId) *Children {
	kids, ok := s.GetComponent(id, childrenType).(*Children)
	if !ok {
		return nil
	}
	return kids
}

func (s *Storage) removeChild(parent, child EntityId) {
	s.deleteComponent(child, parentType)

	kids := s.childrenOf(parent)
	if kids == nil {
		return
	}
	kids.Ids = slices.DeleteFunc(kids.Ids, func(id EntityId) bool { return id == child })
	if len(kids.Ids) == 0 {
		s.deleteComponent(parent, childrenType)
	}
}

func (s *Storage) deleteComponent(id EntityId, compType reflect.Type) {
	if column, ok := s.columns[compType]; ok {
		column.Delete(int(id.Index()))
	}
}

func (s *Storage) setComponents(id EntityId, components []any, types []reflect.Type) {
	idx := int(id.Index())
	for i, comp := range components {
		switch types[i] {
		case parentType:
			parent := componentValue[Parent](comp)
			s.AttachChildren(parent.Id, id)
			continue
		case childrenType:
			kids := componentValue[Children](comp)
			s.AttachChildren(id, kids.Ids...)
			continue
		}
		s.column(types[i]).Set(idx, comp)
	}
}

// column returns the column for a component type, creating it on first use.
func (s *Storage) column(compType reflect.Type) iComponentStorage {
	column, ok := s.columns[compType]
	if ok {
		return column
	}
	factory := s.registry.getFactory(compType)
	if factory == nil {
		panic("component type " + compType.String() + " not registered")
	}
	column = factory()
	s.columns[compType] = column
	return column
}

// AddSingleton stores a store-wide component instance, replacing any existing
// singleton of the same type.
func (s *Storage) AddSingleton(component any) {
	compType := componentType(component)
	value := reflect.New(compType)
	if rv := reflect.ValueOf(component); rv.Kind() == reflect.Ptr {
		value.Elem().Set(rv.Elem())
	} else {
		value.Elem().Set(rv)
	}
	s.singletons[compType] = &singletonEntry{
		value:   value,
		dataPtr: value.UnsafePointer(),
	}
}

// RemoveSingleton drops the singleton of the given type.
func (s *Storage) RemoveSingleton(compType reflect.Type) {
	delete(s.singletons, compType)
}

func (s *Storage) getSingletonEntry(compType reflect.Type) *singletonEntry {
	return s.singletons[compType]
}

func componentValue[T any](comp any) T {
	if ptr, ok := comp.(*T); ok {
		return *ptr
	}
	return comp.(T)
}

func componentType(comp any) reflect.Type {
	compType := reflect.TypeOf(comp)
	if compType == nil {
		panic("components cannot be nil")
	}

	// If it's a pointer, get the underlying type
	if compType.Kind() == reflect.Ptr {
		compType = compType.Elem()
	}

	// Components can be structs or primitives (int, string, etc.)
	// But not pointers, maps, channels, or functions (those aren't value types)
	if compType.Kind() == reflect.Ptr || compType.Kind() == reflect.Map ||
		compType.Kind() == reflect.Chan || compType.Kind() == reflect.Func {
		panic("components cannot be pointers, maps, channels, or functions")
	}
	return compType
}

// extractComponentTypes resolves the component type of each value, keeping
// the input order.
func extractComponentTypes(components []any) []reflect.Type {
	types := make([]reflect.Type, 0, len(components))
	for _, comp := range components {
		types = append(types, componentType(comp))
	}
	return types
}

type ComponentReader interface {
	GetComponent(EntityId, reflect.Type) any
}

// ReadComponent returns the typed component, or nil if the entity does not have it.
func ReadComponent[T any](reader ComponentReader, entityId EntityId) *T {
	comp, _ := reader.GetComponent(entityId, reflect.TypeFor[T]()).(*T)
	return comp
}
