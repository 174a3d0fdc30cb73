package ecs

import (
	"reflect"
)

// Singleton provides access to a single component instance that is not
// associated with any entity. Use this for store-wide state such as the ids
// of well-known entities or configuration.
type Singleton[T any] struct {
	storage       *Storage
	entry         *singletonEntry
	componentType reflect.Type
}

// NewSingleton creates a new Singleton accessor for the given storage.
// If initializer is provided and the singleton doesn't exist in storage,
// it will be created with the initializer value. Otherwise, a zero value is used.
// This guarantees the singleton exists in storage after the call.
func NewSingleton[T any](storage *Storage, initializer ...T) *Singleton[T] {
	componentType := reflect.TypeFor[T]()

	entry := storage.getSingletonEntry(componentType)
	if entry == nil {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		storage.AddSingleton(value)
		entry = storage.getSingletonEntry(componentType)
	}

	return &Singleton[T]{
		storage:       storage,
		entry:         entry,
		componentType: componentType,
	}
}

// Init initializes the Singleton with a storage reference.
// This is called automatically by the Scheduler during system registration.
func (s *Singleton[T]) Init(storage *Storage) {
	s.storage = storage
	s.componentType = reflect.TypeFor[T]()
	s.entry = nil
}

// Get returns a pointer to the singleton component.
// Returns nil if the singleton has not been added to storage.
func (s *Singleton[T]) Get() *T {
	if s.storage == nil {
		return nil
	}
	// The entry is replaced when AddSingleton is called again for the type
	if entry := s.storage.getSingletonEntry(s.componentType); entry != s.entry {
		s.entry = entry
	}
	if s.entry == nil {
		return nil
	}
	return (*T)(s.entry.dataPtr)
}

// Set replaces the singleton value, creating it if needed.
func (s *Singleton[T]) Set(value T) {
	s.storage.AddSingleton(value)
	s.entry = s.storage.getSingletonEntry(s.componentType)
}

// Exists returns true if the singleton component has been added to storage
func (s *Singleton[T]) Exists() bool {
	return s.Get() != nil
}
