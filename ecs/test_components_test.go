package ecs_test

import "github.com/plus3/flatspawn/ecs"

// Common test component types
type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Name struct {
	Value string
}

type Health struct {
	Current int
	Max     int
}

// Custom primitive types for testing non-pointer components
type Score int32
type Tag string

type Inventory struct {
	Items []string
}

type RefComponent struct {
	Ref *Position
}

// Marker components used by the hierarchy tests
type X struct{}
type Y struct{}

type RootEntity struct {
	Id ecs.EntityId
}

func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Score](registry)
	ecs.RegisterComponent[Tag](registry)
	ecs.RegisterComponent[int32](registry)
	ecs.RegisterComponent[string](registry)
	ecs.RegisterComponent[Inventory](registry)
	ecs.RegisterComponent[RefComponent](registry)
	ecs.RegisterComponent[X](registry)
	ecs.RegisterComponent[Y](registry)
	return registry
}
