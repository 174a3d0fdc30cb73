package main

import (
	"github.com/plus3/flatspawn/ecs"
	"github.com/plus3/flatspawn/ecs/blueprint"
	"github.com/plus3/flatspawn/ecs/hierarchy"
)

// StressRoot marks the root of a generated tree.
type StressRoot struct {
	Frame int64
}

// Level is carried by every inner node of a generated tree.
type Level struct {
	Depth int
}

// Leaf is carried by the batch-spawned children on the last level.
type Leaf struct {
	Weight float32
}

func registerComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[StressRoot](registry)
	ecs.RegisterComponent[Level](registry)
	ecs.RegisterComponent[Leaf](registry)
	blueprint.Register(registry)
}

// BuildSystem queues Roots new trees every frame.
type BuildSystem struct {
	shape     HierarchyConfig
	blueprint *blueprint.Node
	frame     int64
}

func (s *BuildSystem) Execute(frame *ecs.UpdateFrame) {
	s.frame++
	builder := hierarchy.New(frame.Commands)

	for range s.shape.Roots {
		if s.blueprint != nil {
			root := blueprint.Spawn(builder, s.blueprint)
			builder.Entity(root).Insert(StressRoot{Frame: s.frame})
			continue
		}
		builder.Root(StressRoot{Frame: s.frame}).
			WithDescendants(func(root *hierarchy.Root) {
				s.grow(root, 1)
			})
	}
}

func (s *BuildSystem) grow(scope *hierarchy.Root, depth int) {
	if depth > s.shape.Depth {
		if s.shape.Batch > 0 {
			scope.WithChildBatch(ecs.Repeat(s.shape.Batch, Leaf{Weight: 1}))
		}
		return
	}

	child := scope.WithChild(Level{Depth: depth})
	for i := range s.shape.Breadth {
		if i > 0 {
			child.WithSibling(Level{Depth: depth})
		}
		child.WithDescendants(func(next *hierarchy.Root) {
			s.grow(next, depth+1)
		})
	}
}

// CleanupSystem deletes every tree that was spawned by an earlier frame.
type CleanupSystem struct {
	Roots ecs.Query[struct {
		Id ecs.EntityId
		*StressRoot
	}]

	deleted int64
}

func (s *CleanupSystem) Execute(frame *ecs.UpdateFrame) {
	for item := range s.Roots.Values() {
		frame.Commands.DeleteRecursive(item.Id)
		s.deleted++
	}
}
