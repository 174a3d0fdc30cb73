// Package hierarchy builds trees of entities on top of an ecs.Commands queue.
//
// A Builder hands out cursors. A Root cursor sits on the root of the current
// scope; a Child cursor additionally remembers its parent and the root it
// descended from. Every cursor operation either reserves an entity id right
// away and queues the commands that spawn and link it, or queues a command
// against an id that is already known. Nothing touches the storage until the
// queue is flushed.
//
//	hierarchy.New(frame.Commands).
//		Root(Panel{}).
//		WithChild(Label{Text: "title"}).
//		WithSibling(Label{Text: "body"}).
//		WithDescendants(func(body *hierarchy.Root) {
//			body.WithChildBatch(ecs.Repeat(3, Bullet{}))
//		})
package hierarchy

import (
	"iter"

	"github.com/plus3/flatspawn/ecs"
)

// Cursor is the capability shared by Root and Child.
type Cursor interface {
	// Id returns the entity the cursor is positioned at.
	Id() ecs.EntityId
	// RootId returns the root of the scope the cursor was created in.
	RootId() ecs.EntityId
	// Commands returns the queue the cursor appends to.
	Commands() *ecs.Commands
}

var (
	_ Cursor = (*Root)(nil)
	_ Cursor = (*Child)(nil)
)

// position is the entity a cursor sits on and the queue it writes to.
type position struct {
	entity   ecs.EntityId
	commands *ecs.Commands
}

func (p *position) Id() ecs.EntityId {
	return p.entity
}

func (p *position) Commands() *ecs.Commands {
	return p.commands
}

func (p *position) spawnChild(components []any) ecs.EntityId {
	child := p.commands.Spawn(components...)
	p.commands.AddChild(p.entity, child)
	return child
}

// Builder is the entry point for building hierarchies on a command queue.
type Builder struct {
	commands *ecs.Commands
}

// New returns a Builder appending to commands.
func New(commands *ecs.Commands) *Builder {
	return &Builder{commands: commands}
}

// Root queues a new entity with the given components and returns a cursor on it.
func (b *Builder) Root(components ...any) *Root {
	return &Root{position{entity: b.commands.Spawn(components...), commands: b.commands}}
}

// EmptyRoot queues a new entity without components.
func (b *Builder) EmptyRoot() *Root {
	return b.Root()
}

// Entity returns a root cursor on an existing entity.
func (b *Builder) Entity(id ecs.EntityId) *Root {
	return &Root{position{entity: id, commands: b.commands}}
}

// Commands returns the underlying queue.
func (b *Builder) Commands() *ecs.Commands {
	return b.commands
}

// Root is a cursor on the root of the current scope.
type Root struct {
	position
}

// RootId is the cursor's own entity.
func (r *Root) RootId() ecs.EntityId {
	return r.entity
}

// Insert queues setting a component on the current entity.
func (r *Root) Insert(component any) *Root {
	r.commands.Insert(r.entity, component)
	return r
}

// InsertBundle queues setting several components on the current entity.
func (r *Root) InsertBundle(components ...any) *Root {
	r.commands.InsertBundle(r.entity, components...)
	return r
}

// WithChild queues a new child of the current entity and returns a cursor on it.
func (r *Root) WithChild(components ...any) *Child {
	child := r.spawnChild(components)
	return &Child{
		position: position{entity: child, commands: r.commands},
		root:     r.entity,
		parent:   r.entity,
	}
}

// WithEmptyChild queues a new child without components.
func (r *Root) WithEmptyChild() *Child {
	return r.WithChild()
}

// WithDescendants calls scope with a fresh root cursor on the current entity
// and returns the receiver unchanged.
func (r *Root) WithDescendants(scope func(*Root)) *Root {
	scope(&Root{position: r.position})
	return r
}

// WithChildBatch queues one command that spawns a child per bundle at flush.
func (r *Root) WithChildBatch(bundles iter.Seq[ecs.Bundle]) *Root {
	r.commands.SpawnChildBatch(r.entity, bundles)
	return r
}

// PushChildren queues attaching existing entities as children.
func (r *Root) PushChildren(children ...ecs.EntityId) *Root {
	r.commands.PushChildren(r.entity, children...)
	return r
}

// WithId passes the current entity id to fn.
func (r *Root) WithId(fn func(ecs.EntityId)) *Root {
	fn(r.entity)
	return r
}

// Child is a cursor on an entity below the scope's root.
//
// root never changes. parent only changes by descending with WithChild,
// which returns a new cursor; WithSibling moves this cursor in place.
type Child struct {
	position
	root   ecs.EntityId
	parent ecs.EntityId
}

// RootId returns the root the cursor descended from.
func (c *Child) RootId() ecs.EntityId {
	return c.root
}

// ParentId returns the parent of the current entity.
func (c *Child) ParentId() ecs.EntityId {
	return c.parent
}

// Insert queues setting a component on the current entity.
func (c *Child) Insert(component any) *Child {
	c.commands.Insert(c.entity, component)
	return c
}

// InsertBundle queues setting several components on the current entity.
func (c *Child) InsertBundle(components ...any) *Child {
	c.commands.InsertBundle(c.entity, components...)
	return c
}

// WithChild queues a child of the current entity and returns a new cursor on it.
func (c *Child) WithChild(components ...any) *Child {
	child := c.spawnChild(components)
	return &Child{
		position: position{entity: child, commands: c.commands},
		root:     c.root,
		parent:   c.entity,
	}
}

// WithEmptyChild queues a child without components.
func (c *Child) WithEmptyChild() *Child {
	return c.WithChild()
}

// WithSibling queues a new child of the current parent and moves the cursor
// onto it.
func (c *Child) WithSibling(components ...any) *Child {
	sibling := c.commands.Spawn(components...)
	c.commands.AddChild(c.parent, sibling)
	c.entity = sibling
	return c
}

// WithEmptySibling queues a sibling without components.
func (c *Child) WithEmptySibling() *Child {
	return c.WithSibling()
}

// WithDescendants calls scope with a fresh root cursor on the current entity
// and returns the receiver unchanged.
func (c *Child) WithDescendants(scope func(*Root)) *Child {
	scope(&Root{position: c.position})
	return c
}

// WithChildBatch queues one command that spawns a child per bundle at flush.
func (c *Child) WithChildBatch(bundles iter.Seq[ecs.Bundle]) *Child {
	c.commands.SpawnChildBatch(c.entity, bundles)
	return c
}

// PushChildren queues attaching existing entities as children.
func (c *Child) PushChildren(children ...ecs.EntityId) *Child {
	c.commands.PushChildren(c.entity, children...)
	return c
}

// WithId passes the current entity id to fn.
func (c *Child) WithId(fn func(ecs.EntityId)) *Child {
	fn(c.entity)
	return c
}
