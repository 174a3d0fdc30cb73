package ecs

import (
	"iter"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Allocator issues entity ids at enqueue time.
type Allocator interface {
	Reserve() EntityId
	Release(id EntityId) bool
}

// Store is the mutation surface a command queue is flushed against.
type Store interface {
	Alive(id EntityId) bool
	SpawnReserved(id EntityId, components ...any) bool
	SpawnBatch(bundles iter.Seq[Bundle]) []EntityId
	AttachChildren(parent EntityId, children ...EntityId)
	AddComponents(id EntityId, components ...any) bool
	RemoveComponent(id EntityId, compType reflect.Type) bool
	Delete(id EntityId) bool
	DeleteRecursive(id EntityId) bool
}

// CommandKind identifies a queued command.
type CommandKind uint8

const (
	CommandSpawn CommandKind = iota
	CommandInsert
	CommandInsertBundle
	CommandAddChild
	CommandPushChildren
	CommandSpawnChildBatch
	CommandRemoveComponent
	CommandDelete
	CommandDeleteRecursive
	CommandDefer
)

var commandKindNames = [...]string{
	CommandSpawn:           "Spawn",
	CommandInsert:          "Insert",
	CommandInsertBundle:    "InsertBundle",
	CommandAddChild:        "AddChild",
	CommandPushChildren:    "PushChildren",
	CommandSpawnChildBatch: "SpawnChildBatch",
	CommandRemoveComponent: "RemoveComponent",
	CommandDelete:          "Delete",
	CommandDeleteRecursive: "DeleteRecursive",
	CommandDefer:           "Defer",
}

func (k CommandKind) String() string {
	if int(k) < len(commandKindNames) {
		return commandKindNames[k]
	}
	return "Unknown"
}

// FlushPolicy decides what happens when a command references a stale entity.
type FlushPolicy uint8

const (
	// FlushSkip skips the offending command (or only its stale children) and
	// keeps applying the rest of the queue.
	FlushSkip FlushPolicy = iota
	// FlushAbort stops at the first stale reference and discards the rest of
	// the queue, releasing ids reserved by discarded spawns. Commands applied
	// before it stay applied.
	FlushAbort
)

// FlushReport describes the outcome of one Flush.
type FlushReport struct {
	// Applied counts commands that took effect, including a PushChildren
	// that attached only its live children.
	Applied   int
	Skipped   []*StaleEntityReference
	Discarded int
}

// Err combines every skipped reference into one error, or nil.
func (r FlushReport) Err() error {
	var err error
	for _, ref := range r.Skipped {
		err = multierr.Append(err, ref)
	}
	return err
}

// command is one deferred mutation. Which fields are meaningful depends on kind.
type command struct {
	kind       CommandKind
	entity     EntityId
	components []any
	children   []EntityId
	compType   reflect.Type
	bundles    iter.Seq[Bundle]
	fn         func()
}

// Commands provides a buffer for deferred ECS operations that are executed at the end of a frame.
// This prevents structural changes to the ECS storage during system execution.
// Commands are applied in the order they were queued.
type Commands struct {
	alloc  Allocator
	queue  []command
	policy FlushPolicy
	logger *zap.Logger
}

// NewCommands creates an empty command buffer that reserves entity ids from alloc.
func NewCommands(alloc Allocator) *Commands {
	return &Commands{
		alloc:  alloc,
		logger: zap.NewNop(),
	}
}

// SetPolicy sets how Flush treats stale entity references.
func (c *Commands) SetPolicy(policy FlushPolicy) {
	c.policy = policy
}

// SetLogger sets the logger used to report skipped commands.
func (c *Commands) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.queue)
}

// Reserve allocates an entity id immediately. Nothing is queued.
func (c *Commands) Reserve() EntityId {
	return c.alloc.Reserve()
}

// Defer queues a function execution operation.
func (c *Commands) Defer(fn func()) {
	c.queue = append(c.queue, command{kind: CommandDefer, fn: fn})
}

// Spawn reserves an entity id and queues spawning it with the given components.
func (c *Commands) Spawn(components ...any) EntityId {
	entity := c.alloc.Reserve()
	c.SpawnReserved(entity, components...)
	return entity
}

// SpawnReserved queues spawning an already reserved entity.
func (c *Commands) SpawnReserved(entity EntityId, components ...any) {
	c.queue = append(c.queue, command{kind: CommandSpawn, entity: entity, components: components})
}

// Delete queues an entity deletion operation.
func (c *Commands) Delete(entity EntityId) {
	c.queue = append(c.queue, command{kind: CommandDelete, entity: entity})
}

// DeleteRecursive queues deleting the entity and all of its descendants.
func (c *Commands) DeleteRecursive(entity EntityId) {
	c.queue = append(c.queue, command{kind: CommandDeleteRecursive, entity: entity})
}

// Insert queues setting one component on the entity.
func (c *Commands) Insert(entity EntityId, component any) {
	c.queue = append(c.queue, command{kind: CommandInsert, entity: entity, components: []any{component}})
}

// InsertBundle queues setting every component of the bundle on the entity.
func (c *Commands) InsertBundle(entity EntityId, components ...any) {
	c.queue = append(c.queue, command{kind: CommandInsertBundle, entity: entity, components: components})
}

// AddComponent queues a component addition operation.
func (c *Commands) AddComponent(entity EntityId, component any) {
	c.Insert(entity, component)
}

// RemoveComponent queues a component removal operation.
func (c *Commands) RemoveComponent(entity EntityId, compType reflect.Type) {
	c.queue = append(c.queue, command{kind: CommandRemoveComponent, entity: entity, compType: compType})
}

// AddChild queues attaching child to parent.
func (c *Commands) AddChild(parent, child EntityId) {
	c.queue = append(c.queue, command{kind: CommandAddChild, entity: parent, children: []EntityId{child}})
}

// PushChildren queues attaching existing entities to parent, in order.
func (c *Commands) PushChildren(parent EntityId, children ...EntityId) {
	c.queue = append(c.queue, command{kind: CommandPushChildren, entity: parent, children: children})
}

// SpawnChildBatch queues spawning one child of parent per bundle. The
// sequence is consumed at flush time and must be finite; its order is the
// order the children are attached in.
func (c *Commands) SpawnChildBatch(parent EntityId, bundles iter.Seq[Bundle]) {
	c.queue = append(c.queue, command{kind: CommandSpawnChildBatch, entity: parent, bundles: bundles})
}

// Discard drops every queued command and releases ids reserved for spawns
// that never happened.
func (c *Commands) Discard() {
	c.release(c.queue)
	c.reset()
}

// release frees the ids reserved by spawn commands that will never run.
func (c *Commands) release(pending []command) {
	for i := range pending {
		if pending[i].kind == CommandSpawn {
			c.alloc.Release(pending[i].entity)
		}
	}
}

// Flush applies all commands to the provided store in queue order, resetting
// the buffer state. With FlushSkip the returned error combines every skipped
// reference; with FlushAbort it is the reference that stopped the flush.
func (c *Commands) Flush(store Store) (FlushReport, error) {
	var report FlushReport
	defer c.reset()

	// Commands queued while flushing, e.g. by a Defer, run in this flush
	for i := 0; i < len(c.queue); i++ {
		applied, stale := c.apply(store, &c.queue[i])
		if applied {
			report.Applied++
		}
		if len(stale) == 0 {
			continue
		}

		for _, ref := range stale {
			c.logger.Warn("stale entity reference",
				zap.Stringer("entity", ref.Entity),
				zap.Stringer("command", ref.Command),
			)
		}
		report.Skipped = append(report.Skipped, stale...)

		if c.policy == FlushAbort {
			report.Discarded = len(c.queue) - i - 1
			c.release(c.queue[i+1:])
			c.logger.Debug("flush aborted",
				zap.Int("applied", report.Applied),
				zap.Int("discarded", report.Discarded),
			)
			return report, stale[0]
		}
	}

	c.logger.Debug("flushed commands",
		zap.Int("applied", report.Applied),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, report.Err()
}

// apply validates and applies one command. It reports whether the command
// took effect along with the stale references found. A command with stale
// references is not applied, except PushChildren under FlushSkip which
// attaches the live children and counts as applied.
func (c *Commands) apply(store Store, cmd *command) (bool, []*StaleEntityReference) {
	if cmd.kind == CommandDefer {
		cmd.fn()
		return true, nil
	}

	if !store.Alive(cmd.entity) {
		return false, []*StaleEntityReference{{Entity: cmd.entity, Command: cmd.kind}}
	}

	switch cmd.kind {
	case CommandSpawn:
		// An earlier attach may already have materialized the id
		if !store.SpawnReserved(cmd.entity, cmd.components...) {
			store.AddComponents(cmd.entity, cmd.components...)
		}
	case CommandInsert, CommandInsertBundle:
		store.AddComponents(cmd.entity, cmd.components...)
	case CommandRemoveComponent:
		store.RemoveComponent(cmd.entity, cmd.compType)
	case CommandDelete:
		store.Delete(cmd.entity)
	case CommandDeleteRecursive:
		store.DeleteRecursive(cmd.entity)
	case CommandAddChild, CommandPushChildren:
		live := cmd.children
		var stale []*StaleEntityReference
		for i, child := range cmd.children {
			if store.Alive(child) {
				if stale != nil {
					live = append(live, child)
				}
				continue
			}
			if stale == nil {
				live = append([]EntityId(nil), cmd.children[:i]...)
			}
			stale = append(stale, &StaleEntityReference{Entity: child, Command: cmd.kind})
		}
		if stale != nil && (cmd.kind == CommandAddChild || c.policy == FlushAbort) {
			return false, stale
		}
		store.AttachChildren(cmd.entity, live...)
		return true, stale
	case CommandSpawnChildBatch:
		ids := store.SpawnBatch(cmd.bundles)
		store.AttachChildren(cmd.entity, ids...)
	}
	return true, nil
}

func (c *Commands) reset() {
	clear(c.queue)
	c.queue = c.queue[:0]
}
