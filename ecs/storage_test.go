package ecs_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/plus3/flatspawn/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIdEncoding(t *testing.T) {
	tests := []struct {
		index      uint32
		generation uint32
	}{
		{0, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{1, 0},
		{0x12345678, 0x9ABCDEF0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("index=%d,generation=%d", tt.index, tt.generation), func(t *testing.T) {
			id := ecs.NewEntityId(tt.index, tt.generation)
			assert.Equal(t, tt.index, id.Index())
			assert.Equal(t, tt.generation, id.Generation())
		})
	}
}

func TestSpawnEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(&Position{X: 1.0, Y: 2.0}, &Velocity{DX: 0.5, DY: 0.5}, Score(32))
	assert.NotEqual(t, ecs.EntityId(0), id)
	assert.True(t, storage.Alive(id))
	assert.True(t, storage.IsSpawned(id))
	assert.Equal(t, 1, storage.EntityCount())
}

func TestSpawnEmptyEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn()
	assert.True(t, storage.IsSpawned(id))
	assert.Equal(t, 1, storage.EntityCount())
	assert.Nil(t, storage.GetComponent(id, reflect.TypeOf(Position{})))
}

func TestGetComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(&Position{X: 3.0, Y: 4.0}, Name{Value: "Test Entity"})

	posComp := storage.GetComponent(id, reflect.TypeOf(Position{}))
	require.NotNil(t, posComp)
	pos := posComp.(*Position)
	assert.Equal(t, float32(3.0), pos.X)
	assert.Equal(t, float32(4.0), pos.Y)

	name := ecs.ReadComponent[Name](storage, id)
	require.NotNil(t, name)
	assert.Equal(t, "Test Entity", name.Value)

	assert.Nil(t, storage.GetComponent(id, reflect.TypeOf(Velocity{})))
	assert.Nil(t, ecs.ReadComponent[Velocity](storage, id))
}

func TestDeleteEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id1 := storage.Spawn(Position{X: 1, Y: 1})
	id2 := storage.Spawn(Position{X: 2, Y: 2})

	assert.True(t, storage.Delete(id1))
	assert.False(t, storage.Alive(id1))
	assert.Nil(t, storage.GetComponent(id1, reflect.TypeOf(Position{})))
	assert.False(t, storage.Delete(id1), "deleting twice reports a stale id")

	pos := ecs.ReadComponent[Position](storage, id2)
	require.NotNil(t, pos)
	assert.Equal(t, float32(2), pos.X)
	assert.Equal(t, 1, storage.EntityCount())
}

func TestDeletedIndexIsReusedWithNewGeneration(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	old := storage.Spawn(Position{X: 1})
	storage.Delete(old)
	reused := storage.Spawn(Position{X: 2})

	assert.Equal(t, old.Index(), reused.Index())
	assert.NotEqual(t, old, reused)
	assert.False(t, storage.Alive(old))
	assert.Nil(t, storage.GetComponent(old, reflect.TypeOf(Position{})), "stale id must not read the new entity")
}

func TestReserveAndRelease(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Reserve()
	assert.True(t, storage.Alive(id))
	assert.False(t, storage.IsSpawned(id))
	assert.Equal(t, 0, storage.EntityCount())

	assert.True(t, storage.SpawnReserved(id, Position{X: 5}))
	assert.True(t, storage.IsSpawned(id))
	assert.False(t, storage.SpawnReserved(id, Position{X: 6}), "already spawned")
	assert.False(t, storage.Release(id), "spawned ids are deleted, not released")

	unused := storage.Reserve()
	assert.True(t, storage.Release(unused))
	assert.False(t, storage.Alive(unused))
	assert.False(t, storage.SpawnReserved(unused, Position{}))
}

func TestHasComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Position{}, Tag("player"))
	assert.True(t, storage.HasComponent(id, reflect.TypeOf(Position{})))
	assert.True(t, storage.HasComponent(id, reflect.TypeOf(Tag(""))))
	assert.False(t, storage.HasComponent(id, reflect.TypeOf(Velocity{})))
}

func TestComponentMutation(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Health{Current: 10, Max: 10})
	ecs.ReadComponent[Health](storage, id).Current = 3

	assert.Equal(t, 3, ecs.ReadComponent[Health](storage, id).Current)
}

func TestAddComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Position{X: 1, Y: 2})
	assert.True(t, storage.AddComponent(id, Velocity{DX: 5, DY: 10}))

	// The id is stable across structural changes
	pos := ecs.ReadComponent[Position](storage, id)
	vel := ecs.ReadComponent[Velocity](storage, id)
	require.NotNil(t, pos)
	require.NotNil(t, vel)
	assert.Equal(t, float32(1), pos.X)
	assert.Equal(t, float32(5), vel.DX)

	assert.True(t, storage.AddComponent(id, Velocity{DX: 7}))
	assert.Equal(t, float32(7), ecs.ReadComponent[Velocity](storage, id).DX, "replaces existing value")
}

func TestAddComponentSpawnsReservedEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Reserve()
	assert.True(t, storage.AddComponents(id, Position{}, Name{Value: "late"}))
	assert.True(t, storage.IsSpawned(id))
	assert.Equal(t, 1, storage.EntityCount())
}

func TestRemoveComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Position{X: 1, Y: 2}, Velocity{DX: 5, DY: 10})
	assert.True(t, storage.RemoveComponent(id, reflect.TypeOf(Velocity{})))

	assert.Nil(t, ecs.ReadComponent[Velocity](storage, id))
	assert.NotNil(t, ecs.ReadComponent[Position](storage, id))

	// Removing the last component keeps the entity alive
	assert.True(t, storage.RemoveComponent(id, reflect.TypeOf(Position{})))
	assert.True(t, storage.IsSpawned(id))
}

func TestPrimitiveComponents(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Score(100), Tag("enemy"), int32(7), "plain")

	assert.Equal(t, Score(100), *ecs.ReadComponent[Score](storage, id))
	assert.Equal(t, Tag("enemy"), *ecs.ReadComponent[Tag](storage, id))
	assert.Equal(t, int32(7), *ecs.ReadComponent[int32](storage, id))
	assert.Equal(t, "plain", *ecs.ReadComponent[string](storage, id))
}

func TestSliceAndPointerFieldComponents(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	target := &Position{X: 9}
	id := storage.Spawn(Inventory{Items: []string{"sword"}}, RefComponent{Ref: target})

	inv := ecs.ReadComponent[Inventory](storage, id)
	inv.Items = append(inv.Items, "shield")
	assert.Equal(t, []string{"sword", "shield"}, ecs.ReadComponent[Inventory](storage, id).Items)
	assert.Same(t, target, ecs.ReadComponent[RefComponent](storage, id).Ref)
}

func TestInvalidComponentsPanic(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	assert.Panics(t, func() { storage.Spawn(map[string]int{}) })
	assert.Panics(t, func() { storage.Spawn(func() {}) })
	assert.Panics(t, func() { storage.Spawn(Velocity{}, 3.5) }, "float64 is not registered")
}

func TestLargeNumberOfEntities(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	ids := make([]ecs.EntityId, 0, 1000)
	for i := 0; i < 1000; i++ {
		ids = append(ids, storage.Spawn(Position{X: float32(i)}))
	}

	for i, id := range ids {
		assert.Equal(t, float32(i), ecs.ReadComponent[Position](storage, id).X)
	}
	assert.Equal(t, 1000, storage.EntityCount())
}

func TestAttachChildren(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	parent := storage.Spawn(X{})
	a := storage.Spawn(Y{})
	b := storage.Spawn(Y{})
	c := storage.Spawn(Y{})

	storage.AttachChildren(parent, a, b)
	storage.AttachChildren(parent, c, a)

	assert.Equal(t, []ecs.EntityId{a, b, c}, storage.Children(parent), "re-attaching keeps position")
	for _, child := range []ecs.EntityId{a, b, c} {
		got, ok := storage.Parent(child)
		assert.True(t, ok)
		assert.Equal(t, parent, got)
	}

	_, ok := storage.Parent(parent)
	assert.False(t, ok)
}

func TestAttachChildrenMovesBetweenParents(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	first := storage.Spawn(X{})
	second := storage.Spawn(X{})
	child := storage.Spawn(Y{})

	storage.AttachChildren(first, child)
	storage.AttachChildren(second, child)

	assert.Empty(t, storage.Children(first))
	assert.False(t, storage.HasComponent(first, reflect.TypeOf(ecs.Children{})), "empty Children is removed")
	assert.Equal(t, []ecs.EntityId{child}, storage.Children(second))

	got, _ := storage.Parent(child)
	assert.Equal(t, second, got)
}

func TestAttachChildrenIgnoresSelf(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	e := storage.Spawn(X{})
	storage.AttachChildren(e, e)

	assert.Empty(t, storage.Children(e))
	_, ok := storage.Parent(e)
	assert.False(t, ok)
}

func TestAttachChildrenRefusesAncestors(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	root := storage.Spawn(X{})
	a := storage.Spawn(Y{})
	b := storage.Spawn(Y{})
	storage.AttachChildren(root, a)
	storage.AttachChildren(a, b)

	storage.AttachChildren(a, root)
	storage.AttachChildren(b, root, a)
	storage.AddComponent(root, ecs.Parent{Id: b})

	_, ok := storage.Parent(root)
	assert.False(t, ok, "root stays a root")
	assert.Empty(t, storage.Children(b))
	assert.Equal(t, []ecs.EntityId{a}, storage.Children(root))
	assert.Equal(t, []ecs.EntityId{b}, storage.Children(a))

	assert.True(t, storage.DeleteRecursive(b))
	assert.True(t, storage.DeleteRecursive(root))
	assert.Equal(t, 0, storage.EntityCount())
}

func TestSpawnWithParentComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	parent := storage.Spawn(X{})
	child := storage.Spawn(Y{}, ecs.Parent{Id: parent})

	assert.Equal(t, []ecs.EntityId{child}, storage.Children(parent))
}

func TestDeleteDetachesHierarchy(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	root := storage.Spawn(X{})
	mid := storage.Spawn(Y{})
	leaf := storage.Spawn(Y{})
	sibling := storage.Spawn(Y{})
	storage.AttachChildren(root, mid, sibling)
	storage.AttachChildren(mid, leaf)

	storage.Delete(mid)

	assert.Equal(t, []ecs.EntityId{sibling}, storage.Children(root))
	_, ok := storage.Parent(leaf)
	assert.False(t, ok, "children of a deleted entity are orphaned")
	assert.True(t, storage.IsSpawned(leaf))
}

func TestDeleteRecursive(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	root := storage.Spawn(X{})
	mid := storage.Spawn(Y{})
	leaf := storage.Spawn(Y{})
	storage.AttachChildren(root, mid)
	storage.AttachChildren(mid, leaf)

	assert.True(t, storage.DeleteRecursive(root))
	assert.Equal(t, 0, storage.EntityCount())
	assert.False(t, storage.Alive(leaf))
}

func TestRemoveParentComponentDetaches(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	parent := storage.Spawn(X{})
	child := storage.Spawn(Y{})
	storage.AttachChildren(parent, child)

	storage.RemoveComponent(child, reflect.TypeOf(ecs.Parent{}))

	assert.Empty(t, storage.Children(parent))
	_, ok := storage.Parent(child)
	assert.False(t, ok)
}

func TestSingleton(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	root := storage.Spawn(X{})
	single := ecs.NewSingleton(storage, RootEntity{Id: root})
	require.NotNil(t, single.Get())
	assert.Equal(t, root, single.Get().Id)

	// A second accessor sees the same instance
	other := ecs.NewSingleton[RootEntity](storage)
	other.Get().Id = 0
	assert.Equal(t, ecs.EntityId(0), single.Get().Id)

	single.Set(RootEntity{Id: root})
	assert.Equal(t, root, other.Get().Id)

	storage.RemoveSingleton(reflect.TypeOf(RootEntity{}))
	assert.False(t, other.Exists())
}
