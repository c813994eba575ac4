package quadtree

import (
	"github.com/SyedAnees21/spatial/base4"
	"github.com/SyedAnees21/spatial/geometry"
)

// EntityID is an opaque caller-supplied identifier, stable for the entity's
// lifetime in the index.
type EntityID uint64

// Entity is the capability an inserted value must expose. The tree stores
// the entity by value and never mutates it; queries hand the stored value
// back.
type Entity interface {
	ID() EntityID
	Position() (x, y float64)
	Bounds() geometry.Geometry
	ContainsGeometry(geometry.Geometry) bool
	IntersectsGeometry(geometry.Geometry) bool
}

type entry struct {
	entity Entity
	path   base4.Int
}

// EntityMap owns the set of inserted entities and, for each, the leaf path:
// the quadrant index chosen at every level while descending to the node
// that currently holds it.
type EntityMap struct {
	entries map[EntityID]*entry
}

func NewEntityMap(capacity int) *EntityMap {
	return &EntityMap{entries: make(map[EntityID]*entry, capacity)}
}

// Insert registers the entity with an empty path, replacing any previous
// entry under the same id.
func (m *EntityMap) Insert(e Entity) {
	m.entries[e.ID()] = &entry{entity: e}
}

func (m *EntityMap) Get(id EntityID) (Entity, bool) {
	ent, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return ent.entity, true
}

// Path returns the decoded leaf path of the entity, oldest quadrant choice
// first.
func (m *EntityMap) Path(id EntityID) ([]uint8, bool) {
	ent, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return ent.path.PeekAll(), true
}

// Remove deletes the entry and returns the stored entity.
func (m *EntityMap) Remove(id EntityID) (Entity, bool) {
	ent, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	delete(m.entries, id)
	return ent.entity, true
}

func (m *EntityMap) Len() int {
	return len(m.entries)
}

// Drain removes and returns all stored entities.
func (m *EntityMap) Drain() []Entity {
	out := make([]Entity, 0, len(m.entries))
	for id, ent := range m.entries {
		out = append(out, ent.entity)
		delete(m.entries, id)
	}
	return out
}

func (m *EntityMap) entryOf(id EntityID) *entry {
	return m.entries[id]
}
