package server

import (
	"sync"

	"github.com/SyedAnees21/spatial/geometry"
	"github.com/SyedAnees21/spatial/quadtree"
)

// Entity is the wire representation of an indexed object: an id, a 3D
// position and a 2D footprint centered on it. The quadtree indexes the
// footprint, the hash grid indexes the position.
type Entity struct {
	EntityID uint64  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

func (e Entity) ID() quadtree.EntityID {
	return quadtree.EntityID(e.EntityID)
}

func (e Entity) Position() (x, y float64) {
	return e.X, e.Y
}

func (e Entity) Bounds() geometry.Geometry {
	return geometry.Rect(e.X, e.Y, e.Width, e.Height)
}

func (e Entity) ContainsGeometry(g geometry.Geometry) bool {
	ok, _ := e.Bounds().Contains(g)
	return ok
}

func (e Entity) IntersectsGeometry(g geometry.Geometry) bool {
	ok, _ := e.Bounds().Intersects(g)
	return ok
}

// gridEntity projects an Entity onto the hash grid's view of it.
type gridEntity struct {
	Entity
}

func (e gridEntity) ID() uint64 {
	return e.EntityID
}

func (e gridEntity) Position() (x, y, z float64) {
	return e.X, e.Y, e.Z
}

// A sequential id generator for entities created over realtime connections.
type sequentialIDGenerator struct {
	mutex       sync.Mutex
	currentID   uint64
	reusableIDs map[uint64]struct{}
}

// New returns a sequential id, reusing released ids first.
func (g *sequentialIDGenerator) New() uint64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for id := range g.reusableIDs {
		delete(g.reusableIDs, id)
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse marks the given id as reusable.
func (g *sequentialIDGenerator) Reuse(id uint64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.reusableIDs == nil {
		g.reusableIDs = make(map[uint64]struct{})
	}

	g.reusableIDs[id] = struct{}{}
}
