// Package quadtree implements an adaptive spatial subdivision over 2D
// entities. Nodes hold at most their capacity before splitting into four
// quadrants; entities whose bounds straddle more than one quadrant are
// retained at their lowest fully-containing ancestor.
package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"

	"github.com/SyedAnees21/spatial/geometry"
)

const (
	// MaxQuadrants is the branching factor of every internal node.
	MaxQuadrants = 4

	// MaxDepth caps subdivision. A node at MaxDepth never splits and
	// retains items beyond capacity, which keeps clusters of coincident
	// entities from recursing forever.
	MaxDepth = 32
)

// Error types for the closed construction/insert error set, checkable with
// errors.IsType.
const (
	ErrTypeInvalidBounds   = "invalid_bounds"
	ErrTypeInvalidCapacity = "invalid_capacity"
	ErrTypeOutOfBounds     = "out_of_bounds"
)

// Tree owns one EntityMap and a root node sharing the same capacity and
// boundary. It is not safe for concurrent mutation; callers needing
// concurrency impose their own locking.
type Tree struct {
	entities *EntityMap
	root     *node
}

// New creates a tree over the rectangle spanned by (minX,minY)-(maxX,maxY).
// Capacity is the per-node item budget before subdivision.
func New(minX, minY, maxX, maxY float64, capacity int) (*Tree, error) {
	if capacity <= 0 {
		return nil, errors.New("tree capacity must be positive").
			WithType(ErrTypeInvalidCapacity).
			WithTag("capacity", capacity)
	}
	if minX >= maxX || minY >= maxY {
		return nil, errors.New("tree boundary is degenerate").
			WithType(ErrTypeInvalidBounds).
			WithTag("min_x", minX).
			WithTag("min_y", minY).
			WithTag("max_x", maxX).
			WithTag("max_y", maxY)
	}

	return &Tree{
		entities: NewEntityMap(capacity),
		root:     newNode(geometry.RectFromMinMax(minX, minY, maxX, maxY), capacity, 0),
	}, nil
}

// Insert places the entity in the tree. It fails with ErrTypeOutOfBounds
// when the entity's bounds are not contained in the root boundary; once
// containment holds, placement always succeeds. Inserting an id that is
// already indexed moves the entity: its previous placement is removed
// first, so streaming position updates never duplicate ids in the nodes.
func (t *Tree) Insert(e Entity) (bool, error) {
	inside, err := t.root.boundary.Contains(e.Bounds())
	if err != nil {
		return false, err
	}
	if !inside {
		return false, errors.New("entity bounds outside the tree boundary").
			WithType(ErrTypeOutOfBounds).
			WithTag("entity_id", uint64(e.ID()))
	}

	t.Remove(e.ID())
	t.entities.Insert(e)
	return t.root.insert(e.ID(), t.entities, 0), nil
}

// Remove deletes the entity from the tree and returns it. The recorded leaf
// path pinpoints the node holding the id, so removal walks one branch
// instead of searching the tree. Nodes are never merged back.
func (t *Tree) Remove(id EntityID) (Entity, bool) {
	ent := t.entities.entryOf(id)
	if ent == nil {
		return nil, false
	}

	n := t.root
	for _, q := range ent.path.PeekAll()[1:] {
		n = n.children[q]
	}
	n.removeItem(id)

	return t.entities.Remove(id)
}

// Levels is 1 + the maximum node depth anywhere in the tree.
func (t *Tree) Levels() int {
	return t.root.maxSubtreeDepth() + 1
}

// Len is the number of live entities.
func (t *Tree) Len() int {
	return t.entities.Len()
}

// Boundary returns the fixed root rectangle.
func (t *Tree) Boundary() geometry.Geometry {
	return t.root.boundary
}

// EntityPath returns the decoded quadrant choices recorded for the entity,
// for diagnostics and visualization.
func (t *Tree) EntityPath(id EntityID) ([]uint8, bool) {
	return t.entities.Path(id)
}

// Clear drains every entity out of the map and the nodes, returning them,
// and replaces the root with a fresh node of the same boundary and capacity.
func (t *Tree) Clear() []Entity {
	out := t.entities.Drain()
	t.root = newNode(t.root.boundary, t.root.capacity, 0)
	return out
}

// Query collects the entities matching the geometry: containment for a
// Point query, intersection for anything else.
func (t *Tree) Query(q geometry.Geometry) []Entity {
	return t.QueryAndFilter(q, nil)
}

// QueryAndFilter is Query with an extra predicate applied to each matching
// entity before it is collected. A nil predicate accepts everything.
func (t *Tree) QueryAndFilter(q geometry.Geometry, predicate func(geometry.Geometry, Entity) bool) []Entity {
	var ids []EntityID
	t.root.query(q, t.entities, &ids, predicate)

	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := t.entities.Get(id); ok {
			out = append(out, e)
		}
	}
	return out
}

type node struct {
	depth    int
	capacity int
	items    []EntityID
	boundary geometry.Geometry
	children []*node // nil for a leaf, MaxQuadrants entries otherwise
}

func newNode(boundary geometry.Geometry, capacity, depth int) *node {
	return &node{
		depth:    depth,
		capacity: capacity,
		items:    make([]EntityID, 0, capacity),
		boundary: boundary,
	}
}

func (n *node) leaf() bool {
	return n.children == nil
}

func (n *node) removeItem(id EntityID) {
	for i, item := range n.items {
		if item == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return
		}
	}
}

// insert places the entity at or below this node. quadrant is the child
// index chosen to reach this node; it is appended to the entity's path the
// moment the boundary accepts the entity.
func (n *node) insert(id EntityID, m *EntityMap, quadrant uint8) bool {
	ent := m.entryOf(id)

	inside, _ := n.boundary.Contains(ent.entity.Bounds())
	if !inside {
		return false
	}

	ent.path.Push(quadrant)

	if len(n.items) < n.capacity {
		n.items = append(n.items, id)
		return true
	}

	if n.leaf() {
		if n.depth >= MaxDepth {
			// Depth guard: force-retain instead of splitting further.
			n.items = append(n.items, id)
			return true
		}
		n.subdivide()
	}

	// Redistribute everything held here plus the newcomer. Whatever fits in
	// no single quadrant stays at this node, uncapped.
	all := append(n.items, id)
	n.items = make([]EntityID, 0, n.capacity)

	for _, id := range all {
		placed := false
		for q, child := range n.children {
			if child.insert(id, m, uint8(q)) {
				placed = true
				break
			}
		}
		if !placed {
			n.items = append(n.items, id)
		}
	}

	return true
}

// subdivide quarters the node rectangle around its center. Child order is
// NE, NW, SE, SW and is what the recorded path symbols refer to.
func (n *node) subdivide() {
	cx, cy := n.boundary.Center()
	minX, minY, maxX, maxY := n.boundary.MinMax()
	depth := n.depth + 1

	n.children = []*node{
		newNode(geometry.RectFromMinMax(cx, cy, maxX, maxY), n.capacity, depth),
		newNode(geometry.RectFromMinMax(minX, cy, cx, maxY), n.capacity, depth),
		newNode(geometry.RectFromMinMax(cx, minY, maxX, cy), n.capacity, depth),
		newNode(geometry.RectFromMinMax(minX, minY, cx, cy), n.capacity, depth),
	}
}

func (n *node) maxSubtreeDepth() int {
	deepest := n.depth
	for _, child := range n.children {
		if d := child.maxSubtreeDepth(); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// query visits every subtree whose boundary qualifies against q. One
// geometry can overlap several quadrants, so qualifying siblings are all
// visited; a non-qualifying node prunes its whole subtree.
func (n *node) query(q geometry.Geometry, m *EntityMap, collector *[]EntityID, predicate func(geometry.Geometry, Entity) bool) {
	var qualifies bool
	if q.Kind() == geometry.KindPoint {
		qualifies, _ = n.boundary.Contains(q)
	} else {
		qualifies, _ = n.boundary.Intersects(q)
	}
	if !qualifies {
		return
	}

	for _, id := range n.items {
		e, ok := m.Get(id)
		if !ok {
			continue
		}

		var hit bool
		if q.Kind() == geometry.KindPoint {
			hit = e.ContainsGeometry(q)
		} else {
			hit = e.IntersectsGeometry(q)
		}

		if hit && (predicate == nil || predicate(q, e)) {
			*collector = append(*collector, id)
		}
	}

	for _, child := range n.children {
		child.query(q, m, collector, predicate)
	}
}
