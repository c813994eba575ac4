// Package hashgrid implements a uniform spatial hash over a fixed boundary,
// split into cells per axis and stacked floors along Z. Entities hash to a
// cell by their position; lookups touch only the cells a query covers.
package hashgrid

import (
	"fmt"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const ErrTypeInvalidGrid = "invalid_grid"

// Entity is what the grid stores: an identifier plus a world position.
type Entity interface {
	ID() uint64
	Position() (x, y, z float64)
}

// Grid buckets entities by cell. It owns the entity values; buckets hold
// indices into the owned slice, so the per-cell maps stay pointer-free.
//
// Grid is not safe for concurrent mutation.
type Grid[E Entity] struct {
	bounds gridBounds
	wrap   bool

	xcells int
	ycells int
	levels int

	cellSizeX float64
	cellSizeY float64
	floorSize float64

	data   []E
	slots  map[uint64]int
	floors []map[uint64][]int
}

// New builds a grid over bounds with cellsX by cellsY cells per floor and
// the given number of floors, each clamped to at least 1. When wrap is true
// an out-of-bounds entity is clamped to the nearest boundary point instead
// of being dropped.
func New[E Entity](bounds Boundary, cellsX, cellsY, floorCount int, wrap bool) (*Grid[E], error) {
	sx, sy, sz := bounds.Size()
	if sx <= 0 || sy <= 0 || sz < 0 {
		return nil, errors.New("grid boundary size must be positive").
			WithType(ErrTypeInvalidGrid).
			WithTag("size_x", sx).
			WithTag("size_y", sy).
			WithTag("size_z", sz)
	}

	cellsX = max(cellsX, 1)
	cellsY = max(cellsY, 1)
	floorCount = max(floorCount, 1)

	g := &Grid[E]{
		bounds:    snapshotBounds(bounds),
		wrap:      wrap,
		xcells:    cellsX,
		ycells:    cellsY,
		levels:    floorCount,
		cellSizeX: sx / float64(cellsX),
		cellSizeY: sy / float64(cellsY),
		floorSize: math.Max(sz/float64(floorCount), 1),
		slots:     make(map[uint64]int),
		floors:    make([]map[uint64][]int, floorCount),
	}
	for i := range g.floors {
		g.floors[i] = make(map[uint64][]int)
	}
	return g, nil
}

// Insert places the entity in the cell under its position. An entity outside
// the boundary is clamped in when wrap is on, otherwise silently dropped.
// Re-inserting an id moves the entity to its new cell.
func (g *Grid[E]) Insert(e E) bool {
	x, y, z, ok := g.admit(e)
	if !ok {
		return false
	}

	key, floor := g.locate(x, y, z)

	if slot, exists := g.slots[e.ID()]; exists {
		g.unbucket(slot)
		g.data[slot] = e
		g.bucket(key, floor, slot)
		return true
	}

	slot := len(g.data)
	g.data = append(g.data, e)
	g.slots[e.ID()] = slot
	g.bucket(key, floor, slot)
	return true
}

// Update re-places every entity in the batch, applying the same boundary
// policy as Insert.
func (g *Grid[E]) Update(batch []E) int {
	placed := 0
	for _, e := range batch {
		if g.Insert(e) {
			placed++
		}
	}
	return placed
}

// Query answers the query against the grid. Out-of-range coordinates are
// clamped for reads; a read never mutates the grid.
func (g *Grid[E]) Query(q Query) Result[E] {
	result := Result[E]{Query: q}

	switch q.Kind {
	case Single:
		x, y, z := g.bounds.clamp(q.X, q.Y, q.Z)
		key, floor := g.locate(x, y, z)
		if slots, ok := g.floors[floor][key]; ok {
			result.Cells = append(result.Cells, key)
			for _, slot := range slots {
				result.Data = append(result.Data, g.data[slot])
			}
		}

	case Search:
		g.scanNeighborhood(q, func(key uint64, slots []int) bool {
			for _, slot := range slots {
				if g.data[slot].ID() == q.TargetID {
					result.Cells = append(result.Cells, key)
					result.Data = append(result.Data, g.data[slot])
					return false
				}
			}
			return true
		})

	case Neighbour:
		g.scanNeighborhood(q, func(key uint64, slots []int) bool {
			result.Cells = append(result.Cells, key)
			for _, slot := range slots {
				result.Data = append(result.Data, g.data[slot])
			}
			return true
		})
	}

	return result
}

// scanNeighborhood visits every occupied cell within the relevance-scaled
// ranges around the query point, stopping early when visit returns false.
// The scan radius per axis is the cell count scaled by the query radius,
// rounded up, and never less than one cell.
func (g *Grid[E]) scanNeighborhood(q Query, visit func(key uint64, slots []int) bool) {
	radius := q.Radius.Value()
	rx := scanRadius(g.xcells, radius)
	ry := scanRadius(g.ycells, radius)
	rz := scanRadius(g.levels, radius)

	x, y, z := g.bounds.clamp(q.X, q.Y, q.Z)
	cx, cy, floor := g.cellCoordinates(x, y, z)

	x0, x1 := max(cx-rx, 0), min(cx+rx, g.xcells-1)
	y0, y1 := max(cy-ry, 0), min(cy+ry, g.ycells-1)
	z0, z1 := max(floor-rz, 0), min(floor+rz, g.levels-1)

	for f := z0; f <= z1; f++ {
		for kx := x0; kx <= x1; kx++ {
			for ky := y0; ky <= y1; ky++ {
				key := Key(uint32(kx), uint32(ky))
				slots, ok := g.floors[f][key]
				if !ok {
					continue
				}
				if !visit(key, slots) {
					return
				}
			}
		}
	}
}

func scanRadius(cells int, radius float64) int {
	r := int(math.Ceil(float64(cells) * radius))
	return max(r, 1)
}

// admit applies the boundary policy and returns the coordinates to place
// the entity at.
func (g *Grid[E]) admit(e E) (x, y, z float64, ok bool) {
	x, y, z = e.Position()
	if g.bounds.inside(x, y, z) {
		return x, y, z, true
	}
	if !g.wrap {
		return 0, 0, 0, false
	}
	x, y, z = g.bounds.clamp(x, y, z)
	return x, y, z, true
}

func (g *Grid[E]) locate(x, y, z float64) (key uint64, floor int) {
	cx, cy, floor := g.cellCoordinates(x, y, z)
	return Key(uint32(cx), uint32(cy)), floor
}

// cellCoordinates maps a world position to cell coordinates relative to the
// boundary minimum. The max edge of the last cell is inclusive, and the
// floor index stays within the configured floors.
func (g *Grid[E]) cellCoordinates(x, y, z float64) (cx, cy, floor int) {
	lo := g.bounds.min()

	cx = int(math.Floor((x - lo[0]) / g.cellSizeX))
	cy = int(math.Floor((y - lo[1]) / g.cellSizeY))
	floor = int(math.Floor((z - lo[2]) / g.floorSize))

	cx = min(max(cx, 0), g.xcells-1)
	cy = min(max(cy, 0), g.ycells-1)
	floor = min(max(floor, 0), g.levels-1)
	return cx, cy, floor
}

// Key pairs two cell coordinates into one hash via the Cantor pairing
// function, ((k1+k2)(k1+k2+1))/2 + k2, computed in uint64 so the
// intermediate product stays exact for any practical cell count.
func Key(k1, k2 uint32) uint64 {
	s := uint64(k1) + uint64(k2)
	return (s*(s+1))/2 + uint64(k2)
}

func (g *Grid[E]) bucket(key uint64, floor, slot int) {
	g.floors[floor][key] = append(g.floors[floor][key], slot)
}

// unbucket removes the slot from whatever cell currently lists it.
func (g *Grid[E]) unbucket(slot int) {
	x, y, z := g.data[slot].Position()
	x, y, z = g.bounds.clamp(x, y, z)
	key, floor := g.locate(x, y, z)

	slots := g.floors[floor][key]
	for i, s := range slots {
		if s == slot {
			slots[i] = slots[len(slots)-1]
			g.floors[floor][key] = slots[:len(slots)-1]
			break
		}
	}
	if len(g.floors[floor][key]) == 0 {
		delete(g.floors[floor], key)
	}
}

// Len is the number of stored entities.
func (g *Grid[E]) Len() int {
	return len(g.slots)
}

// Clear drops every entity but keeps the grid configuration.
func (g *Grid[E]) Clear() {
	g.data = g.data[:0]
	g.slots = make(map[uint64]int)
	for i := range g.floors {
		g.floors[i] = make(map[uint64][]int)
	}
}

func (g *Grid[E]) CellSizeX() float64 { return g.cellSizeX }
func (g *Grid[E]) CellSizeY() float64 { return g.cellSizeY }
func (g *Grid[E]) FloorSize() float64 { return g.floorSize }
func (g *Grid[E]) XCells() int        { return g.xcells }
func (g *Grid[E]) YCells() int        { return g.ycells }
func (g *Grid[E]) Floors() int        { return g.levels }

// BoundaryMin returns the lowest corner of the grid boundary.
func (g *Grid[E]) BoundaryMin() (x, y, z float64) {
	lo := g.bounds.min()
	return lo[0], lo[1], lo[2]
}

// BoundaryMax returns the highest corner of the grid boundary.
func (g *Grid[E]) BoundaryMax() (x, y, z float64) {
	hi := g.bounds.max()
	return hi[0], hi[1], hi[2]
}

// Stats summarizes grid occupancy per floor, for diagnostics endpoints.
type Stats struct {
	Entities  int          `json:"entities"`
	Floors    int          `json:"floors"`
	CellSizeX float64      `json:"cell_size_x"`
	CellSizeY float64      `json:"cell_size_y"`
	FloorSize float64      `json:"floor_size"`
	PerFloor  []FloorStats `json:"per_floor"`
}

type FloorStats struct {
	Floor         int `json:"floor"`
	OccupiedCells int `json:"occupied_cells"`
	Entities      int `json:"entities"`
}

func (g *Grid[E]) Stats() Stats {
	s := Stats{
		Entities:  g.Len(),
		Floors:    g.levels,
		CellSizeX: g.cellSizeX,
		CellSizeY: g.cellSizeY,
		FloorSize: g.floorSize,
		PerFloor:  make([]FloorStats, g.levels),
	}
	for i, cells := range g.floors {
		fs := FloorStats{Floor: i, OccupiedCells: len(cells)}
		for _, slots := range cells {
			fs.Entities += len(slots)
		}
		s.PerFloor[i] = fs
	}
	return s
}

func (g *Grid[E]) String() string {
	c := g.bounds.center
	sz := g.bounds.size
	return fmt.Sprintf(
		"hashgrid[floors=%d floor_size=%g cells=%dx%d cell_size=%gx%g center=(%g, %g, %g) size=(%g, %g, %g) entities=%d]",
		g.levels, g.floorSize, g.xcells, g.ycells, g.cellSizeX, g.cellSizeY,
		c[0], c[1], c[2], sz[0], sz[1], sz[2], g.Len(),
	)
}
