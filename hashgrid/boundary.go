package hashgrid

// Boundary describes an axis-aligned bounding volume by its center and its
// total size per axis. A 2D area is a volume with zero Z size.
type Boundary interface {
	Center() (x, y, z float64)
	Size() (x, y, z float64)
}

// Bounds is a plain-value Boundary.
type Bounds struct {
	CenterX, CenterY, CenterZ float64
	SizeX, SizeY, SizeZ       float64
}

func (b Bounds) Center() (x, y, z float64) {
	return b.CenterX, b.CenterY, b.CenterZ
}

func (b Bounds) Size() (x, y, z float64) {
	return b.SizeX, b.SizeY, b.SizeZ
}

// gridBounds is the grid's own snapshot of the construction boundary.
type gridBounds struct {
	center [3]float64
	size   [3]float64
}

func snapshotBounds(b Boundary) gridBounds {
	cx, cy, cz := b.Center()
	sx, sy, sz := b.Size()
	return gridBounds{
		center: [3]float64{cx, cy, cz},
		size:   [3]float64{sx, sy, sz},
	}
}

func (b gridBounds) min() [3]float64 {
	return [3]float64{
		b.center[0] - b.size[0]/2,
		b.center[1] - b.size[1]/2,
		b.center[2] - b.size[2]/2,
	}
}

func (b gridBounds) max() [3]float64 {
	return [3]float64{
		b.center[0] + b.size[0]/2,
		b.center[1] + b.size[1]/2,
		b.center[2] + b.size[2]/2,
	}
}

// inside is edge-inclusive on every axis.
func (b gridBounds) inside(x, y, z float64) bool {
	half := [3]float64{b.size[0] / 2, b.size[1] / 2, b.size[2] / 2}

	dx := abs(x - b.center[0])
	dy := abs(y - b.center[1])
	dz := abs(z - b.center[2])

	return dx <= half[0] && dy <= half[1] && dz <= half[2]
}

// clamp pushes the point to the nearest location on or inside the boundary,
// one axis at a time.
func (b gridBounds) clamp(x, y, z float64) (float64, float64, float64) {
	lo, hi := b.min(), b.max()

	return clampAxis(x, lo[0], hi[0]),
		clampAxis(y, lo[1], hi[1]),
		clampAxis(z, lo[2], hi[2])
}

func clampAxis(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
