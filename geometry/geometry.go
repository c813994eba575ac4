package geometry

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ErrTypeUnsupported is the error type returned when a predicate is asked
// about a shape pair it is not defined for, e.g. Point containing Point.
const ErrTypeUnsupported = "unsupported_geometry"

// Kind discriminates the closed set of shape variants.
type Kind uint8

const (
	KindPoint Kind = iota
	KindRect
	KindCircle
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindRect:
		return "rect"
	case KindCircle:
		return "circle"
	}
	return "unknown"
}

// Geometry is an immutable shape value: a zero-extent point, an axis-aligned
// rectangle described by center and size, or a circle described by center
// and radius. Min/max corners are derived on demand.
type Geometry struct {
	kind   Kind
	cx, cy float64
	w, h   float64
	radius float64
}

func Point(x, y float64) Geometry {
	return Geometry{kind: KindPoint, cx: x, cy: y}
}

func Rect(cx, cy, w, h float64) Geometry {
	return Geometry{kind: KindRect, cx: cx, cy: cy, w: math.Abs(w), h: math.Abs(h)}
}

func RectFromMinMax(minX, minY, maxX, maxY float64) Geometry {
	return Rect((minX+maxX)/2, (minY+maxY)/2, maxX-minX, maxY-minY)
}

func Circle(radius, cx, cy float64) Geometry {
	return Geometry{kind: KindCircle, cx: cx, cy: cy, radius: math.Abs(radius)}
}

func (g Geometry) Kind() Kind {
	return g.kind
}

func (g Geometry) Center() (x, y float64) {
	return g.cx, g.cy
}

func (g Geometry) Size() (w, h float64) {
	return g.w, g.h
}

func (g Geometry) Radius() float64 {
	return g.radius
}

// MinMax returns the corners of the shape's axis-aligned bounding box. A
// point collapses to itself, a circle to the square enclosing it.
func (g Geometry) MinMax() (minX, minY, maxX, maxY float64) {
	switch g.kind {
	case KindRect:
		return g.cx - g.w/2, g.cy - g.h/2, g.cx + g.w/2, g.cy + g.h/2
	case KindCircle:
		return g.cx - g.radius, g.cy - g.radius, g.cx + g.radius, g.cy + g.radius
	}
	return g.cx, g.cy, g.cx, g.cy
}

// Contains reports whether g fully contains other. Supported pairs are
// Rect over {Point, Rect, Circle} and Circle over {Point, Circle, Rect};
// anything else returns an ErrTypeUnsupported error and false.
func (g Geometry) Contains(other Geometry) (bool, error) {
	switch g.kind {
	case KindRect:
		minX, minY, maxX, maxY := g.MinMax()

		switch other.kind {
		case KindPoint:
			return other.cx >= minX && other.cx <= maxX &&
				other.cy >= minY && other.cy <= maxY, nil

		case KindRect, KindCircle:
			oMinX, oMinY, oMaxX, oMaxY := other.MinMax()
			return minX <= oMinX && minY <= oMinY &&
				maxX >= oMaxX && maxY >= oMaxY, nil
		}

	case KindCircle:
		switch other.kind {
		case KindPoint:
			return squaredDistance(g.cx, g.cy, other.cx, other.cy) <= g.radius*g.radius, nil

		case KindCircle:
			if g.radius <= other.radius {
				return false, nil
			}
			reach := g.radius - other.radius
			return squaredDistance(g.cx, g.cy, other.cx, other.cy) <= reach*reach, nil

		case KindRect:
			minX, minY, maxX, maxY := other.MinMax()
			r2 := g.radius * g.radius
			return squaredDistance(g.cx, g.cy, minX, minY) <= r2 &&
				squaredDistance(g.cx, g.cy, minX, maxY) <= r2 &&
				squaredDistance(g.cx, g.cy, maxX, minY) <= r2 &&
				squaredDistance(g.cx, g.cy, maxX, maxY) <= r2, nil
		}
	}

	return false, unsupported("contains", g.kind, other.kind)
}

// Intersects reports whether g and other overlap. Supported pairs are
// Rect/Rect, Circle/Circle and Rect/Circle either way around; points are
// not supported, use Contains instead.
func (g Geometry) Intersects(other Geometry) (bool, error) {
	switch g.kind {
	case KindRect:
		switch other.kind {
		case KindRect:
			minX, minY, maxX, maxY := g.MinMax()
			oMinX, oMinY, oMaxX, oMaxY := other.MinMax()
			return minX < oMaxX && maxX > oMinX &&
				minY < oMaxY && maxY > oMinY, nil

		case KindCircle:
			return rectTouchesCircle(g, other), nil
		}

	case KindCircle:
		switch other.kind {
		case KindCircle:
			reach := g.radius + other.radius
			return squaredDistance(g.cx, g.cy, other.cx, other.cy) <= reach*reach, nil

		case KindRect:
			return rectTouchesCircle(other, g), nil
		}
	}

	return false, unsupported("intersects", g.kind, other.kind)
}

// rectTouchesCircle clamps the circle center onto the rectangle and compares
// the squared distance to the squared radius.
func rectTouchesCircle(rect, circle Geometry) bool {
	minX, minY, maxX, maxY := rect.MinMax()
	closestX := math.Min(math.Max(circle.cx, minX), maxX)
	closestY := math.Min(math.Max(circle.cy, minY), maxY)
	return squaredDistance(circle.cx, circle.cy, closestX, closestY) <= circle.radius*circle.radius
}

func squaredDistance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx + dy*dy
}

func unsupported(op string, left, right Kind) error {
	return errors.New("unsupported geometry combination").
		WithType(ErrTypeUnsupported).
		WithTag("op", op).
		WithTag("left", left.String()).
		WithTag("right", right.String())
}
