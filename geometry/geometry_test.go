package geometry

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	point1 := Point(1, 2)
	point2 := Point(-0.5, 0.5)
	circle := Circle(2, 1, 0)
	aabb := Rect(0, 0, 10, 10)
	bigCircle := Circle(10, 0, 0)
	bigRect := Rect(0, 0, 20, 20)

	cases := []struct {
		name  string
		outer Geometry
		inner Geometry
		want  bool
	}{
		{"circle holds a point on its edge", circle, point1, true},
		{"circle holds an interior point", circle, point2, true},
		{"rect holds interior points", aabb, point1, true},
		{"rect holds interior points again", aabb, point2, true},
		{"rect holds a nested circle", aabb, circle, true},
		{"big circle holds the rect", bigCircle, aabb, true},
		{"big circle holds points", bigCircle, point1, true},
		{"big circle holds a smaller circle", bigCircle, circle, true},
		{"small circle cannot hold the rect", circle, aabb, false},
		{"smaller circle cannot hold a bigger one", circle, bigCircle, false},
		{"smaller rect cannot hold a bigger one", aabb, bigRect, false},
		{"bigger rect holds the smaller one", bigRect, aabb, true},
		{"equal circles do not contain each other", circle, Circle(2, 1, 0), false},
		{"rect contains itself", aabb, Rect(0, 0, 10, 10), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.outer.Contains(c.inner)
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}

	t.Run("unsupported pairs return a typed error", func(t *testing.T) {
		pairs := [][2]Geometry{
			{point1, point2},
			{point1, aabb},
			{point1, circle},
		}
		for _, p := range pairs {
			ok, err := p[0].Contains(p[1])
			require.False(t, ok)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeUnsupported))
		}
	})
}

func TestIntersects(t *testing.T) {
	t.Run("overlapping circles, both directions", func(t *testing.T) {
		circle1 := Circle(2, 0, 0)
		circle2 := Circle(2, 1, 0)

		for _, pair := range [][2]Geometry{{circle1, circle2}, {circle2, circle1}} {
			got, err := pair[0].Intersects(pair[1])
			require.NoError(t, err)
			require.True(t, got)
		}
	})

	t.Run("overlapping rects, both directions", func(t *testing.T) {
		rect1 := Rect(0, 0, 4, 4)
		rect2 := Rect(3, 3, 4, 4)

		for _, pair := range [][2]Geometry{{rect1, rect2}, {rect2, rect1}} {
			got, err := pair[0].Intersects(pair[1])
			require.NoError(t, err)
			require.True(t, got)
		}
	})

	t.Run("rect and circle touching at an edge, both directions", func(t *testing.T) {
		circle := Circle(1, 2, 0)
		rect := Rect(0, 0, 2, 2)

		for _, pair := range [][2]Geometry{{rect, circle}, {circle, rect}} {
			got, err := pair[0].Intersects(pair[1])
			require.NoError(t, err)
			require.True(t, got)
		}
	})

	t.Run("rects sharing only an edge do not intersect", func(t *testing.T) {
		rect1 := Rect(0, 0, 2, 2)
		rect2 := Rect(2, 0, 2, 2)

		got, err := rect1.Intersects(rect2)
		require.NoError(t, err)
		require.False(t, got)
	})

	t.Run("disjoint shapes", func(t *testing.T) {
		got, err := Circle(1, 0, 0).Intersects(Circle(1, 10, 0))
		require.NoError(t, err)
		require.False(t, got)

		got, err = Rect(0, 0, 2, 2).Intersects(Rect(10, 10, 2, 2))
		require.NoError(t, err)
		require.False(t, got)
	})

	t.Run("points are unsupported", func(t *testing.T) {
		point := Point(0, 0)
		others := []Geometry{Point(1, 1), Rect(0, 0, 2, 2), Circle(1, 0, 0)}

		for _, other := range others {
			ok, err := point.Intersects(other)
			require.False(t, ok)
			require.True(t, errors.IsType(err, ErrTypeUnsupported))

			ok, err = other.Intersects(point)
			require.False(t, ok)
			require.True(t, errors.IsType(err, ErrTypeUnsupported))
		}
	})
}

func TestContainsImpliesIntersects(t *testing.T) {
	outer := Rect(0, 0, 20, 20)
	shapes := []Geometry{
		Rect(1, 1, 4, 4),
		Circle(3, -2, 2),
		Rect(0, 0, 20, 20),
	}

	for _, inner := range shapes {
		contained, err := outer.Contains(inner)
		require.NoError(t, err)
		require.True(t, contained)

		overlaps, err := outer.Intersects(inner)
		require.NoError(t, err)
		require.True(t, overlaps)
	}
}

func TestGeometryAccessors(t *testing.T) {
	t.Run("rect normalizes negative sizes", func(t *testing.T) {
		r := Rect(1, 2, -4, -6)
		w, h := r.Size()
		require.Equal(t, 4.0, w)
		require.Equal(t, 6.0, h)
	})

	t.Run("rect from corners", func(t *testing.T) {
		r := RectFromMinMax(-2, -3, 4, 5)
		cx, cy := r.Center()
		require.Equal(t, 1.0, cx)
		require.Equal(t, 1.0, cy)

		minX, minY, maxX, maxY := r.MinMax()
		require.Equal(t, -2.0, minX)
		require.Equal(t, -3.0, minY)
		require.Equal(t, 4.0, maxX)
		require.Equal(t, 5.0, maxY)
	})

	t.Run("circle bounding box", func(t *testing.T) {
		c := Circle(2, 1, 1)
		minX, minY, maxX, maxY := c.MinMax()
		require.Equal(t, -1.0, minX)
		require.Equal(t, -1.0, minY)
		require.Equal(t, 3.0, maxX)
		require.Equal(t, 3.0, maxY)
	})

	t.Run("point collapses to itself", func(t *testing.T) {
		p := Point(3, -4)
		minX, minY, maxX, maxY := p.MinMax()
		require.Equal(t, 3.0, minX)
		require.Equal(t, -4.0, minY)
		require.Equal(t, 3.0, maxX)
		require.Equal(t, -4.0, maxY)
		require.Equal(t, KindPoint, p.Kind())
	})
}
