// Package geom provides the integer geometry used throughout pinaccess.
//
// All coordinates are database units (DBU). Rectangles are closed on every
// side, so a zero-width rectangle is a segment and a zero-area rectangle is a
// point; both are valid. Use [Rect.Empty] to detect inverted rectangles.
package geom

import "fmt"

// Point is a location in database units.
type Point struct {
	X, Y int
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point { return Point{X: x, Y: y} }

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) String() string { return fmt.Sprintf("(%d %d)", p.X, p.Y) }

// Manhattan returns the L1 distance between p and q.
func Manhattan(p, q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Rect is an axis-aligned rectangle with inclusive bounds.
type Rect struct {
	XLo, YLo, XHi, YHi int
}

// R builds a normalized rectangle from two corners.
func R(x1, y1, x2, y2 int) Rect {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Rect{x1, y1, x2, y2}
}

// RectAround returns the square of half-size h centred on p.
func RectAround(p Point, h int) Rect {
	return Rect{p.X - h, p.Y - h, p.X + h, p.Y + h}
}

func (r Rect) Width() int  { return r.XHi - r.XLo }
func (r Rect) Height() int { return r.YHi - r.YLo }

// Area returns the rectangle area, 0 for degenerate or empty rectangles.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Empty reports whether the rectangle is inverted on either axis.
func (r Rect) Empty() bool { return r.XLo > r.XHi || r.YLo > r.YHi }

// Center returns the integer midpoint, rounded toward negative infinity.
func (r Rect) Center() Point {
	return Point{floorDiv(r.XLo+r.XHi, 2), floorDiv(r.YLo+r.YHi, 2)}
}

// Contains reports whether p lies inside r or on its boundary.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.XLo && p.X <= r.XHi && p.Y >= r.YLo && p.Y <= r.YHi
}

// ContainsRect reports whether o lies entirely within r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.XLo >= r.XLo && o.XHi <= r.XHi && o.YLo >= r.YLo && o.YHi <= r.YHi
}

// Intersects reports whether r and o share at least one point.
func (r Rect) Intersects(o Rect) bool {
	return r.XLo <= o.XHi && o.XLo <= r.XHi && r.YLo <= o.YHi && o.YLo <= r.YHi
}

// Overlaps reports whether r and o share a region of positive area.
func (r Rect) Overlaps(o Rect) bool {
	return r.XLo < o.XHi && o.XLo < r.XHi && r.YLo < o.YHi && o.YLo < r.YHi
}

// Intersect returns the common region. The result is Empty when the
// rectangles are disjoint.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{max(r.XLo, o.XLo), max(r.YLo, o.YLo), min(r.XHi, o.XHi), min(r.YHi, o.YHi)}
}

// Union returns the bounding box of r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{min(r.XLo, o.XLo), min(r.YLo, o.YLo), max(r.XHi, o.XHi), max(r.YHi, o.YHi)}
}

// Bloat grows r by d on every side. Negative d shrinks it.
func (r Rect) Bloat(d int) Rect {
	return Rect{r.XLo - d, r.YLo - d, r.XHi + d, r.YHi + d}
}

// Translate moves r by p.
func (r Rect) Translate(p Point) Rect {
	return Rect{r.XLo + p.X, r.YLo + p.Y, r.XHi + p.X, r.YHi + p.Y}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d %d %d %d]", r.XLo, r.YLo, r.XHi, r.YHi)
}

// Gap returns the per-axis separation between r and o: zero on an axis where
// their projections overlap or touch.
func Gap(r, o Rect) (dx, dy int) {
	switch {
	case o.XLo > r.XHi:
		dx = o.XLo - r.XHi
	case r.XLo > o.XHi:
		dx = r.XLo - o.XHi
	}
	switch {
	case o.YLo > r.YHi:
		dy = o.YLo - r.YHi
	case r.YLo > o.YHi:
		dy = r.YLo - o.YHi
	}
	return dx, dy
}

// PointRectDist is the Manhattan distance from p to the nearest point of r.
func PointRectDist(p Point, r Rect) int {
	dx, dy := Gap(r, Rect{p.X, p.Y, p.X, p.Y})
	return dx + dy
}

// BBox returns the bounding box of rects. ok is false for an empty input.
func BBox(rects []Rect) (box Rect, ok bool) {
	for i, r := range rects {
		if i == 0 {
			box = r
			continue
		}
		box = box.Union(r)
	}
	return box, len(rects) > 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Mod returns a mod m in [0, m). It panics if m is not positive.
func Mod(a, m int) int {
	if m <= 0 {
		panic("geom: non-positive modulus")
	}
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
