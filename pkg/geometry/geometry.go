// Package geometry provides the rectangle and scale math shared by the
// selection, crop, and capture pipeline.
package geometry

import (
	"image"
	"math"
)

// Point is a viewport-relative position in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect is a viewport-relative rectangle. W and H are never negative.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FromCorners builds a normalized Rect from two opposite corners.
func FromCorners(a, b Point) Rect {
	x0, x1 := a.X, b.X
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	y0, y1 := a.Y, b.Y
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Size returns the rectangle's dimensions.
func (r Rect) Size() Size {
	return Size{W: r.W, H: r.H}
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// ClampInto translates r so it fits inside bounds, without resizing. A
// rectangle larger than bounds is pinned to the origin edge.
func (r Rect) ClampInto(bounds Size) Rect {
	out := r
	if out.X < 0 {
		out.X = 0
	}
	if out.Y < 0 {
		out.Y = 0
	}
	if out.X+out.W > bounds.W {
		out.X = bounds.W - out.W
	}
	if out.Y+out.H > bounds.H {
		out.Y = bounds.H - out.H
	}
	if out.X < 0 {
		out.X = 0
	}
	if out.Y < 0 {
		out.Y = 0
	}
	return out
}

// Intersect returns the overlap of r with bounds anchored at the origin,
// shrinking edges as needed.
func (r Rect) Intersect(bounds Size) Rect {
	x0 := math.Max(r.X, 0)
	y0 := math.Max(r.Y, 0)
	x1 := math.Min(r.X+r.W, bounds.W)
	y1 := math.Min(r.Y+r.H, bounds.H)
	if x1 < x0 || y1 < y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Scale multiplies all four components by the per-axis factors.
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, W: r.W * sx, H: r.H * sy}
}

// ToImageRect rounds r to an image.Rectangle in integer pixel space.
func (r Rect) ToImageRect() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.W))
	y1 := int(math.Round(r.Y + r.H))
	return image.Rect(x0, y0, x1, y1)
}

// ScaleFactors returns the per-axis factors mapping from one space into
// another, e.g. snapshot natural size over viewport size. A zero source
// extent yields factor 1 so degenerate inputs pass through unchanged.
func ScaleFactors(from, to Size) (sx, sy float64) {
	sx, sy = 1, 1
	if from.W > 0 {
		sx = to.W / from.W
	}
	if from.H > 0 {
		sy = to.H / from.H
	}
	return sx, sy
}

// FitWithin scales size down proportionally so its longest edge does not
// exceed limit. Sizes already within the limit are returned unchanged.
func FitWithin(size Size, limit float64) Size {
	longest := math.Max(size.W, size.H)
	if longest <= limit || longest == 0 {
		return size
	}
	f := limit / longest
	return Size{W: size.W * f, H: size.H * f}
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
