// Package selector implements the drag-to-define region selection state
// machine. The produced rectangle is always square, anchored at the start
// point and oriented toward the current pointer position.
package selector

import (
	"go-region-annotator/pkg/geometry"
)

// MinSelectionSize is the side length under which a finalized selection is
// discarded as a cancel rather than reported.
const MinSelectionSize = 10

// Selector turns a begin/update/end pointer sequence into a capture
// rectangle. It is purely geometric: no network or storage side effects.
type Selector struct {
	bounds geometry.Size
	anchor geometry.Point
	active bool
	rect   geometry.Rect
}

// New creates a selector operating over a surface of the given size.
func New(bounds geometry.Size) *Selector {
	return &Selector{bounds: bounds}
}

// Active reports whether a selection is in progress.
func (s *Selector) Active() bool {
	return s.active
}

// Begin starts a selection anchored at p. The anchor is pinned inside the
// surface so every derived rectangle stays in bounds.
func (s *Selector) Begin(p geometry.Point) {
	s.anchor = geometry.Point{
		X: geometry.Clamp(p.X, 0, s.bounds.W),
		Y: geometry.Clamp(p.Y, 0, s.bounds.H),
	}
	s.rect = geometry.Rect{X: s.anchor.X, Y: s.anchor.Y}
	s.active = true
}

// Update recomputes the candidate rectangle for the current pointer
// position and returns it. Calling Update without Begin returns the zero
// rectangle.
func (s *Selector) Update(p geometry.Point) geometry.Rect {
	if !s.active {
		return geometry.Rect{}
	}
	s.rect = s.square(p)
	return s.rect
}

// End finalizes the selection. ok is false when the selection is too small
// to be meaningful; that is a cancel, not an error.
func (s *Selector) End(p geometry.Point) (geometry.Rect, bool) {
	if !s.active {
		return geometry.Rect{}, false
	}
	s.rect = s.square(p)
	s.active = false
	if s.rect.W < MinSelectionSize {
		return geometry.Rect{}, false
	}
	return s.rect, true
}

// Cancel aborts the selection with no side effects. Safe to call at any
// point, including when no selection is active.
func (s *Selector) Cancel() {
	s.active = false
	s.rect = geometry.Rect{}
}

// square derives the square rectangle anchored at the start point and
// oriented toward p. The side is the larger of the two pointer deltas,
// shrunk as needed so the square never leaves the surface.
func (s *Selector) square(p geometry.Point) geometry.Rect {
	dx := p.X - s.anchor.X
	dy := p.Y - s.anchor.Y

	side := abs(dx)
	if abs(dy) > side {
		side = abs(dy)
	}

	// Room available in the pointed direction, per axis.
	maxW := s.bounds.W - s.anchor.X
	if dx < 0 {
		maxW = s.anchor.X
	}
	maxH := s.bounds.H - s.anchor.Y
	if dy < 0 {
		maxH = s.anchor.Y
	}
	if side > maxW {
		side = maxW
	}
	if side > maxH {
		side = maxH
	}

	r := geometry.Rect{X: s.anchor.X, Y: s.anchor.Y, W: side, H: side}
	if dx < 0 {
		r.X = s.anchor.X - side
	}
	if dy < 0 {
		r.Y = s.anchor.Y - side
	}
	return r
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
