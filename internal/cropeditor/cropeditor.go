// Package cropeditor implements the second-stage interactive crop
// refinement: move, resize, or redraw a bounded rectangle over a displayed
// image, with a live scaled preview and a single final crop composite.
package cropeditor

import (
	"fmt"
	"image"

	"go-region-annotator/internal/raster"
	"go-region-annotator/pkg/geometry"
)

const (
	// MinDrawSize is the floor while sketching a brand-new box. Kept
	// deliberately lower than MinResizeSize: free initial sketching is
	// allowed, accidental degenerate resizes are not.
	MinDrawSize = 1
	// MinResizeSize is the per-axis floor while resizing an existing box.
	MinResizeSize = 20
	// PreviewMax caps the longest edge of the live preview.
	PreviewMax = 240

	initialFraction = 0.6
	initialMinSide  = 50
	initialMaxSide  = 300

	handleRadius = 8
)

// Mode identifies the single active interaction. Exactly one mode is active
// at a time; PointerDown decides which.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDraw
	ModeDrag
	ModeResize
)

// Handle identifies one of the 8 directional resize handles.
type Handle int

const (
	HandleNone Handle = iota
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
	HandleNW
)

// State is the observable crop editor state.
type State struct {
	Crop      geometry.Rect
	Container geometry.Size
	Natural   geometry.Size
	// Scale maps container space to natural space on the horizontal axis
	// (container width over natural width).
	Scale float64
}

// Editor drives the crop box through draw, drag, and resize interactions.
type Editor struct {
	state     State
	mode      Mode
	handle    Handle
	anchor    geometry.Point
	startCrop geometry.Rect
}

// New creates an editor for an image of naturalSize displayed in a
// container, with the default centered crop window.
func New(container, natural geometry.Size) (*Editor, error) {
	if container.W <= 0 || container.H <= 0 {
		return nil, fmt.Errorf("invalid container size %+v", container)
	}
	if natural.W <= 0 || natural.H <= 0 {
		return nil, fmt.Errorf("invalid natural size %+v", natural)
	}
	e := &Editor{
		state: State{
			Container: container,
			Natural:   natural,
			Scale:     container.W / natural.W,
		},
	}
	e.Reset()
	return e, nil
}

// State returns a copy of the current editor state.
func (e *Editor) State() State {
	return e.state
}

// Mode returns the currently active interaction mode.
func (e *Editor) Mode() Mode {
	return e.mode
}

// Reset recomputes the initial centered crop window: 60% of the display
// area per axis, clamped to [50, 300] px, and never larger than the
// container itself.
func (e *Editor) Reset() {
	w := geometry.Clamp(e.state.Container.W*initialFraction, initialMinSide, initialMaxSide)
	h := geometry.Clamp(e.state.Container.H*initialFraction, initialMinSide, initialMaxSide)
	if w > e.state.Container.W {
		w = e.state.Container.W
	}
	if h > e.state.Container.H {
		h = e.state.Container.H
	}
	e.state.Crop = geometry.Rect{
		X: (e.state.Container.W - w) / 2,
		Y: (e.state.Container.H - h) / 2,
		W: w,
		H: h,
	}
	e.mode = ModeIdle
	e.handle = HandleNone
}

// HitHandle returns the resize handle at p, or HandleNone.
func (e *Editor) HitHandle(p geometry.Point) Handle {
	c := e.state.Crop
	midX := c.X + c.W/2
	midY := c.Y + c.H/2
	spots := []struct {
		h    Handle
		x, y float64
	}{
		{HandleNW, c.X, c.Y},
		{HandleN, midX, c.Y},
		{HandleNE, c.X + c.W, c.Y},
		{HandleE, c.X + c.W, midY},
		{HandleSE, c.X + c.W, c.Y + c.H},
		{HandleS, midX, c.Y + c.H},
		{HandleSW, c.X, c.Y + c.H},
		{HandleW, c.X, midY},
	}
	for _, s := range spots {
		if abs(p.X-s.x) <= handleRadius && abs(p.Y-s.y) <= handleRadius {
			return s.h
		}
	}
	return HandleNone
}

// PointerDown starts an interaction: resize on a handle, drag inside the
// box, draw anywhere else. Ignored while another interaction is active.
func (e *Editor) PointerDown(p geometry.Point) {
	if e.mode != ModeIdle {
		return
	}
	e.anchor = p
	e.startCrop = e.state.Crop

	if h := e.HitHandle(p); h != HandleNone {
		e.mode = ModeResize
		e.handle = h
		return
	}
	if e.state.Crop.Contains(p) {
		e.mode = ModeDrag
		return
	}
	e.mode = ModeDraw
	e.anchor = e.pin(p)
	e.state.Crop = geometry.Rect{X: e.anchor.X, Y: e.anchor.Y, W: MinDrawSize, H: MinDrawSize}
}

// PointerMove advances the active interaction and returns the updated crop
// rectangle.
func (e *Editor) PointerMove(p geometry.Point) geometry.Rect {
	switch e.mode {
	case ModeDraw:
		e.draw(p)
	case ModeDrag:
		e.drag(p)
	case ModeResize:
		e.resize(p)
	}
	return e.state.Crop
}

// PointerUp ends the active interaction.
func (e *Editor) PointerUp(p geometry.Point) geometry.Rect {
	e.PointerMove(p)
	e.mode = ModeIdle
	e.handle = HandleNone
	return e.state.Crop
}

func (e *Editor) draw(p geometry.Point) {
	r := geometry.FromCorners(e.anchor, e.pin(p))
	if r.W < MinDrawSize {
		r.W = MinDrawSize
	}
	if r.H < MinDrawSize {
		r.H = MinDrawSize
	}
	e.state.Crop = r.Intersect(e.state.Container)
}

func (e *Editor) drag(p geometry.Point) {
	moved := e.startCrop
	moved.X += p.X - e.anchor.X
	moved.Y += p.Y - e.anchor.Y
	e.state.Crop = moved.ClampInto(e.state.Container)
}

func (e *Editor) resize(p geometry.Point) {
	dx := p.X - e.anchor.X
	dy := p.Y - e.anchor.Y

	x0 := e.startCrop.X
	y0 := e.startCrop.Y
	x1 := e.startCrop.X + e.startCrop.W
	y1 := e.startCrop.Y + e.startCrop.H

	moveW := e.handle == HandleNW || e.handle == HandleW || e.handle == HandleSW
	moveE := e.handle == HandleNE || e.handle == HandleE || e.handle == HandleSE
	moveN := e.handle == HandleNW || e.handle == HandleN || e.handle == HandleNE
	moveS := e.handle == HandleSW || e.handle == HandleS || e.handle == HandleSE

	if moveW {
		hi := x1 - MinResizeSize
		if hi < 0 {
			hi = 0
		}
		x0 = geometry.Clamp(x0+dx, 0, hi)
	}
	if moveE {
		lo := x0 + MinResizeSize
		if lo > e.state.Container.W {
			lo = e.state.Container.W
		}
		x1 = geometry.Clamp(x1+dx, lo, e.state.Container.W)
	}
	if moveN {
		hi := y1 - MinResizeSize
		if hi < 0 {
			hi = 0
		}
		y0 = geometry.Clamp(y0+dy, 0, hi)
	}
	if moveS {
		lo := y0 + MinResizeSize
		if lo > e.state.Container.H {
			lo = e.state.Container.H
		}
		y1 = geometry.Clamp(y1+dy, lo, e.state.Container.H)
	}

	e.state.Crop = geometry.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Preview returns the source-pixel rectangle for the current crop box and
// the bounded size at which to render it.
func (e *Editor) Preview() (src geometry.Rect, size geometry.Size) {
	sx, sy := geometry.ScaleFactors(e.state.Container, e.state.Natural)
	src = e.state.Crop.Scale(sx, sy).Intersect(e.state.Natural)
	size = geometry.FitWithin(geometry.Size{W: src.W, H: src.H}, PreviewMax)
	return src, size
}

// ApplyCrop maps the final crop box to natural pixel space and produces
// the output raster in a single crop operation. The caller tears the
// editor down afterwards.
func (e *Editor) ApplyCrop(img image.Image) (*image.NRGBA, error) {
	sx, sy := geometry.ScaleFactors(e.state.Container, e.state.Natural)
	src := e.state.Crop.Scale(sx, sy).Intersect(e.state.Natural)
	if src.IsEmpty() {
		return nil, fmt.Errorf("crop region is empty")
	}
	return raster.Crop(img, src.ToImageRect()), nil
}

// pin constrains a pointer position to the container.
func (e *Editor) pin(p geometry.Point) geometry.Point {
	return geometry.Point{
		X: geometry.Clamp(p.X, 0, e.state.Container.W),
		Y: geometry.Clamp(p.Y, 0, e.state.Container.H),
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
