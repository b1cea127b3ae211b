// Package session ties one capture flow together: region selection,
// snapshot, crop editing, record assembly, and delivery. A session lives for
// a single capture and is disposed afterwards; the host creates a fresh one
// per invocation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/annotation"
	"go-region-annotator/internal/capture"
	"go-region-annotator/internal/cropeditor"
	"go-region-annotator/internal/delivery"
	"go-region-annotator/internal/logger"
	"go-region-annotator/internal/raster"
	"go-region-annotator/internal/selector"
	"go-region-annotator/internal/suggest"

	"go-region-annotator/pkg/geometry"
)

// ErrStale is returned when an asynchronous result arrives after the
// session was closed. The result has been discarded.
var ErrStale = errors.New("session closed before result arrived")

// Phase is the session lifecycle stage.
type Phase int

const (
	PhaseSelecting Phase = iota
	PhaseCapturing
	PhaseEditing
	PhaseDelivering
	PhaseDone
	PhaseClosed
)

// Deliverer sends a finished record to the collector.
type Deliverer interface {
	Deliver(ctx context.Context, rec annotation.Record) (delivery.Outcome, error)
}

// Options configures a session.
type Options struct {
	// Bounds is the size of the selection surface in viewport units.
	Bounds geometry.Size
	// Viewport is the size the editor container will use for the captured
	// image. Zero means reuse the selection rect's own size.
	Viewport geometry.Size
	Chain    *capture.Chain
	Delivery Deliverer
	Suggest  *suggest.Suggester
}

// Session owns the state of one capture flow.
type Session struct {
	id   string
	opts Options
	log  *logrus.Entry

	mu       sync.Mutex
	phase    Phase
	sel      *selector.Selector
	snapshot capture.Result
	editor   *cropeditor.Editor
}

// New creates a session ready for selection.
func New(opts Options) (*Session, error) {
	if opts.Chain == nil {
		return nil, fmt.Errorf("session requires a capture chain")
	}
	if opts.Delivery == nil {
		return nil, fmt.Errorf("session requires a delivery client")
	}
	if opts.Bounds.W <= 0 || opts.Bounds.H <= 0 {
		return nil, fmt.Errorf("session bounds must be positive, got %gx%g", opts.Bounds.W, opts.Bounds.H)
	}

	id := uuid.NewString()
	return &Session{
		id:    id,
		opts:  opts,
		log:   logger.ForComponent("session").WithField("session_id", id),
		phase: PhaseSelecting,
		sel:   selector.New(opts.Bounds),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current lifecycle stage.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// BeginSelection starts a drag on the selection surface.
func (s *Session) BeginSelection(p geometry.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseSelecting {
		return
	}
	s.sel.Begin(p)
}

// UpdateSelection extends the drag and returns the current square.
func (s *Session) UpdateSelection(p geometry.Point) geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseSelecting {
		return geometry.Rect{}
	}
	return s.sel.Update(p)
}

// EndSelection finishes the drag. ok is false when the selection was too
// small and the session stays in the selecting phase.
func (s *Session) EndSelection(p geometry.Point) (geometry.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseSelecting {
		return geometry.Rect{}, false
	}
	rect, ok := s.sel.End(p)
	return rect, ok
}

// Capture runs the strategy chain for the selected rect, then opens the
// crop editor over the result. If the session was closed while the chain
// was running, the snapshot is discarded and ErrStale is returned.
func (s *Session) Capture(ctx context.Context, rect geometry.Rect) error {
	s.mu.Lock()
	if s.phase != PhaseSelecting {
		s.mu.Unlock()
		return fmt.Errorf("capture requested in phase %d", s.phase)
	}
	s.phase = PhaseCapturing
	s.mu.Unlock()

	result, err := s.opts.Chain.Capture(ctx, rect)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		s.log.Debug("discarding capture result for closed session")
		return ErrStale
	}
	if err != nil {
		s.phase = PhaseSelecting
		return err
	}

	container := s.opts.Viewport
	if container.W <= 0 || container.H <= 0 {
		container = rect.Size()
	}
	editor, err := cropeditor.New(container, raster.NaturalSize(result.Image))
	if err != nil {
		s.phase = PhaseSelecting
		return err
	}

	s.snapshot = result
	s.editor = editor
	s.phase = PhaseEditing
	s.log.WithFields(logrus.Fields{
		"strategy": result.Strategy,
		"source":   result.SourceSurfaceID,
	}).Debug("capture complete, editing")
	return nil
}

// Editor exposes the crop editor while the session is in the editing
// phase, and nil otherwise.
func (s *Session) Editor() *cropeditor.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEditing {
		return nil
	}
	return s.editor
}

// SuggestText runs OCR over the current crop to pre-fill the primary text
// field. Returns "" when suggestion is disabled or fails.
func (s *Session) SuggestText() string {
	s.mu.Lock()
	if s.phase != PhaseEditing || s.opts.Suggest == nil {
		s.mu.Unlock()
		return ""
	}
	cropped, err := s.editor.ApplyCrop(s.snapshot.Image)
	s.mu.Unlock()
	if err != nil {
		return ""
	}
	return s.opts.Suggest.SuggestText(cropped)
}

// BuildRecord crops the snapshot and assembles a record from the confirmed
// fields. The session stays in the editing phase so the caller can rebuild
// after further edits.
func (s *Session) BuildRecord(kind annotation.Kind, subcategory, primaryText, secondaryText string) (annotation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEditing {
		return annotation.Record{}, fmt.Errorf("no editable capture in phase %d", s.phase)
	}

	cropped, err := s.editor.ApplyCrop(s.snapshot.Image)
	if err != nil {
		return annotation.Record{}, err
	}
	data, err := raster.EncodePNGDataURL(cropped)
	if err != nil {
		return annotation.Record{}, err
	}

	rec := annotation.New(kind, subcategory, primaryText)
	rec.SecondaryText = secondaryText
	rec.SourceRef = s.snapshot.SourceSurfaceID
	rec.ImageData = data
	return rec, nil
}

// Deliver sends the record through the delivery client. A session closed
// while the request was in flight discards the outcome and reports
// ErrStale.
func (s *Session) Deliver(ctx context.Context, rec annotation.Record) (delivery.Outcome, error) {
	s.mu.Lock()
	if s.phase != PhaseEditing {
		s.mu.Unlock()
		return delivery.OutcomeFailed, fmt.Errorf("nothing to deliver in phase %d", s.phase)
	}
	s.phase = PhaseDelivering
	s.mu.Unlock()

	outcome, err := s.opts.Delivery.Deliver(ctx, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		s.log.WithField("record_id", rec.ID).Debug("discarding delivery outcome for closed session")
		return delivery.OutcomeFailed, ErrStale
	}
	if err != nil && outcome == delivery.OutcomeFailed {
		s.phase = PhaseEditing
		return outcome, err
	}
	s.phase = PhaseDone
	return outcome, err
}

// Close tears the session down. In-flight capture or delivery results are
// discarded when they arrive.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.sel.Cancel()
	s.phase = PhaseClosed
	s.editor = nil
	s.snapshot = capture.Result{}
}
