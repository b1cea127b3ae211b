package session

import (
	"context"
	"errors"
	"testing"

	"go-region-annotator/internal/annotation"
	"go-region-annotator/internal/capture"
	"go-region-annotator/internal/delivery"
	"go-region-annotator/pkg/geometry"
)

type stubDeliverer struct {
	outcome delivery.Outcome
	err     error
	records []annotation.Record
	started chan struct{}
	release chan struct{}
}

func (d *stubDeliverer) Deliver(ctx context.Context, rec annotation.Record) (delivery.Outcome, error) {
	if d.started != nil {
		close(d.started)
	}
	if d.release != nil {
		<-d.release
	}
	d.records = append(d.records, rec)
	return d.outcome, d.err
}

type blockingStrategy struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingStrategy) Name() string { return "blocking" }

func (s *blockingStrategy) Capture(ctx context.Context, rect geometry.Rect) (capture.Result, error) {
	close(s.started)
	<-s.release
	return capture.NewPlaceholderStrategy("late", "surface-9").Capture(ctx, rect)
}

func newTestSession(t *testing.T, d Deliverer) *Session {
	t.Helper()
	s, err := New(Options{
		Bounds:   geometry.Size{W: 800, H: 600},
		Chain:    capture.NewChain(capture.NewPlaceholderStrategy("Test App", "surface-1")),
		Delivery: d,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSessionFullFlow(t *testing.T) {
	del := &stubDeliverer{outcome: delivery.OutcomeDelivered}
	s := newTestSession(t, del)

	s.BeginSelection(geometry.Point{X: 100, Y: 100})
	s.UpdateSelection(geometry.Point{X: 200, Y: 180})
	rect, ok := s.EndSelection(geometry.Point{X: 300, Y: 280})
	if !ok {
		t.Fatal("expected selection to commit")
	}
	if rect.W != rect.H {
		t.Fatalf("selection not square: %+v", rect)
	}

	if err := s.Capture(context.Background(), rect); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if s.Phase() != PhaseEditing {
		t.Fatalf("phase after capture = %d, want editing", s.Phase())
	}
	if s.Editor() == nil {
		t.Fatal("expected an editor after capture")
	}

	rec, err := s.BuildRecord(annotation.KindHead, "dialogue", "hello", "extra")
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}
	if rec.ID == "" || rec.ImageData == "" {
		t.Fatalf("incomplete record: %+v", rec)
	}
	if rec.SourceRef != "surface-1" {
		t.Fatalf("SourceRef = %q, want surface-1", rec.SourceRef)
	}

	outcome, err := s.Deliver(context.Background(), rec)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if outcome != delivery.OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered", outcome)
	}
	if s.Phase() != PhaseDone {
		t.Fatalf("phase after delivery = %d, want done", s.Phase())
	}
	if len(del.records) != 1 || del.records[0].ID != rec.ID {
		t.Fatalf("deliverer saw %d records", len(del.records))
	}
}

func TestSessionTinySelectionStaysSelecting(t *testing.T) {
	s := newTestSession(t, &stubDeliverer{})

	s.BeginSelection(geometry.Point{X: 50, Y: 50})
	if _, ok := s.EndSelection(geometry.Point{X: 53, Y: 53}); ok {
		t.Fatal("expected tiny selection to cancel")
	}
	if s.Phase() != PhaseSelecting {
		t.Fatalf("phase = %d, want selecting", s.Phase())
	}

	// The surface is immediately reusable.
	s.BeginSelection(geometry.Point{X: 50, Y: 50})
	if _, ok := s.EndSelection(geometry.Point{X: 150, Y: 150}); !ok {
		t.Fatal("expected second selection to commit")
	}
}

func TestSessionDiscardsLateCaptureResult(t *testing.T) {
	strat := &blockingStrategy{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, err := New(Options{
		Bounds:   geometry.Size{W: 800, H: 600},
		Chain:    capture.NewChain(strat),
		Delivery: &stubDeliverer{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Capture(context.Background(), geometry.Rect{X: 0, Y: 0, W: 100, H: 100})
	}()

	<-strat.started
	s.Close()
	close(strat.release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("Capture error = %v, want ErrStale", err)
	}
	if s.Editor() != nil {
		t.Fatal("closed session must not expose an editor")
	}
}

func TestSessionDiscardsLateDeliveryOutcome(t *testing.T) {
	del := &stubDeliverer{
		outcome: delivery.OutcomeDelivered,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestSession(t, del)

	if err := s.Capture(context.Background(), geometry.Rect{X: 10, Y: 10, W: 120, H: 120}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	rec, err := s.BuildRecord(annotation.KindTail, "", "text", "")
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}

	type result struct {
		outcome delivery.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		o, e := s.Deliver(context.Background(), rec)
		done <- result{o, e}
	}()

	<-del.started
	s.Close()
	close(del.release)

	r := <-done
	if !errors.Is(r.err, ErrStale) {
		t.Fatalf("Deliver error = %v, want ErrStale", r.err)
	}
}

func TestSessionDeliveryFailureReturnsToEditing(t *testing.T) {
	del := &stubDeliverer{
		outcome: delivery.OutcomeFailed,
		err:     errors.New("both endpoints rejected"),
	}
	s := newTestSession(t, del)

	if err := s.Capture(context.Background(), geometry.Rect{X: 10, Y: 10, W: 120, H: 120}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	rec, err := s.BuildRecord(annotation.KindHead, "ui", "text", "")
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}

	if _, err := s.Deliver(context.Background(), rec); err == nil {
		t.Fatal("expected delivery error")
	}
	if s.Phase() != PhaseEditing {
		t.Fatalf("phase = %d, want editing so the user can retry", s.Phase())
	}
}
