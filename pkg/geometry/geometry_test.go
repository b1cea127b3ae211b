package geometry

import (
	"math"
	"testing"
)

func TestFromCorners(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want Rect
	}{
		{
			name: "Top left to bottom right",
			a:    Point{X: 10, Y: 20},
			b:    Point{X: 110, Y: 70},
			want: Rect{X: 10, Y: 20, W: 100, H: 50},
		},
		{
			name: "Bottom right to top left normalizes",
			a:    Point{X: 110, Y: 70},
			b:    Point{X: 10, Y: 20},
			want: Rect{X: 10, Y: 20, W: 100, H: 50},
		},
		{
			name: "Identical corners give empty rect",
			a:    Point{X: 5, Y: 5},
			b:    Point{X: 5, Y: 5},
			want: Rect{X: 5, Y: 5, W: 0, H: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromCorners(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("FromCorners(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got.W < 0 || got.H < 0 {
				t.Errorf("normalized rect has negative extent: %v", got)
			}
		})
	}
}

func TestClampInto(t *testing.T) {
	bounds := Size{W: 200, H: 100}

	tests := []struct {
		name string
		in   Rect
		want Rect
	}{
		{
			name: "Already inside is unchanged",
			in:   Rect{X: 10, Y: 10, W: 50, H: 50},
			want: Rect{X: 10, Y: 10, W: 50, H: 50},
		},
		{
			name: "Pushed past right edge",
			in:   Rect{X: 180, Y: 10, W: 50, H: 50},
			want: Rect{X: 150, Y: 10, W: 50, H: 50},
		},
		{
			name: "Pushed past origin",
			in:   Rect{X: -20, Y: -5, W: 50, H: 50},
			want: Rect{X: 0, Y: 0, W: 50, H: 50},
		},
		{
			name: "Larger than bounds pins to origin",
			in:   Rect{X: 10, Y: 10, W: 300, H: 300},
			want: Rect{X: 0, Y: 0, W: 300, H: 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.ClampInto(bounds)
			if got != tt.want {
				t.Errorf("ClampInto(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got.W != tt.in.W || got.H != tt.in.H {
				t.Errorf("ClampInto changed size: %v -> %v", tt.in, got)
			}
		})
	}
}

func TestIntersect(t *testing.T) {
	bounds := Size{W: 100, H: 100}

	got := Rect{X: 80, Y: 80, W: 50, H: 50}.Intersect(bounds)
	want := Rect{X: 80, Y: 80, W: 20, H: 20}
	if got != want {
		t.Errorf("Intersect = %v, want %v", got, want)
	}

	// Fully outside collapses to an empty rect, never negative.
	got = Rect{X: 150, Y: 150, W: 50, H: 50}.Intersect(bounds)
	if !got.IsEmpty() {
		t.Errorf("expected empty intersection, got %v", got)
	}
	if got.W < 0 || got.H < 0 {
		t.Errorf("intersection has negative extent: %v", got)
	}
}

func TestScaleFactors(t *testing.T) {
	sx, sy := ScaleFactors(Size{W: 1280, H: 720}, Size{W: 2560, H: 1440})
	if sx != 2 || sy != 2 {
		t.Errorf("ScaleFactors = (%f, %f), want (2, 2)", sx, sy)
	}

	// Degenerate source falls back to identity.
	sx, sy = ScaleFactors(Size{}, Size{W: 100, H: 100})
	if sx != 1 || sy != 1 {
		t.Errorf("ScaleFactors with zero source = (%f, %f), want (1, 1)", sx, sy)
	}
}

func TestFitWithin(t *testing.T) {
	got := FitWithin(Size{W: 800, H: 600}, 240)
	if math.Abs(got.W-240) > 1e-9 {
		t.Errorf("longest edge = %f, want 240", got.W)
	}
	if math.Abs(got.H-180) > 1e-9 {
		t.Errorf("short edge = %f, want 180", got.H)
	}

	small := Size{W: 100, H: 50}
	if FitWithin(small, 240) != small {
		t.Errorf("size within limit should be unchanged")
	}
}

func TestToImageRect(t *testing.T) {
	r := Rect{X: 1.4, Y: 1.6, W: 10.2, H: 10.8}
	got := r.ToImageRect()
	if got.Min.X != 1 || got.Min.Y != 2 || got.Max.X != 12 || got.Max.Y != 12 {
		t.Errorf("ToImageRect = %v", got)
	}
}
