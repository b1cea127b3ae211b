package capture

import (
	"context"
	"fmt"

	"go-region-annotator/internal/raster"
	"go-region-annotator/pkg/geometry"
)

// PlaceholderStrategy synthesizes a raster from structural metadata when no
// privileged snapshot is available, so the pipeline always produces some
// image. It only fails if the raster primitive itself does.
type PlaceholderStrategy struct {
	label     string
	surfaceID string
}

// NewPlaceholderStrategy builds the fallback chain link.
func NewPlaceholderStrategy(label, surfaceID string) *PlaceholderStrategy {
	return &PlaceholderStrategy{label: label, surfaceID: surfaceID}
}

// Name identifies this strategy in logs and results.
func (s *PlaceholderStrategy) Name() string {
	return "placeholder_synthesis"
}

// Capture renders the available metadata onto a rect-sized surface.
func (s *PlaceholderStrategy) Capture(ctx context.Context, rect geometry.Rect) (Result, error) {
	lines := []string{}
	if s.label != "" {
		lines = append(lines, s.label)
	}
	lines = append(lines, fmt.Sprintf("%d x %d", int(rect.W), int(rect.H)))
	if s.surfaceID != "" {
		lines = append(lines, "source: "+s.surfaceID)
	}

	img, err := raster.Placeholder(int(rect.W), int(rect.H), lines)
	if err != nil {
		return Result{}, err
	}
	return Result{Image: img, SourceSurfaceID: s.surfaceID}, nil
}
