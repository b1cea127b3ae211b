package capture

import (
	"context"
	"encoding/json"
	"fmt"

	"go-region-annotator/internal/channel"
	"go-region-annotator/internal/raster"
	"go-region-annotator/pkg/geometry"
)

// SnapshotRequest is the CAPTURE payload sent to the privileged context.
type SnapshotRequest struct {
	SourceSurfaceID string `json:"sourceSurfaceId,omitempty"`
}

// SnapshotPayload is the CAPTURE response payload: a self-contained encoded
// image of the full surface.
type SnapshotPayload struct {
	RasterData string `json:"rasterData"`
}

// PrivilegedStrategy requests a full-surface snapshot over the message
// channel, then crops the requested rectangle client-side. The scale factor
// snapshotNatural/viewport corrects for device pixel ratio and resolution
// mismatch before compositing.
type PrivilegedStrategy struct {
	client    *channel.Client
	viewport  geometry.Size
	surfaceID string
}

// NewPrivilegedStrategy builds the privileged-capture chain link.
func NewPrivilegedStrategy(client *channel.Client, viewport geometry.Size, surfaceID string) *PrivilegedStrategy {
	return &PrivilegedStrategy{client: client, viewport: viewport, surfaceID: surfaceID}
}

// Name identifies this strategy in logs and results.
func (s *PrivilegedStrategy) Name() string {
	return "privileged_snapshot"
}

// Capture performs the one privileged round trip and the client-side crop.
func (s *PrivilegedStrategy) Capture(ctx context.Context, rect geometry.Rect) (Result, error) {
	resp, err := s.client.Send(ctx, channel.MsgCapture, SnapshotRequest{SourceSurfaceID: s.surfaceID})
	if err != nil {
		return Result{}, err
	}

	var payload SnapshotPayload
	if err := json.Unmarshal(resp.Payload, &payload); err != nil {
		return Result{}, fmt.Errorf("decode snapshot payload: %w", err)
	}
	if payload.RasterData == "" {
		return Result{}, fmt.Errorf("snapshot payload has no raster data")
	}

	snapshot, err := raster.DecodeDataURL(payload.RasterData)
	if err != nil {
		return Result{}, fmt.Errorf("decode snapshot image: %w", err)
	}

	out, err := raster.CropViewportRect(snapshot, rect, s.viewport)
	if err != nil {
		return Result{}, fmt.Errorf("crop snapshot: %w", err)
	}
	return Result{Image: out, SourceSurfaceID: s.surfaceID}, nil
}
