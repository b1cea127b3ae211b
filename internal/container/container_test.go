package container

import (
	"context"
	"encoding/json"
	"image/color"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"go-region-annotator/internal/annotation"
	"go-region-annotator/internal/channel"
	"go-region-annotator/internal/collector"
	"go-region-annotator/internal/config"
	"go-region-annotator/internal/raster"
	"go-region-annotator/internal/schema"
	"go-region-annotator/pkg/geometry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSnapshotter struct {
	calls int
}

func (s *stubSnapshotter) Snapshot(ctx context.Context, surfaceID string) (string, error) {
	s.calls++
	img := imaging.New(800, 600, color.NRGBA{R: 30, G: 30, B: 30, A: 255})
	return raster.EncodePNGDataURL(img)
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		CollectorBaseURL:     baseURL,
		PrimaryPath:          "/tag/add",
		SecondaryPath:        "/sync/tags",
		RetryIntervalMinutes: 5,
		OutboxPath:           filepath.Join(dir, "outbox.db"),
		ChannelTimeout:       2 * time.Second,
		DeliveryTimeout:      2 * time.Second,
		SchemaTimeout:        2 * time.Second,
		MaxRequestBodySize:   1 << 20,
		CollectorDBPath:      filepath.Join(dir, "collector.db"),
	}
}

func newTestCollectorServer(t *testing.T) (*collector.Store, *httptest.Server) {
	t.Helper()
	store, err := collector.OpenStore(filepath.Join(t.TempDir(), "collector.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	srv := httptest.NewServer(collector.NewHandler(store, 1<<20))
	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return store, srv
}

func TestEndToEndCaptureAndDeliver(t *testing.T) {
	collectorStore, srv := newTestCollectorServer(t)

	c, err := NewContainerWithConfig(testConfig(t, srv.URL), &stubSnapshotter{})
	if err != nil {
		t.Fatalf("NewContainerWithConfig: %v", err)
	}
	defer c.Close()

	s, err := c.NewSession(geometry.Size{W: 800, H: 600}, geometry.Size{W: 800, H: 600}, "surface-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	s.BeginSelection(geometry.Point{X: 100, Y: 100})
	rect, ok := s.EndSelection(geometry.Point{X: 260, Y: 260})
	if !ok {
		t.Fatal("selection did not commit")
	}

	if err := s.Capture(context.Background(), rect); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	rec, err := s.BuildRecord(annotation.KindHead, "style", "watercolor wash", "")
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}

	outcome, err := s.Deliver(context.Background(), rec)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if outcome.String() != "delivered" {
		t.Fatalf("outcome = %v", outcome)
	}

	stored, err := collectorStore.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("collector did not receive record: %v", err)
	}
	if stored.ImageData == "" {
		t.Fatal("primary delivery must carry the image payload")
	}
}

func TestNilSnapshotterFallsBackToPlaceholder(t *testing.T) {
	_, srv := newTestCollectorServer(t)

	c, err := NewContainerWithConfig(testConfig(t, srv.URL), nil)
	if err != nil {
		t.Fatalf("NewContainerWithConfig: %v", err)
	}
	defer c.Close()

	s, err := c.NewSession(geometry.Size{W: 800, H: 600}, geometry.Size{W: 800, H: 600}, "surface-2")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	if err := s.Capture(context.Background(), geometry.Rect{X: 10, Y: 10, W: 120, H: 120}); err != nil {
		t.Fatalf("Capture should have synthesized a placeholder: %v", err)
	}
}

func TestChannelServesSchema(t *testing.T) {
	_, srv := newTestCollectorServer(t)

	c, err := NewContainerWithConfig(testConfig(t, srv.URL), nil)
	if err != nil {
		t.Fatalf("NewContainerWithConfig: %v", err)
	}
	defer c.Close()

	resp, err := c.Channel().Send(context.Background(), channel.MsgSchema, nil)
	if err != nil {
		t.Fatalf("schema request over channel: %v", err)
	}

	var got schema.Schema
	if err := json.Unmarshal(resp.Payload, &got); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if len(got.Head) == 0 || len(got.Tail) == 0 {
		t.Fatalf("schema incomplete: %+v", got)
	}
}

func TestChannelDeliverRoundTrip(t *testing.T) {
	collectorStore, srv := newTestCollectorServer(t)

	c, err := NewContainerWithConfig(testConfig(t, srv.URL), nil)
	if err != nil {
		t.Fatalf("NewContainerWithConfig: %v", err)
	}
	defer c.Close()

	rec := annotation.New(annotation.KindTail, "parameters", "sampler euler")
	resp, err := c.Channel().Send(context.Background(), channel.MsgDeliver, rec)
	if err != nil {
		t.Fatalf("deliver over channel: %v", err)
	}

	var result DeliverResult
	if err := json.Unmarshal(resp.Payload, &result); err != nil {
		t.Fatalf("decode deliver result: %v", err)
	}
	if result.Outcome != "delivered" {
		t.Fatalf("outcome = %q", result.Outcome)
	}
	if _, err := collectorStore.Get(context.Background(), rec.ID); err != nil {
		t.Fatalf("collector did not receive record: %v", err)
	}
}
