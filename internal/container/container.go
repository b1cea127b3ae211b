// Package container builds the capture agent's dependency graph: durable
// outbox, retry scheduler, delivery client, schema cache, message-channel
// host, and the per-capture session factory.
package container

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go-region-annotator/internal/annotation"
	"go-region-annotator/internal/archive"
	"go-region-annotator/internal/capture"
	"go-region-annotator/internal/channel"
	"go-region-annotator/internal/config"
	"go-region-annotator/internal/delivery"
	"go-region-annotator/internal/logger"
	"go-region-annotator/internal/observer"
	"go-region-annotator/internal/outbox"
	"go-region-annotator/internal/schema"
	"go-region-annotator/internal/session"
	"go-region-annotator/internal/suggest"
	"go-region-annotator/pkg/geometry"
)

// Snapshotter is the privileged capture primitive: it produces a
// self-contained encoded image of a whole surface. The desktop shell
// provides the real implementation; tests stub it.
type Snapshotter interface {
	Snapshot(ctx context.Context, surfaceID string) (string, error)
}

// DeliverResult is the channel response payload for DELIVER requests.
type DeliverResult struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// Container holds all capture-agent dependencies.
type Container struct {
	config         *config.Config
	store          *outbox.Store
	scheduler      *outbox.Scheduler
	deliveryClient *delivery.Client
	events         observer.Subject
	metrics        *observer.MetricsObserver
	schemaCache    *schema.Cache
	suggester      *suggest.Suggester
	host           *channel.Host
	channelClient  *channel.Client
}

// NewContainer loads configuration and builds the dependency graph. The
// snapshotter may be nil; capture then always falls through to placeholder
// synthesis.
func NewContainer(snapshotter Snapshotter) (*Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewContainerWithConfig(cfg, snapshotter)
}

// NewContainerWithConfig builds the graph from an already-validated config.
func NewContainerWithConfig(cfg *config.Config, snapshotter Snapshotter) (*Container, error) {
	store, err := outbox.Open(cfg.OutboxPath)
	if err != nil {
		return nil, err
	}

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	metrics := observer.NewMetricsObserver()
	events.Subscribe(metrics)

	blobArchive, err := archive.NewBlobArchive(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if blobArchive != nil {
		events.Subscribe(archive.NewObserver(blobArchive))
	}

	// The delivery client arms the scheduler on enqueue; the scheduler
	// flushes through the client's direct attempt. Bind the cycle through
	// a late-bound pointer.
	var deliveryClient *delivery.Client
	scheduler := outbox.NewScheduler(store, func(ctx context.Context, rec annotation.Record) error {
		return deliveryClient.Attempt(ctx, rec)
	}, cfg.RetryInterval())

	deliveryClient = delivery.NewClient(
		delivery.NewHTTPClient(cfg.DeliveryTimeout),
		cfg.PrimaryURL(),
		cfg.SecondaryURL(),
		store,
		scheduler,
		events,
	)

	schemaCache := schema.NewCache(&http.Client{Timeout: cfg.SchemaTimeout}, cfg.SchemaCandidates())

	var suggester *suggest.Suggester
	if cfg.OCREnabled {
		suggester = suggest.New(suggest.NewOCRExtractor(cfg.OCRLanguage))
	}

	host := channel.NewHost()
	registerHandlers(host, snapshotter, deliveryClient, schemaCache)

	return &Container{
		config:         cfg,
		store:          store,
		scheduler:      scheduler,
		deliveryClient: deliveryClient,
		events:         events,
		metrics:        metrics,
		schemaCache:    schemaCache,
		suggester:      suggester,
		host:           host,
		channelClient:  channel.Connect(host, cfg.ChannelTimeout),
	}, nil
}

func registerHandlers(host *channel.Host, snapshotter Snapshotter, deliveryClient *delivery.Client, schemaCache *schema.Cache) {
	host.Register(channel.MsgCapture, func(ctx context.Context, payload json.RawMessage) (any, error) {
		if snapshotter == nil {
			return nil, fmt.Errorf("no snapshot source available")
		}
		var req capture.SnapshotRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("decode snapshot request: %w", err)
			}
		}
		data, err := snapshotter.Snapshot(ctx, req.SourceSurfaceID)
		if err != nil {
			return nil, err
		}
		return capture.SnapshotPayload{RasterData: data}, nil
	})

	host.Register(channel.MsgDeliver, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var rec annotation.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		outcome, err := deliveryClient.Deliver(ctx, rec)
		result := DeliverResult{Outcome: outcome.String()}
		if err != nil {
			result.Message = err.Error()
		}
		if outcome == delivery.OutcomeFailed {
			return nil, err
		}
		return result, nil
	})

	host.Register(channel.MsgSchema, func(ctx context.Context, payload json.RawMessage) (any, error) {
		return schemaCache.Fetch(ctx)
	})
}

// NewSession creates a capture session over the given selection surface.
func (c *Container) NewSession(bounds, viewport geometry.Size, surfaceID string) (*session.Session, error) {
	chain := capture.NewChain(
		capture.NewPrivilegedStrategy(c.channelClient, viewport, surfaceID),
		capture.NewPlaceholderStrategy("", surfaceID),
	)
	return session.New(session.Options{
		Bounds:   bounds,
		Viewport: viewport,
		Chain:    chain,
		Delivery: c.deliveryClient,
		Suggest:  c.suggester,
	})
}

// ResumePendingRetries arms the retry scheduler when a previous run left
// records in the outbox.
func (c *Container) ResumePendingRetries(ctx context.Context) (int, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.scheduler.Arm()
	}
	return n, nil
}

// Config returns the loaded configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Delivery returns the delivery client.
func (c *Container) Delivery() *delivery.Client {
	return c.deliveryClient
}

// Scheduler returns the outbox retry scheduler.
func (c *Container) Scheduler() *outbox.Scheduler {
	return c.scheduler
}

// SchemaCache returns the category schema cache.
func (c *Container) SchemaCache() *schema.Cache {
	return c.schemaCache
}

// Channel returns the unprivileged-side channel client.
func (c *Container) Channel() *channel.Client {
	return c.channelClient
}

// Metrics returns the pipeline counters.
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close releases held resources. Pending outbox entries stay on disk for
// the next run.
func (c *Container) Close() error {
	c.scheduler.Disarm()
	return c.store.Close()
}
