// Package delivery posts annotation records to the collector: primary
// endpoint first, a simplified secondary endpoint on rejection, and the
// outbox when the network itself fails.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/annotation"
	"go-region-annotator/internal/apperrors"
	"go-region-annotator/internal/logger"
	"go-region-annotator/internal/observer"
	"go-region-annotator/internal/outbox"
)

// Outcome is the user-visible result of one delivery call.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeQueued
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeQueued:
		return "queued"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Client delivers records and defers to the outbox on transport failure.
type Client struct {
	httpClient   *http.Client
	primaryURL   string
	secondaryURL string
	store        *outbox.Store
	scheduler    *outbox.Scheduler
	events       observer.Subject
	log          *logrus.Entry
}

// NewHTTPClient builds the delivery transport: small idle pool, bounded
// redirects, per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects (limit: 3)")
			}
			return nil
		},
	}
}

// NewClient creates a delivery client over the given endpoints, outbox, and
// scheduler. events may be nil.
func NewClient(httpClient *http.Client, primaryURL, secondaryURL string, store *outbox.Store, scheduler *outbox.Scheduler, events observer.Subject) *Client {
	return &Client{
		httpClient:   httpClient,
		primaryURL:   primaryURL,
		secondaryURL: secondaryURL,
		store:        store,
		scheduler:    scheduler,
		events:       events,
		log:          logger.ForComponent("delivery"),
	}
}

// Deliver attempts immediate delivery of rec. On a transport exception the
// record moves into the outbox and the scheduler is armed; the error detail
// is returned alongside OutcomeQueued for user display. The record is
// either delivered or queued, never both.
func (c *Client) Deliver(ctx context.Context, rec annotation.Record) (Outcome, error) {
	if err := rec.Validate(); err != nil {
		return OutcomeFailed, apperrors.NewInternalError("invalid annotation record", err)
	}

	err := c.Attempt(ctx, rec)
	if err == nil {
		c.notify(ctx, observer.Event{
			Type:      observer.DeliverySucceeded,
			Timestamp: time.Now().UTC(),
			RecordID:  rec.ID,
			ImageData: rec.ImageData,
		})
		return OutcomeDelivered, nil
	}

	if apperrors.IsType(err, apperrors.ErrorTypeTransport) || apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		if _, qerr := c.store.Enqueue(ctx, rec); qerr != nil {
			c.log.WithError(qerr).WithField("record_id", rec.ID).Error("Failed to enqueue record")
			return OutcomeFailed, apperrors.NewInternalError("delivery failed and record could not be queued", qerr)
		}
		if c.scheduler != nil {
			c.scheduler.Arm()
		}
		c.notify(ctx, observer.Event{
			Type:         observer.DeliveryQueued,
			Timestamp:    time.Now().UTC(),
			RecordID:     rec.ID,
			ErrorMessage: err.Error(),
		})
		return OutcomeQueued, err
	}

	c.notify(ctx, observer.Event{
		Type:         observer.DeliveryFailed,
		Timestamp:    time.Now().UTC(),
		RecordID:     rec.ID,
		ErrorMessage: err.Error(),
	})
	return OutcomeFailed, err
}

// Attempt performs one direct delivery pass with no outbox side effects;
// the retry scheduler uses it for flush cycles.
//
// A thrown transport error on the primary short-circuits: it indicates the
// network, not the endpoint, so the secondary is not consulted. Only a
// non-success status falls through to the simplified secondary endpoint.
func (c *Client) Attempt(ctx context.Context, rec annotation.Record) error {
	status, err := c.post(ctx, c.primaryURL, rec)
	if err != nil {
		return apperrors.NewTransportError("primary endpoint unreachable", err)
	}
	if status >= 200 && status < 300 {
		return nil
	}

	c.log.WithFields(logrus.Fields{
		"record_id": rec.ID,
		"status":    status,
	}).Warn("Primary endpoint rejected record, trying secondary")

	status2, err2 := c.post(ctx, c.secondaryURL, rec.Simplified())
	if err2 != nil {
		return apperrors.NewTransportError("secondary endpoint unreachable", err2)
	}
	if status2 >= 200 && status2 < 300 {
		return nil
	}
	return apperrors.NewApplicationError(
		fmt.Sprintf("both endpoints rejected record (primary %d, secondary %d)", status, status2),
		status2, nil)
}

func (c *Client) post(ctx context.Context, url string, body any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode delivery body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Client) notify(ctx context.Context, event observer.Event) {
	if c.events != nil {
		c.events.NotifyObservers(ctx, event)
	}
}
