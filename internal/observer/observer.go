// Package observer publishes capture and delivery lifecycle events to
// interested subscribers: logging, metrics, and the image archive.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents the type of pipeline event
type EventType string

const (
	// CaptureCompleted when a capture strategy produced an image
	CaptureCompleted EventType = "capture_completed"
	// CaptureFailed when every capture strategy failed
	CaptureFailed EventType = "capture_failed"
	// DeliverySucceeded when a record reached an endpoint
	DeliverySucceeded EventType = "delivery_succeeded"
	// DeliveryQueued when a record entered the outbox
	DeliveryQueued EventType = "delivery_queued"
	// DeliveryFailed when both endpoints rejected a record
	DeliveryFailed EventType = "delivery_failed"
)

// Event is one pipeline event.
type Event struct {
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	RecordID     string    `json:"record_id,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	Endpoint     string    `json:"endpoint,omitempty"`
	ImageData    string    `json:"-"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event Event)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	fields := logrus.Fields{
		"event_type": event.Type,
		"record_id":  event.RecordID,
	}
	if event.Strategy != "" {
		fields["strategy"] = event.Strategy
	}
	if event.Endpoint != "" {
		fields["endpoint"] = event.Endpoint
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	switch event.Type {
	case CaptureCompleted:
		o.logger.WithFields(fields).Debug("Capture completed")
	case CaptureFailed:
		o.logger.WithFields(fields).Error("Capture failed")
	case DeliverySucceeded:
		o.logger.WithFields(fields).Info("Record delivered")
	case DeliveryQueued:
		o.logger.WithFields(fields).Warn("Record queued for retry")
	case DeliveryFailed:
		o.logger.WithFields(fields).Error("Record rejected by all endpoints")
	default:
		o.logger.WithFields(fields).Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts pipeline outcomes
type MetricsObserver struct {
	mu        sync.RWMutex
	captures  int64
	delivered int64
	queued    int64
	failed    int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles pipeline events by counting them
func (o *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Type {
	case CaptureCompleted:
		o.captures++
	case DeliverySucceeded:
		o.delivered++
	case DeliveryQueued:
		o.queued++
	case DeliveryFailed:
		o.failed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current counters
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return map[string]interface{}{
		"captures":  o.captures,
		"delivered": o.delivered,
		"queued":    o.queued,
		"failed":    o.failed,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{observers: make([]Observer, 0)}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event Event) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
