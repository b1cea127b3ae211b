package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-region-annotator/internal/annotation"
	"go-region-annotator/internal/logger"
)

// AttemptFunc performs one direct delivery attempt for a pending record.
// It must not enqueue on failure; the scheduler owns retention.
type AttemptFunc func(ctx context.Context, rec annotation.Record) error

// Scheduler drives periodic flushes of the outbox at a fixed interval: no
// backoff, retries unbounded. The timer exists only while entries are
// pending.
type Scheduler struct {
	store    *Store
	attempt  AttemptFunc
	interval time.Duration
	log      *logrus.Entry

	mu    sync.Mutex
	timer *time.Timer
}

// NewScheduler creates a scheduler flushing store through attempt every
// interval. Interval clamping to the one-minute floor is the config
// layer's job; the scheduler runs whatever it is given.
func NewScheduler(store *Store, attempt AttemptFunc, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		attempt:  attempt,
		interval: interval,
		log:      logger.ForComponent("retry_scheduler"),
	}
}

// Arm creates or refreshes the flush timer. Called on every enqueue.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Reset(s.interval)
		return
	}
	s.timer = time.AfterFunc(s.interval, s.run)
	s.log.WithField("interval", s.interval.String()).Info("Retry scheduler armed")
}

// Disarm cancels the flush timer. Called once a flush drains the outbox.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.log.Info("Retry scheduler disarmed")
	}
}

// Armed reports whether the flush timer is live.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	remaining, err := s.Flush(ctx)
	if err != nil {
		s.log.WithError(err).Error("Outbox flush failed")
	}
	if remaining > 0 {
		s.Arm()
		return
	}
	s.Disarm()
}

// Flush attempts delivery of every pending entry in insertion order.
// Delivered entries are dropped; failures are retained in their original
// relative order for the next cycle. Flushing an empty outbox is a no-op
// and does not re-arm the timer.
func (s *Scheduler) Flush(ctx context.Context) (remaining int, err error) {
	entries, err := s.store.Entries(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	for _, e := range entries {
		if err := s.attempt(ctx, e.Record); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"seq":       e.Seq,
				"record_id": e.Record.ID,
			}).Warn("Redelivery attempt failed, entry retained")
			remaining++
			continue
		}
		if err := s.store.Delete(ctx, e.Seq); err != nil {
			// Delivered but not removed: the next cycle redelivers it.
			// At-least-once tolerates the duplicate.
			s.log.WithError(err).WithField("seq", e.Seq).Error("Failed to drop delivered entry")
			remaining++
			continue
		}
		s.log.WithFields(logrus.Fields{
			"seq":       e.Seq,
			"record_id": e.Record.ID,
		}).Info("Pending record delivered")
	}
	return remaining, nil
}
