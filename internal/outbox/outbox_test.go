package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go-region-annotator/internal/annotation"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(primary string) annotation.Record {
	return annotation.New(annotation.KindHead, "style", primary)
}

func TestEnqueueAndOrderedEntries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if _, err := s.Enqueue(ctx, record(text)); err != nil {
			t.Fatalf("Enqueue(%s): %v", text, err)
		}
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"first", "second", "third"} {
		if entries[i].Record.PrimaryText != want {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Record.PrimaryText, want)
		}
	}
	if !(entries[0].Seq < entries[1].Seq && entries[1].Seq < entries[2].Seq) {
		t.Errorf("sequence numbers not increasing: %d, %d, %d",
			entries[0].Seq, entries[1].Seq, entries[2].Seq)
	}
}

func TestDurabilityAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Enqueue(ctx, record("survives restart")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Record.PrimaryText != "survives restart" {
		t.Errorf("unexpected entries after reopen: %+v", entries)
	}
}

func TestFlushPartialFailureKeepsOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	recs := []annotation.Record{record("a"), record("b"), record("c")}
	for _, r := range recs {
		if _, err := s.Enqueue(ctx, r); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	// Middle record keeps failing.
	attempt := func(ctx context.Context, rec annotation.Record) error {
		if rec.ID == recs[1].ID {
			return errors.New("collector still down")
		}
		return nil
	}
	sched := NewScheduler(s, attempt, time.Minute)

	remaining, err := sched.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Record.ID != recs[1].ID {
		t.Errorf("retained entries = %+v, want only the failed record", entries)
	}
}

func TestFlushEmptyIsNoOp(t *testing.T) {
	s := openStore(t)
	calls := 0
	sched := NewScheduler(s, func(ctx context.Context, rec annotation.Record) error {
		calls++
		return nil
	}, time.Minute)

	remaining, err := sched.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if remaining != 0 || calls != 0 {
		t.Errorf("empty flush made %d attempts, remaining %d", calls, remaining)
	}
	if sched.Armed() {
		t.Error("empty flush must not arm the scheduler")
	}
}

func TestSchedulerDrainsAndDisarms(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	delivered := make(chan string, 4)
	sched := NewScheduler(s, func(ctx context.Context, rec annotation.Record) error {
		delivered <- rec.ID
		return nil
	}, 20*time.Millisecond)

	rec := record("queued while offline")
	if _, err := s.Enqueue(ctx, rec); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	sched.Arm()
	if !sched.Armed() {
		t.Fatal("scheduler should be armed after enqueue")
	}

	select {
	case id := <-delivered:
		if id != rec.ID {
			t.Errorf("delivered %q, want %q", id, rec.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never flushed")
	}

	// Once drained the timer must be cancelled.
	deadline := time.Now().Add(2 * time.Second)
	for sched.Armed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sched.Armed() {
		t.Error("scheduler still armed after draining the outbox")
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("outbox holds %d entries after drain", n)
	}
}

func TestSchedulerRearmsWhileEntriesRemain(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	attempts := make(chan struct{}, 16)
	var fail atomic.Bool
	fail.Store(true)
	sched := NewScheduler(s, func(ctx context.Context, rec annotation.Record) error {
		attempts <- struct{}{}
		if fail.Load() {
			return errors.New("still unreachable")
		}
		return nil
	}, 15*time.Millisecond)

	if _, err := s.Enqueue(ctx, record("retried")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	sched.Arm()

	// First cycle fails; the scheduler must fire again on its own.
	<-attempts
	select {
	case <-attempts:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not re-arm after a failed cycle")
	}

	fail.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := s.Count(ctx); n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("outbox never drained after delivery recovered")
}
