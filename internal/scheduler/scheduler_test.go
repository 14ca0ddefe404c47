package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int64
	err   error
}

func (c *countingRefresher) Refresh(ctx context.Context) (string, error) {
	c.calls.Add(1)
	return "tok", c.err
}

func TestScheduler_StartRefreshesImmediately(t *testing.T) {
	t.Parallel()

	refresher := &countingRefresher{}
	s, err := New(time.Hour, refresher, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if !s.Start() {
		t.Fatalf("expected Start to return true")
	}
	t.Cleanup(func() { s.Stop() })

	deadline := time.Now().Add(2 * time.Second)
	for refresher.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected an immediate refresh on start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !s.IsRunning() {
		t.Fatalf("expected scheduler to be running")
	}
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	t.Parallel()

	s, err := New(time.Hour, &countingRefresher{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if !s.Start() {
		t.Fatalf("expected first Start to succeed")
	}
	t.Cleanup(func() { s.Stop() })

	if s.Start() {
		t.Fatalf("expected second Start to be a no-op")
	}
}

func TestScheduler_StopTerminatesLoop(t *testing.T) {
	t.Parallel()

	s, err := New(time.Hour, &countingRefresher{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	s.Start()
	if !s.Stop() {
		t.Fatalf("expected Stop to return true")
	}
	if s.IsRunning() {
		t.Fatalf("expected scheduler stopped")
	}
	if s.Stop() {
		t.Fatalf("expected second Stop to be a no-op")
	}
}

func TestScheduler_RefreshFailureDoesNotStopTicker(t *testing.T) {
	t.Parallel()

	refresher := &countingRefresher{err: errors.New("login rejected")}
	s, err := New(20*time.Millisecond, refresher, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	s.Start()
	t.Cleanup(func() { s.Stop() })

	deadline := time.Now().Add(2 * time.Second)
	for refresher.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected ticks to continue after failures, got %d", refresher.calls.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_RejectsBadArguments(t *testing.T) {
	t.Parallel()

	if _, err := New(0, &countingRefresher{}, nil); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := New(time.Second, nil, nil); err == nil {
		t.Fatalf("expected error for nil refresher")
	}
}
