// Package scheduler drives the periodic bearer-token refresh. The job is
// fire-and-forget: a failed refresh is logged and the next tick tries
// again, independent of any in-flight send.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ITNORWA/SMS-APP/internal/metrics"
)

type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

type Scheduler struct {
	interval time.Duration
	tokens   TokenRefresher
	metrics  *metrics.Metrics

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, tokens TokenRefresher, m *metrics.Metrics) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tokens == nil {
		return nil, errors.New("token refresher must not be nil")
	}
	return &Scheduler{
		interval: interval,
		tokens:   tokens,
		metrics:  m,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("token refresh scheduler started", "interval", s.interval.String())

		s.refreshTick(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("token refresh scheduler stopping")
				return
			case <-ticker.C:
				s.refreshTick(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("token refresh scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) refreshTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("token refresh tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	_, err := s.tokens.Refresh(ctx)
	if s.metrics != nil {
		s.metrics.ObserveTokenRefresh(err == nil)
	}
	if err != nil {
		slog.Error("scheduled token refresh failed", "error", err)
		return
	}
	slog.Info("token refreshed", "duration_ms", time.Since(start).Milliseconds())
}
