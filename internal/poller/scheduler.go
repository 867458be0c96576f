// Package poller owns the repeating timers that track an active ticket
// against the queue authority. It holds no queue state of its own: every tick
// hands its result to the sink and asks the sink for current preferences, so
// cancel/restart semantics stay unambiguous.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aretimiss/queuematic/internal/metrics"
	"github.com/aretimiss/queuematic/internal/models"
)

const (
	DefaultStatusInterval = 30 * time.Second
	DefaultNotifyInterval = 15 * time.Second
	tickTimeout           = 10 * time.Second
)

// StatusClient is the slice of the authority contract the scheduler needs.
type StatusClient interface {
	GetStatus(ctx context.Context, queueNumber int) (models.QueueStatusSnapshot, error)
	CheckNotification(ctx context.Context, queueNumber int) (bool, error)
}

// Sink receives every successful snapshot and supplies current preferences.
type Sink interface {
	HandleSnapshot(ctx context.Context, snap models.QueueStatusSnapshot)
	NotificationsEnabled() bool
}

type Config struct {
	StatusInterval time.Duration
	NotifyInterval time.Duration
}

type Scheduler struct {
	client         StatusClient
	statusInterval time.Duration
	notifyInterval time.Duration
	metrics        *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(client StatusClient, cfg Config, m *metrics.Metrics) *Scheduler {
	statusInterval := cfg.StatusInterval
	if statusInterval <= 0 {
		statusInterval = DefaultStatusInterval
	}
	notifyInterval := cfg.NotifyInterval
	if notifyInterval <= 0 {
		notifyInterval = DefaultNotifyInterval
	}
	return &Scheduler{
		client:         client,
		statusInterval: statusInterval,
		notifyInterval: notifyInterval,
		metrics:        m,
	}
}

// Start launches the status and notification loops for one queue number.
// Calling Start while running restarts tracking for the new number.
func (s *Scheduler) Start(queueNumber int, sink Sink) {
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go s.statusLoop(ctx, queueNumber, sink)
	go s.notifyLoop(ctx, queueNumber, sink)
}

// Stop cancels both loops and waits for in-flight ticks to drain. After Stop
// returns no further authority calls are made.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) statusLoop(ctx context.Context, queueNumber int, sink Sink) {
	defer s.wg.Done()

	// Poll once right away so a fresh ticket shows status before the first
	// interval elapses.
	s.pollStatus(ctx, queueNumber, sink)

	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollStatus(ctx, queueNumber, sink)
		}
	}
}

func (s *Scheduler) notifyLoop(ctx context.Context, queueNumber int, sink Sink) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.notifyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sink.NotificationsEnabled() {
				continue
			}
			s.checkNotification(ctx, queueNumber, sink)
		}
	}
}

func (s *Scheduler) pollStatus(ctx context.Context, queueNumber int, sink Sink) {
	if ctx.Err() != nil {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	if s.metrics != nil {
		s.metrics.StatusPolls.Inc()
	}
	snap, err := s.client.GetStatus(tickCtx, queueNumber)
	if err != nil {
		s.tickFailed("poll status", err)
		return
	}
	sink.HandleSnapshot(ctx, snap)
}

// checkNotification does the cheap pre-check first and only fetches the full
// snapshot when the authority says the turn is near.
func (s *Scheduler) checkNotification(ctx context.Context, queueNumber int, sink Sink) {
	if ctx.Err() != nil {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	if s.metrics != nil {
		s.metrics.NotificationChecks.Inc()
	}
	shouldNotify, err := s.client.CheckNotification(tickCtx, queueNumber)
	if err != nil {
		s.tickFailed("check notification", err)
		return
	}
	if !shouldNotify {
		return
	}

	snap, err := s.client.GetStatus(tickCtx, queueNumber)
	if err != nil {
		s.tickFailed("notification status", err)
		return
	}
	sink.HandleSnapshot(ctx, snap)
}

// A failed tick is logged and counted; the next tick is the retry.
func (s *Scheduler) tickFailed(op string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("%s error: %v", op, err)
	if s.metrics != nil {
		s.metrics.PollErrors.Inc()
	}
}
