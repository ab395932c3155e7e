// Package worker keeps the cache coherent in the background: it applies
// mutation categories arriving from the bus, refreshes the analytics
// reports on an interval and purges expired snapshots.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/invalidation"
	"fintrack/internal/log"
)

// MutationApplier performs a local invalidation fan-out for a category.
// Satisfied by *invalidation.Coordinator.
type MutationApplier interface {
	Apply(ctx context.Context, c invalidation.Category) error
}

// Consumer delivers remote mutation categories until ctx ends. Satisfied by
// *bus.Client.
type Consumer interface {
	Consume(ctx context.Context, handler func(invalidation.Category) error) error
}

// SnapshotPurger drops persisted snapshots older than the cutoff.
type SnapshotPurger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config holds worker configuration.
type Config struct {
	// RefreshInterval is how often analytics reports are re-fetched even
	// without a local mutation (default: 5m)
	RefreshInterval time.Duration

	// ConsumeRetryDelay is the pause before reconnecting a failed bus
	// consumer (default: 5s)
	ConsumeRetryDelay time.Duration

	// PurgeInterval is how often expired snapshots are purged (default: 1h)
	PurgeInterval time.Duration

	// PurgeAge is how old a snapshot must be to get purged (default: 24h)
	PurgeAge time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:   5 * time.Minute,
		ConsumeRetryDelay: 5 * time.Second,
		PurgeInterval:     1 * time.Hour,
		PurgeAge:          24 * time.Hour,
	}
}

type Worker struct {
	applier  MutationApplier
	consumer Consumer
	purger   SnapshotPurger
	config   Config
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a worker. consumer and purger may be nil; the corresponding
// duties are skipped.
func New(applier MutationApplier, consumer Consumer, purger SnapshotPurger, config Config, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	}
	return &Worker{
		applier:  applier,
		consumer: consumer,
		purger:   purger,
		config:   config,
		logger:   logger,
	}
}

// Start begins the background loops. Returns an error if already running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)
	if w.consumer != nil {
		go w.consumeLoop(ctx)
	}

	w.logger.InfoContext(ctx, "worker started",
		"refresh_interval", w.config.RefreshInterval.String())
	return nil
}

// Stop signals the loops and waits for the main loop to exit or ctx to end.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.InfoContext(ctx, "worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "worker stop timed out")
		return ctx.Err()
	}
}

func (w *Worker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	refresh := time.NewTicker(w.config.RefreshInterval)
	defer refresh.Stop()

	var purge *time.Ticker
	var purgeC <-chan time.Time
	if w.purger != nil {
		purge = time.NewTicker(w.config.PurgeInterval)
		defer purge.Stop()
		purgeC = purge.C
	}

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-refresh.C:
			if err := w.applier.Apply(ctx, invalidation.AnalyticsRefresh); err != nil {
				w.logger.WarnContext(ctx, "periodic analytics refresh failed", log.FieldError, err)
			}
		case <-purgeC:
			if _, err := w.purger.Purge(ctx, w.config.PurgeAge); err != nil {
				w.logger.WarnContext(ctx, "snapshot purge failed", log.FieldError, err)
			}
		}
	}
}

// consumeLoop keeps a bus consumer alive, reconnecting after failures until
// the worker stops. The consumer only returns on context cancellation, so
// Stop must cancel the context it runs under.
func (w *Worker) consumeLoop(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	handler := func(c invalidation.Category) error {
		return w.applier.Apply(ctx, c)
	}

	for {
		err := w.consumer.Consume(ctx, handler)
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		w.logger.WarnContext(ctx, "bus consumer stopped, reconnecting",
			log.FieldError, err)

		select {
		case <-time.After(w.config.ConsumeRetryDelay):
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
