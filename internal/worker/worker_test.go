package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"fintrack/internal/invalidation"
)

type recordingApplier struct {
	mu         sync.Mutex
	categories []invalidation.Category
}

func (a *recordingApplier) Apply(_ context.Context, c invalidation.Category) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.categories = append(a.categories, c)
	return nil
}

func (a *recordingApplier) applied() []invalidation.Category {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]invalidation.Category(nil), a.categories...)
}

// channelConsumer feeds categories from a channel and blocks until ctx ends.
type channelConsumer struct {
	deliveries chan invalidation.Category
}

func (c *channelConsumer) Consume(ctx context.Context, handler func(invalidation.Category) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case category := <-c.deliveries:
			if err := handler(category); err != nil {
				return err
			}
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorker_PeriodicAnalyticsRefresh(t *testing.T) {
	applier := &recordingApplier{}
	config := DefaultConfig()
	config.RefreshInterval = 10 * time.Millisecond

	w := New(applier, nil, nil, config, nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(ctx)

	waitFor(t, func() bool { return len(applier.applied()) >= 2 })
	for _, c := range applier.applied() {
		if c != invalidation.AnalyticsRefresh {
			t.Errorf("applied %q, want only analytics_refresh", c)
		}
	}
}

func TestWorker_AppliesConsumedCategories(t *testing.T) {
	applier := &recordingApplier{}
	consumer := &channelConsumer{deliveries: make(chan invalidation.Category, 2)}
	config := DefaultConfig()
	config.RefreshInterval = time.Hour // keep the ticker quiet

	w := New(applier, consumer, nil, config, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(context.Background())

	consumer.deliveries <- invalidation.TransactionChanged
	consumer.deliveries <- invalidation.GoalChanged

	waitFor(t, func() bool { return len(applier.applied()) == 2 })
	got := applier.applied()
	if got[0] != invalidation.TransactionChanged || got[1] != invalidation.GoalChanged {
		t.Errorf("applied = %v", got)
	}
}

// blockedConsumer stays inside Consume until its context ends.
type blockedConsumer struct {
	exited chan struct{}
}

func (c *blockedConsumer) Consume(ctx context.Context, _ func(invalidation.Category) error) error {
	<-ctx.Done()
	close(c.exited)
	return ctx.Err()
}

func TestWorker_StopUnblocksConsumer(t *testing.T) {
	consumer := &blockedConsumer{exited: make(chan struct{})}
	config := DefaultConfig()
	config.RefreshInterval = time.Hour

	w := New(&recordingApplier{}, consumer, nil, config, nil)
	// the outer context stays live; Stop alone must release the consumer
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-consumer.exited:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer still blocked after Stop")
	}
}

type countingPurger struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPurger) Purge(_ context.Context, _ time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 1, nil
}

func (p *countingPurger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestWorker_PurgesSnapshots(t *testing.T) {
	applier := &recordingApplier{}
	purger := &countingPurger{}
	config := DefaultConfig()
	config.RefreshInterval = time.Hour
	config.PurgeInterval = 10 * time.Millisecond

	w := New(applier, nil, purger, config, nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(ctx)

	waitFor(t, func() bool { return purger.count() >= 1 })
}

func TestWorker_DoubleStartFails(t *testing.T) {
	w := New(&recordingApplier{}, nil, nil, DefaultConfig(), nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(ctx)

	if err := w.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	w := New(&recordingApplier{}, nil, nil, DefaultConfig(), nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
