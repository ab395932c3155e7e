// fintrack-worker is the long-lived companion process: it keeps the shared
// snapshot database fresh by re-fetching reports on an interval, applies
// invalidations broadcast by other fintrack processes and prunes idle
// cache state.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/bus"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/invalidation"
	"fintrack/internal/log"
	"fintrack/internal/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	logger.Info("starting fintrack-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	tokens := auth.NewTokenStore(cfg.TokenPath)
	if !tokens.HasToken() {
		logger.Error("no access token found, run fintrack-login first", log.FieldPath, cfg.TokenPath)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	client, err := api.NewClient(cfg.APIBaseURL,
		api.WithTokenSource(tokens),
		api.WithLimiter(limiter),
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithLogger(logger.WithComponent(log.ComponentAPI)))
	if err != nil {
		logger.Error("failed to create API client", log.FieldError, err)
		os.Exit(1)
	}

	// The worker always persists: keeping snapshots warm for the CLI is
	// its main job.
	snap, err := storage.NewSnapshotRepository(cfg.SQLiteCachePath, logger.WithComponent(log.ComponentStorage))
	if err != nil {
		logger.Error("failed to open snapshot repository", log.FieldError, err, log.FieldPath, cfg.SQLiteCachePath)
		os.Exit(1)
	}
	defer snap.Close()

	store := cache.NewStore(
		cache.WithLogger(logger.WithComponent(log.ComponentCache)),
		cache.WithSnapshotter(snap))
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Warm(ctx); err != nil {
		logger.Warn("cache warm failed, starting cold", log.FieldError, err)
	}

	janitor := cache.NewJanitor(logger.WithComponent(log.ComponentCache))
	janitor.Register(store)
	janitor.Start(cfg.JanitorInterval)
	defer janitor.Stop()

	coord := invalidation.NewCoordinator(store,
		invalidation.WithLogger(logger.WithComponent(log.ComponentInvalidation)))

	var consumer worker.Consumer
	if cfg.BusEnabled() {
		busCli, err := bus.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			uuid.NewString(), logger.WithComponent(log.ComponentBus))
		if err != nil {
			logger.Error("failed to connect to invalidation bus", log.FieldError, err)
			os.Exit(1)
		}
		defer busCli.Close()
		consumer = busCli
	} else {
		logger.Info("invalidation bus disabled - no AMQP_URL provided")
	}

	// Prime the cache so the refresh fan-out has fetchers to re-run.
	subs := prime(ctx, client, store, coord, logger)
	defer func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}()

	workerCfg := worker.DefaultConfig()
	workerCfg.RefreshInterval = cfg.RefreshInterval

	w := worker.New(coord, consumer, snap, workerCfg, logger)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", log.FieldError, err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Stop(shutdownCtx); err != nil {
		logger.Error("worker shutdown error", log.FieldError, err)
	}
	logger.Info("fintrack-worker stopped")
}

// prime fetches every report once so their cache entries exist with live
// fetchers, then subscribes to each key for the life of the process. The
// janitor prunes zero-subscriber entries; without the subscriptions the
// first sweep would drop everything the refresh fan-out targets.
// Individual fetch failures are fine; the periodic refresh retries.
func prime(ctx context.Context, client *api.Client, store *cache.Store, coord *invalidation.Coordinator, logger *log.Logger) []*cache.Subscription {
	transactions := services.NewTransactions(client, store, coord, logger)
	goals := services.NewGoals(client, store, coord, logger)
	profile := services.NewProfile(client, store, coord, logger)
	analytics := services.NewAnalytics(client, store, logger)

	reads := []struct {
		name string
		fn   func() error
	}{
		{"transactions", func() error {
			_, err := transactions.List(ctx, services.TransactionFilters{})
			return err
		}},
		{"goals", func() error { _, err := goals.List(ctx); return err }},
		{"profile", func() error { _, err := profile.Get(ctx); return err }},
		{"daily budget", func() error { _, err := analytics.DailyBudget(ctx); return err }},
		{"daily report", func() error { _, err := analytics.DailyReport(ctx, core.Date{}); return err }},
		{"monthly report", func() error { _, err := analytics.MonthlyReport(ctx, 0, 0); return err }},
		{"category breakdown", func() error {
			_, err := analytics.CategoryBreakdown(ctx, core.Date{}, core.Date{})
			return err
		}},
		{"goal progress", func() error { _, err := analytics.GoalProgress(ctx); return err }},
	}
	for _, read := range reads {
		if err := read.fn(); err != nil {
			logger.Warn("initial fetch failed", log.FieldOperation, read.name, log.FieldError, err)
		}
	}

	// The reads above install a fetcher on each key even when they fail,
	// so a nil-fetcher subscription keeps the existing one.
	pinned := []cache.Key{
		cache.TransactionsKey(),
		cache.GoalsKey(),
		cache.ProfileKey(),
		cache.AnalyticsKey(cache.ReportDailyBudget),
		cache.AnalyticsKey(cache.ReportDailyReport),
		cache.AnalyticsKey(cache.ReportMonthlyReport),
		cache.AnalyticsKey(cache.ReportCategoryBreakdown),
		cache.AnalyticsKey(cache.ReportGoalProgress),
	}
	subs := make([]*cache.Subscription, 0, len(pinned))
	for _, key := range pinned {
		subs = append(subs, store.Subscribe(key, nil))
	}
	return subs
}
