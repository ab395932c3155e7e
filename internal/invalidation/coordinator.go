// Package invalidation translates domain-level mutations into cache
// invalidation fan-outs, so no view needs to know the full derived-data
// dependency graph.
package invalidation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cache"
	"fintrack/internal/log"
)

// Category classifies a write operation for fan-out lookup.
type Category string

const (
	TransactionChanged Category = "transaction_changed"
	GoalChanged        Category = "goal_changed"
	ProfileChanged     Category = "profile_changed"
	AnalyticsRefresh   Category = "analytics_refresh"
	FullInvalidation   Category = "full_invalidation"
)

func (c Category) IsValid() bool {
	switch c {
	case TransactionChanged, GoalChanged, ProfileChanged, AnalyticsRefresh, FullInvalidation:
		return true
	default:
		return false
	}
}

func (c Category) String() string { return string(c) }

// Rules returns the static fan-out table for a category.
//
// The table is a deliberate over-approximation of the derived-data graph:
// a transaction touches the transaction list, every report, goal progress
// and the profile's current balance, so all of them refresh. Redundant
// refetches are cheaper than stale dashboards.
func Rules(c Category) []cache.Selector {
	switch c {
	case TransactionChanged:
		return []cache.Selector{
			cache.AllOfKind(cache.KindTransactions),
			cache.AllOfReport(cache.ReportDailyBudget),
			cache.AllOfReport(cache.ReportDailyReport),
			cache.AllOfReport(cache.ReportMonthlyReport),
			cache.AllOfReport(cache.ReportCategoryBreakdown),
			cache.AllOfReport(cache.ReportGoalProgress),
			cache.Exactly(cache.GoalsKey()),
			cache.Exactly(cache.ProfileKey()),
		}
	case GoalChanged:
		return []cache.Selector{
			cache.Exactly(cache.GoalsKey()),
			cache.AllOfReport(cache.ReportDailyBudget),
			cache.AllOfReport(cache.ReportGoalProgress),
			cache.AllOfReport(cache.ReportDailyReport),
		}
	case ProfileChanged:
		return []cache.Selector{
			cache.Exactly(cache.ProfileKey()),
			cache.AllOfReport(cache.ReportDailyBudget),
		}
	case AnalyticsRefresh:
		return []cache.Selector{
			cache.AllOfReport(cache.ReportDailyBudget),
			cache.AllOfReport(cache.ReportDailyReport),
			cache.AllOfReport(cache.ReportMonthlyReport),
			cache.AllOfReport(cache.ReportCategoryBreakdown),
			cache.AllOfReport(cache.ReportGoalProgress),
		}
	case FullInvalidation:
		return []cache.Selector{
			cache.AllOfKind(cache.KindTransactions),
			cache.AllOfKind(cache.KindAnalytics),
			cache.Exactly(cache.GoalsKey()),
			cache.Exactly(cache.ProfileKey()),
		}
	default:
		return nil
	}
}

// Publisher broadcasts a mutation category to other fintrack processes.
type Publisher interface {
	Publish(ctx context.Context, c Category) error
}

// Coordinator issues the fan-out for each mutation against the shared
// cache. Callers invoke OnMutation only after the mutation's own request
// succeeded; a failed write must produce zero invalidations.
type Coordinator struct {
	store     *cache.Store
	publisher Publisher
	logger    *log.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher broadcasts every locally-handled mutation on the bus.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func NewCoordinator(store *cache.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentInvalidation),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMutation applies the category's fan-out to the local cache and, when a
// bus is configured, broadcasts it. It returns once every invalidation has
// been issued; revalidation completion is the cache's concern, and an
// individual revalidation failure never fails this call.
func (c *Coordinator) OnMutation(ctx context.Context, category Category) error {
	if err := c.Apply(ctx, category); err != nil {
		return err
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, category); err != nil {
			// local coherency is already handled; the bus is best effort
			c.logger.WarnContext(ctx, "failed to broadcast mutation",
				log.FieldCategory, category.String(),
				log.FieldError, err)
		}
	}
	return nil
}

// Apply performs the local fan-out only. Used directly when handling
// categories received from the bus, so remote events are not re-broadcast.
func (c *Coordinator) Apply(ctx context.Context, category Category) error {
	selectors := Rules(category)
	if selectors == nil {
		return fmt.Errorf("unknown mutation category %q", category)
	}

	invalidated := 0
	g, gctx := errgroup.WithContext(ctx)
	results := make([]int, len(selectors))
	for i, sel := range selectors {
		i, sel := i, sel
		g.Go(func() error {
			results[i] = c.store.InvalidateMatching(gctx, sel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, n := range results {
		invalidated += n
	}

	c.logger.DebugContext(ctx, "mutation fan-out issued",
		log.FieldCategory, category.String(),
		log.FieldKeyCount, invalidated)
	return nil
}
