package invalidation

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"fintrack/internal/cache"
)

func TestRules_FanOutTable(t *testing.T) {
	tests := []struct {
		category Category
		want     []string
	}{
		{
			category: TransactionChanged,
			want: []string{
				"exact:/goals",
				"exact:/user/profile",
				"kind:transactions",
				"report:category-breakdown",
				"report:daily-budget",
				"report:daily-report",
				"report:goal-progress",
				"report:monthly-report",
			},
		},
		{
			category: GoalChanged,
			want: []string{
				"exact:/goals",
				"report:daily-budget",
				"report:daily-report",
				"report:goal-progress",
			},
		},
		{
			category: ProfileChanged,
			want: []string{
				"exact:/user/profile",
				"report:daily-budget",
			},
		},
		{
			category: AnalyticsRefresh,
			want: []string{
				"report:category-breakdown",
				"report:daily-budget",
				"report:daily-report",
				"report:goal-progress",
				"report:monthly-report",
			},
		},
		{
			category: FullInvalidation,
			want: []string{
				"exact:/goals",
				"exact:/user/profile",
				"kind:analytics",
				"kind:transactions",
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got := make([]string, 0, len(Rules(tt.category)))
			for _, sel := range Rules(tt.category) {
				got = append(got, sel.String())
			}
			sort.Strings(got)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("fan-out mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCategory_IsValid(t *testing.T) {
	for _, c := range []Category{TransactionChanged, GoalChanged, ProfileChanged, AnalyticsRefresh, FullInvalidation} {
		if !c.IsValid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if Category("transaction_deleted").IsValid() {
		t.Error("unknown category should be invalid")
	}
}

// fetchCounter seeds a store and records how many times each key was fetched.
type fetchCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFetchCounter() *fetchCounter {
	return &fetchCounter{counts: make(map[string]int)}
}

func (fc *fetchCounter) fetcher(_ context.Context, key cache.Key) (any, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.counts[key.String()]++
	return fc.counts[key.String()], nil
}

func (fc *fetchCounter) count(key cache.Key) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.counts[key.String()]
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

func seedStore(t *testing.T, store *cache.Store, fc *fetchCounter, keys []cache.Key) {
	t.Helper()
	for _, key := range keys {
		store.Subscribe(key, fc.fetcher)
	}
	waitFor(t, func() bool {
		for _, key := range keys {
			if fc.count(key) != 1 {
				return false
			}
		}
		return true
	})
	waitFor(t, func() bool {
		for _, key := range keys {
			st, ok := store.State(key)
			if !ok || st.Loading {
				return false
			}
		}
		return true
	})
}

func datedDailyReportKey() cache.Key {
	return cache.AnalyticsQueryKey(cache.ReportDailyReport, url.Values{"report_date": {"2026-08-30"}})
}

func allKeys() []cache.Key {
	return []cache.Key{
		cache.TransactionsKey(),
		cache.TransactionsQueryKey(url.Values{"page": {"2"}}),
		cache.GoalsKey(),
		cache.ProfileKey(),
		cache.AnalyticsKey(cache.ReportDailyBudget),
		cache.AnalyticsKey(cache.ReportDailyReport),
		datedDailyReportKey(),
		cache.AnalyticsKey(cache.ReportMonthlyReport),
		cache.AnalyticsKey(cache.ReportCategoryBreakdown),
		cache.AnalyticsKey(cache.ReportGoalProgress),
	}
}

func TestCoordinator_TransactionChangedSweepsEverything(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	fc := newFetchCounter()
	keys := allKeys()
	seedStore(t, store, fc, keys)

	coord := NewCoordinator(store)
	if err := coord.OnMutation(context.Background(), TransactionChanged); err != nil {
		t.Fatalf("OnMutation: %v", err)
	}

	// every seeded key is in this category's blast radius, including the
	// filtered transaction page and the dated daily report hit only by the
	// kind-wide and report-wide selectors
	waitFor(t, func() bool {
		for _, key := range keys {
			if fc.count(key) != 2 {
				return false
			}
		}
		return true
	})
}

func TestCoordinator_TransactionChangedRefreshesDatedReport(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	fc := newFetchCounter()
	dated := datedDailyReportKey()
	seedStore(t, store, fc, []cache.Key{dated})

	coord := NewCoordinator(store)
	if err := coord.OnMutation(context.Background(), TransactionChanged); err != nil {
		t.Fatalf("OnMutation: %v", err)
	}

	// the dated variant shares its report's blast radius with the base key
	waitFor(t, func() bool { return fc.count(dated) == 2 })
}

func TestCoordinator_GoalChangedLeavesTransactionsAlone(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	fc := newFetchCounter()
	keys := allKeys()
	seedStore(t, store, fc, keys)

	coord := NewCoordinator(store)
	if err := coord.OnMutation(context.Background(), GoalChanged); err != nil {
		t.Fatalf("OnMutation: %v", err)
	}

	refetched := []cache.Key{
		cache.GoalsKey(),
		cache.AnalyticsKey(cache.ReportDailyBudget),
		cache.AnalyticsKey(cache.ReportGoalProgress),
		cache.AnalyticsKey(cache.ReportDailyReport),
		datedDailyReportKey(),
	}
	waitFor(t, func() bool {
		for _, key := range refetched {
			if fc.count(key) != 2 {
				return false
			}
		}
		return true
	})

	untouched := []cache.Key{
		cache.TransactionsKey(),
		cache.TransactionsQueryKey(url.Values{"page": {"2"}}),
		cache.ProfileKey(),
		cache.AnalyticsKey(cache.ReportMonthlyReport),
		cache.AnalyticsKey(cache.ReportCategoryBreakdown),
	}
	for _, key := range untouched {
		if got := fc.count(key); got != 1 {
			t.Errorf("%s refetched %d times, want 1", key, got)
		}
	}
}

func TestCoordinator_ProfileChangedNarrowFanOut(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	fc := newFetchCounter()
	keys := allKeys()
	seedStore(t, store, fc, keys)

	coord := NewCoordinator(store)
	if err := coord.Apply(context.Background(), ProfileChanged); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	waitFor(t, func() bool {
		return fc.count(cache.ProfileKey()) == 2 &&
			fc.count(cache.AnalyticsKey(cache.ReportDailyBudget)) == 2
	})
	if got := fc.count(cache.GoalsKey()); got != 1 {
		t.Errorf("/goals refetched %d times, want 1", got)
	}
	if got := fc.count(cache.TransactionsKey()); got != 1 {
		t.Errorf("/transactions refetched %d times, want 1", got)
	}
}

func TestCoordinator_AnalyticsRefreshSurvivesIdlePrune(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	fc := newFetchCounter()

	reports := []cache.Key{
		cache.AnalyticsKey(cache.ReportDailyBudget),
		cache.AnalyticsKey(cache.ReportDailyReport),
		cache.AnalyticsKey(cache.ReportMonthlyReport),
		cache.AnalyticsKey(cache.ReportCategoryBreakdown),
		cache.AnalyticsKey(cache.ReportGoalProgress),
	}
	for _, key := range reports {
		if _, err := store.Fetch(context.Background(), key, fc.fetcher); err != nil {
			t.Fatalf("Fetch %s: %v", key, err)
		}
	}

	// one-shot reads leave no subscribers; a long-lived process pins the
	// keys it keeps fresh so an idle prune cannot drop their fetchers
	subs := make([]*cache.Subscription, 0, len(reports))
	for _, key := range reports {
		subs = append(subs, store.Subscribe(key, nil))
	}
	defer func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}()

	if pruned := store.PruneIdle(); pruned != 0 {
		t.Fatalf("PruneIdle dropped %d pinned entries", pruned)
	}

	coord := NewCoordinator(store)
	if err := coord.Apply(context.Background(), AnalyticsRefresh); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	waitFor(t, func() bool {
		for _, key := range reports {
			if fc.count(key) != 2 {
				return false
			}
		}
		return true
	})
}

func TestCoordinator_UnknownCategory(t *testing.T) {
	coord := NewCoordinator(cache.NewStore())
	if err := coord.OnMutation(context.Background(), Category("bogus")); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

type recordingPublisher struct {
	mu         sync.Mutex
	categories []Category
	err        error
}

func (p *recordingPublisher) Publish(_ context.Context, c Category) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.categories = append(p.categories, c)
	return p.err
}

func (p *recordingPublisher) published() []Category {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Category(nil), p.categories...)
}

func TestCoordinator_OnMutationBroadcasts(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	pub := &recordingPublisher{}
	coord := NewCoordinator(store, WithPublisher(pub))

	if err := coord.OnMutation(context.Background(), GoalChanged); err != nil {
		t.Fatalf("OnMutation: %v", err)
	}
	if diff := cmp.Diff([]Category{GoalChanged}, pub.published()); diff != "" {
		t.Errorf("published categories (-want +got):\n%s", diff)
	}
}

func TestCoordinator_ApplyDoesNotBroadcast(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	pub := &recordingPublisher{}
	coord := NewCoordinator(store, WithPublisher(pub))

	if err := coord.Apply(context.Background(), GoalChanged); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := pub.published(); len(got) != 0 {
		t.Errorf("Apply must not broadcast, got %v", got)
	}
}

func TestCoordinator_PublishFailureDoesNotFailMutation(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	pub := &recordingPublisher{err: errors.New("broker down")}
	coord := NewCoordinator(store, WithPublisher(pub))

	if err := coord.OnMutation(context.Background(), ProfileChanged); err != nil {
		t.Fatalf("bus failure must not fail the mutation: %v", err)
	}
}
