package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/invalidation"
)

// testEnv wires a real client against an httptest server with a cache
// seeded through counting fetchers, so tests can observe exactly which
// keys a mutation refetched.
type testEnv struct {
	store *cache.Store
	coord *invalidation.Coordinator
	api   *api.Client

	mu      sync.Mutex
	fetches map[string]int
}

func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := api.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	env := &testEnv{
		store:   cache.NewStore(),
		api:     client,
		fetches: make(map[string]int),
	}
	env.coord = invalidation.NewCoordinator(env.store)
	t.Cleanup(env.store.Close)
	return env
}

func (env *testEnv) fetcher(_ context.Context, key cache.Key) (any, error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.fetches[key.String()]++
	return env.fetches[key.String()], nil
}

func (env *testEnv) count(key cache.Key) int {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.fetches[key.String()]
}

func seededKeys() []cache.Key {
	return []cache.Key{
		cache.TransactionsKey(),
		cache.TransactionsQueryKey(url.Values{"page": {"2"}}),
		cache.GoalsKey(),
		cache.ProfileKey(),
		cache.AnalyticsKey(cache.ReportDailyBudget),
		cache.AnalyticsKey(cache.ReportDailyReport),
		cache.AnalyticsKey(cache.ReportMonthlyReport),
		cache.AnalyticsKey(cache.ReportCategoryBreakdown),
		cache.AnalyticsKey(cache.ReportGoalProgress),
	}
}

// seed populates every key through the counting fetcher and waits for the
// initial fetches to settle.
func (env *testEnv) seed(t *testing.T) {
	t.Helper()
	keys := seededKeys()
	for _, key := range keys {
		env.store.Subscribe(key, env.fetcher)
	}
	waitFor(t, func() bool {
		for _, key := range keys {
			if env.count(key) != 1 {
				return false
			}
			st, ok := env.store.State(key)
			if !ok || st.Loading {
				return false
			}
		}
		return true
	})
}

func (env *testEnv) requireCounts(t *testing.T, refetched []cache.Key) {
	t.Helper()
	want := make(map[string]int)
	for _, key := range seededKeys() {
		want[key.String()] = 1
	}
	for _, key := range refetched {
		want[key.String()] = 2
	}

	waitFor(t, func() bool {
		for _, key := range refetched {
			if env.count(key) != 2 {
				return false
			}
		}
		return true
	})
	for _, key := range seededKeys() {
		if got := env.count(key); got != want[key.String()] {
			t.Errorf("%s fetched %d times, want %d", key, got, want[key.String()])
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
