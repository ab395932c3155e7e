package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/log"
)

// Fetcher loads the current value for a key from the remote API.
type Fetcher func(ctx context.Context, key Key) (any, error)

// entry is the unit of shared state. All fields are guarded by Store.mu;
// the generation counter decides which in-flight fetch owns the entry, so a
// slow superseded fetch can never overwrite a newer result.
type entry struct {
	key      Key
	value    any
	hasValue bool
	stale    bool
	loading  bool
	err      error
	gen      uint64
	cancel   context.CancelFunc
	fetcher  Fetcher
	subs     map[*Subscription]struct{}
}

// Store is the process-wide response cache. It is created once at startup
// and injected into everything that reads from or invalidates it; there is
// deliberately no package-level instance.
//
// Semantics: stale-while-revalidate. Invalidation marks an entry stale
// synchronously, cancels any in-flight fetch for it, and schedules a fresh
// one; the previous value stays visible until the new one commits. A failed
// revalidation keeps the last-good value and records the error on the entry.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	logger  *log.Logger
	snap    Snapshotter
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithLogger(logger *log.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithSnapshotter persists committed values so a later process start can
// serve them as stale entries before the first revalidation.
func WithSnapshotter(snap Snapshotter) StoreOption {
	return func(s *Store) { s.snap = snap }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentCache),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscription is a live registration of interest in one key.
type Subscription struct {
	store   *Store
	entry   *entry
	updates chan struct{}
	once    sync.Once
}

// Current returns the entry's present value, whether a fetch is in flight,
// and the last fetch error. A stale value is still returned as the value.
func (sub *Subscription) Current() (value any, loading bool, err error) {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	return sub.entry.value, sub.entry.loading, sub.entry.err
}

// Updates signals (coalesced) whenever the entry commits a value or records
// a fetch failure.
func (sub *Subscription) Updates() <-chan struct{} {
	return sub.updates
}

// Cancel removes the subscription. The entry itself stays until the janitor
// prunes it.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		delete(sub.entry.subs, sub)
		sub.store.mu.Unlock()
	})
}

// Subscribe registers interest in key. The first subscriber triggers exactly
// one fetch; concurrent subscribers to the same missing key share it.
func (s *Store) Subscribe(key Key, fetcher Fetcher) *Subscription {
	s.mu.Lock()
	e := s.getOrCreateLocked(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}
	sub := &Subscription{store: s, entry: e, updates: make(chan struct{}, 1)}
	e.subs[sub] = struct{}{}

	needFetch := (!e.hasValue || e.stale) && !e.loading && e.fetcher != nil
	var gen uint64
	var fctx context.Context
	var f Fetcher
	if needFetch {
		gen, fctx, f = s.beginFetchLocked(e)
	}
	s.mu.Unlock()

	if needFetch {
		go s.fetchInto(fctx, e, gen, f) //nolint:errcheck // recorded on the entry
	}
	return sub
}

// Fetch is the one-shot read path: it returns the cached value if present
// (kicking off a background revalidation when the entry is stale) and
// otherwise fetches it, deduplicating concurrent callers for the same key.
func (s *Store) Fetch(ctx context.Context, key Key, fetcher Fetcher) (any, error) {
	s.mu.Lock()
	e := s.getOrCreateLocked(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}
	if e.hasValue {
		value, stale := e.value, e.stale
		s.mu.Unlock()
		if stale {
			s.Invalidate(ctx, key)
		}
		return value, nil
	}
	s.mu.Unlock()

	value, err, _ := s.group.Do(key.String(), func() (any, error) {
		s.mu.Lock()
		if e.hasValue {
			v := e.value
			s.mu.Unlock()
			return v, nil
		}
		gen, fctx, f := s.beginFetchLocked(e)
		s.mu.Unlock()
		return s.fetchValue(fctx, e, gen, f)
	})
	return value, err
}

// Invalidate marks key stale and schedules a revalidation. The stale mark
// happens synchronously before this returns; the returned channel receives
// the revalidation outcome once the new value is committed (or the fetch
// failed) and callers that only need to issue the invalidation may drop it.
func (s *Store) Invalidate(ctx context.Context, key Key) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	e, ok := s.entries[key.String()]
	if !ok {
		s.mu.Unlock()
		done <- nil
		close(done)
		return done
	}
	e.stale = true
	if e.fetcher == nil {
		// write-only entry: stale mark is all we can do
		s.mu.Unlock()
		done <- nil
		close(done)
		return done
	}
	gen, fctx, f := s.beginFetchLocked(e)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "invalidated cache key", log.FieldCacheKey, key.String())

	go func() {
		err := s.fetchInto(fctx, e, gen, f)
		done <- err
		close(done)
	}()
	return done
}

// InvalidateMatching invalidates every currently-known key the selector
// matches. It operates on a snapshot of the key set: keys created while the
// sweep runs are not retroactively included. Returns the number of keys
// invalidated.
func (s *Store) InvalidateMatching(ctx context.Context, sel Selector) int {
	s.mu.Lock()
	var matched []Key
	for _, e := range s.entries {
		if sel.Matches(e.key) {
			matched = append(matched, e.key)
		}
	}
	s.mu.Unlock()

	for _, key := range matched {
		s.Invalidate(ctx, key)
	}
	return len(matched)
}

// Write commits a value directly, without a fetch. Any in-flight fetch for
// the key is superseded.
func (s *Store) Write(key Key, value any) {
	s.mu.Lock()
	e := s.getOrCreateLocked(key)
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.loading = false
	s.commitLocked(e, value)
	subs := s.subscribersLocked(e)
	s.mu.Unlock()

	s.saveSnapshot(key, value)
	notify(subs)
}

// Keys returns a snapshot of all currently-known keys.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.entries))
	for _, e := range s.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// EntryState describes one entry for inspection.
type EntryState struct {
	Value    any
	HasValue bool
	Stale    bool
	Loading  bool
	Err      error
}

// State reports the entry for key, if any.
func (s *Store) State(key Key) (EntryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok {
		return EntryState{}, false
	}
	return EntryState{Value: e.value, HasValue: e.hasValue, Stale: e.stale, Loading: e.loading, Err: e.err}, true
}

// Reset drops every entry and clears persisted snapshots. Used on logout.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	for _, e := range s.entries {
		e.gen++
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
	}
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	if s.snap != nil {
		if err := s.snap.Clear(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to clear cache snapshots", log.FieldError, err)
		}
	}
	s.logger.InfoContext(ctx, "cache reset")
}

// Warm loads persisted snapshots as stale entries. Values come back as
// json.RawMessage; typed readers decode them on first access.
func (s *Store) Warm(ctx context.Context) error {
	if s.snap == nil {
		return nil
	}
	snapshots, err := s.snap.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cache snapshots: %w", err)
	}

	s.mu.Lock()
	warmed := 0
	for _, snap := range snapshots {
		key, err := ParseKey(snap.Key)
		if err != nil {
			s.logger.Warn("skipping unrecognized snapshot key", log.FieldCacheKey, snap.Key)
			continue
		}
		e := s.getOrCreateLocked(key)
		if e.hasValue {
			continue
		}
		e.value = json.RawMessage(snap.Value)
		e.hasValue = true
		e.stale = true
		warmed++
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "cache warmed from snapshots", log.FieldKeyCount, warmed)
	return nil
}

// PruneIdle drops entries that have no subscribers and no in-flight fetch.
// Called periodically by the janitor.
func (s *Store) PruneIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, e := range s.entries {
		if len(e.subs) == 0 && !e.loading {
			delete(s.entries, id)
			pruned++
		}
	}
	return pruned
}

// Close cancels all in-flight fetches.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.gen++
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		e.loading = false
	}
}

func (s *Store) getOrCreateLocked(key Key) *entry {
	if e, ok := s.entries[key.String()]; ok {
		return e
	}
	e := &entry{key: key, subs: make(map[*Subscription]struct{})}
	s.entries[key.String()] = e
	return e
}

// beginFetchLocked claims the entry for a new fetch generation, cancelling
// whatever fetch was previously in flight.
func (s *Store) beginFetchLocked(e *entry) (uint64, context.Context, Fetcher) {
	e.gen++
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.loading = true
	return e.gen, ctx, e.fetcher
}

// fetchInto runs the fetch and commits the result if the generation is
// still current.
func (s *Store) fetchInto(ctx context.Context, e *entry, gen uint64, fetch Fetcher) error {
	_, err := s.fetchValue(ctx, e, gen, fetch)
	return err
}

func (s *Store) fetchValue(ctx context.Context, e *entry, gen uint64, fetch Fetcher) (any, error) {
	value, err := fetch(ctx, e.key)

	s.mu.Lock()
	if e.gen != gen {
		// superseded by a newer invalidation or write; its fetch owns
		// the entry now
		s.mu.Unlock()
		return value, err
	}
	e.loading = false
	e.cancel = nil
	if err != nil {
		e.err = err
		subs := s.subscribersLocked(e)
		s.mu.Unlock()
		notify(subs)
		s.logger.Warn("cache revalidation failed",
			log.FieldCacheKey, e.key.String(),
			log.FieldError, err)
		return value, err
	}
	s.commitLocked(e, value)
	subs := s.subscribersLocked(e)
	s.mu.Unlock()

	s.saveSnapshot(e.key, value)
	notify(subs)
	return value, nil
}

func (s *Store) commitLocked(e *entry, value any) {
	e.value = value
	e.hasValue = true
	e.stale = false
	e.err = nil
}

func (s *Store) subscribersLocked(e *entry) []*Subscription {
	subs := make([]*Subscription, 0, len(e.subs))
	for sub := range e.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (s *Store) saveSnapshot(key Key, value any) {
	if s.snap == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cannot snapshot cache value", log.FieldCacheKey, key.String(), log.FieldError, err)
		return
	}
	if err := s.snap.Save(context.Background(), key.String(), data, time.Now()); err != nil {
		s.logger.Warn("cannot persist cache snapshot", log.FieldCacheKey, key.String(), log.FieldError, err)
	}
}

// replaceDecoded swaps a snapshot-warmed raw value for its decoded form
// without touching staleness, generation or any in-flight revalidation.
func (s *Store) replaceDecoded(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok || !e.hasValue {
		return
	}
	if _, raw := e.value.(json.RawMessage); raw {
		e.value = value
	}
}

func notify(subs []*Subscription) {
	for _, sub := range subs {
		select {
		case sub.updates <- struct{}{}:
		default:
		}
	}
}

// FetchAs is the typed read path used by the service layer. Snapshot-warmed
// entries hold raw JSON; they are decoded on first typed access and written
// back so later reads get the concrete type.
func FetchAs[T any](ctx context.Context, s *Store, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	value, err := s.Fetch(ctx, key, func(ctx context.Context, _ Key) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	switch v := value.(type) {
	case T:
		return v, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("decode cached snapshot for %s: %w", key.String(), err)
		}
		s.replaceDecoded(key, out)
		return out, nil
	default:
		return zero, fmt.Errorf("unexpected cached value type %T for %s", value, key.String())
	}
}
