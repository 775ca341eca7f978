package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/metrics"
	"github.com/nhle/notification-center/internal/model"
)

const (
	// DefaultStaleAfter is how long a fetched snapshot is considered fresh.
	DefaultStaleAfter = 30 * time.Second

	// DefaultFetchTimeout bounds a shared fetch once it no longer follows
	// the cancellation of the caller that started it.
	DefaultFetchTimeout = 2 * time.Minute
)

// FetchFailure is returned by Load when the gateway could not deliver the
// notification set. The live snapshot is left untouched.
type FetchFailure struct {
	Err error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetching notifications: %v", e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// RebaseFunc re-applies pending local changes on top of a freshly fetched
// snapshot. It must return a new snapshot and leave its input untouched.
type RebaseFunc func(*model.Snapshot) *model.Snapshot

// Persister mirrors fetched snapshots somewhere durable.
type Persister interface {
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
}

// Store holds the current notification snapshot.
//
// Reads are lock-free. Every transition goes through a single mutex and
// publishes a brand new snapshot, so a snapshot handed out by Get is
// never modified afterwards.
type Store struct {
	gw gateway.Gateway

	current atomic.Pointer[model.Snapshot]

	// mu serializes transitions.
	mu sync.Mutex

	// lastFetch is the UnixNano time of the last successful Load, 0 if none.
	lastFetch atomic.Int64
	loads     atomic.Uint64

	staleAfter   time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	rebase       RebaseFunc
	persister    Persister
	persistMu    sync.Mutex
	persisted    uint64

	fetches singleflight.Group

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int

	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Used by tests to control staleness.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithStaleAfter overrides DefaultStaleAfter.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithPersister mirrors every fetched snapshot to p.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger for fetch and persistence events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithMetrics records fetch outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates an empty Store backed by gw.
func New(gw gateway.Gateway, opts ...Option) *Store {
	s := &Store{
		gw:           gw,
		staleAfter:   DefaultStaleAfter,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		subs:         make(map[int]chan struct{}),
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(model.Empty())
	return s
}

// SetRebaser installs the hook applied to every fetched snapshot before
// it is published.
func (s *Store) SetRebaser(fn RebaseFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebase = fn
}

// Get returns the live snapshot. It never blocks.
func (s *Store) Get() *model.Snapshot {
	return s.current.Load()
}

// IsStale reports whether the snapshot needs a refetch: either nothing
// has been fetched yet or the last fetch is older than the threshold.
func (s *Store) IsStale() bool {
	last := s.lastFetch.Load()
	if last == 0 {
		return true
	}
	return s.now().Sub(time.Unix(0, last)) > s.staleAfter
}

// HasFetched reports whether at least one Load has succeeded.
func (s *Store) HasFetched() bool {
	return s.lastFetch.Load() != 0
}

// LastFetch returns the time of the last successful Load.
func (s *Store) LastFetch() time.Time {
	last := s.lastFetch.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}

// Loads returns how many fetched snapshots have been published. It lets
// callers detect that server data replaced the snapshot they were working
// against.
func (s *Store) Loads() uint64 {
	return s.loads.Load()
}

// Load fetches the full notification set and publishes it. Concurrent
// calls share a single remote fetch. On failure the live snapshot is
// unchanged and the error is a *FetchFailure.
//
// The shared fetch is detached from ctx: a caller whose ctx ends gets
// ctx.Err() back at once, while the fetch carries on for the others and
// still publishes its result.
func (s *Store) Load(ctx context.Context) (*model.Snapshot, error) {
	ch := s.fetches.DoChan("fetch", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.load(fetchCtx)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*model.Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) load(ctx context.Context) (*model.Snapshot, error) {
	res, err := s.gw.FetchNotifications(ctx)
	if err != nil {
		s.metrics.ObserveFetch("failure")
		s.log.Warn("notification fetch failed", "error", err)
		return nil, &FetchFailure{Err: err}
	}

	now := s.now()
	fetched := model.NewSnapshot(res.Pinned, res.Notifications)

	s.mu.Lock()
	next := fetched
	if s.rebase != nil {
		next = s.rebase(fetched)
	}
	next.FetchedAt = now
	next.Version = s.Get().Version + 1
	s.current.Store(next)
	s.lastFetch.Store(now.UnixNano())
	s.loads.Add(1)
	s.mu.Unlock()

	s.metrics.ObserveFetch("success")
	s.log.Debug("notifications loaded",
		"version", next.Version,
		"pinned", len(next.Pinned),
		"notifications", len(next.Notifications),
	)
	s.notify()
	s.persist(ctx, fetched, next.Version)

	return next, nil
}

// persist mirrors the server view of a load. Older versions never
// overwrite newer ones when two loads finish out of order.
func (s *Store) persist(ctx context.Context, fetched *model.Snapshot, version uint64) {
	if s.persister == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persisted {
		return
	}

	out := fetched.Clone()
	out.Version = version
	out.FetchedAt = s.LastFetch()
	if err := s.persister.SaveSnapshot(ctx, out); err != nil {
		s.log.Warn("persisting snapshot failed", "error", err)
		return
	}
	s.persisted = version
}

// Update applies fn to the live snapshot and publishes the result. fn
// must build a new snapshot rather than modify its argument; returning
// nil or the argument itself means no change. Update returns the snapshot
// fn saw and the snapshot that is live afterwards.
func (s *Store) Update(fn func(cur *model.Snapshot) *model.Snapshot) (prev, next *model.Snapshot) {
	s.mu.Lock()
	prev = s.Get()
	next = fn(prev)
	if next == nil || next == prev {
		s.mu.Unlock()
		return prev, prev
	}
	next.Version = prev.Version + 1
	next.FetchedAt = prev.FetchedAt
	s.current.Store(next)
	s.mu.Unlock()

	s.notify()
	return prev, next
}

// CompareAndRestore replaces the live snapshot with a copy of replacement
// only if the live snapshot is still expected. It reports whether the
// swap happened.
func (s *Store) CompareAndRestore(expected, replacement *model.Snapshot) bool {
	s.mu.Lock()
	cur := s.Get()
	if cur != expected {
		s.mu.Unlock()
		return false
	}
	next := replacement.Clone()
	next.Version = cur.Version + 1
	s.current.Store(next)
	s.mu.Unlock()

	s.notify()
	return true
}

// Seed installs a snapshot obtained elsewhere (for example from disk)
// without marking it fresh, so IsStale keeps reporting true until a real
// fetch succeeds. Seed is ignored once a fetch has succeeded.
func (s *Store) Seed(snap *model.Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	if s.HasFetched() {
		s.mu.Unlock()
		return
	}
	next := model.NewSnapshot(snap.Pinned, snap.Notifications)
	next.FetchedAt = snap.FetchedAt
	next.Version = s.Get().Version + 1
	s.current.Store(next)
	s.mu.Unlock()

	s.notify()
}

// Subscribe returns a channel that receives a value after every published
// change. Notifications coalesce: a slow reader sees at most one pending
// signal. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	return ch, func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
