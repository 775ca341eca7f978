// Package center is the presentation-facing surface of the notification
// center. It combines the snapshot cache, the optimistic mutation
// coordinator and the view projection into one object per session.
package center

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/notification-center/internal/cache"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/mutation"
	"github.com/nhle/notification-center/internal/projection"
)

// State is everything a view needs to render the notification center.
type State struct {
	Pinned        []model.Notification
	Notifications []model.Notification

	UnreadCount   int
	StatusFilter  projection.StatusFilter
	Search        string
	Page          int
	TotalPages    int
	FilteredCount int

	// IsLoading is true only while the very first load is in flight.
	IsLoading bool

	IsStale          bool
	LastSync         time.Time
	PendingMutations int

	// LastError is the failure of the most recent fetch, nil once a fetch
	// succeeds. The snapshot above is still the last good one.
	LastError error
}

// Center owns the filter state for one session and exposes the
// notification operations.
type Center struct {
	store *cache.Store
	coord *mutation.Coordinator
	log   *slog.Logger

	mu      sync.Mutex
	filter  projection.FilterState
	initial int
	lastErr error
	subs    map[int]chan struct{}
	nextSub int
}

// New creates a Center. store and coord must share the same gateway.
func New(store *cache.Store, coord *mutation.Coordinator, log *slog.Logger) *Center {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Center{
		store:  store,
		coord:  coord,
		log:    log,
		filter: projection.DefaultFilterState(),
		subs:   make(map[int]chan struct{}),
	}
}

// State projects the live snapshot through the current filter state.
func (c *Center) State() State {
	c.mu.Lock()
	filter := c.filter
	loading := c.initial > 0
	lastErr := c.lastErr
	c.mu.Unlock()

	v := projection.Project(c.store.Get(), filter)
	return State{
		Pinned:           v.Pinned,
		Notifications:    v.Items,
		UnreadCount:      v.UnreadCount,
		StatusFilter:     filter.Status,
		Search:           filter.Search,
		Page:             v.Page,
		TotalPages:       v.TotalPages,
		FilteredCount:    v.FilteredCount,
		IsLoading:        loading,
		IsStale:          c.store.IsStale(),
		LastSync:         c.store.LastFetch(),
		PendingMutations: c.coord.Pending(),
		LastError:        lastErr,
	}
}

// Snapshot returns the live snapshot without any projection.
func (c *Center) Snapshot() *model.Snapshot {
	return c.store.Get()
}

// Load fetches from the server only when the cached snapshot is stale.
func (c *Center) Load(ctx context.Context) error {
	if !c.store.IsStale() {
		return nil
	}
	return c.fetch(ctx)
}

// Refresh fetches from the server unconditionally.
func (c *Center) Refresh(ctx context.Context) error {
	return c.fetch(ctx)
}

// IsStale reports whether the cached snapshot needs refetching.
func (c *Center) IsStale() bool {
	return c.store.IsStale()
}

func (c *Center) fetch(ctx context.Context) error {
	initial := !c.store.HasFetched()
	if initial {
		c.mu.Lock()
		c.initial++
		c.mu.Unlock()
		c.notify()

		defer func() {
			c.mu.Lock()
			c.initial--
			c.mu.Unlock()
			c.notify()
		}()
	}

	_, err := c.store.Load(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Only this caller gave up; the shared fetch decides the outcome.
		return err
	}

	c.mu.Lock()
	changed := err != nil || c.lastErr != nil
	c.lastErr = err
	c.mu.Unlock()
	if changed && !initial {
		c.notify()
	}
	return err
}

// MarkRead optimistically marks id as read.
func (c *Center) MarkRead(ctx context.Context, id string) (mutation.Result, error) {
	return c.coord.MarkRead(ctx, id)
}

// DeleteNotification optimistically deletes id.
func (c *Center) DeleteNotification(ctx context.Context, id string) (mutation.Result, error) {
	return c.coord.Delete(ctx, id)
}

// SetStatusFilter changes the status filter and resets to page 1.
func (c *Center) SetStatusFilter(f projection.StatusFilter) {
	c.mu.Lock()
	c.filter = c.filter.WithStatus(f)
	c.mu.Unlock()
	c.notify()
}

// SetSearch changes the search text and resets to page 1.
func (c *Center) SetSearch(q string) {
	c.mu.Lock()
	c.filter = c.filter.WithSearch(q)
	c.mu.Unlock()
	c.notify()
}

// SetPage moves to page p, clamped to the pages that currently exist.
func (c *Center) SetPage(p int) {
	c.mu.Lock()
	next := c.filter.WithPage(p)
	v := projection.Project(c.store.Get(), next)
	next.Page = v.Page
	c.filter = next
	c.mu.Unlock()
	c.notify()
}

// NextPage and PrevPage step through pages relative to the visible one.
func (c *Center) NextPage() { c.SetPage(c.State().Page + 1) }
func (c *Center) PrevPage() { c.SetPage(c.State().Page - 1) }

// Subscribe returns a channel signalled whenever State may have changed,
// either through the cache or through filter and loading changes. Signals
// coalesce. The returned func unsubscribes.
func (c *Center) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	storeCh, storeCancel := c.store.Subscribe()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-storeCh:
				signal(ch)
			}
		}
	}()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			storeCancel()
			close(done)
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Center) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		signal(ch)
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
