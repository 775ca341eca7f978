package mutation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/notification-center/internal/cache"
	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/metrics"
	"github.com/nhle/notification-center/internal/model"
)

// DefaultCallTimeout bounds the remote call of a mutation. The call does
// not follow the cancellation of the caller that issued it.
const DefaultCallTimeout = 2 * time.Minute

// Op names a mutation kind.
type Op string

const (
	OpMarkRead Op = "mark_read"
	OpDelete   Op = "delete"
)

// State is the lifecycle of a single mutation.
type State int

const (
	Pending State = iota
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result describes how a mutation resolved.
type Result struct {
	// MutationID correlates log lines for one mutation.
	MutationID     string
	Op             Op
	NotificationID string
	State          State

	// Applied is true when an optimistic snapshot was published.
	Applied bool

	// NotFound is true when the server reported the target already gone.
	// Such a mutation is still Committed.
	NotFound bool
}

// MutationFailure is returned when the remote call failed and the
// optimistic change was rolled back.
type MutationFailure struct {
	Op             Op
	NotificationID string
	Err            error
}

func (e *MutationFailure) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.NotificationID, e.Err)
}

func (e *MutationFailure) Unwrap() error { return e.Err }

// Store is the part of the cache the coordinator works against.
type Store interface {
	Get() *model.Snapshot
	Update(fn func(cur *model.Snapshot) *model.Snapshot) (prev, next *model.Snapshot)
	CompareAndRestore(expected, replacement *model.Snapshot) bool
	SetRebaser(fn cache.RebaseFunc)
}

// pending is an in-flight mutation.
type pending struct {
	id     string
	op     Op
	target string

	// before is the snapshot the patch was applied to.
	before *model.Snapshot

	// published is the optimistic snapshot, nil if the patch changed nothing.
	published *model.Snapshot

	// server is the last fetched snapshot the patch was rebased onto, if any.
	server *model.Snapshot
}

// reference is the snapshot that holds the pre-mutation truth for target.
func (p *pending) reference() *model.Snapshot {
	if p.server != nil {
		return p.server
	}
	return p.before
}

// Coordinator applies mark-read and delete optimistically and reconciles
// them with the gateway's answer.
type Coordinator struct {
	store       Store
	gw          gateway.Gateway
	callTimeout time.Duration

	group singleflight.Group

	mu      sync.Mutex
	pending []*pending

	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for mutation outcomes.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithMetrics counts mutation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// New creates a Coordinator and registers it as the store's rebaser so a
// refetch that lands mid-flight keeps pending changes visible.
func New(store Store, gw gateway.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		gw:          gw,
		callTimeout: DefaultCallTimeout,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	store.SetRebaser(c.rebase)
	return c
}

// MarkRead marks id as read locally and then on the server.
func (c *Coordinator) MarkRead(ctx context.Context, id string) (Result, error) {
	return c.run(ctx, OpMarkRead, id)
}

// Delete removes id locally and then on the server.
func (c *Coordinator) Delete(ctx context.Context, id string) (Result, error) {
	return c.run(ctx, OpDelete, id)
}

// Pending returns the number of unresolved mutations.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// run coalesces identical in-flight mutations into one remote call.
//
// An issued mutation is never cancelled. If ctx ends first the caller
// gets ctx.Err() and a Pending result, and the mutation still resolves
// against the store for everyone else.
func (c *Coordinator) run(ctx context.Context, op Op, id string) (Result, error) {
	ch := c.group.DoChan(string(op)+":"+id, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()
		return c.execute(callCtx, op, id)
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res, r.Err
	case <-ctx.Done():
		return Result{Op: op, NotificationID: id, State: Pending}, ctx.Err()
	}
}

func (c *Coordinator) execute(ctx context.Context, op Op, id string) (Result, error) {
	m := &pending{
		id:     uuid.NewString(),
		op:     op,
		target: id,
	}

	// Registering inside the transition keeps it atomic with respect to
	// a concurrent Load and its rebase.
	prev, next := c.store.Update(func(cur *model.Snapshot) *model.Snapshot {
		c.mu.Lock()
		c.pending = append(c.pending, m)
		c.mu.Unlock()
		return patch(op, cur, id)
	})
	m.before = prev
	if next != prev {
		m.published = next
	}

	res := Result{
		MutationID:     m.id,
		Op:             op,
		NotificationID: id,
		State:          Pending,
		Applied:        m.published != nil,
	}

	log := c.log.With("mutation_id", m.id, "op", string(op), "notification_id", id)
	log.Debug("mutation applied", "applied", res.Applied)

	err := c.call(ctx, op, id)

	switch {
	case err == nil:
		c.unregister(m)
		res.State = Committed
		c.metrics.ObserveMutation(string(op), "committed")
		log.Debug("mutation committed")
		return res, nil

	case errors.Is(err, gateway.ErrNotFound):
		c.unregister(m)
		res.State = Committed
		res.NotFound = true
		c.metrics.ObserveMutation(string(op), "not_found")
		log.Info("mutation target already gone on server")
		return res, nil

	default:
		c.unregister(m)
		c.rollback(m)
		res.State = RolledBack
		c.metrics.ObserveMutation(string(op), "rolled_back")
		log.Warn("mutation rolled back", "error", err)
		return res, &MutationFailure{Op: op, NotificationID: id, Err: err}
	}
}

func (c *Coordinator) call(ctx context.Context, op Op, id string) error {
	switch op {
	case OpMarkRead:
		return c.gw.MarkRead(ctx, id)
	case OpDelete:
		return c.gw.DeleteNotification(ctx, id)
	default:
		return fmt.Errorf("unknown mutation op %q", op)
	}
}

func (c *Coordinator) unregister(m *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.pending {
		if p == m {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return
		}
	}
}

// rollback restores the pre-mutation state. When nothing else touched the
// store since the optimistic publish the captured snapshot is restored
// wholesale. Otherwise only this mutation's patch is reverted, so changes
// made by other mutations or refetches in the meantime survive.
func (c *Coordinator) rollback(m *pending) {
	if m.published != nil && m.server == nil {
		if c.store.CompareAndRestore(m.published, m.before) {
			return
		}
	}

	c.store.Update(func(cur *model.Snapshot) *model.Snapshot {
		return revert(m.op, cur, m.reference(), m.target)
	})
}

// rebase replays pending patches onto a freshly fetched snapshot. It runs
// inside the store's transition lock.
func (c *Coordinator) rebase(fetched *model.Snapshot) *model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := fetched
	for _, m := range c.pending {
		m.server = fetched
		out = patch(m.op, out, m.target)
	}
	if out == fetched {
		return fetched
	}
	return out
}

// patch returns cur with op applied to id, or cur itself if op changes
// nothing (missing id, already read).
func patch(op Op, cur *model.Snapshot, id string) *model.Snapshot {
	switch op {
	case OpMarkRead:
		n, part, idx, ok := cur.Find(id)
		if !ok || n.IsRead {
			return cur
		}
		out := cur.Clone()
		switch part {
		case model.PartitionPinned:
			out.Pinned[idx].IsRead = true
		case model.PartitionRegular:
			out.Notifications[idx].IsRead = true
		}
		return out

	case OpDelete:
		out, removed := cur.Without(id)
		if !removed {
			return cur
		}
		return out
	}
	return cur
}

// revert undoes op on id in cur using ref as the source of the original
// item. It returns cur itself when there is nothing to undo.
func revert(op Op, cur, ref *model.Snapshot, id string) *model.Snapshot {
	orig, part, idx, ok := ref.Find(id)
	if !ok {
		return cur
	}

	switch op {
	case OpMarkRead:
		if orig.IsRead {
			return cur
		}
		live, livePart, liveIdx, ok := cur.Find(id)
		if !ok || !live.IsRead {
			return cur
		}
		out := cur.Clone()
		switch livePart {
		case model.PartitionPinned:
			out.Pinned[liveIdx].IsRead = false
		case model.PartitionRegular:
			out.Notifications[liveIdx].IsRead = false
		}
		return out

	case OpDelete:
		if cur.Has(id) {
			return cur
		}
		return cur.WithInserted(orig, part, idx)
	}
	return cur
}
