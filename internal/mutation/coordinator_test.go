package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/cache"
	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/gateway/gatewaytest"
	"github.com/nhle/notification-center/internal/model"
)

var errRemote = &gateway.NetworkError{Op: "POST", Err: errors.New("connection reset")}

type fixture struct {
	gw    *gatewaytest.MockGateway
	store *cache.Store
	coord *Coordinator
}

func newFixture(t *testing.T, pinned, regular []model.Notification) *fixture {
	t.Helper()

	gw := &gatewaytest.MockGateway{}
	gw.On("FetchNotifications", mock.Anything).
		Return(gatewaytest.Result(pinned, regular), nil).Once()

	store := cache.New(gw)
	coord := New(store, gw)

	_, err := store.Load(context.Background())
	require.NoError(t, err)

	return &fixture{gw: gw, store: store, coord: coord}
}

// block makes the next call to method wait until release is closed and
// signals on entered once it has started.
func block(gw *gatewaytest.MockGateway, method, id string, err error) (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	gw.On(method, mock.Anything, id).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(err).Once()
	return entered, release
}

func unreadIDs(snap *model.Snapshot) []string {
	var out []string
	for _, n := range snap.Notifications {
		if !n.IsRead {
			out = append(out, n.ID)
		}
	}
	return out
}

func ids(list []model.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

func TestMarkRead_CommitsOptimisticChange(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a"), gatewaytest.Unread("b")})
	f.gw.On("MarkRead", mock.Anything, "a").Return(nil).Once()

	res, err := f.coord.MarkRead(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, Committed, res.State)
	assert.True(t, res.Applied)
	assert.False(t, res.NotFound)
	assert.NotEmpty(t, res.MutationID)
	assert.Equal(t, []string{"b"}, unreadIDs(f.store.Get()))
	assert.Equal(t, 0, f.coord.Pending())

	// No refetch after a successful mutation.
	f.gw.AssertNumberOfCalls(t, "FetchNotifications", 1)
	f.gw.AssertExpectations(t)
}

func TestMarkRead_VisibleBeforeRemoteResolves(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a")})
	entered, release := block(f.gw, "MarkRead", "a", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.coord.MarkRead(context.Background(), "a")
	}()

	<-entered
	assert.Empty(t, unreadIDs(f.store.Get()), "patch is published before the remote call returns")
	assert.Equal(t, 1, f.coord.Pending())

	close(release)
	<-done
	assert.Empty(t, unreadIDs(f.store.Get()))
}

func TestMarkRead_FailureRestoresSnapshot(t *testing.T) {
	f := newFixture(t,
		[]model.Notification{gatewaytest.Unread("p")},
		[]model.Notification{gatewaytest.Unread("a"), gatewaytest.Read("b")},
	)
	before := f.store.Get()
	f.gw.On("MarkRead", mock.Anything, "a").Return(errRemote).Once()

	res, err := f.coord.MarkRead(context.Background(), "a")
	require.Error(t, err)

	var failure *MutationFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, OpMarkRead, failure.Op)
	assert.Equal(t, "a", failure.NotificationID)
	assert.True(t, gateway.IsNetworkError(err))
	assert.Equal(t, RolledBack, res.State)

	after := f.store.Get()
	assert.Equal(t, before.Pinned, after.Pinned)
	assert.Equal(t, before.Notifications, after.Notifications)
	assert.Greater(t, after.Version, before.Version)
}

func TestMarkRead_NotFoundIsNotAnError(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a")})
	f.gw.On("MarkRead", mock.Anything, "a").
		Return(fmt.Errorf("POST: %w", gateway.ErrNotFound)).Once()

	res, err := f.coord.MarkRead(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, Committed, res.State)
	assert.True(t, res.NotFound)
	assert.Empty(t, unreadIDs(f.store.Get()), "no rollback on not found")
}

func TestMarkRead_UnknownIDStillCallsRemote(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a")})
	before := f.store.Get()
	f.gw.On("MarkRead", mock.Anything, "ghost").Return(nil).Once()

	res, err := f.coord.MarkRead(context.Background(), "ghost")
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Same(t, before, f.store.Get(), "no snapshot is published")
	f.gw.AssertCalled(t, "MarkRead", mock.Anything, "ghost")
}

func TestMarkRead_AlreadyReadIsIdempotent(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Read("a"), gatewaytest.Unread("b")})
	before := f.store.Get()
	f.gw.On("MarkRead", mock.Anything, "a").Return(nil).Once()

	res, err := f.coord.MarkRead(context.Background(), "a")
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Same(t, before, f.store.Get())
	assert.Equal(t, []string{"b"}, unreadIDs(f.store.Get()))
	f.gw.AssertNumberOfCalls(t, "MarkRead", 1)
}

func TestMarkRead_AlreadyReadFailureKeepsItRead(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Read("a")})
	f.gw.On("MarkRead", mock.Anything, "a").Return(errRemote).Once()

	_, err := f.coord.MarkRead(context.Background(), "a")
	require.Error(t, err)

	assert.True(t, f.store.Get().Notifications[0].IsRead)
}

func TestMarkRead_PinnedItem(t *testing.T) {
	f := newFixture(t, []model.Notification{gatewaytest.Unread("p")}, nil)
	f.gw.On("MarkRead", mock.Anything, "p").Return(nil).Once()

	_, err := f.coord.MarkRead(context.Background(), "p")
	require.NoError(t, err)

	snap := f.store.Get()
	require.Len(t, snap.Pinned, 1)
	assert.True(t, snap.Pinned[0].IsRead)
	assert.True(t, snap.Pinned[0].IsPinned)
}

func TestDelete_RemovesFromBothPartitions(t *testing.T) {
	f := newFixture(t,
		[]model.Notification{gatewaytest.Unread("p")},
		[]model.Notification{gatewaytest.Unread("a"), gatewaytest.Unread("b")},
	)
	f.gw.On("DeleteNotification", mock.Anything, "p").Return(nil).Once()
	f.gw.On("DeleteNotification", mock.Anything, "a").Return(nil).Once()

	_, err := f.coord.Delete(context.Background(), "p")
	require.NoError(t, err)
	_, err = f.coord.Delete(context.Background(), "a")
	require.NoError(t, err)

	snap := f.store.Get()
	assert.Empty(t, snap.Pinned)
	assert.Equal(t, []string{"b"}, ids(snap.Notifications))
}

func TestDelete_FailureRestoresOriginalPosition(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{
		gatewaytest.Unread("a"), gatewaytest.Unread("b"), gatewaytest.Unread("c"),
	})
	f.gw.On("DeleteNotification", mock.Anything, "b").Return(errRemote).Once()

	res, err := f.coord.Delete(context.Background(), "b")
	require.Error(t, err)

	assert.Equal(t, RolledBack, res.State)
	assert.Equal(t, []string{"a", "b", "c"}, ids(f.store.Get().Notifications))
}

func TestDelete_NotFoundKeepsItemRemoved(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a"), gatewaytest.Unread("b")})
	f.gw.On("DeleteNotification", mock.Anything, "a").Return(gateway.ErrNotFound).Once()

	res, err := f.coord.Delete(context.Background(), "a")
	require.NoError(t, err)

	assert.True(t, res.NotFound)
	assert.Equal(t, []string{"b"}, ids(f.store.Get().Notifications))
}

func TestRollback_PreservesInterleavedCommittedMutation(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a"), gatewaytest.Unread("b")})
	entered, release := block(f.gw, "MarkRead", "a", errRemote)
	f.gw.On("DeleteNotification", mock.Anything, "b").Return(nil).Once()

	var wg sync.WaitGroup
	var markErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, markErr = f.coord.MarkRead(context.Background(), "a")
	}()
	<-entered

	_, err := f.coord.Delete(context.Background(), "b")
	require.NoError(t, err)

	close(release)
	wg.Wait()
	require.Error(t, markErr)

	snap := f.store.Get()
	assert.Equal(t, []string{"a"}, ids(snap.Notifications), "committed delete survives the rollback")
	assert.False(t, snap.Notifications[0].IsRead, "failed mark-read is reverted")
}

func TestRollback_DeleteReinsertedAfterInterleavedChange(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{
		gatewaytest.Unread("a"), gatewaytest.Unread("b"), gatewaytest.Unread("c"),
	})
	entered, release := block(f.gw, "DeleteNotification", "b", errRemote)
	f.gw.On("MarkRead", mock.Anything, "c").Return(nil).Once()

	done := make(chan error)
	go func() {
		_, err := f.coord.Delete(context.Background(), "b")
		done <- err
	}()
	<-entered

	_, err := f.coord.MarkRead(context.Background(), "c")
	require.NoError(t, err)

	close(release)
	require.Error(t, <-done)

	snap := f.store.Get()
	assert.Equal(t, []string{"a", "b", "c"}, ids(snap.Notifications))
	assert.True(t, snap.Notifications[2].IsRead)
}

func TestLoadDuringFlight_KeepsOptimisticPatch(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a"), gatewaytest.Unread("b")})
	entered, release := block(f.gw, "DeleteNotification", "a", nil)
	f.gw.On("FetchNotifications", mock.Anything).
		Return(gatewaytest.Result(nil, []model.Notification{
			gatewaytest.Unread("a"), gatewaytest.Unread("b"), gatewaytest.Unread("c"),
		}), nil).Once()

	done := make(chan error)
	go func() {
		_, err := f.coord.Delete(context.Background(), "a")
		done <- err
	}()
	<-entered

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(f.store.Get().Notifications), "refetch does not resurrect a pending delete")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"b", "c"}, ids(f.store.Get().Notifications))
}

func TestLoadDuringFlight_FailureRevertsAgainstServerData(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a")})
	entered, release := block(f.gw, "MarkRead", "a", errRemote)
	f.gw.On("FetchNotifications", mock.Anything).
		Return(gatewaytest.Result(nil, []model.Notification{
			gatewaytest.Unread("new"), gatewaytest.Unread("a"),
		}), nil).Once()

	done := make(chan error)
	go func() {
		_, err := f.coord.MarkRead(context.Background(), "a")
		done <- err
	}()
	<-entered

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, unreadIDs(f.store.Get()))

	close(release)
	require.Error(t, <-done)

	snap := f.store.Get()
	assert.Equal(t, []string{"new", "a"}, ids(snap.Notifications), "fetched data is kept")
	assert.Equal(t, []string{"new", "a"}, unreadIDs(snap))
}

func TestDuplicateInFlightMutationsAreCoalesced(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a")})
	entered, release := block(f.gw, "MarkRead", "a", nil)

	first := make(chan Result)
	go func() {
		res, _ := f.coord.MarkRead(context.Background(), "a")
		first <- res
	}()
	<-entered

	second := make(chan Result)
	go func() {
		res, _ := f.coord.MarkRead(context.Background(), "a")
		second <- res
	}()

	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)

	r1, r2 := <-first, <-second
	assert.Equal(t, Committed, r1.State)
	assert.Equal(t, Committed, r2.State)
	f.gw.AssertNumberOfCalls(t, "MarkRead", 1)
}

func TestPatch_DoesNotModifyInput(t *testing.T) {
	snap := model.NewSnapshot(nil, []model.Notification{gatewaytest.Unread("a")})

	out := patch(OpMarkRead, snap, "a")
	assert.NotSame(t, snap, out)
	assert.False(t, snap.Notifications[0].IsRead)

	out = patch(OpDelete, snap, "a")
	assert.Empty(t, out.Notifications)
	assert.Len(t, snap.Notifications, 1)

	assert.Same(t, snap, patch(OpDelete, snap, "missing"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "rolled_back", RolledBack.String())
}

// ctxGateway fails a call whose context ended while the call was running,
// like a real network client would.
type ctxGateway struct {
	*gatewaytest.MockGateway
}

func (g ctxGateway) MarkRead(ctx context.Context, id string) error {
	if err := g.MockGateway.MarkRead(ctx, id); err != nil {
		return err
	}
	return ctx.Err()
}

func TestCoalescedCaller_NotCancelledByAnother(t *testing.T) {
	mg := &gatewaytest.MockGateway{}
	mg.On("FetchNotifications", mock.Anything).
		Return(gatewaytest.Result(nil, []model.Notification{gatewaytest.Unread("a")}), nil).Once()
	gw := ctxGateway{mg}
	store := cache.New(gw)
	coord := New(store, gw)
	_, err := store.Load(context.Background())
	require.NoError(t, err)

	entered, release := block(mg, "MarkRead", "a", nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := coord.MarkRead(ctxA, "a")
		errA <- err
	}()
	<-entered

	type outcome struct {
		res Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := coord.MarkRead(context.Background(), "a")
		second <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled, "the cancelled caller stops waiting")

	close(release)
	b := <-second
	require.NoError(t, b.err)
	assert.Equal(t, Committed, b.res.State)

	n, _, _, ok := store.Get().Find("a")
	require.True(t, ok)
	assert.True(t, n.IsRead, "optimistic change is kept")
	mg.AssertNumberOfCalls(t, "MarkRead", 1)
}

func TestCancelledCaller_MutationStillResolves(t *testing.T) {
	f := newFixture(t, nil, []model.Notification{gatewaytest.Unread("a")})
	entered, release := block(f.gw, "DeleteNotification", "a", errRemote)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		res, _ := f.coord.Delete(ctx, "a")
		done <- res
	}()
	<-entered
	cancel()
	assert.Equal(t, Pending, (<-done).State)

	close(release)
	assert.Eventually(t, func() bool { return f.store.Get().Has("a") }, time.Second, 5*time.Millisecond,
		"failed delete is rolled back without a waiting caller")
}
