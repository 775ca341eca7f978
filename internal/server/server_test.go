package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/cache"
	"github.com/nhle/notification-center/internal/center"
	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/gateway/gatewaytest"
	"github.com/nhle/notification-center/internal/metrics"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/mutation"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorDetail    `json:"error"`
	Meta    *Meta           `json:"meta"`
}

type fixture struct {
	gw     *gatewaytest.MockGateway
	store  *cache.Store
	center *center.Center
	reg    *prometheus.Registry
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := &gatewaytest.MockGateway{}
	store := cache.New(gw)
	c := center.New(store, mutation.New(store, gw), nil)
	reg := prometheus.NewRegistry()

	return &fixture{
		gw:     gw,
		store:  store,
		center: c,
		reg:    reg,
		router: NewRouter(Deps{
			Notifications: c,
			Metrics:       metrics.New(reg),
			Gatherer:      reg,
		}),
	}
}

func (f *fixture) load(t *testing.T, pinned, regular []model.Notification) {
	t.Helper()
	f.gw.On("FetchNotifications", mock.Anything).Return(gatewaytest.Result(pinned, regular), nil).Once()
	require.NoError(t, f.center.Load(context.Background()))
}

func (f *fixture) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func many(n int) []model.Notification {
	out := make([]model.Notification, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, gatewaytest.Unread(fmt.Sprintf("n%02d", i)))
	}
	return out
}

func TestList_Paginates(t *testing.T) {
	f := newFixture(t)
	f.load(t, []model.Notification{gatewaytest.Unread("p1")}, many(25))

	rec, env := f.do(t, http.MethodGet, "/api/v1/notifications?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var data listData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Pinned, 1)
	require.Len(t, data.Notifications, 5)
	assert.Equal(t, "n20", data.Notifications[0].ID)
	assert.False(t, data.Stale)
	assert.NotNil(t, data.LastSync)

	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, 2, env.Meta.TotalPages)
	assert.Equal(t, 25, env.Meta.TotalItems)
	assert.Equal(t, 25, env.Meta.UnreadCount)
	assert.Equal(t, 20, env.Meta.Limit)
}

func TestList_FiltersAndClampsPage(t *testing.T) {
	f := newFixture(t)
	regular := many(3)
	regular[1].IsRead = true
	regular[2].Title = "Deploy finished"
	f.load(t, nil, regular)

	_, env := f.do(t, http.MethodGet, "/api/v1/notifications?status=unread&search=DEPLOY&page=9")
	var data listData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Notifications, 1)
	assert.Equal(t, "n02", data.Notifications[0].ID)
	assert.Equal(t, 1, env.Meta.Page)
	assert.Equal(t, 2, env.Meta.UnreadCount)
}

func TestList_RejectsBadQuery(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/notifications?status=starred")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_STATUS", env.Error.Code)

	rec, env = f.do(t, http.MethodGet, "/api/v1/notifications?page=two")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PAGE", env.Error.Code)

	f.gw.AssertNotCalled(t, "FetchNotifications", mock.Anything)
}

func TestList_ColdCacheFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.gw.On("FetchNotifications", mock.Anything).
		Return(nil, &gateway.NetworkError{Op: "GET", Err: errors.New("refused")}).Once()

	rec, env := f.do(t, http.MethodGet, "/api/v1/notifications")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "FETCH_FAILED", env.Error.Code)
}

func TestList_SeededSnapshotServedWhenFetchFails(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(model.NewSnapshot(nil, many(3)))
	f.gw.On("FetchNotifications", mock.Anything).
		Return(nil, &gateway.NetworkError{Op: "GET", Err: errors.New("refused")}).Once()

	rec, env := f.do(t, http.MethodGet, "/api/v1/notifications")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var data struct {
		Notifications []model.Notification `json:"notifications"`
		Stale         bool                 `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Stale)
	assert.Len(t, data.Notifications, 3)
}

func TestMarkRead_ClientGoneLeavesMutationPending(t *testing.T) {
	f := newFixture(t)
	f.load(t, nil, many(1))
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gw.On("MarkRead", mock.Anything, "n00").Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/n00/read", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		f.router.ServeHTTP(rec, req)
		close(done)
	}()

	<-entered
	cancel()
	<-done
	assert.Equal(t, http.StatusAccepted, rec.Code)

	close(release)
	assert.Eventually(t, func() bool { return f.center.State().PendingMutations == 0 },
		time.Second, 5*time.Millisecond)
	n, _, _, ok := f.center.Snapshot().Find("n00")
	require.True(t, ok)
	assert.True(t, n.IsRead)
}

func TestList_AuthFailure(t *testing.T) {
	f := newFixture(t)
	f.gw.On("FetchNotifications", mock.Anything).
		Return(nil, &gateway.AuthError{Gateway: "http", Message: "token expired"}).Once()

	rec, env := f.do(t, http.MethodGet, "/api/v1/notifications")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_FAILED", env.Error.Code)
}

func TestMarkRead_Commits(t *testing.T) {
	f := newFixture(t)
	f.load(t, nil, many(2))
	f.gw.On("MarkRead", mock.Anything, "n01").Return(nil).Once()

	rec, env := f.do(t, http.MethodPost, "/api/v1/notifications/n01/read")
	require.Equal(t, http.StatusOK, rec.Code)

	var data mutationData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "committed", data.State)
	assert.Equal(t, "mark_read", data.Op)
	assert.True(t, data.Applied)
	assert.NotEmpty(t, data.MutationID)
	assert.Equal(t, 1, f.center.State().UnreadCount)
	f.gw.AssertExpectations(t)
}

func TestDelete_FailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.load(t, nil, many(2))
	f.gw.On("DeleteNotification", mock.Anything, "n00").
		Return(&gateway.NetworkError{Op: "DELETE", Err: errors.New("timeout")}).Once()

	rec, env := f.do(t, http.MethodDelete, "/api/v1/notifications/n00")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "MUTATION_FAILED", env.Error.Code)
	assert.True(t, f.center.Snapshot().Has("n00"))
}

func TestDelete_NotFoundIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.load(t, nil, many(2))
	f.gw.On("DeleteNotification", mock.Anything, "n00").
		Return(fmt.Errorf("delete: %w", gateway.ErrNotFound)).Once()

	rec, env := f.do(t, http.MethodDelete, "/api/v1/notifications/n00")
	require.Equal(t, http.StatusOK, rec.Code)

	var data mutationData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.NotFound)
	assert.Equal(t, "committed", data.State)
	assert.False(t, f.center.Snapshot().Has("n00"))
}

func TestRefresh_AlwaysFetches(t *testing.T) {
	f := newFixture(t)
	f.load(t, nil, many(1))
	f.gw.On("FetchNotifications", mock.Anything).Return(gatewaytest.Result(nil, many(4)), nil).Once()

	rec, _ := f.do(t, http.MethodPost, "/api/v1/notifications/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, f.center.Snapshot().Len())
	f.gw.AssertNumberOfCalls(t, "FetchNotifications", 2)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var data healthData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ok", data.Status)
	assert.True(t, data.Stale)
	assert.Nil(t, data.LastSync)

	rec, _ = f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `notifcenter_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/notifications", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_PerClient(t *testing.T) {
	f := newFixture(t)
	f.load(t, nil, many(1))
	f.router = NewRouter(Deps{Notifications: f.center, RateLimit: 1, Burst: 2})

	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/notifications")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/notifications")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	other := httptest.NewRecorder()
	f.router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)

	health, _ := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, health.Code)
}
