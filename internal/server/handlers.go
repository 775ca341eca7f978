package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/notification-center/internal/cache"
	"github.com/nhle/notification-center/internal/center"
	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/mutation"
	"github.com/nhle/notification-center/internal/projection"
)

// Notifications is the part of the center the API serves.
type Notifications interface {
	State() center.State
	Snapshot() *model.Snapshot
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	MarkRead(ctx context.Context, id string) (mutation.Result, error)
	DeleteNotification(ctx context.Context, id string) (mutation.Result, error)
}

type handler struct {
	svc Notifications
	log *slog.Logger
}

type listData struct {
	Pinned        []model.Notification `json:"pinned"`
	Notifications []model.Notification `json:"notifications"`
	Stale         bool                 `json:"stale"`
	LastSync      *time.Time           `json:"last_sync,omitempty"`
}

type mutationData struct {
	MutationID     string `json:"mutation_id"`
	Op             string `json:"op"`
	NotificationID string `json:"notification_id"`
	State          string `json:"state"`
	Applied        bool   `json:"applied"`
	NotFound       bool   `json:"not_found"`
}

type healthData struct {
	Status   string     `json:"status"`
	Stale    bool       `json:"stale"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}

func lastSync(st center.State) *time.Time {
	if st.LastSync.IsZero() {
		return nil
	}
	t := st.LastSync.UTC()
	return &t
}

// list serves one page of notifications. Each request carries its own
// filter, so the center's session filter is not touched.
func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := projection.ParseStatusFilter(q.Get("status"))
	if err != nil {
		failure(w, http.StatusBadRequest, "INVALID_STATUS", err.Error())
		return
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			failure(w, http.StatusBadRequest, "INVALID_PAGE", "page must be an integer")
			return
		}
	}

	if err := h.svc.Load(r.Context()); err != nil {
		// Any fetched or seeded snapshot is still worth serving; only a
		// cold cache fails.
		if h.svc.Snapshot().Version == 0 {
			h.fetchError(w, err)
			return
		}
		h.log.Warn("serving stale notifications", "error", err)
	}

	filter := projection.DefaultFilterState().
		WithStatus(status).
		WithSearch(q.Get("search")).
		WithPage(page)
	view := projection.Project(h.svc.Snapshot(), filter)
	st := h.svc.State()

	successWithMeta(w, listData{
		Pinned:        view.Pinned,
		Notifications: view.Items,
		Stale:         st.IsStale,
		LastSync:      lastSync(st),
	}, &Meta{
		Page:          view.Page,
		Limit:         projection.PageSize,
		TotalItems:    view.FilteredCount,
		TotalPages:    view.TotalPages,
		UnreadCount:   view.UnreadCount,
		PendingWrites: st.PendingMutations,
	})
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MarkRead(r.Context(), chi.URLParam(r, "id"))
	h.mutationResponse(w, res, err)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteNotification(r.Context(), chi.URLParam(r, "id"))
	h.mutationResponse(w, res, err)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		h.fetchError(w, err)
		return
	}
	st := h.svc.State()
	success(w, healthData{Status: "ok", Stale: st.IsStale, LastSync: lastSync(st)})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	st := h.svc.State()
	success(w, healthData{Status: "ok", Stale: st.IsStale, LastSync: lastSync(st)})
}

func (h *handler) mutationResponse(w http.ResponseWriter, res mutation.Result, err error) {
	data := mutationData{
		MutationID:     res.MutationID,
		Op:             string(res.Op),
		NotificationID: res.NotificationID,
		State:          res.State.String(),
		Applied:        res.Applied,
		NotFound:       res.NotFound,
	}

	if err != nil {
		var mf *mutation.MutationFailure
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			// The mutation keeps running and resolves without this request.
			writeJSON(w, http.StatusAccepted, Response{Success: true, Message: "mutation still pending", Data: data})
		case gateway.IsAuthError(err):
			failure(w, http.StatusUnauthorized, "AUTH_FAILED", err.Error())
		case errors.As(err, &mf):
			failure(w, http.StatusBadGateway, "MUTATION_FAILED", err.Error())
		default:
			h.log.Error("mutation failed", "error", err)
			failure(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		}
		return
	}

	success(w, data)
}

func (h *handler) fetchError(w http.ResponseWriter, err error) {
	var ff *cache.FetchFailure
	switch {
	case gateway.IsAuthError(err):
		failure(w, http.StatusUnauthorized, "AUTH_FAILED", err.Error())
	case errors.As(err, &ff):
		failure(w, http.StatusBadGateway, "FETCH_FAILED", err.Error())
	default:
		h.log.Error("fetch failed", "error", err)
		failure(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
