package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nhle/notification-center/internal/metrics"
)

// Instrumented wraps a Gateway and records latency and outcome of every
// remote call.
type Instrumented struct {
	next    Gateway
	metrics *metrics.Metrics
	log     *slog.Logger
}

var _ Gateway = (*Instrumented)(nil)

// Instrument decorates g with metrics and debug logging.
func Instrument(g Gateway, m *metrics.Metrics, log *slog.Logger) *Instrumented {
	return &Instrumented{next: g, metrics: m, log: log}
}

func (i *Instrumented) FetchNotifications(ctx context.Context) (*FetchResult, error) {
	start := time.Now()
	res, err := i.next.FetchNotifications(ctx)
	i.observe("fetch", "", start, err)
	return res, err
}

func (i *Instrumented) MarkRead(ctx context.Context, id string) error {
	start := time.Now()
	err := i.next.MarkRead(ctx, id)
	i.observe("mark_read", id, start, err)
	return err
}

func (i *Instrumented) DeleteNotification(ctx context.Context, id string) error {
	start := time.Now()
	err := i.next.DeleteNotification(ctx, id)
	i.observe("delete", id, start, err)
	return err
}

func (i *Instrumented) observe(op, id string, start time.Time, err error) {
	d := time.Since(start)
	status := Classify(err)
	i.metrics.ObserveGateway(op, status, d)
	i.log.Debug("gateway call",
		"op", op,
		"id", id,
		"status", status,
		"duration", d,
		"error", err,
	)
}

// Classify returns a short label for err: ok, not_found, auth, network,
// canceled or error.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsAuthError(err):
		return "auth"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case IsNetworkError(err):
		return "network"
	default:
		return "error"
	}
}
