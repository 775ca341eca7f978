package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/metrics"
)

type stubGateway struct {
	err error
}

func (s stubGateway) FetchNotifications(context.Context) (*FetchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &FetchResult{}, nil
}

func (s stubGateway) MarkRead(context.Context, string) error           { return s.err }
func (s stubGateway) DeleteNotification(context.Context, string) error { return s.err }

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"not_found": fmt.Errorf("delete x: %w", ErrNotFound),
		"auth":      fmt.Errorf("wrapped: %w", &AuthError{Gateway: "http", Message: "nope"}),
		"network":   &NetworkError{Op: "GET /", Err: errors.New("refused")},
		"canceled":  &NetworkError{Op: "GET /", Err: context.Canceled},
		"error":     errors.New("something else"),
	}

	for want, err := range cases {
		assert.Equal(t, want, Classify(err), want)
	}
}

func TestNetworkError_Unwraps(t *testing.T) {
	err := fmt.Errorf("outer: %w", &NetworkError{Op: "fetch", Err: context.DeadlineExceeded})

	assert.True(t, IsNetworkError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsAuthError(err))
}

func TestInstrumented_PassesThroughResults(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ok := Instrument(stubGateway{}, m, log)
	res, err := ok.FetchNotifications(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, res)

	failing := Instrument(stubGateway{err: ErrNotFound}, m, log)
	assert.ErrorIs(t, failing.MarkRead(context.Background(), "n1"), ErrNotFound)
	assert.ErrorIs(t, failing.DeleteNotification(context.Background(), "n1"), ErrNotFound)
}
