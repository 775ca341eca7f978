package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/notification-center/internal/model"
)

// ErrNotFound is returned when the targeted notification no longer exists
// on the server. Callers check it with errors.Is.
var ErrNotFound = errors.New("notification not found")

// AuthError indicates that the gateway rejected the configured credentials.
type AuthError struct {
	Gateway string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Gateway, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NetworkError wraps transport-level failures: dial errors, timeouts,
// unexpected server responses and exhausted retries.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err (or any error in its chain) is a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// FetchResult is the server's current notification set, split into the
// pinned and regular partitions.
type FetchResult struct {
	Pinned        []model.Notification `json:"pinned"`
	Notifications []model.Notification `json:"notifications"`
}

// Gateway is the remote source of truth for notifications.
type Gateway interface {
	// FetchNotifications returns the full current set.
	FetchNotifications(ctx context.Context) (*FetchResult, error)

	// MarkRead marks a single notification as read on the server.
	// A missing notification yields an error wrapping ErrNotFound.
	MarkRead(ctx context.Context, id string) error

	// DeleteNotification removes a single notification on the server.
	// A missing notification yields an error wrapping ErrNotFound.
	DeleteNotification(ctx context.Context, id string) error
}
