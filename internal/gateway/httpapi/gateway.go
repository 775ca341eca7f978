package httpapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/notification-center/internal/gateway"
)

// Gateway implements gateway.Gateway on top of the REST API:
//
//	GET    /api/notifications
//	POST   /api/notifications/{id}/read
//	DELETE /api/notifications/{id}
type Gateway struct {
	client *Client
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a Gateway backed by client.
func New(client *Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) FetchNotifications(ctx context.Context) (*gateway.FetchResult, error) {
	var result gateway.FetchResult
	if err := g.client.Get(ctx, "/api/notifications", &result); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return &result, nil
}

func (g *Gateway) MarkRead(ctx context.Context, id string) error {
	path := "/api/notifications/" + url.PathEscape(id) + "/read"
	if err := g.client.Post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

func (g *Gateway) DeleteNotification(ctx context.Context, id string) error {
	if err := g.client.Delete(ctx, "/api/notifications/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}
