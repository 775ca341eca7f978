// Package gatewaytest provides test doubles for gateway.Gateway.
package gatewaytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/model"
)

// MockGateway is a testify mock implementing gateway.Gateway.
type MockGateway struct {
	mock.Mock
}

var _ gateway.Gateway = (*MockGateway)(nil)

func (m *MockGateway) FetchNotifications(ctx context.Context) (*gateway.FetchResult, error) {
	args := m.Called(ctx)
	var res *gateway.FetchResult
	if v := args.Get(0); v != nil {
		res = v.(*gateway.FetchResult)
	}
	return res, args.Error(1)
}

func (m *MockGateway) MarkRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) DeleteNotification(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Result builds a FetchResult from the two partitions.
func Result(pinned, regular []model.Notification) *gateway.FetchResult {
	return &gateway.FetchResult{Pinned: pinned, Notifications: regular}
}

// Unread returns an unread, unpinned notification with the given id.
func Unread(id string) model.Notification {
	return model.Notification{ID: id, Title: "Notification " + id}
}

// Read returns a read, unpinned notification with the given id.
func Read(id string) model.Notification {
	n := Unread(id)
	n.IsRead = true
	return n
}
