package store

import (
	"context"
	"errors"

	"github.com/nhle/notification-center/internal/model"
)

// ErrNoSnapshot is returned by LoadSnapshot when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// Store persists the last fetched notification snapshot so the next
// session can paint before its first fetch completes.
type Store interface {
	// SaveSnapshot replaces the persisted snapshot with snap.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	// LoadSnapshot returns the persisted snapshot or ErrNoSnapshot.
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)

	// SnapshotInfo returns metadata about the persisted snapshot.
	SnapshotInfo(ctx context.Context) (SnapshotInfo, error)

	// Close releases the underlying resources.
	Close() error
}
