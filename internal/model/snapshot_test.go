package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func n(id string, read bool) Notification {
	return Notification{ID: id, Title: "title " + id, IsRead: read}
}

func TestNewSnapshot_PinnedWinsOnDuplicateID(t *testing.T) {
	snap := NewSnapshot(
		[]Notification{n("a", false)},
		[]Notification{n("a", true), n("b", false), n("b", true)},
	)

	require.Len(t, snap.Pinned, 1)
	require.Len(t, snap.Notifications, 1)
	assert.True(t, snap.Pinned[0].IsPinned)
	assert.False(t, snap.Pinned[0].IsRead)
	assert.Equal(t, "b", snap.Notifications[0].ID)
	assert.False(t, snap.Notifications[0].IsRead, "first occurrence is kept")
}

func TestNewSnapshot_NormalizesIsPinnedFlag(t *testing.T) {
	regular := n("r", false)
	regular.IsPinned = true

	snap := NewSnapshot(nil, []Notification{regular})

	require.Len(t, snap.Notifications, 1)
	assert.False(t, snap.Notifications[0].IsPinned)
	assert.Empty(t, snap.Pinned)
}

func TestSnapshot_Find(t *testing.T) {
	snap := NewSnapshot([]Notification{n("p", false)}, []Notification{n("a", false), n("b", true)})

	item, part, idx, ok := snap.Find("b")
	require.True(t, ok)
	assert.Equal(t, PartitionRegular, part)
	assert.Equal(t, 1, idx)
	assert.True(t, item.IsRead)

	_, part, _, ok = snap.Find("p")
	require.True(t, ok)
	assert.Equal(t, PartitionPinned, part)

	_, part, idx, ok = snap.Find("missing")
	assert.False(t, ok)
	assert.Equal(t, PartitionNone, part)
	assert.Equal(t, -1, idx)
}

func TestSnapshot_CloneSharesNoStorage(t *testing.T) {
	snap := NewSnapshot([]Notification{n("p", false)}, []Notification{n("a", false)})
	clone := snap.Clone()

	clone.Notifications[0].IsRead = true
	clone.Pinned[0].Title = "changed"

	assert.False(t, snap.Notifications[0].IsRead)
	assert.Equal(t, "title p", snap.Pinned[0].Title)
}

func TestSnapshot_MapReportsChange(t *testing.T) {
	snap := NewSnapshot(nil, []Notification{n("a", false), n("b", true)})

	out, changed := snap.Map(func(x Notification) Notification {
		if x.ID == "a" {
			x.IsRead = true
		}
		return x
	})
	assert.True(t, changed)
	assert.True(t, out.Notifications[0].IsRead)
	assert.False(t, snap.Notifications[0].IsRead, "source snapshot is untouched")

	_, changed = snap.Map(func(x Notification) Notification {
		if x.ID == "b" {
			x.IsRead = true
		}
		return x
	})
	assert.False(t, changed)
}

func TestSnapshot_Without(t *testing.T) {
	snap := NewSnapshot([]Notification{n("p", false)}, []Notification{n("a", false), n("b", false)})

	out, removed := snap.Without("p")
	assert.True(t, removed)
	assert.Empty(t, out.Pinned)
	assert.Len(t, out.Notifications, 2)
	assert.Len(t, snap.Pinned, 1)

	out, removed = snap.Without("missing")
	assert.False(t, removed)
	assert.Equal(t, 3, out.Len())
}

func TestSnapshot_WithInsertedRestoresPosition(t *testing.T) {
	snap := NewSnapshot(nil, []Notification{n("a", false), n("b", false), n("c", false)})
	removedItem, part, idx, _ := snap.Find("b")

	without, _ := snap.Without("b")
	restored := without.WithInserted(removedItem, part, idx)

	require.Len(t, restored.Notifications, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(restored.Notifications))
	assert.Len(t, without.Notifications, 2, "input snapshot is untouched")

	clamped := without.WithInserted(n("z", false), PartitionRegular, 99)
	assert.Equal(t, []string{"a", "c", "z"}, ids(clamped.Notifications))
}

func ids(list []Notification) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		out = append(out, x.ID)
	}
	return out
}
