package model

import "time"

// Snapshot is an immutable view of the server's notification set at one
// point in time, possibly with optimistic patches applied on top.
//
// Snapshots are never modified after they are published. Every change
// produces a new Snapshot with freshly allocated slices.
type Snapshot struct {
	Pinned        []Notification `json:"pinned"`
	Notifications []Notification `json:"notifications"`

	// Version increases by one for every snapshot a cache publishes.
	Version uint64 `json:"version"`

	// FetchedAt is the time of the fetch this snapshot descends from.
	// It is zero for a snapshot that has never been fetched.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewSnapshot builds a normalized snapshot from the two server lists.
// An id that appears in both lists is kept only in the pinned partition,
// duplicates inside a list keep their first occurrence, and IsPinned is
// forced to match the partition the item ended up in.
func NewSnapshot(pinned, regular []Notification) *Snapshot {
	seen := make(map[string]struct{}, len(pinned)+len(regular))

	p := make([]Notification, 0, len(pinned))
	for _, n := range pinned {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		n.IsPinned = true
		p = append(p, n)
	}

	r := make([]Notification, 0, len(regular))
	for _, n := range regular {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		n.IsPinned = false
		r = append(r, n)
	}

	return &Snapshot{Pinned: p, Notifications: r}
}

// Empty returns the snapshot a cache holds before its first load.
func Empty() *Snapshot {
	return &Snapshot{
		Pinned:        []Notification{},
		Notifications: []Notification{},
	}
}

// Len returns the total number of notifications in both partitions.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Pinned) + len(s.Notifications)
}

// Find locates a notification by id. The returned index is relative to
// the partition the item was found in.
func (s *Snapshot) Find(id string) (Notification, Partition, int, bool) {
	if s == nil {
		return Notification{}, PartitionNone, -1, false
	}
	for i, n := range s.Pinned {
		if n.ID == id {
			return n, PartitionPinned, i, true
		}
	}
	for i, n := range s.Notifications {
		if n.ID == id {
			return n, PartitionRegular, i, true
		}
	}
	return Notification{}, PartitionNone, -1, false
}

// Has reports whether id is present in either partition.
func (s *Snapshot) Has(id string) bool {
	_, _, _, ok := s.Find(id)
	return ok
}

// Clone returns a deep copy that shares no slices with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return Empty()
	}
	out := &Snapshot{
		Pinned:        make([]Notification, len(s.Pinned)),
		Notifications: make([]Notification, len(s.Notifications)),
		Version:       s.Version,
		FetchedAt:     s.FetchedAt,
	}
	copy(out.Pinned, s.Pinned)
	copy(out.Notifications, s.Notifications)
	return out
}

// Map returns a copy of s with fn applied to every item in both partitions.
// The second return value reports whether fn changed any item.
func (s *Snapshot) Map(fn func(Notification) Notification) (*Snapshot, bool) {
	out := s.Clone()
	changed := false
	for i := range out.Pinned {
		next := fn(out.Pinned[i])
		if next != out.Pinned[i] {
			changed = true
		}
		out.Pinned[i] = next
	}
	for i := range out.Notifications {
		next := fn(out.Notifications[i])
		if next != out.Notifications[i] {
			changed = true
		}
		out.Notifications[i] = next
	}
	return out, changed
}

// Without returns a copy of s with id removed from both partitions. The
// second return value reports whether anything was removed.
func (s *Snapshot) Without(id string) (*Snapshot, bool) {
	out := &Snapshot{
		Pinned:        make([]Notification, 0, len(s.Pinned)),
		Notifications: make([]Notification, 0, len(s.Notifications)),
		Version:       s.Version,
		FetchedAt:     s.FetchedAt,
	}
	removed := false
	for _, n := range s.Pinned {
		if n.ID == id {
			removed = true
			continue
		}
		out.Pinned = append(out.Pinned, n)
	}
	for _, n := range s.Notifications {
		if n.ID == id {
			removed = true
			continue
		}
		out.Notifications = append(out.Notifications, n)
	}
	return out, removed
}

// WithInserted returns a copy of s with n inserted into the given
// partition at index, clamped to the partition bounds.
func (s *Snapshot) WithInserted(n Notification, part Partition, index int) *Snapshot {
	out := s.Clone()
	insert := func(list []Notification) []Notification {
		if index < 0 {
			index = 0
		}
		if index > len(list) {
			index = len(list)
		}
		list = append(list, Notification{})
		copy(list[index+1:], list[index:])
		list[index] = n
		return list
	}
	switch part {
	case PartitionPinned:
		n.IsPinned = true
		out.Pinned = insert(out.Pinned)
	case PartitionRegular:
		n.IsPinned = false
		out.Notifications = insert(out.Notifications)
	}
	return out
}
