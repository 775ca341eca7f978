package model

import "time"

// Notification represents a single alert shown in the notification center.
type Notification struct {
	// ID is the unique identifier for this notification. It is stable
	// across refetches and is the only key used for mutations.
	ID string `json:"id" db:"id"`

	// Title is the one-line summary rendered in lists.
	Title string `json:"title" db:"title"`

	// Body is the longer human-readable text.
	Body string `json:"body" db:"body"`

	// Category is a free-form grouping label (e.g. "billing", "security").
	Category string `json:"category" db:"category"`

	// Link optionally points at the resource the notification is about.
	Link string `json:"link,omitempty" db:"link"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"is_read" db:"is_read"`

	// IsPinned places the notification in the pinned partition.
	IsPinned bool `json:"is_pinned" db:"is_pinned"`

	// CreatedAt is when this notification was generated by the server.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Partition identifies which list of a snapshot a notification lives in.
type Partition int

const (
	PartitionNone Partition = iota
	PartitionPinned
	PartitionRegular
)

func (p Partition) String() string {
	switch p {
	case PartitionPinned:
		return "pinned"
	case PartitionRegular:
		return "regular"
	default:
		return "none"
	}
}
