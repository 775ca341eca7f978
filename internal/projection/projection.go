// Package projection derives what the notification list shows from a
// snapshot and the user's filter state. Everything here is a pure
// function of its inputs.
package projection

import (
	"fmt"
	"strings"

	"github.com/nhle/notification-center/internal/model"
)

// PageSize is the number of regular notifications shown per page.
const PageSize = 20

// StatusFilter restricts the regular list by read state.
type StatusFilter string

const (
	StatusAll    StatusFilter = "all"
	StatusUnread StatusFilter = "unread"
	StatusRead   StatusFilter = "read"
)

// ParseStatusFilter converts user input into a StatusFilter. The empty
// string means StatusAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusUnread:
		return StatusUnread, nil
	case StatusRead:
		return StatusRead, nil
	default:
		return "", fmt.Errorf("unknown status filter %q", s)
	}
}

// Next cycles all -> unread -> read -> all.
func (f StatusFilter) Next() StatusFilter {
	switch f {
	case StatusAll:
		return StatusUnread
	case StatusUnread:
		return StatusRead
	default:
		return StatusAll
	}
}

func (f StatusFilter) matches(n model.Notification) bool {
	switch f {
	case StatusUnread:
		return !n.IsRead
	case StatusRead:
		return n.IsRead
	default:
		return true
	}
}

// FilterState is the user-controlled part of the view.
type FilterState struct {
	Status StatusFilter
	Search string
	Page   int
}

// DefaultFilterState shows everything, starting on page 1.
func DefaultFilterState() FilterState {
	return FilterState{Status: StatusAll, Page: 1}
}

// WithStatus changes the status filter and returns to page 1.
func (s FilterState) WithStatus(f StatusFilter) FilterState {
	s.Status = f
	s.Page = 1
	return s
}

// WithSearch changes the search text and returns to page 1.
func (s FilterState) WithSearch(q string) FilterState {
	s.Search = q
	s.Page = 1
	return s
}

// WithPage requests a page. Values below 1 become 1; the upper bound is
// applied by Project, which knows how many pages exist.
func (s FilterState) WithPage(p int) FilterState {
	if p < 1 {
		p = 1
	}
	s.Page = p
	return s
}

// View is the projected, render-ready state.
type View struct {
	// Pinned is the full pinned partition, never filtered or paginated.
	Pinned []model.Notification

	// Items is the visible page of regular notifications.
	Items []model.Notification

	Page          int
	TotalPages    int
	FilteredCount int
	UnreadCount   int
}

// Project filters, searches and paginates the regular partition of snap.
func Project(snap *model.Snapshot, state FilterState) View {
	if snap == nil {
		snap = model.Empty()
	}

	needle := normalize(state.Search)
	filtered := make([]model.Notification, 0, len(snap.Notifications))
	for _, n := range snap.Notifications {
		if !state.Status.matches(n) {
			continue
		}
		if needle != "" && !Matches(n, needle) {
			continue
		}
		filtered = append(filtered, n)
	}

	totalPages := TotalPages(len(filtered))
	page := ClampPage(state.Page, totalPages)

	start := (page - 1) * PageSize
	end := start + PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return View{
		Pinned:        append([]model.Notification(nil), snap.Pinned...),
		Items:         filtered[start:end:end],
		Page:          page,
		TotalPages:    totalPages,
		FilteredCount: len(filtered),
		UnreadCount:   UnreadCount(snap),
	}
}

// TotalPages returns max(1, ceil(n / PageSize)).
func TotalPages(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PageSize - 1) / PageSize
}

// ClampPage bounds page to [1, totalPages].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Matches reports whether n contains needle in its title, body or
// category. needle must already be normalized; Project does that.
func Matches(n model.Notification, needle string) bool {
	return strings.Contains(strings.ToLower(n.Title), needle) ||
		strings.Contains(strings.ToLower(n.Body), needle) ||
		strings.Contains(strings.ToLower(n.Category), needle)
}

func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// UnreadCount counts unread notifications in the regular partition.
// Pinned notifications never contribute.
func UnreadCount(snap *model.Snapshot) int {
	if snap == nil {
		return 0
	}
	count := 0
	for _, n := range snap.Notifications {
		if !n.IsRead {
			count++
		}
	}
	return count
}
