package sync

import (
	"context"
	"io"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/model"
)

// SyncState represents the current state of the background refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the state of the most recent refresh.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a refresh completes.
type SyncResultMsg struct {
	Error     error
	AuthError *AuthErrorMsg

	// NewCount is the number of notifications that were not present
	// before this refresh.
	NewCount int
}

// AuthErrorMsg is a tea.Msg sent when the gateway rejects credentials.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// DefaultInterval is how often the poller checks for staleness.
const DefaultInterval = 5 * time.Second

// Target is what the poller keeps fresh.
type Target interface {
	IsStale() bool
	Refresh(ctx context.Context) error
	Snapshot() *model.Snapshot
}

// Poller refreshes the target in the background whenever its cached
// snapshot has gone stale, and on demand.
type Poller struct {
	target    Target
	interval  time.Duration
	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
	log       *slog.Logger
}

// New creates a Poller. A non-positive interval means DefaultInterval.
func New(target Target, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		target:    target,
		interval:  interval,
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		log:       log,
	}
}

// Start launches the polling goroutine and returns a tea.Cmd that
// delivers the next SyncResultMsg to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.poll()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// RefreshNow requests an immediate refresh regardless of staleness.
func (p *Poller) RefreshNow() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already queued.
	}
	return nil
}

// Status returns the state of the most recent refresh.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Results exposes the result channel for callers outside Bubble Tea.
func (p *Poller) Results() <-chan SyncResultMsg {
	return p.resultCh
}

func (p *Poller) poll() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial fetch when nothing fresh is cached.
	if p.target.IsStale() {
		p.refresh()
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if p.target.IsStale() {
				p.refresh()
			}
		case <-p.triggerCh:
			p.refresh()
		}
	}
}

// refresh performs one fetch and publishes a SyncResultMsg.
func (p *Poller) refresh() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	before := p.target.Snapshot()
	err := p.target.Refresh(ctx)

	if err != nil {
		p.setStatus(SyncError, err)
		p.log.Warn("background refresh failed", "error", err)

		if gateway.IsAuthError(err) {
			p.sendResult(SyncResultMsg{
				Error: err,
				AuthError: &AuthErrorMsg{
					Message: "Authentication expired. Run `notifcenter login` to update credentials.",
				},
			})
			return
		}

		p.sendResult(SyncResultMsg{Error: err})
		return
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(SyncResultMsg{
		NewCount: countNew(before, p.target.Snapshot()),
	})
}

// countNew counts ids in after that were absent from before. The very
// first fetch reports zero so a cold start is not announced as new.
func countNew(before, after *model.Snapshot) int {
	if before == nil || before.FetchedAt.IsZero() || after == nil {
		return 0
	}

	seen := make(map[string]struct{}, before.Len())
	for _, n := range before.Pinned {
		seen[n.ID] = struct{}{}
	}
	for _, n := range before.Notifications {
		seen[n.ID] = struct{}{}
	}

	count := 0
	for _, list := range [][]model.Notification{after.Pinned, after.Notifications} {
		for _, n := range list {
			if _, ok := seen[n.ID]; !ok {
				count++
			}
		}
	}
	return count
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
