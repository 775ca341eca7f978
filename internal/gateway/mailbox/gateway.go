package mailbox

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/model"
)

// Gateway serves notifications out of an IMAP folder. Every message that
// is not flagged \Deleted is a notification: \Flagged marks it pinned and
// \Seen marks it read. The message UID is the notification id.
type Gateway struct {
	cfg Config
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a mailbox gateway. An empty folder defaults to INBOX.
func New(cfg Config) *Gateway {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &Gateway{cfg: cfg}
}

func (g *Gateway) FetchNotifications(ctx context.Context) (*gateway.FetchResult, error) {
	s, err := connect(ctx, g.cfg)
	if err != nil {
		return nil, err
	}
	defer s.close()

	searchData, err := s.client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagDeleted},
	}, nil).Wait()
	if err != nil {
		return nil, &gateway.NetworkError{Op: "search", Err: err}
	}

	result := &gateway.FetchResult{
		Pinned:        []model.Notification{},
		Notifications: []model.Notification{},
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return result, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		n := toNotification(buf.UID, buf.Envelope, buf.Flags, buf.FindBodySection(bodySection))
		if n.IsPinned {
			result.Pinned = append(result.Pinned, n)
		} else {
			result.Notifications = append(result.Notifications, n)
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &gateway.NetworkError{Op: "fetch", Err: err}
	}

	// Newest first, matching the HTTP API ordering.
	reverse(result.Pinned)
	reverse(result.Notifications)

	return result, nil
}

func (g *Gateway) MarkRead(ctx context.Context, id string) error {
	return g.withMessage(ctx, id, func(s *session, set imap.UIDSet) error {
		return s.client.Store(set, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil).Close()
	})
}

func (g *Gateway) DeleteNotification(ctx context.Context, id string) error {
	return g.withMessage(ctx, id, func(s *session, set imap.UIDSet) error {
		err := s.client.Store(set, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagDeleted},
		}, nil).Close()
		if err != nil {
			return err
		}
		return s.client.Expunge().Close()
	})
}

// withMessage opens a session, verifies that the UID named by id still
// exists in the folder and runs fn against it.
func (g *Gateway) withMessage(
	ctx context.Context,
	id string,
	fn func(*session, imap.UIDSet) error,
) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	s, err := connect(ctx, g.cfg)
	if err != nil {
		return err
	}
	defer s.close()

	set := imap.UIDSetNum(uid)
	searchData, err := s.client.UIDSearch(&imap.SearchCriteria{
		UID:     []imap.UIDSet{set},
		NotFlag: []imap.Flag{imap.FlagDeleted},
	}, nil).Wait()
	if err != nil {
		return &gateway.NetworkError{Op: "search " + id, Err: err}
	}
	if len(searchData.AllUIDs()) == 0 {
		return fmt.Errorf("message %s: %w", id, gateway.ErrNotFound)
	}

	if err := fn(s, set); err != nil {
		return &gateway.NetworkError{Op: "store " + id, Err: err}
	}
	return nil
}

// parseUID converts a notification id back into an IMAP UID. Ids that
// could never have come from this gateway are reported as not found.
func parseUID(id string) (imap.UID, error) {
	v, err := strconv.ParseUint(id, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("message %q: %w", id, gateway.ErrNotFound)
	}
	return imap.UID(v), nil
}

func reverse(list []model.Notification) {
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
}
