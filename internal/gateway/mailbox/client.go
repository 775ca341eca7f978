package mailbox

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/notification-center/internal/gateway"
)

const gatewayName = "mailbox"

// Config holds the IMAP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
	TLS      bool
}

// session connects to IMAP, authenticates and selects the configured
// folder. The caller must call close when done.
type session struct {
	client *imapclient.Client
}

func (s *session) close() {
	_ = s.client.Logout().Wait()
}

// connect establishes an authenticated session with the folder selected.
func connect(_ context.Context, cfg Config) (*session, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var client *imapclient.Client
	var err error

	if cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &gateway.NetworkError{
			Op:  "dial " + addr,
			Err: err,
		}
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &gateway.AuthError{
			Gateway: gatewayName,
			Message: fmt.Sprintf("authentication failed for %s: %v", cfg.Username, err),
		}
	}

	if _, err := client.Select(cfg.Folder, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &gateway.NetworkError{
			Op:  "select " + cfg.Folder,
			Err: err,
		}
	}

	return &session{client: client}, nil
}
