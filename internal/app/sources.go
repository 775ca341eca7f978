package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/notification-center/internal/credential"
	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/gateway/httpapi"
	"github.com/nhle/notification-center/internal/gateway/mailbox"
	"github.com/nhle/notification-center/internal/metrics"
	"github.com/nhle/notification-center/internal/model"
)

// Environment variables that override keyring credentials.
const (
	EnvAPIToken        = "NOTIFCENTER_API_TOKEN"
	EnvMailboxPassword = "NOTIFCENTER_MAILBOX_PASSWORD"
)

// ErrNotLoggedIn is returned when no credential is stored for the
// configured gateway.
var ErrNotLoggedIn = errors.New("no credentials stored, run `notifcenter login`")

// Secrets is the credential lookup BuildGateway needs.
type Secrets interface {
	Resolve(key, envVar string) (string, error)
}

// BuildGateway creates the configured gateway, loading its credential
// from the environment or the keyring, and wraps it with metrics and
// logging.
func BuildGateway(cfg *model.AppConfig, secrets Secrets, m *metrics.Metrics, log *slog.Logger) (gateway.Gateway, error) {
	var gw gateway.Gateway

	switch cfg.Gateway.Kind {
	case model.GatewayHTTP:
		token, err := resolveSecret(secrets, credential.KeyAPIToken, EnvAPIToken)
		if err != nil {
			return nil, err
		}
		client := httpapi.NewClient(cfg.Gateway.BaseURL, token, httpapi.Options{
			Timeout:    cfg.Gateway.Timeout,
			MaxRetries: cfg.Gateway.MaxRetries,
		})
		gw = httpapi.New(client)

	case model.GatewayMailbox:
		password, err := resolveSecret(secrets, credential.KeyMailboxPassword, EnvMailboxPassword)
		if err != nil {
			return nil, err
		}
		gw = mailbox.New(mailbox.Config{
			Host:     cfg.Mailbox.Host,
			Port:     cfg.Mailbox.Port,
			Username: cfg.Mailbox.Username,
			Password: password,
			Folder:   cfg.Mailbox.Folder,
			TLS:      cfg.Mailbox.TLS,
		})

	default:
		return nil, fmt.Errorf("unknown gateway kind %q", cfg.Gateway.Kind)
	}

	log.Info("gateway configured", "kind", cfg.Gateway.Kind)
	return gateway.Instrument(gw, m, log), nil
}

func resolveSecret(secrets Secrets, key, envVar string) (string, error) {
	val, err := secrets.Resolve(key, envVar)
	if errors.Is(err, credential.ErrMissing) || (err == nil && val == "") {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	return val, nil
}
