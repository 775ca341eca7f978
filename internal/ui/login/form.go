// Package login collects gateway settings and credentials interactively.
package login

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/notification-center/internal/credential"
	"github.com/nhle/notification-center/internal/model"
)

// Fields holds form values on the heap so huh's Value pointers stay valid.
type Fields struct {
	Kind string

	BaseURL string
	Token   string

	Host     string
	Port     string
	Username string
	Password string
	Folder   string
}

// FromConfig pre-fills the form with the current configuration. Secrets
// are never pre-filled.
func FromConfig(cfg *model.AppConfig) *Fields {
	port := ""
	if cfg.Mailbox.Port > 0 {
		port = strconv.Itoa(cfg.Mailbox.Port)
	}
	return &Fields{
		Kind:     cfg.Gateway.Kind,
		BaseURL:  cfg.Gateway.BaseURL,
		Host:     cfg.Mailbox.Host,
		Port:     port,
		Username: cfg.Mailbox.Username,
		Folder:   cfg.Mailbox.Folder,
	}
}

// NewForm builds the login form. Only the group for the selected gateway
// kind is shown.
func NewForm(f *Fields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notification source").
				Options(
					huh.NewOption("Notification API (HTTP)", model.GatewayHTTP),
					huh.NewOption("Mailbox (IMAP)", model.GatewayMailbox),
				).
				Value(&f.Kind),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Placeholder("https://notifications.example.com").
				Value(&f.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API token").
				EchoMode(huh.EchoModePassword).
				Value(&f.Token).
				Validate(validateRequired("API token")),
		).WithHideFunc(func() bool { return f.Kind != model.GatewayHTTP }),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP host").
				Placeholder("imap.example.com").
				Value(&f.Host).
				Validate(validateRequired("Host")),
			huh.NewInput().
				Title("Port").
				Placeholder("993").
				Value(&f.Port).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Value(&f.Username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password).
				Validate(validateRequired("Password")),
			huh.NewInput().
				Title("Folder").
				Placeholder("INBOX").
				Value(&f.Folder),
		).WithHideFunc(func() bool { return f.Kind != model.GatewayMailbox }),
	)
}

// Apply copies the non-secret fields into cfg and returns the keyring key
// and value for the secret.
func (f *Fields) Apply(cfg *model.AppConfig) (secretKey, secret string, err error) {
	cfg.Gateway.Kind = f.Kind

	switch f.Kind {
	case model.GatewayHTTP:
		cfg.Gateway.BaseURL = strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
		return credential.KeyAPIToken, strings.TrimSpace(f.Token), nil

	case model.GatewayMailbox:
		port := 993
		if p := strings.TrimSpace(f.Port); p != "" {
			port, err = strconv.Atoi(p)
			if err != nil {
				return "", "", fmt.Errorf("invalid port %q", f.Port)
			}
		}
		cfg.Mailbox.Host = strings.TrimSpace(f.Host)
		cfg.Mailbox.Port = port
		cfg.Mailbox.Username = strings.TrimSpace(f.Username)
		cfg.Mailbox.Folder = strings.TrimSpace(f.Folder)
		if cfg.Mailbox.Folder == "" {
			cfg.Mailbox.Folder = "INBOX"
		}
		return credential.KeyMailboxPassword, f.Password, nil

	default:
		return "", "", fmt.Errorf("unknown gateway kind %q", f.Kind)
	}
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("enter a full http(s) URL")
	}
	return nil
}

func validatePort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
