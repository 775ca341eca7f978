package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/credential"
	"github.com/nhle/notification-center/internal/model"
)

func TestApply_HTTP(t *testing.T) {
	cfg := &model.AppConfig{}
	f := &Fields{Kind: model.GatewayHTTP, BaseURL: " https://api.example.com/ ", Token: " tok "}

	key, secret, err := f.Apply(cfg)
	require.NoError(t, err)
	assert.Equal(t, credential.KeyAPIToken, key)
	assert.Equal(t, "tok", secret)
	assert.Equal(t, model.GatewayHTTP, cfg.Gateway.Kind)
	assert.Equal(t, "https://api.example.com", cfg.Gateway.BaseURL)
}

func TestApply_Mailbox(t *testing.T) {
	cfg := &model.AppConfig{}
	f := &Fields{Kind: model.GatewayMailbox, Host: "imap.example.com", Username: "me", Password: "pw"}

	key, secret, err := f.Apply(cfg)
	require.NoError(t, err)
	assert.Equal(t, credential.KeyMailboxPassword, key)
	assert.Equal(t, "pw", secret)
	assert.Equal(t, 993, cfg.Mailbox.Port)
	assert.Equal(t, "INBOX", cfg.Mailbox.Folder)
	assert.Equal(t, "imap.example.com", cfg.Mailbox.Host)
}

func TestApply_RejectsBadInput(t *testing.T) {
	_, _, err := (&Fields{Kind: "carrier-pigeon"}).Apply(&model.AppConfig{})
	assert.Error(t, err)

	_, _, err = (&Fields{Kind: model.GatewayMailbox, Port: "abc"}).Apply(&model.AppConfig{})
	assert.Error(t, err)
}

func TestFromConfig_NeverPrefillsSecrets(t *testing.T) {
	cfg := &model.AppConfig{
		Gateway: model.GatewayConfig{Kind: model.GatewayMailbox},
		Mailbox: model.MailboxConfig{Host: "h", Port: 143, Username: "u", Folder: "Alerts"},
	}

	f := FromConfig(cfg)
	assert.Equal(t, "143", f.Port)
	assert.Equal(t, "Alerts", f.Folder)
	assert.Empty(t, f.Password)
	assert.Empty(t, f.Token)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateURL("http://localhost:8080"))
	assert.Error(t, validateURL("localhost:8080"))
	assert.Error(t, validateURL("ftp://example.com"))

	assert.NoError(t, validatePort(""))
	assert.NoError(t, validatePort("143"))
	assert.Error(t, validatePort("70000"))

	assert.Error(t, validateRequired("Host")("  "))
}
