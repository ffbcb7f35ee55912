package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "rootreset", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 1080, cfg.Browser.WindowHeight)
	assert.Equal(t, "no-reply@amazon.com", cfg.Email.Sender)
	assert.Equal(t, "AWS password", cfg.Email.SubjectContains)
	assert.Equal(t, 993, cfg.Email.IMAPPort)
	assert.Equal(t, "awssm", cfg.Secrets.Backend)
	assert.Equal(t, 60*time.Second, cfg.Automation.WaitForEmail)
	assert.Equal(t, 10*time.Second, cfg.Automation.PollBackoff)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown secrets backend", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Secrets.Backend = "vault"
		assert.ErrorContains(t, cfg.Validate(), "secrets.backend")
	})

	t.Run("postgres backend requires url", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Secrets.Backend = "postgres"
		assert.ErrorContains(t, cfg.Validate(), "postgres_url")

		cfg.Secrets.PostgresURL = "postgres://localhost/secrets"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects non-positive backoff", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Automation.PollBackoff = 0
		assert.ErrorContains(t, cfg.Validate(), "poll_backoff")
	})
}

func TestValidateEmail(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.ErrorContains(t, cfg.ValidateEmail(), "imap_server")

	cfg.Email.IMAPServer = "imap.example.org"
	assert.ErrorContains(t, cfg.ValidateEmail(), "address")

	cfg.Email.Address = "resets@example.org"
	assert.ErrorContains(t, cfg.ValidateEmail(), "password_secret")

	cfg.Email.PasswordSecret = "ops/mailbox-password"
	assert.NoError(t, cfg.ValidateEmail())
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("secrets.backend", "postgres")
	v.Set("secrets.postgres_url", "postgres://localhost/secrets")
	v.Set("automation.wait_for_email", "2m")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Automation.WaitForEmail)
	assert.Equal(t, "postgres", cfg.Secrets.Backend)
}
