// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Email      EmailConfig      `mapstructure:"email" yaml:"email"`
	Secrets    SecretsConfig    `mapstructure:"secrets" yaml:"secrets"`
	Automation AutomationConfig `mapstructure:"automation" yaml:"automation"`
	Locators   LocatorOverrides `mapstructure:"locators" yaml:"locators"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	ArtifactDir  string   `mapstructure:"artifact_dir" yaml:"artifact_dir"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// EmailConfig describes the mailbox that receives the reset message.
// The mailbox password is never stored here; PasswordSecret names the
// secret-store entry that holds it.
type EmailConfig struct {
	IMAPServer      string `mapstructure:"imap_server" yaml:"imap_server"`
	IMAPPort        int    `mapstructure:"imap_port" yaml:"imap_port"`
	Address         string `mapstructure:"address" yaml:"address"`
	PasswordSecret  string `mapstructure:"password_secret" yaml:"password_secret"`
	Sender          string `mapstructure:"sender" yaml:"sender"`
	SubjectContains string `mapstructure:"subject_contains" yaml:"subject_contains"`
}

// SecretsConfig selects and configures the secret-store backend.
type SecretsConfig struct {
	// Backend is "awssm" (AWS Secrets Manager, default) or "postgres".
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Region      string `mapstructure:"region" yaml:"region"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// AutomationConfig abstracts the workflow's timing constants into
// configuration rather than inline magic numbers.
type AutomationConfig struct {
	WaitForEmail      time.Duration `mapstructure:"wait_for_email" yaml:"wait_for_email"`
	PollBackoff       time.Duration `mapstructure:"poll_backoff" yaml:"poll_backoff"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	PostSubmitWait    time.Duration `mapstructure:"post_submit_wait" yaml:"post_submit_wait"`
}

// LocatorOverrides lets a deployment re-point individual page locators when
// the target UI version changes, without a rebuild. Keys are locator names
// (see browser.DefaultLocators), values are "by=value" strings, e.g.
// "id=resolving_input" or "link=Forgot your password".
type LocatorOverrides map[string]string

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "rootreset")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.artifact_dir", "/tmp")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Email --
	v.SetDefault("email.imap_port", 993)
	v.SetDefault("email.sender", "no-reply@amazon.com")
	v.SetDefault("email.subject_contains", "AWS password")

	// -- Secrets --
	v.SetDefault("secrets.backend", "awssm")
	v.SetDefault("secrets.region", "us-east-1")

	// -- Automation --
	v.SetDefault("automation.wait_for_email", "60s")
	v.SetDefault("automation.poll_backoff", "10s")
	v.SetDefault("automation.navigation_timeout", "90s")
	v.SetDefault("automation.element_timeout", "10s")
	v.SetDefault("automation.post_submit_wait", "5s")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Secrets.Backend {
	case "awssm":
		// Region has a default; nothing else required up front.
	case "postgres":
		if c.Secrets.PostgresURL == "" {
			return fmt.Errorf("secrets.postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("secrets.backend must be 'awssm' or 'postgres', got %q", c.Secrets.Backend)
	}

	if c.Automation.PollBackoff <= 0 {
		return fmt.Errorf("automation.poll_backoff must be a positive duration")
	}
	if c.Automation.ElementTimeout <= 0 {
		return fmt.Errorf("automation.element_timeout must be a positive duration")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window dimensions must be positive")
	}
	return nil
}

// ValidateEmail checks the mailbox settings. Split out from Validate because
// the email block is only required when a run actually polls the mailbox.
func (c *Config) ValidateEmail() error {
	if c.Email.IMAPServer == "" {
		return fmt.Errorf("email.imap_server is required when email retrieval is enabled")
	}
	if c.Email.Address == "" {
		return fmt.Errorf("email.address is required when email retrieval is enabled")
	}
	if c.Email.PasswordSecret == "" {
		return fmt.Errorf("email.password_secret is required when email retrieval is enabled")
	}
	return nil
}
