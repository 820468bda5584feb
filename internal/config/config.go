// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Target   TargetConfig   `mapstructure:"target" yaml:"target"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	Register RegisterConfig `mapstructure:"register" yaml:"register"`
	Interact InteractConfig `mapstructure:"interact" yaml:"interact"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Cookies  CookiesConfig  `mapstructure:"cookies" yaml:"cookies"`
}

// LoggerConfig controls structured log output.
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

// BrowserConfig controls the Chrome instance each run drives.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// TargetConfig names the service being registered against.
type TargetConfig struct {
	HomeURL   string `mapstructure:"home_url" yaml:"home_url"`
	SignupURL string `mapstructure:"signup_url" yaml:"signup_url"`
	APIKeyURL string `mapstructure:"api_key_url" yaml:"api_key_url"`
}

// MailConfig controls the throwaway inbox integration.
type MailConfig struct {
	Domain       string        `mapstructure:"domain" yaml:"domain"`
	InboxURL     string        `mapstructure:"inbox_url" yaml:"inbox_url"`
	SenderMarker string        `mapstructure:"sender_marker" yaml:"sender_marker"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
}

// RegisterConfig shapes the accounts being created.
type RegisterConfig struct {
	EmailPrefix string `mapstructure:"email_prefix" yaml:"email_prefix"`
	Password    string `mapstructure:"password" yaml:"password"`
	Count       int    `mapstructure:"count" yaml:"count"`
}

// InteractConfig tunes the element interaction engine.
type InteractConfig struct {
	StateTimeout time.Duration `mapstructure:"state_timeout" yaml:"state_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	QuietTimeout time.Duration `mapstructure:"quiet_timeout" yaml:"quiet_timeout"`
	LocateBudget time.Duration `mapstructure:"locate_budget" yaml:"locate_budget"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	ReloadWait   time.Duration `mapstructure:"reload_wait" yaml:"reload_wait"`
}

// OutputConfig controls where completed registrations land.
type OutputConfig struct {
	KeysFile string `mapstructure:"keys_file" yaml:"keys_file"`
}

// CookiesConfig controls webmail session persistence.
type CookiesConfig struct {
	File   string        `mapstructure:"file" yaml:"file"`
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tavreg-cli")
	v.SetDefault("logger.log_file", "tavreg.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// Browser defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.debug", false)

	// Target defaults
	v.SetDefault("target.home_url", "https://app.tavily.com/home")
	v.SetDefault("target.signup_url", "https://app.tavily.com/signup")
	v.SetDefault("target.api_key_url", "https://app.tavily.com/home")

	// Mail defaults
	v.SetDefault("mail.domain", "2925.com")
	v.SetDefault("mail.inbox_url", "https://www.2925.com/#/mailList")
	v.SetDefault("mail.sender_marker", "tavily")
	v.SetDefault("mail.poll_interval", "30s")
	v.SetDefault("mail.max_wait", "5m")

	// Register defaults
	v.SetDefault("register.email_prefix", "")
	v.SetDefault("register.password", "TavilyAuto123!")
	v.SetDefault("register.count", 1)

	// Interact defaults
	v.SetDefault("interact.state_timeout", "5s")
	v.SetDefault("interact.settle_delay", "1s")
	v.SetDefault("interact.quiet_timeout", "10s")
	v.SetDefault("interact.locate_budget", "30s")
	v.SetDefault("interact.max_attempts", 3)
	v.SetDefault("interact.reload_wait", "2s")

	// Output and cookie storage
	v.SetDefault("output.keys_file", "api_keys.md")
	v.SetDefault("cookies.file", "email_cookies.json")
	v.SetDefault("cookies.max_age", "168h")
}

// NewDefaultConfig creates a new configuration struct populated with default values.
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

// Load reads configuration from an optional file plus TAVREG_* environment
// variables, layered on top of the defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("TAVREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("tavreg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tavreg")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Target.HomeURL == "" {
		return fmt.Errorf("config: target.home_url must be set")
	}
	if c.Mail.Domain == "" {
		return fmt.Errorf("config: mail.domain must be set")
	}
	if c.Mail.InboxURL == "" {
		return fmt.Errorf("config: mail.inbox_url must be set")
	}
	if c.Register.Count < 1 {
		return fmt.Errorf("config: register.count must be at least 1, got %d", c.Register.Count)
	}
	if c.Interact.MaxAttempts < 1 {
		return fmt.Errorf("config: interact.max_attempts must be at least 1, got %d", c.Interact.MaxAttempts)
	}
	if c.Mail.PollInterval <= 0 || c.Mail.MaxWait <= 0 {
		return fmt.Errorf("config: mail.poll_interval and mail.max_wait must be positive")
	}
	if c.Output.KeysFile == "" {
		return fmt.Errorf("config: output.keys_file must be set")
	}
	return nil
}
