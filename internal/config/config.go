// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Wait() WaitConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserConcurrency(int)
	SetBrowserExecPath(string)

	// Wait Setters
	SetWaitDefaultTimeout(time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	WaitCfg    WaitConfig    `mapstructure:"wait" yaml:"wait"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Wait() WaitConfig       { return c.WaitCfg }

// Browser Setters
func (c *Config) SetBrowserHeadless(b bool)      { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserConcurrency(n int)    { c.BrowserCfg.Concurrency = n }
func (c *Config) SetBrowserExecPath(path string) { c.BrowserCfg.ExecPath = path }

// Wait Setters
func (c *Config) SetWaitDefaultTimeout(d time.Duration) { c.WaitCfg.DefaultTimeout = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// Concurrency bounds how many tabs are driven at once.
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	Debug       bool     `mapstructure:"debug" yaml:"debug"`
	ExecPath    string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent   string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args        []string `mapstructure:"args" yaml:"args"`
	// Viewport takes "width" and "height".
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StartupTimeout    time.Duration  `mapstructure:"startup_timeout" yaml:"startup_timeout"`
}

// WaitConfig tunes element waits.
type WaitConfig struct {
	// DefaultTimeout applies whenever a caller does not pass a timeout.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	// PollInterval is the fixed sleep between attempts.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
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

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "steady")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.startup_timeout", "30s")

	// -- Wait --
	v.SetDefault("wait.default_timeout", "4s")
	v.SetDefault("wait.poll_interval", "100ms")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Honor the variable chromedp itself looks for.
	v.BindEnv("browser.exec_path", "STEADY_BROWSER_EXEC_PATH", "CHROME_PATH")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.BrowserCfg.ExecPath == "" {
		cfg.BrowserCfg.ExecPath = os.Getenv("CHROME_PATH")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.BrowserCfg.NavigationTimeout < 0 {
		return fmt.Errorf("browser.navigation_timeout must not be negative")
	}
	if err := c.WaitCfg.Validate(); err != nil {
		return fmt.Errorf("wait configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the WaitConfig settings.
func (w *WaitConfig) Validate() error {
	if w.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must not be negative")
	}
	if w.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	return nil
}
