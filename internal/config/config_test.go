// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "steady", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 4, cfg.Browser().Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, 1280, cfg.Browser().Viewport["width"])
	assert.Equal(t, 4*time.Second, cfg.Wait().DefaultTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Wait().PollInterval)
	assert.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		require.NoError(t, cfg.Validate())

		cfgInvalidBrowser := *cfg
		cfgInvalidBrowser.BrowserCfg.Concurrency = -1
		err := cfgInvalidBrowser.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.concurrency must be a positive integer")

		cfgInvalidNav := *cfg
		cfgInvalidNav.BrowserCfg.NavigationTimeout = -time.Second
		err = cfgInvalidNav.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.navigation_timeout must not be negative")
	})

	t.Run("Wait Validation", func(t *testing.T) {
		valid := WaitConfig{DefaultTimeout: 0, PollInterval: 100 * time.Millisecond}
		assert.NoError(t, valid.Validate(), "a zero default timeout means a single attempt")

		negative := valid
		negative.DefaultTimeout = -1
		err := negative.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "default_timeout must not be negative")

		noInterval := valid
		noInterval.PollInterval = 0
		err = noInterval.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "poll_interval must be a positive duration")
	})
}

// -- Setter Tests --

func TestSetters(t *testing.T) {
	var cfg Interface = NewDefaultConfig()

	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserConcurrency(9)
	cfg.SetBrowserExecPath("/opt/chrome")
	cfg.SetWaitDefaultTimeout(time.Minute)

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, 9, cfg.Browser().Concurrency)
	assert.Equal(t, "/opt/chrome", cfg.Browser().ExecPath)
	assert.Equal(t, time.Minute, cfg.Wait().DefaultTimeout)
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  concurrency: 2
  args: ["--lang=de"]
wait:
  default_timeout: 1500ms
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 2, cfg.Browser().Concurrency)
		assert.Equal(t, []string{"--lang=de"}, cfg.Browser().Args)
		assert.Equal(t, 1500*time.Millisecond, cfg.Wait().DefaultTimeout)
		// Defaults survive alongside file values.
		assert.Equal(t, 100*time.Millisecond, cfg.Wait().PollInterval)
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("wait.poll_interval", "0s")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "poll_interval must be a positive duration")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		t.Setenv("CHROME_PATH", "/usr/bin/chromium")

		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/chromium", cfg.Browser().ExecPath)
	})
}
