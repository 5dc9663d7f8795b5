package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	keys := []string{
		"CLOSEOUT_APP_ENV",
		"CLOSEOUT_VENDOR_BASE_URL",
		"CLOSEOUT_VENDOR_TOKEN",
		"CLOSEOUT_VENDOR_MAX_RETRIES",
		"CLOSEOUT_VENDOR_TIMEOUT",
		"CLOSEOUT_LEDGER_TABLE",
		"CLOSEOUT_SYNC_DAY_DELAY",
		"CLOSEOUT_SYNC_MAINTENANCE_LIMIT",
		"CLOSEOUT_ARCHIVE_ENABLED",
		"CLOSEOUT_ARCHIVE_BUCKET",
		"CLOSEOUT_TELEMETRY_SAMPLING_RATIO",
	}
	clearEnv := func(t *testing.T) {
		for _, k := range keys {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "closeout-sync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "stderr", cfg.Log.Output)
		assert.Equal(t, "Api-Token", cfg.Vendor.TokenHeader)
		assert.Equal(t, "/api/export/", cfg.Vendor.ExportPath)
		assert.Equal(t, 10*time.Second, cfg.Vendor.Timeout)
		assert.Equal(t, 3, cfg.Vendor.MaxRetries)
		assert.Equal(t, "SalesCloseouts", cfg.Ledger.Table)
		assert.Equal(t, "SALE_CENTER", cfg.Ledger.SaleCenterPartition)
		assert.Equal(t, 200, cfg.Sync.MaintenanceLimit)
		assert.Equal(t, 30*time.Minute, cfg.Sync.LockTTL)
		assert.Equal(t, "closeout-sync", cfg.Telemetry.ServiceName)
		assert.False(t, cfg.Archive.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	})

	t.Run("loads values from environment variables with CLOSEOUT prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CLOSEOUT_VENDOR_BASE_URL", "https://agora.example.com")
		t.Setenv("CLOSEOUT_VENDOR_TOKEN", "secret")
		t.Setenv("CLOSEOUT_VENDOR_MAX_RETRIES", "5")
		t.Setenv("CLOSEOUT_VENDOR_TIMEOUT", "3s")
		t.Setenv("CLOSEOUT_LEDGER_TABLE", "Closeouts-test")
		t.Setenv("CLOSEOUT_SYNC_DAY_DELAY", "100ms")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "https://agora.example.com", cfg.Vendor.BaseURL)
		assert.Equal(t, "secret", cfg.Vendor.Token)
		assert.Equal(t, 5, cfg.Vendor.MaxRetries)
		assert.Equal(t, 3*time.Second, cfg.Vendor.Timeout)
		assert.Equal(t, "Closeouts-test", cfg.Ledger.Table)
		assert.Equal(t, 100*time.Millisecond, cfg.Sync.DayDelay)
	})

	t.Run("rejects relative vendor URL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CLOSEOUT_VENDOR_BASE_URL", "agora.local")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vendor.base_url")
	})

	t.Run("requires bucket when archive is enabled", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CLOSEOUT_ARCHIVE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive.bucket")
	})

	t.Run("requires vendor credentials in production", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CLOSEOUT_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "production")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "negative retries", mutate: func(c *Config) { c.Vendor.MaxRetries = -1 }, wantErr: "vendor.max_retries"},
		{name: "limit too large", mutate: func(c *Config) { c.Sync.MaintenanceLimit = 20000 }, wantErr: "sync.maintenance_limit"},
		{name: "negative day delay", mutate: func(c *Config) { c.Sync.DayDelay = -time.Second }, wantErr: "sync.day_delay"},
		{name: "sampling ratio out of range", mutate: func(c *Config) { c.Telemetry.SamplingRatio = 1.5 }, wantErr: "sampling_ratio"},
		{
			name: "plain http ledger endpoint in production",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.Vendor.BaseURL = "https://agora.example.com"
				c.Vendor.Token = "t"
				c.Ledger.Endpoint = "http://localhost:8000"
			},
			wantErr: "ledger.endpoint",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
