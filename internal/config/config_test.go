package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "helperpoints.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
port: 9090
commission_percent: 7
settlement_interval: 15m
return_window: 72h
stock:
  widget: 12
`), 0o644))

	t.Setenv("CONFIG_FILE", file)
	t.Setenv("COMMISSION_PERCENT", "10")
	t.Setenv("GATEWAY_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, int64(10), cfg.CommissionPercent, "environment wins over file")
	assert.Equal(t, 15*time.Minute, cfg.SettlementInterval)
	assert.Equal(t, 72*time.Hour, cfg.ReturnWindow)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, int64(100), cfg.PaymentEarnDivisor)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, map[string]int64{"widget": 12}, cfg.Stock)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ALLOCATOR_CANDIDATE_LIMIT=5\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ALLOCATOR_CANDIDATE_LIMIT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.AllocatorCandidateLimit)
}

func TestLoad_BadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "eighty")
	t.Setenv("SETTLEMENT_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "SETTLEMENT_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"postgres without url", func(c *Config) { c.DBDriver = "postgres" }, false},
		{"postgres with url", func(c *Config) { c.DBDriver = "postgres"; c.DatabaseURL = "postgres://x" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mongo" }, false},
		{"commission over 100", func(c *Config) { c.CommissionPercent = 101 }, false},
		{"zero divisor", func(c *Config) { c.PaymentEarnDivisor = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
