package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/luckywheel/internal/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "luckywheel.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadServerConfig("/nonexistent/luckywheel.hcl")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "uniform", cfg.Game.Strategy)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	require.NoError(t, cfg.Validate())
}

func TestLoadServerConfigPartialFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server {
  port      = 9000
  log_level = "debug"
}

game {
  betting_seconds = 60
  max_bet         = "500"
  strategy        = "exposure_aware"
  max_exposure    = "2500"
}

storage {
  driver = "memory"
}
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "localhost", cfg.Server.Address, "unset values fall back to defaults")
	assert.Equal(t, 60, cfg.Game.BettingSeconds)
	assert.Equal(t, 10, cfg.Game.SpinPreparationSeconds)
	assert.Equal(t, "500", cfg.Game.MaxBet)
	assert.Equal(t, "1", cfg.Game.MinBet)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "localhost:9000", cfg.GetServerAddress())
}

func TestLoadServerConfigBadHCL(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `server { port = `)
	_, err := LoadServerConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	mutations := map[string]func(*ServerConfig){
		"port zero":          func(c *ServerConfig) { c.Server.Port = 0 },
		"port too large":     func(c *ServerConfig) { c.Server.Port = 70000 },
		"zero rate limit":    func(c *ServerConfig) { c.Server.WagersPerSecond = 0 },
		"zero phase":         func(c *ServerConfig) { c.Game.SpinningSeconds = 0 },
		"min_bet negative":   func(c *ServerConfig) { c.Game.MinBet = "-1" },
		"min_bet garbage":    func(c *ServerConfig) { c.Game.MinBet = "lots" },
		"max below min":      func(c *ServerConfig) { c.Game.MinBet = "10"; c.Game.MaxBet = "5" },
		"multiplier zero":    func(c *ServerConfig) { c.Game.PayoutMultiplier = "0" },
		"cashback over one":  func(c *ServerConfig) { c.Game.CashbackPercent = "1.5" },
		"unknown strategy":   func(c *ServerConfig) { c.Game.Strategy = "house_always_wins" },
		"bad max exposure":   func(c *ServerConfig) { c.Game.Strategy = "exposure_aware"; c.Game.MaxExposure = "x" },
		"unknown driver":     func(c *ServerConfig) { c.Storage.Driver = "postgres" },
		"sqlite needs path":  func(c *ServerConfig) { c.Storage.Path = "" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultServerConfig().Validate())
}

func TestEngineConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultServerConfig()
	cfg.Game.BettingSeconds = 45
	cfg.Game.CloseGraceMillis = 250
	cfg.Game.Strategy = "exposure_aware"
	cfg.Game.MaxExposure = "2500"
	cfg.Game.Seed = 42
	require.NoError(t, cfg.Validate())

	ec := cfg.EngineConfig()
	assert.Equal(t, 45*time.Second, ec.Durations.Betting)
	assert.Equal(t, 11*time.Second, ec.Durations.Spinning)
	assert.Equal(t, 250*time.Millisecond, ec.Ledger.CloseGrace)
	assert.True(t, ec.Ledger.MaxBet.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(42), ec.Seed)

	strategy, ok := ec.Strategy.(engine.ExposureAwareStrategy)
	require.True(t, ok)
	assert.True(t, strategy.MaxExposure.Equal(decimal.NewFromInt(2500)))
}
