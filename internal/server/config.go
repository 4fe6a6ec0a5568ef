package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"

	"github.com/lox/luckywheel/internal/engine"
	"github.com/lox/luckywheel/internal/game"
	"github.com/lox/luckywheel/internal/ledger"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server  ServerSettings  `hcl:"server,block"`
	Game    GameSettings    `hcl:"game,block"`
	Storage StorageSettings `hcl:"storage,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address         string `hcl:"address,optional"`
	Port            int    `hcl:"port,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	LogFile         string `hcl:"log_file,optional"`
	AdminToken      string `hcl:"admin_token,optional"`
	WagersPerSecond int    `hcl:"wagers_per_second,optional"`
}

// GameSettings contains the round lifecycle and money rules. Durations
// are whole seconds; money values are decimal strings.
type GameSettings struct {
	BettingSeconds         int    `hcl:"betting_seconds,optional"`
	SpinPreparationSeconds int    `hcl:"spin_preparation_seconds,optional"`
	SpinningSeconds        int    `hcl:"spinning_seconds,optional"`
	ResultSeconds          int    `hcl:"result_seconds,optional"`
	TransitionSeconds      int    `hcl:"transition_seconds,optional"`
	ExtendBettingSeconds   int    `hcl:"extend_betting_seconds,optional"`
	CloseGraceMillis       int    `hcl:"close_grace_millis,optional"`
	MinBet                 string `hcl:"min_bet,optional"`
	MaxBet                 string `hcl:"max_bet,optional"`
	SecondaryThreshold     string `hcl:"secondary_threshold,optional"`
	PayoutMultiplier       string `hcl:"payout_multiplier,optional"`
	CashbackPercent        string `hcl:"cashback_percent,optional"`
	Strategy               string `hcl:"strategy,optional"`
	MaxExposure            string `hcl:"max_exposure,optional"`
	Seed                   int64  `hcl:"seed,optional"`
}

// StorageSettings selects the persistence backend
type StorageSettings struct {
	Driver string `hcl:"driver,optional"` // sqlite or memory
	Path   string `hcl:"path,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:         "localhost",
			Port:            8080,
			LogLevel:        "info",
			LogFile:         "luckywheel-server.log",
			WagersPerSecond: 5,
		},
		Game: GameSettings{
			BettingSeconds:         30,
			SpinPreparationSeconds: 10,
			SpinningSeconds:        11,
			ResultSeconds:          9,
			TransitionSeconds:      3,
			ExtendBettingSeconds:   15,
			MinBet:                 "1",
			MaxBet:                 "1000",
			SecondaryThreshold:     "10",
			PayoutMultiplier:       "5",
			CashbackPercent:        "0.10",
			Strategy:               "uniform",
			MaxExposure:            "10000",
		},
		Storage: StorageSettings{
			Driver: "sqlite",
			Path:   "luckywheel.db",
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	defaults := DefaultServerConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Server.LogFile == "" {
		config.Server.LogFile = defaults.Server.LogFile
	}
	if config.Server.WagersPerSecond == 0 {
		config.Server.WagersPerSecond = defaults.Server.WagersPerSecond
	}

	if config.Game.BettingSeconds == 0 {
		config.Game.BettingSeconds = defaults.Game.BettingSeconds
	}
	if config.Game.SpinPreparationSeconds == 0 {
		config.Game.SpinPreparationSeconds = defaults.Game.SpinPreparationSeconds
	}
	if config.Game.SpinningSeconds == 0 {
		config.Game.SpinningSeconds = defaults.Game.SpinningSeconds
	}
	if config.Game.ResultSeconds == 0 {
		config.Game.ResultSeconds = defaults.Game.ResultSeconds
	}
	if config.Game.TransitionSeconds == 0 {
		config.Game.TransitionSeconds = defaults.Game.TransitionSeconds
	}
	if config.Game.ExtendBettingSeconds == 0 {
		config.Game.ExtendBettingSeconds = defaults.Game.ExtendBettingSeconds
	}
	if config.Game.MinBet == "" {
		config.Game.MinBet = defaults.Game.MinBet
	}
	if config.Game.MaxBet == "" {
		config.Game.MaxBet = defaults.Game.MaxBet
	}
	if config.Game.SecondaryThreshold == "" {
		config.Game.SecondaryThreshold = defaults.Game.SecondaryThreshold
	}
	if config.Game.PayoutMultiplier == "" {
		config.Game.PayoutMultiplier = defaults.Game.PayoutMultiplier
	}
	if config.Game.CashbackPercent == "" {
		config.Game.CashbackPercent = defaults.Game.CashbackPercent
	}
	if config.Game.Strategy == "" {
		config.Game.Strategy = defaults.Game.Strategy
	}
	if config.Game.MaxExposure == "" {
		config.Game.MaxExposure = defaults.Game.MaxExposure
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = defaults.Storage.Driver
	}
	if config.Storage.Path == "" {
		config.Storage.Path = defaults.Storage.Path
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.WagersPerSecond < 1 {
		return fmt.Errorf("wagers_per_second must be positive")
	}

	for name, secs := range map[string]int{
		"betting_seconds":          c.Game.BettingSeconds,
		"spin_preparation_seconds": c.Game.SpinPreparationSeconds,
		"spinning_seconds":         c.Game.SpinningSeconds,
		"result_seconds":           c.Game.ResultSeconds,
		"transition_seconds":       c.Game.TransitionSeconds,
	} {
		if secs < 1 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	minBet, err := decimal.NewFromString(c.Game.MinBet)
	if err != nil || !minBet.IsPositive() {
		return fmt.Errorf("min_bet must be a positive decimal, got %q", c.Game.MinBet)
	}
	maxBet, err := decimal.NewFromString(c.Game.MaxBet)
	if err != nil || maxBet.LessThan(minBet) {
		return fmt.Errorf("max_bet must be a decimal >= min_bet, got %q", c.Game.MaxBet)
	}
	if _, err := decimal.NewFromString(c.Game.SecondaryThreshold); err != nil {
		return fmt.Errorf("secondary_threshold must be a decimal, got %q", c.Game.SecondaryThreshold)
	}
	multiplier, err := decimal.NewFromString(c.Game.PayoutMultiplier)
	if err != nil || !multiplier.IsPositive() {
		return fmt.Errorf("payout_multiplier must be a positive decimal, got %q", c.Game.PayoutMultiplier)
	}
	cashback, err := decimal.NewFromString(c.Game.CashbackPercent)
	if err != nil || cashback.IsNegative() || cashback.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("cashback_percent must be a decimal in [0, 1], got %q", c.Game.CashbackPercent)
	}

	switch c.Game.Strategy {
	case "uniform":
	case "exposure_aware":
		if _, err := decimal.NewFromString(c.Game.MaxExposure); err != nil {
			return fmt.Errorf("max_exposure must be a decimal, got %q", c.Game.MaxExposure)
		}
	default:
		return fmt.Errorf("invalid strategy %q", c.Game.Strategy)
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path required for sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage driver %q", c.Storage.Driver)
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// EngineConfig builds the round engine configuration. Validate must have
// passed first; decimal parse errors here are unreachable.
func (c *ServerConfig) EngineConfig() game.Config {
	cfg := game.DefaultConfig()
	cfg.Durations = engine.Durations{
		Betting:         time.Duration(c.Game.BettingSeconds) * time.Second,
		SpinPreparation: time.Duration(c.Game.SpinPreparationSeconds) * time.Second,
		Spinning:        time.Duration(c.Game.SpinningSeconds) * time.Second,
		Result:          time.Duration(c.Game.ResultSeconds) * time.Second,
		Transition:      time.Duration(c.Game.TransitionSeconds) * time.Second,
	}
	cfg.Ledger = ledger.Config{
		MinBet:             decimal.RequireFromString(c.Game.MinBet),
		MaxBet:             decimal.RequireFromString(c.Game.MaxBet),
		SecondaryThreshold: decimal.RequireFromString(c.Game.SecondaryThreshold),
		PayoutMultiplier:   decimal.RequireFromString(c.Game.PayoutMultiplier),
		CashbackPercent:    decimal.RequireFromString(c.Game.CashbackPercent),
		CloseGrace:         time.Duration(c.Game.CloseGraceMillis) * time.Millisecond,
	}
	cfg.ExtendBettingBy = time.Duration(c.Game.ExtendBettingSeconds) * time.Second
	cfg.Seed = c.Game.Seed
	if c.Game.Strategy == "exposure_aware" {
		cfg.Strategy = engine.ExposureAwareStrategy{
			MaxExposure: decimal.RequireFromString(c.Game.MaxExposure),
		}
	}
	return cfg
}
