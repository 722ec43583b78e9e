// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"

	apperrors "backtest_accounts/pkg/errors"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Base      BaseConfig      `yaml:"base"`
	Accounts  AccountsConfig  `yaml:"accounts"`
	System    SystemConfig    `yaml:"system"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BaseConfig contains run-level settings
type BaseConfig struct {
	StartCash        float64 `yaml:"start_cash"`
	MarginMultiplier float64 `yaml:"margin_multiplier"`
	DataPath         string  `yaml:"data_path"`
}

// AccountsConfig contains the position accounting policy switches
type AccountsConfig struct {
	// DividendReinvestment reinvests released dividends as an OPEN trade at
	// the current price instead of returning cash.
	DividendReinvestment bool `yaml:"dividend_reinvestment"`
	// CashReturnByStockDelisted returns the market value of a delisted stock
	// with no successor as cash.
	CashReturnByStockDelisted bool `yaml:"cash_return_by_stock_delisted"`
	// TPlusEnabled subtracts quantity opened today from the closable amount.
	TPlusEnabled bool `yaml:"t_plus_enabled"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level"`
	DatabasePath string `yaml:"database_path"`
	MaxWorkers   int    `yaml:"max_workers"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Base: BaseConfig{
			StartCash:        1000000,
			MarginMultiplier: 1,
		},
		Accounts: AccountsConfig{
			DividendReinvestment:      false,
			CashReturnByStockDelisted: true,
			TPlusEnabled:              true,
		},
		System: SystemConfig{
			LogLevel:   "INFO",
			MaxWorkers: 4,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: false,
		},
	}
}

// LoadConfig reads and validates a yaml configuration file, filling gaps
// from DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// Expand environment variables in the YAML content
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints beyond yaml schema
func (c *Config) Validate() error {
	if c.Base.MarginMultiplier <= 0 {
		return fmt.Errorf("%w: base.margin_multiplier must be positive, got %v", apperrors.ErrInvalidConfiguration, c.Base.MarginMultiplier)
	}
	if c.Base.StartCash < 0 {
		return fmt.Errorf("%w: base.start_cash must not be negative, got %v", apperrors.ErrInvalidConfiguration, c.Base.StartCash)
	}
	if c.System.MaxWorkers < 0 {
		return fmt.Errorf("%w: system.max_workers must not be negative, got %d", apperrors.ErrInvalidConfiguration, c.System.MaxWorkers)
	}
	if c.Telemetry.EnableMetrics && (c.Telemetry.MetricsPort < 1 || c.Telemetry.MetricsPort > 65535) {
		return fmt.Errorf("%w: telemetry.metrics_port out of range: %d", apperrors.ErrInvalidConfiguration, c.Telemetry.MetricsPort)
	}
	switch c.System.LogLevel {
	case "", "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
	default:
		return fmt.Errorf("%w: system.log_level invalid: %s", apperrors.ErrInvalidConfiguration, c.System.LogLevel)
	}
	return nil
}

// MarginMultiplier returns the configured global margin multiplier as a decimal.
func (c *Config) MarginMultiplier() decimal.Decimal {
	return decimal.NewFromFloat(c.Base.MarginMultiplier)
}

// StartCash returns the configured starting cash as a decimal.
func (c *Config) StartCash() decimal.Decimal {
	return decimal.NewFromFloat(c.Base.StartCash)
}

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}
