package bootstrap

import (
	"fmt"
	"os"

	"backtest_accounts/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *Config) error {
	if cfg.Base.DataPath == "" {
		return fmt.Errorf("base.data_path is required")
	}
	if _, err := os.Stat(cfg.Base.DataPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("scenario file not found: %s", cfg.Base.DataPath)
		}
		return err
	}
	return nil
}
