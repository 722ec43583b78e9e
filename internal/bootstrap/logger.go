package bootstrap

import (
	"backtest_accounts/internal/core"
	"backtest_accounts/pkg/logging"
)

// InitLogger builds the application logger from configuration and installs
// it as the global logger.
func InitLogger(cfg *Config) (core.ILogger, error) {
	logger, err := logging.NewLoggerFromString(cfg.System.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetGlobalLogger(logger)
	return logger, nil
}
