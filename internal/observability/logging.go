// Package observability provides logging and metrics for the relay server.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/flapper/internal/config"
)

// ServiceName is attached to every log line as the "service" field.
const ServiceName = "flapper"

// NewLogger builds the process logger.
//
// Precondition: cfg must pass config.Validate.
// Postcondition: Returns a logger tagged with ServiceName, or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg, err := zapConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := zapCfg.Build(zap.Fields(zap.String("service", ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// zapConfig maps a LoggingConfig onto zap's presets. JSON is the production
// preset with sampling off so every join and leave is kept; console is the
// development preset. Both write ISO8601 timestamps to stderr.
func zapConfig(cfg config.LoggingConfig) (zap.Config, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
		zapCfg.Sampling = nil
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg, nil
}
