// Package observability provides logging, metrics and tracing for GraphMind
// processes.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"graphmind/internal/config"
)

// NewLogger builds a zap logger. Production and JSON format use the
// production encoder; everything else gets the console development logger.
func NewLogger(env config.Environment, cfg config.Logging) (*zap.Logger, error) {
	var zapConfig zap.Config
	if env == config.Production || cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch cfg.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	if cfg.Output != "" {
		zapConfig.OutputPaths = []string{cfg.Output}
		zapConfig.ErrorOutputPaths = []string{cfg.Output}
	}

	return zapConfig.Build()
}
