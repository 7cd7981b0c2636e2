package config

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-figure/common"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. The console format uses the development encoder with
// colored levels; json uses the production encoder with ISO8601 timestamps.
//
// Parameters:
//   - cfg: the log section
//
// Returns:
//   - *zap.Logger: the logger
//   - zap.AtomicLevel: the level handle, adjustable at runtime
//   - error: error if the level is unknown or an output path cannot be opened
func NewLogger(cfg LogConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(common.Coalesce(cfg.Level, "info")))
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("log level: %w", err)
	}
	atom := zap.NewAtomicLevelAt(level)

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zc := zap.Config{
		Level:            atom,
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zc.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return logger, atom, nil
}
