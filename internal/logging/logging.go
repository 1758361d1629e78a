// Package logging builds the process loggers.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the process logger. Verbose enables debug level; output is
// structured JSON on stderr so CLI stdout stays parseable.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// NewErrorLog returns the append-only error log writing one JSON record per
// line to path. Records carry only the fields the caller supplies plus a
// "timestamp"; level and caller noise are stripped so the file stays
// greppable and stable.
func NewErrorLog(path string) (*zap.Logger, error) {
	enc := zapcore.EncoderConfig{
		TimeKey:    "timestamp",
		EncodeTime: zapcore.ISO8601TimeEncoder,
		LineEnding: zapcore.DefaultLineEnding,
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "json",
		EncoderConfig:    enc,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}
