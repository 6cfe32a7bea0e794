package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. Development gets a console
// encoder, everything else JSON. The returned level can be changed while
// the logger is in use.
func NewLogger(level, environment string) (*zap.Logger, zap.AtomicLevel, error) {
	atomic := zap.NewAtomicLevel()
	if err := SetLevel(atomic, level); err != nil {
		return nil, atomic, err
	}

	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = atomic

	logger, err := cfg.Build(zap.Fields(zap.String("service", "accelent")))
	if err != nil {
		return nil, atomic, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, atomic, nil
}

// SetLevel parses level ("debug", "info", ...) into atomic
func SetLevel(atomic zap.AtomicLevel, level string) error {
	if level == "" {
		level = "info"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	atomic.SetLevel(l)
	return nil
}
