package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Service string
	Env     string
	// Level overrides the environment default: debug locally, info elsewhere.
	Level string
}

// New builds the process logger. Local runs get a colored console encoder,
// any other environment logs JSON with sampling.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Env == "" || opts.Env == "local" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	if opts.Level != "" {
		lvl, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		cfg.Level = lvl
	}

	fields := []zap.Field{zap.String("service", opts.Service)}
	if opts.Env != "" {
		fields = append(fields, zap.String("env", opts.Env))
	}
	return cfg.Build(zap.Fields(fields...))
}
