package core

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions configures NewLogger.
type LogOptions struct {
	// Level is debug, info, warn or error. Empty means warn.
	Level string
	// Format is json or console. Empty means console.
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// NewLogger builds a zap logger from the production config, overriding the
// level, encoding and sink.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	encoderConfig := config.EncoderConfig
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("log format %q: want json or console", opts.Format)
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	sink := zapcore.NewCore(encoder, zapcore.AddSync(out), config.Level)
	return zap.New(sink, zap.AddCaller(), zap.ErrorOutput(zapcore.AddSync(out))), nil
}
