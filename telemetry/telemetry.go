// Package telemetry provides the structured, leveled diagnostic logger
// used for everything that is NOT part of the deterministic trace
// contract: invalid signatures, wrong-context rejections, panics in
// event handlers, lifecycle notices. The trace log itself
// (tracelog.Writer) is a separate, intentionally dumber writer because
// its byte-for-byte stability is a tested property.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger at the given level. level accepts zap's
// usual names ("debug", "info", "warn", "error"); an unrecognized or
// empty value falls back to "info".
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}

// Noop returns a logger that discards everything, for tests that don't
// care about diagnostic output.
func Noop() *zap.Logger {
	return zap.NewNop()
}
