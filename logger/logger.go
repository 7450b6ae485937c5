// Package logger holds the process-wide zap logger used by every service.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log stays a no-op until InitLogger runs, so packages and tests can log freely.
var Log = zap.NewNop()

// InitLogger switches Log to JSON output for "production" and to a colored
// console encoder for any other environment.
func InitLogger(env string) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	built, err := cfg.Build()
	if err != nil {
		panic("logger: " + err.Error())
	}
	Log = built.With(zap.String("service", "wallet-sync"))
}

func Info(msg string, fields ...zapcore.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { Log.Error(msg, fields...) }
func Debug(msg string, fields ...zapcore.Field) { Log.Debug(msg, fields...) }

// With scopes a child logger, e.g. to one wallet identity or toast.
func With(fields ...zapcore.Field) *zap.Logger { return Log.With(fields...) }

func Sync() error { return Log.Sync() }
