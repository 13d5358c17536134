package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line.
const ServiceName = "storm-tracker-wx"

// NewLogger builds the process logger from LOG_LEVEL (default INFO) and LOG_FORMAT
// (json by default, console for local runs). Timestamps are ISO8601 under "timestamp".
func NewLogger() (*zap.Logger, error) {
	return newLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func newLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = parseLogLevel(level)
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}
	return cfg.Build()
}

func parseLogLevel(s string) zap.AtomicLevel {
	var lvl zapcore.Level
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		lvl = zap.DebugLevel
	case "WARN", "WARNING":
		lvl = zap.WarnLevel
	case "ERROR":
		lvl = zap.ErrorLevel
	default:
		lvl = zap.InfoLevel
	}
	return zap.NewAtomicLevelAt(lvl)
}
