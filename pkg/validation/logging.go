package validation

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Supported log encodings.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// ParseLogLevel maps a configured level name to a zap level. An empty name
// is info.
func ParseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// ValidateLogFormat checks the log encoding. An empty format is json.
func ValidateLogFormat(format string) error {
	switch format {
	case "", LogFormatJSON, LogFormatConsole:
		return nil
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
}
