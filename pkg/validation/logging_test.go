package validation

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		expected  zapcore.Level
		expectErr bool
	}{
		{name: "Empty defaults to info", level: "", expected: zapcore.InfoLevel},
		{name: "Debug", level: "debug", expected: zapcore.DebugLevel},
		{name: "Warning alias", level: "warning", expected: zapcore.WarnLevel},
		{name: "Uppercase error", level: "ERROR", expected: zapcore.ErrorLevel},
		{name: "Padded info", level: " info ", expected: zapcore.InfoLevel},
		{name: "Unknown level", level: "trace", expectErr: true},
		{name: "Fatal is not configurable", level: "fatal", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLogLevel(tt.level)
			if tt.expectErr {
				if err == nil {
					t.Errorf("ParseLogLevel(%q) expected error but got none", tt.level)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLogLevel(%q) unexpected error = %v", tt.level, err)
			}
			if level != tt.expected {
				t.Errorf("ParseLogLevel(%q) = %v, expected %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestValidateLogFormat(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		if err := ValidateLogFormat(format); err != nil {
			t.Errorf("ValidateLogFormat(%q) unexpected error = %v", format, err)
		}
	}
	for _, format := range []string{"text", "JSON", "logfmt"} {
		if err := ValidateLogFormat(format); err == nil {
			t.Errorf("ValidateLogFormat(%q) expected error but got none", format)
		}
	}
}
