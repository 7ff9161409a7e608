// Package validation checks user supplied names against the supported sets.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/leverage-forecast/pkg/constants"
)

var (
	textFormats     = []string{constants.OutputFormatPretty, constants.OutputFormatCSV}
	responseFormats = []string{constants.OutputFormatJSON, constants.OutputFormatPretty, constants.OutputFormatCSV}
)

// ValidateOutputFormat accepts the formats the text writers produce.
func ValidateOutputFormat(format string) error {
	return oneOf("output format", format, textFormats)
}

// ValidateResponseFormat accepts the formats an API forecast can be returned
// in. An empty format means JSON.
func ValidateResponseFormat(format string) error {
	if format == "" {
		return nil
	}
	return oneOf("response format", format, responseFormats)
}

func oneOf(kind, value string, allowed []string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("expected %s of %s, got %q", kind, strings.Join(allowed, ", "), value)
}
