// Package band parses pasted LP band descriptions.
//
// The accepted text is line oriented:
//
//	document = { line }
//	line     = blank | header | drawdown
//	header   = label { "|" field }
//	drawdown = pct "% Down" "=" number { "|" field }
//	field    = key "=" number
//	number   = ["$"] digits-with-commas ["." digits] ["%"]
//
// A header opens a band and must carry Min and Max. Drawdown lines attach to
// the most recent band. Malformed lines are reported and skipped.
package band

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrSyntax marks a line that does not match the grammar.
	ErrSyntax = errors.New("syntax error")
	// ErrMissingField marks a header without Min or Max.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidRange marks a band whose bounds are not ordered positive prices.
	ErrInvalidRange = errors.New("invalid band range")
	// ErrOrphanDrawdown marks a drawdown line with no band to attach to.
	ErrOrphanDrawdown = errors.New("drawdown without a band")
)

// Band is one parsed band.
type Band struct {
	Line       int                `json:"line"`
	Label      string             `json:"label"`
	Min        float64            `json:"min"`
	Max        float64            `json:"max"`
	LiqPrice   *float64           `json:"liqPrice,omitempty"`
	LiqDropPct *float64           `json:"liqDropPct,omitempty"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
	Drawdowns  []Drawdown         `json:"drawdowns,omitempty"`
}

// Drawdown is a "<pct>% Down = <price>" line.
type Drawdown struct {
	Line       int                `json:"line"`
	Percent    float64            `json:"percent"`
	Price      float64            `json:"price"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
}

// LineError reports a skipped line. Line is 1-based.
type LineError struct {
	Line int    `json:"line"`
	Text string `json:"text"`
	Err  error  `json:"-"`
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Document is the result of Parse.
type Document struct {
	Bands  []Band      `json:"bands"`
	Errors []LineError `json:"errors,omitempty"`
}

var drawdownPattern = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*%\s*down$`)

type field struct {
	key   string
	value float64
}

// Parse reads every line of text. It never fails as a whole: the returned
// document holds the bands that parsed and one error per skipped line.
func Parse(text string) Document {
	var doc Document
	current := -1

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		segments := strings.Split(line, "|")
		head := strings.TrimSpace(segments[0])
		fail := func(err error) {
			doc.Errors = append(doc.Errors, LineError{Line: lineNo, Text: line, Err: err})
		}

		if key, value, ok := strings.Cut(head, "="); ok {
			if m := drawdownPattern.FindStringSubmatch(strings.TrimSpace(key)); m != nil {
				if current < 0 {
					fail(ErrOrphanDrawdown)
					continue
				}
				dd, err := parseDrawdown(lineNo, m[1], value, segments[1:])
				if err != nil {
					fail(err)
					continue
				}
				doc.Bands[current].Drawdowns = append(doc.Bands[current].Drawdowns, dd)
				continue
			}
		}

		b, err := parseHeader(lineNo, segments)
		if err != nil {
			// Drawdowns following a rejected header must not land on an
			// earlier band.
			current = -1
			fail(err)
			continue
		}
		doc.Bands = append(doc.Bands, b)
		current = len(doc.Bands) - 1
	}
	return doc
}

func parseHeader(lineNo int, segments []string) (Band, error) {
	b := Band{Line: lineNo}
	fieldSegments := segments[1:]
	head := strings.TrimSpace(segments[0])
	if strings.Contains(head, "=") {
		fieldSegments = segments
	} else {
		b.Label = head
	}

	fields, err := parseFields(fieldSegments)
	if err != nil {
		return Band{}, err
	}

	var haveMin, haveMax bool
	for _, f := range fields {
		switch normalizeKey(f.key) {
		case "min":
			b.Min, haveMin = f.value, true
		case "max":
			b.Max, haveMax = f.value, true
		case "liq. price", "liq price", "liquidation price":
			v := f.value
			b.LiqPrice = &v
		case "liq. drop %", "liq drop %", "liq. drop", "liq drop":
			v := f.value
			b.LiqDropPct = &v
		default:
			if b.Attributes == nil {
				b.Attributes = make(map[string]float64)
			}
			b.Attributes[f.key] = f.value
		}
	}

	switch {
	case !haveMin && !haveMax:
		return Band{}, fmt.Errorf("%w: Min and Max", ErrMissingField)
	case !haveMin:
		return Band{}, fmt.Errorf("%w: Min", ErrMissingField)
	case !haveMax:
		return Band{}, fmt.Errorf("%w: Max", ErrMissingField)
	}
	if b.Min <= 0 || b.Max < b.Min {
		return Band{}, fmt.Errorf("%w: min %v max %v", ErrInvalidRange, b.Min, b.Max)
	}
	return b, nil
}

func parseDrawdown(lineNo int, pct, value string, rest []string) (Drawdown, error) {
	p, err := strconv.ParseFloat(pct, 64)
	if err != nil {
		return Drawdown{}, fmt.Errorf("%w: drawdown percent %q", ErrSyntax, pct)
	}
	price, err := ParseNumber(value)
	if err != nil {
		return Drawdown{}, err
	}
	dd := Drawdown{Line: lineNo, Percent: p, Price: price}

	fields, err := parseFields(rest)
	if err != nil {
		return Drawdown{}, err
	}
	for _, f := range fields {
		if dd.Attributes == nil {
			dd.Attributes = make(map[string]float64)
		}
		dd.Attributes[f.key] = f.value
	}
	return dd, nil
}

func parseFields(segments []string) ([]field, error) {
	fields := make([]field, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: expected key = value, got %q", ErrSyntax, seg)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("%w: empty key in %q", ErrSyntax, seg)
		}
		v, err := ParseNumber(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		fields = append(fields, field{key: key, value: v})
	}
	return fields, nil
}

// ParseNumber accepts an optional leading "$", thousands separators and a
// trailing "%". The percent sign is dropped, not applied.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	if s == "" || strings.ContainsAny(s, "eEnNiI+-") {
		return 0, fmt.Errorf("%w: invalid number %q", ErrSyntax, s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: invalid number %q", ErrSyntax, s)
	}
	if neg {
		v = -v
	}
	return v, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}
