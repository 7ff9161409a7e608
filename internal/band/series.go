package band

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/leverage-forecast/pkg/datetime"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// DefaultDrawdowns are the percentages below band min charted by default.
var DefaultDrawdowns = []float64{5, 10, 15}

// SeriesPoint is one dated band snapshot.
type SeriesPoint struct {
	Line     int       `json:"line"`
	Date     time.Time `json:"date"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Liq      float64   `json:"liq"`
	LiqLimit float64   `json:"liqLimit"`
}

// Series is the result of ParseSeries.
type Series struct {
	Points []SeriesPoint `json:"points"`
	Errors []LineError   `json:"errors,omitempty"`
}

// ParseSeries reads comma separated lines of
// "serialDate,min,max,liq,liqLimit" where serialDate is a spreadsheet serial
// date. Blank lines are ignored and malformed lines reported.
func ParseSeries(text string) Series {
	var s Series
	for i, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		p, err := parseSeriesLine(line)
		if err != nil {
			s.Errors = append(s.Errors, LineError{Line: i + 1, Text: line, Err: err})
			continue
		}
		p.Line = i + 1
		s.Points = append(s.Points, p)
	}
	return s
}

func parseSeriesLine(line string) (SeriesPoint, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return SeriesPoint{}, fmt.Errorf("%w: expected 5 values, got %d", ErrSyntax, len(parts))
	}

	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := ParseNumber(part)
		if err != nil {
			return SeriesPoint{}, err
		}
		values[i] = v
	}

	date, err := datetime.FromSerial(values[0])
	if err != nil {
		return SeriesPoint{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if values[1] <= 0 || values[2] < values[1] {
		return SeriesPoint{}, fmt.Errorf("%w: min %v max %v", ErrInvalidRange, values[1], values[2])
	}
	return SeriesPoint{
		Date:     date,
		Min:      values[1],
		Max:      values[2],
		Liq:      values[3],
		LiqLimit: values[4],
	}, nil
}

// DrawdownLevels returns the prices pcts percent below min, in the order
// given. A nil pcts uses DefaultDrawdowns.
func DrawdownLevels(min float64, pcts []float64) []Drawdown {
	if pcts == nil {
		pcts = DefaultDrawdowns
	}
	levels := make([]Drawdown, 0, len(pcts))
	for _, p := range pcts {
		levels = append(levels, Drawdown{Percent: p, Price: min * (1 - mathutil.FromPercent(p))})
	}
	return levels
}
