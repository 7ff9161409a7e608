// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"math"
	"time"
)

const (
	// DateLayout is the output date format for series points.
	DateLayout = "2006-01-02"

	// DateTimeLayout is the output format for candle timestamps.
	DateTimeLayout = "2006-01-02 15:04"
)

// spreadsheetEpoch is day zero of spreadsheet serial dates. It absorbs the
// historical 1900 leap year bug so serials after February 1900 line up.
var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// FromSerial converts a spreadsheet serial date (days since 1899-12-30, with
// an optional fractional day) into a UTC time.
func FromSerial(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 {
		return time.Time{}, fmt.Errorf("invalid serial date %v", serial)
	}
	days := math.Floor(serial)
	seconds := math.Round((serial - days) * 24 * 60 * 60)
	return spreadsheetEpoch.AddDate(0, 0, int(days)).Add(time.Duration(seconds) * time.Second), nil
}

// ToSerial converts a time into a spreadsheet serial date.
func ToSerial(t time.Time) float64 {
	return t.UTC().Sub(spreadsheetEpoch).Hours() / 24
}

// FromUnixMilli converts a millisecond epoch timestamp, as used by candle
// APIs, into a UTC time.
func FromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
