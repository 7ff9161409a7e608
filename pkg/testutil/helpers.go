// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// FindScenario finds a scenario by name in the results slice.
// Returns a pointer to the forecast if found, nil otherwise.
func FindScenario(results []forecast.Forecast, name string) *forecast.Forecast {
	for i := range results {
		if results[i].Name == name {
			return &results[i]
		}
	}
	return nil
}

// FindRow finds the sweep row for a first and second LTV pair.
// Returns a pointer to the row if found, nil otherwise.
func FindRow(rows []loop.Row, firstLTV, secondLTV float64) *loop.Row {
	for i := range rows {
		if mathutil.WithinTolerance(rows[i].FirstLTV, firstLTV, 1e-9) &&
			mathutil.WithinTolerance(rows[i].SecondLTV, secondLTV, 1e-9) {
			return &rows[i]
		}
	}
	return nil
}
