// Package forecast defines the data structures related to a given forecast and
// includes functions for computing the forecasts.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/iwvelando/leverage-forecast/internal/config"
	"github.com/iwvelando/leverage-forecast/internal/grid"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/internal/metrics"
	"github.com/iwvelando/leverage-forecast/internal/price"
	"github.com/iwvelando/leverage-forecast/pkg/adapters"
	"github.com/iwvelando/leverage-forecast/pkg/optimization"
	"go.uber.org/zap"
)

// Symbol labels the collateral asset in grid cells.
const Symbol = "ETH"

// PriceResolver resolves the spot price of an asset.
type PriceResolver interface {
	Resolve(ctx context.Context, asset string) price.Resolution
}

// Forecast holds all information related to a specific forecast.
type Forecast struct {
	Name             string
	Price            price.Resolution
	Inputs           loop.Inputs
	TargetHealth     float64
	FirstLoop        loop.Position
	FirstLoopMetrics loop.Metrics
	Rows             []loop.Row
	Ranked           []loop.Row
	Grid             grid.Grid
	Optimizations    []optimization.Summary
	Warnings         []string
}

// Compute runs one set of inputs: sweep (two dimensional when firstLTVs is
// set), rank and pivot.
func Compute(in loop.Inputs, firstLTVs []float64, ranking loop.Ranking) (Forecast, error) {
	var result Forecast
	result.Inputs = in

	base, err := loop.FirstLoop(in)
	if err != nil {
		return result, err
	}
	result.FirstLoop = base
	result.FirstLoopMetrics = loop.Evaluate(base, in.SpotPrice, in.LiquidationThreshold)

	if len(firstLTVs) > 0 {
		result.Rows, err = loop.SweepGrid(in, firstLTVs)
	} else {
		result.Rows, err = loop.Sweep(in)
	}
	if err != nil {
		return result, err
	}
	metrics.SweepsTotal.Inc()
	metrics.SweepRows.Observe(float64(len(result.Rows)))

	result.Ranked = loop.Rank(result.Rows, ranking)
	result.Grid = grid.Pivot(withRanks(result.Rows, result.Ranked), Symbol)
	return result, nil
}

// withRanks copies the rank and score of each ranked row back onto the full
// row set so the grid can label them.
func withRanks(rows, ranked []loop.Row) []loop.Row {
	type key struct{ first, second float64 }
	byKey := make(map[key]loop.Row, len(ranked))
	for _, r := range ranked {
		byKey[key{r.FirstLTV, r.SecondLTV}] = r
	}
	out := make([]loop.Row, len(rows))
	for i, r := range rows {
		if rr, ok := byKey[key{r.FirstLTV, r.SecondLTV}]; ok {
			r.Rank, r.Score = rr.Rank, rr.Score
		}
		out[i] = r
	}
	return out
}

// GetForecast processes the Forecasts for all active Scenarios. Scenarios
// without a pinned spot price use prices; a nil resolver falls back to the
// configured fallback price.
func GetForecast(ctx context.Context, logger *zap.Logger, conf config.Configuration, prices PriceResolver) ([]Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prices == nil {
		r, err := price.NewResolver(nil, price.ResolverOptions{FallbackPrice: conf.Price.FallbackPrice}, logger)
		if err != nil {
			return nil, err
		}
		prices = r
	}
	ranking := adapters.Ranking(conf.Ranking)

	var results []Forecast
	for _, scenario := range conf.Scenarios {
		if !scenario.Active {
			logger.Debug(fmt.Sprintf("skipping scenario %s because it is inactive", scenario.Name),
				zap.String("op", "forecast.GetForecast"),
			)
			continue
		}

		start := time.Now()
		var resolution price.Resolution
		if scenario.SpotPrice > 0 {
			resolution = price.Manual(conf.Price.Asset, scenario.SpotPrice)
		} else {
			resolution = prices.Resolve(ctx, conf.Price.Asset)
		}

		in, err := adapters.ScenarioInputs(scenario, resolution.Quote.Price)
		if err != nil {
			return results, err
		}
		firstLTVs, err := adapters.FirstLTVs(scenario)
		if err != nil {
			return results, err
		}

		result, err := Compute(in, firstLTVs, ranking)
		if err != nil {
			return results, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.Name = scenario.Name
		result.Price = resolution
		result.TargetHealth = scenario.TargetHealth
		if resolution.Warning != "" {
			result.Warnings = append(result.Warnings, resolution.Warning)
		}
		if len(result.Ranked) == 0 && len(result.Rows) > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("No setups reach the minimum health score of %.2f", ranking.MinHealth))
		}

		logger.Debug("scenario computed",
			zap.String("op", "forecast.GetForecast"),
			zap.String("scenario", scenario.Name),
			zap.Float64("price", resolution.Quote.Price),
			zap.Bool("fallback", resolution.Fallback),
			zap.Int("rows", len(result.Rows)),
			zap.Int("ranked", len(result.Ranked)),
			zap.Duration("duration", time.Since(start)),
		)
		results = append(results, result)
	}

	return results, nil
}
