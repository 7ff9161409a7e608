// Package optimizer solves for the largest second loop LTV that keeps a
// position at or above a target health score.
package optimizer

import (
	"fmt"
	"math"

	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/pkg/format"
	"github.com/iwvelando/leverage-forecast/pkg/optimization"
	"go.uber.org/zap"
)

// FieldSecondLTV names the solved field in summaries.
const FieldSecondLTV = "secondLtv"

const (
	// resolution is the LTV granularity of solved values.
	resolution = 1e-4
	// maxIterations bounds the verification walk below the closed form.
	maxIterations = 100
)

// Runner solves the second loop LTV for each forecast with a target health.
type Runner struct {
	logger *zap.Logger
}

// Result summarizes optimizer solutions keyed by scenario name.
type Result struct {
	Summaries map[string][]optimization.Summary
}

// Empty indicates whether any optimizer solutions were produced.
func (r Result) Empty() bool {
	return len(r.Summaries) == 0
}

// Apply attaches optimizer summaries to the provided forecast results.
func (r Result) Apply(forecasts []forecast.Forecast) {
	if len(r.Summaries) == 0 {
		return
	}
	for i := range forecasts {
		summaries, ok := r.Summaries[forecasts[i].Name]
		if !ok {
			continue
		}
		forecasts[i].Optimizations = append(forecasts[i].Optimizations, summaries...)
	}
}

// NewRunner constructs a Runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run solves every forecast that carries a target health score.
func (r *Runner) Run(forecasts []forecast.Forecast) (*Result, error) {
	summaries := make(map[string][]optimization.Summary)

	for _, fc := range forecasts {
		if fc.TargetHealth <= 0 {
			continue
		}
		summary, err := Solve(fc.Inputs, fc.TargetHealth)
		if err != nil {
			return nil, fmt.Errorf("optimizer: scenario %s: %w", fc.Name, err)
		}
		summary.TargetName = fc.Name
		summaries[fc.Name] = append(summaries[fc.Name], summary)

		r.logger.Info("optimizer solved second loop LTV",
			zap.String("op", "optimizer.Runner.Run"),
			zap.String("scenario", fc.Name),
			zap.Float64("targetHealth", summary.TargetHealth),
			zap.Float64("originalNumeric", summary.Original),
			zap.Float64("optimizedNumeric", summary.Value),
			zap.String("optimizedDisplay", summary.ValueDisplay),
			zap.Float64("healthScore", summary.HealthScore),
			zap.Float64("headroom", summary.Headroom),
			zap.Int("iterations", summary.Iterations),
			zap.Bool("converged", summary.Converged),
		)
	}

	return &Result{Summaries: summaries}, nil
}

// Solve returns the largest second loop LTV, on a 0.0001 grid, whose health
// score stays at or above target. The closed form is verified by evaluating
// the position and stepping down until the target holds.
func Solve(in loop.Inputs, target float64) (optimization.Summary, error) {
	summary := optimization.Summary{
		Scope:        "scenario",
		Field:        FieldSecondLTV,
		TargetHealth: target,
	}
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 1 {
		return summary, fmt.Errorf("%w: target health %v must be greater than 1", loop.ErrInvalidInput, target)
	}

	base, err := loop.FirstLoop(in)
	if err != nil {
		return summary, err
	}
	summary.Original = bestSwept(in, base, target)
	summary.OriginalDisplay = format.Percent(summary.Original)

	baseValue := base.Collateral * in.SpotPrice
	if baseValue <= 0 {
		summary.Notes = []string{"no collateral to borrow against"}
		return summary, nil
	}

	baseHealth := loop.HealthScore(base, in.SpotPrice, in.LiquidationThreshold)
	if baseHealth < target {
		m := loop.Evaluate(base, in.SpotPrice, in.LiquidationThreshold)
		summary.ValueDisplay = format.Percent(0)
		summary.HealthScore = m.HealthScore
		summary.LiquidationPrice = m.LiquidationPrice
		summary.Headroom = m.HealthScore - target
		summary.Notes = []string{fmt.Sprintf("first loop health %s is already below target %s", format.Ratio(baseHealth), format.Ratio(target))}
		return summary, nil
	}

	value := closedForm(base.Debt, baseValue, in.LiquidationThreshold, target, in.ResupplySecondLoop)
	value = math.Floor(value/resolution+1e-9) * resolution
	if ceiling := maxLTV(in.LiquidationThreshold); value > ceiling {
		value = ceiling
		summary.Notes = append(summary.Notes, fmt.Sprintf("capped below the liquidation threshold at %s", format.Percent(ceiling)))
	}
	if value < 0 {
		value = 0
	}

	pos, _ := loop.Step(base, in.SpotPrice, value, in.ResupplySecondLoop)
	m := loop.Evaluate(pos, in.SpotPrice, in.LiquidationThreshold)
	for m.HealthScore < target && value > 0 && summary.Iterations < maxIterations {
		value = math.Max(0, roundLTV(value-resolution))
		pos, _ = loop.Step(base, in.SpotPrice, value, in.ResupplySecondLoop)
		m = loop.Evaluate(pos, in.SpotPrice, in.LiquidationThreshold)
		summary.Iterations++
	}

	summary.Value = roundLTV(value)
	summary.ValueDisplay = format.Percent(summary.Value)
	summary.HealthScore = m.HealthScore
	summary.LiquidationPrice = m.LiquidationPrice
	summary.Headroom = m.HealthScore - target
	summary.Converged = m.HealthScore >= target
	if !summary.Converged {
		summary.Notes = append(summary.Notes, fmt.Sprintf("unable to reach health %s within %d iterations", format.Ratio(target), maxIterations))
	}
	return summary, nil
}

// closedForm solves health(l) = target for l given the first loop debt and
// collateral value.
//
// Without resupply the collateral is fixed:
//
//	value*LT / (debt + value*l) = target
//
// With resupply the borrowed amount is added back as collateral:
//
//	value*(1+l)*LT / (debt + value*l) = target
func closedForm(debt, value, threshold, target float64, resupply bool) float64 {
	if !resupply {
		return (value*threshold/target - debt) / value
	}
	if target <= threshold {
		return math.Inf(1)
	}
	return (value*threshold - target*debt) / (value * (target - threshold))
}

// maxLTV is the largest grid value strictly below the liquidation threshold.
func maxLTV(threshold float64) float64 {
	return math.Floor((threshold-resolution)/resolution+1e-9) * resolution
}

// bestSwept returns the largest swept second LTV that meets target, or 0.
func bestSwept(in loop.Inputs, base loop.Position, target float64) float64 {
	best := 0.0
	for _, ltv := range in.SecondLTVs {
		pos, _ := loop.Step(base, in.SpotPrice, ltv, in.ResupplySecondLoop)
		if loop.HealthScore(pos, in.SpotPrice, in.LiquidationThreshold) >= target && ltv > best {
			best = ltv
		}
	}
	return best
}

func roundLTV(v float64) float64 {
	return math.Round(v/resolution) * resolution
}
