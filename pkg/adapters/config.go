// Package adapters provides adapter implementations between different package interfaces.
package adapters

import (
	"fmt"

	"github.com/iwvelando/leverage-forecast/internal/config"
	"github.com/iwvelando/leverage-forecast/internal/loop"
)

// ScenarioInputs converts a configured scenario into sweep inputs at spot.
func ScenarioInputs(s config.Scenario, spot float64) (loop.Inputs, error) {
	secondLTVs, err := loop.Range(s.SecondLTV.Start, s.SecondLTV.Stop, s.SecondLTV.Step)
	if err != nil {
		return loop.Inputs{}, fmt.Errorf("scenario %s second LTV sweep: %w", s.Name, err)
	}

	in := loop.Inputs{
		SpotPrice:            spot,
		InitialCollateral:    s.InitialCollateral,
		FirstLTV:             s.FirstLTV,
		LiquidationThreshold: s.LiquidationThreshold,
		SecondLTVs:           secondLTVs,
		LPProceeds:           s.LPProceeds,
		ResupplySecondLoop:   s.ResupplySecondLoop,
	}
	if s.Start != nil {
		in.Start = &loop.Position{Collateral: s.Start.Collateral, Debt: s.Start.Debt}
	}
	return in, nil
}

// FirstLTVs returns the swept first loop ratios of a scenario, or nil when
// the first loop is fixed. A manual start always fixes the first loop.
func FirstLTVs(s config.Scenario) ([]float64, error) {
	if s.FirstLTVSweep == nil || s.Start != nil {
		return nil, nil
	}
	values, err := loop.Range(s.FirstLTVSweep.Start, s.FirstLTVSweep.Stop, s.FirstLTVSweep.Step)
	if err != nil {
		return nil, fmt.Errorf("scenario %s first LTV sweep: %w", s.Name, err)
	}
	return values, nil
}

// Ranking converts the ranking configuration.
func Ranking(rc config.RankingConfig) loop.Ranking {
	return loop.Ranking{
		MinHealth: rc.MinHealth,
		Weights: loop.Weights{
			Health:      rc.Weights.Health,
			Liquidation: rc.Weights.Liquidation,
			Gain:        rc.Weights.Gain,
			Debt:        rc.Weights.Debt,
		},
	}
}
