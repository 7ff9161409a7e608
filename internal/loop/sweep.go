package loop

import (
	"fmt"
	"math"

	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
	"gonum.org/v1/gonum/floats"
)

// Inputs holds everything a sweep depends on.
type Inputs struct {
	SpotPrice            float64
	InitialCollateral    float64
	FirstLTV             float64
	LiquidationThreshold float64
	SecondLTVs           []float64

	// LPProceeds is asset released from an LP exit and added to the
	// starting stack before looping.
	LPProceeds float64

	// Start replaces the computed first loop with a known position.
	Start *Position

	// ResupplySecondLoop converts second loop borrowings back into
	// collateral. When unset the borrowed currency leaves the protocol.
	ResupplySecondLoop bool
}

// Row is one line of a sweep.
type Row struct {
	FirstLTV             float64 `json:"firstLtv"`
	SecondLTV            float64 `json:"secondLtv"`
	BorrowedAmount       float64 `json:"borrowedAmount"`
	TotalDebt            float64 `json:"totalDebt"`
	CollateralAmount     float64 `json:"collateralAmount"`
	CollateralValue      float64 `json:"collateralValue"`
	HealthScore          float64 `json:"healthScore"`
	LiquidationPrice     float64 `json:"liquidationPrice"`
	PercentToLiquidation float64 `json:"percentToLiquidation"`
	AssetGainPct         float64 `json:"assetGainPct"`
	NoLeverage           bool    `json:"noLeverage"`
	Score                float64 `json:"score"`
	Rank                 int     `json:"rank"`
}

// Validate rejects inputs that cannot be computed.
func Validate(in Inputs) error {
	if !mathutil.IsFinite(in.SpotPrice) || in.SpotPrice <= 0 {
		return invalid("spot price", in.SpotPrice, "must be positive")
	}
	if !mathutil.IsFinite(in.InitialCollateral) || in.InitialCollateral < 0 {
		return invalid("initial collateral", in.InitialCollateral, "must not be negative")
	}
	if !mathutil.IsFinite(in.LPProceeds) || in.LPProceeds < 0 {
		return invalid("LP proceeds", in.LPProceeds, "must not be negative")
	}
	if err := validateLTV("first LTV", in.FirstLTV); err != nil {
		return err
	}
	if !mathutil.IsFinite(in.LiquidationThreshold) || in.LiquidationThreshold <= 0 || in.LiquidationThreshold > 1 {
		return invalid("liquidation threshold", in.LiquidationThreshold, "must be in (0, 1]")
	}
	for _, ltv := range in.SecondLTVs {
		if err := validateLTV("second LTV", ltv); err != nil {
			return err
		}
	}
	if in.Start != nil {
		if !mathutil.IsFinite(in.Start.Collateral) || in.Start.Collateral < 0 {
			return invalid("starting collateral", in.Start.Collateral, "must not be negative")
		}
		if !mathutil.IsFinite(in.Start.Debt) || in.Start.Debt < 0 {
			return invalid("starting debt", in.Start.Debt, "must not be negative")
		}
		if in.Start.Debt > 0 && in.Start.Collateral == 0 {
			return invalid("starting debt", in.Start.Debt, "requires collateral")
		}
	}
	return nil
}

func validateLTV(field string, ltv float64) error {
	if !mathutil.IsFinite(ltv) || ltv < 0 || ltv >= 1 {
		return invalid(field, ltv, "must be in [0, 1)")
	}
	return nil
}

// FirstLoop returns the position after the first loop, or the manual
// starting position when one is given.
func FirstLoop(in Inputs) (Position, error) {
	if err := Validate(in); err != nil {
		return Position{}, err
	}
	return firstLoop(in), nil
}

func firstLoop(in Inputs) Position {
	if in.Start != nil {
		return *in.Start
	}
	pos := Position{Collateral: in.InitialCollateral + in.LPProceeds}
	pos, _ = Step(pos, in.SpotPrice, in.FirstLTV, true)
	return pos
}

// Sweep computes one row per second LTV.
func Sweep(in Inputs) ([]Row, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	base := firstLoop(in)
	stack := in.InitialCollateral + in.LPProceeds

	rows := make([]Row, 0, len(in.SecondLTVs))
	for _, ltv := range in.SecondLTVs {
		pos, borrowed := Step(base, in.SpotPrice, ltv, in.ResupplySecondLoop)
		m := Evaluate(pos, in.SpotPrice, in.LiquidationThreshold)

		row := Row{
			FirstLTV:             in.FirstLTV,
			SecondLTV:            ltv,
			BorrowedAmount:       borrowed,
			TotalDebt:            pos.Debt,
			CollateralAmount:     pos.Collateral,
			CollateralValue:      m.CollateralValue,
			HealthScore:          m.HealthScore,
			LiquidationPrice:     m.LiquidationPrice,
			PercentToLiquidation: m.PercentToLiquidation,
			NoLeverage:           m.NoLeverage,
		}
		if stack > 0 {
			row.AssetGainPct = mathutil.ToPercent(pos.Collateral/stack - 1)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SweepGrid sweeps both loops: every first LTV is combined with every second
// LTV in in.SecondLTVs. Rows are ordered by first LTV, then second LTV.
func SweepGrid(in Inputs, firstLTVs []float64) ([]Row, error) {
	if in.Start != nil {
		return nil, invalid("first LTV sweep", float64(len(firstLTVs)), "cannot be combined with a manual starting position")
	}

	rows := make([]Row, 0, len(firstLTVs)*len(in.SecondLTVs))
	for _, first := range firstLTVs {
		scenario := in
		scenario.FirstLTV = first
		sweep, err := Sweep(scenario)
		if err != nil {
			return nil, err
		}
		rows = append(rows, sweep...)
	}
	return rows, nil
}

// Range returns the equally spaced values start, start+step, ... up to and
// including stop.
func Range(start, stop, step float64) ([]float64, error) {
	if !mathutil.IsFinite(step) || step <= 0 {
		return nil, invalid("step", step, "must be positive")
	}
	if !mathutil.IsFinite(start) || !mathutil.IsFinite(stop) || stop < start {
		return nil, invalid("stop", stop, fmt.Sprintf("must not be below start %v", start))
	}

	count := math.Floor((stop-start)/step+1e-9) + 1
	if !mathutil.IsFinite(count) || count > constants.MaxSweepPoints {
		return nil, invalid("step", step, fmt.Sprintf("produces %g points, limit is %d", count, constants.MaxSweepPoints))
	}
	n := int(count)
	if n == 1 {
		return []float64{start}, nil
	}

	values := floats.Span(make([]float64, n), start, start+float64(n-1)*step)
	for i := range values {
		values[i] = mathutil.RoundTo(values[i], 10)
	}
	return values, nil
}
