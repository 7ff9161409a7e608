// Package loop computes the collateral, debt and health metrics of leveraged
// lending loops: borrow against supplied collateral, convert the borrowed
// currency back into the collateral asset and supply it again.
//
// Every function in this package is pure. Inputs are passed by value and
// results depend only on them.
package loop

import (
	"math"

	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// Position is a lending position: collateral in asset units and debt in the
// debt currency.
type Position struct {
	Collateral float64 `json:"collateral"`
	Debt       float64 `json:"debt"`
}

// Metrics are the risk figures of a position at a given spot price.
type Metrics struct {
	CollateralValue      float64
	HealthScore          float64
	LiquidationPrice     float64
	PercentToLiquidation float64
	// NoLeverage is set when the position carries no debt. HealthScore is
	// +Inf in that case.
	NoLeverage bool
}

// Step performs one loop on pos. The borrowed amount is collateral value
// times ltv; when resupply is set it is converted back into the asset at
// price and added to the collateral.
func Step(pos Position, price, ltv float64, resupply bool) (Position, float64) {
	collateralValue := pos.Collateral * price
	debtAdded := collateralValue * ltv
	if resupply && price > 0 {
		pos.Collateral += debtAdded / price
	}
	pos.Debt += debtAdded
	return pos, debtAdded
}

// Evaluate returns the health metrics of pos at price under the given
// liquidation threshold.
func Evaluate(pos Position, price, threshold float64) Metrics {
	m := Metrics{CollateralValue: pos.Collateral * price}

	if pos.Debt == 0 {
		m.HealthScore = math.Inf(1)
		m.PercentToLiquidation = 1
		m.NoLeverage = true
		return m
	}

	m.HealthScore = m.CollateralValue * threshold / pos.Debt

	weighted := pos.Collateral * threshold
	if weighted == 0 {
		m.LiquidationPrice = math.Inf(1)
		return m
	}
	m.LiquidationPrice = pos.Debt / weighted
	if price > 0 {
		m.PercentToLiquidation = mathutil.Clamp(1-m.LiquidationPrice/price, 0, 1)
	}
	return m
}

// HealthScore is a shorthand for Evaluate(pos, price, threshold).HealthScore.
func HealthScore(pos Position, price, threshold float64) float64 {
	return Evaluate(pos, price, threshold).HealthScore
}
