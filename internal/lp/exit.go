// Package lp plans concentrated liquidity exits, scores liquidation
// clusters and detects LP entry signals from candles.
package lp

import (
	"fmt"

	"github.com/iwvelando/leverage-forecast/pkg/format"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// RangeStatus locates a price relative to an LP range.
type RangeStatus string

const (
	InRange    RangeStatus = "in"
	AboveRange RangeStatus = "above"
	BelowRange RangeStatus = "below"
)

// Status returns where price sits relative to [low, high].
func Status(price, low, high float64) RangeStatus {
	switch {
	case price > high:
		return AboveRange
	case price < low:
		return BelowRange
	default:
		return InRange
	}
}

// ExitInputs describe an LP funded by second loop borrowings.
type ExitInputs struct {
	Low           float64 `json:"low"`
	High          float64 `json:"high"`
	CurrentPrice  float64 `json:"currentPrice"`
	ScenarioPrice float64 `json:"scenarioPrice"`
	FeesEarned    float64 `json:"feesEarned"`
	Debt          float64 `json:"debt"`
	Stack         float64 `json:"stack"`
}

// ExitPlan is the outcome of PlanExit. Amounts named in asset units are
// converted at ScenarioPrice.
type ExitPlan struct {
	Status          RangeStatus `json:"status"`
	ScenarioPrice   float64     `json:"scenarioPrice"`
	CollateralValue float64     `json:"collateralValue"`
	DebtInAsset     float64     `json:"debtInAsset"`
	NetAfterRepay   float64     `json:"netAfterRepay"`
	CanRepay        bool        `json:"canRepay"`
	Remaining       float64     `json:"remaining"`
	Shortfall       float64     `json:"shortfall"`
	PctAboveRange   float64     `json:"pctAboveRange"`
	RecoveryPrice   *float64    `json:"recoveryPrice,omitempty"`
	Guidance        string      `json:"guidance"`
}

// PlanExit evaluates repaying the second loop debt.
//
// Above the range the LP is fully in the debt currency and fees are the
// asset on hand, so repayment is judged on fees alone. Below the range the
// LP is fully in the asset and the whole stack can repay; when it cannot,
// RecoveryPrice is the price at which the stack covers the debt, and stays
// nil when there is no stack left to recover.
func PlanExit(in ExitInputs) (ExitPlan, error) {
	if err := validateExit(in); err != nil {
		return ExitPlan{}, err
	}
	scenario := in.ScenarioPrice
	if scenario == 0 {
		scenario = in.CurrentPrice
	}

	p := ExitPlan{
		Status:          Status(in.CurrentPrice, in.Low, in.High),
		ScenarioPrice:   scenario,
		CollateralValue: in.Stack * scenario,
		DebtInAsset:     in.Debt / scenario,
	}
	p.NetAfterRepay = in.FeesEarned - p.DebtInAsset

	switch p.Status {
	case InRange:
		p.CanRepay = p.NetAfterRepay >= 0
		p.Guidance = "LP is in range. Let it continue accumulating fees."
	case AboveRange:
		p.PctAboveRange = (in.CurrentPrice - in.High) / in.High
		if p.NetAfterRepay >= 0 {
			p.CanRepay = true
			p.Remaining = p.NetAfterRepay
			p.Guidance = fmt.Sprintf("Price is %s above the range. Fees repay the second loop in full and leave %s.",
				format.Percent(p.PctAboveRange), format.Asset(p.Remaining, "ETH"))
		} else {
			p.Shortfall = -p.NetAfterRepay
			p.Guidance = fmt.Sprintf("Price is %s above the range. Fees are short %s of the second loop debt; consider a partial repay or wait for more fees.",
				format.Percent(p.PctAboveRange), format.Asset(p.Shortfall, "ETH"))
		}
	case BelowRange:
		if p.DebtInAsset <= in.Stack {
			p.CanRepay = true
			p.Remaining = in.Stack - p.DebtInAsset
			p.Guidance = fmt.Sprintf("LP is fully in the asset. Repaying takes %s and leaves %s.",
				format.Asset(p.DebtInAsset, "ETH"), format.Asset(p.Remaining, "ETH"))
		} else {
			p.Shortfall = p.DebtInAsset - in.Stack
			if in.Stack == 0 {
				p.Guidance = fmt.Sprintf("No stack is left to repay %s of debt; no price recovery covers it.",
					format.Currency(in.Debt))
				break
			}
			recovery := in.Debt / in.Stack
			p.RecoveryPrice = &recovery
			p.Guidance = fmt.Sprintf("Stack is worth %s against %s of debt. The asset must recover to %s to repay.",
				format.Currency(p.CollateralValue), format.Currency(in.Debt), format.Currency(recovery))
		}
	}
	return p, nil
}

func validateExit(in ExitInputs) error {
	checks := []struct {
		name  string
		value float64
	}{
		{"low", in.Low},
		{"high", in.High},
		{"current price", in.CurrentPrice},
		{"scenario price", in.ScenarioPrice},
		{"fees earned", in.FeesEarned},
		{"debt", in.Debt},
		{"stack", in.Stack},
	}
	for _, c := range checks {
		if !mathutil.IsFinite(c.value) || c.value < 0 {
			return fmt.Errorf("%s %v must be a non negative number", c.name, c.value)
		}
	}
	if in.CurrentPrice == 0 {
		return fmt.Errorf("current price must be positive")
	}
	if in.Low <= 0 || in.High <= in.Low {
		return fmt.Errorf("range [%v, %v] must be positive and ordered", in.Low, in.High)
	}
	return nil
}
