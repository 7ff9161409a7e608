package loop

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-6

func TestStep(t *testing.T) {
	tests := []struct {
		name           string
		pos            Position
		price          float64
		ltv            float64
		resupply       bool
		wantCollateral float64
		wantDebt       float64
		wantBorrowed   float64
	}{
		{
			name:           "First loop resupplies",
			pos:            Position{Collateral: 6.73},
			price:          2500,
			ltv:            0.40,
			resupply:       true,
			wantCollateral: 9.422,
			wantDebt:       6730,
			wantBorrowed:   6730,
		},
		{
			name:           "Stable loop keeps collateral",
			pos:            Position{Collateral: 9.422, Debt: 6730},
			price:          2500,
			ltv:            0.35,
			resupply:       false,
			wantCollateral: 9.422,
			wantDebt:       14974.25,
			wantBorrowed:   8244.25,
		},
		{
			name:           "Zero LTV borrows nothing",
			pos:            Position{Collateral: 5},
			price:          3000,
			ltv:            0,
			resupply:       true,
			wantCollateral: 5,
			wantDebt:       0,
			wantBorrowed:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, borrowed := Step(tt.pos, tt.price, tt.ltv, tt.resupply)
			if math.Abs(got.Collateral-tt.wantCollateral) > tolerance {
				t.Errorf("Step() collateral = %v, expected %v", got.Collateral, tt.wantCollateral)
			}
			if math.Abs(got.Debt-tt.wantDebt) > tolerance {
				t.Errorf("Step() debt = %v, expected %v", got.Debt, tt.wantDebt)
			}
			if math.Abs(borrowed-tt.wantBorrowed) > tolerance {
				t.Errorf("Step() borrowed = %v, expected %v", borrowed, tt.wantBorrowed)
			}
		})
	}
}

func TestEvaluateExampleScenario(t *testing.T) {
	pos, borrowed := Step(Position{Collateral: 6.73}, 2500, 0.40, true)
	if math.Abs(borrowed-6730) > tolerance {
		t.Fatalf("debt added = %v, expected 6730", borrowed)
	}
	if math.Abs(pos.Collateral-9.422) > tolerance {
		t.Fatalf("collateral = %v, expected 9.422", pos.Collateral)
	}

	m := Evaluate(pos, 2500, 0.83)
	if math.Abs(m.HealthScore-2.904) > 0.01 {
		t.Errorf("health score = %v, expected about 2.904", m.HealthScore)
	}
	if m.NoLeverage {
		t.Errorf("expected leveraged position")
	}
}

func TestEvaluateZeroDebtSentinel(t *testing.T) {
	m := Evaluate(Position{Collateral: 6.73}, 2500, 0.83)
	if !m.NoLeverage {
		t.Errorf("expected NoLeverage for zero debt")
	}
	if !math.IsInf(m.HealthScore, 1) {
		t.Errorf("health score = %v, expected +Inf", m.HealthScore)
	}
	if m.LiquidationPrice != 0 {
		t.Errorf("liquidation price = %v, expected 0", m.LiquidationPrice)
	}
	if m.PercentToLiquidation != 1 {
		t.Errorf("percent to liquidation = %v, expected 1", m.PercentToLiquidation)
	}

	empty := Evaluate(Position{}, 2500, 0.83)
	if !empty.NoLeverage || !math.IsInf(empty.HealthScore, 1) {
		t.Errorf("empty position should report the no leverage sentinel, got %+v", empty)
	}
}

func TestLiquidationPriceRoundTrip(t *testing.T) {
	thresholds := []float64{0.80, 0.825, 0.83, 0.85, 0.90}
	for _, lt := range thresholds {
		for _, ltv := range []float64{0.1, 0.35, 0.5, 0.7} {
			pos, _ := Step(Position{Collateral: 6.73}, 2500, ltv, true)
			m := Evaluate(pos, 2500, lt)

			back := Evaluate(pos, m.LiquidationPrice, lt)
			if math.Abs(back.HealthScore-1) > tolerance {
				t.Errorf("lt=%v ltv=%v: health at liquidation price = %v, expected 1", lt, ltv, back.HealthScore)
			}
			if math.Abs(back.LiquidationPrice-m.LiquidationPrice) > tolerance {
				t.Errorf("lt=%v ltv=%v: liquidation price moved with spot", lt, ltv)
			}
			if back.PercentToLiquidation > tolerance {
				t.Errorf("lt=%v ltv=%v: percent to liquidation at boundary = %v, expected 0", lt, ltv, back.PercentToLiquidation)
			}
		}
	}
}

func TestLiquidationBelowSpotWhenHealthy(t *testing.T) {
	for _, ltv := range []float64{0.05, 0.2, 0.4, 0.6, 0.79} {
		pos, _ := Step(Position{Collateral: 10}, 3000, ltv, true)
		m := Evaluate(pos, 3000, 0.83)
		if m.HealthScore > 1 && !(m.LiquidationPrice < 3000) {
			t.Errorf("ltv=%v: health %v > 1 but liquidation price %v >= spot", ltv, m.HealthScore, m.LiquidationPrice)
		}
		if m.HealthScore > 1 && m.PercentToLiquidation <= 0 {
			t.Errorf("ltv=%v: expected positive distance to liquidation", ltv)
		}
	}
}

func TestEvaluateUnderwaterPosition(t *testing.T) {
	m := Evaluate(Position{Collateral: 1, Debt: 3000}, 2500, 0.83)
	if m.HealthScore >= 1 {
		t.Errorf("health score = %v, expected below 1", m.HealthScore)
	}
	if m.PercentToLiquidation != 0 {
		t.Errorf("percent to liquidation = %v, expected 0 for an underwater position", m.PercentToLiquidation)
	}
}

func TestValidationErrorUnwraps(t *testing.T) {
	err := Validate(Inputs{SpotPrice: 0, LiquidationThreshold: 0.83})
	if err == nil {
		t.Fatal("expected validation error for zero price")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected errors.Is(err, ErrInvalidInput)")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if vErr.Field != "spot price" {
		t.Errorf("field = %q, expected spot price", vErr.Field)
	}
}
