package loop

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func exampleInputs() Inputs {
	return Inputs{
		SpotPrice:            2500,
		InitialCollateral:    6.73,
		FirstLTV:             0.40,
		LiquidationThreshold: 0.83,
		SecondLTVs:           []float64{0.30, 0.35, 0.40},
	}
}

func TestSweepExampleScenario(t *testing.T) {
	rows, err := Sweep(exampleInputs())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	row := rows[1]
	if row.SecondLTV != 0.35 {
		t.Fatalf("second row LTV = %v, expected 0.35", row.SecondLTV)
	}
	if math.Abs(row.BorrowedAmount-8244.25) > 0.01 {
		t.Errorf("borrowed = %v, expected 8244.25", row.BorrowedAmount)
	}
	if math.Abs(row.TotalDebt-14974.25) > 0.01 {
		t.Errorf("total debt = %v, expected 14974.25", row.TotalDebt)
	}
	if math.Abs(row.HealthScore-1.306) > 0.001 {
		t.Errorf("health score = %v, expected about 1.306", row.HealthScore)
	}
	if math.Abs(row.CollateralValue-23555) > 0.01 {
		t.Errorf("collateral value = %v, expected 23555", row.CollateralValue)
	}
	wantLiq := 14974.25 / (9.422 * 0.83)
	if math.Abs(row.LiquidationPrice-wantLiq) > 0.01 {
		t.Errorf("liquidation price = %v, expected %v", row.LiquidationPrice, wantLiq)
	}
	if math.Abs(row.PercentToLiquidation-(1-wantLiq/2500)) > 1e-9 {
		t.Errorf("percent to liquidation = %v", row.PercentToLiquidation)
	}
	if math.Abs(row.AssetGainPct-40) > 1e-6 {
		t.Errorf("asset gain = %v%%, expected 40%%", row.AssetGainPct)
	}
}

func TestSweepResupplySecondLoop(t *testing.T) {
	in := exampleInputs()
	in.ResupplySecondLoop = true
	rows, err := Sweep(in)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	row := rows[1]
	wantCollateral := 9.422 + 8244.25/2500
	if math.Abs(row.CollateralAmount-wantCollateral) > 1e-6 {
		t.Errorf("collateral = %v, expected %v", row.CollateralAmount, wantCollateral)
	}
	wantHealth := wantCollateral * 2500 * 0.83 / 14974.25
	if math.Abs(row.HealthScore-wantHealth) > 1e-6 {
		t.Errorf("health score = %v, expected %v", row.HealthScore, wantHealth)
	}
}

func TestSweepIsDeterministic(t *testing.T) {
	in := exampleInputs()
	first, err := Sweep(in)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	second, err := Sweep(in)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different rows")
	}
	if in.SecondLTVs[0] != 0.30 {
		t.Errorf("Sweep() modified its inputs")
	}
}

func TestSweepMonotonicHealth(t *testing.T) {
	ltvs, err := Range(0, 0.95, 0.05)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}

	for _, resupply := range []bool{false, true} {
		in := exampleInputs()
		in.SecondLTVs = ltvs
		in.ResupplySecondLoop = resupply
		rows, err := Sweep(in)
		if err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		for i := 1; i < len(rows); i++ {
			if rows[i].HealthScore > rows[i-1].HealthScore+tolerance {
				t.Errorf("resupply=%v: health rose from %v to %v between LTV %v and %v",
					resupply, rows[i-1].HealthScore, rows[i].HealthScore, rows[i-1].SecondLTV, rows[i].SecondLTV)
			}
		}
	}

	// The first loop obeys the same rule.
	previous := math.Inf(1)
	for _, first := range ltvs {
		in := exampleInputs()
		in.FirstLTV = first
		pos, err := FirstLoop(in)
		if err != nil {
			t.Fatalf("FirstLoop() error = %v", err)
		}
		health := HealthScore(pos, in.SpotPrice, in.LiquidationThreshold)
		if health > previous+tolerance {
			t.Errorf("first loop health rose at LTV %v", first)
		}
		previous = health
	}
}

func TestSweepNeverReducesStack(t *testing.T) {
	for _, collateral := range []float64{0, 0.5, 6.73, 40} {
		for _, price := range []float64{1, 2500, 9999} {
			for _, ltv := range []float64{0, 0.25, 0.5, 0.99} {
				in := Inputs{
					SpotPrice:            price,
					InitialCollateral:    collateral,
					FirstLTV:             ltv,
					LiquidationThreshold: 0.83,
					SecondLTVs:           []float64{0, ltv},
					ResupplySecondLoop:   true,
				}
				rows, err := Sweep(in)
				if err != nil {
					t.Fatalf("Sweep() error = %v", err)
				}
				for _, row := range rows {
					if row.CollateralAmount < collateral {
						t.Errorf("collateral %v shrank to %v (price=%v ltv=%v)", collateral, row.CollateralAmount, price, ltv)
					}
				}
			}
		}
	}
}

func TestSweepZeroDebtRow(t *testing.T) {
	in := exampleInputs()
	in.FirstLTV = 0
	in.SecondLTVs = []float64{0}
	rows, err := Sweep(in)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if !rows[0].NoLeverage || !math.IsInf(rows[0].HealthScore, 1) {
		t.Errorf("expected no leverage sentinel, got %+v", rows[0])
	}
}

func TestSweepManualStart(t *testing.T) {
	in := exampleInputs()
	in.Start = &Position{Collateral: 10.4, Debt: 11200}
	in.SecondLTVs = []float64{0.30}
	in.LiquidationThreshold = 0.8
	in.SpotPrice = 2660

	rows, err := Sweep(in)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	wantBorrowed := 10.4 * 2660 * 0.30
	if math.Abs(rows[0].BorrowedAmount-wantBorrowed) > 1e-6 {
		t.Errorf("borrowed = %v, expected %v", rows[0].BorrowedAmount, wantBorrowed)
	}
	if math.Abs(rows[0].TotalDebt-(11200+wantBorrowed)) > 1e-6 {
		t.Errorf("total debt = %v", rows[0].TotalDebt)
	}
}

func TestSweepLPProceeds(t *testing.T) {
	in := exampleInputs()
	in.LPProceeds = 1.27
	pos, err := FirstLoop(in)
	if err != nil {
		t.Fatalf("FirstLoop() error = %v", err)
	}
	if math.Abs(pos.Collateral-8.0*1.4) > 1e-9 {
		t.Errorf("collateral = %v, expected 11.2", pos.Collateral)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Inputs)
		wantErr bool
	}{
		{"Valid inputs", func(in *Inputs) {}, false},
		{"Zero price", func(in *Inputs) { in.SpotPrice = 0 }, true},
		{"Negative price", func(in *Inputs) { in.SpotPrice = -1 }, true},
		{"NaN price", func(in *Inputs) { in.SpotPrice = math.NaN() }, true},
		{"Negative collateral", func(in *Inputs) { in.InitialCollateral = -0.1 }, true},
		{"Zero collateral", func(in *Inputs) { in.InitialCollateral = 0 }, false},
		{"First LTV of one", func(in *Inputs) { in.FirstLTV = 1 }, true},
		{"Negative second LTV", func(in *Inputs) { in.SecondLTVs = []float64{-0.1} }, true},
		{"Zero threshold", func(in *Inputs) { in.LiquidationThreshold = 0 }, true},
		{"Threshold of one", func(in *Inputs) { in.LiquidationThreshold = 1 }, false},
		{"Negative LP proceeds", func(in *Inputs) { in.LPProceeds = -1 }, true},
		{"Debt without collateral", func(in *Inputs) { in.Start = &Position{Debt: 100} }, true},
		{"Negative starting debt", func(in *Inputs) { in.Start = &Position{Collateral: 1, Debt: -1} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := exampleInputs()
			tt.mutate(&in)
			err := Validate(in)
			if tt.wantErr && err == nil {
				t.Errorf("Validate() expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error does not wrap ErrInvalidInput: %v", err)
			}
		})
	}
}

func TestSweepGrid(t *testing.T) {
	in := exampleInputs()
	rows, err := SweepGrid(in, []float64{0.40, 0.45, 0.50})
	if err != nil {
		t.Fatalf("SweepGrid() error = %v", err)
	}
	if len(rows) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(rows))
	}
	if rows[0].FirstLTV != 0.40 || rows[8].FirstLTV != 0.50 {
		t.Errorf("rows not ordered by first LTV: %v .. %v", rows[0].FirstLTV, rows[8].FirstLTV)
	}

	in.Start = &Position{Collateral: 1, Debt: 100}
	if _, err := SweepGrid(in, []float64{0.4}); err == nil {
		t.Errorf("expected error when combining a manual start with a first LTV sweep")
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		stop      float64
		step      float64
		wantLen   int
		wantFirst float64
		wantLast  float64
		wantErr   bool
	}{
		{"Default sweep", 0.30, 0.51, 0.01, 22, 0.30, 0.51, false},
		{"Single point", 0.35, 0.35, 0.01, 1, 0.35, 0.35, false},
		{"Stop not on step", 0.30, 0.345, 0.01, 5, 0.30, 0.34, false},
		{"Coarse step", 0.40, 0.50, 0.025, 5, 0.40, 0.50, false},
		{"Zero step", 0.30, 0.50, 0, 0, 0, 0, true},
		{"Stop below start", 0.50, 0.30, 0.01, 0, 0, 0, true},
		{"Too many points", 0, 0.99, 0.0001, 0, 0, 0, true},
		{"Vanishing step", 0, 0.9, 1e-300, 0, 0, 0, true},
		{"Subnormal step", 0, 0.9, 5e-324, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := Range(tt.start, tt.stop, tt.step)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Range() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Range() error = %v", err)
			}
			if len(values) != tt.wantLen {
				t.Fatalf("Range() returned %d values, expected %d", len(values), tt.wantLen)
			}
			if values[0] != tt.wantFirst {
				t.Errorf("first value = %v, expected %v", values[0], tt.wantFirst)
			}
			if math.Abs(values[len(values)-1]-tt.wantLast) > 1e-9 {
				t.Errorf("last value = %v, expected %v", values[len(values)-1], tt.wantLast)
			}
		})
	}
}
