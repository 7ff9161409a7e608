package output

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/internal/price"
	"github.com/iwvelando/leverage-forecast/pkg/optimization"
)

func testResults() []forecast.Forecast {
	rows := []loop.Row{
		{
			FirstLTV:             0.40,
			SecondLTV:            0.35,
			BorrowedAmount:       8244.25,
			TotalDebt:            14974.25,
			CollateralAmount:     9.422,
			CollateralValue:      23555,
			HealthScore:          1.3056,
			LiquidationPrice:     1914.79,
			PercentToLiquidation: 0.2341,
			AssetGainPct:         40,
			Rank:                 1,
			Score:                12.5,
		},
		{
			FirstLTV:         0.40,
			SecondLTV:        0,
			CollateralAmount: 9.422,
			HealthScore:      math.Inf(1),
			NoLeverage:       true,
		},
	}
	return []forecast.Forecast{
		{
			Name:             "Test Scenario",
			Price:            price.Resolution{Quote: price.Quote{Price: 2500, Source: price.CoinGeckoName}, Live: true},
			Inputs:           loop.Inputs{SpotPrice: 2500},
			FirstLoop:        loop.Position{Collateral: 9.422, Debt: 6730},
			FirstLoopMetrics: loop.Metrics{HealthScore: 2.9},
			Rows:             rows,
			Ranked:           rows[:1],
			Warnings:         []string{"Test warning"},
			Optimizations: []optimization.Summary{
				{Field: "secondLtv", TargetHealth: 1.6, HealthScore: 1.6001, ValueDisplay: "23.30%"},
			},
		},
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	PrettyFormat(&buf, testResults())
	output := buf.String()

	expected := []string{
		"--- Results for scenario Test Scenario ---",
		"Price: $2,500.00 (coingecko)",
		"First loop: 9.4220 ETH collateral, $6,730.00 debt, health 2.90",
		"Warning: Test warning",
		"1st LTV | 2nd LTV | Borrowed",
		"8,244.25",
		"14,974.25",
		"23.41%",
		"∞",
		"Top setups:",
		"#1  40.00% / 35.00%  health 1.31  liq $1,914.79  score 12.50",
		"Optimized secondLtv for health 1.60: 23.30% (health 1.60)",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyFormat missing %q in:\n%s", want, output)
		}
	}

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "∞") && !strings.Contains(line, "- | ") {
			t.Errorf("unleveraged row should show no liquidation price: %q", line)
		}
	}
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	CsvFormat(&buf, testResults())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], `"scenario","first_ltv","second_ltv"`) {
		t.Errorf("unexpected header %s", lines[0])
	}
	want := `"Test Scenario","0.4000","0.3500","8244.25","14974.25","9.422000","23555.00","1.3056","1914.79","0.2341","40.00","1"`
	if lines[1] != want {
		t.Errorf("row = %s\nexpected %s", lines[1], want)
	}
	if !strings.Contains(lines[2], `"+Inf","",`) {
		t.Errorf("unleveraged row should carry an infinite health score and no liquidation price: %s", lines[2])
	}
}

func TestCsvString(t *testing.T) {
	csv := CsvString(testResults()[0].Rows)
	if strings.Contains(csv, "scenario") {
		t.Error("row CSV should not carry a scenario column")
	}
	if got := strings.Count(csv, "\n"); got != 3 {
		t.Errorf("expected 3 lines, got %d", got)
	}
}

func TestWrite(t *testing.T) {
	tests := []struct {
		format    string
		prefix    string
		expectErr bool
	}{
		{format: "pretty", prefix: "--- Results"},
		{format: "csv", prefix: `"scenario"`},
		{format: "json", expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Write(&buf, tt.format, testResults())
			if tt.expectErr {
				if err == nil {
					t.Error("expected error for unsupported format")
				}
				return
			}
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if !strings.HasPrefix(buf.String(), tt.prefix) {
				t.Errorf("output should start with %q, got %q", tt.prefix, buf.String())
			}
		})
	}
}

func TestPriceSource(t *testing.T) {
	tests := []struct {
		name     string
		res      price.Resolution
		expected string
	}{
		{name: "live", res: price.Resolution{Quote: price.Quote{Source: "klines"}, Live: true}, expected: "klines"},
		{name: "cached", res: price.Resolution{Quote: price.Quote{Source: "klines"}, Cached: true}, expected: "klines, cached"},
		{name: "fallback", res: price.Resolution{Quote: price.Quote{Source: "manual"}, Fallback: true}, expected: "fallback"},
		{name: "unset", expected: "manual"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := priceSource(forecast.Forecast{Price: tt.res}); got != tt.expected {
				t.Errorf("priceSource() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
