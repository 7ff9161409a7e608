package integration

import (
	"bufio"
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/iwvelando/leverage-forecast/internal/config"
	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/optimizer"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/output"
	"github.com/iwvelando/leverage-forecast/pkg/testutil"
	"go.uber.org/zap"
)

const testConfigPath = "../test_config.yaml"

func loadForecast(t *testing.T) (*config.Configuration, []forecast.Forecast) {
	t.Helper()
	conf, err := config.LoadConfiguration(testConfigPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	results, err := forecast.GetForecast(context.Background(), zap.NewNop(), *conf, nil)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	return conf, results
}

// TestMainIntegrationBaseline runs the configuration through the sweep and
// checks key values against hand computed figures.
func TestMainIntegrationBaseline(t *testing.T) {
	_, results := loadForecast(t)

	expectedScenarios := []string{"Pinned", "Resupply", "Grid"}
	if len(results) != len(expectedScenarios) {
		t.Fatalf("Expected %d scenarios, got %d", len(expectedScenarios), len(results))
	}
	for i, expected := range expectedScenarios {
		if results[i].Name != expected {
			t.Errorf("Expected scenario %s, got %s", expected, results[i].Name)
		}
	}

	baselineChecks := []struct {
		scenario  string
		firstLTV  float64
		secondLTV float64
		health    float64
		totalDebt float64
	}{
		{"Pinned", 0.40, 0.35, 1.30562, 14974.25},
		{"Pinned", 0.40, 0.40, 1.21042, 16152.00},
		{"Grid", 0.30, 0.30, 1.56377, 11609.25},
		{"Grid", 0.50, 0.30, 1.31053, 15983.75},
	}

	for _, check := range baselineChecks {
		scenario := testutil.FindScenario(results, check.scenario)
		if scenario == nil {
			t.Errorf("Scenario %s not found", check.scenario)
			continue
		}
		row := testutil.FindRow(scenario.Rows, check.firstLTV, check.secondLTV)
		if row == nil {
			t.Errorf("%s: row %.2f/%.2f not found", check.scenario, check.firstLTV, check.secondLTV)
			continue
		}
		if math.Abs(row.HealthScore-check.health) > 1e-4 {
			t.Errorf("%s %.2f/%.2f: expected health %.5f, got %.5f",
				check.scenario, check.firstLTV, check.secondLTV, check.health, row.HealthScore)
		}
		if math.Abs(row.TotalDebt-check.totalDebt) > constants.CurrencyTolerance {
			t.Errorf("%s %.2f/%.2f: expected debt %.2f, got %.2f",
				check.scenario, check.firstLTV, check.secondLTV, check.totalDebt, row.TotalDebt)
		}
	}
}

func TestOptimizerIntegration(t *testing.T) {
	_, results := loadForecast(t)

	optimized, err := optimizer.NewRunner(zap.NewNop()).Run(results)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if optimized.Empty() {
		t.Fatal("expected an optimization for the scenario with a target health")
	}
	optimized.Apply(results)

	resupply := testutil.FindScenario(results, "Resupply")
	if len(resupply.Optimizations) != 1 {
		t.Fatalf("expected one optimization, got %d", len(resupply.Optimizations))
	}
	summary := resupply.Optimizations[0]
	if math.Abs(summary.Value-0.4842) > 1e-9 {
		t.Errorf("expected second LTV 0.4842, got %v", summary.Value)
	}
	if summary.HealthScore < 1.6 {
		t.Errorf("optimized health %v is below target", summary.HealthScore)
	}
	if math.Abs(summary.Original-0.48) > 1e-9 {
		t.Errorf("expected best swept second LTV 0.48, got %v", summary.Original)
	}

	for _, name := range []string{"Pinned", "Grid"} {
		if len(testutil.FindScenario(results, name).Optimizations) != 0 {
			t.Errorf("scenario %s has no target and should not be optimized", name)
		}
	}
}

// TestCSVOutputFormat validates the CSV output against the sweep rows.
func TestCSVOutputFormat(t *testing.T) {
	_, results := loadForecast(t)

	var buf bytes.Buffer
	if err := output.Write(&buf, constants.OutputFormatCSV, results); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	expectedRows := 0
	for _, result := range results {
		expectedRows += len(result.Rows)
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		line := scanner.Text()
		if lines == 0 {
			if !strings.HasPrefix(line, `"scenario","first_ltv"`) {
				t.Errorf("unexpected header %q", line)
			}
		} else if fields := strings.Split(line, ","); len(fields) != 12 {
			t.Errorf("line %d: expected 12 fields, got %d", lines+1, len(fields))
		}
		lines++
	}
	if lines != expectedRows+1 {
		t.Errorf("expected %d lines, got %d", expectedRows+1, lines)
	}
	if expectedRows != 3+21+9 {
		t.Errorf("expected 33 rows across scenarios, got %d", expectedRows)
	}
}

// TestPrettyOutputFormat validates the pretty output sections.
func TestPrettyOutputFormat(t *testing.T) {
	_, results := loadForecast(t)

	var buf bytes.Buffer
	if err := output.Write(&buf, constants.OutputFormatPretty, results); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()

	for _, expected := range []string{
		"--- Results for scenario Pinned ---",
		"--- Results for scenario Resupply ---",
		"--- Results for scenario Grid ---",
		"Price: $2,500.00 (manual)",
		"Top setups:",
	} {
		if !strings.Contains(out, expected) {
			t.Errorf("expected pretty output to contain %q", expected)
		}
	}
}

// TestConfigurationValidation checks that warnings surface for suspicious
// settings without failing the run.
func TestConfigurationValidation(t *testing.T) {
	conf, err := config.LoadConfiguration(testConfigPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if warnings := conf.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("expected no warnings for the test configuration, got %v", warnings)
	}

	conf.Scenarios[0].LiquidationThreshold = 0.77
	warnings := conf.ValidateConfiguration()
	if len(warnings) == 0 {
		t.Fatal("expected a warning for an unusual liquidation threshold")
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "Pinned") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the warning to name the scenario, got %v", warnings)
	}

	if _, err := forecast.GetForecast(context.Background(), zap.NewNop(), *conf, nil); err != nil {
		t.Errorf("an unusual threshold should still compute, got %v", err)
	}
}
