// Package output provides utilities for formatting and displaying forecast results.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/format"
	"github.com/iwvelando/leverage-forecast/pkg/validation"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// topRanked is the number of ranked rows listed under each pretty table.
const topRanked = 5

// Write renders results in the named output format.
func Write(w io.Writer, outputFormat string, results []forecast.Forecast) error {
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}
	if outputFormat == constants.OutputFormatCSV {
		CsvFormat(w, results)
		return nil
	}
	PrettyFormat(w, results)
	return nil
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, results []forecast.Forecast) {
	p := message.NewPrinter(language.English)
	for i, result := range results {
		fmt.Fprintf(w, "--- Results for scenario %s ---\n", result.Name)
		_, _ = p.Fprintf(w, "Price: $%.2f (%s)\n", result.Inputs.SpotPrice, priceSource(result))
		_, _ = p.Fprintf(w, "First loop: %s collateral, $%.2f debt, health %s\n",
			format.Asset(result.FirstLoop.Collateral, forecast.Symbol),
			result.FirstLoop.Debt,
			format.Ratio(result.FirstLoopMetrics.HealthScore),
		)
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "Warning: %s\n", warning)
		}
		fmt.Fprintln(w)

		PrettyRows(w, result.Rows)

		if len(result.Ranked) > 0 {
			fmt.Fprintf(w, "\nTop setups:\n")
			for _, row := range result.Ranked[:min(len(result.Ranked), topRanked)] {
				_, _ = p.Fprintf(w, "#%d  %s / %s  health %s  liq $%.2f  score %.2f\n",
					row.Rank, format.Percent(row.FirstLTV), format.Percent(row.SecondLTV),
					format.Ratio(row.HealthScore), row.LiquidationPrice, row.Score)
			}
		}

		for _, opt := range result.Optimizations {
			fmt.Fprintf(w, "\nOptimized %s for health %s: %s (health %s)",
				opt.Field, format.Ratio(opt.TargetHealth), opt.ValueDisplay, format.Ratio(opt.HealthScore))
			if len(opt.Notes) > 0 {
				fmt.Fprintf(w, " - %s", strings.Join(opt.Notes, "; "))
			}
			fmt.Fprintln(w)
		}

		if i < len(results)-1 {
			fmt.Fprintf(w, "\n")
		}
	}
}

// PrettyRows writes sweep rows as an aligned table.
func PrettyRows(w io.Writer, rows []loop.Row) {
	p := message.NewPrinter(language.English)
	fmt.Fprintf(w, "1st LTV | 2nd LTV | Borrowed   | Total Debt | Collateral | Health | Liq. Price | To Liq. | Gain    | Rank\n")
	fmt.Fprintf(w, "_______ | _______ | __________ | __________ | __________ | ______ | __________ | _______ | _______ | ____\n")
	for _, row := range rows {
		rank := "-"
		if row.Rank > 0 {
			rank = fmt.Sprintf("%d", row.Rank)
		}
		liq := "-"
		if !row.NoLeverage {
			liq = p.Sprintf("$%.2f", row.LiquidationPrice)
		}
		_, _ = p.Fprintf(w, "%7s | %7s | $%9.2f | $%9.2f | %10s | %6s | %10s | %7s | %6.2f%% | %s\n",
			format.Percent(row.FirstLTV),
			format.Percent(row.SecondLTV),
			row.BorrowedAmount,
			row.TotalDebt,
			format.Asset(row.CollateralAmount, ""),
			format.Ratio(row.HealthScore),
			liq,
			format.Percent(row.PercentToLiquidation),
			row.AssetGainPct,
			rank,
		)
	}
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(w io.Writer, results []forecast.Forecast) {
	writeCsvHeader(w, true)
	for _, result := range results {
		for _, row := range result.Rows {
			fmt.Fprintf(w, `"%s",`, result.Name)
			writeCsvRow(w, row)
		}
	}
}

// CsvRows outputs sweep rows without a scenario column.
func CsvRows(w io.Writer, rows []loop.Row) {
	writeCsvHeader(w, false)
	for _, row := range rows {
		writeCsvRow(w, row)
	}
}

// CsvString returns CsvRows as a string.
func CsvString(rows []loop.Row) string {
	var b strings.Builder
	CsvRows(&b, rows)
	return b.String()
}

// PrettyString returns PrettyRows as a string.
func PrettyString(rows []loop.Row) string {
	var b strings.Builder
	PrettyRows(&b, rows)
	return b.String()
}

func writeCsvHeader(w io.Writer, withScenario bool) {
	if withScenario {
		fmt.Fprintf(w, `"scenario",`)
	}
	fmt.Fprintf(w, `"first_ltv","second_ltv","borrowed","total_debt","collateral","collateral_value","health_score","liquidation_price","percent_to_liquidation","asset_gain_pct","rank"`)
	fmt.Fprintf(w, "\n")
}

func writeCsvRow(w io.Writer, row loop.Row) {
	liq := ""
	if !row.NoLeverage {
		liq = fmt.Sprintf("%.2f", row.LiquidationPrice)
	}
	fmt.Fprintf(w, `"%.4f","%.4f","%.2f","%.2f","%.6f","%.2f","%.4f","%s","%.4f","%.2f","%d"`,
		row.FirstLTV,
		row.SecondLTV,
		row.BorrowedAmount,
		row.TotalDebt,
		row.CollateralAmount,
		row.CollateralValue,
		row.HealthScore,
		liq,
		row.PercentToLiquidation,
		row.AssetGainPct,
		row.Rank,
	)
	fmt.Fprintf(w, "\n")
}

func priceSource(result forecast.Forecast) string {
	switch {
	case result.Price.Fallback:
		return "fallback"
	case result.Price.Cached:
		return result.Price.Quote.Source + ", cached"
	case result.Price.Quote.Source != "":
		return result.Price.Quote.Source
	default:
		return "manual"
	}
}
