package server

import (
	"math"

	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/grid"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/internal/price"
	"github.com/iwvelando/leverage-forecast/pkg/format"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
	"github.com/iwvelando/leverage-forecast/pkg/optimization"
)

// JSON cannot carry infinities. Unbounded figures (the health score of a
// position without debt) are sent as null with a display string.

type scenarioResult struct {
	Name             string             `json:"name"`
	Price            price.Resolution   `json:"price"`
	Inputs           inputsView         `json:"inputs"`
	TargetHealth     float64            `json:"targetHealth,omitempty"`
	FirstLoop        loop.Position      `json:"firstLoop"`
	FirstLoopMetrics metricsView        `json:"firstLoopMetrics"`
	Rows             []rowView          `json:"rows"`
	Ranked           []rowView          `json:"ranked"`
	Grid             gridView           `json:"grid"`
	Optimizations    []optimizationView `json:"optimizations,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
}

type inputsView struct {
	SpotPrice            float64        `json:"spotPrice"`
	InitialCollateral    float64        `json:"initialCollateral"`
	FirstLTV             float64        `json:"firstLtv"`
	LiquidationThreshold float64        `json:"liquidationThreshold"`
	LPProceeds           float64        `json:"lpProceeds,omitempty"`
	ResupplySecondLoop   bool           `json:"resupplySecondLoop"`
	Start                *loop.Position `json:"start,omitempty"`
}

type metricsView struct {
	CollateralValue      float64  `json:"collateralValue"`
	HealthScore          *float64 `json:"healthScore"`
	HealthDisplay        string   `json:"healthDisplay"`
	LiquidationPrice     *float64 `json:"liquidationPrice"`
	PercentToLiquidation float64  `json:"percentToLiquidation"`
	NoLeverage           bool     `json:"noLeverage"`
}

type rowView struct {
	FirstLTV             float64  `json:"firstLtv"`
	SecondLTV            float64  `json:"secondLtv"`
	BorrowedAmount       float64  `json:"borrowedAmount"`
	TotalDebt            float64  `json:"totalDebt"`
	CollateralAmount     float64  `json:"collateralAmount"`
	CollateralValue      float64  `json:"collateralValue"`
	HealthScore          *float64 `json:"healthScore"`
	HealthDisplay        string   `json:"healthDisplay"`
	LiquidationPrice     *float64 `json:"liquidationPrice"`
	PercentToLiquidation float64  `json:"percentToLiquidation"`
	AssetGainPct         float64  `json:"assetGainPct"`
	NoLeverage           bool     `json:"noLeverage"`
	Score                float64  `json:"score,omitempty"`
	Rank                 int      `json:"rank,omitempty"`
}

type gridView struct {
	RowKeys   []float64    `json:"rowKeys"`
	ColKeys   []float64    `json:"colKeys"`
	Cells     [][]cellView `json:"cells"`
	MinHealth float64      `json:"minHealth"`
	MaxHealth float64      `json:"maxHealth"`
}

type cellView struct {
	Present     bool     `json:"present"`
	HealthScore *float64 `json:"healthScore,omitempty"`
	Label       string   `json:"label,omitempty"`
	Color       string   `json:"color,omitempty"`
	Rank        int      `json:"rank,omitempty"`
}

type optimizationView struct {
	TargetName       string   `json:"targetName"`
	Field            string   `json:"field"`
	Original         float64  `json:"original"`
	OriginalDisplay  string   `json:"originalDisplay,omitempty"`
	Value            float64  `json:"value"`
	ValueDisplay     string   `json:"valueDisplay,omitempty"`
	TargetHealth     float64  `json:"targetHealth"`
	HealthScore      *float64 `json:"healthScore"`
	LiquidationPrice *float64 `json:"liquidationPrice"`
	Headroom         *float64 `json:"headroom"`
	Iterations       int      `json:"iterations"`
	Converged        bool     `json:"converged"`
	Notes            []string `json:"notes,omitempty"`
}

// finite returns a pointer to v, or nil when v is NaN or infinite.
func finite(v float64) *float64 {
	if !mathutil.IsFinite(v) {
		return nil
	}
	return &v
}

// liquidationPrice is nil for a position without debt, which cannot be
// liquidated at any price.
func liquidationPrice(v float64, noLeverage bool) *float64 {
	if noLeverage {
		return nil
	}
	return finite(v)
}

func buildScenarios(results []forecast.Forecast) []scenarioResult {
	scenarios := make([]scenarioResult, 0, len(results))
	for _, result := range results {
		scenarios = append(scenarios, buildScenario(result))
	}
	return scenarios
}

func buildScenario(result forecast.Forecast) scenarioResult {
	return scenarioResult{
		Name:  result.Name,
		Price: result.Price,
		Inputs: inputsView{
			SpotPrice:            result.Inputs.SpotPrice,
			InitialCollateral:    result.Inputs.InitialCollateral,
			FirstLTV:             result.Inputs.FirstLTV,
			LiquidationThreshold: result.Inputs.LiquidationThreshold,
			LPProceeds:           result.Inputs.LPProceeds,
			ResupplySecondLoop:   result.Inputs.ResupplySecondLoop,
			Start:                result.Inputs.Start,
		},
		TargetHealth:     result.TargetHealth,
		FirstLoop:        result.FirstLoop,
		FirstLoopMetrics: buildMetrics(result.FirstLoopMetrics),
		Rows:             buildRows(result.Rows),
		Ranked:           buildRows(result.Ranked),
		Grid:             buildGrid(result.Grid),
		Optimizations:    buildOptimizations(result.Optimizations),
		Warnings:         result.Warnings,
	}
}

func buildMetrics(m loop.Metrics) metricsView {
	return metricsView{
		CollateralValue:      m.CollateralValue,
		HealthScore:          finite(m.HealthScore),
		HealthDisplay:        format.Ratio(m.HealthScore),
		LiquidationPrice:     liquidationPrice(m.LiquidationPrice, m.NoLeverage),
		PercentToLiquidation: m.PercentToLiquidation,
		NoLeverage:           m.NoLeverage,
	}
}

func buildRows(rows []loop.Row) []rowView {
	views := make([]rowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, rowView{
			FirstLTV:             row.FirstLTV,
			SecondLTV:            row.SecondLTV,
			BorrowedAmount:       row.BorrowedAmount,
			TotalDebt:            row.TotalDebt,
			CollateralAmount:     row.CollateralAmount,
			CollateralValue:      row.CollateralValue,
			HealthScore:          finite(row.HealthScore),
			HealthDisplay:        format.Ratio(row.HealthScore),
			LiquidationPrice:     liquidationPrice(row.LiquidationPrice, row.NoLeverage),
			PercentToLiquidation: row.PercentToLiquidation,
			AssetGainPct:         row.AssetGainPct,
			NoLeverage:           row.NoLeverage,
			Score:                row.Score,
			Rank:                 row.Rank,
		})
	}
	return views
}

func buildGrid(g grid.Grid) gridView {
	view := gridView{
		RowKeys:   g.RowKeys,
		ColKeys:   g.ColKeys,
		Cells:     make([][]cellView, len(g.Cells)),
		MinHealth: g.MinHealth,
		MaxHealth: g.MaxHealth,
	}
	for i, cells := range g.Cells {
		view.Cells[i] = make([]cellView, len(cells))
		for j, cell := range cells {
			if !cell.Present {
				continue
			}
			view.Cells[i][j] = cellView{
				Present:     true,
				HealthScore: finite(cell.HealthScore),
				Label:       cell.Label,
				Color:       cell.Color,
				Rank:        cell.Rank,
			}
		}
	}
	return view
}

func buildOptimizations(summaries []optimization.Summary) []optimizationView {
	if len(summaries) == 0 {
		return nil
	}
	views := make([]optimizationView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, buildOptimization(summary))
	}
	return views
}

func buildOptimization(summary optimization.Summary) optimizationView {
	return optimizationView{
		TargetName:       summary.TargetName,
		Field:            summary.Field,
		Original:         summary.Original,
		OriginalDisplay:  summary.OriginalDisplay,
		Value:            summary.Value,
		ValueDisplay:     summary.ValueDisplay,
		TargetHealth:     summary.TargetHealth,
		HealthScore:      finite(summary.HealthScore),
		LiquidationPrice: liquidationPrice(summary.LiquidationPrice, math.IsInf(summary.HealthScore, 1)),
		Headroom:         finite(summary.Headroom),
		Iterations:       summary.Iterations,
		Converged:        summary.Converged,
		Notes:            append([]string(nil), summary.Notes...),
	}
}
