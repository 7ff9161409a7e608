// Package grid pivots sweep rows into a two dimensional lookup keyed by
// second loop LTV (rows) and first loop LTV (columns), with a label and a
// heat color per cell.
package grid

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/pkg/format"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// keyPrecision merges keys that differ only by floating point noise.
const keyPrecision = 6

// Cell is one grid position.
type Cell struct {
	Present     bool    `json:"present"`
	HealthScore float64 `json:"healthScore"`
	Label       string  `json:"label"`
	Color       string  `json:"color"`
	Rank        int     `json:"rank"`
}

// Grid is a rectangular pivot of sweep rows. Cells is indexed [row][column].
type Grid struct {
	RowKeys   []float64 `json:"rowKeys"`
	ColKeys   []float64 `json:"colKeys"`
	Cells     [][]Cell  `json:"cells"`
	MinHealth float64   `json:"minHealth"`
	MaxHealth float64   `json:"maxHealth"`
}

// Pivot builds a grid from rows. When two rows share a key pair the later
// one wins. Labels name the asset with symbol.
func Pivot(rows []loop.Row, symbol string) Grid {
	rowIndex := make(map[float64]int)
	colIndex := make(map[float64]int)
	var g Grid

	for _, row := range rows {
		rk := mathutil.RoundTo(row.SecondLTV, keyPrecision)
		ck := mathutil.RoundTo(row.FirstLTV, keyPrecision)
		if _, ok := rowIndex[rk]; !ok {
			rowIndex[rk] = 0
			g.RowKeys = append(g.RowKeys, rk)
		}
		if _, ok := colIndex[ck]; !ok {
			colIndex[ck] = 0
			g.ColKeys = append(g.ColKeys, ck)
		}
	}
	sort.Float64s(g.RowKeys)
	sort.Float64s(g.ColKeys)
	for i, k := range g.RowKeys {
		rowIndex[k] = i
	}
	for i, k := range g.ColKeys {
		colIndex[k] = i
	}

	g.Cells = make([][]Cell, len(g.RowKeys))
	for i := range g.Cells {
		g.Cells[i] = make([]Cell, len(g.ColKeys))
	}

	g.MinHealth, g.MaxHealth = math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		r := rowIndex[mathutil.RoundTo(row.SecondLTV, keyPrecision)]
		c := colIndex[mathutil.RoundTo(row.FirstLTV, keyPrecision)]
		g.Cells[r][c] = Cell{
			Present:     true,
			HealthScore: row.HealthScore,
			Label:       Label(row, symbol),
			Rank:        row.Rank,
		}
		if mathutil.IsFinite(row.HealthScore) {
			g.MinHealth = math.Min(g.MinHealth, row.HealthScore)
			g.MaxHealth = math.Max(g.MaxHealth, row.HealthScore)
		}
	}
	if math.IsInf(g.MinHealth, 1) {
		g.MinHealth, g.MaxHealth = 0, 0
	}

	for r := range g.Cells {
		for c := range g.Cells[r] {
			if g.Cells[r][c].Present {
				g.Cells[r][c].Color = Color(g.Cells[r][c].HealthScore, g.MinHealth, g.MaxHealth)
			}
		}
	}
	return g
}

// Lookup returns the cell at (secondLTV, firstLTV).
func (g Grid) Lookup(secondLTV, firstLTV float64) (Cell, bool) {
	r := searchKey(g.RowKeys, mathutil.RoundTo(secondLTV, keyPrecision))
	c := searchKey(g.ColKeys, mathutil.RoundTo(firstLTV, keyPrecision))
	if r < 0 || c < 0 {
		return Cell{}, false
	}
	cell := g.Cells[r][c]
	return cell, cell.Present
}

func searchKey(keys []float64, key float64) int {
	i := sort.SearchFloat64s(keys, key)
	if i < len(keys) && keys[i] == key {
		return i
	}
	return -1
}

// Label renders the multi-line cell annotation: health score, borrowed
// amount, drop to liquidation with liquidation price, resulting stack with
// gain, and rank when the row has been ranked.
func Label(row loop.Row, symbol string) string {
	if symbol == "" {
		symbol = "ETH"
	}
	drop := "no liquidation"
	if !row.NoLeverage {
		drop = fmt.Sprintf("↓%d%% @ $%s", int64(math.Round(mathutil.ToPercent(row.PercentToLiquidation))), format.StripZero(row.LiquidationPrice))
	}
	lines := []string{
		format.StripZero(row.HealthScore),
		fmt.Sprintf("$%d", int64(row.BorrowedAmount)),
		drop,
		fmt.Sprintf("%s %s (+%d%%)", format.StripZero(row.CollateralAmount), symbol, int64(row.AssetGainPct)),
	}
	if row.Rank > 0 {
		lines = append(lines, fmt.Sprintf("#%d", row.Rank))
	}
	return strings.Join(lines, "\n")
}
