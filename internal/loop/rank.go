package loop

import (
	"sort"

	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// Weights are the coefficients of the composite ranking score.
type Weights struct {
	Health      float64 `json:"health"`
	Liquidation float64 `json:"liquidation"`
	Gain        float64 `json:"gain"`
	Debt        float64 `json:"debt"`
}

// Ranking filters and orders sweep rows.
type Ranking struct {
	MinHealth float64 `json:"minHealth"`
	Weights   Weights `json:"weights"`
}

// DefaultRanking returns the stock filter and weights.
func DefaultRanking() Ranking {
	return Ranking{
		MinHealth: constants.DefaultMinHealthScore,
		Weights: Weights{
			Health:      constants.DefaultHealthWeight,
			Liquidation: constants.DefaultLiquidationWeight,
			Gain:        constants.DefaultGainWeight,
			Debt:        constants.DefaultDebtWeight,
		},
	}
}

// Score is health×Health + drop%×Liquidation + gain%×Gain + borrowed×Debt.
func (w Weights) Score(r Row) float64 {
	return r.HealthScore*w.Health +
		mathutil.ToPercent(r.PercentToLiquidation)*w.Liquidation +
		r.AssetGainPct*w.Gain +
		r.BorrowedAmount*w.Debt
}

// Rank keeps the leveraged rows whose health score is at least MinHealth and
// returns them ordered by descending score with Rank set from 1. The input
// slice is not modified.
func Rank(rows []Row, r Ranking) []Row {
	ranked := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.NoLeverage || row.HealthScore < r.MinHealth {
			continue
		}
		row.Score = r.Weights.Score(row)
		ranked = append(ranked, row)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].FirstLTV != ranked[j].FirstLTV {
			return ranked[i].FirstLTV < ranked[j].FirstLTV
		}
		return ranked[i].SecondLTV < ranked[j].SecondLTV
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
