package lp

import (
	"fmt"
	"math"
	"sort"

	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// Cluster is an amount of liquidatable positions at a price level.
type Cluster struct {
	Price float64 `json:"price"`
	Value float64 `json:"value"`
}

// ScoredCluster is a cluster with its flush score in [0, 1].
type ScoredCluster struct {
	Cluster
	SizeScore      float64 `json:"sizeScore"`
	ProximityScore float64 `json:"proximityScore"`
	Score          float64 `json:"score"`
}

const (
	sizeWeight      = 0.6
	proximityWeight = 0.4
	// proximityScale zeroes the proximity score at 5% away.
	proximityScale = 20
)

// FlushScores rates how likely each cluster is to be swept: 60% relative
// size against the largest cluster and 40% proximity, which is full at the
// current price and falls to zero 5% away. Scores are rounded to two
// decimals and results ordered by price, highest first.
func FlushScores(clusters []Cluster, current float64) ([]ScoredCluster, error) {
	if !mathutil.IsFinite(current) || current <= 0 {
		return nil, fmt.Errorf("current price %v must be positive", current)
	}

	maxValue := 0.0
	for _, c := range clusters {
		if !mathutil.IsFinite(c.Value) || c.Value < 0 || !mathutil.IsFinite(c.Price) || c.Price <= 0 {
			return nil, fmt.Errorf("invalid cluster %v at %v", c.Value, c.Price)
		}
		maxValue = math.Max(maxValue, c.Value)
	}

	scored := make([]ScoredCluster, 0, len(clusters))
	for _, c := range clusters {
		s := ScoredCluster{Cluster: c}
		if maxValue > 0 {
			s.SizeScore = c.Value / maxValue
		}
		s.ProximityScore = math.Max(0, 1-math.Abs(c.Price-current)/current*proximityScale)
		s.Score = mathutil.RoundTo(s.SizeScore*sizeWeight+s.ProximityScore*proximityWeight, 2)
		scored = append(scored, s)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Price > scored[j].Price
	})
	return scored, nil
}
