package position

import (
	"fmt"
	"math"

	"github.com/iwvelando/leverage-forecast/pkg/constants"
)

// Range is an ordered price interval.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price lies within the closed interval.
func (r Range) Contains(price float64) bool {
	return price >= r.Low && price <= r.High
}

// TickToPrice converts a concentrated liquidity tick into the price of token0
// in token1, adjusted for token decimals: 1.0001^tick × 10^(dec0−dec1).
func TickToPrice(tick, decimals0, decimals1 int) float64 {
	return math.Pow(constants.PriceBasis, float64(tick)) * math.Pow10(decimals0-decimals1)
}

// RangeFromTicks returns the price bounds of a position. With invert set the
// prices are quoted as token1 per token0 reciprocal, which swaps the bounds.
func RangeFromTicks(lower, upper, decimals0, decimals1 int, invert bool) (Range, error) {
	if lower >= upper {
		return Range{}, fmt.Errorf("lower tick %d must be below upper tick %d", lower, upper)
	}
	lo := TickToPrice(lower, decimals0, decimals1)
	hi := TickToPrice(upper, decimals0, decimals1)
	if invert {
		lo, hi = 1/hi, 1/lo
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || lo <= 0 {
		return Range{}, fmt.Errorf("ticks %d..%d are outside the representable price range", lower, upper)
	}
	return Range{Low: lo, High: hi}, nil
}
