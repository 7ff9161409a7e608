package price

import (
	"fmt"
	"math"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time `json:"openTime"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// ValidateCandle rejects bars that cannot come from a real market: non
// finite or non positive prices, high below low, a close outside the range
// or a negative volume.
func ValidateCandle(c Candle) error {
	prices := []struct {
		value float64
		name  string
	}{
		{c.Open, "open"},
		{c.High, "high"},
		{c.Low, "low"},
		{c.Close, "close"},
	}
	for _, p := range prices {
		if !validPrice(p.value) {
			return fmt.Errorf("%s price %v must be positive and finite", p.name, p.value)
		}
	}

	if c.High < c.Low {
		return fmt.Errorf("high price (%f) cannot be less than low price (%f)", c.High, c.Low)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("close price (%f) must be between low (%f) and high (%f)", c.Close, c.Low, c.High)
	}
	if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
		return fmt.Errorf("volume %v must be finite and not negative", c.Volume)
	}
	return nil
}

// HeikinAshi smooths candles: each close is the OHLC average, the first
// open is the midpoint of the first real open and close, later opens are the
// midpoint of the previous smoothed open and close, and high/low widen to
// cover the smoothed open and close.
func HeikinAshi(candles []Candle) []Candle {
	ha := make([]Candle, len(candles))
	for i, c := range candles {
		h := Candle{OpenTime: c.OpenTime, Volume: c.Volume}
		h.Close = (c.Open + c.High + c.Low + c.Close) / 4
		if i == 0 {
			h.Open = (c.Open + c.Close) / 2
		} else {
			h.Open = (ha[i-1].Open + ha[i-1].Close) / 2
		}
		h.High = math.Max(c.High, math.Max(h.Open, h.Close))
		h.Low = math.Min(c.Low, math.Min(h.Open, h.Close))
		ha[i] = h
	}
	return ha
}
