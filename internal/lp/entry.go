package lp

import (
	"fmt"
	"math"
	"time"

	"github.com/iwvelando/leverage-forecast/internal/price"
)

// EntryParams tune impulse and entry detection.
type EntryParams struct {
	DrawdownPct     float64 `json:"drawdownPct"`
	RangeMultiplier float64 `json:"rangeMultiplier"`
	VolumeWindow    int     `json:"volumeWindow"`
	MinBodyPct      float64 `json:"minBodyPct"`
}

// DefaultEntryParams returns a 5% drawdown entry, an upper bound 10% above
// the impulse close, a 20 bar volume average and a 2% body.
func DefaultEntryParams() EntryParams {
	return EntryParams{DrawdownPct: 5, RangeMultiplier: 1.10, VolumeWindow: 20, MinBodyPct: 2}
}

// Impulse is a strong bullish bar.
type Impulse struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}

// Entry is the first bar closing at or below the drawdown level after an
// impulse, with the LP range to open.
type Entry struct {
	Index      int       `json:"index"`
	Time       time.Time `json:"time"`
	Impulse    Impulse   `json:"impulse"`
	EntryPrice float64   `json:"entryPrice"`
	Lower      float64   `json:"lower"`
	Upper      float64   `json:"upper"`
}

// Signals holds the detected impulses and entries.
type Signals struct {
	Impulses []Impulse `json:"impulses"`
	Entries  []Entry   `json:"entries"`
}

// EntrySignals scans candles oldest first. An impulse is bullish, has a body
// of at least MinBodyPct of its low, trades above the rolling mean volume
// (current bar included) and makes a high above the two prior bars. After an
// impulse the first close at or below impulse×(1−DrawdownPct) is an entry
// with LP range [entry, impulse×RangeMultiplier].
func EntrySignals(candles []price.Candle, p EntryParams) (Signals, error) {
	if p.VolumeWindow < 1 {
		return Signals{}, fmt.Errorf("volume window %d must be at least 1", p.VolumeWindow)
	}
	if p.DrawdownPct <= 0 || p.DrawdownPct >= 100 {
		return Signals{}, fmt.Errorf("drawdown %v%% must be in (0, 100)", p.DrawdownPct)
	}
	if p.RangeMultiplier <= 1 {
		return Signals{}, fmt.Errorf("range multiplier %v must be above 1", p.RangeMultiplier)
	}

	var (
		s       Signals
		armed   *Impulse
		running float64
	)
	for i, c := range candles {
		running += c.Volume
		if i >= p.VolumeWindow {
			running -= candles[i-p.VolumeWindow].Volume
		}

		if armed != nil {
			entry := armed.Close * (1 - p.DrawdownPct/100)
			if c.Close <= entry {
				s.Entries = append(s.Entries, Entry{
					Index:      i,
					Time:       c.OpenTime,
					Impulse:    *armed,
					EntryPrice: entry,
					Lower:      entry,
					Upper:      armed.Close * p.RangeMultiplier,
				})
				armed = nil
			}
		}

		if i+1 < p.VolumeWindow || i < 2 || c.Low <= 0 {
			continue
		}
		avgVolume := running / float64(p.VolumeWindow)
		bodyPct := math.Abs(c.Close-c.Open) / c.Low * 100
		localHigh := c.High > candles[i-1].High && c.High > candles[i-2].High
		if c.Bullish() && bodyPct >= p.MinBodyPct && c.Volume > avgVolume && localHigh {
			imp := Impulse{Index: i, Time: c.OpenTime, Close: c.Close}
			s.Impulses = append(s.Impulses, imp)
			armed = &imp
		}
	}
	return s, nil
}
