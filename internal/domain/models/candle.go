package models

import (
	"math"
	"time"
)

// Epoch sanity window for candle timestamps. Anything outside is almost
// certainly a unit error (milliseconds where seconds were expected).
const (
	MinCandleTime = int64(1_000_000_000) // 2001-09-09
	MaxCandleTime = int64(4_000_000_000) // 2096-10-02
)

// Candle is one OHLCV bar. Time is the period open in unix seconds.
type Candle struct {
	Time      int64   `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// Valid reports whether the candle passes ingest validation: prices finite
// and positive, volume non-negative and finite, timestamp inside the epoch
// sanity window.
func (c Candle) Valid() bool {
	if c.Time < MinCandleTime || c.Time > MaxCandleTime {
		return false
	}
	for _, p := range [...]float64{c.Open, c.High, c.Low, c.Close} {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	if c.Volume < 0 || math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) {
		return false
	}
	return true
}

// Normalize widens High/Low so that Low <= min(Open,Close) and
// max(Open,Close) <= High. Feeds occasionally emit a tick-derived envelope
// narrower than the body; the body wins.
func (c Candle) Normalize() Candle {
	if hi := math.Max(c.Open, c.Close); c.High < hi {
		c.High = hi
	}
	if lo := math.Min(c.Open, c.Close); c.Low > lo {
		c.Low = lo
	}
	return c
}

// Equal compares the observable fields (time, OHLC, volume). Synthetic is a
// bookkeeping flag and does not participate.
func (c Candle) Equal(o Candle) bool {
	return c.Time == o.Time &&
		c.Open == o.Open && c.High == o.High &&
		c.Low == o.Low && c.Close == o.Close &&
		c.Volume == o.Volume
}

// Age returns how far now is past the candle's period open.
func (c Candle) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(c.Time, 0))
}
