package models

import "time"

// Granularity is the fixed period length of one candle.
type Granularity string

const (
	Gran1m  Granularity = "1m"
	Gran5m  Granularity = "5m"
	Gran15m Granularity = "15m"
	Gran1h  Granularity = "1h"
	Gran6h  Granularity = "6h"
	Gran1d  Granularity = "1d"
)

// Ladder orders the supported granularities finest to coarsest. The
// resolution switch moves one step at a time along it.
var Ladder = []Granularity{Gran1m, Gran5m, Gran15m, Gran1h, Gran6h, Gran1d}

var periods = map[Granularity]time.Duration{
	Gran1m:  time.Minute,
	Gran5m:  5 * time.Minute,
	Gran15m: 15 * time.Minute,
	Gran1h:  time.Hour,
	Gran6h:  6 * time.Hour,
	Gran1d:  24 * time.Hour,
}

// timeframes maps each granularity to the total window it is expected to
// cover, sized so a full window stays near the retention cap.
var timeframes = map[Granularity]time.Duration{
	Gran1m:  24 * time.Hour,
	Gran5m:  5 * 24 * time.Hour,
	Gran15m: 14 * 24 * time.Hour,
	Gran1h:  60 * 24 * time.Hour,
	Gran6h:  365 * 24 * time.Hour,
	Gran1d:  4 * 365 * 24 * time.Hour,
}

// Period returns the candle period length, defaulting to one minute for an
// unknown granularity.
func (g Granularity) Period() time.Duration {
	if p, ok := periods[g]; ok {
		return p
	}
	return time.Minute
}

// Valid reports whether g is on the ladder.
func (g Granularity) Valid() bool {
	_, ok := periods[g]
	return ok
}

// Timeframe returns the visible window length paired with this granularity.
func (g Granularity) Timeframe() time.Duration {
	if tf, ok := timeframes[g]; ok {
		return tf
	}
	return 24 * time.Hour
}

// ExpectedCount is the number of candles a full timeframe window implies.
func (g Granularity) ExpectedCount() int {
	return int(g.Timeframe() / g.Period())
}

// Coarser returns the next step up the ladder, false at the top.
func (g Granularity) Coarser() (Granularity, bool) {
	for i, l := range Ladder {
		if l == g && i+1 < len(Ladder) {
			return Ladder[i+1], true
		}
	}
	return g, false
}

// Finer returns the next step down the ladder, false at the bottom.
func (g Granularity) Finer() (Granularity, bool) {
	for i, l := range Ladder {
		if l == g && i > 0 {
			return Ladder[i-1], true
		}
	}
	return g, false
}
