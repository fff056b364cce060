package usecase

import "time"

// Config carries the engine tuning knobs. Zero values fall back to the
// defaults below; none of this is persisted state.
type Config struct {
	RetentionCap      int           // max resident candles per series
	NearStartFraction float64       // viewport proximity to the oldest candle that triggers backfill
	DebounceInterval  time.Duration // scroll/zoom burst collapse window
	SkipBuffer        int           // slack on the timeframe-implied count before backfill stops
	FetchLimit        int           // candles per backfill batch
	FrameInterval     time.Duration // live update flush cadence
	DedupWindow       time.Duration // near-duplicate live update suppression
	SwitchUpper       int           // visible count above which resolution coarsens
	SwitchLower       int           // visible count below which resolution refines
	SwitchCooldown    time.Duration // per-target lockout after a resolution switch
}

func (c Config) withDefaults() Config {
	if c.RetentionCap <= 0 {
		c.RetentionCap = 1500
	}
	if c.NearStartFraction <= 0 || c.NearStartFraction >= 1 {
		c.NearStartFraction = 0.15
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = 300 * time.Millisecond
	}
	if c.SkipBuffer <= 0 {
		c.SkipBuffer = 10
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = 300
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 16 * time.Millisecond
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 50 * time.Millisecond
	}
	if c.SwitchUpper <= 0 {
		c.SwitchUpper = 150
	}
	if c.SwitchLower <= 0 {
		c.SwitchLower = 50
	}
	if c.SwitchCooldown <= 0 {
		c.SwitchCooldown = time.Second
	}
	return c
}
