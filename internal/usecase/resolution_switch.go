package usecase

import (
	"time"

	"ChartSync/internal/domain/models"
	"ChartSync/pkg/sched"
)

// ResolutionSwitch watches the visible candle count and proposes granularity
// changes with hysteresis. Zooming out past the upper threshold steps one
// rung coarser, zooming in below the lower threshold steps one rung finer.
// A target granularity is locked out for a cooldown window after a switch so
// the thresholds cannot oscillate.
type ResolutionSwitch struct {
	upper    int
	lower    int
	cooldown *sched.Cooldown
}

func NewResolutionSwitch(upper, lower int, cooldownWindow time.Duration) *ResolutionSwitch {
	if upper <= 0 {
		upper = 150
	}
	if lower <= 0 {
		lower = 50
	}
	if cooldownWindow <= 0 {
		cooldownWindow = time.Second
	}
	return &ResolutionSwitch{
		upper:    upper,
		lower:    lower,
		cooldown: sched.NewCooldown(cooldownWindow),
	}
}

// Evaluate returns the granularity to switch to, or false when no switch
// should happen. Each call moves at most one ladder step. Resident candles
// are never resampled across granularities; the caller issues a fresh load
// for the new key.
func (s *ResolutionSwitch) Evaluate(current models.Granularity, visible int) (models.Granularity, bool) {
	var target models.Granularity
	var ok bool
	switch {
	case visible > s.upper:
		target, ok = current.Coarser()
	case visible < s.lower:
		target, ok = current.Finer()
	}
	if !ok || target == current {
		return current, false
	}
	if !s.cooldown.Allow(string(target)) {
		return current, false
	}
	return target, true
}
