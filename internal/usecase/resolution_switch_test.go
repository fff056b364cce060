package usecase

import (
	"testing"
	"time"

	"ChartSync/internal/domain/models"
)

func TestSwitchCoarserOnZoomOut(t *testing.T) {
	s := NewResolutionSwitch(150, 50, time.Second)

	// Zoom-out jumps the visible count from 80 to 200 on a 1m chart.
	if _, ok := s.Evaluate(models.Gran1m, 80); ok {
		t.Fatalf("80 visible is inside the hysteresis band")
	}
	target, ok := s.Evaluate(models.Gran1m, 200)
	if !ok || target != models.Gran5m {
		t.Fatalf("expected one step coarser to 5m, got %v %v", target, ok)
	}
}

func TestSwitchFinerOnZoomIn(t *testing.T) {
	s := NewResolutionSwitch(150, 50, time.Second)

	target, ok := s.Evaluate(models.Gran15m, 20)
	if !ok || target != models.Gran5m {
		t.Fatalf("expected one step finer to 5m, got %v %v", target, ok)
	}
}

func TestSwitchStopsAtLadderEnds(t *testing.T) {
	s := NewResolutionSwitch(150, 50, time.Second)

	if _, ok := s.Evaluate(models.Gran1d, 500); ok {
		t.Fatalf("no coarser granularity exists above 1d")
	}
	if _, ok := s.Evaluate(models.Gran1m, 10); ok {
		t.Fatalf("no finer granularity exists below 1m")
	}
}

func TestSwitchCooldownPreventsOscillation(t *testing.T) {
	s := NewResolutionSwitch(150, 50, time.Minute)

	if _, ok := s.Evaluate(models.Gran1m, 200); !ok {
		t.Fatalf("first switch must be granted")
	}
	// The chart reloaded at 5m; the count hovers at the boundary and the
	// user bounces back and forth.
	if _, ok := s.Evaluate(models.Gran5m, 20); !ok {
		t.Fatalf("switching down to 1m targets a different cooldown key")
	}
	if _, ok := s.Evaluate(models.Gran1m, 200); ok {
		t.Fatalf("5m is locked out inside its cooldown window")
	}
}
