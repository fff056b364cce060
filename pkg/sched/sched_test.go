package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	var fired int32
	d := NewDebouncer(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("expected a burst to collapse to 1 callback, got %d", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	var fired int32
	d := NewDebouncer(10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	d.Trigger()
	d.Stop()
	time.Sleep(40 * time.Millisecond)

	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("expected no callback after Stop, got %d", got)
	}
	d.Trigger()
	time.Sleep(40 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("trigger after stop must be a no-op")
	}
}

func TestFrameGateRunsOnlyLatest(t *testing.T) {
	g := NewFrameGate(15 * time.Millisecond)
	g.Start()
	defer g.Stop()

	var got int32
	for i := 1; i <= 5; i++ {
		v := int32(i)
		g.Schedule(func() { atomic.StoreInt32(&got, v) })
	}
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&got) != 5 {
		t.Fatalf("expected only the latest pending callback to run, got %d", got)
	}
}

func TestFrameGateOneFlushPerFrame(t *testing.T) {
	g := NewFrameGate(20 * time.Millisecond)
	g.Start()
	defer g.Stop()

	var runs int32
	g.Schedule(func() { atomic.AddInt32(&runs, 1) })
	time.Sleep(70 * time.Millisecond)

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("a scheduled callback must run exactly once, got %d", got)
	}
}

func TestCooldownLocksOutKey(t *testing.T) {
	c := NewCooldown(time.Minute)
	fake := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return fake }

	if !c.Allow("5m") {
		t.Fatalf("first use must be allowed")
	}
	if c.Allow("5m") {
		t.Fatalf("second use inside the window must be locked out")
	}
	if !c.Allow("15m") {
		t.Fatalf("other keys are independent")
	}

	fake = fake.Add(2 * time.Minute)
	if !c.Allow("5m") {
		t.Fatalf("expired window must allow again")
	}
}
