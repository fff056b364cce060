package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChartSync/internal/domain/models"
	"ChartSync/internal/series"
	"ChartSync/pkg/logger"
)

func newTestBridger(bf *fakeBackfiller) (*GapBridger, *fakeNotifier) {
	notifier := &fakeNotifier{}
	b := NewGapBridger(bf, notifier, newNopMetrics(), logger.Nop())
	return b, notifier
}

func TestBridgeNoGapIsNoop(t *testing.T) {
	st := series.New(testKey, 0)
	st.Replace([]models.Candle{mk(base, 10)})
	bf := &fakeBackfiller{}
	b, _ := newTestBridger(bf)
	b.now = func() time.Time { return time.Unix(base+30, 0) }

	n, err := b.Bridge(context.Background(), st)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
	if bf.callCount() != 0 {
		t.Fatalf("no fetch for a gap within one period")
	}
}

func TestBridgeSynthesizesExactlyNCandles(t *testing.T) {
	st := series.New(testKey, 0)
	st.Replace([]models.Candle{mk(base, 10)})
	bf := &fakeBackfiller{} // returns nothing
	b, notifier := newTestBridger(bf)
	// Three whole periods elapsed: two are missing, the third is forming.
	b.now = func() time.Time { return time.Unix(base+180, 0) }

	n, err := b.Bridge(context.Background(), st)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 synthetic candles, got %d", n)
	}

	snap := st.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 resident candles, got %d", len(snap))
	}
	for _, c := range snap[1:] {
		if !c.Synthetic {
			t.Fatalf("bridge candle not flagged synthetic: %+v", c)
		}
		if c.Open != 10 || c.High != 10 || c.Low != 10 || c.Close != 10 {
			t.Fatalf("bridge candle must be flat at the last close, got %+v", c)
		}
		if c.Volume != 0 {
			t.Fatalf("bridge candle must carry no volume")
		}
	}
	if snap[1].Time != base+60 || snap[2].Time != base+120 {
		t.Fatalf("bridge candles must be spaced one period apart, got %d %d", snap[1].Time, snap[2].Time)
	}
	if len(notifier.gapFilled) != 1 || notifier.gapFilled[0] != 2 || !notifier.synthetic[0] {
		t.Fatalf("expected one synthetic gap-filled notification")
	}
}

func TestBridgePrefersAuthoritativeData(t *testing.T) {
	st := series.New(testKey, 0)
	st.Replace([]models.Candle{mk(base, 10)})
	bf := &fakeBackfiller{candles: []models.Candle{mk(base+60, 20), mk(base+120, 21)}}
	b, notifier := newTestBridger(bf)
	b.now = func() time.Time { return time.Unix(base+180, 0) }

	n, err := b.Bridge(context.Background(), st)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 merged, got n=%d err=%v", n, err)
	}
	snap := st.Snapshot()
	if snap[1].Close != 20 || snap[1].Synthetic {
		t.Fatalf("authoritative candle expected, got %+v", snap[1])
	}
	if len(notifier.synthetic) != 1 || notifier.synthetic[0] {
		t.Fatalf("gap-filled notification must not be synthetic")
	}
}

func TestBridgeFallsBackOnFetchError(t *testing.T) {
	st := series.New(testKey, 0)
	st.Replace([]models.Candle{mk(base, 10)})
	bf := &fakeBackfiller{err: errors.New("network down")}
	b, _ := newTestBridger(bf)
	b.now = func() time.Time { return time.Unix(base+180, 0) }

	n, err := b.Bridge(context.Background(), st)
	if err != nil {
		t.Fatalf("fetch failure must fall back, not fail: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected synthetic fallback, got %d", n)
	}
}

func TestAuthoritativeMergeOverwritesSynthetic(t *testing.T) {
	st := series.New(testKey, 0)
	st.Replace([]models.Candle{mk(base, 10)})
	bf := &fakeBackfiller{}
	b, _ := newTestBridger(bf)
	b.now = func() time.Time { return time.Unix(base+180, 0) }
	if _, err := b.Bridge(context.Background(), st); err != nil {
		t.Fatalf("bridge: %v", err)
	}

	// Real data for the bridged times arrives later.
	st.Merge([]models.Candle{mk(base+60, 30)})

	snap := st.Snapshot()
	if snap[1].Close != 30 || snap[1].Synthetic {
		t.Fatalf("authoritative data must overwrite the synthetic candle, got %+v", snap[1])
	}
}

func TestBridgeEmptyStoreIsNoop(t *testing.T) {
	st := series.New(testKey, 0)
	bf := &fakeBackfiller{}
	b, _ := newTestBridger(bf)

	if n, err := b.Bridge(context.Background(), st); n != 0 || err != nil {
		t.Fatalf("empty store must be a no-op")
	}
}
