package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"ChartSync/internal/domain/models"
	"ChartSync/pkg/logger"
)

// scriptedFeed hands the engine its callbacks for direct driving.
type scriptedFeed struct {
	mu          sync.Mutex
	onUpdate    func(models.LiveUpdate)
	onReconnect func()
	subs        int
	unsubs      int
}

func (f *scriptedFeed) Subscribe(_ context.Context, _ string, _ models.Granularity, onUpdate func(models.LiveUpdate), onReconnect func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	f.onUpdate = onUpdate
	f.onReconnect = onReconnect
	return func() {
		f.mu.Lock()
		f.unsubs++
		f.mu.Unlock()
	}, nil
}

func testEngine(bf *fakeBackfiller, feed *scriptedFeed) (*Engine, *fakeNotifier) {
	notifier := &fakeNotifier{}
	cfg := Config{FrameInterval: 10 * time.Millisecond, DebounceInterval: 10 * time.Millisecond}
	var e *Engine
	if feed != nil {
		e = NewEngine(cfg, testKey, bf, feed, notifier, newNopMetrics(), logger.Nop())
	} else {
		e = NewEngine(cfg, testKey, bf, nil, notifier, newNopMetrics(), logger.Nop())
	}
	return e, notifier
}

func TestEngineInitialLoadPopulatesStore(t *testing.T) {
	bf := &fakeBackfiller{candles: []models.Candle{mk(base, 10), mk(base+60, 11)}}
	e, notifier := testEngine(bf, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()
	time.Sleep(50 * time.Millisecond)

	snap := e.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 candles loaded, got %d", len(snap))
	}
	if notifier.ready != 1 || notifier.loading != 1 {
		t.Fatalf("expected loading+ready notifications, got %d/%d", notifier.loading, notifier.ready)
	}
}

func TestEngineDiscardsLoadAfterKeySwitch(t *testing.T) {
	bf := &keyedBackfiller{
		delay: 40 * time.Millisecond,
		byGran: map[models.Granularity][]models.Candle{
			models.Gran1m: {mk(base, 111)},
			models.Gran5m: {mk(base, 555)},
		},
	}
	e, _ := testEngine(&fakeBackfiller{}, nil)
	e.backfiller = bf
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	// Switch keys while the 1m load is still in flight.
	e.SetActiveKey("BTC-USD", models.Gran5m)
	time.Sleep(150 * time.Millisecond)

	snap := e.Snapshot()
	if len(snap) != 1 || snap[0].Close != 555 {
		t.Fatalf("the superseded 1m result must be discarded, got %+v", snap)
	}
	if e.ActiveKey().Granularity != models.Gran5m {
		t.Fatalf("active key must be 5m, got %v", e.ActiveKey())
	}
}

// keyedBackfiller returns different data per granularity after a delay.
type keyedBackfiller struct {
	delay  time.Duration
	byGran map[models.Granularity][]models.Candle
}

func (k *keyedBackfiller) Fetch(ctx context.Context, _ string, g models.Granularity, _, _ int64, _ int) ([]models.Candle, error) {
	select {
	case <-time.After(k.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return k.byGran[g], nil
}

func TestEngineObserverFiresOnGenuineChangeOnly(t *testing.T) {
	bf := &fakeBackfiller{candles: []models.Candle{mk(base, 10)}}
	feed := &scriptedFeed{}
	e, _ := testEngine(bf, feed)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()
	time.Sleep(50 * time.Millisecond)

	var mu sync.Mutex
	fired := 0
	e.OnSeriesChanged(func([]models.Candle) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	// An incomplete update identical to the resident tail: no visible change.
	e.recon.apply(models.LiveUpdate{Stage: models.StageIncomplete, Candle: mk(base, 10)})
	mu.Lock()
	same := fired
	mu.Unlock()
	if same != 0 {
		t.Fatalf("unchanged tail must not notify observers")
	}

	e.recon.apply(models.LiveUpdate{Stage: models.StageIncomplete, Candle: mk(base, 12)})
	mu.Lock()
	changed := fired
	mu.Unlock()
	if changed != 1 {
		t.Fatalf("changed tail must notify once, got %d", changed)
	}
}

func TestEngineResubscribesOnKeySwitch(t *testing.T) {
	bf := &fakeBackfiller{candles: []models.Candle{mk(base, 10)}}
	feed := &scriptedFeed{}
	e, _ := testEngine(bf, feed)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	e.SetActiveKey("BTC-USD", models.Gran5m)
	time.Sleep(30 * time.Millisecond)

	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.subs != 2 || feed.unsubs != 1 {
		t.Fatalf("expected resubscribe on key switch, subs=%d unsubs=%d", feed.subs, feed.unsubs)
	}
}

func TestEngineSetSameKeyIsNoop(t *testing.T) {
	bf := &fakeBackfiller{}
	feed := &scriptedFeed{}
	e, _ := testEngine(bf, feed)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	e.SetActiveKey(testKey.Instrument, testKey.Granularity)

	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.subs != 1 {
		t.Fatalf("same key must not resubscribe, subs=%d", feed.subs)
	}
}

func TestEngineZoomOutSwitchesKeyOnce(t *testing.T) {
	bf := &fakeBackfiller{candles: []models.Candle{mk(base, 10)}}
	e, _ := testEngine(bf, nil)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	// Scenario: 80 visible is stable, 200 forces one step coarser.
	e.OnViewportZoom(80)
	if e.ActiveKey().Granularity != models.Gran1m {
		t.Fatalf("no switch expected at 80 visible")
	}
	e.OnViewportZoom(200)
	if e.ActiveKey().Granularity != models.Gran5m {
		t.Fatalf("expected switch to 5m, got %v", e.ActiveKey().Granularity)
	}
	// Inside the cooldown the same target cannot re-trigger.
	e.SetActiveKey("BTC-USD", models.Gran1m)
	e.OnViewportZoom(200)
	if e.ActiveKey().Granularity != models.Gran1m {
		t.Fatalf("cooldown must block an immediate re-switch")
	}
}

func TestEngineReconnectBridgesGap(t *testing.T) {
	bf := &fakeBackfiller{candles: []models.Candle{mk(base, 10)}}
	feed := &scriptedFeed{}
	e, notifier := testEngine(bf, feed)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()
	time.Sleep(50 * time.Millisecond)

	// The feed reconnects; history for the gap is unavailable, so flat
	// bridge candles cover it.
	bf.mu.Lock()
	bf.candles = nil
	bf.mu.Unlock()
	st, _ := e.Current()
	st.Replace([]models.Candle{mk(time.Now().Unix()-180, 10)})
	feed.onReconnect()
	time.Sleep(60 * time.Millisecond)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.gapFilled) != 1 {
		t.Fatalf("expected one gap-filled notification, got %d", len(notifier.gapFilled))
	}
}
