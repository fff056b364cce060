package usecase

import (
	"context"
	"sync"
	"time"

	"ChartSync/internal/domain/models"
	"ChartSync/internal/domain/repository"
	"ChartSync/internal/series"
	"ChartSync/pkg/logger"
)

// Engine owns the candle cache for one instrument and coordinates the
// backfill controller, realtime reconciler, gap bridger, and resolution
// switch around it. The rendering layer is a read-only observer: it gets
// sorted snapshots and change callbacks, never mutation access.
//
// Every async result (backfill, gap fill, live update) carries the store
// pointer and generation it originated under. Changing the active key bumps
// the generation and swaps in a fresh store, so a late result either fails
// the Active check or mutates an orphaned store; the live series can never
// be corrupted by a superseded request.
type Engine struct {
	cfg        Config
	backfiller repository.Backfiller
	feed       repository.LiveFeed
	notifier   repository.StatusNotifier
	metrics    repository.Metrics
	log        *logger.Logger

	gate      *DirtyFlagGate
	recon     *Reconciler
	ctrl      *BackfillController
	bridger   *GapBridger
	resSwitch *ResolutionSwitch

	mu      sync.Mutex
	store   *series.Store
	gen     uint64
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	unsub   func()

	obsMu     sync.Mutex
	observers []func([]models.Candle)
}

// NewEngine builds an engine for the given initial key. The feed may be nil
// when only historical data is wanted.
func NewEngine(
	cfg Config,
	key models.SeriesKey,
	backfiller repository.Backfiller,
	feed repository.LiveFeed,
	notifier repository.StatusNotifier,
	metrics repository.Metrics,
	log *logger.Logger,
) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:        cfg,
		backfiller: backfiller,
		feed:       feed,
		notifier:   notifier,
		metrics:    metrics,
		log:        log,
		gate:       NewDirtyFlagGate(),
		store:      series.New(key, cfg.RetentionCap),
	}
	e.recon = NewReconciler(cfg, notifier, metrics, log, e)
	e.ctrl = NewBackfillController(cfg, backfiller, notifier, metrics, log, e)
	e.bridger = NewGapBridger(backfiller, notifier, metrics, log)
	e.resSwitch = NewResolutionSwitch(cfg.SwitchUpper, cfg.SwitchLower, cfg.SwitchCooldown)
	return e
}

// Start issues the initial load and subscribes to the live feed.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	key := e.store.Key()
	e.mu.Unlock()

	e.recon.Start()
	e.requestInitialLoad()

	if e.feed != nil {
		unsub, err := e.feed.Subscribe(e.ctx, key.Instrument, key.Granularity, e.recon.Submit, e.onReconnect)
		if err != nil {
			e.metrics.RecordError("feed_subscribe")
			return err
		}
		e.mu.Lock()
		e.unsub = unsub
		e.mu.Unlock()
	}

	e.log.Info("engine started", logger.String("key", key.String()))
	return nil
}

// Stop tears everything down. Pending work is dropped, not drained.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	unsub := e.unsub
	e.unsub = nil
	cancel := e.cancel
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	e.recon.Stop()
	e.ctrl.Stop()
}

// SetActiveKey replaces the active series. In-flight loads for the previous
// key are not aborted; their results are discarded on arrival.
func (e *Engine) SetActiveKey(instrument string, g models.Granularity) {
	key := models.SeriesKey{Instrument: instrument, Granularity: g}

	e.mu.Lock()
	if e.store.Key() == key {
		e.mu.Unlock()
		return
	}
	e.gen++
	e.store = series.New(key, e.cfg.RetentionCap)
	started := e.started
	unsub := e.unsub
	e.unsub = nil
	ctx := e.ctx
	e.mu.Unlock()

	e.gate.Reset()
	e.recon.Reset()
	e.log.Info("active key replaced", logger.String("key", key.String()))

	if !started {
		return
	}
	if unsub != nil {
		unsub()
	}
	if e.feed != nil {
		newUnsub, err := e.feed.Subscribe(ctx, key.Instrument, key.Granularity, e.recon.Submit, e.onReconnect)
		if err != nil {
			e.metrics.RecordError("feed_subscribe")
			e.notifier.NotifyError(key, err)
		} else {
			e.mu.Lock()
			e.unsub = newUnsub
			e.mu.Unlock()
		}
	}
	e.requestInitialLoad()
}

// ActiveKey returns the key currently served.
func (e *Engine) ActiveKey() models.SeriesKey {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Key()
}

// Snapshot returns the sorted resident series.
func (e *Engine) Snapshot() []models.Candle {
	st, _ := e.Current()
	return st.Snapshot()
}

// OnSeriesChanged registers a rendering-layer callback. It fires only when
// the dirty gate sees a genuine change.
func (e *Engine) OnSeriesChanged(fn func([]models.Candle)) {
	e.obsMu.Lock()
	e.observers = append(e.observers, fn)
	e.obsMu.Unlock()
}

// OnViewportNearStart feeds a scroll event from the rendering layer into the
// backfill controller.
func (e *Engine) OnViewportNearStart(v models.ViewportState) {
	e.ctrl.OnViewport(v)
}

// OnViewportZoom feeds a zoom event into the resolution switch. A granted
// switch replaces the active key and issues one fresh load.
func (e *Engine) OnViewportZoom(visibleCount int) {
	key := e.ActiveKey()
	target, ok := e.resSwitch.Evaluate(key.Granularity, visibleCount)
	if !ok {
		return
	}
	e.log.Info("resolution switch",
		logger.String("from", string(key.Granularity)),
		logger.String("to", string(target)),
		logger.Int("visible", visibleCount))
	e.SetActiveKey(key.Instrument, target)
}

// --- seriesEnv ---

// Current returns the active store and its generation.
func (e *Engine) Current() (*series.Store, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store, e.gen
}

// Active reports whether gen still matches the active generation.
func (e *Engine) Active(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

// Mutated runs after any store mutation. The dirty gate decides whether the
// rendering layer hears about it; a new bar always goes through.
func (e *Engine) Mutated(newCandle bool) {
	st, _ := e.Current()
	tail, ok := st.Last()
	if !ok {
		return
	}
	if !e.gate.Changed(tail) && !newCandle {
		return
	}
	key := st.Key()
	e.metrics.RecordResidentCandles(key.Instrument, string(key.Granularity), st.Len())

	snap := st.Snapshot()
	e.obsMu.Lock()
	obs := make([]func([]models.Candle), len(e.observers))
	copy(obs, e.observers)
	e.obsMu.Unlock()
	for _, fn := range obs {
		fn(snap)
	}
}

// onReconnect runs a gap check after the live transport recovers.
func (e *Engine) onReconnect() {
	st, gen := e.Current()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := e.bridger.Bridge(ctx, st)
		if err != nil {
			e.log.Warn("gap bridge failed", logger.Error(err))
			return
		}
		if n > 0 && e.Active(gen) {
			e.Mutated(false)
		}
	}()
}

// requestInitialLoad fetches the most recent window for the active key and
// replaces the series wholesale.
func (e *Engine) requestInitialLoad() {
	st, gen := e.Current()
	key := st.Key()
	period := int64(key.Granularity.Period() / time.Second)
	end := time.Now().Unix()
	req := models.LoadRequest{
		Key:        key,
		RangeStart: end - int64(e.cfg.FetchLimit)*period,
		RangeEnd:   end,
		Reason:     models.LoadInitial,
	}

	e.notifier.NotifyLoading(key, req.Reason)
	go func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		candles, err := e.backfiller.Fetch(ctx, key.Instrument, key.Granularity, req.RangeStart, req.RangeEnd, e.cfg.FetchLimit)
		e.metrics.RecordLoadLatency(string(req.Reason), time.Since(start).Seconds())

		if !e.Active(gen) {
			e.metrics.RecordUpdateDropped("stale_result")
			return
		}
		if err != nil {
			e.metrics.RecordError("initial_load")
			e.notifier.NotifyError(key, err)
			e.log.Error("initial load failed", logger.String("key", key.String()), logger.Error(err))
			return
		}

		n := st.Replace(candles)
		e.metrics.RecordResidentCandles(key.Instrument, string(key.Granularity), n)
		e.notifier.NotifyReady(key, n)
		e.Mutated(false)
		e.log.Info("initial load applied", logger.String("key", key.String()), logger.Int("resident", n))
	}()
}
