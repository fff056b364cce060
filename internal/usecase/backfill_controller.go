package usecase

import (
	"context"
	"sync"
	"time"

	"ChartSync/internal/domain/models"
	"ChartSync/internal/domain/repository"
	"ChartSync/internal/series"
	"ChartSync/pkg/logger"
	"ChartSync/pkg/sched"
)

// seriesEnv exposes the engine state a collaborator needs to mutate safely:
// the store and generation of the active key, a staleness check for results
// arriving after a key change, and the mutation hook that drives downstream
// notification through the dirty gate.
type seriesEnv interface {
	Current() (*series.Store, uint64)
	Active(gen uint64) bool
	Mutated(newCandle bool)
}

// BackfillController loads older history when the viewport approaches the
// start of the resident series. Triggers are debounced so a scroll burst
// collapses to one load; a single load is in flight at any time and
// concurrent triggers are dropped, not queued. Failures return the
// controller to idle without retry; only a new viewport event retries.
type BackfillController struct {
	backfiller repository.Backfiller
	notifier   repository.StatusNotifier
	metrics    repository.Metrics
	log        *logger.Logger
	env        seriesEnv

	nearFraction float64
	skipBuffer   int
	fetchLimit   int

	deb *sched.Debouncer

	mu       sync.Mutex
	loading  bool
	viewport models.ViewportState
}

func NewBackfillController(cfg Config, backfiller repository.Backfiller, notifier repository.StatusNotifier, metrics repository.Metrics, log *logger.Logger, env seriesEnv) *BackfillController {
	cfg = cfg.withDefaults()
	c := &BackfillController{
		backfiller:   backfiller,
		notifier:     notifier,
		metrics:      metrics,
		log:          log,
		env:          env,
		nearFraction: cfg.NearStartFraction,
		skipBuffer:   cfg.SkipBuffer,
		fetchLimit:   cfg.FetchLimit,
	}
	c.deb = sched.NewDebouncer(cfg.DebounceInterval, c.fire)
	return c
}

// OnViewport feeds a viewport event. When the visible range sits within the
// near-start fraction of the resident series the (debounced) load fires.
func (c *BackfillController) OnViewport(v models.ViewportState) {
	st, _ := c.env.Current()
	count := st.Len()
	if count == 0 {
		return
	}
	if v.From > c.nearFraction*float64(count) {
		return
	}

	c.mu.Lock()
	c.viewport = v
	c.mu.Unlock()
	c.deb.Trigger()
}

// Stop cancels any pending debounced trigger.
func (c *BackfillController) Stop() {
	c.deb.Stop()
}

// fire runs after the debounce window. It enforces the single-flight mutex
// and the skip condition, then loads in the background.
func (c *BackfillController) fire() {
	c.mu.Lock()
	if c.loading {
		// A load is already in flight; this trigger is suppressed.
		c.mu.Unlock()
		c.metrics.RecordUpdateDropped("concurrent_load")
		return
	}

	st, gen := c.env.Current()
	key := st.Key()

	// Skip when the series already holds the candle count its timeframe
	// implies (within a small buffer): it is fully loaded and near-start
	// events on it are false positives.
	if st.Len()+c.skipBuffer >= key.Granularity.ExpectedCount() {
		c.mu.Unlock()
		c.log.Debug("backfill skipped, series fully loaded",
			logger.String("key", key.String()), logger.Int("count", st.Len()))
		return
	}

	oldest, ok := st.Oldest()
	if !ok {
		c.mu.Unlock()
		return
	}

	c.loading = true
	c.mu.Unlock()

	period := int64(key.Granularity.Period() / time.Second)
	req := models.LoadRequest{
		Key:        key,
		RangeStart: oldest.Time - int64(c.fetchLimit)*period,
		RangeEnd:   oldest.Time - period,
		Reason:     models.LoadBackfill,
	}
	go c.load(st, gen, req)
}

func (c *BackfillController) load(st *series.Store, gen uint64, req models.LoadRequest) {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	start := time.Now()
	c.notifier.NotifyLoading(req.Key, req.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	candles, err := c.backfiller.Fetch(ctx, req.Key.Instrument, req.Key.Granularity, req.RangeStart, req.RangeEnd, c.fetchLimit)
	c.metrics.RecordLoadLatency(string(req.Reason), time.Since(start).Seconds())

	if !c.env.Active(gen) {
		// The active key moved on while we were fetching; the result is
		// discarded silently.
		c.metrics.RecordUpdateDropped("stale_result")
		return
	}
	if err != nil {
		c.log.Warn("backfill fetch failed", logger.String("key", req.Key.String()), logger.Error(err))
		c.metrics.RecordError("backfill_fetch")
		c.notifier.NotifyError(req.Key, err)
		return
	}

	n := st.Prepend(candles)
	if n == 0 {
		c.log.Debug("backfill returned nothing to prepend", logger.String("key", req.Key.String()))
		return
	}

	c.metrics.RecordResidentCandles(req.Key.Instrument, string(req.Key.Granularity), st.Len())
	c.notifier.NotifyReady(req.Key, st.Len())
	c.env.Mutated(false)
	c.log.Info("backfill applied",
		logger.String("key", req.Key.String()),
		logger.Int("prepended", n),
		logger.Int("resident", st.Len()))
}
