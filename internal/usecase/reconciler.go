package usecase

import (
	"errors"
	"sync"
	"time"

	"ChartSync/internal/domain/models"
	"ChartSync/internal/domain/repository"
	"ChartSync/internal/series"
	"ChartSync/pkg/logger"
	"ChartSync/pkg/sched"
)

// staleTailFactor caps how old the tail may be before tick updates are
// refused: past this multiple of the granularity period the candle has
// rolled over on the feed side and a tick would corrupt it.
const staleTailFactor = 2

// Reconciler consumes the live feed for the active series. Each inbound
// message is classified by candle lifecycle stage and applied through the
// matching store mutation. Updates are coalesced into a single pending slot
// flushed once per frame, and a short window drops near-duplicates coming
// from overlapping feeds.
type Reconciler struct {
	env      seriesEnv
	notifier repository.StatusNotifier
	metrics  repository.Metrics
	log      *logger.Logger

	frame *sched.FrameGate
	dedup time.Duration
	now   func() time.Time

	mu            sync.Mutex
	pending       *models.LiveUpdate
	pendingGen    uint64
	lastApplied   models.LiveUpdate
	lastAppliedAt time.Time
	hasLast       bool
}

func NewReconciler(cfg Config, notifier repository.StatusNotifier, metrics repository.Metrics, log *logger.Logger, env seriesEnv) *Reconciler {
	cfg = cfg.withDefaults()
	return &Reconciler{
		env:      env,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		frame:    sched.NewFrameGate(cfg.FrameInterval),
		dedup:    cfg.DedupWindow,
		now:      time.Now,
	}
}

// Start launches the frame flush loop.
func (r *Reconciler) Start() {
	r.frame.Start()
}

// Stop halts the flush loop and drops any pending update.
func (r *Reconciler) Stop() {
	r.frame.Stop()
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}

// Reset clears per-series state after the active key changes.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.pending = nil
	r.hasLast = false
	r.mu.Unlock()
}

// Submit accepts one live update. The pending slot is overwritten, never
// queued, so at most one frame's worth of backlog exists.
func (r *Reconciler) Submit(u models.LiveUpdate) {
	_, gen := r.env.Current()
	r.mu.Lock()
	r.pending = &u
	r.pendingGen = gen
	r.mu.Unlock()
	r.frame.Schedule(r.flush)
}

// flush applies the pending update at the frame boundary.
func (r *Reconciler) flush() {
	r.mu.Lock()
	u := r.pending
	gen := r.pendingGen
	r.pending = nil
	r.mu.Unlock()
	if u == nil {
		return
	}
	if !r.env.Active(gen) {
		r.metrics.RecordUpdateDropped("stale_result")
		return
	}
	r.apply(*u)
}

// apply classifies and applies a single update.
func (r *Reconciler) apply(u models.LiveUpdate) {
	if r.isDuplicate(u) {
		r.metrics.RecordUpdateDropped("duplicate")
		return
	}

	st, _ := r.env.Current()
	switch u.Stage {
	case models.StageSync:
		r.applySync(st, u)
	case models.StageComplete:
		r.applyComplete(st, u)
	case models.StageIncomplete:
		r.applyIncomplete(st, u)
	case models.StageTick:
		r.applyTick(st, u)
	default:
		r.metrics.RecordUpdateDropped("unknown_stage")
		return
	}

	r.mu.Lock()
	r.lastApplied = u
	r.lastAppliedAt = r.now()
	r.hasLast = true
	r.mu.Unlock()
}

// applySync merges an authoritative historical candle verbatim. Sync
// replays may land anywhere in the series, not just at the tail.
func (r *Reconciler) applySync(st *series.Store, u models.LiveUpdate) {
	if st.Merge([]models.Candle{u.Candle}) == 0 {
		r.metrics.RecordUpdateDropped("invalid")
		return
	}
	r.metrics.RecordUpdateApplied(u.Stage.String())
	r.env.Mutated(false)
}

// applyComplete stores a just-finalized candle and announces the new bar.
func (r *Reconciler) applyComplete(st *series.Store, u models.LiveUpdate) {
	res, err := st.UpdateTail(u.Candle)
	if err != nil {
		r.metrics.RecordUpdateDropped(rejectReason(err))
		return
	}
	r.metrics.RecordUpdateApplied(u.Stage.String())
	if res == series.TailAppended {
		r.notifier.NotifyNewCandle(st.Key(), u.Candle)
	}
	r.env.Mutated(res == series.TailAppended)
}

// applyIncomplete stores the in-progress current-period candle verbatim.
// No new-candle notification: the period has not ended.
func (r *Reconciler) applyIncomplete(st *series.Store, u models.LiveUpdate) {
	if _, err := st.UpdateTail(u.Candle); err != nil {
		r.metrics.RecordUpdateDropped(rejectReason(err))
		return
	}
	r.metrics.RecordUpdateApplied(u.Stage.String())
	r.env.Mutated(false)
}

// applyTick folds a bare price observation into the tail. Only Close moves;
// High/Low are owned by authoritative complete/incomplete messages.
func (r *Reconciler) applyTick(st *series.Store, u models.LiveUpdate) {
	last, ok := st.Last()
	if !ok {
		r.metrics.RecordUpdateDropped("no_tail")
		return
	}
	if u.Price <= 0 || u.Price != u.Price { // non-positive or NaN
		r.metrics.RecordUpdateDropped("invalid")
		return
	}
	if last.Age(r.now()) > time.Duration(staleTailFactor)*st.Key().Granularity.Period() {
		// The candle has rolled over on the feed side but not locally;
		// refusing the tick keeps the stale bar intact.
		r.metrics.RecordUpdateDropped("stale_tail")
		return
	}

	last.Close = u.Price
	if _, err := st.UpdateTail(last); err != nil {
		r.metrics.RecordUpdateDropped("stale_tail")
		return
	}
	r.metrics.RecordUpdateApplied(u.Stage.String())
	r.env.Mutated(false)
}

// isDuplicate reports whether u repeats the just-applied update within the
// dedup window. Two independent feeds can emit overlapping signals for the
// same bar; one application is enough.
func (r *Reconciler) isDuplicate(u models.LiveUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasLast || r.now().Sub(r.lastAppliedAt) > r.dedup {
		return false
	}
	prev := r.lastApplied
	if prev.Stage != u.Stage {
		return false
	}
	if u.Stage == models.StageTick {
		return prev.Price == u.Price
	}
	return prev.Candle.Equal(u.Candle)
}

// rejectReason maps a store rejection to its metrics label.
func rejectReason(err error) string {
	if errors.Is(err, series.ErrStaleTail) {
		return "stale_tail"
	}
	return "invalid"
}
