package usecase

import (
	"context"
	"sync"

	"ChartSync/internal/domain/models"
	"ChartSync/internal/series"
)

const base = int64(1_700_000_000)

var testKey = models.SeriesKey{Instrument: "BTC-USD", Granularity: models.Gran1m}

func mk(t int64, close float64) models.Candle {
	return models.Candle{Time: t, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1}
}

// fakeBackfiller serves canned candles and records calls.
type fakeBackfiller struct {
	mu      sync.Mutex
	candles []models.Candle
	err     error
	calls   int
	lastReq [2]int64
}

func (f *fakeBackfiller) Fetch(_ context.Context, _ string, _ models.Granularity, start, end int64, _ int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = [2]int64{start, end}
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeBackfiller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNotifier records notifications.
type fakeNotifier struct {
	mu         sync.Mutex
	loading    int
	ready      int
	errors     int
	newCandles []models.Candle
	gapFilled  []int
	synthetic  []bool
}

func (f *fakeNotifier) NotifyLoading(models.SeriesKey, models.LoadReason) {
	f.mu.Lock()
	f.loading++
	f.mu.Unlock()
}

func (f *fakeNotifier) NotifyReady(models.SeriesKey, int) {
	f.mu.Lock()
	f.ready++
	f.mu.Unlock()
}

func (f *fakeNotifier) NotifyError(models.SeriesKey, error) {
	f.mu.Lock()
	f.errors++
	f.mu.Unlock()
}

func (f *fakeNotifier) NotifyNewCandle(_ models.SeriesKey, c models.Candle) {
	f.mu.Lock()
	f.newCandles = append(f.newCandles, c)
	f.mu.Unlock()
}

func (f *fakeNotifier) NotifyGapFilled(_ models.SeriesKey, count int, synthetic bool) {
	f.mu.Lock()
	f.gapFilled = append(f.gapFilled, count)
	f.synthetic = append(f.synthetic, synthetic)
	f.mu.Unlock()
}

// nopMetrics satisfies repository.Metrics with counters for assertions.
type nopMetrics struct {
	mu      sync.Mutex
	dropped map[string]int
}

func newNopMetrics() *nopMetrics {
	return &nopMetrics{dropped: make(map[string]int)}
}

func (m *nopMetrics) RecordUpdateApplied(string) {}

func (m *nopMetrics) RecordUpdateDropped(reason string) {
	m.mu.Lock()
	m.dropped[reason]++
	m.mu.Unlock()
}

func (m *nopMetrics) RecordResidentCandles(string, string, int) {}
func (m *nopMetrics) RecordLoadLatency(string, float64)           {}
func (m *nopMetrics) RecordGapBridged(string, int)                {}
func (m *nopMetrics) RecordError(string)                          {}

func (m *nopMetrics) droppedCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

// fakeEnv pins one store and generation.
type fakeEnv struct {
	mu        sync.Mutex
	store     *series.Store
	gen       uint64
	activeGen uint64
	mutations int
	newBars   int
}

func newFakeEnv(st *series.Store) *fakeEnv {
	return &fakeEnv{store: st}
}

func (f *fakeEnv) Current() (*series.Store, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store, f.gen
}

func (f *fakeEnv) Active(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.activeGen
}

func (f *fakeEnv) Mutated(newCandle bool) {
	f.mu.Lock()
	f.mutations++
	if newCandle {
		f.newBars++
	}
	f.mu.Unlock()
}

func (f *fakeEnv) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}
