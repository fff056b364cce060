package repository

import (
	"context"

	"ChartSync/internal/domain/models"
)

// Backfiller fetches historical candles from an authoritative source. It may
// return fewer candles than the range implies; payloads are untrusted and
// re-validated by the store.
type Backfiller interface {
	Fetch(ctx context.Context, instrument string, g models.Granularity, start, end int64, limit int) ([]models.Candle, error)
}

// LiveFeed delivers tagged candle/tick updates for one (instrument,
// granularity) subscription. onReconnect fires after the transport recovers
// from a disconnect so a gap check can run. The returned func cancels the
// subscription.
type LiveFeed interface {
	Subscribe(ctx context.Context, instrument string, g models.Granularity, onUpdate func(models.LiveUpdate), onReconnect func()) (func(), error)
}

// StatusNotifier receives one-way lifecycle notifications. Implementations
// must not block the caller; nothing is returned to the core.
type StatusNotifier interface {
	NotifyLoading(key models.SeriesKey, reason models.LoadReason)
	NotifyReady(key models.SeriesKey, count int)
	NotifyError(key models.SeriesKey, err error)
	NotifyNewCandle(key models.SeriesKey, c models.Candle)
	NotifyGapFilled(key models.SeriesKey, count int, synthetic bool)
}

// Metrics abstracts the metrics backend.
type Metrics interface {
	RecordUpdateApplied(stage string)
	RecordUpdateDropped(reason string)
	RecordResidentCandles(instrument, granularity string, n int)
	RecordLoadLatency(reason string, seconds float64)
	RecordGapBridged(mode string, n int)
	RecordError(kind string)
}
