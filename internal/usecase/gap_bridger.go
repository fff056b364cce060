package usecase

import (
	"context"
	"fmt"
	"time"

	"ChartSync/internal/domain/models"
	"ChartSync/internal/domain/repository"
	"ChartSync/internal/series"
	"ChartSync/pkg/logger"
)

// GapBridger closes the hole between the last resident candle and now after
// a reconnect or missed messages. It first asks the backfill source for
// exactly the missing range; when nothing authoritative comes back it
// synthesizes flat bridge candles so the chart stays gapless. Synthetic
// candles are flagged and overwritten later by Merge's last-write-wins rule
// if real data arrives.
type GapBridger struct {
	backfiller repository.Backfiller
	notifier   repository.StatusNotifier
	metrics    repository.Metrics
	log        *logger.Logger
	now        func() time.Time
}

func NewGapBridger(backfiller repository.Backfiller, notifier repository.StatusNotifier, metrics repository.Metrics, log *logger.Logger) *GapBridger {
	return &GapBridger{
		backfiller: backfiller,
		notifier:   notifier,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// Bridge checks st for a gap and fills it. Returns how many candles were
// merged or synthesized.
func (b *GapBridger) Bridge(ctx context.Context, st *series.Store) (int, error) {
	last, ok := st.Last()
	if !ok {
		return 0, nil
	}

	key := st.Key()
	period := int64(key.Granularity.Period() / time.Second)
	now := b.now().Unix()
	if now-last.Time <= period {
		return 0, nil
	}

	start := last.Time + period
	end := now
	missing := int((end - start) / period)
	if missing <= 0 {
		return 0, nil
	}

	fetched, err := b.backfiller.Fetch(ctx, key.Instrument, key.Granularity, start, end, missing+1)
	if err != nil {
		b.log.Warn("gap fetch failed, falling back to bridge candles",
			logger.String("key", key.String()), logger.Error(err))
		b.metrics.RecordError("gap_fetch")
	}

	if len(fetched) > 0 {
		n := st.Merge(fetched)
		if n > 0 {
			b.notifier.NotifyGapFilled(key, n, false)
			b.metrics.RecordGapBridged("authoritative", n)
		}
		return n, nil
	}

	bridges := SynthesizeBridge(last, period, now)
	if len(bridges) == 0 {
		return 0, nil
	}
	n := st.Merge(bridges)
	if n == 0 {
		return 0, fmt.Errorf("gap bridge: no candle applied for %s", key)
	}
	b.notifier.NotifyGapFilled(key, n, true)
	b.metrics.RecordGapBridged("synthetic", n)
	b.log.Info("gap bridged with synthetic candles",
		logger.String("key", key.String()), logger.Int("count", n))
	return n, nil
}

// SynthesizeBridge builds one flat candle per whole period strictly between
// the last resident candle and now. Each has O=H=L=C equal to the last known
// close and zero volume.
func SynthesizeBridge(last models.Candle, periodSec, now int64) []models.Candle {
	var out []models.Candle
	for t := last.Time + periodSec; t+periodSec <= now; t += periodSec {
		out = append(out, models.Candle{
			Time:      t,
			Open:      last.Close,
			High:      last.Close,
			Low:       last.Close,
			Close:     last.Close,
			Volume:    0,
			Synthetic: true,
		})
	}
	return out
}
