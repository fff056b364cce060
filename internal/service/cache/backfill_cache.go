package cache

import (
	"context"
	"fmt"
	"time"

	"ChartSync/internal/domain/models"
	drepo "ChartSync/internal/domain/repository"
	pkgcache "ChartSync/pkg/cache"
	applogger "ChartSync/pkg/logger"
)

// CachedBackfiller decorates a Backfiller with a shared range cache. Repeat
// requests for the same historical range are served from the cache while the
// TTL holds; errors on the cache path degrade to the underlying source.
type CachedBackfiller struct {
	next  drepo.Backfiller
	cache pkgcache.Service
	ttl   time.Duration
	log   *applogger.Logger
}

// NewCachedBackfiller wraps next with a range cache.
func NewCachedBackfiller(next drepo.Backfiller, cache pkgcache.Service, ttl time.Duration, log *applogger.Logger) drepo.Backfiller {
	return &CachedBackfiller{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func (b *CachedBackfiller) Fetch(ctx context.Context, instrument string, g models.Granularity, start, end int64, limit int) ([]models.Candle, error) {
	key := rangeKey(instrument, g, start, end, limit)

	var cached []models.Candle
	err := b.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if err != pkgcache.ErrCacheMiss {
		b.log.Warn("range cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	candles, err := b.next.Fetch(ctx, instrument, g, start, end, limit)
	if err != nil {
		return nil, err
	}

	if len(candles) > 0 {
		if err := b.cache.Set(ctx, key, candles, b.ttl); err != nil {
			b.log.Warn("range cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return candles, nil
}

func rangeKey(instrument string, g models.Granularity, start, end int64, limit int) string {
	return fmt.Sprintf("bf:%s:%s:%d:%d:%d", instrument, g, start, end, limit)
}
