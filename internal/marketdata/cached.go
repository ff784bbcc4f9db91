package marketdata

import (
	"context"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/pkg/logger"
	"github.com/wonny/sweeper/pkg/redis"
)

// CachedProvider decorates a provider with the Redis series cache.
// It sits inside the Gate, so cache lookups are serialized too.
type CachedProvider struct {
	name  string
	inner contracts.MarketDataProvider
	cache *redis.Cache
	ttl   time.Duration
	now   func() time.Time

	logger *logger.Logger
}

// NewCachedProvider wraps inner. name goes into the cache key.
func NewCachedProvider(name string, inner contracts.MarketDataProvider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedProvider{
		name:   name,
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		logger: log.Module("marketdata.cache"),
	}
}

// Fetch implements contracts.MarketDataProvider
func (p *CachedProvider) Fetch(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error) {
	key := redis.SeriesKey(p.name, symbol, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))

	var cached contracts.OHLCVSeries
	found, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Series cache read failed")
	}
	if found && len(cached.Bars) > 0 {
		return &cached, nil
	}

	series, err := p.inner.Fetch(ctx, symbol, r)
	if err != nil {
		return nil, err
	}

	if series != nil && len(series.Bars) > 0 {
		if err := p.cache.Set(ctx, key, series, p.ttlFor(r)); err != nil {
			p.logger.WithError(err).WithField("key", key).Warn("Series cache write failed")
		}
	}

	return series, nil
}

// ttlFor shortens the TTL when the range reaches today (the last bar can still change)
func (p *CachedProvider) ttlFor(r contracts.DateRange) time.Duration {
	today := p.now().UTC().Truncate(24 * time.Hour)
	if !r.To.Before(today) && p.ttl > redis.TTLShort {
		return redis.TTLShort
	}
	return p.ttl
}
