package marketdata

import (
	"fmt"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/external/naver"
	"github.com/wonny/sweeper/internal/external/yahoo"
	"github.com/wonny/sweeper/pkg/config"
	"github.com/wonny/sweeper/pkg/httputil"
	"github.com/wonny/sweeper/pkg/logger"
	"github.com/wonny/sweeper/pkg/redis"
)

// NewProvider builds the configured provider, cache-wrapped when Redis is enabled.
// The result is NOT safe for concurrent use; wrap it in exactly one Gate.
func NewProvider(cfg *config.Config, hc *httputil.Client, rc *redis.Client, log *logger.Logger) (contracts.MarketDataProvider, error) {
	var (
		provider contracts.MarketDataProvider
		name     string
	)

	switch cfg.MarketData.Provider {
	case config.ProviderYahoo:
		provider = yahoo.NewClient(hc, log).WithBaseURL(cfg.MarketData.BaseURL)
		name = yahoo.ProviderName
	case config.ProviderNaver:
		provider = naver.NewClient(hc, log).WithBaseURLs(cfg.MarketData.BaseURL, "")
		name = naver.ProviderName
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
	}

	if rc.Enabled() {
		cache := redis.NewCache(rc, "sweeper")
		provider = NewCachedProvider(name, provider, cache, cfg.MarketData.CacheTTL, log)
	}

	return provider, nil
}
