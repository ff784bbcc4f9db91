package naver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/pkg/httputil"
	"github.com/wonny/sweeper/pkg/logger"
)

// ProviderName identifies this provider in cache keys and logs
const ProviderName = "naver"

const (
	defaultSiteURL  = "https://finance.naver.com"
	defaultChartURL = "https://fchart.stock.naver.com"
	defaultMaxPages = 60
)

// Client fetches daily OHLCV bars from Naver Finance
// ⭐ SSOT: Naver Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	siteURL    string
	chartURL   string
	maxPages   int
}

// NewClient creates a new Naver Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("naver"),
		siteURL:    defaultSiteURL,
		chartURL:   defaultChartURL,
		maxPages:   defaultMaxPages,
	}
}

// WithBaseURLs overrides the site and chart hosts (empty keeps the default)
func (c *Client) WithBaseURLs(siteURL, chartURL string) *Client {
	if siteURL != "" {
		c.siteURL = strings.TrimRight(siteURL, "/")
	}
	if chartURL != "" {
		c.chartURL = strings.TrimRight(chartURL, "/")
	}
	return c
}

// Name returns the provider name
func (c *Client) Name() string {
	return ProviderName
}

// Fetch implements contracts.MarketDataProvider.
// The chart API is tried first; the daily-price HTML pages are the fallback.
func (c *Client) Fetch(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	bars, err := c.fetchChart(ctx, symbol, r)
	if err != nil || len(bars) == 0 {
		c.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"range":  r.String(),
			"reason": describe(err),
		}).Warn("Chart API returned nothing, falling back to daily pages")

		bars, err = c.fetchDaily(ctx, symbol, r)
		if err != nil {
			return nil, fmt.Errorf("naver daily %s: %w", symbol, err)
		}
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched prices")

	return &contracts.OHLCVSeries{Symbol: symbol, Bars: bars}, nil
}

func describe(err error) string {
	if err == nil {
		return "empty"
	}
	return err.Error()
}
