package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/pkg/httputil"
	"github.com/wonny/sweeper/pkg/logger"
)

// ProviderName identifies this provider in cache keys and logs
const ProviderName = "yahoo"

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client reads daily bars from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("yahoo"),
		baseURL:    defaultBaseURL,
	}
}

// WithBaseURL overrides the API host
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Name returns the provider name
func (c *Client) Name() string {
	return ProviderName
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements contracts.MarketDataProvider.
// The returned symbol is what the API reports, so a mismatch reaches the gate.
func (c *Client) Fetch(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", fmt.Sprintf("%d", r.From.Unix()))
	// period2 는 배타적이라 하루를 더함
	params.Set("period2", fmt.Sprintf("%d", r.To.AddDate(0, 0, 1).Unix()))
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", symbol, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	series := &contracts.OHLCVSeries{Symbol: symbol}
	if len(resp.Chart.Result) == 0 {
		c.logger.WithField("symbol", symbol).Warn("No historical data returned")
		return series, nil
	}

	result := resp.Chart.Result[0]
	if result.Meta.Symbol != "" {
		series.Symbol = result.Meta.Symbol
	}
	if len(result.Indicators.Quote) == 0 {
		c.logger.WithField("symbol", symbol).Warn("No quote data in response")
		return series, nil
	}

	series.Bars = buildBars(result.Timestamp, result.Indicators.Quote[0].Open, result.Indicators.Quote[0].High,
		result.Indicators.Quote[0].Low, result.Indicators.Quote[0].Close, result.Indicators.Quote[0].Volume, r)

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"range":  r.String(),
		"count":  len(series.Bars),
	}).Debug("Fetched historical prices")

	return series, nil
}

// buildBars zips the column arrays, skipping rows with a null close
func buildBars(ts []int64, open, high, low, closes []*float64, volume []*int64, r contracts.DateRange) []contracts.Bar {
	bars := make([]contracts.Bar, 0, len(ts))
	for i, sec := range ts {
		closeVal := at(closes, i)
		if closeVal == nil || *closeVal <= 0 {
			continue
		}

		date := time.Unix(sec, 0).UTC().Truncate(24 * time.Hour)
		if date.Before(r.From) || date.After(r.To) {
			continue
		}

		bar := contracts.Bar{
			Date:  date,
			Close: *closeVal,
			Open:  valueOr(at(open, i), *closeVal),
			High:  valueOr(at(high, i), *closeVal),
			Low:   valueOr(at(low, i), *closeVal),
		}
		if i < len(volume) && volume[i] != nil {
			bar.Volume = *volume[i]
		}
		bars = append(bars, bar)
	}
	return bars
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
