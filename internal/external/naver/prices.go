package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
)

var chartRowRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*(\d+)`)

// fetchChart reads the fchart siseJson endpoint
// ⭐ SSOT: Naver 차트 API 호출은 이 함수에서만
func (c *Client) fetchChart(ctx context.Context, symbol string, r contracts.DateRange) ([]contracts.Bar, error) {
	fullURL := fmt.Sprintf(
		"%s/siseJson.naver?symbol=%s&requestType=1&startTime=%s&endTime=%s&timeframe=day",
		c.chartURL, symbol, r.From.Format("20060102"), r.To.Format("20060102"),
	)

	body, err := c.httpClient.GetBytes(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}

	bars, err := parsePriceResponse(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse chart response failed: %w", err)
	}

	return filterRange(bars, r), nil
}

// parsePriceResponse parses the single-quoted pseudo JSON the chart API returns
func parsePriceResponse(body string) ([]contracts.Bar, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return parsePriceJSON(rawData), nil
	}

	// JSON 파싱 실패 시 정규식으로 재시도
	return parsePriceRegex(body), nil
}

// parsePriceJSON parses the array rows; the first row is the header
func parsePriceJSON(rawData [][]interface{}) []contracts.Bar {
	var bars []contracts.Bar
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		tradeDate, err := time.Parse("20060102", strings.TrimSpace(dateStr))
		if err != nil {
			continue
		}

		bar := contracts.Bar{
			Date:   tradeDate,
			Open:   toFloat64(row[1]),
			High:   toFloat64(row[2]),
			Low:    toFloat64(row[3]),
			Close:  toFloat64(row[4]),
			Volume: int64(toFloat64(row[5])),
		}
		if bar.Close <= 0 {
			continue
		}
		bars = append(bars, bar)
	}
	return bars
}

// parsePriceRegex extracts rows when the body is not valid JSON
func parsePriceRegex(body string) []contracts.Bar {
	var bars []contracts.Bar
	for _, match := range chartRowRe.FindAllStringSubmatch(body, -1) {
		tradeDate, err := time.Parse("20060102", match[1])
		if err != nil {
			continue
		}

		open, _ := strconv.ParseFloat(match[2], 64)
		high, _ := strconv.ParseFloat(match[3], 64)
		low, _ := strconv.ParseFloat(match[4], 64)
		closePrice, _ := strconv.ParseFloat(match[5], 64)
		volume, _ := strconv.ParseInt(match[6], 10, 64)

		bars = append(bars, contracts.Bar{
			Date:   tradeDate,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return bars
}

// filterRange keeps bars inside the inclusive range
func filterRange(bars []contracts.Bar, r contracts.DateRange) []contracts.Bar {
	out := bars[:0]
	for _, b := range bars {
		if b.Date.Before(r.From) || b.Date.After(r.To) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// toFloat64 converts the loosely typed cells of the chart rows
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		n, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", ""), 64)
		return n
	default:
		return 0
	}
}
