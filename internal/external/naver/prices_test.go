package naver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/pkg/config"
	"github.com/wonny/sweeper/pkg/httputil"
	"github.com/wonny/sweeper/pkg/logger"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

const chartBody = `[['날짜', '시가', '고가', '저가', '종가', '거래량', '외국인소진율'],
["20240116", 72500, 73500, 72300, 73000, 1200000, 53.1],
["20240115", 72300, 73000, 72000, 72500, 1000000, 53.0]
]`

func testClient(siteURL, chartURL string) *Client {
	hc := httputil.New(&config.Config{MarketData: config.MarketDataConfig{Timeout: 5 * time.Second}}, logger.Nop()).DisableRetry()
	return NewClient(hc, logger.Nop()).WithBaseURLs(siteURL, chartURL)
}

func TestParsePriceJSON(t *testing.T) {
	tests := []struct {
		name    string
		rawData [][]interface{}
		want    int
	}{
		{
			name: "valid data with header",
			rawData: [][]interface{}{
				{"날짜", "시가", "고가", "저가", "종가", "거래량"},
				{"20240115", 72300.0, 73000.0, 72000.0, 72500.0, 1000000.0},
				{"20240116", 72500.0, 73500.0, 72300.0, 73000.0, 1200000.0},
			},
			want: 2,
		},
		{
			name: "valid data with string numbers",
			rawData: [][]interface{}{
				{"날짜", "시가", "고가", "저가", "종가", "거래량"},
				{"20240115", "72,300", "73000", "72000", "72500", "1000000"},
			},
			want: 1,
		},
		{
			name:    "empty data",
			rawData: [][]interface{}{},
			want:    0,
		},
		{
			name: "data with insufficient columns",
			rawData: [][]interface{}{
				{"날짜", "시가"},
				{"20240115", 72300.0, 73000.0},
			},
			want: 0,
		},
		{
			name: "zero close is dropped",
			rawData: [][]interface{}{
				{"날짜", "시가", "고가", "저가", "종가", "거래량"},
				{"20240115", 0.0, 0.0, 0.0, 0.0, 0.0},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePriceJSON(tt.rawData)
			require.Len(t, got, tt.want)
			for _, bar := range got {
				assert.False(t, bar.Date.IsZero())
				assert.Greater(t, bar.Close, 0.0)
			}
		})
	}
}

func TestParsePriceResponse(t *testing.T) {
	bars, err := parsePriceResponse(chartBody)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day("2024-01-16"), bars[0].Date)
	assert.Equal(t, 73000.0, bars[0].Close)
	assert.Equal(t, int64(1200000), bars[0].Volume)
}

func TestParsePriceRegex(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "valid regex format",
			body: `[["20240115", 72300, 73000, 72000, 72500, 1000000], ["20240116", 72500, 73500, 72300, 73000, 1200000]`,
			want: 2,
		},
		{
			name: "invalid format",
			body: `{"invalid": "json"}`,
			want: 0,
		},
		{
			name: "empty string",
			body: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, parsePriceRegex(tt.body), tt.want)
		})
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  float64
	}{
		{"float64", 123.45, 123.45},
		{"int64", int64(123), 123},
		{"int", int(123), 123},
		{"string", "123", 123},
		{"string with comma", "1,234", 1234},
		{"invalid string", "abc", 0},
		{"nil", nil, 0},
		{"empty string", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toFloat64(tt.input))
		})
	}
}

func TestFilterRange(t *testing.T) {
	bars := []contracts.Bar{
		{Date: day("2024-01-01"), Close: 1},
		{Date: day("2024-01-02"), Close: 2},
		{Date: day("2024-01-03"), Close: 3},
	}
	got := filterRange(bars, contracts.DateRange{From: day("2024-01-02"), To: day("2024-01-03")})
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Close)
}

func TestFetch_Chart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/siseJson.naver", r.URL.Path)
		assert.Equal(t, "005930", r.URL.Query().Get("symbol"))
		assert.Equal(t, "20240101", r.URL.Query().Get("startTime"))
		_, _ = w.Write([]byte(chartBody))
	}))
	defer server.Close()

	c := testClient(server.URL, server.URL)
	series, err := c.Fetch(context.Background(), "005930", contracts.DateRange{From: day("2024-01-01"), To: day("2024-01-31")})
	require.NoError(t, err)

	assert.Equal(t, "005930", series.Symbol)
	require.Equal(t, 2, series.Len())
	assert.True(t, series.Bars[0].Date.Before(series.Bars[1].Date), "bars must be ascending")
}

func TestFetch_InvalidRange(t *testing.T) {
	c := testClient("http://unused", "http://unused")
	_, err := c.Fetch(context.Background(), "005930", contracts.DateRange{From: day("2024-02-01"), To: day("2024-01-01")})
	assert.Error(t, err)
}

func TestFetch_FallsBackToDailyPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/siseJson.naver", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/item/sise_day.naver", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(dailyPage(true, "2024.01.17", "2024.01.16")))
			return
		}
		_, _ = w.Write([]byte(dailyPage(false, "2024.01.15", "2023.12.29")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(server.URL, server.URL)
	series, err := c.Fetch(context.Background(), "005930", contracts.DateRange{From: day("2024-01-01"), To: day("2024-01-16")})
	require.NoError(t, err)

	require.Equal(t, 2, series.Len())
	assert.Equal(t, day("2024-01-15"), series.Bars[0].Date)
	assert.Equal(t, day("2024-01-16"), series.Bars[1].Date)
	assert.Equal(t, 72100.0, series.Bars[1].Open)
	assert.Equal(t, int64(1500000), series.Bars[1].Volume)
}

func dailyPage(hasMore bool, dates ...string) string {
	var rows strings.Builder
	for _, d := range dates {
		rows.WriteString(`<tr><td><span>` + d + `</span></td><td>72,500</td><td>500</td>` +
			`<td>72,100</td><td>73,000</td><td>71,900</td><td>1,500,000</td></tr>`)
	}
	pager := ""
	if hasMore {
		pager = `<td class="pgRR"><a href="?page=2">맨뒤</a></td>`
	}
	return `<html><body><table class="type2"><tr><th>날짜</th></tr>` + rows.String() +
		`</table><table class="Nnavi"><tr>` + pager + `</tr></table></body></html>`
}
