package naver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/sweeper/internal/contracts"
)

var dailyDateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// fetchDaily walks the sise_day pages (newest first) until the range is covered
func (c *Client) fetchDaily(ctx context.Context, symbol string, r contracts.DateRange) ([]contracts.Bar, error) {
	var all []contracts.Bar
	noDataPages := 0

	for page := 1; page <= c.maxPages; page++ {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		url := fmt.Sprintf("%s/item/sise_day.naver?code=%s&page=%d", c.siteURL, symbol, page)
		body, err := c.httpClient.GetBytes(ctx, url)
		if err != nil {
			return all, fmt.Errorf("daily page %d: %w", page, err)
		}

		bars, lastDate, hasMore := parseDailyHTML(string(body), r)
		all = append(all, bars...)

		// 기준일보다 이전 데이터면 종료
		if !lastDate.IsZero() && lastDate.Before(r.From) {
			break
		}
		if !hasMore {
			break
		}

		if lastDate.IsZero() {
			noDataPages++
			if noDataPages >= 3 {
				break
			}
		} else {
			noDataPages = 0
		}
	}

	return all, nil
}

// parseDailyHTML parses one sise_day page.
// 컬럼: 날짜 | 종가 | 전일비 | 시가 | 고가 | 저가 | 거래량
func parseDailyHTML(html string, r contracts.DateRange) ([]contracts.Bar, time.Time, bool) {
	var bars []contracts.Bar
	var lastDate time.Time

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return bars, lastDate, false
	}

	doc.Find("table.type2").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !dailyDateRe.MatchString(dateText) {
			return
		}
		tradeDate, err := time.Parse("2006.01.02", dateText)
		if err != nil {
			return
		}
		lastDate = tradeDate

		if tradeDate.Before(r.From) || tradeDate.After(r.To) {
			return
		}

		bar := contracts.Bar{
			Date:   tradeDate,
			Close:  parseNum(cells.Eq(1).Text()),
			Open:   parseNum(cells.Eq(3).Text()),
			High:   parseNum(cells.Eq(4).Text()),
			Low:    parseNum(cells.Eq(5).Text()),
			Volume: int64(parseNum(cells.Eq(6).Text())),
		}
		if bar.Close <= 0 {
			return
		}
		bars = append(bars, bar)
	})

	hasMore := doc.Find(".pgRR").Length() > 0
	return bars, lastDate, hasMore
}

func parseNum(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseFloat(s, 64)
	return n
}
