package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/pkg/logger"
)

var (
	// ErrSymbolMismatch means the provider answered for a different symbol than requested
	ErrSymbolMismatch = errors.New("provider returned series for a different symbol")

	// ErrEmptySeries means the provider returned no bars for the range
	ErrEmptySeries = errors.New("provider returned no bars")
)

// Stats is a point-in-time copy of the gate counters
type Stats struct {
	Fetches   int64         `json:"fetches"`
	Failures  int64         `json:"failures"`
	WaitTotal time.Duration `json:"wait_total"`
	HoldTotal time.Duration `json:"hold_total"`
}

// Gate serializes every market-data fetch in the process.
// ⭐ SSOT: 프로세스당 하나만 생성해서 모든 워커에 주입
//
// The underlying provider is not safe for concurrent calls, so the mutex is
// held for the whole provider call and nothing else.
type Gate struct {
	mu       sync.Mutex
	provider contracts.MarketDataProvider
	logger   *logger.Logger

	fetches  atomic.Int64
	failures atomic.Int64
	waitNs   atomic.Int64
	holdNs   atomic.Int64
}

// NewGate wraps provider
func NewGate(provider contracts.MarketDataProvider, log *logger.Logger) *Gate {
	return &Gate{
		provider: provider,
		logger:   log.Module("marketdata"),
	}
}

// Fetch implements contracts.MarketDataProvider
func (g *Gate) Fetch(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error) {
	series, err := g.locked(ctx, symbol, r)
	if err != nil {
		g.failures.Add(1)
		return nil, err
	}

	if series == nil || len(series.Bars) == 0 {
		g.failures.Add(1)
		return nil, fmt.Errorf("%s %s: %w", symbol, r.String(), ErrEmptySeries)
	}

	if series.Symbol != "" && !strings.EqualFold(series.Symbol, symbol) {
		g.failures.Add(1)
		g.logger.WithFields(map[string]interface{}{
			"requested": symbol,
			"returned":  series.Symbol,
		}).Error("Market data attributed to wrong symbol")
		return nil, fmt.Errorf("requested %s, got %s: %w", symbol, series.Symbol, ErrSymbolMismatch)
	}

	// 요청한 심볼로 고정
	series.Symbol = symbol
	return series, nil
}

// locked performs the provider call under the mutex. The deferred unlock also
// runs when the provider panics; the panic itself is left to the caller.
func (g *Gate) locked(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error) {
	waitStart := time.Now()
	g.mu.Lock()
	holdStart := time.Now()
	g.waitNs.Add(int64(holdStart.Sub(waitStart)))
	defer func() {
		g.holdNs.Add(int64(time.Since(holdStart)))
		g.mu.Unlock()
	}()

	g.fetches.Add(1)
	ok := false
	defer func() {
		if !ok {
			// panic 경로
			g.failures.Add(1)
		}
	}()

	series, err := g.provider.Fetch(ctx, symbol, r)
	ok = true
	return series, err
}

// Stats returns a snapshot of the counters
func (g *Gate) Stats() Stats {
	return Stats{
		Fetches:   g.fetches.Load(),
		Failures:  g.failures.Load(),
		WaitTotal: time.Duration(g.waitNs.Load()),
		HoldTotal: time.Duration(g.holdNs.Load()),
	}
}
