package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/telemetry"
)

var errFakeEvaluator = errors.New("fake evaluator failure")

// fakeProvider returns a synthetic rising series and tracks concurrent calls
type fakeProvider struct {
	failOn map[string]bool
	delay  time.Duration

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (p *fakeProvider) Fetch(_ context.Context, symbol string, _ contracts.DateRange) (*contracts.OHLCVSeries, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		cur := p.maxInFlight.Load()
		if n <= cur || p.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	if p.failOn[symbol] {
		return nil, fmt.Errorf("no data for %s", symbol)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, 60)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return &contracts.OHLCVSeries{Symbol: symbol, Bars: bars}, nil
}

// fakeEvaluator scores by fast/slow ratio; fails or panics for configured tickers
type fakeEvaluator struct {
	failOn  map[string]bool
	panicOn map[string]bool
}

func (e *fakeEvaluator) Evaluate(_ context.Context, series *contracts.OHLCVSeries, _ contracts.StrategyFamily, params contracts.ParameterTuple, _ contracts.BacktestConfig) (*contracts.MetricsRecord, error) {
	if e.panicOn[series.Symbol] {
		panic("evaluator exploded on " + series.Symbol)
	}
	if e.failOn[series.Symbol] {
		return nil, errFakeEvaluator
	}
	score := float64(params.Fast) / float64(params.Slow)
	return &contracts.MetricsRecord{
		Score:       score,
		SharpeRatio: score * 2,
		TotalReturn: 0.1,
		WinRate:     0.5,
		TotalTrades: 4,
	}, nil
}

// recordingTracker keeps every progress update
type recordingTracker struct {
	mu      sync.Mutex
	infos   []telemetry.RunInfo
	updates []telemetry.Progress
	ended   int
}

func (t *recordingTracker) Start(info telemetry.RunInfo) telemetry.RunHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.infos = append(t.infos, info)
	return &recordingHandle{tracker: t}
}

type recordingHandle struct {
	tracker *recordingTracker
}

func (h *recordingHandle) Update(p telemetry.Progress) {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()
	h.tracker.updates = append(h.tracker.updates, p)
}

func (h *recordingHandle) End() telemetry.Summary {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()
	h.tracker.ended++
	return telemetry.Summary{}
}

func tickers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("T%02d", i)
	}
	return out
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func testRange() contracts.DateRange {
	return contracts.DateRange{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}
