package contracts

import (
	"fmt"
	"time"
)

// DateRange is an inclusive [From, To] daily range
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate checks that the range is ordered and non-zero
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("date range requires both from and to")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("date range end %s is before start %s",
			r.To.Format("2006-01-02"), r.From.Format("2006-01-02"))
	}
	return nil
}

func (r DateRange) String() string {
	return r.From.Format("2006-01-02") + "~" + r.To.Format("2006-01-02")
}

// Bar is one daily OHLCV bar
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// OHLCVSeries is a symbol's bars in ascending date order
type OHLCVSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars
func (s *OHLCVSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes returns closing prices in bar order
func (s *OHLCVSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// BacktestConfig holds evaluator settings shared by every combination of a sweep
type BacktestConfig struct {
	InitialCapital float64 `json:"initial_capital"`
	Commission     float64 `json:"commission"` // per-side rate, e.g. 0.0015
	MinTrades      int     `json:"min_trades"` // fewer trades scores 0
}

// DefaultBacktestConfig returns the defaults used when a grid omits them
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital: 100_000,
		Commission:     0.0015,
		MinTrades:      3,
	}
}

// MetricsRecord is the raw output of the backtest evaluator
type MetricsRecord struct {
	TotalReturn      float64
	AnnualizedReturn float64
	Volatility       float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	WinRate          float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	FinalEquity      float64
	Score            float64
}
