package contracts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrRunNotFound is returned by repositories when a sweep run does not exist
var ErrRunNotFound = errors.New("sweep run not found")

// StrategyFamily identifies a closed set of signal generators
// ⭐ SSOT: 전략 패밀리 목록은 여기서만 정의
type StrategyFamily string

const (
	FamilySMA  StrategyFamily = "SMA"
	FamilyEMA  StrategyFamily = "EMA"
	FamilyMACD StrategyFamily = "MACD"
	FamilyRSI  StrategyFamily = "RSI"
)

// Families returns every supported family in a fixed order
func Families() []StrategyFamily {
	return []StrategyFamily{FamilySMA, FamilyEMA, FamilyMACD, FamilyRSI}
}

// ParseFamily converts a user supplied name (case-insensitive) into a StrategyFamily
func ParseFamily(s string) (StrategyFamily, error) {
	switch StrategyFamily(strings.ToUpper(strings.TrimSpace(s))) {
	case FamilySMA:
		return FamilySMA, nil
	case FamilyEMA:
		return FamilyEMA, nil
	case FamilyMACD:
		return FamilyMACD, nil
	case FamilyRSI:
		return FamilyRSI, nil
	}
	return "", fmt.Errorf("unknown strategy family %q", s)
}

// UsesSignalPeriod reports whether the family consumes the third period
func (f StrategyFamily) UsesSignalPeriod() bool {
	return f == FamilyMACD
}

// ParameterTuple is one (fast, slow, signal) combination of a grid
type ParameterTuple struct {
	Fast   int  `json:"fast_period"`
	Slow   int  `json:"slow_period"`
	Signal *int `json:"signal_period"`
}

// NewTuple builds a tuple without a signal period
func NewTuple(fast, slow int) ParameterTuple {
	return ParameterTuple{Fast: fast, Slow: slow}
}

// NewSignalTuple builds a tuple with a signal period
func NewSignalTuple(fast, slow, signal int) ParameterTuple {
	s := signal
	return ParameterTuple{Fast: fast, Slow: slow, Signal: &s}
}

// Key returns a canonical comparable form, e.g. "20/50/-" or "12/26/9"
func (p ParameterTuple) Key() string {
	sig := "-"
	if p.Signal != nil {
		sig = strconv.Itoa(*p.Signal)
	}
	return strconv.Itoa(p.Fast) + "/" + strconv.Itoa(p.Slow) + "/" + sig
}

// Equal compares by value; two nil signal periods are equal
func (p ParameterTuple) Equal(o ParameterTuple) bool {
	return p.Key() == o.Key()
}

func (p ParameterTuple) String() string {
	if p.Signal == nil {
		return fmt.Sprintf("(%d,%d,null)", p.Fast, p.Slow)
	}
	return fmt.Sprintf("(%d,%d,%d)", p.Fast, p.Slow, *p.Signal)
}

// Well-known metric keys
const (
	MetricWinRate          = "win_rate"
	MetricTotalTrades      = "total_trades"
	MetricSharpeRatio      = "sharpe_ratio"
	MetricSortinoRatio     = "sortino_ratio"
	MetricTotalReturn      = "total_return"
	MetricAnnualizedReturn = "annualized_return"
	MetricMaxDrawdown      = "max_drawdown"
	MetricVolatility       = "volatility"
	MetricWinningTrades    = "winning_trades"
	MetricLosingTrades     = "losing_trades"
	MetricFinalEquity      = "final_equity"
)

// Metrics is the opaque metrics bag of one evaluated combination
type Metrics map[string]float64

// Get returns the metric or 0 when absent
func (m Metrics) Get(key string) float64 {
	if m == nil {
		return 0
	}
	return m[key]
}

// SweepRun identifies one sweep execution
// ⭐ SSOT: 생성 후 변경 불가
type SweepRun struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Config     GridSnapshot `json:"config"`
	ConfigHash string       `json:"config_hash"`
	CreatedAt  time.Time    `json:"created_at"`
}

// GridSnapshot is the immutable parameter-grid configuration that produced a run
type GridSnapshot struct {
	Tickers    []string       `json:"tickers"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Strategies []FamilyGrid   `json:"strategies"`
	Backtest   BacktestConfig `json:"backtest"`
	PoolWidth  int            `json:"pool_width"`
	BatchSize  int            `json:"batch_size"`
}

// FamilyGrid lists the period values swept for one family
type FamilyGrid struct {
	Family StrategyFamily `json:"family"`
	Fast   []int          `json:"fast"`
	Slow   []int          `json:"slow"`
	Signal []int          `json:"signal,omitempty"`
}

// CandidateResult is one evaluated combination
type CandidateResult struct {
	ID      int64          `json:"id"`
	RunID   string         `json:"run_id"`
	Ticker  string         `json:"ticker"`
	Family  StrategyFamily `json:"strategy_family"`
	Params  ParameterTuple `json:"params"`
	Score   float64        `json:"score"`
	Metrics Metrics        `json:"metrics"`
}

// SelectionCriteria names the consensus rule that picked a winner
type SelectionCriteria string

const (
	CriteriaTop3AllMatch  SelectionCriteria = "top_3_all_match"
	CriteriaTop5KOf5      SelectionCriteria = "top_5_k_of_5"
	CriteriaTop8KOf8      SelectionCriteria = "top_8_k_of_8"
	CriteriaTop2BothMatch SelectionCriteria = "top_2_both_match"
	CriteriaFallback      SelectionCriteria = "highest_score_fallback"
)

// SelectionAlgorithm is recorded on every BestSelection
const SelectionAlgorithm = "parameter_consistency"

// SelectionSnapshot freezes the winner's tuple and headline metrics at selection time
type SelectionSnapshot struct {
	Params      ParameterTuple `json:"params"`
	Score       float64        `json:"score"`
	SharpeRatio float64        `json:"sharpe_ratio"`
	TotalReturn float64        `json:"total_return"`
	WinRate     float64        `json:"win_rate"`
}

// BestSelection is the durable record of one (run, ticker, family) decision
type BestSelection struct {
	RunID                  string            `json:"run_id"`
	Ticker                 string            `json:"ticker"`
	Family                 StrategyFamily    `json:"strategy_family"`
	ResultID               int64             `json:"result_id"`
	Algorithm              string            `json:"selection_algorithm"`
	Criteria               SelectionCriteria `json:"selection_criteria"`
	ConfidenceScore        float64           `json:"confidence_score"`
	AlternativesConsidered int               `json:"alternatives_considered"`
	Snapshot               SelectionSnapshot `json:"snapshot"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// GroupKey identifies a (ticker, family) group
type GroupKey struct {
	Ticker string
	Family StrategyFamily
}
