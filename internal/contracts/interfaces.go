package contracts

import "context"

// MarketDataProvider fetches daily OHLCV series
// ⭐ 동시 호출 안전하지 않음: 반드시 marketdata.Gate 를 통해서만 호출
type MarketDataProvider interface {
	Fetch(ctx context.Context, symbol string, r DateRange) (*OHLCVSeries, error)
}

// BacktestEvaluator evaluates one parameter tuple against a series.
// Implementations must be safe for concurrent use.
type BacktestEvaluator interface {
	Evaluate(ctx context.Context, series *OHLCVSeries, family StrategyFamily, params ParameterTuple, cfg BacktestConfig) (*MetricsRecord, error)
}

// SweepRepository persists sweep runs, raw results and best selections
// ⭐ SSOT: 스윕 영속성 인터페이스
type SweepRepository interface {
	CreateRun(ctx context.Context, run *SweepRun) error
	GetRun(ctx context.Context, runID string) (*SweepRun, error)
	DeleteRun(ctx context.Context, runID string) error

	SaveResults(ctx context.Context, runID string, results []CandidateResult) (int, error)
	GetResults(ctx context.Context, runID string) ([]CandidateResult, error)

	// ComputeAndSaveBestSelections upserts one record per (run, ticker, family)
	ComputeAndSaveBestSelections(ctx context.Context, runID string) (int, error)
	GetBestSelections(ctx context.Context, runID string) ([]BestSelection, error)
}
