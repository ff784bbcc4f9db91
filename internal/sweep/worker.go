package sweep

import (
	"context"
	"fmt"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/marketdata"
	"github.com/wonny/sweeper/internal/strategy"
	"github.com/wonny/sweeper/pkg/logger"
)

// EvalConfig is shared by every ticker of one scheduler run
type EvalConfig struct {
	RunID     string
	Tuples    []contracts.ParameterTuple
	Range     contracts.DateRange
	Backtest  contracts.BacktestConfig
	PoolWidth int // 0 = scheduler default
	BatchSize int // 0 = BatchSize heuristic
}

// BatchResult is the outcome of one batch.
// Failed counts tickers with no successful combination; FailedCombinations counts
// individual tuples that errored on tickers that otherwise produced results.
type BatchResult struct {
	Results            []contracts.CandidateResult
	Processed          int
	Failed             int
	FailedCombinations int
	FailedTickers      []string
}

// BatchWorker evaluates every parameter tuple for each ticker of a batch, sequentially.
// ⭐ 실패 격리: 튜플 에러는 해당 조합만, fetch 에러/패닉은 해당 티커만 건너뜀
type BatchWorker struct {
	gate      *marketdata.Gate
	evaluator contracts.BacktestEvaluator
	family    contracts.StrategyFamily
	cfg       EvalConfig
	logger    *logger.Logger
}

// NewBatchWorker creates a worker bound to one family and run configuration
func NewBatchWorker(
	gate *marketdata.Gate,
	evaluator contracts.BacktestEvaluator,
	family contracts.StrategyFamily,
	cfg EvalConfig,
	log *logger.Logger,
) *BatchWorker {
	return &BatchWorker{
		gate:      gate,
		evaluator: evaluator,
		family:    family,
		cfg:       cfg,
		logger:    log.Module("sweep_worker"),
	}
}

// Process runs the batch in order and never aborts it
func (w *BatchWorker) Process(ctx context.Context, batch []string) BatchResult {
	res := BatchResult{
		Results: make([]contracts.CandidateResult, 0, len(batch)*len(w.cfg.Tuples)),
	}

	for _, ticker := range batch {
		res.Processed++

		candidates, failedTuples, err := w.processTicker(ctx, ticker)
		if err == nil && len(candidates) == 0 {
			err = fmt.Errorf("all %d combinations failed for %s", failedTuples, ticker)
		}
		if err != nil {
			res.Failed++
			res.FailedTickers = append(res.FailedTickers, ticker)
			w.logger.WithError(err).WithFields(map[string]interface{}{
				"run_id": w.cfg.RunID,
				"ticker": ticker,
				"family": string(w.family),
			}).Warn("Ticker skipped")
			continue
		}

		res.FailedCombinations += failedTuples
		res.Results = append(res.Results, candidates...)
	}

	return res
}

// processTicker evaluates every tuple of one ticker. A tuple error is logged and
// counted; the remaining tuples still run. A fetch error or a panic drops the ticker.
func (w *BatchWorker) processTicker(ctx context.Context, ticker string) (candidates []contracts.CandidateResult, failed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			failed = 0
			err = fmt.Errorf("panic while evaluating %s: %v", ticker, r)
		}
	}()

	series, err := w.gate.Fetch(ctx, ticker, w.cfg.Range)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", ticker, err)
	}

	candidates = make([]contracts.CandidateResult, 0, len(w.cfg.Tuples))
	for _, params := range w.cfg.Tuples {
		m, err := w.evaluate(ctx, series, params)
		if err != nil {
			failed++
			w.logger.WithError(err).WithFields(map[string]interface{}{
				"run_id": w.cfg.RunID,
				"ticker": ticker,
				"family": string(w.family),
				"params": params.String(),
			}).Warn("Combination skipped")
			continue
		}

		candidates = append(candidates, toCandidate(w.cfg.RunID, ticker, w.family, params, m))
	}

	return candidates, failed, nil
}

func (w *BatchWorker) evaluate(ctx context.Context, series *contracts.OHLCVSeries, params contracts.ParameterTuple) (*contracts.MetricsRecord, error) {
	if err := strategy.Validate(w.family, params); err != nil {
		return nil, fmt.Errorf("params %s: %w", params, err)
	}

	m, err := w.evaluator.Evaluate(ctx, series, w.family, params, w.cfg.Backtest)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s %s: %w", w.family, params, err)
	}
	if m == nil {
		return nil, fmt.Errorf("evaluate %s %s: no metrics returned", w.family, params)
	}
	return m, nil
}

// toCandidate converts evaluator output into the metrics bag of a result
func toCandidate(runID, ticker string, family contracts.StrategyFamily, params contracts.ParameterTuple, m *contracts.MetricsRecord) contracts.CandidateResult {
	return contracts.CandidateResult{
		RunID:  runID,
		Ticker: ticker,
		Family: family,
		Params: params,
		Score:  m.Score,
		Metrics: contracts.Metrics{
			contracts.MetricWinRate:          m.WinRate,
			contracts.MetricTotalTrades:      float64(m.TotalTrades),
			contracts.MetricSharpeRatio:      m.SharpeRatio,
			contracts.MetricSortinoRatio:     m.SortinoRatio,
			contracts.MetricTotalReturn:      m.TotalReturn,
			contracts.MetricAnnualizedReturn: m.AnnualizedReturn,
			contracts.MetricMaxDrawdown:      m.MaxDrawdown,
			contracts.MetricVolatility:       m.Volatility,
			contracts.MetricWinningTrades:    float64(m.WinningTrades),
			contracts.MetricLosingTrades:     float64(m.LosingTrades),
			contracts.MetricFinalEquity:      m.FinalEquity,
		},
	}
}
