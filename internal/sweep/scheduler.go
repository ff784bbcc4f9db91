package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/marketdata"
	"github.com/wonny/sweeper/internal/telemetry"
	"github.com/wonny/sweeper/pkg/logger"
)

// DefaultPoolWidth is the number of batches evaluated concurrently
const DefaultPoolWidth = 4

// inlineThreshold: 이 개수 이하의 티커는 풀 없이 현재 goroutine에서 처리
const inlineThreshold = 2

var (
	// ErrNoTickers is returned when Run is called without tickers
	ErrNoTickers = errors.New("no tickers to sweep")

	// ErrAllFailed is returned with the report when no combination succeeded
	ErrAllFailed = errors.New("every combination failed")
)

// Report is the aggregate of one scheduler run. Read-only after Run returns.
// Errors counts skipped tickers; FailedCombinations counts skipped tuples of
// tickers that still produced results.
type Report struct {
	RunID              string                      `json:"run_id"`
	Family             contracts.StrategyFamily    `json:"family"`
	Results            []contracts.CandidateResult `json:"-"`
	Processed          int                         `json:"processed"`
	Total              int                         `json:"total"`
	Errors             int                         `json:"errors"`
	FailedCombinations int                         `json:"failed_combinations"`
	FailedBatches      int                         `json:"failed_batches"`
	FailedTickers      []string                    `json:"failed_tickers,omitempty"`
	Batches            int                         `json:"batches"`
	Pooled             bool                        `json:"pooled"`
	Duration           time.Duration               `json:"duration"`
}

// Succeeded returns the number of tickers that produced results
func (r *Report) Succeeded() int {
	return r.Processed - r.Errors
}

// Scheduler spreads tickers over a fixed pool of batch workers
// ⭐ SSOT: 스윕 실행 스케줄링은 여기서만
type Scheduler struct {
	gate      *marketdata.Gate
	evaluator contracts.BacktestEvaluator
	tracker   telemetry.Tracker
	logger    *logger.Logger
	poolWidth int

	// processBatch is replaced in tests to inject batch-level failures
	processBatch func(ctx context.Context, w *BatchWorker, batch []string) BatchResult
}

// NewScheduler creates a scheduler. poolWidth <= 0 uses DefaultPoolWidth.
func NewScheduler(
	gate *marketdata.Gate,
	evaluator contracts.BacktestEvaluator,
	tracker telemetry.Tracker,
	log *logger.Logger,
	poolWidth int,
) *Scheduler {
	if poolWidth <= 0 {
		poolWidth = DefaultPoolWidth
	}
	if tracker == nil {
		tracker = telemetry.Nop{}
	}
	return &Scheduler{
		gate:      gate,
		evaluator: evaluator,
		tracker:   tracker,
		logger:    log.Module("sweep"),
		poolWidth: poolWidth,
		processBatch: func(ctx context.Context, w *BatchWorker, batch []string) BatchResult {
			return w.Process(ctx, batch)
		},
	}
}

// PoolWidth returns the default width used when EvalConfig leaves it unset
func (s *Scheduler) PoolWidth() int {
	return s.poolWidth
}

// Run evaluates every tuple of cfg for every ticker of one family.
// Nothing is persisted here. The returned error is nil on partial failure,
// ErrAllFailed when no combination succeeded and ErrNoTickers for empty input.
func (s *Scheduler) Run(ctx context.Context, tickers []string, family contracts.StrategyFamily, cfg EvalConfig) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:  cfg.RunID,
		Family: family,
		Total:  len(tickers),
	}
	if len(tickers) == 0 {
		return report, ErrNoTickers
	}

	width := cfg.PoolWidth
	if width <= 0 {
		width = s.poolWidth
	}

	var batches [][]string
	if len(tickers) <= inlineThreshold {
		batches = [][]string{tickers}
	} else {
		batches = Batch(tickers, cfg.BatchSize)
		report.Pooled = true
	}
	report.Batches = len(batches)

	handle := s.tracker.Start(telemetry.RunInfo{
		RunID:     cfg.RunID,
		Family:    family,
		Tickers:   len(tickers),
		Batches:   len(batches),
		PoolWidth: width,
		Pooled:    report.Pooled,
	})

	s.logger.WithFields(map[string]interface{}{
		"run_id":     cfg.RunID,
		"family":     string(family),
		"tickers":    len(tickers),
		"tuples":     len(cfg.Tuples),
		"batches":    len(batches),
		"pool_width": width,
		"pooled":     report.Pooled,
	}).Info("Sweep started")

	worker := NewBatchWorker(s.gate, s.evaluator, family, cfg, s.logger)

	var mu sync.Mutex
	collect := func(batch []string, res BatchResult, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			// 배치 전체 실패: 배치의 모든 티커를 실패로 집계
			report.FailedBatches++
			report.Processed += len(batch)
			report.Errors += len(batch)
			report.FailedTickers = append(report.FailedTickers, batch...)
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"run_id":  cfg.RunID,
				"family":  string(family),
				"tickers": batch,
			}).Error("Batch failed")
		} else {
			report.Results = append(report.Results, res.Results...)
			report.Processed += res.Processed
			report.Errors += res.Failed
			report.FailedCombinations += res.FailedCombinations
			report.FailedTickers = append(report.FailedTickers, res.FailedTickers...)
		}

		handle.Update(telemetry.Progress{
			RunID:     cfg.RunID,
			Family:    family,
			Processed: report.Processed,
			Total:     report.Total,
			Errors:    report.Errors,
			Results:   len(report.Results),
			Timestamp: time.Now(),
		})
	}

	if !report.Pooled {
		res, err := s.runBatch(ctx, worker, batches[0])
		collect(batches[0], res, err)
	} else {
		// errgroup without context: 한 배치 실패가 다른 배치를 취소하지 않음
		var g errgroup.Group
		g.SetLimit(width)
		for _, batch := range batches {
			g.Go(func() error {
				res, err := s.runBatch(ctx, worker, batch)
				collect(batch, res, err)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Duration = time.Since(started)
	summary := handle.End()

	s.logger.WithFields(map[string]interface{}{
		"run_id":          cfg.RunID,
		"family":          string(family),
		"processed":       report.Processed,
		"errors":          report.Errors,
		"failed_combos":   report.FailedCombinations,
		"failed_batches":  report.FailedBatches,
		"results":         len(report.Results),
		"duration":        report.Duration.String(),
		"tickers_per_sec": fmt.Sprintf("%.2f", summary.TickersPerSec),
	}).Info("Sweep finished")

	if len(report.Results) == 0 {
		return report, ErrAllFailed
	}
	return report, nil
}

// runBatch converts a panic escaping the worker into a batch error
func (s *Scheduler) runBatch(ctx context.Context, w *BatchWorker, batch []string) (res BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = BatchResult{}
			err = fmt.Errorf("batch panic: %v", r)
		}
	}()
	return s.processBatch(ctx, w, batch), nil
}
