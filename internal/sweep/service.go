package sweep

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/strategy"
	"github.com/wonny/sweeper/internal/sweepconfig"
	"github.com/wonny/sweeper/pkg/logger"
)

// SweepRequest describes a single-family sweep
type SweepRequest struct {
	Name      string                     `json:"name"`
	Tickers   []string                   `json:"tickers"`
	Family    contracts.StrategyFamily   `json:"family"`
	Tuples    []contracts.ParameterTuple `json:"tuples"`
	Range     contracts.DateRange        `json:"range"`
	Backtest  contracts.BacktestConfig   `json:"backtest"`
	PoolWidth int                        `json:"pool_width"`
	BatchSize int                        `json:"batch_size"`
}

// Validate checks the request before a run is created
func (req SweepRequest) Validate() error {
	if len(req.Tickers) == 0 {
		return ErrNoTickers
	}
	if len(req.Tuples) == 0 {
		return fmt.Errorf("%w: no parameter tuples", strategy.ErrInvalidParams)
	}
	if err := req.Range.Validate(); err != nil {
		return err
	}
	for _, p := range req.Tuples {
		if err := strategy.Validate(req.Family, p); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot freezes the request as the run configuration
func (req SweepRequest) Snapshot() contracts.GridSnapshot {
	grid := contracts.FamilyGrid{Family: req.Family}
	for _, p := range req.Tuples {
		grid.Fast = appendUnique(grid.Fast, p.Fast)
		grid.Slow = appendUnique(grid.Slow, p.Slow)
		if p.Signal != nil {
			grid.Signal = appendUnique(grid.Signal, *p.Signal)
		}
	}
	return contracts.GridSnapshot{
		Tickers:    append([]string(nil), req.Tickers...),
		From:       req.Range.From,
		To:         req.Range.To,
		Strategies: []contracts.FamilyGrid{grid},
		Backtest:   req.Backtest,
		PoolWidth:  req.PoolWidth,
		BatchSize:  req.BatchSize,
	}
}

// Service is the exposed sweep surface used by the CLI, API and cron jobs
// ⭐ SSOT: 스윕 실행 → 결과 저장 → 최적 선택 흐름
type Service struct {
	scheduler *Scheduler
	repo      contracts.SweepRepository
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates a new sweep service
func NewService(scheduler *Scheduler, repo contracts.SweepRepository, log *logger.Logger) *Service {
	return &Service{
		scheduler: scheduler,
		repo:      repo,
		logger:    log.Module("sweep_service"),
		now:       time.Now,
	}
}

// RunSweep creates a run, evaluates the grid, saves results and computes best selections.
// The run id is returned even when evaluation fails.
func (s *Service) RunSweep(ctx context.Context, req SweepRequest) (string, *Report, error) {
	if err := req.Validate(); err != nil {
		return "", nil, err
	}

	snapshot := req.Snapshot()
	hash, err := hashSnapshot(snapshot)
	if err != nil {
		return "", nil, err
	}

	runID, err := s.createRun(ctx, req.Name, snapshot, hash)
	if err != nil {
		return "", nil, err
	}

	report, err := s.runFamily(ctx, runID, req.Family, req.Tickers, EvalConfig{
		RunID:     runID,
		Tuples:    req.Tuples,
		Range:     req.Range,
		Backtest:  req.Backtest,
		PoolWidth: req.PoolWidth,
		BatchSize: req.BatchSize,
	})
	if err != nil {
		return runID, report, err
	}

	if _, err := s.RecomputeBest(ctx, runID); err != nil {
		return runID, report, err
	}
	return runID, report, nil
}

// RunGrid sweeps every family of a grid file under one run id.
// A family where every combination failed is logged and skipped; ErrAllFailed is
// returned only when that happens for every family.
func (s *Service) RunGrid(ctx context.Context, cfg *sweepconfig.Config) (string, []*Report, error) {
	if err := sweepconfig.Validate(cfg); err != nil {
		return "", nil, err
	}

	snapshot, err := cfg.Snapshot()
	if err != nil {
		return "", nil, err
	}
	hash, err := sweepconfig.Hash(cfg)
	if err != nil {
		return "", nil, err
	}

	// 실행 전 전체 그리드 검증
	tuplesByFamily := make([][]contracts.ParameterTuple, len(snapshot.Strategies))
	for i, grid := range snapshot.Strategies {
		tuplesByFamily[i] = sweepconfig.Expand(grid)
		for _, p := range tuplesByFamily[i] {
			if err := strategy.Validate(grid.Family, p); err != nil {
				return "", nil, err
			}
		}
	}

	runID, err := s.createRun(ctx, cfg.Meta.Name, snapshot, hash)
	if err != nil {
		return "", nil, err
	}

	tickers := snapshot.Tickers
	r := contracts.DateRange{From: snapshot.From, To: snapshot.To}

	reports := make([]*Report, 0, len(snapshot.Strategies))
	succeeded := 0
	for i, grid := range snapshot.Strategies {
		tuples := tuplesByFamily[i]
		report, err := s.runFamily(ctx, runID, grid.Family, tickers, EvalConfig{
			RunID:     runID,
			Tuples:    tuples,
			Range:     r,
			Backtest:  snapshot.Backtest,
			PoolWidth: snapshot.PoolWidth,
			BatchSize: snapshot.BatchSize,
		})
		reports = append(reports, report)
		if errors.Is(err, ErrAllFailed) {
			s.logger.WithFields(map[string]interface{}{
				"run_id": runID,
				"family": string(grid.Family),
			}).Warn("Every combination failed for family")
			continue
		}
		if err != nil {
			return runID, reports, err
		}
		succeeded++
	}

	if succeeded == 0 {
		return runID, reports, ErrAllFailed
	}

	if _, err := s.RecomputeBest(ctx, runID); err != nil {
		return runID, reports, err
	}
	return runID, reports, nil
}

// runFamily runs the scheduler and persists raw results
func (s *Service) runFamily(ctx context.Context, runID string, family contracts.StrategyFamily, tickers []string, cfg EvalConfig) (*Report, error) {
	report, err := s.scheduler.Run(ctx, tickers, family, cfg)
	if err != nil {
		return report, err
	}

	if _, err := s.repo.SaveResults(ctx, runID, report.Results); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) createRun(ctx context.Context, name string, snapshot contracts.GridSnapshot, hash string) (string, error) {
	run := &contracts.SweepRun{
		ID:         uuid.NewString(),
		Name:       name,
		Config:     snapshot,
		ConfigHash: hash,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":      run.ID,
		"name":        name,
		"config_hash": hash,
	}).Info("Sweep run created")

	return run.ID, nil
}

// RecomputeBest recomputes and upserts best selections for an existing run
func (s *Service) RecomputeBest(ctx context.Context, runID string) (int, error) {
	n, err := s.repo.ComputeAndSaveBestSelections(ctx, runID)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(map[string]interface{}{
		"run_id":     runID,
		"selections": n,
	}).Info("Best selections saved")
	return n, nil
}

// GetRun returns the run record
func (s *Service) GetRun(ctx context.Context, runID string) (*contracts.SweepRun, error) {
	return s.repo.GetRun(ctx, runID)
}

// GetResults returns raw results in insertion order
func (s *Service) GetResults(ctx context.Context, runID string) ([]contracts.CandidateResult, error) {
	return s.repo.GetResults(ctx, runID)
}

// GetBestSelections returns the stored selections of a run
func (s *Service) GetBestSelections(ctx context.Context, runID string) ([]contracts.BestSelection, error) {
	return s.repo.GetBestSelections(ctx, runID)
}

// DeleteRun removes a run and everything under it
func (s *Service) DeleteRun(ctx context.Context, runID string) error {
	return s.repo.DeleteRun(ctx, runID)
}

func hashSnapshot(snapshot contracts.GridSnapshot) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func appendUnique(values []int, v int) []int {
	for _, x := range values {
		if x == v {
			return values
		}
	}
	return append(values, v)
}
