package sweep

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/selection"
	"github.com/wonny/sweeper/pkg/logger"
)

// MemoryRepository is an in-process contracts.SweepRepository for tests and SWEEP_STORE=memory
type MemoryRepository struct {
	mu       sync.RWMutex
	runs     map[string]contracts.SweepRun
	results  map[string][]contracts.CandidateResult
	best     map[string]map[contracts.GroupKey]contracts.BestSelection
	nextID   int64
	selector *selection.Selector
	logger   *logger.Logger
	now      func() time.Time
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository(selector *selection.Selector, log *logger.Logger) *MemoryRepository {
	return &MemoryRepository{
		runs:     make(map[string]contracts.SweepRun),
		results:  make(map[string][]contracts.CandidateResult),
		best:     make(map[string]map[contracts.GroupKey]contracts.BestSelection),
		selector: selector,
		logger:   log.Module("sweep_repository"),
		now:      time.Now,
	}
}

// CreateRun implements contracts.SweepRepository
func (r *MemoryRepository) CreateRun(_ context.Context, run *contracts.SweepRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("create run %s: already exists", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.now()
	}
	stored := *run
	stored.Config = cloneSnapshot(run.Config)
	r.runs[run.ID] = stored
	return nil
}

// GetRun implements contracts.SweepRepository
func (r *MemoryRepository) GetRun(_ context.Context, runID string) (*contracts.SweepRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}
	run.Config = cloneSnapshot(run.Config)
	return &run, nil
}

// DeleteRun implements contracts.SweepRepository
func (r *MemoryRepository) DeleteRun(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[runID]; !ok {
		return fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}
	delete(r.runs, runID)
	delete(r.results, runID)
	delete(r.best, runID)
	return nil
}

// SaveResults implements contracts.SweepRepository
func (r *MemoryRepository) SaveResults(_ context.Context, runID string, results []contracts.CandidateResult) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[runID]; !ok {
		return 0, fmt.Errorf("save results for %s: %w", runID, contracts.ErrRunNotFound)
	}

	for i := range results {
		r.nextID++
		results[i].ID = r.nextID
		results[i].RunID = runID
		r.results[runID] = append(r.results[runID], cloneResult(results[i]))
	}
	return len(results), nil
}

// GetResults implements contracts.SweepRepository
func (r *MemoryRepository) GetResults(_ context.Context, runID string) ([]contracts.CandidateResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.runs[runID]; !ok {
		return nil, fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}
	return r.copyResults(runID), nil
}

func (r *MemoryRepository) copyResults(runID string) []contracts.CandidateResult {
	stored := r.results[runID]
	out := make([]contracts.CandidateResult, len(stored))
	for i, c := range stored {
		out[i] = cloneResult(c)
	}
	return out
}

// ComputeAndSaveBestSelections builds every selection first, then upserts them
// in one step. Like the Postgres store, records of groups that were not recomputed
// are kept and CreatedAt of existing records is preserved.
func (r *MemoryRepository) ComputeAndSaveBestSelections(_ context.Context, runID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[runID]; !ok {
		return 0, fmt.Errorf("compute best selections for %s: %w", runID, contracts.ErrRunNotFound)
	}

	selections := r.selector.SelectAll(r.copyResults(runID))
	previous := r.best[runID]
	now := r.now()

	next := make(map[contracts.GroupKey]contracts.BestSelection, len(previous)+len(selections))
	for key, b := range previous {
		next[key] = b
	}
	for _, sel := range selections {
		b := selection.ToBestSelection(runID, sel, now)
		key := contracts.GroupKey{Ticker: b.Ticker, Family: b.Family}
		if old, ok := previous[key]; ok {
			b.CreatedAt = old.CreatedAt
		}
		next[key] = b
	}
	if len(selections) > 0 {
		r.best[runID] = next
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"count":  len(selections),
	}).Info("Saved best selections")

	return len(selections), nil
}

// GetBestSelections implements contracts.SweepRepository
func (r *MemoryRepository) GetBestSelections(_ context.Context, runID string) ([]contracts.BestSelection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.runs[runID]; !ok {
		return nil, fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}

	out := make([]contracts.BestSelection, 0, len(r.best[runID]))
	for _, b := range r.best[runID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Family < out[j].Family
	})
	return out, nil
}

func cloneResult(c contracts.CandidateResult) contracts.CandidateResult {
	if c.Metrics != nil {
		m := make(contracts.Metrics, len(c.Metrics))
		for k, v := range c.Metrics {
			m[k] = v
		}
		c.Metrics = m
	}
	if c.Params.Signal != nil {
		s := *c.Params.Signal
		c.Params.Signal = &s
	}
	return c
}

func cloneSnapshot(g contracts.GridSnapshot) contracts.GridSnapshot {
	g.Tickers = append([]string(nil), g.Tickers...)
	strategies := make([]contracts.FamilyGrid, len(g.Strategies))
	for i, fg := range g.Strategies {
		fg.Fast = append([]int(nil), fg.Fast...)
		fg.Slow = append([]int(nil), fg.Slow...)
		if fg.Signal != nil {
			fg.Signal = append([]int(nil), fg.Signal...)
		}
		strategies[i] = fg
	}
	g.Strategies = strategies
	return g
}
