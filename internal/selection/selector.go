package selection

import (
	"sort"
	"time"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/pkg/logger"
)

// Selection is the outcome of one (ticker, family) consensus decision
type Selection struct {
	Ticker                 string
	Family                 contracts.StrategyFamily
	Candidate              contracts.CandidateResult
	Params                 contracts.ParameterTuple
	Criteria               contracts.SelectionCriteria
	Confidence             float64 // 0-100, 2 decimals
	AlternativesConsidered int
}

// Selector picks one winning parameter tuple per (ticker, family) group
// ⭐ SSOT: 최적 파라미터 선택은 여기서만
//
// Selector is stateless; a single instance may be reused across runs.
type Selector struct {
	logger *logger.Logger
}

// NewSelector creates a new selector
func NewSelector(log *logger.Logger) *Selector {
	return &Selector{logger: log.Module("selection")}
}

// SelectBest runs the consensus cascade over the candidates of one group.
// Candidates of other groups are ignored. An empty group reports false.
func (s *Selector) SelectBest(results []contracts.CandidateResult, ticker string, family contracts.StrategyFamily) (*Selection, bool) {
	group := make([]contracts.CandidateResult, 0, len(results))
	for _, r := range results {
		if r.Ticker == ticker && r.Family == family {
			group = append(group, r)
		}
	}
	if len(group) == 0 {
		return nil, false
	}

	// 동점은 입력 순서 유지
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Score > group[j].Score
	})

	for _, r := range cascade {
		idx, confidence, ok := r.apply(group)
		if !ok {
			continue
		}

		chosen := group[idx]
		sel := &Selection{
			Ticker:                 ticker,
			Family:                 family,
			Candidate:              chosen,
			Params:                 chosen.Params,
			Criteria:               r.criteria,
			Confidence:             confidence.Round(2).InexactFloat64(),
			AlternativesConsidered: len(group),
		}

		s.logger.WithFields(map[string]interface{}{
			"ticker":       ticker,
			"family":       string(family),
			"criteria":     string(r.criteria),
			"confidence":   sel.Confidence,
			"params":       sel.Params.String(),
			"alternatives": sel.AlternativesConsidered,
		}).Debug("Best parameters selected")

		return sel, true
	}

	// fallback always matches a non-empty group
	return nil, false
}

// SelectAll runs SelectBest for every distinct (ticker, family) pair,
// ordered by ticker then family.
func (s *Selector) SelectAll(results []contracts.CandidateResult) []Selection {
	seen := make(map[contracts.GroupKey]struct{})
	keys := make([]contracts.GroupKey, 0)
	for _, r := range results {
		k := contracts.GroupKey{Ticker: r.Ticker, Family: r.Family}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Ticker != keys[j].Ticker {
			return keys[i].Ticker < keys[j].Ticker
		}
		return keys[i].Family < keys[j].Family
	})

	selections := make([]Selection, 0, len(keys))
	for _, k := range keys {
		if sel, ok := s.SelectBest(results, k.Ticker, k.Family); ok {
			selections = append(selections, *sel)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"results": len(results),
		"groups":  len(selections),
	}).Info("Best selections computed")

	return selections
}

// ToBestSelection converts a selection into the durable record.
// CreatedAt and UpdatedAt are both set to now; repositories keep the original CreatedAt on upsert.
func ToBestSelection(runID string, sel Selection, now time.Time) contracts.BestSelection {
	c := sel.Candidate
	return contracts.BestSelection{
		RunID:                  runID,
		Ticker:                 sel.Ticker,
		Family:                 sel.Family,
		ResultID:               c.ID,
		Algorithm:              contracts.SelectionAlgorithm,
		Criteria:               sel.Criteria,
		ConfidenceScore:        sel.Confidence,
		AlternativesConsidered: sel.AlternativesConsidered,
		Snapshot: contracts.SelectionSnapshot{
			Params:      sel.Params,
			Score:       c.Score,
			SharpeRatio: c.Metrics.Get(contracts.MetricSharpeRatio),
			TotalReturn: c.Metrics.Get(contracts.MetricTotalReturn),
			WinRate:     c.Metrics.Get(contracts.MetricWinRate),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
