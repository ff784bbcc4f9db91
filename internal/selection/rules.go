package selection

import (
	"github.com/shopspring/decimal"

	"github.com/wonny/sweeper/internal/contracts"
)

// rule inspects the score-ranked group and either picks an index into it or passes
type rule struct {
	criteria contracts.SelectionCriteria
	apply    func(ranked []contracts.CandidateResult) (idx int, confidence decimal.Decimal, ok bool)
}

var hundred = decimal.NewFromInt(100)

// cascade is evaluated in order; the first matching rule wins
// ⭐ SSOT: 합의 규칙과 임계값은 여기서만
var cascade = []rule{
	{contracts.CriteriaTop3AllMatch, allMatch(3)},
	{contracts.CriteriaTop5KOf5, majority(5, 3)},
	{contracts.CriteriaTop8KOf8, majority(8, 5)},
	{contracts.CriteriaTop2BothMatch, allMatch(2)},
	{contracts.CriteriaFallback, fallback},
}

// allMatch requires the top n tuples to be identical; confidence 100
func allMatch(n int) func([]contracts.CandidateResult) (int, decimal.Decimal, bool) {
	return func(ranked []contracts.CandidateResult) (int, decimal.Decimal, bool) {
		if len(ranked) < n {
			return 0, decimal.Zero, false
		}
		first := ranked[0].Params
		for _, c := range ranked[1:n] {
			if !c.Params.Equal(first) {
				return 0, decimal.Zero, false
			}
		}
		return 0, hundred, true
	}
}

// majority requires the modal tuple of the top n to appear at least k times.
// It picks the highest-scored instance of that tuple; confidence is count/n*100.
func majority(n, k int) func([]contracts.CandidateResult) (int, decimal.Decimal, bool) {
	return func(ranked []contracts.CandidateResult) (int, decimal.Decimal, bool) {
		if len(ranked) < n {
			return 0, decimal.Zero, false
		}

		modeIdx, count := mode(ranked[:n])
		if count < k {
			return 0, decimal.Zero, false
		}

		confidence := decimal.NewFromInt(int64(count)).
			Div(decimal.NewFromInt(int64(n))).
			Mul(hundred)
		return modeIdx, confidence, true
	}
}

func fallback(ranked []contracts.CandidateResult) (int, decimal.Decimal, bool) {
	if len(ranked) == 0 {
		return 0, decimal.Zero, false
	}
	return 0, decimal.NewFromInt(25), true
}

// mode returns the first index of the most frequent tuple and its count.
// Equal counts resolve to the tuple seen first in ranked order.
func mode(top []contracts.CandidateResult) (int, int) {
	counts := make(map[string]int, len(top))
	firstIdx := make(map[string]int, len(top))
	for i, c := range top {
		key := c.Params.Key()
		if _, seen := firstIdx[key]; !seen {
			firstIdx[key] = i
		}
		counts[key]++
	}

	bestIdx, bestCount := 0, 0
	for i, c := range top {
		key := c.Params.Key()
		if firstIdx[key] != i {
			continue
		}
		if counts[key] > bestCount {
			bestIdx, bestCount = i, counts[key]
		}
	}
	return bestIdx, bestCount
}
