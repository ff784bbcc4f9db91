package selection_test

import (
	"fmt"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/selection"
	"github.com/wonny/sweeper/pkg/logger"
)

// Example demonstrates how to pick the best tuple of one (ticker, family) group
func Example() {
	sel := selection.NewSelector(logger.Nop())

	results := []contracts.CandidateResult{
		{ID: 1, Ticker: "005930", Family: contracts.FamilySMA, Params: contracts.NewTuple(20, 50), Score: 1.42},
		{ID: 2, Ticker: "005930", Family: contracts.FamilySMA, Params: contracts.NewTuple(20, 50), Score: 1.38},
		{ID: 3, Ticker: "005930", Family: contracts.FamilySMA, Params: contracts.NewTuple(20, 50), Score: 1.35},
		{ID: 4, Ticker: "005930", Family: contracts.FamilySMA, Params: contracts.NewTuple(10, 30), Score: 0.91},
	}

	best, ok := sel.SelectBest(results, "005930", contracts.FamilySMA)
	if !ok {
		fmt.Println("no candidates")
		return
	}

	fmt.Printf("params: %s\n", best.Params)
	fmt.Printf("criteria: %s\n", best.Criteria)
	fmt.Printf("confidence: %.2f\n", best.Confidence)
	fmt.Printf("alternatives: %d\n", best.AlternativesConsidered)
	// Output:
	// params: (20,50,null)
	// criteria: top_3_all_match
	// confidence: 100.00
	// alternatives: 4
}
