package sweepconfig

import (
	"fmt"
	"strings"

	"github.com/wonny/sweeper/internal/contracts"
)

// DateRange parses the configured window
func (c *Config) DateRange() (contracts.DateRange, error) {
	from, err := parseDate(c.Range.From)
	if err != nil {
		return contracts.DateRange{}, fmt.Errorf("invalid from date %q", c.Range.From)
	}
	to, err := parseDate(c.Range.To)
	if err != nil {
		return contracts.DateRange{}, fmt.Errorf("invalid to date %q", c.Range.To)
	}

	r := contracts.DateRange{From: from, To: to}
	return r, r.Validate()
}

// BacktestConfig applies the file's overrides onto the evaluator defaults
func (c *Config) BacktestConfig() contracts.BacktestConfig {
	cfg := contracts.DefaultBacktestConfig()
	if c.Backtest.InitialCapital > 0 {
		cfg.InitialCapital = c.Backtest.InitialCapital
	}
	if c.Backtest.Commission != nil {
		cfg.Commission = *c.Backtest.Commission
	}
	if c.Backtest.MinTrades != nil {
		cfg.MinTrades = *c.Backtest.MinTrades
	}
	return cfg
}

// NormalizedTickers returns the tickers trimmed and upper-cased, in file order
func (c *Config) NormalizedTickers() []string {
	out := make([]string, len(c.Tickers))
	for i, t := range c.Tickers {
		out[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	return out
}

// Grids returns the typed family grids in file order
func (c *Config) Grids() ([]contracts.FamilyGrid, error) {
	grids := make([]contracts.FamilyGrid, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		family, err := contracts.ParseFamily(s.Family)
		if err != nil {
			return nil, err
		}
		grids = append(grids, toFamilyGrid(family, s))
	}
	return grids, nil
}

// Snapshot freezes the file into the immutable run configuration
func (c *Config) Snapshot() (contracts.GridSnapshot, error) {
	r, err := c.DateRange()
	if err != nil {
		return contracts.GridSnapshot{}, err
	}
	grids, err := c.Grids()
	if err != nil {
		return contracts.GridSnapshot{}, err
	}

	return contracts.GridSnapshot{
		Tickers:    c.NormalizedTickers(),
		From:       r.From,
		To:         r.To,
		Strategies: grids,
		Backtest:   c.BacktestConfig(),
		PoolWidth:  c.Execution.PoolWidth,
		BatchSize:  c.Execution.BatchSize,
	}, nil
}

func toFamilyGrid(family contracts.StrategyFamily, s StrategyGrid) contracts.FamilyGrid {
	return contracts.FamilyGrid{
		Family: family,
		Fast:   append([]int(nil), s.Fast...),
		Slow:   append([]int(nil), s.Slow...),
		Signal: append([]int(nil), s.Signal...),
	}
}

// Expand builds the cartesian product of a family grid in input order.
// Crossover families keep only fast < slow; MACD multiplies by every signal value.
// Repeated values in the grid produce repeated tuples.
func Expand(g contracts.FamilyGrid) []contracts.ParameterTuple {
	tuples := make([]contracts.ParameterTuple, 0, len(g.Fast)*len(g.Slow))
	for _, fast := range g.Fast {
		for _, slow := range g.Slow {
			if g.Family != contracts.FamilyRSI && fast >= slow {
				continue
			}
			if !g.Family.UsesSignalPeriod() {
				tuples = append(tuples, contracts.NewTuple(fast, slow))
				continue
			}
			for _, sig := range g.Signal {
				tuples = append(tuples, contracts.NewSignalTuple(fast, slow, sig))
			}
		}
	}
	return tuples
}
