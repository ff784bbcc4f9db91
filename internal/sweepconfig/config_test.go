package sweepconfig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/internal/contracts"
)

const validYAML = `
meta:
  name: test
tickers: ["aapl", "MSFT"]
range:
  from: "2023-01-02"
  to: "2023-12-29"
strategies:
  - family: sma
    fast: [5, 20]
    slow: [20, 50]
  - family: MACD
    fast: [12]
    slow: [26]
    signal: [9, 5]
backtest:
  commission: 0
  min_trades: 1
execution:
  pool_width: 2
`

func TestLoadSampleFile(t *testing.T) {
	cfg, raw, err := Load("../../config/sweeps/korea_large_cap.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "korea_large_cap", cfg.Meta.Name)
	assert.Len(t, cfg.Tickers, 5)
	assert.True(t, cfg.Schedule.Enabled)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, err := Hash(cfg)
	require.NoError(t, err)
	assert.Equal(t, hash, hash2)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.NormalizedTickers())

	bt := cfg.BacktestConfig()
	assert.Equal(t, contracts.DefaultBacktestConfig().InitialCapital, bt.InitialCapital)
	assert.Zero(t, bt.Commission)
	assert.Equal(t, 1, bt.MinTrades)

	snap, err := cfg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.PoolWidth)
	require.Len(t, snap.Strategies, 2)
	assert.Equal(t, contracts.FamilySMA, snap.Strategies[0].Family)
	assert.Equal(t, contracts.FamilyMACD, snap.Strategies[1].Family)
	assert.Equal(t, "2023-01-02", snap.From.Format("2006-01-02"))
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte(validYAML + "\nextra_field: 1\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Parse([]byte(validYAML))
		require.NoError(t, err)
		return cfg
	}
	commission := 0.1
	negative := -1

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"no tickers", func(c *Config) { c.Tickers = nil }, "tickers"},
		{"blank ticker", func(c *Config) { c.Tickers = []string{"AAPL", " "} }, "tickers[1]"},
		{"duplicate ticker", func(c *Config) { c.Tickers = []string{"AAPL", "aapl"} }, "tickers[1]"},
		{"bad from", func(c *Config) { c.Range.From = "2023/01/02" }, "range"},
		{"reversed range", func(c *Config) { c.Range.From, c.Range.To = c.Range.To, c.Range.From }, "range"},
		{"no strategies", func(c *Config) { c.Strategies = nil }, "strategies"},
		{"unknown family", func(c *Config) { c.Strategies[0].Family = "ATR" }, "strategies[0].family"},
		{"repeated family", func(c *Config) { c.Strategies[1].Family = "SMA" }, "strategies[1].family"},
		{"zero period", func(c *Config) { c.Strategies[0].Fast = []int{0} }, "strategies[0].fast"},
		{"empty slow", func(c *Config) { c.Strategies[0].Slow = nil }, "strategies[0].slow"},
		{"macd without signal", func(c *Config) { c.Strategies[1].Signal = nil }, "strategies[1].signal"},
		{"sma with signal", func(c *Config) { c.Strategies[0].Signal = []int{9} }, "strategies[0].signal"},
		{"no valid pair", func(c *Config) { c.Strategies[0].Fast = []int{50}; c.Strategies[0].Slow = []int{20} }, "strategies[0]"},
		{"commission too high", func(c *Config) { c.Backtest.Commission = &commission }, "backtest.commission"},
		{"negative min trades", func(c *Config) { c.Backtest.MinTrades = &negative }, "backtest.min_trades"},
		{"negative pool", func(c *Config) { c.Execution.PoolWidth = -1 }, "execution.pool_width"},
		{"bad cron", func(c *Config) { c.Schedule = Schedule{Enabled: true, Cron: "every day"} }, "schedule.cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("disabled schedule ignores cron", func(t *testing.T) {
		cfg := base()
		cfg.Schedule = Schedule{Enabled: false, Cron: "garbage"}
		assert.NoError(t, Validate(cfg))
	})
}

func TestExpand(t *testing.T) {
	t.Run("crossover keeps fast below slow", func(t *testing.T) {
		got := Expand(contracts.FamilyGrid{
			Family: contracts.FamilySMA,
			Fast:   []int{5, 20},
			Slow:   []int{20, 50},
		})
		keys := tupleKeys(got)
		assert.Equal(t, []string{"5/20/-", "5/50/-", "20/50/-"}, keys)
	})

	t.Run("macd multiplies by signal in input order", func(t *testing.T) {
		got := Expand(contracts.FamilyGrid{
			Family: contracts.FamilyMACD,
			Fast:   []int{12},
			Slow:   []int{26},
			Signal: []int{9, 5},
		})
		assert.Equal(t, []string{"12/26/9", "12/26/5"}, tupleKeys(got))
	})

	t.Run("rsi takes every pair", func(t *testing.T) {
		got := Expand(contracts.FamilyGrid{
			Family: contracts.FamilyRSI,
			Fast:   []int{14, 70},
			Slow:   []int{50},
		})
		assert.Equal(t, []string{"14/50/-", "70/50/-"}, tupleKeys(got))
	})

	t.Run("duplicates preserved", func(t *testing.T) {
		got := Expand(contracts.FamilyGrid{
			Family: contracts.FamilyEMA,
			Fast:   []int{10, 10},
			Slow:   []int{30},
		})
		assert.Equal(t, []string{"10/30/-", "10/30/-"}, tupleKeys(got))
	})
}

func tupleKeys(tuples []contracts.ParameterTuple) []string {
	keys := make([]string, len(tuples))
	for i, p := range tuples {
		keys[i] = p.Key()
	}
	return keys
}
