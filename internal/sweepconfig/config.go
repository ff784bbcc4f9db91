package sweepconfig

// Config is one sweep grid file
type Config struct {
	Meta       Meta           `yaml:"meta" json:"meta"`
	Tickers    []string       `yaml:"tickers" json:"tickers"`
	Range      Range          `yaml:"range" json:"range"`
	Strategies []StrategyGrid `yaml:"strategies" json:"strategies"`
	Backtest   Backtest       `yaml:"backtest" json:"backtest"`
	Execution  Execution      `yaml:"execution" json:"execution"`
	Schedule   Schedule       `yaml:"schedule" json:"schedule"`
}

// Meta 메타 정보
type Meta struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Range is the inclusive backtest window, YYYY-MM-DD
type Range struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// StrategyGrid lists the periods swept for one family.
// RSI: fast = RSI 기간, slow = 추세 필터 SMA 기간
type StrategyGrid struct {
	Family string `yaml:"family" json:"family"`
	Fast   []int  `yaml:"fast" json:"fast"`
	Slow   []int  `yaml:"slow" json:"slow"`
	Signal []int  `yaml:"signal,omitempty" json:"signal,omitempty"`
}

// Backtest overrides evaluator defaults; omitted values keep the default
type Backtest struct {
	InitialCapital float64  `yaml:"initial_capital" json:"initial_capital"`
	Commission     *float64 `yaml:"commission" json:"commission"`
	MinTrades      *int     `yaml:"min_trades" json:"min_trades"`
}

// Execution overrides the scheduler sizing; 0 keeps the default
type Execution struct {
	PoolWidth int `yaml:"pool_width" json:"pool_width"`
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// Schedule enables cron runs of this file (6-field expression with seconds)
type Schedule struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Cron    string `yaml:"cron" json:"cron"`
}
