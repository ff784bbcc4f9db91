package backtest

import "github.com/wonny/sweeper/internal/strategy"

// Trade is one completed long round trip
type Trade struct {
	EntryIndex  int
	ExitIndex   int
	EntryEquity float64 // 진입 수수료 차감 전
	ExitEquity  float64 // 청산 수수료 차감 후
}

// ReturnPct is the commission-inclusive return of the trade
func (t Trade) ReturnPct() float64 {
	if t.EntryEquity == 0 {
		return 0
	}
	return t.ExitEquity/t.EntryEquity - 1
}

// Simulation is the outcome of replaying positions over closes
type Simulation struct {
	Curve           []float64 // equity at each bar close
	Trades          []Trade
	TotalCommission float64
	OpenAtEnd       bool
}

// Simulate replays a long/flat position vector.
// ⭐ SSOT: 체결 규칙은 여기서만
//
// The position decided at bar i's close earns the return from bar i to i+1.
// A commission of rate is charged on equity at every position change.
// A position still open at the last bar is marked to market and counted as a trade.
func Simulate(closes []float64, positions []int, capital, rate float64) Simulation {
	n := len(closes)
	sim := Simulation{Curve: make([]float64, n)}
	if n == 0 {
		return sim
	}

	equity := capital
	held := strategy.Flat
	var open *Trade

	for i := 0; i < n; i++ {
		if i > 0 && held == strategy.Long && closes[i-1] > 0 {
			equity *= closes[i] / closes[i-1]
		}

		want := strategy.Flat
		if i < len(positions) {
			want = positions[i]
		}

		if want != held {
			fee := equity * rate
			sim.TotalCommission += fee

			if want == strategy.Long {
				open = &Trade{EntryIndex: i, EntryEquity: equity}
				equity -= fee
			} else {
				equity -= fee
				open.ExitIndex = i
				open.ExitEquity = equity
				sim.Trades = append(sim.Trades, *open)
				open = nil
			}
			held = want
		}

		sim.Curve[i] = equity
	}

	if open != nil {
		open.ExitIndex = n - 1
		open.ExitEquity = equity
		sim.Trades = append(sim.Trades, *open)
		sim.OpenAtEnd = true
	}

	return sim
}
