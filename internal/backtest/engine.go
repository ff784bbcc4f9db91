package backtest

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/strategy"
	"github.com/wonny/sweeper/pkg/logger"
)

// TradingDaysPerYear annualizes daily statistics
const TradingDaysPerYear = 252

// Engine evaluates one parameter tuple against an OHLCV series
// ⭐ SSOT: 백테스트 평가는 여기서만 (contracts.BacktestEvaluator 구현)
//
// Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log.Module("backtest")}
}

// Evaluate implements contracts.BacktestEvaluator
func (e *Engine) Evaluate(
	ctx context.Context,
	series *contracts.OHLCVSeries,
	family contracts.StrategyFamily,
	params contracts.ParameterTuple,
	cfg contracts.BacktestConfig,
) (*contracts.MetricsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if series.Len() < 2 {
		return nil, fmt.Errorf("%s: %w", series.Symbol, strategy.ErrInsufficientData)
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = contracts.DefaultBacktestConfig().InitialCapital
	}

	closes := series.Closes()
	positions, err := strategy.Signals(family, closes, params)
	if err != nil {
		return nil, err
	}

	sim := Simulate(closes, positions, cfg.InitialCapital, cfg.Commission)
	m := calculateMetrics(sim, cfg)

	e.logger.WithFields(map[string]interface{}{
		"symbol":       series.Symbol,
		"family":       string(family),
		"params":       params.String(),
		"total_return": fmt.Sprintf("%.2f%%", m.TotalReturn*100),
		"sharpe_ratio": fmt.Sprintf("%.2f", m.SharpeRatio),
		"trades":       m.TotalTrades,
		"score":        fmt.Sprintf("%.4f", m.Score),
	}).Debug("Evaluated combination")

	return m, nil
}

// calculateMetrics derives performance metrics from a simulation
func calculateMetrics(sim Simulation, cfg contracts.BacktestConfig) *contracts.MetricsRecord {
	m := &contracts.MetricsRecord{FinalEquity: cfg.InitialCapital}
	if len(sim.Curve) == 0 {
		return m
	}

	m.FinalEquity = sim.Curve[len(sim.Curve)-1]
	m.TotalReturn = m.FinalEquity/cfg.InitialCapital - 1

	// Annualized return (CAGR)
	years := float64(len(sim.Curve)-1) / TradingDaysPerYear
	if years > 0 && m.FinalEquity > 0 {
		m.AnnualizedReturn = math.Pow(m.FinalEquity/cfg.InitialCapital, 1/years) - 1
	}

	dailyReturns := make([]float64, 0, len(sim.Curve)-1)
	for i := 1; i < len(sim.Curve); i++ {
		if sim.Curve[i-1] > 0 {
			dailyReturns = append(dailyReturns, sim.Curve[i]/sim.Curve[i-1]-1)
		}
	}

	if len(dailyReturns) > 1 {
		mean, std := stat.MeanStdDev(dailyReturns, nil)
		m.Volatility = std * math.Sqrt(TradingDaysPerYear)

		// Sharpe Ratio (assuming 0% risk-free rate)
		if std > 1e-12 {
			m.SharpeRatio = mean / std * math.Sqrt(TradingDaysPerYear)
		}

		// Sortino Ratio (downside deviation against 0)
		downside := make([]float64, len(dailyReturns))
		for i, r := range dailyReturns {
			if r < 0 {
				downside[i] = r * r
			}
		}
		if dd := math.Sqrt(stat.Mean(downside, nil)); dd > 1e-12 {
			m.SortinoRatio = mean / dd * math.Sqrt(TradingDaysPerYear)
		}
	}

	m.MaxDrawdown = calculateMaxDrawdown(sim.Curve)

	m.TotalTrades = len(sim.Trades)
	for _, t := range sim.Trades {
		if t.ReturnPct() > 0 {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}

	m.Score = Score(m, cfg.MinTrades)
	return m
}

// Score ranks combinations: drawdown-penalized Sharpe.
// Fewer than minTrades round trips score 0 so idle tuples never win.
func Score(m *contracts.MetricsRecord, minTrades int) float64 {
	if m.TotalTrades < minTrades || m.TotalTrades == 0 {
		return 0
	}
	return m.SharpeRatio * (1 - m.MaxDrawdown)
}

// calculateMaxDrawdown returns the largest peak-to-trough loss as a fraction
func calculateMaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := curve[0]

	for _, equity := range curve {
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - equity) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	return maxDrawdown
}
