package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/sweeper/internal/contracts"
)

var (
	// ErrUnknownFamily is returned for a family outside the supported set
	ErrUnknownFamily = errors.New("unknown strategy family")

	// ErrInsufficientData means the series is shorter than the indicator warmup
	ErrInsufficientData = errors.New("insufficient data for indicator warmup")

	// ErrInvalidParams is returned for a tuple the family cannot use
	ErrInvalidParams = errors.New("invalid parameter tuple")
)

// Position values produced by Signals
const (
	Flat = 0
	Long = 1
)

// RSI thresholds
const (
	RSIOversold   = 30.0
	RSIOverbought = 70.0
)

// Validate checks that params make sense for family
func Validate(family contracts.StrategyFamily, params contracts.ParameterTuple) error {
	if params.Fast <= 0 || params.Slow <= 0 {
		return fmt.Errorf("%w: periods must be positive, got %s", ErrInvalidParams, params)
	}

	switch family {
	case contracts.FamilySMA, contracts.FamilyEMA:
		if params.Fast >= params.Slow {
			return fmt.Errorf("%w: fast %d must be below slow %d", ErrInvalidParams, params.Fast, params.Slow)
		}
	case contracts.FamilyMACD:
		if params.Fast >= params.Slow {
			return fmt.Errorf("%w: fast %d must be below slow %d", ErrInvalidParams, params.Fast, params.Slow)
		}
		if params.Signal == nil || *params.Signal <= 0 {
			return fmt.Errorf("%w: MACD needs a positive signal period", ErrInvalidParams)
		}
	case contracts.FamilyRSI:
		if params.Fast < 2 {
			return fmt.Errorf("%w: RSI period must be >= 2, got %d", ErrInvalidParams, params.Fast)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	return nil
}

// Warmup returns the first bar index at which the family emits a real signal
func Warmup(family contracts.StrategyFamily, params contracts.ParameterTuple) int {
	switch family {
	case contracts.FamilySMA, contracts.FamilyEMA:
		return params.Slow - 1
	case contracts.FamilyMACD:
		sig := 1
		if params.Signal != nil {
			sig = *params.Signal
		}
		return params.Slow - 1 + sig - 1
	case contracts.FamilyRSI:
		return maxInt(params.Fast, params.Slow-1)
	}
	return 0
}

// Signals returns a target position (Flat or Long) for every bar.
// Bars before the warmup index are always Flat.
func Signals(family contracts.StrategyFamily, closes []float64, params contracts.ParameterTuple) ([]int, error) {
	if err := Validate(family, params); err != nil {
		return nil, err
	}

	warmup := Warmup(family, params)
	if len(closes) <= warmup+1 {
		return nil, fmt.Errorf("%w: %s %s needs more than %d bars, got %d",
			ErrInsufficientData, family, params, warmup+1, len(closes))
	}

	switch family {
	case contracts.FamilySMA:
		return crossover(talib.Sma(closes, params.Fast), talib.Sma(closes, params.Slow), warmup), nil
	case contracts.FamilyEMA:
		return crossover(talib.Ema(closes, params.Fast), talib.Ema(closes, params.Slow), warmup), nil
	case contracts.FamilyMACD:
		macd, signal, _ := talib.Macd(closes, params.Fast, params.Slow, *params.Signal)
		return crossover(macd, signal, warmup), nil
	case contracts.FamilyRSI:
		return rsiReversion(closes, params, warmup), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
}

// crossover is Long while fast is strictly above slow
func crossover(fast, slow []float64, warmup int) []int {
	pos := make([]int, len(fast))
	for i := warmup; i < len(fast) && i < len(slow); i++ {
		if isNaN(fast[i]) || isNaN(slow[i]) {
			continue
		}
		if fast[i] > slow[i] {
			pos[i] = Long
		}
	}
	return pos
}

// rsiReversion enters when RSI(Fast) is oversold while close is above SMA(Slow),
// and exits when RSI is overbought or close drops below the trend filter.
func rsiReversion(closes []float64, params contracts.ParameterTuple, warmup int) []int {
	rsi := talib.Rsi(closes, params.Fast)
	var trend []float64
	if params.Slow > 1 {
		trend = talib.Sma(closes, params.Slow)
	}

	pos := make([]int, len(closes))
	holding := false
	for i := warmup; i < len(closes); i++ {
		inTrend := trend == nil || closes[i] > trend[i]
		switch {
		case isNaN(rsi[i]):
		case !holding && rsi[i] < RSIOversold && inTrend:
			holding = true
		case holding && (rsi[i] > RSIOverbought || !inTrend):
			holding = false
		}
		if holding {
			pos[i] = Long
		}
	}
	return pos
}

func isNaN(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
