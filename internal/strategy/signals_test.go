package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/internal/contracts"
)

func quadratic(n int, sign float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1000 + sign*float64(i*i)/10
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		family  contracts.StrategyFamily
		params  contracts.ParameterTuple
		wantErr error
	}{
		{"sma ok", contracts.FamilySMA, contracts.NewTuple(10, 30), nil},
		{"ema ok", contracts.FamilyEMA, contracts.NewTuple(5, 20), nil},
		{"macd ok", contracts.FamilyMACD, contracts.NewSignalTuple(12, 26, 9), nil},
		{"rsi ok", contracts.FamilyRSI, contracts.NewTuple(14, 50), nil},
		{"sma fast >= slow", contracts.FamilySMA, contracts.NewTuple(30, 30), ErrInvalidParams},
		{"macd without signal", contracts.FamilyMACD, contracts.NewTuple(12, 26), ErrInvalidParams},
		{"rsi period too short", contracts.FamilyRSI, contracts.NewTuple(1, 50), ErrInvalidParams},
		{"negative period", contracts.FamilyEMA, contracts.NewTuple(-1, 20), ErrInvalidParams},
		{"unknown family", contracts.StrategyFamily("BOLL"), contracts.NewTuple(10, 20), ErrUnknownFamily},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.family, tt.params)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWarmup(t *testing.T) {
	assert.Equal(t, 29, Warmup(contracts.FamilySMA, contracts.NewTuple(10, 30)))
	assert.Equal(t, 29, Warmup(contracts.FamilyEMA, contracts.NewTuple(10, 30)))
	assert.Equal(t, 33, Warmup(contracts.FamilyMACD, contracts.NewSignalTuple(12, 26, 9)))
	assert.Equal(t, 14, Warmup(contracts.FamilyRSI, contracts.NewTuple(14, 10)))
	assert.Equal(t, 49, Warmup(contracts.FamilyRSI, contracts.NewTuple(14, 50)))
}

func TestSignals_InsufficientData(t *testing.T) {
	_, err := Signals(contracts.FamilySMA, linear(30, 100, 1), contracts.NewTuple(10, 30))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestSignals_Crossover(t *testing.T) {
	tests := []struct {
		name     string
		family   contracts.StrategyFamily
		params   contracts.ParameterTuple
		closes   []float64
		wantLast int
	}{
		{"sma uptrend", contracts.FamilySMA, contracts.NewTuple(3, 8), linear(40, 100, 1), Long},
		{"sma downtrend", contracts.FamilySMA, contracts.NewTuple(3, 8), linear(40, 100, -1), Flat},
		{"ema uptrend", contracts.FamilyEMA, contracts.NewTuple(3, 8), linear(40, 100, 1), Long},
		{"ema downtrend", contracts.FamilyEMA, contracts.NewTuple(3, 8), linear(40, 100, -1), Flat},
		{"macd accelerating up", contracts.FamilyMACD, contracts.NewSignalTuple(5, 12, 4), quadratic(80, 1), Long},
		{"macd accelerating down", contracts.FamilyMACD, contracts.NewSignalTuple(5, 12, 4), quadratic(80, -1), Flat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := Signals(tt.family, tt.closes, tt.params)
			require.NoError(t, err)
			require.Len(t, pos, len(tt.closes))

			warmup := Warmup(tt.family, tt.params)
			for i := 0; i < warmup; i++ {
				assert.Equal(t, Flat, pos[i], "bar %d is inside warmup", i)
			}
			assert.Equal(t, tt.wantLast, pos[len(pos)-1])
		})
	}
}

func TestSignals_RSIReversion(t *testing.T) {
	// 40 bars up, three small down bars, then up again
	closes := linear(40, 100, 2)
	for i := 0; i < 3; i++ {
		closes = append(closes, closes[len(closes)-1]-1)
	}
	for i := 0; i < 10; i++ {
		closes = append(closes, closes[len(closes)-1]+2)
	}

	pos, err := Signals(contracts.FamilyRSI, closes, contracts.NewTuple(2, 10))
	require.NoError(t, err)

	for i := 0; i < 42; i++ {
		assert.Equal(t, Flat, pos[i], "no entry before the dip, bar %d", i)
	}
	assert.Equal(t, Long, pos[42], "oversold in uptrend enters")
	assert.Equal(t, Flat, pos[len(pos)-1], "overbought exits")
}

func TestSignals_RSIUptrendNeverOversold(t *testing.T) {
	pos, err := Signals(contracts.FamilyRSI, linear(60, 100, 1), contracts.NewTuple(14, 20))
	require.NoError(t, err)
	for _, p := range pos {
		assert.Equal(t, Flat, p)
	}
}
