package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/marketdata"
	"github.com/wonny/sweeper/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func newTracker(t *testing.T) (*PerfTracker, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	tr := NewPerfTracker(m, logger.Nop())
	tr.sample = func() float64 { return 12.5 }
	return tr, m
}

func TestPerfTracker_Lifecycle(t *testing.T) {
	tr, m := newTracker(t)
	sink := &recordingSink{}
	tr.Subscribe(sink)

	h := tr.Start(RunInfo{RunID: "r1", Family: contracts.FamilySMA, Tickers: 5, Batches: 3, Pooled: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsInFlight))

	h.Update(Progress{RunID: "r1", Family: contracts.FamilySMA, Processed: 2, Total: 5})
	h.Update(Progress{RunID: "r1", Family: contracts.FamilySMA, Processed: 4, Total: 5, Errors: 1})
	h.Update(Progress{RunID: "r1", Family: contracts.FamilySMA, Processed: 5, Total: 5, Errors: 1, Results: 4})

	s := h.End()

	assert.Equal(t, 5, s.Processed)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 4, s.Results)
	assert.Equal(t, 12.5, s.CPUPercent)
	assert.GreaterOrEqual(t, s.Duration, time.Duration(0))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsInFlight))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.TickersProcessed.WithLabelValues("SMA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickerErrors.WithLabelValues("SMA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("SMA", "partial")))

	assert.Equal(t, []string{EventStart, EventProgress, EventProgress, EventProgress, EventEnd}, sink.types())
}

func TestPerfTracker_EndTwiceRecordsOnce(t *testing.T) {
	tr, m := newTracker(t)

	h := tr.Start(RunInfo{RunID: "r2", Family: contracts.FamilyEMA, Tickers: 1})
	h.Update(Progress{Processed: 1, Total: 1})
	h.End()
	h.End()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("EMA", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsInFlight))
}

func TestPerfTracker_FailedStatus(t *testing.T) {
	tr, m := newTracker(t)

	h := tr.Start(RunInfo{RunID: "r3", Family: contracts.FamilyRSI, Tickers: 2})
	h.Update(Progress{Processed: 2, Total: 2, Errors: 2})
	h.End()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("RSI", "failed")))
}

func TestNop(t *testing.T) {
	h := Nop{}.Start(RunInfo{RunID: "r", Tickers: 3})
	h.Update(Progress{Processed: 3, Total: 3, Results: 3})

	s := h.End()
	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 3, s.Results)
	assert.Equal(t, 0.0, s.CPUPercent)
}

func TestRegisterGate(t *testing.T) {
	provider := fetchFunc(func(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error) {
		return &contracts.OHLCVSeries{Bars: []contracts.Bar{{Close: 1}}}, nil
	})
	gate := marketdata.NewGate(provider, logger.Nop())

	reg := prometheus.NewRegistry()
	RegisterGate(reg, gate)

	_, err := gate.Fetch(context.Background(), "T", contracts.DateRange{})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "sweeper_gate_fetches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type fetchFunc func(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error)

func (f fetchFunc) Fetch(ctx context.Context, symbol string, r contracts.DateRange) (*contracts.OHLCVSeries, error) {
	return f(ctx, symbol, r)
}
