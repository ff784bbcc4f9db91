package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/wonny/sweeper/pkg/logger"
)

// Event types delivered to sinks
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventEnd      = "end"
)

// Event is what sinks receive
type Event struct {
	Type     string    `json:"type"`
	Info     *RunInfo  `json:"info,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
	Summary  *Summary  `json:"summary,omitempty"`
}

// Sink receives run events (e.g. the websocket hub). Publish must not block.
type Sink interface {
	Publish(e Event)
}

// Metrics holds the sweep collectors
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunsInFlight     prometheus.Gauge
	TickersProcessed *prometheus.CounterVec
	TickerErrors     *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sweeper",
			Name:      "runs_total",
			Help:      "Scheduler runs by strategy family and outcome",
		}, []string{"family", "status"}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sweeper",
			Name:      "runs_in_flight",
			Help:      "Scheduler runs currently executing",
		}),
		TickersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sweeper",
			Name:      "tickers_processed_total",
			Help:      "Tickers processed by strategy family",
		}, []string{"family"}),
		TickerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sweeper",
			Name:      "ticker_errors_total",
			Help:      "Skipped tickers and failed batches by strategy family",
		}, []string{"family"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sweeper",
			Name:      "run_duration_seconds",
			Help:      "Wall time of scheduler runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"family"}),
	}

	reg.MustRegister(m.RunsTotal, m.RunsInFlight, m.TickersProcessed, m.TickerErrors, m.RunDuration)
	return m
}

// PerfTracker records runs into Prometheus, samples process CPU and fans events out to sinks
type PerfTracker struct {
	metrics *Metrics
	logger  *logger.Logger
	sample  func() float64

	mu    sync.RWMutex
	sinks []Sink
}

// NewPerfTracker creates a tracker over the given metrics
func NewPerfTracker(metrics *Metrics, log *logger.Logger) *PerfTracker {
	return &PerfTracker{
		metrics: metrics,
		logger:  log.Module("telemetry"),
		sample:  sampleCPU,
	}
}

// Subscribe adds a sink
func (t *PerfTracker) Subscribe(s Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, s)
}

func (t *PerfTracker) publish(e Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.sinks {
		s.Publish(e)
	}
}

// Start implements Tracker
func (t *PerfTracker) Start(info RunInfo) RunHandle {
	t.metrics.RunsInFlight.Inc()
	t.sample() // 기준점

	t.publish(Event{Type: EventStart, Info: &info})
	return &perfHandle{tracker: t, info: info, started: time.Now()}
}

type perfHandle struct {
	tracker *PerfTracker
	info    RunInfo
	started time.Time

	mu    sync.Mutex
	last  Progress
	ended bool
}

// Update records the delta since the previous update
func (h *perfHandle) Update(p Progress) {
	h.mu.Lock()
	dProcessed := p.Processed - h.last.Processed
	dErrors := p.Errors - h.last.Errors
	h.last = p
	h.mu.Unlock()

	family := string(h.info.Family)
	if dProcessed > 0 {
		h.tracker.metrics.TickersProcessed.WithLabelValues(family).Add(float64(dProcessed))
	}
	if dErrors > 0 {
		h.tracker.metrics.TickerErrors.WithLabelValues(family).Add(float64(dErrors))
	}

	h.tracker.publish(Event{Type: EventProgress, Progress: &p})
}

// End closes the run; later calls return the same summary without re-recording
func (h *perfHandle) End() Summary {
	h.mu.Lock()
	last := h.last
	already := h.ended
	h.ended = true
	h.mu.Unlock()

	elapsed := time.Since(h.started)
	if already {
		return summarize(h.info, last, elapsed, 0)
	}

	s := summarize(h.info, last, elapsed, h.tracker.sample())

	family := string(h.info.Family)
	status := "ok"
	switch {
	case s.Total > 0 && s.Errors >= s.Total:
		status = "failed"
	case s.Errors > 0:
		status = "partial"
	}

	m := h.tracker.metrics
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(family, status).Inc()
	m.RunDuration.WithLabelValues(family).Observe(elapsed.Seconds())

	h.tracker.logger.WithFields(map[string]interface{}{
		"run_id":          s.RunID,
		"family":          family,
		"processed":       s.Processed,
		"errors":          s.Errors,
		"duration":        s.Duration.String(),
		"tickers_per_sec": s.TickersPerSec,
		"cpu_percent":     s.CPUPercent,
	}).Info("Sweep run finished")

	h.tracker.publish(Event{Type: EventEnd, Summary: &s})
	return s
}

// sampleCPU returns process-wide CPU usage since the previous call
func sampleCPU() float64 {
	pct, err := cpu.Percent(0, false)
	if err != nil || len(pct) == 0 {
		return 0
	}
	return pct[0]
}
