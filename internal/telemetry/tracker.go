package telemetry

import (
	"time"

	"github.com/wonny/sweeper/internal/contracts"
)

// RunInfo describes a scheduler run at start
type RunInfo struct {
	RunID     string                   `json:"run_id"`
	Family    contracts.StrategyFamily `json:"family"`
	Tickers   int                      `json:"tickers"`
	Batches   int                      `json:"batches"`
	PoolWidth int                      `json:"pool_width"`
	Pooled    bool                     `json:"pooled"`
}

// Progress is published after every completed batch
type Progress struct {
	RunID     string                   `json:"run_id"`
	Family    contracts.StrategyFamily `json:"family"`
	Processed int                      `json:"processed"`
	Total     int                      `json:"total"`
	Errors    int                      `json:"errors"`
	Results   int                      `json:"results"`
	Timestamp time.Time                `json:"timestamp"`
}

// Summary is produced when a run ends
type Summary struct {
	RunID         string                   `json:"run_id"`
	Family        contracts.StrategyFamily `json:"family"`
	Processed     int                      `json:"processed"`
	Total         int                      `json:"total"`
	Errors        int                      `json:"errors"`
	Results       int                      `json:"results"`
	Duration      time.Duration            `json:"duration"`
	TickersPerSec float64                  `json:"tickers_per_sec"`
	CPUPercent    float64                  `json:"cpu_percent"`
}

// Tracker is the injected performance collaborator of the scheduler.
// ⭐ SSOT: 실행 단위 텔레메트리 (Start → Update → End)
type Tracker interface {
	Start(info RunInfo) RunHandle
}

// RunHandle tracks one run. Update may be called from any goroutine.
type RunHandle interface {
	Update(p Progress)
	End() Summary
}

// Nop discards everything
type Nop struct{}

// Start implements Tracker
func (Nop) Start(info RunInfo) RunHandle {
	return &nopHandle{info: info, started: time.Now()}
}

type nopHandle struct {
	info    RunInfo
	started time.Time
	last    Progress
}

func (h *nopHandle) Update(p Progress) { h.last = p }

func (h *nopHandle) End() Summary {
	return summarize(h.info, h.last, time.Since(h.started), 0)
}

func summarize(info RunInfo, last Progress, elapsed time.Duration, cpu float64) Summary {
	s := Summary{
		RunID:      info.RunID,
		Family:     info.Family,
		Processed:  last.Processed,
		Total:      info.Tickers,
		Errors:     last.Errors,
		Results:    last.Results,
		Duration:   elapsed,
		CPUPercent: cpu,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.TickersPerSec = float64(last.Processed) / secs
	}
	return s
}
