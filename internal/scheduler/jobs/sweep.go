package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/sweeper/internal/sweep"
	"github.com/wonny/sweeper/internal/sweepconfig"
	"github.com/wonny/sweeper/pkg/logger"
)

// GridRunner runs a grid file (sweep.Service)
type GridRunner interface {
	RunGrid(ctx context.Context, cfg *sweepconfig.Config) (string, []*sweep.Report, error)
}

// SweepJob runs a grid file on its cron schedule
type SweepJob struct {
	runner GridRunner
	path   string
	cfg    *sweepconfig.Config
	logger *logger.Logger
}

// NewSweepJob creates a job for a grid file that has schedule.enabled set
func NewSweepJob(runner GridRunner, path string, cfg *sweepconfig.Config, log *logger.Logger) (*SweepJob, error) {
	if !cfg.Schedule.Enabled {
		return nil, fmt.Errorf("%s: schedule is not enabled", path)
	}
	return &SweepJob{
		runner: runner,
		path:   path,
		cfg:    cfg,
		logger: log.Module("sweep_job"),
	}, nil
}

// Name returns the job name
func (j *SweepJob) Name() string {
	return "sweep:" + j.cfg.Meta.Name
}

// Schedule returns the cron schedule from the grid file
func (j *SweepJob) Schedule() string {
	return j.cfg.Schedule.Cron
}

// MaxRetries disables retries: a failed sweep waits for its next tick
// 스윕 작업은 0 (재시도 없음)
func (j *SweepJob) MaxRetries() int {
	return 0
}

// Run executes the sweep. The file is re-read so edits apply on the next tick;
// an unreadable file falls back to the last good config.
func (j *SweepJob) Run(ctx context.Context) error {
	cfg := j.cfg
	if j.path != "" {
		if fresh, _, err := sweepconfig.Load(j.path); err != nil {
			j.logger.WithError(err).WithField("path", j.path).Warn("Grid reload failed, using last good config")
		} else {
			cfg = fresh
			j.cfg = fresh
		}
	}

	runID, reports, err := j.runner.RunGrid(ctx, cfg)
	if err != nil && !errors.Is(err, sweep.ErrAllFailed) {
		return fmt.Errorf("sweep %s: %w", cfg.Meta.Name, err)
	}

	results, errs := 0, 0
	for _, r := range reports {
		results += len(r.Results)
		errs += r.Errors
	}
	j.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"families": len(reports),
		"results":  results,
		"errors":   errs,
	}).Info("Scheduled sweep finished")

	return err
}
