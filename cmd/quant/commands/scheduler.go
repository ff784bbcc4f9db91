package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sweeper/internal/scheduler"
	"github.com/wonny/sweeper/internal/scheduler/jobs"
	"github.com/wonny/sweeper/internal/sweepconfig"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `그리드 파일의 schedule 설정에 따라 스윕을 주기적으로 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)
  status  - 작업 실행 상태 조회

--grid를 지정하지 않으면 config/sweeps/*.yaml 중 schedule.enabled인 파일을 등록합니다.

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler start --grid config/sweeps/korea_large_cap.yaml
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run sweep:korea_large_cap`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 스윕 작업을 스케줄합니다.

이전 실행이 끝나지 않은 작업의 다음 틱은 건너뜁니다.
실패한 스윕은 재시도하지 않고 다음 틱을 기다립니다.

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

var (
	schedulerGrids []string
	schedulerDir   string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerCmd.PersistentFlags().StringArrayVar(&schedulerGrids, "grid", nil, "그리드 파일 (반복 가능)")
	schedulerCmd.PersistentFlags().StringVar(&schedulerDir, "dir", "config/sweeps", "--grid 미지정 시 검색할 디렉토리")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sweeper Scheduler ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, a, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, a, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, a, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunNow(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %.2fs", jobName, result.Duration.Seconds()))
	return nil
}

// showStatus reports history of jobs run in this process. History is not persisted,
// so a fresh process shows schedules and next run times only.
func showStatus(cmd *cobra.Command, args []string) error {
	sched, a, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range names {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}
		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, err := sched.NextRun(jobName)
		if err != nil || next.IsZero() {
			fmt.Printf("  - %s\n", jobName)
			continue
		}
		fmt.Printf("  - %s (next: %s)\n", jobName, next.Format(time.RFC3339))
	}
}

// initScheduler builds the app and registers one SweepJob per scheduled grid file
func initScheduler(ctx context.Context) (*scheduler.Scheduler, *app, error) {
	paths := schedulerGrids
	if len(paths) == 0 {
		matches, err := filepath.Glob(filepath.Join(schedulerDir, "*.yaml"))
		if err != nil {
			return nil, nil, err
		}
		paths = matches
	}

	a, err := newApp(ctx)
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log)
	registered := 0
	for _, path := range paths {
		grid, _, err := sweepconfig.Load(path)
		if err != nil {
			a.Close()
			return nil, nil, err
		}
		if !grid.Schedule.Enabled {
			a.log.WithField("path", path).Debug("Schedule disabled, skipping grid")
			continue
		}

		job, err := jobs.NewSweepJob(a.service, path, grid, a.log)
		if err != nil {
			a.Close()
			return nil, nil, err
		}
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, err
		}
		registered++
	}

	if registered == 0 {
		a.Close()
		return nil, nil, fmt.Errorf("no scheduled grid files found (checked %d)", len(paths))
	}

	return sched, a, nil
}
