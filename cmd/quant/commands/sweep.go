package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/sweep"
	"github.com/wonny/sweeper/internal/sweepconfig"
	"github.com/wonny/sweeper/pkg/config"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "파라미터 스윕 실행 및 결과 조회",
	Long: `파라미터 스윕을 실행하고 결과와 최적 파라미터를 조회합니다.

Subcommands:
  run      - 스윕 실행 (그리드 파일 또는 플래그)
  results  - 실행 결과 조회
  best     - 최적 파라미터 조회 (--recompute: 재계산)
  delete   - 실행과 결과 삭제

Example:
  go run ./cmd/quant sweep run --grid config/sweeps/korea_large_cap.yaml
  go run ./cmd/quant sweep run --tickers 005930,000660 --family SMA --fast 5,10,20 --slow 20,50 --from 2023-01-01 --to 2024-12-31
  go run ./cmd/quant sweep best <run_id> --recompute`,
}

var (
	sweepRunCmd = &cobra.Command{
		Use:   "run",
		Short: "스윕 실행",
		RunE:  runSweep,
	}

	sweepResultsCmd = &cobra.Command{
		Use:   "results [run_id]",
		Short: "실행 결과 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  showResults,
	}

	sweepBestCmd = &cobra.Command{
		Use:   "best [run_id]",
		Short: "최적 파라미터 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  showBest,
	}

	sweepDeleteCmd = &cobra.Command{
		Use:   "delete [run_id]",
		Short: "실행 삭제 (결과/선택 포함)",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}
)

var (
	sweepGrid      string
	sweepName      string
	sweepTickers   []string
	sweepFamily    string
	sweepFast      []int
	sweepSlow      []int
	sweepSignal    []int
	sweepFrom      string
	sweepTo        string
	sweepPoolWidth int
	sweepBatchSize int
	sweepTicker    string
	sweepRecompute bool
)

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.AddCommand(sweepRunCmd)
	sweepCmd.AddCommand(sweepResultsCmd)
	sweepCmd.AddCommand(sweepBestCmd)
	sweepCmd.AddCommand(sweepDeleteCmd)

	f := sweepRunCmd.Flags()
	f.StringVar(&sweepGrid, "grid", "", "그리드 YAML 파일 (지정 시 다른 그리드 플래그 무시)")
	f.StringVar(&sweepName, "name", "", "실행 이름")
	f.StringSliceVar(&sweepTickers, "tickers", nil, "티커 목록 (쉼표 구분)")
	f.StringVar(&sweepFamily, "family", "SMA", "전략 패밀리 (SMA|EMA|MACD|RSI)")
	f.IntSliceVar(&sweepFast, "fast", nil, "fast 기간 목록")
	f.IntSliceVar(&sweepSlow, "slow", nil, "slow 기간 목록")
	f.IntSliceVar(&sweepSignal, "signal", nil, "signal 기간 목록 (MACD 전용)")
	f.StringVar(&sweepFrom, "from", "", "시작일 (YYYY-MM-DD)")
	f.StringVar(&sweepTo, "to", "", "종료일 (YYYY-MM-DD, 기본: 오늘)")
	f.IntVar(&sweepPoolWidth, "pool-width", 0, "동시 배치 수 (0 = SWEEP_POOL_WIDTH)")
	f.IntVar(&sweepBatchSize, "batch-size", 0, "배치 크기 (0 = 휴리스틱)")

	sweepResultsCmd.Flags().StringVar(&sweepTicker, "ticker", "", "티커 필터")
	sweepBestCmd.Flags().BoolVar(&sweepRecompute, "recompute", false, "저장된 결과로 최적 선택 재계산")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()

	var (
		runID   string
		reports []*sweep.Report
	)

	if sweepGrid != "" {
		grid, _, err := sweepconfig.Load(sweepGrid)
		if err != nil {
			return err
		}
		if sweepPoolWidth > 0 {
			grid.Execution.PoolWidth = sweepPoolWidth
		}
		if sweepBatchSize > 0 {
			grid.Execution.BatchSize = sweepBatchSize
		}
		r, _ := grid.DateRange()
		families := make([]string, 0, len(grid.Strategies))
		for _, s := range grid.Strategies {
			families = append(families, strings.ToUpper(s.Family))
		}
		PrintRunHeader(RunHeader{
			Title:    "Sweep: " + grid.Meta.Name,
			Period:   &r,
			Tickers:  grid.NormalizedTickers(),
			Families: families,
		})

		runID, reports, err = a.service.RunGrid(ctx, grid)
		if err != nil && !errors.Is(err, sweep.ErrAllFailed) {
			return err
		}
		for _, rep := range reports {
			PrintReport(rep)
		}
		if errors.Is(err, sweep.ErrAllFailed) {
			PrintError("every ticker failed for every family (run " + runID + ")")
			return err
		}
	} else {
		req, err := requestFromFlags()
		if err != nil {
			return err
		}
		PrintRunHeader(RunHeader{
			Title:    "Sweep: " + string(req.Family),
			Period:   &req.Range,
			Tickers:  req.Tickers,
			Families: []string{string(req.Family)},
		})

		var rep *sweep.Report
		runID, rep, err = a.service.RunSweep(ctx, req)
		PrintReport(rep)
		if err != nil {
			if runID != "" {
				PrintError(fmt.Sprintf("run %s: %v", runID, err))
			}
			return err
		}
	}

	selections, err := a.service.GetBestSelections(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Println()
	PrintSelections(selections)
	PrintCompletion(runID, time.Since(start))

	if a.cfg.Sweep.Store == config.StoreMemory {
		PrintWarning("memory store: results are discarded when this process exits")
	}
	return nil
}

// requestFromFlags builds a single-family request from run flags
func requestFromFlags() (sweep.SweepRequest, error) {
	family, err := contracts.ParseFamily(sweepFamily)
	if err != nil {
		return sweep.SweepRequest{}, err
	}

	from, err := time.Parse("2006-01-02", sweepFrom)
	if err != nil {
		return sweep.SweepRequest{}, fmt.Errorf("--from: %w", err)
	}
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if sweepTo != "" {
		if to, err = time.Parse("2006-01-02", sweepTo); err != nil {
			return sweep.SweepRequest{}, fmt.Errorf("--to: %w", err)
		}
	}

	tuples := sweepconfig.Expand(contracts.FamilyGrid{
		Family: family,
		Fast:   sweepFast,
		Slow:   sweepSlow,
		Signal: sweepSignal,
	})

	tickers := make([]string, 0, len(sweepTickers))
	for _, t := range sweepTickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}

	name := sweepName
	if name == "" {
		name = fmt.Sprintf("%s %s", family, strings.Join(tickers, ","))
	}

	return sweep.SweepRequest{
		Name:      name,
		Tickers:   tickers,
		Family:    family,
		Tuples:    tuples,
		Range:     contracts.DateRange{From: from, To: to},
		Backtest:  contracts.DefaultBacktestConfig(),
		PoolWidth: sweepPoolWidth,
		BatchSize: sweepBatchSize,
	}, nil
}

func showResults(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.service.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	results, err := a.service.GetResults(ctx, run.ID)
	if err != nil {
		return err
	}

	printRun(run)
	filter := strings.ToUpper(sweepTicker)
	filtered := results[:0]
	for _, r := range results {
		if filter == "" || r.Ticker == filter {
			filtered = append(filtered, r)
		}
	}
	PrintResults(filtered)
	fmt.Printf("\n%d results\n", len(filtered))
	return nil
}

func showBest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.service.GetRun(ctx, args[0])
	if err != nil {
		return err
	}

	if sweepRecompute {
		n, err := a.service.RecomputeBest(ctx, run.ID)
		if err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("recomputed %d selections", n))
	}

	selections, err := a.service.GetBestSelections(ctx, run.ID)
	if err != nil {
		return err
	}
	printRun(run)
	PrintSelections(selections)
	return nil
}

func deleteRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.DeleteRun(ctx, args[0]); err != nil {
		return err
	}
	PrintSuccess("deleted run " + args[0])
	return nil
}

func printRun(run *contracts.SweepRun) {
	families := make([]string, 0, len(run.Config.Strategies))
	for _, g := range run.Config.Strategies {
		families = append(families, string(g.Family))
	}
	PrintRunHeader(RunHeader{
		Title:    run.Name,
		RunID:    run.ID,
		Period:   &contracts.DateRange{From: run.Config.From, To: run.Config.To},
		Tickers:  run.Config.Tickers,
		Families: families,
	})
	PrintKeyValue("Config hash", run.ConfigHash, 12)
	PrintKeyValue("Created", run.CreatedAt.Format("2006-01-02 15:04:05"), 12)
	fmt.Println()
}
