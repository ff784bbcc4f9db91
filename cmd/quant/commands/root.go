package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	store   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Sweeper - 전략 파라미터 스윕 & 최적 파라미터 선택",
	Long: `Sweeper Unified CLI

티커 × 전략 패밀리 × 기간 파라미터 그리드를 백테스트하고
(ticker, family) 그룹마다 합의 투표로 최적 파라미터를 선택합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant sweep run --grid config/sweeps/korea_large_cap.yaml
  go run ./cmd/quant sweep best <run_id>
  go run ./cmd/quant api
  go run ./cmd/quant scheduler start --grid config/sweeps/korea_large_cap.yaml
  go run ./cmd/quant db migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug 로그 출력")
	rootCmd.PersistentFlags().StringVar(&store, "store", "", "저장소 override (postgres|memory, 기본: SWEEP_STORE)")
}
