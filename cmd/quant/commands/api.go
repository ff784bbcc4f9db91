package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wonny/sweeper/internal/api"
	"github.com/wonny/sweeper/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 스윕 실행 / 결과 조회 엔드포인트 제공
- 진행 상황 WebSocket 스트림 제공
- Prometheus 메트릭 노출

Endpoints:
  GET    /health                     - Health check
  GET    /metrics                    - Prometheus metrics
  GET    /ws/sweeps/progress         - 진행 상황 스트림
  POST   /api/sweeps                 - 스윕 실행
  GET    /api/sweeps/{id}            - 실행 조회
  GET    /api/sweeps/{id}/results    - 결과 조회 (?ticker=&family=)
  GET    /api/sweeps/{id}/best       - 최적 파라미터 조회
  POST   /api/sweeps/{id}/best       - 최적 선택 재계산
  DELETE /api/sweeps/{id}            - 실행 삭제

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sweeper API Server ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	hub := handlers.NewProgressHub(a.log)
	defer hub.Close()
	a.tracker.Subscribe(hub)

	metrics := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	if !a.cfg.MetricsEnabled {
		metrics = nil
	}

	router := api.NewRouter(handlers.NewSweepHandler(a.service, a.log), hub, metrics, a.log)
	server := api.New(a.cfg, a.log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
