package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sweeper/internal/selection"
	"github.com/wonny/sweeper/internal/sweep"
	"github.com/wonny/sweeper/pkg/config"
	"github.com/wonny/sweeper/pkg/database"
	"github.com/wonny/sweeper/pkg/logger"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "데이터베이스 점검 및 스키마 적용",
	Long: `PostgreSQL 연결을 점검하고 sweep 스키마를 적용합니다.

Subcommands:
  check    - 연결/풀 상태 점검
  migrate  - sweep.* 테이블 생성 (idempotent)

Example:
  go run ./cmd/quant db check
  go run ./cmd/quant db migrate`,
}

var (
	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "연결 상태 점검",
		RunE:  checkDB,
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "스키마 적용",
		RunE:  migrateDB,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func openDB() (*database.DB, *config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	fmt.Printf("Connecting to %s\n", maskPassword(cfg.Database.URL))
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, cfg, log, nil
}

func checkDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Database Check ===")

	db, _, _, err := openDB()
	if err != nil {
		PrintError(err.Error())
		return err
	}
	defer db.Close()

	status, err := db.HealthCheck(context.Background())
	if err != nil {
		PrintError("database unhealthy: " + status.Error)
		return fmt.Errorf("database unhealthy: %w", err)
	}

	PrintSuccess(fmt.Sprintf("healthy (%s)", status.ResponseTime))
	PrintKeyValue("Total conns", fmt.Sprint(status.Stats.TotalConns), 12)
	PrintKeyValue("Idle conns", fmt.Sprint(status.Stats.IdleConns), 12)
	PrintKeyValue("Acquired", fmt.Sprint(status.Stats.AcquiredConns), 12)
	PrintKeyValue("Max conns", fmt.Sprint(status.Stats.MaxConns), 12)
	return nil
}

func migrateDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Database Migrate ===")

	db, _, log, err := openDB()
	if err != nil {
		PrintError(err.Error())
		return err
	}
	defer db.Close()

	repo := sweep.NewPostgresRepository(db, selection.NewSelector(log), log)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess("sweep schema is up to date")
	return nil
}
