package sweep

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/selection"
	"github.com/wonny/sweeper/pkg/config"
	"github.com/wonny/sweeper/pkg/database"
	"github.com/wonny/sweeper/pkg/logger"
)

func postgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1}})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	log := logger.Nop()
	repo := NewPostgresRepository(db, selection.NewSelector(log), log)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestPostgresRepository_RoundTrip(t *testing.T) {
	repo := postgresRepo(t)
	ctx := context.Background()

	run := &contracts.SweepRun{
		ID:         uuid.NewString(),
		Name:       "pg-roundtrip",
		Config:     contracts.GridSnapshot{Tickers: []string{"AAPL", "MSFT"}},
		ConfigHash: "hash",
	}
	require.NoError(t, repo.CreateRun(ctx, run))
	t.Cleanup(func() { _ = repo.DeleteRun(context.Background(), run.ID) })

	results := []contracts.CandidateResult{
		candidate("AAPL", contracts.FamilyMACD, contracts.NewSignalTuple(12, 26, 9), 2.5),
		candidate("AAPL", contracts.FamilyMACD, contracts.NewSignalTuple(12, 26, 9), 2.4),
		candidate("AAPL", contracts.FamilyMACD, contracts.NewSignalTuple(12, 26, 9), 2.3),
		candidate("MSFT", contracts.FamilySMA, contracts.NewTuple(10, 30), 1.8),
		candidate("MSFT", contracts.FamilySMA, contracts.NewTuple(20, 50), 1.7),
	}
	n, err := repo.SaveResults(ctx, run.ID, results)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NotZero(t, results[0].ID)

	got, err := repo.GetResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, results[0].ID, got[0].ID)
	assert.Equal(t, "12/26/9", got[0].Params.Key())
	assert.Nil(t, got[3].Params.Signal)
	assert.Equal(t, 2.5, got[0].Metrics.Get(contracts.MetricSharpeRatio))

	stored, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, stored.Config.Tickers)

	first := time.Now().UTC().Truncate(time.Second)
	repo.now = func() time.Time { return first }
	n, err = repo.ComputeAndSaveBestSelections(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	repo.now = func() time.Time { return first.Add(time.Minute) }
	n, err = repo.ComputeAndSaveBestSelections(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	best, err := repo.GetBestSelections(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, contracts.CriteriaTop3AllMatch, best[0].Criteria)
	assert.Equal(t, 100.0, best[0].ConfidenceScore)
	assert.Equal(t, results[0].ID, best[0].ResultID)
	assert.Equal(t, contracts.CriteriaTop2BothMatch, best[1].Criteria)
	assert.False(t, best[0].UpdatedAt.Before(best[0].CreatedAt.Add(time.Minute)))
}

func TestPostgresRepository_UnknownRun(t *testing.T) {
	repo := postgresRepo(t)
	ctx := context.Background()

	_, err := repo.GetRun(ctx, uuid.NewString())
	assert.ErrorIs(t, err, contracts.ErrRunNotFound)

	_, err = repo.GetResults(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, contracts.ErrRunNotFound)

	_, err = repo.SaveResults(ctx, uuid.NewString(), []contracts.CandidateResult{
		candidate("AAPL", contracts.FamilySMA, contracts.NewTuple(10, 30), 1),
	})
	assert.ErrorIs(t, err, contracts.ErrRunNotFound)

	assert.ErrorIs(t, repo.DeleteRun(ctx, uuid.NewString()), contracts.ErrRunNotFound)
}
