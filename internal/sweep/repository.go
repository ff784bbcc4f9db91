package sweep

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/selection"
	"github.com/wonny/sweeper/pkg/database"
	"github.com/wonny/sweeper/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepository stores sweeps in the sweep.* schema
// ⭐ SSOT: contracts.SweepRepository (PostgreSQL 구현)
type PostgresRepository struct {
	db       *database.DB
	selector *selection.Selector
	logger   *logger.Logger
	now      func() time.Time
}

// NewPostgresRepository creates a new repository
func NewPostgresRepository(db *database.DB, selector *selection.Selector, log *logger.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:       db,
		selector: selector,
		logger:   log.Module("sweep_repository"),
		now:      time.Now,
	}
}

// EnsureSchema creates the sweep schema and tables if missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure sweep schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateRun inserts an immutable run record
func (r *PostgresRepository) CreateRun(ctx context.Context, run *contracts.SweepRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.now()
	}

	query := `
		INSERT INTO sweep.runs (id, name, config, config_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Pool.Exec(ctx, query, run.ID, run.Name, run.Config, run.ConfigHash, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads a run by id
func (r *PostgresRepository) GetRun(ctx context.Context, runID string) (*contracts.SweepRun, error) {
	return getRun(ctx, r.db.Pool, runID)
}

func getRun(ctx context.Context, q querier, runID string) (*contracts.SweepRun, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}

	query := `
		SELECT id::text, name, config, config_hash, created_at
		FROM sweep.runs
		WHERE id = $1`

	var run contracts.SweepRun
	err := q.QueryRow(ctx, query, runID).Scan(
		&run.ID, &run.Name, &run.Config, &run.ConfigHash, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &run, nil
}

// DeleteRun removes a run; results and selections cascade
func (r *PostgresRepository) DeleteRun(ctx context.Context, runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sweep.runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", runID, contracts.ErrRunNotFound)
	}
	return nil
}

// SaveResults inserts raw results in order inside one transaction and
// writes the generated ids back into results.
func (r *PostgresRepository) SaveResults(ctx context.Context, runID string, results []contracts.CandidateResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO sweep.results
			(run_id, ticker, strategy_family, fast_period, slow_period, signal_period, score, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	ids := make([]int64, len(results))
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := getRun(ctx, tx, runID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, c := range results {
			metrics := c.Metrics
			if metrics == nil {
				metrics = contracts.Metrics{}
			}
			batch.Queue(query, runID, c.Ticker, string(c.Family),
				c.Params.Fast, c.Params.Slow, c.Params.Signal, c.Score, metrics)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range results {
			if err := br.QueryRow().Scan(&ids[i]); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert result %d: %w", i, err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("save results for %s: %w", runID, err)
	}

	// 커밋 후에만 ID 반영
	for i := range results {
		results[i].ID = ids[i]
		results[i].RunID = runID
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"count":  len(results),
	}).Info("Saved sweep results")

	return len(results), nil
}

// GetResults returns every result of a run in insertion order
func (r *PostgresRepository) GetResults(ctx context.Context, runID string) ([]contracts.CandidateResult, error) {
	if _, err := getRun(ctx, r.db.Pool, runID); err != nil {
		return nil, err
	}
	return getResults(ctx, r.db.Pool, runID)
}

func getResults(ctx context.Context, q querier, runID string) ([]contracts.CandidateResult, error) {
	query := `
		SELECT id, run_id::text, ticker, strategy_family, fast_period, slow_period, signal_period, score, metrics
		FROM sweep.results
		WHERE run_id = $1
		ORDER BY id`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query results for %s: %w", runID, err)
	}
	defer rows.Close()

	results := make([]contracts.CandidateResult, 0)
	for rows.Next() {
		var c contracts.CandidateResult
		var family string
		if err := rows.Scan(
			&c.ID, &c.RunID, &c.Ticker, &family,
			&c.Params.Fast, &c.Params.Slow, &c.Params.Signal, &c.Score, &c.Metrics,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		c.Family = contracts.StrategyFamily(family)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// ComputeAndSaveBestSelections runs the selector over the run's results and
// upserts one record per (run, ticker, family). Any failure rolls everything back.
func (r *PostgresRepository) ComputeAndSaveBestSelections(ctx context.Context, runID string) (int, error) {
	query := `
		INSERT INTO sweep.best_selections
			(run_id, ticker, strategy_family, result_id, selection_algorithm, selection_criteria,
			 confidence_score, alternatives_considered, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, ticker, strategy_family) DO UPDATE SET
			result_id = EXCLUDED.result_id,
			selection_algorithm = EXCLUDED.selection_algorithm,
			selection_criteria = EXCLUDED.selection_criteria,
			confidence_score = EXCLUDED.confidence_score,
			alternatives_considered = EXCLUDED.alternatives_considered,
			snapshot = EXCLUDED.snapshot,
			updated_at = EXCLUDED.updated_at`

	var saved int
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := getRun(ctx, tx, runID); err != nil {
			return err
		}

		results, err := getResults(ctx, tx, runID)
		if err != nil {
			return err
		}

		selections := r.selector.SelectAll(results)
		if len(selections) == 0 {
			return nil
		}

		now := r.now()
		batch := &pgx.Batch{}
		for _, sel := range selections {
			b := selection.ToBestSelection(runID, sel, now)
			batch.Queue(query, b.RunID, b.Ticker, string(b.Family), b.ResultID,
				b.Algorithm, string(b.Criteria), b.ConfidenceScore, b.AlternativesConsidered,
				b.Snapshot, b.CreatedAt, b.UpdatedAt)
		}

		br := tx.SendBatch(ctx, batch)
		for _, sel := range selections {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert best selection %s/%s: %w", sel.Ticker, sel.Family, err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}

		saved = len(selections)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("compute best selections for %s: %w", runID, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"count":  saved,
	}).Info("Saved best selections")

	return saved, nil
}

// GetBestSelections returns the run's selections ordered by ticker then family
func (r *PostgresRepository) GetBestSelections(ctx context.Context, runID string) ([]contracts.BestSelection, error) {
	if _, err := getRun(ctx, r.db.Pool, runID); err != nil {
		return nil, err
	}

	query := `
		SELECT run_id::text, ticker, strategy_family, result_id, selection_algorithm, selection_criteria,
			   confidence_score::float8, alternatives_considered, snapshot, created_at, updated_at
		FROM sweep.best_selections
		WHERE run_id = $1
		ORDER BY ticker, strategy_family`

	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query best selections for %s: %w", runID, err)
	}
	defer rows.Close()

	selections := make([]contracts.BestSelection, 0)
	for rows.Next() {
		var b contracts.BestSelection
		var family, criteria string
		if err := rows.Scan(
			&b.RunID, &b.Ticker, &family, &b.ResultID, &b.Algorithm, &criteria,
			&b.ConfidenceScore, &b.AlternativesConsidered, &b.Snapshot, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan best selection: %w", err)
		}
		b.Family = contracts.StrategyFamily(family)
		b.Criteria = contracts.SelectionCriteria(criteria)
		selections = append(selections, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate best selections: %w", err)
	}
	return selections, nil
}
