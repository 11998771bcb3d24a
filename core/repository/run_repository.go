package repository

import (
	"context"
	"database/sql"
	"time"

	"variant-orchestrator/core/models"

	"github.com/lib/pq"
)

// RunRepository handles database operations for tracked runs. It implements
// the tracking.RunStore interface.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun creates a new run
func (r *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (id, name, status, started_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.Name, run.Status, run.StartedAt)
	return err
}

// SaveParam stores a parameter key/value for a run
func (r *RunRepository) SaveParam(ctx context.Context, runID, key, value string) error {
	query := `
		INSERT INTO run_params (run_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, key)
		DO UPDATE SET value = EXCLUDED.value
	`
	_, err := r.db.ExecContext(ctx, query, runID, key, value)
	return err
}

// SaveMetric stores a scalar metric for a run
func (r *RunRepository) SaveMetric(ctx context.Context, runID string, metric models.RunMetric) error {
	query := `
		INSERT INTO run_metrics (run_id, name, value, step, split, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, runID, metric.Name, metric.Value, metric.Step, metric.Split, metric.At)
	return err
}

// SaveArtifact stores an artifact reference for a run
func (r *RunRepository) SaveArtifact(ctx context.Context, runID, uri string) error {
	query := `
		INSERT INTO run_artifacts (run_id, uri)
		VALUES ($1, $2)
	`
	_, err := r.db.ExecContext(ctx, query, runID, uri)
	return err
}

// UpdateRunStatus marks a run finished
func (r *RunRepository) UpdateRunStatus(ctx context.Context, runID string, status models.RunStatus, endedAt time.Time) error {
	query := `UPDATE runs SET status = $1, ended_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, endedAt, runID)
	return err
}

// GetRuns loads runs with their params and metrics
func (r *RunRepository) GetRuns(ctx context.Context, runIDs []string) ([]*models.Run, error) {
	query := `
		SELECT id, name, status, started_at, ended_at
		FROM runs
		WHERE id = ANY($1)
		ORDER BY started_at
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(runIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	byID := make(map[string]*models.Run)
	for rows.Next() {
		var run models.Run
		var endedAt sql.NullTime

		if err := rows.Scan(&run.ID, &run.Name, &run.Status, &run.StartedAt, &endedAt); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			run.EndedAt = &endedAt.Time
		}
		runs = append(runs, &run)
		byID[run.ID] = &run
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadParams(ctx, runIDs, byID); err != nil {
		return nil, err
	}
	if err := r.loadMetrics(ctx, runIDs, byID); err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *RunRepository) loadParams(ctx context.Context, runIDs []string, byID map[string]*models.Run) error {
	query := `SELECT run_id, key, value FROM run_params WHERE run_id = ANY($1) ORDER BY key`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(runIDs))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var runID, key, value string
		if err := rows.Scan(&runID, &key, &value); err != nil {
			return err
		}
		if run, ok := byID[runID]; ok {
			run.Params = append(run.Params, models.RunParam{Key: key, Value: value})
		}
	}
	return rows.Err()
}

func (r *RunRepository) loadMetrics(ctx context.Context, runIDs []string, byID map[string]*models.Run) error {
	query := `SELECT run_id, name, value, step, split, at FROM run_metrics WHERE run_id = ANY($1) ORDER BY at`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(runIDs))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var runID string
		var metric models.RunMetric
		if err := rows.Scan(&runID, &metric.Name, &metric.Value, &metric.Step, &metric.Split, &metric.At); err != nil {
			return err
		}
		if run, ok := byID[runID]; ok {
			run.Metrics = append(run.Metrics, metric)
		}
	}
	return rows.Err()
}
