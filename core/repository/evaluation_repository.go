package repository

import (
	"context"

	"variant-orchestrator/core/models"
)

// EvaluationRepository handles database operations for evaluation batches
type EvaluationRepository struct {
	db *DB
}

// NewEvaluationRepository creates a new evaluation repository
func NewEvaluationRepository(db *DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// SaveEvaluation stores an evaluation batch and its per-sample records in
// one transaction
func (r *EvaluationRepository) SaveEvaluation(ctx context.Context, eval *models.Evaluation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO evaluations (
			id, endpoint_id, variant_id, sample_count, correct_count,
			error_count, accuracy, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(ctx, query,
		eval.ID,
		eval.EndpointID,
		eval.VariantID,
		eval.SampleCount,
		eval.Correct,
		eval.ErrorCount,
		eval.Accuracy,
		eval.StartedAt,
		eval.FinishedAt,
	)
	if err != nil {
		return err
	}

	recordQuery := `
		INSERT INTO evaluation_records (
			evaluation_id, variant_id, predicted, expected, correct, invoke_error, at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, rec := range eval.Records {
		_, err = tx.ExecContext(ctx, recordQuery,
			eval.ID,
			rec.VariantID,
			rec.Predicted,
			rec.Expected,
			rec.Correct,
			rec.InvokeError,
			rec.At,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetEvaluations lists evaluation batches for an endpoint, newest first.
// Per-sample records are not loaded.
func (r *EvaluationRepository) GetEvaluations(ctx context.Context, endpointID string, limit int) ([]*models.Evaluation, error) {
	query := `
		SELECT id, endpoint_id, variant_id, sample_count, correct_count,
			error_count, accuracy, started_at, finished_at
		FROM evaluations
		WHERE endpoint_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, endpointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []*models.Evaluation
	for rows.Next() {
		var eval models.Evaluation
		err := rows.Scan(
			&eval.ID,
			&eval.EndpointID,
			&eval.VariantID,
			&eval.SampleCount,
			&eval.Correct,
			&eval.ErrorCount,
			&eval.Accuracy,
			&eval.StartedAt,
			&eval.FinishedAt,
		)
		if err != nil {
			return nil, err
		}
		evals = append(evals, &eval)
	}

	return evals, rows.Err()
}

// LatestAccuracy returns the most recent accuracy per variant for an endpoint
func (r *EvaluationRepository) LatestAccuracy(ctx context.Context, endpointID string) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (variant_id) variant_id, accuracy
		FROM evaluations
		WHERE endpoint_id = $1
		ORDER BY variant_id, started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var variantID string
		var accuracy float64
		if err := rows.Scan(&variantID, &accuracy); err != nil {
			return nil, err
		}
		result[variantID] = accuracy
	}

	return result, rows.Err()
}
