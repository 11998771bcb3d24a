package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"variant-orchestrator/core/models"
)

// RolloutRepository handles database operations for rollout events
type RolloutRepository struct {
	db *DB
}

// NewRolloutRepository creates a new rollout repository
func NewRolloutRepository(db *DB) *RolloutRepository {
	return &RolloutRepository{db: db}
}

// SaveRolloutEvent stores the outcome of one applied rollout step
func (r *RolloutRepository) SaveRolloutEvent(ctx context.Context, event *models.RolloutEvent) error {
	weightsJSON, err := json.Marshal(event.Weights)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rollout_events (endpoint_id, step, weights_json, succeeded, error, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.EndpointID,
		event.Step,
		string(weightsJSON),
		event.Succeeded,
		event.Error,
		event.At,
	)
	return err
}

// GetRolloutEvents lists rollout events for an endpoint, newest first
func (r *RolloutRepository) GetRolloutEvents(ctx context.Context, endpointID string, limit int) ([]*models.RolloutEvent, error) {
	query := `
		SELECT id, endpoint_id, step, weights_json, succeeded, error, at
		FROM rollout_events
		WHERE endpoint_id = $1
		ORDER BY at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, endpointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.RolloutEvent
	for rows.Next() {
		var event models.RolloutEvent
		var weightsJSON string
		var errText sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.EndpointID,
			&event.Step,
			&weightsJSON,
			&event.Succeeded,
			&errText,
			&event.At,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(weightsJSON), &event.Weights); err != nil {
			return nil, err
		}
		if errText.Valid {
			event.Error = errText.String
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}
