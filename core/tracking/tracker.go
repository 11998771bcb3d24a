package tracking

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"variant-orchestrator/core/models"

	"github.com/google/uuid"
)

// RunStore is the persistence backend for tracked runs
type RunStore interface {
	CreateRun(ctx context.Context, run *models.Run) error
	SaveParam(ctx context.Context, runID, key, value string) error
	SaveMetric(ctx context.Context, runID string, metric models.RunMetric) error
	SaveArtifact(ctx context.Context, runID, uri string) error
	UpdateRunStatus(ctx context.Context, runID string, status models.RunStatus, endedAt time.Time) error
	GetRuns(ctx context.Context, runIDs []string) ([]*models.Run, error)
}

// Tracker records training/evaluation runs with their parameters, metrics
// and artifacts
type Tracker struct {
	store RunStore
}

// NewTracker creates a tracker over a run store
func NewTracker(store RunStore) *Tracker {
	return &Tracker{store: store}
}

// StartRun creates a new tracked run
func (t *Tracker) StartRun(ctx context.Context, name string) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := t.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// LogParam logs a parameter key/value for a run
func (t *Tracker) LogParam(ctx context.Context, run *models.Run, key, value string) error {
	if err := t.store.SaveParam(ctx, run.ID, key, value); err != nil {
		return err
	}
	run.Params = append(run.Params, models.RunParam{Key: key, Value: value})
	return nil
}

// LogMetric logs a scalar metric tagged with a step index and a
// dataset-split label
func (t *Tracker) LogMetric(ctx context.Context, run *models.Run, name string, value float64, step int, split string) error {
	metric := models.RunMetric{
		Name:  name,
		Value: value,
		Step:  step,
		Split: split,
		At:    time.Now(),
	}
	if err := t.store.SaveMetric(ctx, run.ID, metric); err != nil {
		return err
	}
	run.Metrics = append(run.Metrics, metric)
	return nil
}

// LogArtifact logs a file artifact reference for a run
func (t *Tracker) LogArtifact(ctx context.Context, run *models.Run, uri string) error {
	if err := t.store.SaveArtifact(ctx, run.ID, uri); err != nil {
		return err
	}
	run.Artifacts = append(run.Artifacts, uri)
	return nil
}

// LogConfusionMatrix logs a confusion matrix as one metric per cell,
// named confusion:<actual>:<predicted>
func (t *Tracker) LogConfusionMatrix(ctx context.Context, run *models.Run, labels []string, matrix [][]int, split string) error {
	if len(matrix) != len(labels) {
		return fmt.Errorf("confusion matrix has %d rows for %d labels", len(matrix), len(labels))
	}
	for i, row := range matrix {
		if len(row) != len(labels) {
			return fmt.Errorf("confusion matrix row %d has %d columns for %d labels", i, len(row), len(labels))
		}
		for j, count := range row {
			name := fmt.Sprintf("confusion:%s:%s", labels[i], labels[j])
			if err := t.LogMetric(ctx, run, name, float64(count), 0, split); err != nil {
				return err
			}
		}
	}
	return nil
}

// EndRun marks a run finished with the given status
func (t *Tracker) EndRun(ctx context.Context, run *models.Run, status models.RunStatus) error {
	endedAt := time.Now()
	if err := t.store.UpdateRunStatus(ctx, run.ID, status, endedAt); err != nil {
		return err
	}
	run.Status = status
	run.EndedAt = &endedAt
	return nil
}

// ExportTable exports runs as a table keyed by parameter and metric names.
// Parameter columns are named param:<key>; metric columns metric:<split>:<name>
// holding the value at the highest logged step.
func (t *Tracker) ExportTable(ctx context.Context, runIDs []string) (*models.Table, error) {
	runs, err := t.store.GetRuns(ctx, runIDs)
	if err != nil {
		return nil, err
	}

	paramCols := make(map[string]bool)
	metricCols := make(map[string]bool)
	for _, run := range runs {
		for _, p := range run.Params {
			paramCols["param:"+p.Key] = true
		}
		for _, m := range run.Metrics {
			metricCols[metricColumn(m)] = true
		}
	}

	columns := []string{"run_id", "name", "status"}
	columns = append(columns, sortedKeys(paramCols)...)
	columns = append(columns, sortedKeys(metricCols)...)

	table := &models.Table{Columns: columns}
	for _, run := range runs {
		values := map[string]string{
			"run_id": run.ID,
			"name":   run.Name,
			"status": string(run.Status),
		}
		for _, p := range run.Params {
			values["param:"+p.Key] = p.Value
		}

		// Keep the value at the highest step per column.
		bestStep := make(map[string]int)
		for _, m := range run.Metrics {
			col := metricColumn(m)
			if step, seen := bestStep[col]; !seen || m.Step >= step {
				bestStep[col] = m.Step
				values[col] = strconv.FormatFloat(m.Value, 'g', -1, 64)
			}
		}

		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = values[col]
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func metricColumn(m models.RunMetric) string {
	if m.Split == "" {
		return "metric:" + m.Name
	}
	return "metric:" + m.Split + ":" + m.Name
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
