package models

import "time"

// RunStatus represents the final status of a tracked run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one tracked execution of a training or evaluation procedure
type Run struct {
	ID        string
	Name      string
	Status    RunStatus
	Params    []RunParam
	Metrics   []RunMetric
	Artifacts []string
	StartedAt time.Time
	EndedAt   *time.Time
}

// RunParam is a logged parameter key/value
type RunParam struct {
	Key   string
	Value string
}

// RunMetric is a scalar metric tagged with a step index and a dataset-split label
type RunMetric struct {
	Name  string
	Value float64
	Step  int
	Split string // e.g. "train", "test"
	At    time.Time
}

// Table is a tabular export of runs keyed by parameter and metric names
type Table struct {
	Columns []string
	Rows    [][]string
}
