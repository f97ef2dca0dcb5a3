// Package tracking records experiment runs: parameters, metrics, tags and
// artifacts. The pipeline treats every call as best effort.
package tracking

import (
	"context"

	"github.com/YuminosukeSato/automl/store"
)

// Run statuses passed to EndRun.
const (
	RunFinished = "FINISHED"
	RunFailed   = "FAILED"
)

// Tracker is an experiment-tracking backend.
type Tracker interface {
	StartRun(ctx context.Context, experiment string) (string, error)
	LogParam(ctx context.Context, runID, key, value string) error
	LogMetric(ctx context.Context, runID, key string, value float64) error
	SetTag(ctx context.Context, runID, key, value string) error
	// LogArtifact copies the file at path into the run.
	LogArtifact(ctx context.Context, runID, path string) error
	// SaveModel stores v under name inside the run.
	SaveModel(ctx context.Context, runID string, v any, name string) error
	GetRun(ctx context.Context, runID string) (*store.RunData, error)
	EndRun(ctx context.Context, runID, status string) error
}
