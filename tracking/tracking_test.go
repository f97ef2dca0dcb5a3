package tracking

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/store"
)

type savedThing struct {
	Name  string
	Value float64
}

func TestFileTracker(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	tr, err := NewFileTracker(root)
	require.NoError(t, err)

	runID, err := tr.StartRun(ctx, "exp")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, tr.LogParam(ctx, runID, "C", "0.5"))
	require.NoError(t, tr.LogMetric(ctx, runID, "accuracy", 0.9))
	require.NoError(t, tr.SetTag(ctx, runID, "model", "Logistic Regression"))

	art := filepath.Join(t.TempDir(), "cm.png")
	require.NoError(t, os.WriteFile(art, []byte("png"), 0o600))
	require.NoError(t, tr.LogArtifact(ctx, runID, art))
	require.NoError(t, tr.SaveModel(ctx, runID, &savedThing{Name: "x", Value: 1}, "model"))
	require.NoError(t, tr.EndRun(ctx, runID, RunFinished))

	run, err := tr.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, map[string]string{"C": "0.5"}, run.Params)
	assert.Equal(t, map[string]float64{"accuracy": 0.9}, run.Metrics)
	assert.Equal(t, "Logistic Regression", run.Tags["model"])

	names, err := tr.Artifacts(runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cm.png", "model.gob"}, names)
	assert.FileExists(t, filepath.Join(root, "exp", runID, "artifacts", "cm.png"))

	// a second tracker over the same root finds the run on disk
	other, err := NewFileTracker(root)
	require.NoError(t, err)
	again, err := other.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, run.Metrics, again.Metrics)
}

func TestFileTrackerErrors(t *testing.T) {
	ctx := context.Background()
	tr, err := NewFileTracker(t.TempDir())
	require.NoError(t, err)

	err = tr.LogMetric(ctx, "missing", "k", 1)
	assert.True(t, errors.Is(err, errors.ErrTrackingBackend))

	runID, err := tr.StartRun(ctx, "")
	require.NoError(t, err)
	err = tr.LogArtifact(ctx, runID, filepath.Join(t.TempDir(), "absent.png"))
	assert.True(t, errors.Is(err, errors.ErrTrackingBackend))
}

type brokenTracker struct{ calls int }

func (b *brokenTracker) fail() error {
	b.calls++
	return errors.New("backend down")
}

func (b *brokenTracker) StartRun(context.Context, string) (string, error) {
	return "run-1", nil
}

func (b *brokenTracker) LogParam(context.Context, string, string, string) error {
	return b.fail()
}

func (b *brokenTracker) LogMetric(context.Context, string, string, float64) error {
	return b.fail()
}

func (b *brokenTracker) SetTag(context.Context, string, string, string) error {
	return b.fail()
}

func (b *brokenTracker) LogArtifact(context.Context, string, string) error {
	return b.fail()
}

func (b *brokenTracker) SaveModel(context.Context, string, any, string) error {
	panic("serializer exploded")
}

func (b *brokenTracker) GetRun(context.Context, string) (*store.RunData, error) {
	return nil, b.fail()
}

func (b *brokenTracker) EndRun(context.Context, string, string) error {
	return b.fail()
}

func TestBestEffortSwallowsFailures(t *testing.T) {
	ctx := context.Background()
	logger, buf := log.NewTestLogger(log.LevelDebug)
	inner := &brokenTracker{}
	be := BestEffort(inner, logger)

	runID, err := be.StartRun(ctx, "exp")
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	assert.NoError(t, be.LogParam(ctx, runID, "k", "v"))
	assert.NoError(t, be.LogMetric(ctx, runID, "k", 1))
	assert.NoError(t, be.SetTag(ctx, runID, "k", "v"))
	assert.NoError(t, be.LogArtifact(ctx, runID, "x"))
	assert.NoError(t, be.SaveModel(ctx, runID, 1, "m"))
	rd, err := be.GetRun(ctx, runID)
	assert.NoError(t, err)
	assert.Nil(t, rd)
	assert.NoError(t, be.EndRun(ctx, runID, RunFailed))

	assert.Equal(t, int64(7), be.Failures())
	assert.Equal(t, 6, inner.calls)
	assert.True(t, logger.ContainsMessage("tracking call failed"))
	assert.Contains(t, buf.String(), "tracking backend: log_param: backend down")
}

func TestBestEffortWithoutBackend(t *testing.T) {
	ctx := context.Background()
	be := BestEffort(nil, log.Nop())
	runID, err := be.StartRun(ctx, "exp")
	require.NoError(t, err)
	assert.Empty(t, runID)
	assert.NoError(t, be.LogMetric(ctx, runID, "k", 1))
	assert.Equal(t, int64(0), be.Failures())
}
