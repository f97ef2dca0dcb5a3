package automl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automl/config"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/store"
	"github.com/YuminosukeSato/automl/tracking"
)

func TestRunner_ClassificationEndToEnd(t *testing.T) {
	tr, err := tracking.NewFileTracker(t.TempDir())
	require.NoError(t, err)
	runner, arts := newTestRunner(t, tr)

	rep, err := runner.Run(context.Background(), RunRequest{
		Dataset:  classificationDataset(t, 100, 5, 50),
		Target:   "label",
		TaskType: "classification",
	})
	require.NoError(t, err)
	require.NotNil(t, rep)

	require.Equal(t, store.StatusCompleted, rep.Status, "status %q", rep.Status)
	assert.Equal(t, "toy", rep.DatasetName)
	assert.Len(t, rep.Data.Candidates, 4)
	assert.Equal(t, []string{"Random Forest", "Logistic Regression", "XGBoost", "LightGBM"}, rep.Data.CandidateOrder)
	for name, cs := range rep.Data.Candidates {
		assert.Len(t, cs.CVScores, 3, name)
	}
	assert.NotEmpty(t, rep.Data.BestModel)
	assert.Equal(t, rep.Data.BestModel, rep.ModelName)
	assert.NotEmpty(t, rep.Data.BestParams)
	require.NotNil(t, rep.Data.TuningScore)

	require.Len(t, rep.Data.ValidationMetrics, 4)
	for k, v := range rep.Data.ValidationMetrics {
		assert.GreaterOrEqual(t, v, 0.0, k)
		assert.LessOrEqual(t, v, 1.0, k)
	}

	assert.Equal(t, "toy_"+rep.Data.BestModel, rep.Data.ModelKey)
	keys, err := arts.List()
	require.NoError(t, err)
	assert.Contains(t, keys, rep.Data.ModelKey)

	require.NotNil(t, rep.Tracking)
	assert.NotEmpty(t, rep.Tracking.RunID)
	assert.Equal(t, rep.ReportID, rep.Tracking.Tags["report_id"])

	byTask, err := runner.Reports.Get(context.Background(), rep.TaskID)
	require.NoError(t, err)
	assert.Equal(t, rep.ReportID, byTask.ReportID)
}

func TestRunner_RegressionFromFile(t *testing.T) {
	ds := regressionDataset(t, 80)
	var b strings.Builder
	b.WriteString("x1,x2,y\n")
	for i := 0; i < ds.NumRows(); i++ {
		for j, name := range []string{"x1", "x2", "y"} {
			c, _ := ds.Column(name)
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString(c.String(i))
		}
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "houses.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	runner, _ := newTestRunner(t, nil)
	rep, err := runner.Run(context.Background(), RunRequest{Path: path, Target: "y", TaskType: "regression"})
	require.NoError(t, err)
	require.Equal(t, store.StatusCompleted, rep.Status, "status %q", rep.Status)

	assert.Equal(t, "houses", rep.DatasetName)
	assert.Len(t, rep.Data.Candidates, 4)
	assert.Contains(t, rep.Data.Candidates, "Linear Regression")
	assert.GreaterOrEqual(t, rep.Data.ValidationMetrics[MetricRMSE], 0.0)
	assert.LessOrEqual(t, rep.Data.ValidationMetrics[MetricR2], 1.0)
	for _, cs := range rep.Data.Candidates {
		assert.LessOrEqual(t, cs.MeanCVScore, 0.0, "regression CV scores are negated RMSE")
	}
}

func TestRunner_TrackerOutageDoesNotFailRun(t *testing.T) {
	down := &downTracker{}
	runner, _ := newTestRunner(t, down)

	rep, err := runner.Run(context.Background(), RunRequest{
		Dataset:  classificationDataset(t, 60),
		Target:   "label",
		TaskType: "classification",
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rep.Status)
	assert.Greater(t, down.calls.Load(), int32(0))
	require.NotNil(t, rep.Tracking, "run data falls back to what was computed locally")
	assert.Equal(t, "run-down", rep.Tracking.RunID)
	assert.NotEmpty(t, rep.Tracking.Metrics)
}

func TestRunner_SubmitRejectsBadRequests(t *testing.T) {
	runner, _ := newTestRunner(t, nil)
	ctx := context.Background()

	_, err := runner.Submit(ctx, RunRequest{Dataset: classificationDataset(t, 20), Target: "label", TaskType: "clustering"})
	assert.True(t, errors.Is(err, errors.ErrUnsupportedTaskType))

	_, err = runner.Submit(ctx, RunRequest{Path: filepath.Join(t.TempDir(), "absent.csv"), Target: "y", TaskType: "regression"})
	assert.True(t, errors.Is(err, errors.ErrDataAccess))

	_, err = runner.Submit(ctx, RunRequest{Dataset: classificationDataset(t, 20), Target: "nope", TaskType: "classification"})
	assert.True(t, errors.Is(err, errors.ErrSchema))
}

func TestRunner_FailureIsRecordedInStatus(t *testing.T) {
	runner, _ := newTestRunner(t, nil)
	runner.Options.NTrials = 0

	h, err := runner.Submit(context.Background(), RunRequest{
		Dataset:  classificationDataset(t, 30),
		Target:   "label",
		TaskType: "classification",
		ReportID: "fixed-report",
		TaskID:   "fixed-task",
	})
	require.NoError(t, err, "stage errors after the report exists are not returned")
	assert.Equal(t, "fixed-report", h.ReportID)

	rep, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, rep.Status.IsError(), "status %q", rep.Status)
	assert.True(t, strings.HasPrefix(string(rep.Status), "Error: "))
	assert.Contains(t, string(rep.Status), "n_trials")
	assert.Len(t, rep.Data.Candidates, 4, "stages before the failure are kept")

	_, err = runner.Reports.Update(context.Background(), "fixed-report", store.Update{}.WithStatus(store.StatusCompleted))
	assert.True(t, errors.Is(err, store.ErrReportFinalized), "terminal statuses never change")
}

func TestRunner_Cancelled(t *testing.T) {
	runner, _ := newTestRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	h, err := runner.Submit(ctx, RunRequest{
		Dataset:  classificationDataset(t, 60),
		Target:   "label",
		TaskType: "classification",
	})
	require.NoError(t, err)
	cancel()

	rep, err := h.Wait()
	require.NoError(t, err)
	if rep.Status != store.StatusCompleted {
		assert.True(t, rep.Status.IsError())
		assert.Contains(t, string(rep.Status), context.Canceled.Error())
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.NTrials = 7
	cfg.Pipeline.CVFolds = 4
	cfg.Pipeline.Seed = 3
	cfg.ExperimentName = "exp"

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 7, opts.NTrials)
	assert.Equal(t, 4, opts.Eval.Folds)
	assert.Equal(t, 3, opts.Eval.Seed)
	assert.Equal(t, 3, opts.Preprocess.Seed)
	assert.Equal(t, "exp", opts.Experiment)
	assert.Equal(t, "?", opts.Preprocess.MissingMarker)
}
