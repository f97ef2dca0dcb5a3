package automl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/artifact"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/store"
	"github.com/YuminosukeSato/automl/tracking"
)

// Validation metric names.
const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1_score"
	MetricRMSE      = "rmse"
	MetricR2        = "r2_score"
)

// Finalizer fits the chosen pipeline and persists everything about it.
type Finalizer struct {
	// Tracker receives params, metrics and artifacts. Calls are wrapped in
	// tracking.BestEffort so a backend outage never fails the run.
	Tracker    tracking.Tracker
	Artifacts  *artifact.Store
	Reports    store.ReportStore
	Experiment string
	Logger     log.Logger
}

// FinalizeInput is the outcome of the earlier stages.
type FinalizeInput struct {
	Candidate   Candidate
	Params      map[string]any
	Split       *Split
	DatasetName string
	ReportID    string
}

// FinalReport is what Finalize produced.
type FinalReport struct {
	ModelName   string
	ModelKey    string
	Params      map[string]any
	Metrics     map[string]float64
	Importances []FeatureImportance
	Tracking    *store.RunData
	// Predictions are the validation predictions used for Metrics.
	Predictions *mat.Dense
	Report      *store.Report
}

// logger returns f.Logger as is; a caller-supplied logger already carries
// the report fields.
func (f *Finalizer) logger(reportID string) log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.GetLoggerWithName("automl.finalize").With(log.ReportIDKey, reportID)
}

// Finalize fits in.Candidate with in.Params on the training rows, scores the
// validation rows, saves the model artifact under {dataset}_{model}, records
// a tracking run and marks the report Completed.
//
// Plot and table artifacts are written to a temporary directory that is
// removed before Finalize returns.
func (f *Finalizer) Finalize(ctx context.Context, in FinalizeInput) (*FinalReport, error) {
	logger := f.logger(in.ReportID).With(log.ModelNameKey, in.Candidate.Name)
	tr := tracking.BestEffort(f.Tracker, logger)
	s := in.Split
	if s == nil {
		return nil, errors.NewValueError("Finalize", "no split")
	}

	pipe, err := in.Candidate.Build(in.Params)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := pipe.Fit(s.XTrain, s.YTrain); err != nil {
		return nil, errors.Wrapf(err, "fit %s", in.Candidate.Name)
	}
	raw, err := pipe.Predict(s.XVal)
	if err != nil {
		return nil, errors.Wrapf(err, "predict %s", in.Candidate.Name)
	}
	pred := mat.DenseCopyOf(raw)

	scores, err := validationMetrics(in.Candidate.Task, s.YVal, pred)
	if err != nil {
		return nil, err
	}
	logger.Info("final model fitted", "validation_metrics", scores)

	out := &FinalReport{
		ModelName:   in.Candidate.Name,
		ModelKey:    artifact.Key(in.DatasetName, in.Candidate.Name),
		Params:      in.Params,
		Metrics:     scores,
		Predictions: pred,
	}

	runID, _ := tr.StartRun(ctx, f.Experiment)
	logger = logger.With(log.RunIDKey, runID)
	ended := false
	defer func() {
		if !ended {
			_ = tr.EndRun(context.WithoutCancel(ctx), runID, tracking.RunFailed)
		}
	}()
	for _, k := range sortedKeys(scores) {
		_ = tr.LogMetric(ctx, runID, k, scores[k])
	}
	for _, k := range sortedKeys(in.Params) {
		_ = tr.LogParam(ctx, runID, k, fmt.Sprint(in.Params[k]))
	}
	_ = tr.LogParam(ctx, runID, "model_name", in.Candidate.Name)
	_ = tr.LogParam(ctx, runID, "dataset_name", in.DatasetName)
	_ = tr.SetTag(ctx, runID, "task_type", string(in.Candidate.Task))
	_ = tr.SetTag(ctx, runID, "report_id", in.ReportID)

	tmp, err := os.MkdirTemp("", "automl-artifacts-")
	if err != nil {
		return nil, errors.Wrap(err, "create artifact dir")
	}
	defer os.RemoveAll(tmp)

	suffix := in.DatasetName + "_" + in.Candidate.Name
	if in.Candidate.Task == Classification {
		if err := f.logConfusionMatrix(ctx, tr, runID, filepath.Join(tmp, "confusion_matrix_"+suffix+".png"), in, pred); err != nil {
			logger.Warn("confusion matrix skipped", err)
		}
	}

	importances, ok, err := pipe.FeatureImportances()
	switch {
	case err != nil:
		logger.Warn("feature importances unavailable", err)
	case ok:
		ranked, err := rankImportances(s.FeatureNames, importances)
		if err != nil {
			return nil, err
		}
		out.Importances = ranked
		csvPath := filepath.Join(tmp, "feature_importances_"+suffix+".csv")
		if err := writeImportancesCSV(csvPath, ranked); err != nil {
			logger.Warn("feature importance table skipped", err)
		} else {
			_ = tr.LogArtifact(ctx, runID, csvPath)
		}
		pngPath := filepath.Join(tmp, "feature_importances_"+suffix+".png")
		if err := writeImportancesPNG(pngPath, "Feature Importances - "+in.Candidate.Name, ranked); err != nil {
			logger.Warn("feature importance chart skipped", err)
		} else {
			_ = tr.LogArtifact(ctx, runID, pngPath)
		}
	}

	bundle := &artifact.Bundle{
		Pipeline:        pipe,
		Task:            string(in.Candidate.Task),
		DatasetName:     in.DatasetName,
		ModelName:       in.Candidate.Name,
		FeatureNames:    s.FeatureNames,
		FeatureEncoders: s.FeatureEncoders,
		TargetEncoder:   s.TargetEncoder,
		CreatedAt:       time.Now().UTC(),
	}
	_ = tr.SaveModel(ctx, runID, bundle, "model")
	if f.Artifacts != nil {
		if err := f.Artifacts.Save(out.ModelKey, bundle); err != nil {
			return nil, err
		}
		logger.Info("model saved", log.ArtifactKey, out.ModelKey)
	}

	run, _ := tr.GetRun(ctx, runID)
	if run == nil {
		run = localRunData(runID, scores, in)
	}
	out.Tracking = run

	if f.Reports != nil {
		report, err := f.Reports.Update(ctx, in.ReportID, store.Update{
			DatasetName:       store.Ptr(in.DatasetName),
			ModelName:         store.Ptr(in.Candidate.Name),
			BestModel:         store.Ptr(in.Candidate.Name),
			BestParams:        in.Params,
			ValidationMetrics: scores,
			ModelKey:          store.Ptr(out.ModelKey),
			Tracking:          run,
		}.WithStatus(store.StatusCompleted))
		if err != nil {
			return nil, err
		}
		out.Report = report
	}
	ended = true
	_ = tr.EndRun(ctx, runID, tracking.RunFinished)

	logger.Info("finalized", log.DurationMsKey, time.Since(start).Milliseconds())
	return out, nil
}

func (f *Finalizer) logConfusionMatrix(ctx context.Context, tr tracking.Tracker, runID, path string, in FinalizeInput, pred *mat.Dense) error {
	yTrue := metrics.ColumnVector(in.Split.YVal)
	yPred := metrics.ColumnVector(pred)
	cm, codes, err := metrics.ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return err
	}
	labels := make([]string, len(codes))
	for i, c := range codes {
		labels[i] = fmt.Sprint(c)
		if enc := in.Split.TargetEncoder; enc != nil {
			if name, err := enc.InverseTransform(int(c)); err == nil {
				labels[i] = name
			}
		}
	}
	if err := writeConfusionMatrixPNG(path, "Confusion Matrix - "+in.Candidate.Name, cm, labels); err != nil {
		return err
	}
	return tr.LogArtifact(ctx, runID, path)
}

// validationMetrics computes the task's validation metrics. Precision,
// recall and F1 are support-weighted with zero division scored as 0.
func validationMetrics(task TaskType, yTrue, yPred mat.Matrix) (map[string]float64, error) {
	if task == Classification {
		acc, err := metrics.AccuracyMatrix(yTrue, yPred)
		if err != nil {
			return nil, err
		}
		p, r, f1, err := metrics.PrecisionRecallFScore(metrics.ColumnVector(yTrue), metrics.ColumnVector(yPred), metrics.AverageWeighted)
		if err != nil {
			return nil, err
		}
		return map[string]float64{MetricAccuracy: acc, MetricPrecision: p, MetricRecall: r, MetricF1: f1}, nil
	}
	rmse, err := metrics.RMSEMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	r2, err := metrics.R2ScoreMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return map[string]float64{MetricRMSE: rmse, MetricR2: r2}, nil
}

// localRunData is the tracking record assembled without a backend.
func localRunData(runID string, scores map[string]float64, in FinalizeInput) *store.RunData {
	params := map[string]string{
		"model_name":   in.Candidate.Name,
		"dataset_name": in.DatasetName,
	}
	for k, v := range in.Params {
		params[k] = fmt.Sprint(v)
	}
	metricsCopy := make(map[string]float64, len(scores))
	for k, v := range scores {
		metricsCopy[k] = v
	}
	return &store.RunData{
		RunID:   runID,
		Metrics: metricsCopy,
		Params:  params,
		Tags: map[string]string{
			"task_type": string(in.Candidate.Task),
			"report_id": in.ReportID,
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
