package model_selection

import (
	"context"
	"fmt"
	"math"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/core/parallel"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/preprocessing"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scoring names understood by GetScorer.
const (
	ScoringAccuracy = "accuracy"
	ScoringNegRMSE  = "neg_root_mean_squared_error"
	ScoringR2       = "r2"
)

// Scorer returns a greater-is-better score for predictions.
type Scorer func(yTrue, yPred mat.Matrix) (float64, error)

// GetScorer returns the scorer registered under name.
func GetScorer(name string) (Scorer, error) {
	switch name {
	case ScoringAccuracy:
		return metrics.AccuracyMatrix, nil
	case ScoringNegRMSE:
		return func(yTrue, yPred mat.Matrix) (float64, error) {
			rmse, err := metrics.RMSEMatrix(yTrue, yPred)
			return -rmse, err
		}, nil
	case ScoringR2:
		return metrics.R2ScoreMatrix, nil
	default:
		return nil, errors.NewValidationError("scoring", "unknown scorer", name)
	}
}

// EstimatorFactory returns a fresh, unfitted estimator for one fold.
type EstimatorFactory func() (model.Estimator, error)

// CVResult stores cross-validation results
type CVResult struct {
	TestScores []float64
}

// GetMeanScore returns mean test score
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return math.NaN()
	}
	return stat.Mean(cv.TestScores, nil)
}

// GetStdScore returns the population standard deviation of the test scores
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.TestScores) <= 1 {
		return 0.0
	}
	_, variance := stat.PopMeanVariance(cv.TestScores, nil)
	return math.Sqrt(variance)
}

// CrossValScore fits a fresh estimator per fold and scores it on the held
// out rows. Folds run concurrently with at most nJobs in flight; scores are
// reported in fold order regardless of completion order. The first failing
// fold cancels the rest.
func CrossValScore(ctx context.Context, factory EstimatorFactory, X, y mat.Matrix,
	splitter KFoldSplitter, scorer Scorer, nJobs int) (*CVResult, error) {

	folds, err := splitter.Split(X, y)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(folds))
	err = parallel.ForEach(ctx, len(folds), nJobs, func(ctx context.Context, idx int) error {
		fold := folds[idx]
		est, err := factory()
		if err != nil {
			return err
		}
		trainX := preprocessing.SelectRows(X, fold.TrainIndices)
		trainY := preprocessing.SelectRows(y, fold.TrainIndices)
		if err := est.Fit(trainX, trainY); err != nil {
			return errors.Wrapf(err, "fold %d training failed", idx)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		testX := preprocessing.SelectRows(X, fold.TestIndices)
		testY := preprocessing.SelectRows(y, fold.TestIndices)
		pred, err := est.Predict(testX)
		if err != nil {
			return errors.Wrapf(err, "fold %d prediction failed", idx)
		}
		score, err := scorer(testY, pred)
		if err != nil {
			return errors.Wrapf(err, "fold %d scoring failed", idx)
		}
		if math.IsNaN(score) {
			return errors.NewValueError("CrossValScore", fmt.Sprintf("fold %d produced a NaN score", idx))
		}
		scores[idx] = score
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CVResult{TestScores: scores}, nil
}
