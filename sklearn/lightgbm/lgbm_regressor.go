package lightgbm

import (
	"encoding/gob"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&LGBMRegressor{})
	gob.Register(&LGBMClassifier{})
}

// LGBMRegressor implements a LightGBM regressor with scikit-learn compatible API
type LGBMRegressor struct {
	model.StateManager
	Params

	Model *Model
}

// NewLGBMRegressor creates a new LightGBM regressor with default parameters
func NewLGBMRegressor() *LGBMRegressor {
	return &LGBMRegressor{Params: DefaultParams()}
}

// WithNumLeaves sets the maximum number of leaves
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.LearningRate = lr
	return lgb
}

// WithNEstimators sets the number of boosting iterations
func (lgb *LGBMRegressor) WithNEstimators(n int) *LGBMRegressor {
	lgb.NEstimators = n
	return lgb
}

// WithRandomState sets the seed for bagging and feature sampling
func (lgb *LGBMRegressor) WithRandomState(seed int) *LGBMRegressor {
	lgb.RandomState = seed
	return lgb
}

// Fit trains the regressor with the L2 objective
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	m, err := NewTrainer(lgb.TrainingParams(RegressionL2, 0)).Train(X, y)
	if err != nil {
		return errors.NewModelError("LGBMRegressor.Fit", "training failed", err)
	}
	lgb.Model = m
	rows, cols := X.Dims()
	lgb.SetFitted(cols, rows)
	return nil
}

// Predict makes predictions for input samples
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lgb.RequireFitted("LGBMRegressor", "Predict"); err != nil {
		return nil, err
	}
	return lgb.Model.Predict(X)
}

// Score returns the R² score of the prediction
func (lgb *LGBMRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lgb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns normalised split counts per feature
func (lgb *LGBMRegressor) FeatureImportances() ([]float64, error) {
	if err := lgb.RequireFitted("LGBMRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return lgb.Model.GetFeatureImportance("split"), nil
}
