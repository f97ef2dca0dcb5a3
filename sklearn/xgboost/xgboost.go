// Package xgboost provides XGBoost-style gradient boosting: depth-wise
// tree growth with L2-regularised leaf weights, built on the histogram
// booster in the lightgbm package.
package xgboost

import (
	"encoding/gob"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&XGBClassifier{})
	gob.Register(&XGBRegressor{})
}

// Params are XGBoost's scikit-learn hyperparameters.
type Params struct {
	NEstimators     int
	LearningRate    float64 // eta
	MaxDepth        int
	MinChildWeight  float64
	Gamma           float64 // minimum split loss reduction
	RegLambda       float64
	Subsample       float64
	ColsampleBytree float64
	MaxBin          int
	RandomState     int
	NJobs           int
}

// DefaultParams returns XGBoost's defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		MinChildWeight:  1,
		RegLambda:       1,
		Subsample:       1,
		ColsampleBytree: 1,
		MaxBin:          256,
	}
}

func (p Params) trainingParams(objective lightgbm.ObjectiveType) lightgbm.TrainingParams {
	return lightgbm.TrainingParams{
		NumIterations:       p.NEstimators,
		LearningRate:        p.LearningRate,
		MaxDepth:            p.MaxDepth,
		MinDataInLeaf:       1,
		MinSumHessianInLeaf: p.MinChildWeight,
		Lambda:              p.RegLambda,
		// XGBoost's gain is half of the unscaled score difference
		MinGainToSplit:  2 * p.Gamma,
		BaggingFraction: p.Subsample,
		FeatureFraction: p.ColsampleBytree,
		MaxBin:          p.MaxBin,
		GrowPolicy:      lightgbm.DepthWise,
		Objective:       objective,
		Seed:            int64(p.RandomState),
		NumThreads:      p.NJobs,
	}
}

// GetParams returns the parameters keyed by their scikit-learn names.
func (p Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     p.NEstimators,
		"learning_rate":    p.LearningRate,
		"max_depth":        p.MaxDepth,
		"min_child_weight": p.MinChildWeight,
		"gamma":            p.Gamma,
		"reg_lambda":       p.RegLambda,
		"subsample":        p.Subsample,
		"colsample_bytree": p.ColsampleBytree,
		"max_bin":          p.MaxBin,
		"random_state":     p.RandomState,
		"n_jobs":           p.NJobs,
	}
}

// SetParams sets parameters by their scikit-learn names.
func (p *Params) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			p.NEstimators, ok = value.(int)
		case "learning_rate", "eta":
			p.LearningRate, ok = value.(float64)
		case "max_depth":
			p.MaxDepth, ok = value.(int)
		case "min_child_weight":
			p.MinChildWeight, ok = value.(float64)
		case "gamma", "min_split_loss":
			p.Gamma, ok = value.(float64)
		case "reg_lambda", "lambda":
			p.RegLambda, ok = value.(float64)
		case "subsample":
			p.Subsample, ok = value.(float64)
		case "colsample_bytree":
			p.ColsampleBytree, ok = value.(float64)
		case "max_bin":
			p.MaxBin, ok = value.(int)
		case "random_state", "seed":
			p.RandomState, ok = value.(int)
		case "n_jobs":
			p.NJobs, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "invalid type", value)
		}
	}
	return nil
}

// XGBRegressor fits squared error boosting.
type XGBRegressor struct {
	model.StateManager
	Params

	Booster *lightgbm.Model
}

// NewXGBRegressor returns a regressor with XGBoost's defaults.
func NewXGBRegressor() *XGBRegressor {
	return &XGBRegressor{Params: DefaultParams()}
}

func (x *XGBRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBRegressor.Fit")
	m, err := lightgbm.NewTrainer(x.trainingParams(lightgbm.RegressionL2)).Train(X, y)
	if err != nil {
		return errors.NewModelError("XGBRegressor.Fit", "training failed", err)
	}
	x.Booster = m
	rows, cols := X.Dims()
	x.SetFitted(cols, rows)
	return nil
}

func (x *XGBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := x.RequireFitted("XGBRegressor", "Predict"); err != nil {
		return nil, err
	}
	return x.Booster.Predict(X)
}

// Score returns R² on X, y.
func (x *XGBRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := x.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns normalised total gain per feature.
func (x *XGBRegressor) FeatureImportances() ([]float64, error) {
	if err := x.RequireFitted("XGBRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return x.Booster.GetFeatureImportance("gain"), nil
}

// XGBClassifier fits logistic boosting for two classes, softmax otherwise.
type XGBClassifier struct {
	model.StateManager
	Params

	Booster *lightgbm.Model
	Classes []float64
}

// NewXGBClassifier returns a classifier with XGBoost's defaults.
func NewXGBClassifier() *XGBClassifier {
	return &XGBClassifier{Params: DefaultParams()}
}

func (x *XGBClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBClassifier.Fit")
	m, classes, err := lightgbm.TrainClassifier(x.trainingParams(lightgbm.BinaryLogistic), X, y)
	if err != nil {
		return errors.NewModelError("XGBClassifier.Fit", "training failed", err)
	}
	x.Booster = m
	x.Classes = classes
	rows, cols := X.Dims()
	x.SetFitted(cols, rows)
	return nil
}

func (x *XGBClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := x.RequireFitted("XGBClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	return x.Booster.PredictProba(X)
}

func (x *XGBClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := x.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return lightgbm.ProbaToLabels(proba, x.Classes), nil
}

// Score returns the accuracy on X, y.
func (x *XGBClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := x.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// FeatureImportances returns normalised total gain per feature.
func (x *XGBClassifier) FeatureImportances() ([]float64, error) {
	if err := x.RequireFitted("XGBClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return x.Booster.GetFeatureImportance("gain"), nil
}
