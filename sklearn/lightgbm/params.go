package lightgbm

import (
	"github.com/YuminosukeSato/automl/pkg/errors"
)

// Params are the scikit-learn style hyperparameters shared by
// LGBMRegressor and LGBMClassifier.
type Params struct {
	NEstimators     int     // Number of boosting iterations
	LearningRate    float64 // Boosting learning rate
	NumLeaves       int     // Maximum leaves in one tree
	MaxDepth        int     // Maximum tree depth, -1 for no limit
	MinChildSamples int     // Minimum number of data in one leaf
	MinChildWeight  float64 // Minimum sum of hessians in one leaf
	Subsample       float64 // Subsample ratio of training rows per iteration
	ColsampleBytree float64 // Subsample ratio of columns per tree
	RegLambda       float64 // L2 regularization
	RandomState     int
	NumThreads      int
	Verbosity       int
}

// DefaultParams returns LightGBM's scikit-learn defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.1,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		Subsample:       1.0,
		ColsampleBytree: 1.0,
		RandomState:     42,
		Verbosity:       -1,
	}
}

// TrainingParams converts the estimator parameters for a given objective.
func (p Params) TrainingParams(objective ObjectiveType, numClass int) TrainingParams {
	return TrainingParams{
		NumIterations:       p.NEstimators,
		LearningRate:        p.LearningRate,
		NumLeaves:           p.NumLeaves,
		MaxDepth:            p.MaxDepth,
		MinDataInLeaf:       p.MinChildSamples,
		MinSumHessianInLeaf: p.MinChildWeight,
		Lambda:              p.RegLambda,
		BaggingFraction:     p.Subsample,
		FeatureFraction:     p.ColsampleBytree,
		GrowPolicy:          LeafWise,
		Objective:           objective,
		NumClass:            numClass,
		Seed:                int64(p.RandomState),
		NumThreads:          p.NumThreads,
		Verbosity:           p.Verbosity,
	}
}

// GetParams returns the parameters keyed by their scikit-learn names.
func (p Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.NEstimators,
		"learning_rate":     p.LearningRate,
		"num_leaves":        p.NumLeaves,
		"max_depth":         p.MaxDepth,
		"min_child_samples": p.MinChildSamples,
		"min_child_weight":  p.MinChildWeight,
		"subsample":         p.Subsample,
		"colsample_bytree":  p.ColsampleBytree,
		"reg_lambda":        p.RegLambda,
		"random_state":      p.RandomState,
		"n_jobs":            p.NumThreads,
		"verbosity":         p.Verbosity,
	}
}

// SetParams sets parameters by their scikit-learn names. Aliases used by
// the native API are accepted too.
func (p *Params) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators", "num_iterations":
			p.NEstimators, ok = value.(int)
		case "learning_rate":
			p.LearningRate, ok = value.(float64)
		case "num_leaves":
			p.NumLeaves, ok = value.(int)
		case "max_depth":
			p.MaxDepth, ok = value.(int)
		case "min_child_samples", "min_data_in_leaf":
			p.MinChildSamples, ok = value.(int)
		case "min_child_weight":
			p.MinChildWeight, ok = value.(float64)
		case "subsample", "bagging_fraction":
			p.Subsample, ok = value.(float64)
		case "colsample_bytree", "feature_fraction":
			p.ColsampleBytree, ok = value.(float64)
		case "reg_lambda", "lambda_l2":
			p.RegLambda, ok = value.(float64)
		case "random_state", "seed":
			p.RandomState, ok = value.(int)
		case "n_jobs", "num_threads":
			p.NumThreads, ok = value.(int)
		case "verbosity", "verbose":
			p.Verbosity, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "invalid type", value)
		}
	}
	return nil
}
