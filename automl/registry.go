package automl

import (
	"strconv"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/preprocessing"
	"github.com/YuminosukeSato/automl/sklearn/ensemble"
	"github.com/YuminosukeSato/automl/sklearn/lightgbm"
	"github.com/YuminosukeSato/automl/sklearn/linear_model"
	"github.com/YuminosukeSato/automl/sklearn/model_selection"
	"github.com/YuminosukeSato/automl/sklearn/pipeline"
	"github.com/YuminosukeSato/automl/sklearn/tree"
	"github.com/YuminosukeSato/automl/sklearn/xgboost"
)

// ModelKind is the closed set of model families the registry knows.
type ModelKind int

const (
	RandomForest ModelKind = iota + 1
	LogisticRegression
	LinearRegression
	XGBoost
	LightGBM
)

// modelSeed is the random_state of every seeded estimator.
const modelSeed = 42

var kindNames = map[ModelKind]string{
	RandomForest:       "Random Forest",
	LogisticRegression: "Logistic Regression",
	LinearRegression:   "Linear Regression",
	XGBoost:            "XGBoost",
	LightGBM:           "LightGBM",
}

// String returns the display name used in reports and artifact keys.
func (k ModelKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "ModelKind(" + strconv.Itoa(int(k)) + ")"
}

// ParseModelKind maps a display name back to its kind.
func ParseModelKind(name string) (ModelKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, errors.NewUnsupportedModelError(name)
}

var registry = map[TaskType][]ModelKind{
	Classification: {RandomForest, LogisticRegression, XGBoost, LightGBM},
	Regression:     {RandomForest, LinearRegression, XGBoost, LightGBM},
}

// SpaceFor returns the declared search space of kind.
func SpaceFor(kind ModelKind) (Space, error) {
	switch kind {
	case RandomForest:
		return Space{
			IntRange("n_estimators", 50, 200),
			IntRange("max_depth", 3, 20),
			Categorical("max_features", tree.MaxFeaturesNone, tree.MaxFeaturesSqrt, tree.MaxFeaturesLog2),
		}, nil
	case LogisticRegression:
		return Space{LogFloatRange("C", 1e-4, 1e2)}, nil
	case LinearRegression:
		return Space{Categorical("fit_intercept", true, false)}, nil
	case XGBoost:
		return Space{
			IntRange("n_estimators", 50, 200),
			FloatRange("learning_rate", 0.01, 0.3),
			IntRange("max_depth", 3, 20),
		}, nil
	case LightGBM:
		return Space{
			IntRange("n_estimators", 50, 200),
			FloatRange("learning_rate", 0.01, 0.3),
			IntRange("num_leaves", 20, 150),
		}, nil
	default:
		return nil, errors.NewUnsupportedModelError(kind.String())
	}
}

// Candidate is one model family for one task type.
type Candidate struct {
	Kind  ModelKind
	Task  TaskType
	Name  string
	Space Space
}

// Candidates returns the registry entries of task in registry order.
func Candidates(task TaskType) ([]Candidate, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	kinds := registry[task]
	out := make([]Candidate, 0, len(kinds))
	for _, k := range kinds {
		c, err := NewCandidate(k, task)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// NewCandidate returns the registry entry for kind under task.
func NewCandidate(kind ModelKind, task TaskType) (Candidate, error) {
	if err := task.Validate(); err != nil {
		return Candidate{}, err
	}
	space, err := SpaceFor(kind)
	if err != nil {
		return Candidate{}, err
	}
	if _, err := newEstimator(kind, task); err != nil {
		return Candidate{}, err
	}
	return Candidate{Kind: kind, Task: task, Name: kind.String(), Space: space}, nil
}

type tunableEstimator interface {
	model.Estimator
	model.ParameterSetter
}

// newEstimator returns the default-parameter estimator of kind for task.
func newEstimator(kind ModelKind, task TaskType) (tunableEstimator, error) {
	switch kind {
	case RandomForest:
		if task == Classification {
			return ensemble.NewRandomForestClassifier(ensemble.WithRandomState(modelSeed)), nil
		}
		return ensemble.NewRandomForestRegressor(ensemble.WithRandomState(modelSeed)), nil
	case LogisticRegression:
		if task == Classification {
			return linear_model.NewLogisticRegression(linear_model.WithLRMaxIter(1000)), nil
		}
	case LinearRegression:
		if task == Regression {
			return linear_model.NewLinearRegression(), nil
		}
	case XGBoost:
		if task == Classification {
			c := xgboost.NewXGBClassifier()
			c.RandomState = modelSeed
			return c, nil
		}
		r := xgboost.NewXGBRegressor()
		r.RandomState = modelSeed
		return r, nil
	case LightGBM:
		if task == Classification {
			return lightgbm.NewLGBMClassifier(), nil
		}
		return lightgbm.NewLGBMRegressor().WithRandomState(modelSeed), nil
	}
	return nil, errors.NewUnsupportedModelError(kind.String() + " for " + string(task))
}

// Default returns the estimator with registry defaults.
func (c Candidate) Default() (model.Estimator, error) {
	return newEstimator(c.Kind, c.Task)
}

// Build returns a fresh scaler -> model pipeline. params must be a point of
// c.Space; nil keeps the registry defaults.
func (c Candidate) Build(params map[string]any) (*pipeline.Pipeline, error) {
	est, err := newEstimator(c.Kind, c.Task)
	if err != nil {
		return nil, err
	}
	if params != nil {
		native, err := c.Space.Normalize(params)
		if err != nil {
			return nil, err
		}
		if err := est.SetParams(native); err != nil {
			return nil, errors.Wrapf(err, "%s", c.Name)
		}
	}
	return pipeline.New(
		pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault()},
		pipeline.Step{Name: "model", Estimator: est},
	), nil
}

// factory adapts Build for cross-validation.
func (c Candidate) factory(params map[string]any) model_selection.EstimatorFactory {
	return func() (model.Estimator, error) {
		return c.Build(params)
	}
}
