package tree

import (
	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DecisionTreeRegressor is a CART regressor minimising squared error.
type DecisionTreeRegressor struct {
	model.StateManager
	Params

	Tree        *Tree
	Importances []float64
}

// NewDecisionTreeRegressor returns a squared-error tree with unlimited depth.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	p := Params{Criterion: CriterionSquaredError, MinSamplesSplit: 2, MinSamplesLeaf: 1, MaxFeatures: MaxFeaturesNone}
	for _, opt := range opts {
		opt(&p)
	}
	return &DecisionTreeRegressor{Params: p}
}

// Fit grows the tree on X and the n×1 target matrix y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	if err := dt.Params.validate(false); err != nil {
		return err
	}
	target, err := targetColumn("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	b := newBuilder(X, target, 0, dt.Params)
	dt.Tree, dt.Importances = b.build()
	r, c := X.Dims()
	dt.SetFitted(c, r)
	return nil
}

// Predict returns the leaf mean for every row.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.CheckFeatures("DecisionTreeRegressor.Predict", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, dt.Tree.Nodes[dt.Tree.Apply(row)].Value[0])
	}
	return out, nil
}

// Score returns R² on X, y.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns the normalised variance reduction per feature.
func (dt *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := dt.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), dt.Importances...), nil
}

// GetParams returns the hyperparameters with scikit-learn names.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} { return dt.Params.params() }

// SetParams updates hyperparameters by scikit-learn name.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.Params.set(params)
}
