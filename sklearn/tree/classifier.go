package tree

import (
	"encoding/gob"
	"sort"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&DecisionTreeClassifier{})
	gob.Register(&DecisionTreeRegressor{})
}

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	model.StateManager
	Params

	// Classes are the sorted class labels; PredictProba columns follow them.
	Classes     []float64
	Tree        *Tree
	Importances []float64

	fixedClasses []float64
}

// NewDecisionTreeClassifier returns a gini tree with unlimited depth.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	p := Params{Criterion: CriterionGini, MinSamplesSplit: 2, MinSamplesLeaf: 1, MaxFeatures: MaxFeaturesNone}
	for _, opt := range opts {
		opt(&p)
	}
	return &DecisionTreeClassifier{Params: p}
}

// WithClasses fixes the class list, so trees fit on a subsample still emit
// probabilities over every class. Labels of y must belong to classes.
func (dt *DecisionTreeClassifier) WithClasses(classes []float64) *DecisionTreeClassifier {
	dt.fixedClasses = append([]float64(nil), classes...)
	sort.Float64s(dt.fixedClasses)
	return dt
}

// Fit grows the tree on X and the n×1 label matrix y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.Params.validate(true); err != nil {
		return err
	}
	labels, err := targetColumn("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	classes := dt.fixedClasses
	if classes == nil {
		classes = uniqueSorted(labels)
	}
	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]float64, len(labels))
	for i, l := range labels {
		k, ok := index[l]
		if !ok {
			return errors.NewValueError("DecisionTreeClassifier.Fit", "label outside the fixed class list")
		}
		encoded[i] = float64(k)
	}

	b := newBuilder(X, encoded, len(classes), dt.Params)
	dt.Tree, dt.Importances = b.build()
	dt.Classes = classes
	r, c := X.Dims()
	dt.SetFitted(c, r)
	return nil
}

// PredictProba returns class probabilities, one column per entry of Classes.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.CheckFeatures("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, len(dt.Classes), nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.Tree.Nodes[dt.Tree.Apply(row)].Value)
	}
	return out, nil
}

// Predict returns the most probable class per row; ties go to the smaller label.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ArgmaxLabels(proba, dt.Classes), nil
}

// Score returns the accuracy on X, y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// FeatureImportances returns the normalised impurity decrease per feature.
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if err := dt.RequireFitted("DecisionTreeClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), dt.Importances...), nil
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.NLeaves()
}

// GetParams returns the hyperparameters with scikit-learn names.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} { return dt.Params.params() }

// SetParams updates hyperparameters by scikit-learn name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.Params.set(params)
}

// ArgmaxLabels maps each row of proba to the label of its largest column.
func ArgmaxLabels(proba mat.Matrix, classes []float64) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}

func targetColumn(op string, X, y mat.Matrix) ([]float64, error) {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, errors.NewDimensionError(op, 1, cy, 1)
	}
	if err := errors.CheckMatrix(op, X, r, c); err != nil {
		return nil, err
	}
	out := make([]float64, r)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out, nil
}

func uniqueSorted(v []float64) []float64 {
	seen := make(map[float64]struct{}, len(v))
	out := make([]float64, 0)
	for _, x := range v {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}
