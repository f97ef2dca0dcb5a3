package lightgbm

import (
	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LGBMClassifier implements a LightGBM classifier with scikit-learn compatible API
type LGBMClassifier struct {
	model.StateManager
	Params

	Model   *Model
	Classes []float64
}

// NewLGBMClassifier creates a new LightGBM classifier with default parameters
func NewLGBMClassifier() *LGBMClassifier {
	return &LGBMClassifier{Params: DefaultParams()}
}

// WithNumLeaves sets the maximum number of leaves
func (lgb *LGBMClassifier) WithNumLeaves(n int) *LGBMClassifier {
	lgb.NumLeaves = n
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMClassifier) WithLearningRate(lr float64) *LGBMClassifier {
	lgb.LearningRate = lr
	return lgb
}

// WithNEstimators sets the number of boosting iterations
func (lgb *LGBMClassifier) WithNEstimators(n int) *LGBMClassifier {
	lgb.NEstimators = n
	return lgb
}

// Fit trains a binary model for two classes and a softmax model otherwise
func (lgb *LGBMClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMClassifier.Fit")

	m, classes, err := TrainClassifier(lgb.TrainingParams(BinaryLogistic, 0), X, y)
	if err != nil {
		return errors.NewModelError("LGBMClassifier.Fit", "training failed", err)
	}
	lgb.Model = m
	lgb.Classes = classes
	rows, cols := X.Dims()
	lgb.SetFitted(cols, rows)
	return nil
}

// PredictProba returns class probabilities with columns ordered as Classes
func (lgb *LGBMClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lgb.RequireFitted("LGBMClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	return lgb.Model.PredictProba(X)
}

// Predict returns the most probable class label for each row
func (lgb *LGBMClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lgb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ProbaToLabels(proba, lgb.Classes), nil
}

// Score returns the accuracy on X, y
func (lgb *LGBMClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lgb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// FeatureImportances returns normalised split counts per feature
func (lgb *LGBMClassifier) FeatureImportances() ([]float64, error) {
	if err := lgb.RequireFitted("LGBMClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return lgb.Model.GetFeatureImportance("split"), nil
}

// TrainClassifier encodes the labels of y, picks the binary or multiclass
// objective and trains. The objective in params is overridden.
func TrainClassifier(params TrainingParams, X, y mat.Matrix) (*Model, []float64, error) {
	rows, _ := y.Dims()
	labels := mat.Col(nil, 0, y)
	classes := metrics.Labels(mat.NewVecDense(rows, labels))
	if len(classes) < 2 {
		return nil, nil, errors.NewValueError("lightgbm.TrainClassifier", "needs samples of at least 2 classes")
	}
	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := mat.NewDense(rows, 1, nil)
	for i, v := range labels {
		encoded.Set(i, 0, float64(index[v]))
	}

	params.Objective = BinaryLogistic
	params.NumClass = 0
	if len(classes) > 2 {
		params.Objective = MulticlassSoftmax
		params.NumClass = len(classes)
	}
	m, err := NewTrainer(params).Train(X, encoded)
	if err != nil {
		return nil, nil, err
	}
	return m, classes, nil
}

// ProbaToLabels maps each row of proba to the class with the highest
// probability, the first one on ties.
func ProbaToLabels(proba mat.Matrix, classes []float64) *mat.Dense {
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}
