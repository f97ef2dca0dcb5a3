package linear_model

import (
	"encoding/gob"
	"fmt"
	"math"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

func init() {
	gob.Register(&LogisticRegression{})
}

// LogisticRegression is L2-regularised logistic regression fitted with L-BFGS.
// Two classes use the sigmoid, more than two the multinomial softmax.
type LogisticRegression struct {
	model.StateManager

	// Hyperparameters
	C            float64 // Inverse regularization strength
	FitIntercept bool
	MaxIter      int
	Tol          float64 // Gradient infinity-norm threshold

	// Model parameters
	Classes []float64
	Coef    [][]float64 // 1 x n_features for binary, n_classes x n_features otherwise
	Bias    []float64
	NIter   int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		C:            1.0,
		FitIntercept: true,
		MaxIter:      1000,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of L-BFGS iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	if lr.C <= 0 || math.IsNaN(lr.C) {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", lr.MaxIter)
	}

	labels := mat.Col(nil, 0, y)
	classes := metrics.Labels(mat.NewVecDense(len(labels), labels))
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(classes)))
	}
	target := make([]int, nSamples)
	index := make(map[float64]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	for i, v := range labels {
		target[i] = index[v]
	}

	p := &logisticProblem{
		X:         mat.DenseCopyOf(X),
		y:         target,
		nFeatures: nFeatures,
		nOutputs:  len(classes),
		intercept: lr.FitIntercept,
		alpha:     1 / (lr.C * float64(nSamples)),
	}
	if len(classes) == 2 {
		p.nOutputs = 1
	}

	x0 := make([]float64, p.nOutputs*(nFeatures+1))
	settings := &optimize.Settings{
		MajorIterations:   lr.MaxIter,
		GradientThreshold: lr.Tol,
	}
	result, optErr := optimize.Minimize(optimize.Problem{Func: p.loss, Grad: p.grad}, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", optErr)
	}
	if optErr != nil || result.Status == optimize.IterationLimit {
		msg := "lbfgs failed to converge; increase max_iter or scale the data"
		if optErr != nil {
			msg = optErr.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations, msg))
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewModelError("LogisticRegression.Fit", "numerical instability",
				errors.NewValueError("LogisticRegression.Fit", "non-finite coefficients"))
		}
	}

	lr.Classes = classes
	lr.Coef = make([][]float64, p.nOutputs)
	lr.Bias = make([]float64, p.nOutputs)
	for k := 0; k < p.nOutputs; k++ {
		w, b := p.unpack(result.X, k)
		lr.Coef[k] = append([]float64(nil), w...)
		lr.Bias[k] = b
	}
	lr.NIter = result.Stats.MajorIterations
	lr.SetFitted(nFeatures, nSamples)
	return nil
}

// logisticProblem holds the data of one fit. Parameters are laid out per
// output as [w_1 .. w_d, b].
type logisticProblem struct {
	X         *mat.Dense
	y         []int
	nFeatures int
	nOutputs  int
	intercept bool
	alpha     float64
}

func (p *logisticProblem) unpack(x []float64, k int) ([]float64, float64) {
	off := k * (p.nFeatures + 1)
	return x[off : off+p.nFeatures], x[off+p.nFeatures]
}

// scores returns the n x nOutputs decision values.
func (p *logisticProblem) scores(x []float64) *mat.Dense {
	n, _ := p.X.Dims()
	W := mat.NewDense(p.nOutputs, p.nFeatures, nil)
	for k := 0; k < p.nOutputs; k++ {
		w, _ := p.unpack(x, k)
		W.SetRow(k, w)
	}
	var z mat.Dense
	z.Mul(p.X, W.T())
	for k := 0; k < p.nOutputs; k++ {
		_, b := p.unpack(x, k)
		for i := 0; i < n; i++ {
			z.Set(i, k, z.At(i, k)+b)
		}
	}
	return &z
}

func (p *logisticProblem) penalty(x []float64) float64 {
	s := 0.0
	for k := 0; k < p.nOutputs; k++ {
		w, _ := p.unpack(x, k)
		for _, v := range w {
			s += v * v
		}
	}
	return 0.5 * p.alpha * s
}

func (p *logisticProblem) loss(x []float64) float64 {
	z := p.scores(x)
	n, _ := z.Dims()
	total := 0.0
	row := make([]float64, p.nOutputs)
	for i := 0; i < n; i++ {
		if p.nOutputs == 1 {
			zi := z.At(i, 0)
			// log(1+exp(z)) - y*z
			total += softplus(zi) - float64(p.y[i])*zi
			continue
		}
		mat.Row(row, i, z)
		total += errors.LogSumExp(row) - row[p.y[i]]
	}
	return total/float64(n) + p.penalty(x)
}

func (p *logisticProblem) grad(g, x []float64) {
	z := p.scores(x)
	n, _ := z.Dims()
	// residual r_ik = P(k|x_i) - 1[y_i = k]
	r := mat.NewDense(n, p.nOutputs, nil)
	row := make([]float64, p.nOutputs)
	for i := 0; i < n; i++ {
		if p.nOutputs == 1 {
			r.Set(i, 0, sigmoid(z.At(i, 0))-float64(p.y[i]))
			continue
		}
		mat.Row(row, i, z)
		lse := errors.LogSumExp(row)
		for k := range row {
			v := math.Exp(row[k] - lse)
			if k == p.y[i] {
				v--
			}
			r.Set(i, k, v)
		}
	}
	var gw mat.Dense
	gw.Mul(r.T(), p.X)
	inv := 1 / float64(n)
	for k := 0; k < p.nOutputs; k++ {
		off := k * (p.nFeatures + 1)
		w, _ := p.unpack(x, k)
		for j := 0; j < p.nFeatures; j++ {
			g[off+j] = gw.At(k, j)*inv + p.alpha*w[j]
		}
		g[off+p.nFeatures] = 0
		if p.intercept {
			s := 0.0
			for i := 0; i < n; i++ {
				s += r.At(i, k)
			}
			g[off+p.nFeatures] = s * inv
		}
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// DecisionFunction returns the raw linear scores, n x 1 for binary problems.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := lr.CheckFeatures("LogisticRegression.DecisionFunction", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, len(lr.Coef), nil)
	for k, w := range lr.Coef {
		var col mat.VecDense
		col.MulVec(X, mat.NewVecDense(len(w), w))
		for i := 0; i < n; i++ {
			out.Set(i, k, col.AtVec(i)+lr.Bias[k])
		}
	}
	return out, nil
}

// PredictProba returns class probabilities with columns ordered as Classes.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	z, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := z.Dims()
	proba := mat.NewDense(n, len(lr.Classes), nil)
	row := make([]float64, len(lr.Coef))
	for i := 0; i < n; i++ {
		if len(lr.Coef) == 1 {
			p1 := sigmoid(z.At(i, 0))
			proba.Set(i, 0, 1-p1)
			proba.Set(i, 1, p1)
			continue
		}
		mat.Row(row, i, z)
		lse := errors.LogSumExp(row)
		for k := range row {
			proba.Set(i, k, math.Exp(row[k]-lse))
		}
	}
	return proba, nil
}

// Predict returns the most probable class label for each row.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, lr.Classes[best])
	}
	return out, nil
}

// Score returns the accuracy on X, y.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// GetParams returns the model's hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams sets the model's hyperparameters.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var ok bool
		switch k {
		case "C":
			lr.C, ok = v.(float64)
		case "fit_intercept":
			lr.FitIntercept, ok = v.(bool)
		case "max_iter":
			lr.MaxIter, ok = v.(int)
		case "tol":
			lr.Tol, ok = v.(float64)
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
		if !ok {
			return errors.NewValidationError(k, "invalid type", v)
		}
	}
	return nil
}

// String returns the string representation of the model
func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(C=%g, fit_intercept=%t, max_iter=%d)", lr.C, lr.FitIntercept, lr.MaxIter)
}
