package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// ObjectiveType represents the objective function type
type ObjectiveType string

const (
	RegressionL2      ObjectiveType = "regression"
	BinaryLogistic    ObjectiveType = "binary"
	MulticlassSoftmax ObjectiveType = "multiclass"
)

// ObjectiveFunction supplies first and second order gradients of a loss.
// Scores are laid out sample-major: scores[i*K+k] for K outputs.
type ObjectiveFunction interface {
	// NumOutputs is the number of trees grown per boosting iteration.
	NumOutputs() int

	// InitScores returns the per-output baseline prediction.
	InitScores(targets []float64) []float64

	// Gradients fills grad and hess, both len(targets)*NumOutputs().
	Gradients(targets, scores, grad, hess []float64)

	// Loss returns the mean loss.
	Loss(targets, scores []float64) float64

	// Transform maps one sample's raw scores to the output space in place.
	Transform(raw []float64)

	Name() ObjectiveType
}

// CreateObjectiveFunction returns the objective for name. numClass is only
// read for multiclass.
func CreateObjectiveFunction(name ObjectiveType, numClass int) (ObjectiveFunction, error) {
	switch name {
	case RegressionL2, "l2", "mse", "":
		return &L2Objective{}, nil
	case BinaryLogistic:
		return &BinaryObjective{}, nil
	case MulticlassSoftmax, "softmax":
		if numClass < 2 {
			return nil, errors.NewValidationError("num_class", "multiclass requires num_class >= 2", numClass)
		}
		return &MulticlassObjective{NumClass: numClass}, nil
	default:
		return nil, errors.NewValidationError("objective", "unsupported objective", string(name))
	}
}

// L2Objective implements L2 (Mean Squared Error) loss
type L2Objective struct{}

func (o *L2Objective) NumOutputs() int { return 1 }

func (o *L2Objective) InitScores(targets []float64) []float64 {
	if len(targets) == 0 {
		return []float64{0}
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	return []float64{sum / float64(len(targets))}
}

func (o *L2Objective) Gradients(targets, scores, grad, hess []float64) {
	for i, t := range targets {
		grad[i] = scores[i] - t
		hess[i] = 1.0
	}
}

func (o *L2Objective) Loss(targets, scores []float64) float64 {
	sum := 0.0
	for i, t := range targets {
		d := scores[i] - t
		sum += 0.5 * d * d
	}
	return sum / float64(len(targets))
}

func (o *L2Objective) Transform([]float64) {}

func (o *L2Objective) Name() ObjectiveType { return RegressionL2 }

// BinaryObjective implements log loss on labels {0, 1}.
type BinaryObjective struct{}

func (o *BinaryObjective) NumOutputs() int { return 1 }

// InitScores boosts from the log-odds of the positive rate.
func (o *BinaryObjective) InitScores(targets []float64) []float64 {
	pos := 0.0
	for _, t := range targets {
		pos += t
	}
	p := clampProb(pos / float64(len(targets)))
	return []float64{math.Log(p / (1 - p))}
}

func (o *BinaryObjective) Gradients(targets, scores, grad, hess []float64) {
	for i, t := range targets {
		p := sigmoid(scores[i])
		grad[i] = p - t
		hess[i] = math.Max(p*(1-p), 1e-16)
	}
}

func (o *BinaryObjective) Loss(targets, scores []float64) float64 {
	sum := 0.0
	for i, t := range targets {
		p := clampProb(sigmoid(scores[i]))
		sum -= t*math.Log(p) + (1-t)*math.Log(1-p)
	}
	return sum / float64(len(targets))
}

func (o *BinaryObjective) Transform(raw []float64) { raw[0] = sigmoid(raw[0]) }

func (o *BinaryObjective) Name() ObjectiveType { return BinaryLogistic }

// MulticlassObjective implements softmax cross entropy on labels 0..NumClass-1.
type MulticlassObjective struct {
	NumClass int
}

func (o *MulticlassObjective) NumOutputs() int { return o.NumClass }

// InitScores starts from the log class priors.
func (o *MulticlassObjective) InitScores(targets []float64) []float64 {
	counts := make([]float64, o.NumClass)
	for _, t := range targets {
		counts[int(t)]++
	}
	out := make([]float64, o.NumClass)
	for k, c := range counts {
		out[k] = math.Log(clampProb(c / float64(len(targets))))
	}
	return out
}

func (o *MulticlassObjective) Gradients(targets, scores, grad, hess []float64) {
	k := o.NumClass
	// K/(K-1) matches LightGBM's hessian scaling
	factor := float64(k) / float64(k-1)
	p := make([]float64, k)
	for i, t := range targets {
		copy(p, scores[i*k:(i+1)*k])
		softmaxInPlace(p)
		for c := 0; c < k; c++ {
			g := p[c]
			if c == int(t) {
				g--
			}
			grad[i*k+c] = g
			hess[i*k+c] = math.Max(factor*p[c]*(1-p[c]), 1e-16)
		}
	}
}

func (o *MulticlassObjective) Loss(targets, scores []float64) float64 {
	k := o.NumClass
	sum := 0.0
	for i, t := range targets {
		row := scores[i*k : (i+1)*k]
		sum += errors.LogSumExp(row) - row[int(t)]
	}
	return sum / float64(len(targets))
}

func (o *MulticlassObjective) Transform(raw []float64) { softmaxInPlace(raw) }

func (o *MulticlassObjective) Name() ObjectiveType { return MulticlassSoftmax }

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func softmaxInPlace(x []float64) {
	lse := errors.LogSumExp(x)
	for i, v := range x {
		x[i] = math.Exp(v - lse)
	}
}

func clampProb(p float64) float64 {
	const eps = 1e-15
	return math.Min(math.Max(p, eps), 1-eps)
}
