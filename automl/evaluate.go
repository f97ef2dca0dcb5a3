package automl

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/sklearn/model_selection"
)

// EvalOptions controls Evaluate and the cross-validation inside Tune.
type EvalOptions struct {
	Folds int
	Seed  int
	// NJobs bounds concurrent folds; 0 means NumCPU.
	NJobs  int
	Logger log.Logger
}

// DefaultEvalOptions returns 5 folds seeded with 42.
func DefaultEvalOptions() EvalOptions {
	return EvalOptions{Folds: 5, Seed: 42}
}

func (o EvalOptions) logger(name string) log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.GetLoggerWithName(name)
}

// CandidateResult is the cross-validation outcome of one candidate.
type CandidateResult struct {
	Name   string
	Kind   ModelKind
	Scores []float64
	Mean   float64
	Std    float64
}

// Evaluation holds every candidate's result in registry order and the
// selected candidate.
type Evaluation struct {
	Results []CandidateResult
	Best    Candidate
}

// Order returns the candidate names in evaluation order.
func (e *Evaluation) Order() []string {
	out := make([]string, len(e.Results))
	for i, r := range e.Results {
		out[i] = r.Name
	}
	return out
}

// Means returns candidate name -> mean CV score.
func (e *Evaluation) Means() map[string]float64 {
	out := make(map[string]float64, len(e.Results))
	for _, r := range e.Results {
		out[r.Name] = r.Mean
	}
	return out
}

// crossValidate runs the task's k-fold scheme for one parameter set.
func crossValidate(ctx context.Context, c Candidate, params map[string]any, X, y mat.Matrix, opts EvalOptions) (*model_selection.CVResult, error) {
	scorer, err := model_selection.GetScorer(c.Task.Scoring())
	if err != nil {
		return nil, err
	}
	return model_selection.CrossValScore(ctx, c.factory(params), X, y,
		c.Task.Splitter(opts.Folds, opts.Seed), scorer, opts.NJobs)
}

// Evaluate cross-validates each candidate with registry defaults on the
// training rows, one candidate at a time, and selects the best mean score.
// Scores are greater-is-better: accuracy for classification, negative RMSE
// for regression.
func Evaluate(ctx context.Context, candidates []Candidate, X, y mat.Matrix, task TaskType, opts EvalOptions) (*Evaluation, error) {
	logger := opts.logger("automl.evaluate")
	if len(candidates) == 0 {
		return nil, errors.NewValueError("Evaluate", "no candidates")
	}
	eval := &Evaluation{Results: make([]CandidateResult, 0, len(candidates))}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.Task != task {
			return nil, errors.NewValueError("Evaluate", c.Name+" is registered for "+string(c.Task))
		}
		start := time.Now()
		cv, err := crossValidate(ctx, c, nil, X, y, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "cross-validate %s", c.Name)
		}
		res := CandidateResult{
			Name:   c.Name,
			Kind:   c.Kind,
			Scores: cv.TestScores,
			Mean:   cv.GetMeanScore(),
			Std:    cv.GetStdScore(),
		}
		eval.Results = append(eval.Results, res)
		logger.Info("candidate evaluated",
			log.ModelNameKey, c.Name,
			log.CVScoresKey, res.Scores,
			log.CVMeanKey, res.Mean,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}

	best, err := SelectBest(eval.Order(), eval.Means())
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.Name == best {
			eval.Best = c
		}
	}
	logger.Info("best candidate selected", log.ModelNameKey, best)
	return eval, nil
}

// SelectBest returns the name with the greatest score. Ties go to the name
// that comes first in order; NaN scores never win.
func SelectBest(order []string, scores map[string]float64) (string, error) {
	best := ""
	bestScore := math.Inf(-1)
	for _, name := range order {
		s, ok := scores[name]
		if !ok || math.IsNaN(s) {
			continue
		}
		if best == "" || s > bestScore {
			best, bestScore = name, s
		}
	}
	if best == "" {
		return "", errors.NewValueError("SelectBest", "no candidate has a score")
	}
	return best, nil
}
