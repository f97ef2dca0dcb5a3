// Package pipeline chains transformers and a final estimator, in the manner
// of sklearn.pipeline.Pipeline.
package pipeline

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/pkg/errors"
)

func init() {
	gob.Register(&Pipeline{})
}

// Step represents a single step in the pipeline.
// Each step is a tuple of (name, transformer/estimator).
type Step struct {
	Name      string      // Name of this step (for identification)
	Estimator interface{} // Can be Transformer or Estimator
}

// Pipeline chains multiple transforms and a final estimator.
// Intermediate steps must be transformers; the final step must be an estimator.
//
// Steps are exported so a fitted pipeline can be persisted with encoding/gob
// once every step type is registered.
type Pipeline struct {
	model.StateManager

	Steps []Step
}

// New creates a new Pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{Steps: steps}
}

// Make is a convenience function similar to sklearn.pipeline.make_pipeline
// It automatically generates names for the steps.
func Make(estimators ...interface{}) *Pipeline {
	steps := make([]Step, len(estimators))
	for i, estimator := range estimators {
		steps[i] = Step{Name: fmt.Sprintf("step%d", i+1), Estimator: estimator}
	}
	return New(steps...)
}

// Fit fits all the transformers one after the other, transforming the
// data, then fits the final estimator.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	if len(p.Steps) == 0 {
		return errors.NewValidationError("steps", "pipeline has no steps", 0)
	}
	Xt := X
	var err error

	for i := 0; i < len(p.Steps)-1; i++ {
		step := p.Steps[i]
		transformer, ok := step.Estimator.(model.Transformer)
		if !ok {
			return errors.NewValidationError(
				"pipeline step",
				"all intermediate steps must be transformers",
				step.Name,
			)
		}
		if Xt, err = transformer.FitTransform(Xt); err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to fit step '%s'", step.Name))
		}
	}

	finalStep := p.Steps[len(p.Steps)-1]
	fitter, ok := finalStep.Estimator.(model.Fitter)
	if !ok {
		return errors.NewValidationError(
			"pipeline final step",
			"final step must have Fit method",
			finalStep.Name,
		)
	}
	if err = fitter.Fit(Xt, y); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to fit final step '%s'", finalStep.Name))
	}

	rows, cols := X.Dims()
	p.SetFitted(cols, rows)
	return nil
}

// Predict applies transforms to the data, and predicts with the final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := p.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	predictor, ok := p.FinalEstimator().(model.Predictor)
	if !ok {
		return nil, errors.NewValidationError("pipeline final step", "final step cannot predict", p.Steps[len(p.Steps)-1].Name)
	}
	return predictor.Predict(Xt)
}

// PredictProba applies transforms and returns the final estimator's class
// probabilities.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := p.RequireFitted("Pipeline", "PredictProba"); err != nil {
		return nil, err
	}
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	proba, ok := p.FinalEstimator().(model.ProbabilityPredictor)
	if !ok {
		return nil, errors.NewValidationError("pipeline final step", "final step has no PredictProba", p.Steps[len(p.Steps)-1].Name)
	}
	return proba.PredictProba(Xt)
}

// FeatureImportances delegates to the final estimator when it exposes them.
// The second result is false when it does not.
func (p *Pipeline) FeatureImportances() ([]float64, bool, error) {
	fi, ok := p.FinalEstimator().(model.FeatureImporter)
	if !ok {
		return nil, false, nil
	}
	imp, err := fi.FeatureImportances()
	return imp, true, err
}

// FinalEstimator returns the last step's estimator, or nil for an empty pipeline.
func (p *Pipeline) FinalEstimator() interface{} {
	if len(p.Steps) == 0 {
		return nil
	}
	return p.Steps[len(p.Steps)-1].Estimator
}

// NamedStep returns the estimator registered under name.
func (p *Pipeline) NamedStep(name string) (interface{}, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s.Estimator, true
		}
	}
	return nil, false
}

// transform runs every intermediate transformer on X.
func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	var err error
	for i := 0; i < len(p.Steps)-1; i++ {
		step := p.Steps[i]
		transformer, ok := step.Estimator.(model.Transformer)
		if !ok {
			return nil, errors.NewValidationError("pipeline step", "all intermediate steps must be transformers", step.Name)
		}
		if Xt, err = transformer.Transform(Xt); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
	}
	return Xt, nil
}

// GetParams returns the final estimator's parameters prefixed with its step
// name, e.g. "model__n_estimators".
func (p *Pipeline) GetParams() map[string]interface{} {
	out := make(map[string]interface{})
	for _, s := range p.Steps {
		if g, ok := s.Estimator.(model.ParameterGetter); ok {
			for k, v := range g.GetParams() {
				out[s.Name+"__"+k] = v
			}
		}
	}
	return out
}
