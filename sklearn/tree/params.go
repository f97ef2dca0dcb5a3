// Package tree implements CART decision trees for classification and
// regression, the building block of the random forest ensembles.
package tree

import (
	"github.com/YuminosukeSato/automl/pkg/errors"
)

// Split criteria.
const (
	CriterionGini         = "gini"
	CriterionEntropy      = "entropy"
	CriterionSquaredError = "squared_error"
)

// Values for Params.MaxFeatures. Anything else means all features.
const (
	MaxFeaturesNone = "none"
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// Params are the hyperparameters shared by both tree estimators.
type Params struct {
	Criterion       string
	MaxDepth        int // <= 0: unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	RandomState     int64
}

// Option configures a tree estimator.
type Option func(*Params)

// WithCriterion sets the split criterion.
func WithCriterion(c string) Option { return func(p *Params) { p.Criterion = c } }

// WithMaxDepth limits the depth of the tree. Zero or less means unlimited.
func WithMaxDepth(d int) Option { return func(p *Params) { p.MaxDepth = d } }

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option { return func(p *Params) { p.MinSamplesSplit = n } }

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option { return func(p *Params) { p.MinSamplesLeaf = n } }

// WithMaxFeatures sets how many features are considered per split: "sqrt",
// "log2" or "none".
func WithMaxFeatures(s string) Option { return func(p *Params) { p.MaxFeatures = s } }

// WithRandomState seeds the feature permutation.
func WithRandomState(seed int64) Option { return func(p *Params) { p.RandomState = seed } }

func (p Params) validate(classifier bool) error {
	switch p.Criterion {
	case CriterionGini, CriterionEntropy:
		if !classifier {
			return errors.NewValidationError("criterion", "regression trees support squared_error only", p.Criterion)
		}
	case CriterionSquaredError:
		if classifier {
			return errors.NewValidationError("criterion", "must be gini or entropy", p.Criterion)
		}
	default:
		return errors.NewValidationError("criterion", "unknown criterion", p.Criterion)
	}
	switch p.MaxFeatures {
	case "", MaxFeaturesNone, MaxFeaturesSqrt, MaxFeaturesLog2:
	default:
		return errors.NewValidationError("max_features", "must be none, sqrt or log2", p.MaxFeatures)
	}
	if p.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.MinSamplesLeaf)
	}
	return nil
}

func (p Params) params() map[string]interface{} {
	maxFeatures := p.MaxFeatures
	if maxFeatures == "" {
		maxFeatures = MaxFeaturesNone
	}
	return map[string]interface{}{
		"criterion":         p.Criterion,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      maxFeatures,
		"random_state":      p.RandomState,
	}
}

func (p *Params) set(params map[string]interface{}) error {
	for k, v := range params {
		var ok bool
		switch k {
		case "criterion":
			p.Criterion, ok = v.(string)
		case "max_features":
			p.MaxFeatures, ok = v.(string)
		case "max_depth":
			p.MaxDepth, ok = v.(int)
		case "min_samples_split":
			p.MinSamplesSplit, ok = v.(int)
		case "min_samples_leaf":
			p.MinSamplesLeaf, ok = v.(int)
		case "random_state":
			var seed int
			if seed, ok = v.(int); ok {
				p.RandomState = int64(seed)
			} else {
				p.RandomState, ok = v.(int64)
			}
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
		if !ok {
			return errors.NewValidationError(k, "invalid type", v)
		}
	}
	return nil
}
