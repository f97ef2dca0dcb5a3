// Package ensemble implements bagged random forests over CART trees.
package ensemble

import (
	"context"
	"encoding/gob"
	"math/rand/v2"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/core/parallel"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&RandomForestClassifier{})
	gob.Register(&RandomForestRegressor{})
}

// ForestParams are the hyperparameters shared by both forests.
type ForestParams struct {
	NEstimators     int
	MaxDepth        int // <= 0: unlimited
	MaxFeatures     string
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	RandomState     int64
	NJobs           int
}

// Option configures a forest.
type Option func(*ForestParams)

// WithNEstimators sets the number of trees. The default is 100.
func WithNEstimators(n int) Option {
	return func(p *ForestParams) { p.NEstimators = n }
}

// WithMaxDepth limits tree depth. Zero or less leaves depth unlimited.
func WithMaxDepth(d int) Option {
	return func(p *ForestParams) { p.MaxDepth = d }
}

// WithMaxFeatures sets the features tried per split: "sqrt", "log2" or "none" for all.
func WithMaxFeatures(s string) Option {
	return func(p *ForestParams) { p.MaxFeatures = s }
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *ForestParams) { p.MinSamplesLeaf = n }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *ForestParams) { p.MinSamplesSplit = n }
}

// WithBootstrap toggles sampling rows with replacement for each tree.
func WithBootstrap(b bool) Option {
	return func(p *ForestParams) { p.Bootstrap = b }
}

// WithRandomState seeds row and feature sampling.
func WithRandomState(seed int64) Option {
	return func(p *ForestParams) { p.RandomState = seed }
}

// WithNJobs bounds how many trees are fitted concurrently. Zero or less uses every CPU.
func WithNJobs(n int) Option {
	return func(p *ForestParams) { p.NJobs = n }
}

func defaultParams(maxFeatures string, opts []Option) ForestParams {
	p := ForestParams{
		NEstimators:     100,
		MaxFeatures:     maxFeatures,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p ForestParams) validate() error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	}
	return nil
}

func (p ForestParams) treeOptions(seed int64) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(p.MaxDepth),
		tree.WithMaxFeatures(p.MaxFeatures),
		tree.WithMinSamplesSplit(p.MinSamplesSplit),
		tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
		tree.WithRandomState(seed),
	}
}

// sample draws the rows for tree t. Each tree has its own seed so fitting
// order does not change the result.
func (p ForestParams) sample(t int, X, y mat.Matrix) (mat.Matrix, mat.Matrix, int64) {
	seed := p.RandomState*1_000_003 + int64(t)
	if !p.Bootstrap {
		return X, y, seed
	}
	r, c := X.Dims()
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(t)))
	Xb := mat.NewDense(r, c, nil)
	yb := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		k := rng.IntN(r)
		mat.Row(row, k, X)
		Xb.SetRow(i, row)
		yb.Set(i, 0, y.At(k, 0))
	}
	return Xb, yb, seed
}

func (p ForestParams) params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.NEstimators,
		"max_depth":         p.MaxDepth,
		"max_features":      p.MaxFeatures,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"bootstrap":         p.Bootstrap,
		"random_state":      p.RandomState,
		"n_jobs":            p.NJobs,
	}
}

func (p *ForestParams) set(params map[string]interface{}) error {
	for k, v := range params {
		var ok bool
		switch k {
		case "n_estimators":
			p.NEstimators, ok = v.(int)
		case "max_depth":
			p.MaxDepth, ok = v.(int)
		case "max_features":
			p.MaxFeatures, ok = v.(string)
		case "min_samples_split":
			p.MinSamplesSplit, ok = v.(int)
		case "min_samples_leaf":
			p.MinSamplesLeaf, ok = v.(int)
		case "bootstrap":
			p.Bootstrap, ok = v.(bool)
		case "n_jobs":
			p.NJobs, ok = v.(int)
		case "random_state":
			var seed int
			if seed, ok = v.(int); ok {
				p.RandomState = int64(seed)
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

// RandomForestClassifier averages the class probabilities of bagged trees.
type RandomForestClassifier struct {
	model.StateManager
	ForestParams

	Classes     []float64
	Estimators  []*tree.DecisionTreeClassifier
	Importances []float64
}

// NewRandomForestClassifier returns a 100-tree forest considering sqrt(n_features) per split.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{ForestParams: defaultParams(tree.MaxFeaturesSqrt, opts)}
}

// Fit fits NEstimators trees in parallel.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")
	if err := rf.validate(); err != nil {
		return err
	}
	r, c := X.Dims()
	if ry, _ := y.Dims(); ry != r {
		return errors.NewDimensionError("RandomForestClassifier.Fit", r, ry, 0)
	}
	labels := make([]float64, r)
	for i := range labels {
		labels[i] = y.At(i, 0)
	}
	classes := metrics.Labels(mat.NewVecDense(r, labels))

	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	err = parallel.ForEach(context.Background(), rf.NEstimators, rf.NJobs, func(_ context.Context, t int) error {
		Xb, yb, seed := rf.sample(t, X, y)
		dt := tree.NewDecisionTreeClassifier(rf.treeOptions(seed)...).WithClasses(classes)
		if err := dt.Fit(Xb, yb); err != nil {
			return err
		}
		trees[t] = dt
		return nil
	})
	if err != nil {
		return errors.NewModelError("RandomForestClassifier.Fit", "tree fit failed", err)
	}

	rf.Classes = classes
	rf.Estimators = trees
	rf.Importances = meanImportances(c, len(trees), func(i int) []float64 { return trees[i].Importances })
	rf.SetFitted(c, r)
	return nil
}

// PredictProba averages the per-tree class probabilities.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.CheckFeatures("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	sum := mat.NewDense(r, len(rf.Classes), nil)
	for _, dt := range rf.Estimators {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.Estimators)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxLabels(proba, rf.Classes), nil
}

// Score returns the accuracy on X, y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// FeatureImportances returns the mean impurity decrease over all trees.
func (rf *RandomForestClassifier) FeatureImportances() ([]float64, error) {
	if err := rf.RequireFitted("RandomForestClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), rf.Importances...), nil
}

func (rf *RandomForestClassifier) GetParams() map[string]interface{} { return rf.ForestParams.params() }

func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	return rf.ForestParams.set(params)
}

// RandomForestRegressor averages the predictions of bagged regression trees.
type RandomForestRegressor struct {
	model.StateManager
	ForestParams

	Estimators  []*tree.DecisionTreeRegressor
	Importances []float64
}

// NewRandomForestRegressor returns a 100-tree forest considering every feature per split.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{ForestParams: defaultParams(tree.MaxFeaturesNone, opts)}
}

// Fit fits NEstimators trees in parallel.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")
	if err := rf.validate(); err != nil {
		return err
	}
	r, c := X.Dims()
	if ry, _ := y.Dims(); ry != r {
		return errors.NewDimensionError("RandomForestRegressor.Fit", r, ry, 0)
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	err = parallel.ForEach(context.Background(), rf.NEstimators, rf.NJobs, func(_ context.Context, t int) error {
		Xb, yb, seed := rf.sample(t, X, y)
		dt := tree.NewDecisionTreeRegressor(rf.treeOptions(seed)...)
		if err := dt.Fit(Xb, yb); err != nil {
			return err
		}
		trees[t] = dt
		return nil
	})
	if err != nil {
		return errors.NewModelError("RandomForestRegressor.Fit", "tree fit failed", err)
	}

	rf.Estimators = trees
	rf.Importances = meanImportances(c, len(trees), func(i int) []float64 { return trees[i].Importances })
	rf.SetFitted(c, r)
	return nil
}

// Predict returns the mean tree prediction.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := rf.CheckFeatures("RandomForestRegressor.Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	sum := mat.NewDense(r, 1, nil)
	for _, dt := range rf.Estimators {
		p, err := dt.Predict(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.Estimators)), sum)
	return sum, nil
}

// Score returns R² on X, y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns the mean variance reduction over all trees.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := rf.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), rf.Importances...), nil
}

func (rf *RandomForestRegressor) GetParams() map[string]interface{} { return rf.ForestParams.params() }

func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return rf.ForestParams.set(params)
}

// meanImportances averages per-tree importances and renormalises to sum 1.
func meanImportances(nFeatures, nTrees int, get func(i int) []float64) []float64 {
	out := make([]float64, nFeatures)
	for t := 0; t < nTrees; t++ {
		for j, v := range get(t) {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
