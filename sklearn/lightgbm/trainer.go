package lightgbm

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/automl/core/parallel"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// GrowPolicy selects which leaf is split next.
type GrowPolicy string

const (
	// LeafWise always splits the leaf with the largest gain (LightGBM).
	LeafWise GrowPolicy = "lossguide"
	// DepthWise splits leaves level by level (XGBoost).
	DepthWise GrowPolicy = "depthwise"
)

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	NumIterations int
	LearningRate  float64
	NumLeaves     int // leaf limit for LeafWise; ignored by DepthWise
	MaxDepth      int // <= 0: unlimited
	MinDataInLeaf int

	// Regularization
	MinSumHessianInLeaf float64
	Lambda              float64 // L2 on leaf values
	MinGainToSplit      float64

	// Sampling
	BaggingFraction float64
	FeatureFraction float64

	MaxBin     int
	GrowPolicy GrowPolicy

	Objective ObjectiveType
	NumClass  int

	Seed       int64
	NumThreads int
	Verbosity  int
}

// Trainer implements the LightGBM training algorithm
type Trainer struct {
	params TrainingParams
	logger log.Logger

	// Data
	X      *mat.Dense
	target []float64
	bins   [][]uint16 // feature-major
	mapper []*BinMapper

	objective ObjectiveFunction
	rng       *rand.Rand
}

// NewTrainer creates a new trainer, filling zero-valued parameters with
// LightGBM's defaults.
func NewTrainer(params TrainingParams) *Trainer {
	if params.NumIterations == 0 {
		params.NumIterations = 100
	}
	if params.LearningRate == 0 {
		params.LearningRate = 0.1
	}
	if params.NumLeaves == 0 {
		params.NumLeaves = 31
	}
	if params.MaxBin == 0 {
		params.MaxBin = 255
	}
	if params.MinDataInLeaf == 0 {
		params.MinDataInLeaf = 20
	}
	if params.MinSumHessianInLeaf == 0 {
		params.MinSumHessianInLeaf = 1e-3
	}
	if params.BaggingFraction == 0 {
		params.BaggingFraction = 1.0
	}
	if params.FeatureFraction == 0 {
		params.FeatureFraction = 1.0
	}
	if params.GrowPolicy == "" {
		params.GrowPolicy = LeafWise
	}
	return &Trainer{
		params: params,
		logger: log.GetLoggerWithName("lightgbm.trainer"),
	}
}

// Params returns the effective parameters.
func (t *Trainer) Params() TrainingParams { return t.params }

func (t *Trainer) validate() error {
	p := t.params
	switch {
	case p.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be >= 1", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.GrowPolicy == LeafWise && p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be >= 2", p.NumLeaves)
	case p.MaxBin < 2 || p.MaxBin > 65535:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", p.MaxBin)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must be >= 0", p.Lambda)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.GrowPolicy != LeafWise && p.GrowPolicy != DepthWise:
		return errors.NewValidationError("grow_policy", "must be lossguide or depthwise", string(p.GrowPolicy))
	}
	return nil
}

// Train fits a boosted ensemble on X and the n×1 target y. Classification
// targets must be encoded 0..NumClass-1.
func (t *Trainer) Train(X, y mat.Matrix) (model *Model, err error) {
	defer errors.Recover(&err, "lightgbm.Trainer.Train")

	if err := t.validate(); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if rows != yRows {
		return nil, errors.NewDimensionError("lightgbm.Trainer.Train", rows, yRows, 0)
	}
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError("lightgbm.Trainer.Train", "empty data", errors.ErrEmptyData)
	}
	obj, err := CreateObjectiveFunction(t.params.Objective, t.params.NumClass)
	if err != nil {
		return nil, err
	}
	t.objective = obj
	t.X = mat.DenseCopyOf(X)
	t.target = mat.Col(nil, 0, y)
	t.rng = rand.New(rand.NewPCG(uint64(t.params.Seed), uint64(t.params.Seed)))
	t.buildBins()

	k := obj.NumOutputs()
	model = &Model{
		Objective:           obj.Name(),
		NumClass:            t.params.NumClass,
		NumTreePerIteration: k,
		NumFeatures:         cols,
		InitScores:          obj.InitScores(t.target),
	}

	scores := make([]float64, rows*k)
	for i := 0; i < rows; i++ {
		copy(scores[i*k:(i+1)*k], model.InitScores)
	}
	grad := make([]float64, rows*k)
	hess := make([]float64, rows*k)
	g := make([]float64, rows)
	h := make([]float64, rows)
	features := make([]float64, cols)

	for iter := 0; iter < t.params.NumIterations; iter++ {
		obj.Gradients(t.target, scores, grad, hess)
		bag := t.sampleRows(rows)
		for c := 0; c < k; c++ {
			for i := 0; i < rows; i++ {
				g[i] = grad[i*k+c]
				h[i] = hess[i*k+c]
			}
			tree := t.buildTree(bag, g, h)
			for i := 0; i < rows; i++ {
				mat.Row(features, i, t.X)
				scores[i*k+c] += tree.Predict(features)
			}
			model.Trees = append(model.Trees, tree)
		}
		if t.params.Verbosity > 0 && iter%10 == 0 {
			t.logger.Debug("Training progress",
				"iteration", iter,
				"loss", obj.Loss(t.target, scores))
		}
	}
	return model, nil
}

func (t *Trainer) buildBins() {
	rows, cols := t.X.Dims()
	t.mapper = make([]*BinMapper, cols)
	t.bins = make([][]uint16, cols)
	parallel.Parallelize(cols, func(start, end int) {
		col := make([]float64, rows)
		for j := start; j < end; j++ {
			mat.Col(col, j, t.X)
			m := NewBinMapper(col, t.params.MaxBin)
			b := make([]uint16, rows)
			for i, v := range col {
				b[i] = uint16(m.ValueToBin(v))
			}
			t.mapper[j] = m
			t.bins[j] = b
		}
	})
}

// sampleRows returns the sorted in-bag rows for one iteration.
func (t *Trainer) sampleRows(n int) []int {
	if t.params.BaggingFraction >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	m := max(1, int(float64(n)*t.params.BaggingFraction))
	rows := t.rng.Perm(n)[:m]
	sort.Ints(rows)
	return rows
}

func (t *Trainer) sampleFeatures() []int {
	cols := len(t.bins)
	if t.params.FeatureFraction >= 1 {
		f := make([]int, cols)
		for i := range f {
			f[i] = i
		}
		return f
	}
	m := max(1, int(float64(cols)*t.params.FeatureFraction))
	f := t.rng.Perm(cols)[:m]
	sort.Ints(f)
	return f
}

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature   int
	Bin       int
	Threshold float64
	Gain      float64
}

type leaf struct {
	node   int
	rows   []int
	depth  int
	sumG   float64
	sumH   float64
	split  SplitInfo
	usable bool
}

func (t *Trainer) buildTree(rows []int, g, h []float64) Tree {
	tree := Tree{ShrinkageRate: t.params.LearningRate}
	tree.Nodes = append(tree.Nodes, Node{LeftChild: -1, RightChild: -1})
	features := t.sampleFeatures()

	root := t.newLeaf(0, rows, 0, g, h, features)
	leaves := []*leaf{root}

	for {
		if t.params.GrowPolicy == LeafWise && len(leaves) >= t.params.NumLeaves {
			break
		}
		pick := -1
		for i, l := range leaves {
			if !l.usable {
				continue
			}
			if t.params.GrowPolicy == DepthWise {
				pick = i
				break
			}
			if pick < 0 || l.split.Gain > leaves[pick].split.Gain {
				pick = i
			}
		}
		if pick < 0 {
			break
		}

		l := leaves[pick]
		var left, right []int
		bins := t.bins[l.split.Feature]
		for _, r := range l.rows {
			if int(bins[r]) <= l.split.Bin {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		li, ri := len(tree.Nodes), len(tree.Nodes)+1
		n := &tree.Nodes[l.node]
		n.SplitFeature = l.split.Feature
		n.Threshold = l.split.Threshold
		n.Gain = l.split.Gain
		n.DefaultLeft = true
		n.LeftChild, n.RightChild = li, ri
		tree.Nodes = append(tree.Nodes, Node{LeftChild: -1, RightChild: -1}, Node{LeftChild: -1, RightChild: -1})

		children := []*leaf{
			t.newLeaf(li, left, l.depth+1, g, h, features),
			t.newLeaf(ri, right, l.depth+1, g, h, features),
		}
		leaves = append(append(leaves[:pick:pick], leaves[pick+1:]...), children...)
	}

	for _, l := range leaves {
		n := &tree.Nodes[l.node]
		n.LeafValue = -l.sumG / (l.sumH + t.params.Lambda)
		n.LeafCount = len(l.rows)
	}
	tree.NumLeaves = len(leaves)
	return tree
}

func (t *Trainer) newLeaf(node int, rows []int, depth int, g, h []float64, features []int) *leaf {
	l := &leaf{node: node, rows: rows, depth: depth}
	for _, r := range rows {
		l.sumG += g[r]
		l.sumH += h[r]
	}
	if t.params.MaxDepth > 0 && depth >= t.params.MaxDepth {
		return l
	}
	if len(rows) < 2*t.params.MinDataInLeaf {
		return l
	}
	l.split, l.usable = t.findBestSplit(l, g, h, features)
	return l
}

// findBestSplit scans per-feature histograms of the leaf. Ties keep the
// lowest feature and bin.
func (t *Trainer) findBestSplit(l *leaf, g, h []float64, features []int) (SplitInfo, bool) {
	results := make([]SplitInfo, len(features))
	found := make([]bool, len(features))
	parentScore := l.sumG * l.sumG / (l.sumH + t.params.Lambda)

	parallel.ParallelizeWithThreshold(len(features), 8, func(start, end int) {
		for fi := start; fi < end; fi++ {
			f := features[fi]
			nb := t.mapper[f].NumBins()
			if nb < 2 {
				continue
			}
			sumG := make([]float64, nb)
			sumH := make([]float64, nb)
			count := make([]int, nb)
			bins := t.bins[f]
			for _, r := range l.rows {
				b := bins[r]
				sumG[b] += g[r]
				sumH[b] += h[r]
				count[b]++
			}

			var gl, hl float64
			cl := 0
			best := SplitInfo{Feature: f, Gain: t.params.MinGainToSplit}
			ok := false
			for b := 0; b < nb-1; b++ {
				gl += sumG[b]
				hl += sumH[b]
				cl += count[b]
				cr := len(l.rows) - cl
				if cl < t.params.MinDataInLeaf {
					continue
				}
				if cr < t.params.MinDataInLeaf {
					break
				}
				hr := l.sumH - hl
				if hl < t.params.MinSumHessianInLeaf || hr < t.params.MinSumHessianInLeaf {
					continue
				}
				gr := l.sumG - gl
				gain := gl*gl/(hl+t.params.Lambda) + gr*gr/(hr+t.params.Lambda) - parentScore
				if gain > best.Gain {
					best.Bin = b
					best.Threshold = t.mapper[f].UpperBounds[b]
					best.Gain = gain
					ok = true
				}
			}
			results[fi], found[fi] = best, ok
		}
	})

	var best SplitInfo
	ok := false
	for i := range results {
		if found[i] && (!ok || results[i].Gain > best.Gain) {
			best, ok = results[i], true
		}
	}
	return best, ok
}
