package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Value holds class probabilities for classifiers and the mean target
	// for regressors.
	Value    []float64
	NSamples int
	Impurity float64
}

// Tree is a binary tree stored as a flat node slice; Nodes[0] is the root.
type Tree struct {
	Nodes     []Node
	NFeatures int
}

// Apply returns the index of the leaf reached by row.
func (t *Tree) Apply(row []float64) int {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := &t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.Feature < 0 {
			n++
		}
	}
	return n
}

const impurityEpsilon = 1e-12

// builder grows a CART tree depth-first. y holds class indices when
// nClasses > 0 and regression targets otherwise.
type builder struct {
	data      []float64
	nFeatures int
	y         []float64
	nClasses  int

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	rng             *rand.Rand

	tree        *Tree
	importances []float64
}

func newBuilder(X mat.Matrix, y []float64, nClasses int, p Params) *builder {
	r, c := X.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[i*c+j] = X.At(i, j)
		}
	}
	seed := uint64(p.RandomState)
	return &builder{
		data:            data,
		nFeatures:       c,
		y:               y,
		nClasses:        nClasses,
		criterion:       p.Criterion,
		maxDepth:        p.MaxDepth,
		minSamplesSplit: max(p.MinSamplesSplit, 2),
		minSamplesLeaf:  max(p.MinSamplesLeaf, 1),
		maxFeatures:     resolveMaxFeatures(p.MaxFeatures, c),
		rng:             rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		tree:            &Tree{NFeatures: c},
		importances:     make([]float64, c),
	}
}

func (b *builder) at(row, feature int) float64 {
	return b.data[row*b.nFeatures+feature]
}

func (b *builder) build() (*Tree, []float64) {
	idx := make([]int, len(b.y))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for i := range b.importances {
			b.importances[i] /= total
		}
	}
	return b.tree, b.importances
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples [0,pos) of the sorted index go left
	childImp  float64
	sorted    []int
	leftImp   float64
	rightImp  float64
}

func (b *builder) grow(idx []int, depth int) int {
	value, impurity := b.nodeValue(idx)
	nodeID := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:  -1,
		Value:    value,
		NSamples: len(idx),
		Impurity: impurity,
	})

	n := len(idx)
	if (b.maxDepth > 0 && depth >= b.maxDepth) ||
		n < b.minSamplesSplit ||
		n < 2*b.minSamplesLeaf ||
		impurity <= impurityEpsilon {
		return nodeID
	}

	best, ok := b.findSplit(idx)
	if !ok {
		return nodeID
	}

	left := append([]int(nil), best.sorted[:best.pos]...)
	right := append([]int(nil), best.sorted[best.pos:]...)
	nl, nr := float64(len(left)), float64(len(right))
	b.importances[best.feature] += float64(n)*impurity - nl*best.leftImp - nr*best.rightImp

	leftID := b.grow(left, depth+1)
	rightID := b.grow(right, depth+1)

	node := &b.tree.Nodes[nodeID]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = leftID
	node.Right = rightID
	return nodeID
}

// findSplit scans candidate features in random order. Like scikit-learn it
// keeps drawing past maxFeatures until at least one valid split is found.
func (b *builder) findSplit(idx []int) (split, bool) {
	order := b.rng.Perm(b.nFeatures)
	if b.maxFeatures >= b.nFeatures {
		sort.Ints(order)
	}

	var best split
	found := false
	for visited, f := range order {
		if visited >= b.maxFeatures && found {
			break
		}
		s, ok := b.bestSplitOnFeature(idx, f)
		if ok && (!found || s.childImp < best.childImp-1e-15) {
			best = s
			found = true
		}
	}
	return best, found
}

func (b *builder) bestSplitOnFeature(idx []int, f int) (split, bool) {
	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(i, j int) bool { return b.at(sorted[i], f) < b.at(sorted[j], f) })

	n := len(sorted)
	if b.at(sorted[0], f) == b.at(sorted[n-1], f) {
		return split{}, false
	}

	acc := b.newAccumulator(sorted)
	var best split
	found := false
	for pos := 1; pos < n; pos++ {
		acc.move(sorted[pos-1])
		if pos < b.minSamplesLeaf || n-pos < b.minSamplesLeaf {
			continue
		}
		lo, hi := b.at(sorted[pos-1], f), b.at(sorted[pos], f)
		if lo == hi {
			continue
		}
		li, ri := acc.impurities()
		child := float64(pos)*li + float64(n-pos)*ri
		if !found || child < best.childImp-1e-15 {
			threshold := lo + (hi-lo)/2
			if threshold >= hi || math.IsInf(threshold, 0) {
				threshold = lo
			}
			best = split{feature: f, threshold: threshold, pos: pos, childImp: child, leftImp: li, rightImp: ri}
			found = true
		}
	}
	best.sorted = sorted
	return best, found
}

func (b *builder) nodeValue(idx []int) ([]float64, float64) {
	n := float64(len(idx))
	if b.nClasses > 0 {
		counts := make([]float64, b.nClasses)
		for _, i := range idx {
			counts[int(b.y[i])]++
		}
		imp := classImpurity(b.criterion, counts, n)
		for k := range counts {
			counts[k] /= n
		}
		return counts, imp
	}
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	mean := sum / n
	return []float64{mean}, math.Max(sumSq/n-mean*mean, 0)
}

func classImpurity(criterion string, counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if criterion == CriterionEntropy {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

// accumulator keeps running left/right statistics while sweeping a sorted
// feature.
type accumulator struct {
	b *builder

	leftCounts, rightCounts []float64
	nLeft, nRight           float64

	leftSum, leftSq, rightSum, rightSq float64
}

func (b *builder) newAccumulator(sorted []int) *accumulator {
	a := &accumulator{b: b, nRight: float64(len(sorted))}
	if b.nClasses > 0 {
		a.leftCounts = make([]float64, b.nClasses)
		a.rightCounts = make([]float64, b.nClasses)
		for _, i := range sorted {
			a.rightCounts[int(b.y[i])]++
		}
		return a
	}
	for _, i := range sorted {
		a.rightSum += b.y[i]
		a.rightSq += b.y[i] * b.y[i]
	}
	return a
}

func (a *accumulator) move(i int) {
	a.nLeft++
	a.nRight--
	y := a.b.y[i]
	if a.b.nClasses > 0 {
		a.leftCounts[int(y)]++
		a.rightCounts[int(y)]--
		return
	}
	a.leftSum += y
	a.leftSq += y * y
	a.rightSum -= y
	a.rightSq -= y * y
}

func (a *accumulator) impurities() (float64, float64) {
	if a.b.nClasses > 0 {
		return classImpurity(a.b.criterion, a.leftCounts, a.nLeft), classImpurity(a.b.criterion, a.rightCounts, a.nRight)
	}
	variance := func(sum, sq, n float64) float64 {
		m := sum / n
		return math.Max(sq/n-m*m, 0)
	}
	return variance(a.leftSum, a.leftSq, a.nLeft), variance(a.rightSum, a.rightSq, a.nRight)
}

func resolveMaxFeatures(s string, nFeatures int) int {
	switch s {
	case MaxFeaturesSqrt:
		return max(1, int(math.Sqrt(float64(nFeatures))))
	case MaxFeaturesLog2:
		return max(1, int(math.Log2(float64(nFeatures))))
	default:
		return nFeatures
	}
}
