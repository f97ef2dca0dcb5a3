package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Node represents a single node in a decision tree.
type Node struct {
	LeftChild  int // -1 if leaf
	RightChild int // -1 if leaf

	// Split information (for non-leaf nodes)
	SplitFeature int
	Threshold    float64 // value <= Threshold goes left
	DefaultLeft  bool    // direction for NaN
	Gain         float64

	// Leaf information (for leaf nodes)
	LeafValue float64
	LeafCount int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	Nodes         []Node
	NumLeaves     int
	ShrinkageRate float64 // Learning rate applied to this tree
}

// Predict makes a prediction for a single sample using this tree
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		v := features[node.SplitFeature]
		switch {
		case math.IsNaN(v):
			if node.DefaultLeft {
				nodeID = node.LeftChild
			} else {
				nodeID = node.RightChild
			}
		case v <= node.Threshold:
			nodeID = node.LeftChild
		default:
			nodeID = node.RightChild
		}
	}
}

// Model is a trained ensemble. Trees are stored iteration-major: for K
// outputs, tree i contributes to output i % K.
type Model struct {
	Objective           ObjectiveType
	NumClass            int
	NumTreePerIteration int
	NumFeatures         int
	InitScores          []float64 // one per output
	Trees               []Tree
}

// NumIterations returns the number of boosting rounds in the model.
func (m *Model) NumIterations() int {
	if m.NumTreePerIteration == 0 {
		return 0
	}
	return len(m.Trees) / m.NumTreePerIteration
}

// PredictRaw returns the untransformed scores, rows x NumTreePerIteration.
func (m *Model) PredictRaw(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("lightgbm.Model.PredictRaw", m.NumFeatures, cols, 1)
	}
	k := m.NumTreePerIteration
	out := mat.NewDense(rows, k, nil)
	features := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		for c := 0; c < k; c++ {
			out.Set(i, c, m.InitScores[c])
		}
		for t := range m.Trees {
			c := t % k
			out.Set(i, c, out.At(i, c)+m.Trees[t].Predict(features))
		}
	}
	return out, nil
}

// Predict returns transformed outputs: the value for regression, P(y=1)
// for binary and class probabilities for multiclass.
func (m *Model) Predict(X mat.Matrix) (*mat.Dense, error) {
	raw, err := m.PredictRaw(X)
	if err != nil {
		return nil, err
	}
	obj, err := CreateObjectiveFunction(m.Objective, m.NumClass)
	if err != nil {
		return nil, err
	}
	rows, _ := raw.Dims()
	for i := 0; i < rows; i++ {
		obj.Transform(raw.RawRowView(i))
	}
	return raw, nil
}

// GetFeatureImportance returns normalised importances. importanceType is
// "split" (times used) or "gain" (total split gain).
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)
	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch importanceType {
			case "gain":
				importance[node.SplitFeature] += node.Gain
			default:
				importance[node.SplitFeature]++
			}
		}
	}
	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}

// PredictProba returns class probabilities, one column per class, for
// binary and multiclass models.
func (m *Model) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	out, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	switch m.Objective {
	case MulticlassSoftmax:
		return out, nil
	case BinaryLogistic:
		rows, _ := out.Dims()
		proba := mat.NewDense(rows, 2, nil)
		for i := 0; i < rows; i++ {
			p := out.At(i, 0)
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
		}
		return proba, nil
	default:
		return nil, errors.NewValueError("lightgbm.Model.PredictProba",
			"probabilities require a classification objective, got "+string(m.Objective))
	}
}
