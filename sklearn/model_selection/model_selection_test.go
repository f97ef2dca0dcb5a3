package model_selection

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/sklearn/linear_model"
)

func checkPartition(t *testing.T, folds []CVFold, n int) {
	t.Helper()
	seen := make([]int, n)
	for _, f := range folds {
		assert.Equal(t, n, len(f.TrainIndices)+len(f.TestIndices))
		assert.True(t, sort.IntsAreSorted(f.TestIndices))
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "sample %d must be tested exactly once", i)
	}
}

func TestKFold_Split(t *testing.T) {
	X := mat.NewDense(11, 1, nil)
	folds, err := NewKFold(5, false, 0).Split(X, nil)
	require.NoError(t, err)
	require.Len(t, folds, 5)
	checkPartition(t, folds, 11)

	sizes := []int{}
	for _, f := range folds {
		sizes = append(sizes, len(f.TestIndices))
	}
	assert.Equal(t, []int{3, 2, 2, 2, 2}, sizes)
	assert.Equal(t, []int{0, 1, 2}, folds[0].TestIndices)
}

func TestKFold_ShuffleDeterministic(t *testing.T) {
	X := mat.NewDense(20, 1, nil)
	a, err := NewKFold(4, true, 42).Split(X, nil)
	require.NoError(t, err)
	b, err := NewKFold(4, true, 42).Split(X, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	checkPartition(t, a, 20)

	c, err := NewKFold(4, true, 7).Split(X, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKFold_TooFewSamples(t *testing.T) {
	_, err := NewKFold(5, false, 0).Split(mat.NewDense(3, 1, nil), nil)
	assert.Error(t, err)
}

func TestStratifiedKFold_Split(t *testing.T) {
	// 10 of class 0, 5 of class 1
	labels := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	y := mat.NewDense(15, 1, labels)
	X := mat.NewDense(15, 1, nil)

	folds, err := NewStratifiedKFold(5, true, 42).Split(X, y)
	require.NoError(t, err)
	checkPartition(t, folds, 15)
	for i, f := range folds {
		assert.Len(t, f.TestIndices, 3, "fold %d", i)
		ones := 0
		for _, idx := range f.TestIndices {
			if labels[idx] == 1 {
				ones++
			}
		}
		assert.Equal(t, 1, ones, "fold %d must hold one sample of the minority class", i)
	}

	again, err := NewStratifiedKFold(5, true, 42).Split(X, y)
	require.NoError(t, err)
	assert.Equal(t, folds, again)

	_, err = NewStratifiedKFold(5, true, 42).Split(X, nil)
	assert.Error(t, err)
}

func TestGetScorer(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	yPred := mat.NewDense(4, 1, []float64{1, 2, 3, 6})

	negRMSE, err := GetScorer(ScoringNegRMSE)
	require.NoError(t, err)
	s, err := negRMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, s, 1e-12)

	acc, err := GetScorer(ScoringAccuracy)
	require.NoError(t, err)
	s, err = acc(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, 0.75, s)

	_, err = GetScorer("f1_macro")
	assert.Error(t, err)
}

func TestCrossValScore(t *testing.T) {
	n := 50
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, 3*float64(i)+1)
	}
	var built atomic.Int32
	factory := func() (model.Estimator, error) {
		built.Add(1)
		return linear_model.NewLinearRegression(), nil
	}
	scorer, err := GetScorer(ScoringNegRMSE)
	require.NoError(t, err)

	res, err := CrossValScore(context.Background(), factory, X, y, NewKFold(5, true, 42), scorer, 3)
	require.NoError(t, err)
	assert.Len(t, res.TestScores, 5)
	assert.Equal(t, int32(5), built.Load())
	for _, s := range res.TestScores {
		assert.InDelta(t, 0.0, s, 1e-9)
	}
	assert.InDelta(t, 0.0, res.GetMeanScore(), 1e-9)
	assert.InDelta(t, 0.0, res.GetStdScore(), 1e-9)
}

func TestCrossValScore_FoldError(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	boom := errors.New("boom")
	factory := func() (model.Estimator, error) { return nil, boom }
	scorer, _ := GetScorer(ScoringNegRMSE)

	_, err := CrossValScore(context.Background(), factory, X, y, NewKFold(5, false, 0), scorer, 2)
	assert.ErrorIs(t, err, boom)
}

func TestCrossValScore_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	factory := func() (model.Estimator, error) { return linear_model.NewLinearRegression(), nil }
	scorer, _ := GetScorer(ScoringNegRMSE)

	_, err := CrossValScore(ctx, factory, X, y, NewKFold(5, false, 0), scorer, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCVResult_Empty(t *testing.T) {
	cv := &CVResult{}
	assert.True(t, cv.GetMeanScore() != cv.GetMeanScore(), "mean of no folds is NaN")
	assert.Equal(t, 0.0, cv.GetStdScore())
}
