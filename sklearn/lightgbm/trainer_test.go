package lightgbm

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sineData(n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(1, 2))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := rng.Float64() * 6
		X.Set(i, 0, a)
		X.Set(i, 1, rng.Float64())
		y.Set(i, 0, math.Sin(a)*2)
	}
	return X, y
}

func clusters(n, k int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(3, 4))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := i % k
		X.Set(i, 0, float64(c)*4+rng.NormFloat64()*0.5)
		X.Set(i, 1, rng.NormFloat64())
		y.Set(i, 0, float64(c*10)) // non-contiguous labels
	}
	return X, y
}

func TestBinMapper(t *testing.T) {
	m := NewBinMapper([]float64{3, 1, 2, 2, math.NaN()}, 255)
	assert.Equal(t, 3, m.NumBins())
	assert.Equal(t, 0, m.ValueToBin(1))
	assert.Equal(t, 1, m.ValueToBin(2))
	assert.Equal(t, 2, m.ValueToBin(3))
	assert.Equal(t, 2, m.ValueToBin(100))
	assert.Equal(t, 0, m.ValueToBin(math.NaN()))

	constant := NewBinMapper([]float64{5, 5, 5}, 255)
	assert.Equal(t, 1, constant.NumBins())

	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	capped := NewBinMapper(values, 16)
	assert.LessOrEqual(t, capped.NumBins(), 16)
	assert.Greater(t, capped.NumBins(), 8)
}

func TestTrainer_Regression(t *testing.T) {
	X, y := sineData(300)
	model, err := NewTrainer(TrainingParams{
		Objective:     RegressionL2,
		NumIterations: 100,
		LearningRate:  0.1,
		MinDataInLeaf: 5,
	}).Train(X, y)
	require.NoError(t, err)
	assert.Equal(t, 100, model.NumIterations())

	pred, err := model.Predict(X)
	require.NoError(t, err)
	mse := 0.0
	for i := 0; i < 300; i++ {
		d := pred.At(i, 0) - y.At(i, 0)
		mse += d * d
	}
	assert.Less(t, mse/300, 0.05)

	for _, tree := range model.Trees {
		assert.LessOrEqual(t, tree.NumLeaves, 31)
	}
}

func TestTrainer_DepthWise(t *testing.T) {
	X, y := sineData(200)
	model, err := NewTrainer(TrainingParams{
		Objective:     RegressionL2,
		NumIterations: 10,
		GrowPolicy:    DepthWise,
		MaxDepth:      2,
		MinDataInLeaf: 1,
		Lambda:        1,
	}).Train(X, y)
	require.NoError(t, err)
	for _, tree := range model.Trees {
		assert.LessOrEqual(t, tree.NumLeaves, 4)
	}
}

func TestTrainer_Validation(t *testing.T) {
	X, y := sineData(10)
	_, err := NewTrainer(TrainingParams{Objective: "poisson"}).Train(X, y)
	assert.Error(t, err)
	_, err = NewTrainer(TrainingParams{LearningRate: -1}).Train(X, y)
	assert.Error(t, err)
	_, err = NewTrainer(TrainingParams{}).Train(X, mat.NewDense(3, 1, nil))
	assert.Error(t, err)
	_, err = NewTrainer(TrainingParams{Objective: MulticlassSoftmax, NumClass: 1}).Train(X, y)
	assert.Error(t, err)
}

func TestLGBMRegressor(t *testing.T) {
	X, y := sineData(200)
	reg := NewLGBMRegressor().WithNEstimators(50).WithLearningRate(0.2)
	_, err := reg.Predict(X)
	require.Error(t, err)

	require.NoError(t, reg.Fit(X, y))
	r2, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.9)

	imp, err := reg.FeatureImportances()
	require.NoError(t, err)
	assert.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)

	gain := reg.Model.GetFeatureImportance("gain")
	assert.Greater(t, gain[0], gain[1])
}

func TestLGBMClassifier_Binary(t *testing.T) {
	X, y := clusters(120, 2)
	clf := NewLGBMClassifier().WithNEstimators(30)
	require.NoError(t, clf.Fit(X, y))
	assert.Equal(t, []float64{0, 10}, clf.Classes)
	assert.Equal(t, BinaryLogistic, clf.Model.Objective)

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.95)

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 2, c)
	assert.InDelta(t, 1.0, proba.At(0, 0)+proba.At(0, 1), 1e-12)
}

func TestLGBMClassifier_Multiclass(t *testing.T) {
	X, y := clusters(150, 3)
	clf := NewLGBMClassifier().WithNEstimators(30).WithNumLeaves(8)
	require.NoError(t, clf.Fit(X, y))
	assert.Equal(t, MulticlassSoftmax, clf.Model.Objective)
	assert.Len(t, clf.Model.Trees, 90)

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.95)

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		sum := proba.At(i, 0) + proba.At(i, 1) + proba.At(i, 2)
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	assert.Error(t, NewLGBMClassifier().Fit(X, mat.NewDense(150, 1, nil)))
}

func TestLGBMParams(t *testing.T) {
	clf := NewLGBMClassifier()
	p := clf.GetParams()
	assert.Equal(t, 100, p["n_estimators"])
	assert.Equal(t, 31, p["num_leaves"])

	require.NoError(t, clf.SetParams(map[string]interface{}{
		"n_estimators": 80, "learning_rate": 0.05, "num_leaves": 64,
	}))
	assert.Equal(t, 80, clf.NEstimators)
	assert.Equal(t, 0.05, clf.LearningRate)
	assert.Equal(t, 64, clf.NumLeaves)
	assert.Error(t, clf.SetParams(map[string]interface{}{"num_leaves": 1.5}))
	assert.Error(t, clf.SetParams(map[string]interface{}{"boosting": "dart"}))
}

func TestLGBM_GobRoundTrip(t *testing.T) {
	X, y := clusters(60, 3)
	clf := NewLGBMClassifier().WithNEstimators(5)
	require.NoError(t, clf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(clf))
	var restored LGBMClassifier
	require.NoError(t, gob.NewDecoder(&buf).Decode(&restored))

	want, err := clf.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}
