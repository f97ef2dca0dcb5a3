package xgboost

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestXGBRegressor(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := rng.Float64()*4, rng.Float64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y.Set(i, 0, a*a-2*a)
	}

	reg := NewXGBRegressor()
	reg.NEstimators = 50
	require.NoError(t, reg.Fit(X, y))
	r2, err := reg.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.95)

	for _, tree := range reg.Booster.Trees {
		assert.LessOrEqual(t, tree.NumLeaves, 1<<6)
	}
	imp, err := reg.FeatureImportances()
	require.NoError(t, err)
	assert.Greater(t, imp[0], imp[1])
}

func TestXGBClassifier(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	n := 90
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := i % 3
		X.Set(i, 0, float64(c)*3+rng.NormFloat64()*0.3)
		X.Set(i, 1, math.Sin(float64(i)))
		y.Set(i, 0, float64(c))
	}

	clf := NewXGBClassifier()
	clf.NEstimators = 20
	clf.MaxDepth = 3
	require.NoError(t, clf.Fit(X, y))
	assert.Equal(t, []float64{0, 1, 2}, clf.Classes)

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.95)

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 3, c)
}

func TestXGBParams(t *testing.T) {
	clf := NewXGBClassifier()
	p := clf.GetParams()
	assert.Equal(t, 0.3, p["learning_rate"])
	assert.Equal(t, 6, p["max_depth"])

	require.NoError(t, clf.SetParams(map[string]interface{}{"n_estimators": 120, "learning_rate": 0.05, "max_depth": 4}))
	assert.Equal(t, 120, clf.NEstimators)
	assert.Equal(t, 4, clf.MaxDepth)
	assert.Error(t, clf.SetParams(map[string]interface{}{"max_depth": "deep"}))
	assert.Error(t, clf.SetParams(map[string]interface{}{"booster": "gblinear"}))

	_, err := NewXGBRegressor().Predict(mat.NewDense(1, 1, nil))
	assert.Error(t, err)
}
