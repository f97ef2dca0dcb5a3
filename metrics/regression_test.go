package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

func vec(vs ...float64) *mat.VecDense { return mat.NewVecDense(len(vs), vs) }

func col(vs ...float64) *mat.Dense { return mat.NewDense(len(vs), 1, vs) }

func TestRegressionMetrics(t *testing.T) {
	tests := []struct {
		name         string
		yTrue, yPred *mat.VecDense
		mse, mae, r2 float64
	}{
		{"perfect", vec(1, 2, 3, 4, 5), vec(1, 2, 3, 4, 5), 0, 0, 1},
		// residuals ±0.5, tss = 5
		{"half off", vec(1, 2, 3, 4), vec(1.5, 2.5, 2.5, 3.5), 0.25, 0.5, 0.8},
		// residuals 2, -2, 3, tss = 200
		{"larger errors", vec(10, 20, 30), vec(12, 18, 33), 17.0 / 3, 7.0 / 3, 1 - 17.0/200},
		{"predicting the mean", vec(1, 2, 3), vec(2, 2, 2), 2.0 / 3, 2.0 / 3, 0},
		{"constant target hit", vec(4, 4, 4), vec(4, 4, 4), 0, 0, 1},
		{"constant target missed", vec(4, 4, 4), vec(3, 4, 5), 2.0 / 3, 2.0 / 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mse, err := MSE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mse, mse, 1e-12)

			rmse, err := RMSE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, math.Sqrt(tt.mse), rmse, 1e-12)

			mae, err := MAE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mae, mae, 1e-12)

			r2, err := R2Score(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.r2, r2, 1e-12)
			assert.LessOrEqual(t, r2, 1.0)
		})
	}
}

func TestR2Score_CanBeNegative(t *testing.T) {
	r2, err := R2Score(vec(1, 2, 3), vec(3, 2, 1))
	require.NoError(t, err)
	assert.InDelta(t, -3.0, r2, 1e-12)
}

func TestRegressionMetrics_Errors(t *testing.T) {
	fns := map[string]func(a, b *mat.VecDense) (float64, error){
		"MSE": MSE, "RMSE": RMSE, "MAE": MAE, "R2Score": R2Score,
	}
	for name, fn := range fns {
		t.Run(name, func(t *testing.T) {
			_, err := fn(vec(1, 2, 3), vec(1, 2))
			var dim *errors.DimensionError
			assert.True(t, errors.As(err, &dim))

			_, err = fn(&mat.VecDense{}, &mat.VecDense{})
			var ve *errors.ValueError
			assert.True(t, errors.As(err, &ve))

			_, err = fn(nil, vec(1))
			assert.Error(t, err)
		})
	}
}

func TestMatrixVariants(t *testing.T) {
	yTrue := col(3, -0.5, 2, 7)
	yPred := col(2.5, 0, 2, 8)

	mse, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.375, mse, 1e-12)

	rmse, err := RMSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.375), rmse, 1e-12)

	r2, err := R2ScoreMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.9486081370449679, r2, 1e-12)

	_, err = RMSEMatrix(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.Error(t, err, "multi-output matrices are rejected")

	_, err = MSEMatrix(col(1, 2, 3), col(1, 2))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestColumnVector(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{1, 10, 2, 20, 3, 30})
	v := ColumnVector(m)
	assert.Equal(t, []float64{1, 2, 3}, v.RawVector().Data)
}

func BenchmarkRMSEMatrix(b *testing.B) {
	n := 10000
	yTrue := mat.NewDense(n, 1, nil)
	yPred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		yTrue.Set(i, 0, float64(i))
		yPred.Set(i, 0, float64(i)+0.5)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = RMSEMatrix(yTrue, yPred)
	}
}
