package linear_model

import (
	"encoding/gob"
	"fmt"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/metrics"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&LinearRegression{})
}

// rcond は SVD のランク判定に使う相対しきい値
const rcond = 1e-12

// LinearRegression is ordinary least squares solved through SVD, so
// rank-deficient designs get the minimum-norm solution instead of an error.
type LinearRegression struct {
	model.StateManager

	FitIntercept bool

	// 学習済みパラメータ
	Coefficients []float64
	InterceptVal float64
	Rank         int
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{FitIntercept: true}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}
	if rows == 0 || cols == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}

	// 切片を学習する場合は中心化して解き、切片は平均から復元する
	XWork := mat.DenseCopyOf(X)
	yWork := mat.DenseCopyOf(y)
	xMean := make([]float64, cols)
	yMean := 0.0
	if lr.FitIntercept {
		col := make([]float64, rows)
		for j := 0; j < cols; j++ {
			mat.Col(col, j, XWork)
			xMean[j] = floats.Sum(col) / float64(rows)
			floats.AddConst(-xMean[j], col)
			XWork.SetCol(j, col)
		}
		mat.Col(col, 0, yWork)
		yMean = floats.Sum(col) / float64(rows)
		floats.AddConst(-yMean, col)
		yWork.SetCol(0, col)
	}

	var svd mat.SVD
	if ok := svd.Factorize(XWork, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		// X が全てゼロ（中心化後）の場合は係数ゼロ
		lr.Coefficients = make([]float64, cols)
	} else {
		var beta mat.Dense
		svd.SolveTo(&beta, yWork, rank)
		lr.Coefficients = mat.Col(nil, 0, &beta)
	}
	lr.Rank = rank

	lr.InterceptVal = 0
	if lr.FitIntercept {
		lr.InterceptVal = yMean - floats.Dot(xMean, lr.Coefficients)
	}

	lr.SetFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	if err := lr.CheckFeatures("LinearRegression.Predict", X); err != nil {
		return nil, err
	}

	rows, _ := X.Dims()
	var out mat.VecDense
	out.MulVec(X, mat.NewVecDense(len(lr.Coefficients), lr.Coefficients))
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		predictions.Set(i, 0, out.AtVec(i)+lr.InterceptVal)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, predictions)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.Coefficients == nil {
		return nil
	}
	return append([]float64(nil), lr.Coefficients...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.InterceptVal
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "must be a bool", v)
			}
			lr.FitIntercept = b
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	return nil
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, fitted=true)",
		lr.FitIntercept, lr.NFeatures)
}
