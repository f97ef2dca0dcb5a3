// Package model はautomlの推定器インターフェースと学習状態の管理を提供します。
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の行列
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習と予測の両方を行う教師ありモデル
type Estimator interface {
	Fitter
	Predictor
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilityPredictor はクラス確率を返す分類器
type ProbabilityPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// FeatureImporter は特徴量重要度を公開するモデル。戻り値の合計は1
type FeatureImporter interface {
	FeatureImportances() ([]float64, error)
}

// ParameterGetter はハイパーパラメータを scikit-learn 互換の名前で返す
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter は scikit-learn 互換の名前でハイパーパラメータを設定する
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
