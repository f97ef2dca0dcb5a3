package metrics

import (
	"sort"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Averaging strategies for PrecisionRecallFScore.
const (
	AverageWeighted = "weighted"
	AverageMacro    = "macro"
	AverageMicro    = "micro"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は n×1 行列の入力に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// Labels returns the sorted union of the values in the given vectors.
func Labels(vs ...*mat.VecDense) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			seen[v.AtVec(i)] = struct{}{}
		}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels
}

// ConfusionMatrix は混同行列を返す。行が正解ラベル、列が予測ラベルで、
// labels が nil の場合は両者の和集合を昇順に使う。labels にない値は無視する。
func ConfusionMatrix(yTrue, yPred *mat.VecDense, labels []float64) (*mat.Dense, []float64, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	if labels == nil {
		labels = Labels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, nil, errors.NewValueError("ConfusionMatrix", "no labels")
	}
	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		ti, ok1 := index[yTrue.AtVec(i)]
		pi, ok2 := index[yPred.AtVec(i)]
		if ok1 && ok2 {
			cm.Set(ti, pi, cm.At(ti, pi)+1)
		}
	}
	return cm, labels, nil
}

// PrecisionRecallFScore は適合率・再現率・F1を計算する
//
// 分母が0になるクラスの値は0として扱う（zero_division=0）。average は
// "weighted"（正解ラベルのサポートで重み付け）、"macro"、"micro" のいずれか。
func PrecisionRecallFScore(yTrue, yPred *mat.VecDense, average string) (precision, recall, f1 float64, err error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	k := len(labels)

	tp := make([]float64, k)
	predicted := make([]float64, k)
	support := make([]float64, k)
	for i := 0; i < k; i++ {
		tp[i] = cm.At(i, i)
		for j := 0; j < k; j++ {
			support[i] += cm.At(i, j)
			predicted[j] += cm.At(i, j)
		}
	}

	switch average {
	case AverageMicro:
		var sumTP, sumPred, sumSupport float64
		for i := 0; i < k; i++ {
			sumTP += tp[i]
			sumPred += predicted[i]
			sumSupport += support[i]
		}
		p := errors.SafeDivide(sumTP, sumPred)
		r := errors.SafeDivide(sumTP, sumSupport)
		return p, r, errors.SafeDivide(2*p*r, p+r), nil
	case AverageMacro, AverageWeighted:
	default:
		return 0, 0, 0, errors.NewValidationError("average", "must be weighted, macro or micro", average)
	}

	var totalWeight float64
	for i := 0; i < k; i++ {
		p := errors.SafeDivide(tp[i], predicted[i])
		r := errors.SafeDivide(tp[i], support[i])
		f := errors.SafeDivide(2*p*r, p+r)

		w := 1.0
		if average == AverageWeighted {
			w = support[i]
		}
		precision += w * p
		recall += w * r
		f1 += w * f
		totalWeight += w
	}
	return errors.SafeDivide(precision, totalWeight),
		errors.SafeDivide(recall, totalWeight),
		errors.SafeDivide(f1, totalWeight), nil
}
