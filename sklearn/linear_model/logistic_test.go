package linear_model

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRTol(1e-6))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 6; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
		}
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0, // Should be class 0
		3.0, 3.0, // Should be class 1
	})
	testPred, err := lr.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict test data: %v", err)
	}
	if testPred.At(0, 0) != 0 || testPred.At(1, 0) != 1 {
		t.Errorf("Unexpected test predictions: %v", mat.Formatted(testPred))
	}

	proba, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	for i := 0; i < 6; i++ {
		sum := proba.At(i, 0) + proba.At(i, 1)
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("Sample %d: probabilities sum to %v", i, sum)
		}
	}
}

// TestLogisticRegression_Multiclass tests the multinomial softmax path
func TestLogisticRegression_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0.2, 0.1, 0.1, 0.3,
		5, 0, 5.2, 0.1, 4.9, 0.3,
		0, 5, 0.2, 5.1, 0.1, 4.8,
	})
	y := mat.NewDense(9, 1, []float64{3, 3, 3, 7, 7, 7, 9, 9, 9})

	lr := NewLogisticRegression(WithLRC(10))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(lr.Coef) != 3 {
		t.Fatalf("expected 3 coefficient rows, got %d", len(lr.Coef))
	}
	acc, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc != 1.0 {
		t.Errorf("expected perfect training accuracy, got %v", acc)
	}

	proba, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	_, c := proba.Dims()
	if c != 3 {
		t.Errorf("expected 3 probability columns, got %d", c)
	}
}

// TestLogisticRegression_Regularization checks that a small C shrinks the weights
func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{-2, -1.5, -1, -0.5, 0.5, 1, 1.5, 2})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 1, 0, 1, 1, 1})

	strong := NewLogisticRegression(WithLRC(1e-4))
	weak := NewLogisticRegression(WithLRC(100))
	if err := strong.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := weak.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if math.Abs(strong.Coef[0][0]) >= math.Abs(weak.Coef[0][0]) {
		t.Errorf("expected |w| to shrink with small C: strong=%v weak=%v", strong.Coef[0][0], weak.Coef[0][0])
	}
	if math.Abs(strong.Coef[0][0]) > 0.01 {
		t.Errorf("expected near-zero weight for C=1e-4, got %v", strong.Coef[0][0])
	}
}

// TestLogisticRegression_Errors tests input validation
func TestLogisticRegression_Errors(t *testing.T) {
	lr := NewLogisticRegression()

	if _, err := lr.Predict(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected not fitted error")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %T", err)
		}
	}

	if err := lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 1, 1})); err == nil {
		t.Error("expected error for a single class")
	}
	if err := lr.Fit(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil)); err == nil {
		t.Error("expected dimension error")
	}
	if err := NewLogisticRegression(WithLRC(0)).Fit(mat.NewDense(2, 1, []float64{0, 1}), mat.NewDense(2, 1, []float64{0, 1})); err == nil {
		t.Error("expected validation error for C=0")
	}

	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := lr.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected dimension error for wrong feature count")
	}
}

// TestLogisticRegression_Params tests GetParams/SetParams
func TestLogisticRegression_Params(t *testing.T) {
	lr := NewLogisticRegression()
	params := lr.GetParams()
	if params["C"] != 1.0 || params["max_iter"] != 1000 {
		t.Errorf("unexpected defaults: %v", params)
	}
	if err := lr.SetParams(map[string]interface{}{"C": 0.5, "max_iter": 200}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if lr.C != 0.5 || lr.MaxIter != 200 {
		t.Errorf("params not applied: C=%v max_iter=%v", lr.C, lr.MaxIter)
	}
	if err := lr.SetParams(map[string]interface{}{"penalty": "l1"}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

// TestLogisticRegression_Gob tests persistence through encoding/gob
func TestLogisticRegression_Gob(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-2, -1, 1, 2})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(lr); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var restored LogisticRegression
	if err := gob.NewDecoder(&buf).Decode(&restored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, _ := lr.PredictProba(X)
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatalf("restored PredictProba: %v", err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("restored model predicts differently")
	}
}
