package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "automl: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "automl: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースにテストファイルが含まれること
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestDomainErrorsMatchSentinels(t *testing.T) {
	cause := New("permission denied")
	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{"data access", NewDataAccessError("/tmp/x.csv", cause), ErrDataAccess, "permission denied"},
		{"schema", NewSchemaError("label", "target column not found"), ErrSchema, `column "label"`},
		{"task type", NewUnsupportedTaskTypeError("clustering"), ErrUnsupportedTaskType, "clustering"},
		{"model", NewUnsupportedModelError("SVM"), ErrUnsupportedModel, "SVM"},
		{"not found", NewModelNotFoundError("iris_LightGBM"), ErrModelNotFound, "iris_LightGBM"},
		{"tracking", NewTrackingBackendError("log_metric", cause), ErrTrackingBackend, "log_metric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("expected %v to match sentinel %v", tt.err, tt.sentinel)
			}
			if !stderrors.Is(tt.err, tt.sentinel) {
				t.Errorf("standard errors.Is: expected %v to match sentinel %v", tt.err, tt.sentinel)
			}
			if !stderrors.Is(fmt.Errorf("run: %w", tt.err), tt.sentinel) {
				t.Errorf("standard errors.Is through %%w: expected match for %v", tt.sentinel)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.contains)
			}
			for _, other := range []error{ErrDataAccess, ErrSchema, ErrUnsupportedTaskType, ErrUnsupportedModel, ErrModelNotFound, ErrTrackingBackend} {
				if other != tt.sentinel && (Is(tt.err, other) || stderrors.Is(tt.err, other)) {
					t.Errorf("%v must not match %v", tt.err, other)
				}
			}
		})
	}
}

func TestDomainErrorsUnwrap(t *testing.T) {
	cause := New("disk full")

	err := Wrap(NewDataAccessError("a.parquet", cause), "load")
	var dae *DataAccessError
	if !As(err, &dae) {
		t.Fatal("expected *DataAccessError in chain")
	}
	if dae.Path != "a.parquet" {
		t.Errorf("Path = %q", dae.Path)
	}
	if !Is(err, cause) {
		t.Error("expected cause to be reachable")
	}

	var tbe *TrackingBackendError
	if !As(NewTrackingBackendError("start_run", cause), &tbe) || tbe.Op != "start_run" {
		t.Error("expected *TrackingBackendError with op")
	}
}

func TestWarn(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(error) {})

	Warn(NewConvergenceWarning("lbfgs", 100, ""))
	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))

	if len(got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "lbfgs failed to converge after 100 iterations") {
		t.Errorf("unexpected warning text: %v", got[0])
	}
	if !strings.Contains(got[1].Error(), "'precision' is ill-defined") {
		t.Errorf("unexpected warning text: %v", got[1])
	}
}

func TestSafeDivideAndLogSumExp(t *testing.T) {
	if SafeDivide(1, 0) != 0 {
		t.Error("SafeDivide by zero should return 0")
	}
	if SafeDivide(6, 3) != 2 {
		t.Error("SafeDivide(6, 3) should return 2")
	}
	got := LogSumExp([]float64{1000, 1000})
	want := 1000 + 0.6931471805599453
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("LogSumExp = %v, want %v", got, want)
	}
}
