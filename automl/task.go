package automl

import (
	"strings"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/sklearn/model_selection"
)

// TaskType is the learning problem of a run.
type TaskType string

const (
	Classification TaskType = "classification"
	Regression     TaskType = "regression"
)

// ParseTaskType accepts "classification" or "regression" in any case.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(strings.ToLower(strings.TrimSpace(s))) {
	case Classification:
		return Classification, nil
	case Regression:
		return Regression, nil
	default:
		return "", errors.NewUnsupportedTaskTypeError(s)
	}
}

// Validate returns UnsupportedTaskTypeError for anything but the exact
// Classification or Regression constants. Use ParseTaskType for user input.
func (t TaskType) Validate() error {
	if t == Classification || t == Regression {
		return nil
	}
	return errors.NewUnsupportedTaskTypeError(string(t))
}

// Scoring is the greater-is-better cross-validation scorer for t.
func (t TaskType) Scoring() string {
	if t == Classification {
		return model_selection.ScoringAccuracy
	}
	return model_selection.ScoringNegRMSE
}

// Splitter returns stratified folds for classification and plain shuffled
// folds for regression.
func (t TaskType) Splitter(folds, seed int) model_selection.KFoldSplitter {
	if t == Classification {
		return model_selection.NewStratifiedKFold(folds, true, seed)
	}
	return model_selection.NewKFold(folds, true, seed)
}
