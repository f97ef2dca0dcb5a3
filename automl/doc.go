// Package automl selects, tunes and trains a model for a tabular dataset.
//
// A run moves through fixed stages:
//
//	Preprocess -> Evaluate (5-fold CV per candidate) -> Tune (TPE search)
//	-> Finalize (fit, validate, persist, track)
//
// Runner sequences the stages against a store.ReportStore. Loading and
// preprocessing fail synchronously; once the report is Running every error
// is recorded in its status instead of being returned.
//
//	runner := automl.NewRunner(reports, tracker, artifacts, automl.DefaultOptions())
//	report, err := runner.Run(ctx, automl.RunRequest{
//		Path:     "iris.csv",
//		Target:   "species",
//		TaskType: "classification",
//	})
package automl
