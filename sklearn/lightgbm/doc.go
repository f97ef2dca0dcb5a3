// Package lightgbm implements histogram-based gradient boosted decision trees
// in the style of LightGBM.
//
// Training bins every feature into at most MaxBin buckets once, then grows
// each tree from per-leaf gradient/hessian histograms. Two growth policies
// are supported: leaf-wise (LightGBM, bounded by NumLeaves) and depth-wise
// (XGBoost, bounded by MaxDepth). The xgboost package builds on the latter.
//
// # scikit-learn Compatible API
//
//	clf := lightgbm.NewLGBMClassifier()
//	clf.NEstimators = 200
//	if err := clf.Fit(X, y); err != nil {
//	    return err
//	}
//	proba, err := clf.PredictProba(XTest)
//
// The low-level trainer is available directly for other front ends:
//
//	model, err := lightgbm.NewTrainer(lightgbm.TrainingParams{
//	    Objective:     lightgbm.RegressionL2,
//	    NumIterations: 100,
//	}).Train(X, y)
package lightgbm
