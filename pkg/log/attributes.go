package log

// Attribute keys shared by every component so log records can be queried
// uniformly.
const (
	ComponentKey = "component"
	ModelNameKey = "model.name"
	OperationKey = "ml.operation"
	PhaseKey     = "ml.phase"
	TaskTypeKey  = "ml.task_type"

	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	DatasetKey  = "data.name"
	PathKey     = "data.path"

	DurationMsKey = "perf.duration_ms"

	AccuracyKey  = "metrics.accuracy"
	RMSEKey      = "metrics.rmse"
	R2ScoreKey   = "metrics.r2_score"
	CVMeanKey    = "metrics.cv_mean"
	CVScoresKey  = "metrics.cv_scores"
	ObjectiveKey = "metrics.objective"

	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	TrialKey       = "tuning.trial"
	NTrialsKey     = "tuning.n_trials"
	FoldKey        = "cv.fold"

	ReportIDKey = "automl.report_id"
	TaskIDKey   = "automl.task_id"
	RunIDKey    = "tracking.run_id"
	StatusKey   = "automl.status"
	ArtifactKey = "artifact.key"

	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Values for OperationKey.
const (
	OperationLoad       = "load"
	OperationPreprocess = "preprocess"
	OperationFit        = "fit"
	OperationPredict    = "predict"
	OperationEvaluate   = "evaluate"
	OperationTune       = "tune"
	OperationFinalize   = "finalize"
	OperationTrack      = "track"
)
