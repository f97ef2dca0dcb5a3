package automl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/automl/artifact"
	"github.com/YuminosukeSato/automl/config"
	"github.com/YuminosukeSato/automl/dataset"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/store"
	"github.com/YuminosukeSato/automl/tracking"
)

// Options are the run-wide settings of a Runner.
type Options struct {
	Preprocess PreprocessOptions
	Eval       EvalOptions
	NTrials    int
	TuneSeed   int
	Experiment string
}

// DefaultOptions returns 50 trials, 5 folds, an 80/20 split and seed 42
// everywhere.
func DefaultOptions() Options {
	return Options{
		Preprocess: DefaultPreprocessOptions(),
		Eval:       DefaultEvalOptions(),
		NTrials:    50,
		TuneSeed:   42,
		Experiment: "automl",
	}
}

// OptionsFromConfig maps the pipeline block of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	p := cfg.Pipeline
	return Options{
		Preprocess: PreprocessOptions{
			MissingMarker: p.MissingMarker,
			TestSize:      p.TestSize,
			Seed:          p.Seed,
			UnknownPolicy: cfg.UnknownPolicy(),
		},
		Eval:       EvalOptions{Folds: p.CVFolds, Seed: p.Seed, NJobs: p.NJobs},
		NTrials:    p.NTrials,
		TuneSeed:   p.Seed,
		Experiment: cfg.ExperimentName,
	}
}

// RunRequest describes one run. Either Path or Dataset must be set.
type RunRequest struct {
	Path        string
	ColumnNames []string
	Separator   string
	NoHeader    bool

	// Dataset skips loading when set.
	Dataset *dataset.Dataset
	// DatasetName overrides the name taken from the file.
	DatasetName string

	Target   string
	TaskType string

	// ReportID and TaskID are generated when empty.
	ReportID string
	TaskID   string
}

// Runner sequences a full AutoML run and records it in a ReportStore.
type Runner struct {
	Reports   store.ReportStore
	Tracker   tracking.Tracker
	Artifacts *artifact.Store
	Options   Options
	Logger    log.Logger
}

// NewRunner returns a Runner. tracker may be nil.
func NewRunner(reports store.ReportStore, tracker tracking.Tracker, artifacts *artifact.Store, opts Options) *Runner {
	return &Runner{
		Reports:   reports,
		Tracker:   tracker,
		Artifacts: artifacts,
		Options:   opts,
		Logger:    log.GetLoggerWithName("automl.runner"),
	}
}

// runContext is the state owned by one run.
type runContext struct {
	reportID    string
	taskID      string
	datasetName string
	task        TaskType
	split       *Split
	candidates  []Candidate
	logger      log.Logger
}

// RunHandle tracks a submitted run.
type RunHandle struct {
	ReportID string
	TaskID   string

	done   chan struct{}
	report *store.Report
	err    error
}

// Done is closed when the run reached a terminal status.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes and returns its final report. The
// error is non-nil only if the final report could not be read; pipeline
// failures are in the report status.
func (h *RunHandle) Wait() (*store.Report, error) {
	<-h.done
	return h.report, h.err
}

// Submit validates and prepares a run, then executes the pipeline stages in
// the background. Errors from the task type, loading, preprocessing and
// report creation are returned directly. Once the report exists every
// failure is recorded as its "Error: <msg>" status. Cancelling ctx stops the
// run between trials and folds.
func (r *Runner) Submit(ctx context.Context, req RunRequest) (*RunHandle, error) {
	if r.Reports == nil {
		return nil, errors.NewValueError("Runner.Submit", "no report store")
	}
	task, err := ParseTaskType(req.TaskType)
	if err != nil {
		return nil, err
	}
	candidates, err := Candidates(task)
	if err != nil {
		return nil, err
	}

	ds := req.Dataset
	if ds == nil {
		ds, err = dataset.Load(ctx, req.Path, dataset.LoadOptions{
			ColumnNames: req.ColumnNames,
			Separator:   req.Separator,
			NoHeader:    req.NoHeader,
		})
		if err != nil {
			return nil, err
		}
	}
	name := req.DatasetName
	if name == "" {
		name = ds.Name
	}
	if name == "" {
		name = "dataset"
	}

	split, err := Preprocess(ds, req.Target, task, r.Options.Preprocess)
	if err != nil {
		return nil, err
	}

	rc := &runContext{
		reportID:    req.ReportID,
		taskID:      req.TaskID,
		datasetName: name,
		task:        task,
		split:       split,
		candidates:  candidates,
	}
	if rc.reportID == "" {
		rc.reportID = uuid.NewString()
	}
	if rc.taskID == "" {
		rc.taskID = uuid.NewString()
	}
	rc.logger = r.logger().With(log.ReportIDKey, rc.reportID, log.TaskIDKey, rc.taskID, log.DatasetKey, name)

	if _, err := r.Reports.Create(ctx, rc.reportID, rc.taskID, store.StatusRunning); err != nil {
		return nil, err
	}
	rc.logger.Info("run submitted", log.TaskTypeKey, string(task), log.StatusKey, string(store.StatusRunning))

	h := &RunHandle{ReportID: rc.reportID, TaskID: rc.taskID, done: make(chan struct{})}
	go r.execute(ctx, rc, h)
	return h, nil
}

// Run is Submit followed by Wait.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*store.Report, error) {
	h, err := r.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

func (r *Runner) logger() log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.GetLoggerWithName("automl.runner")
}

func (r *Runner) execute(ctx context.Context, rc *runContext, h *RunHandle) {
	defer close(h.done)
	start := time.Now()

	if err := r.stages(ctx, rc); err != nil {
		status := store.ErrorStatus(err.Error())
		rc.logger.Error("run failed", err, log.StatusKey, string(status))
		// a run that finalised before failing keeps its Completed status
		if _, uerr := r.Reports.Update(context.WithoutCancel(ctx), rc.reportID, store.Update{}.WithStatus(status)); uerr != nil {
			rc.logger.Warn("could not record failure", uerr)
		}
	} else {
		rc.logger.Info("run completed", log.DurationMsKey, time.Since(start).Milliseconds())
	}
	h.report, h.err = r.Reports.Get(context.WithoutCancel(ctx), rc.reportID)
}

// stages runs evaluate, tune and finalize with one report update after
// each. Panics become errors so they land in the report status.
func (r *Runner) stages(ctx context.Context, rc *runContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf("panic: %v", p)
		}
	}()
	opts := r.Options
	eval := opts.Eval
	eval.Logger = rc.logger

	evaluation, err := Evaluate(ctx, rc.candidates, rc.split.XTrain, rc.split.YTrain, rc.task, eval)
	if err != nil {
		return err
	}
	scores := make(map[string]store.CandidateScore, len(evaluation.Results))
	for _, res := range evaluation.Results {
		scores[res.Name] = store.CandidateScore{CVScores: res.Scores, MeanCVScore: res.Mean}
	}
	if _, err := r.Reports.Update(ctx, rc.reportID, store.Update{
		DatasetName:    store.Ptr(rc.datasetName),
		Candidates:     scores,
		CandidateOrder: evaluation.Order(),
		BestModel:      store.Ptr(evaluation.Best.Name),
	}); err != nil {
		return err
	}

	tuned, err := Tune(ctx, evaluation.Best, rc.split.XTrain, rc.split.YTrain, rc.task, TuneOptions{
		NTrials: opts.NTrials,
		Seed:    opts.TuneSeed,
		Eval:    eval,
		Logger:  rc.logger,
	})
	if err != nil {
		return err
	}
	if _, err := r.Reports.Update(ctx, rc.reportID, store.Update{
		BestParams:  tuned.BestParams,
		TuningScore: store.Ptr(tuned.BestValue),
	}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	f := &Finalizer{
		Tracker:    r.Tracker,
		Artifacts:  r.Artifacts,
		Reports:    r.Reports,
		Experiment: opts.Experiment,
		Logger:     rc.logger,
	}
	_, err = f.Finalize(ctx, FinalizeInput{
		Candidate:   evaluation.Best,
		Params:      tuned.BestParams,
		Split:       rc.split,
		DatasetName: rc.datasetName,
		ReportID:    rc.reportID,
	})
	return err
}

// String describes the handle for logs.
func (h *RunHandle) String() string {
	return fmt.Sprintf("run(report=%s task=%s)", h.ReportID, h.TaskID)
}
