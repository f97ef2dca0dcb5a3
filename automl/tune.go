package automl

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
)

// ErrTrialBudget is returned by the objective if the search asks for more
// trials than configured.
var ErrTrialBudget = errors.New("trial budget exhausted")

// TuneOptions controls Tune.
type TuneOptions struct {
	NTrials int
	// Seed seeds the TPE sampler. Fold seeds come from Eval.
	Seed   int
	Eval   EvalOptions
	Logger log.Logger
}

// DefaultTuneOptions returns 50 trials with fixed seeds.
func DefaultTuneOptions() TuneOptions {
	return TuneOptions{NTrials: 50, Seed: 42, Eval: DefaultEvalOptions()}
}

// TrialRecord is one evaluated hyperparameter set.
type TrialRecord struct {
	Number int
	Params map[string]any
	// Value is the minimised objective: negative accuracy for
	// classification, RMSE for regression.
	Value    float64
	Duration time.Duration
}

// TuneResult is the outcome of a search.
type TuneResult struct {
	Candidate  string
	BestParams map[string]any
	BestValue  float64
	Trials     []TrialRecord
}

// goptunaLogger routes study events into a Logger. Per-trial chatter is
// demoted to debug.
type goptunaLogger struct {
	log.Logger
}

func (l goptunaLogger) Info(msg string, fields ...interface{}) { l.Logger.Debug(msg, fields...) }

// TuneByName looks up a candidate by display name and tunes it. A name the
// registry does not know yields UnsupportedModelError.
func TuneByName(ctx context.Context, name string, X, y mat.Matrix, task TaskType, opts TuneOptions) (*TuneResult, error) {
	kind, err := ParseModelKind(name)
	if err != nil {
		return nil, err
	}
	c, err := NewCandidate(kind, task)
	if err != nil {
		return nil, err
	}
	return Tune(ctx, c, X, y, task, opts)
}

// Tune searches c.Space with TPE for exactly opts.NTrials trials, minimising
// the negated mean cross-validation score. The context is checked before
// every trial; a trial in progress is not interrupted.
func Tune(ctx context.Context, c Candidate, X, y mat.Matrix, task TaskType, opts TuneOptions) (*TuneResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("automl.tune")
	}
	logger = logger.With(log.ModelNameKey, c.Name)

	if err := task.Validate(); err != nil {
		return nil, err
	}
	if _, err := SpaceFor(c.Kind); err != nil {
		return nil, err
	}
	if c.Name != c.Kind.String() {
		return nil, errors.NewUnsupportedModelError(c.Name)
	}
	if c.Task != task {
		return nil, errors.NewValueError("Tune", c.Name+" is registered for "+string(c.Task))
	}
	if opts.NTrials < 1 {
		return nil, errors.NewValidationError("n_trials", "must be positive", opts.NTrials)
	}

	var (
		mu     sync.Mutex
		result = &TuneResult{Candidate: c.Name, BestValue: math.Inf(1)}
		objErr error
	)
	objective := func(trial goptuna.Trial) (float64, error) {
		mu.Lock()
		number := len(result.Trials)
		mu.Unlock()
		if number >= opts.NTrials {
			return 0, ErrTrialBudget
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		start := time.Now()
		params, err := c.Space.Suggest(trial)
		if err != nil {
			return 0, err
		}
		cv, err := crossValidate(ctx, c, params, X, y, opts.Eval)
		if err != nil {
			mu.Lock()
			if objErr == nil {
				objErr = errors.Wrapf(err, "trial %d", number)
			}
			mu.Unlock()
			return 0, err
		}
		value := -cv.GetMeanScore()

		mu.Lock()
		result.Trials = append(result.Trials, TrialRecord{
			Number: number, Params: params, Value: value, Duration: time.Since(start),
		})
		if value < result.BestValue {
			result.BestValue = value
			result.BestParams = params
		}
		mu.Unlock()

		logger.Debug("trial finished",
			log.TrialKey, number,
			log.HyperParamsKey, params,
			log.ObjectiveKey, value,
		)
		return value, nil
	}

	study, err := goptuna.CreateStudy("automl-"+c.Name,
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(int64(opts.Seed)))),
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionLogger(goptunaLogger{logger}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create study")
	}
	study.WithContext(ctx)

	start := time.Now()
	optErr := study.Optimize(objective, opts.NTrials)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if objErr != nil {
		return nil, objErr
	}
	if optErr != nil {
		return nil, errors.Wrap(optErr, "hyperparameter search failed")
	}
	if result.BestParams == nil {
		return nil, errors.NewValueError("Tune", "no trial completed")
	}

	logger.Info("tuning finished",
		log.NTrialsKey, len(result.Trials),
		log.HyperParamsKey, result.BestParams,
		log.ObjectiveKey, result.BestValue,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}
