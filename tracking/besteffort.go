package tracking

import (
	"context"
	"sync/atomic"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/store"
)

// BestEffortTracker forwards to a Tracker and swallows its failures. Every
// method returns a nil error; failures are logged at warn level as
// TrackingBackendError and counted.
type BestEffortTracker struct {
	inner    Tracker
	logger   log.Logger
	failures atomic.Int64
}

// BestEffort wraps t. A nil t yields a tracker that records nothing.
func BestEffort(t Tracker, logger log.Logger) *BestEffortTracker {
	if logger == nil {
		logger = log.GetLoggerWithName("tracking")
	}
	return &BestEffortTracker{inner: t, logger: logger}
}

// Failures returns how many backend calls failed so far.
func (b *BestEffortTracker) Failures() int64 { return b.failures.Load() }

func (b *BestEffortTracker) fail(op, runID string, err error) {
	b.failures.Add(1)
	var tbe *errors.TrackingBackendError
	if !errors.As(err, &tbe) {
		err = errors.NewTrackingBackendError(op, err)
	}
	b.logger.Warn("tracking call failed", err, log.OperationKey, op, log.RunIDKey, runID)
}

func (b *BestEffortTracker) call(op, runID string, fn func() error) error {
	if b.inner == nil || (runID == "" && op != "start_run") {
		return nil
	}
	if err := safely(fn); err != nil {
		b.fail(op, runID, err)
	}
	return nil
}

// safely turns a panicking backend into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("tracking backend panic: %v", r)
		}
	}()
	return fn()
}

// StartRun returns "" when the backend is unavailable. Later calls with an
// empty run id are skipped.
func (b *BestEffortTracker) StartRun(ctx context.Context, experiment string) (string, error) {
	var id string
	_ = b.call("start_run", "", func() error {
		got, err := b.inner.StartRun(ctx, experiment)
		if err == nil {
			id = got
		}
		return err
	})
	return id, nil
}

func (b *BestEffortTracker) LogParam(ctx context.Context, runID, key, value string) error {
	return b.call("log_param", runID, func() error { return b.inner.LogParam(ctx, runID, key, value) })
}

func (b *BestEffortTracker) LogMetric(ctx context.Context, runID, key string, value float64) error {
	return b.call("log_metric", runID, func() error { return b.inner.LogMetric(ctx, runID, key, value) })
}

func (b *BestEffortTracker) SetTag(ctx context.Context, runID, key, value string) error {
	return b.call("set_tag", runID, func() error { return b.inner.SetTag(ctx, runID, key, value) })
}

func (b *BestEffortTracker) LogArtifact(ctx context.Context, runID, path string) error {
	return b.call("log_artifact", runID, func() error { return b.inner.LogArtifact(ctx, runID, path) })
}

func (b *BestEffortTracker) SaveModel(ctx context.Context, runID string, v any, name string) error {
	return b.call("save_model", runID, func() error { return b.inner.SaveModel(ctx, runID, v, name) })
}

// GetRun returns nil, nil when the backend fails.
func (b *BestEffortTracker) GetRun(ctx context.Context, runID string) (*store.RunData, error) {
	var rd *store.RunData
	_ = b.call("get_run", runID, func() error {
		var err error
		rd, err = b.inner.GetRun(ctx, runID)
		return err
	})
	return rd, nil
}

func (b *BestEffortTracker) EndRun(ctx context.Context, runID, status string) error {
	return b.call("end_run", runID, func() error { return b.inner.EndRun(ctx, runID, status) })
}
