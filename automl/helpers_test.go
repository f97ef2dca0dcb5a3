package automl

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automl/artifact"
	"github.com/YuminosukeSato/automl/dataset"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/store"
	"github.com/YuminosukeSato/automl/tracking"
)

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// classificationDataset has two numeric features and a label of "a" or "b"
// that depends on their sum. Rows listed in missing get "?" as f2.
func classificationDataset(t *testing.T, n int, missing ...int) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	skip := make(map[int]bool, len(missing))
	for _, i := range missing {
		skip[i] = true
	}
	records := make([][]string, n)
	for i := range records {
		f1 := rng.Float64() * 10
		f2 := rng.Float64() * 10
		label := "a"
		if f1+f2 > 10 {
			label = "b"
		}
		f2s := ftoa(f2)
		if skip[i] {
			f2s = "?"
		}
		records[i] = []string{ftoa(f1), f2s, label}
	}
	ds, err := dataset.FromRecords([]string{"f1", "f2", "label"}, records)
	require.NoError(t, err)
	ds.Name = "toy"
	return ds
}

// regressionDataset has y = 3*x1 - 2*x2 plus a little noise.
func regressionDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 5))
	records := make([][]string, n)
	for i := range records {
		x1 := rng.Float64() * 5
		x2 := rng.Float64() * 5
		y := 3*x1 - 2*x2 + rng.NormFloat64()*0.1
		records[i] = []string{ftoa(x1), ftoa(x2), ftoa(y)}
	}
	ds, err := dataset.FromRecords([]string{"x1", "x2", "y"}, records)
	require.NoError(t, err)
	ds.Name = "lin"
	return ds
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.NTrials = 2
	opts.Eval.Folds = 3
	return opts
}

func newTestRunner(t *testing.T, tr tracking.Tracker) (*Runner, *artifact.Store) {
	t.Helper()
	arts, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewRunner(store.NewMemoryStore(), tr, arts, fastOptions()), arts
}

// downTracker hands out a run id and then fails every other call.
type downTracker struct{ calls atomic.Int32 }

var errBackendDown = errors.New("tracking server unreachable")

func (d *downTracker) fail() error {
	d.calls.Add(1)
	return errBackendDown
}

func (d *downTracker) StartRun(context.Context, string) (string, error) {
	return "run-down", nil
}

func (d *downTracker) LogParam(context.Context, string, string, string) error {
	return d.fail()
}

func (d *downTracker) LogMetric(context.Context, string, string, float64) error {
	return d.fail()
}

func (d *downTracker) SetTag(context.Context, string, string, string) error {
	return d.fail()
}

func (d *downTracker) LogArtifact(context.Context, string, string) error {
	return d.fail()
}

func (d *downTracker) SaveModel(context.Context, string, any, string) error {
	return d.fail()
}

func (d *downTracker) GetRun(context.Context, string) (*store.RunData, error) {
	return nil, d.fail()
}

func (d *downTracker) EndRun(context.Context, string, string) error {
	return d.fail()
}
