package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/preprocessing"
	"github.com/YuminosukeSato/automl/sklearn/linear_model"
	"github.com/YuminosukeSato/automl/sklearn/pipeline"
)

func fittedBundle(t *testing.T) (*Bundle, *mat.Dense) {
	t.Helper()
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{3, 5, 7, 9, 11})
	p := pipeline.New(
		pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault()},
		pipeline.Step{Name: "model", Estimator: linear_model.NewLinearRegression()},
	)
	require.NoError(t, p.Fit(X, y))

	enc := preprocessing.NewLabelEncoder("color", preprocessing.UnknownBucket)
	require.NoError(t, enc.Fit([]string{"red", "blue"}))
	return &Bundle{
		Pipeline:        p,
		Task:            "regression",
		DatasetName:     "lines",
		ModelName:       "Linear Regression",
		FeatureNames:    []string{"x"},
		FeatureEncoders: map[string]*preprocessing.LabelEncoder{"color": enc},
	}, X
}

func TestSaveLoad(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	b, X := fittedBundle(t)
	key := Key(b.DatasetName, b.ModelName)
	assert.Equal(t, "lines_Linear Regression", key)

	require.NoError(t, s.Save(key, b))
	loaded, err := s.Load(key)
	require.NoError(t, err)

	want, err := b.Pipeline.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Pipeline.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))

	assert.Equal(t, []string{"x"}, loaded.FeatureNames)
	code, err := loaded.FeatureEncoders["color"].Encode("red")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	code, err = loaded.FeatureEncoders["color"].Encode("green")
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	keys, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestSaveOverwrites(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	b, _ := fittedBundle(t)

	stale := filepath.Join(s.Root(), "k", "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	require.NoError(t, s.Save("k", b))
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(s.Root(), "k", modelFile))
}

func TestLoadMissing(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load("nothing_here")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrModelNotFound))

	assert.NoError(t, s.Delete("nothing_here"))
}

func TestInvalidKey(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "..", "a/b"} {
		_, err := s.Load(key)
		assert.Error(t, err, key)
	}
	assert.Error(t, s.Save("k", &Bundle{}))
}
