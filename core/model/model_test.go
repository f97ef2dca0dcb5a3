package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

type fittedThing struct {
	StateManager
	Coef []float64
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Thing", "Predict")
	var nfe *errors.NotFittedError
	require.True(t, errors.As(err, &nfe))

	s.SetFitted(3, 10)
	require.NoError(t, s.RequireFitted("Thing", "Predict"))
	nf, ns := s.GetDimensions()
	assert.Equal(t, 3, nf)
	assert.Equal(t, 10, ns)

	assert.NoError(t, s.CheckFeatures("Predict", mat.NewDense(2, 3, nil)))
	var dim *errors.DimensionError
	assert.True(t, errors.As(s.CheckFeatures("Predict", mat.NewDense(2, 4, nil)), &dim))

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestSaveLoadModel(t *testing.T) {
	in := &fittedThing{Coef: []float64{1.5, -2}}
	in.SetFitted(2, 8)

	path := filepath.Join(t.TempDir(), "thing.gob")
	require.NoError(t, SaveModel(in, path))

	out := &fittedThing{}
	require.NoError(t, LoadModel(out, path))
	assert.True(t, out.IsFitted())
	assert.Equal(t, in.Coef, out.Coef)

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(in, &buf))
	again := &fittedThing{}
	require.NoError(t, LoadModelFromReader(again, &buf))
	assert.Equal(t, in.Coef, again.Coef)

	assert.Error(t, LoadModel(out, filepath.Join(t.TempDir(), "missing.gob")))
	assert.Error(t, LoadModelFromReader(out, bytes.NewBufferString("not gob")))
}
