package automl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRankImportances(t *testing.T) {
	got, err := rankImportances([]string{"a", "b", "c"}, []float64{0.2, 0.5, 0.2})
	require.NoError(t, err)
	assert.Equal(t, []FeatureImportance{{"b", 0.5}, {"a", 0.2}, {"c", 0.2}}, got)

	_, err = rankImportances([]string{"a"}, []float64{1, 2})
	assert.Error(t, err)
}

func TestPlotWriters(t *testing.T) {
	dir := t.TempDir()

	cm := mat.NewDense(2, 2, []float64{5, 1, 2, 7})
	cmPath := filepath.Join(dir, "cm.png")
	require.NoError(t, writeConfusionMatrixPNG(cmPath, "Confusion Matrix", cm, []string{"a", "b"}))

	flat := mat.NewDense(2, 2, []float64{3, 3, 3, 3})
	require.NoError(t, writeConfusionMatrixPNG(filepath.Join(dir, "flat.png"), "Uniform", flat, []string{"a", "b"}))

	ranked := []FeatureImportance{{"f1", 0.7}, {"f2", 0.3}}
	require.NoError(t, writeImportancesPNG(filepath.Join(dir, "fi.png"), "Feature Importances", ranked))

	csvPath := filepath.Join(dir, "fi.csv")
	require.NoError(t, writeImportancesCSV(csvPath, ranked))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "feature,importance\nf1,0.7\nf2,0.3\n", string(data))

	info, err := os.Stat(cmPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
