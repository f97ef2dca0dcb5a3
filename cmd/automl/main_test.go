package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automl/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeIris(t *testing.T, dir string) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	var b strings.Builder
	b.WriteString("sepal,petal,species\n")
	for i := 0; i < 60; i++ {
		sepal := rng.Float64() * 4
		petal := rng.Float64() * 4
		species := "setosa"
		if sepal+petal > 4 {
			species = "virginica"
		}
		fmt.Fprintf(&b, "%.3f,%.3f,%s\n", sepal, petal, species)
	}
	path := filepath.Join(dir, "iris.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestCLI_RunStatusPredict(t *testing.T) {
	dir := t.TempDir()
	data := writeIris(t, dir)
	cfgPath := filepath.Join(dir, "automl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: error\npipeline:\n  n_trials: 2\n  cv_folds: 3\n"), 0o644))

	global := []string{
		"--config", cfgPath,
		"--db", filepath.Join(dir, "reports.db"),
		"--models-dir", filepath.Join(dir, "models"),
		"--tracking-dir", filepath.Join(dir, "mlruns"),
	}

	out, err := execute(t, append([]string{"run", "--data", data, "--target", "species", "--task", "classification"}, global...)...)
	require.NoError(t, err, out)

	var rep store.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, store.StatusCompleted, rep.Status)
	assert.Equal(t, "iris_"+rep.Data.BestModel, rep.Data.ModelKey)

	out, err = execute(t, append([]string{"status", rep.TaskID}, global...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  Completed")
	assert.Contains(t, out, rep.ReportID)

	out, err = execute(t, append([]string{"report", rep.ReportID}, global...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"best_params"`)

	out, err = execute(t, append([]string{"models"}, global...)...)
	require.NoError(t, err)
	assert.Contains(t, out, rep.Data.ModelKey)

	out, err = execute(t, append([]string{"predict", "--model", rep.Data.ModelKey, "--task", "classification", "--record", "sepal=3.9", "--record", "petal=3.8"}, global...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "prediction: ")
	assert.Contains(t, out, "label: virginica")

	_, err = execute(t, append([]string{"predict", "--model", rep.Data.ModelKey, "--task", "classification", "--features", "1"}, global...)...)
	assert.Error(t, err)

	_, err = execute(t, append([]string{"status", "no-such-report"}, global...)...)
	assert.Error(t, err)
}

func TestCLI_RunRejectsUnknownTask(t *testing.T) {
	dir := t.TempDir()
	data := writeIris(t, dir)
	_, err := execute(t, "run", "--data", data, "--target", "species", "--task", "ranking",
		"--log-level", "error",
		"--db", filepath.Join(dir, "reports.db"),
		"--models-dir", filepath.Join(dir, "models"),
		"--tracking-dir", filepath.Join(dir, "mlruns"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ranking")
}

func TestParseRecord(t *testing.T) {
	got, err := parseRecord([]string{"a=1", " b =x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, got)

	_, err = parseRecord([]string{"novalue"})
	assert.Error(t, err)

	f, err := parseFeatures("1, 2.5,-3")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, f)
}
