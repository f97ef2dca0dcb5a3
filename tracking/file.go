package tracking

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/store"
)

// runFile is the on-disk layout of run.json.
type runFile struct {
	RunID      string             `json:"run_id"`
	Experiment string             `json:"experiment"`
	Status     string             `json:"status"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    *time.Time         `json:"end_time,omitempty"`
	Params     map[string]string  `json:"params"`
	Metrics    map[string]float64 `json:"metrics"`
	Tags       map[string]string  `json:"tags"`
	Artifacts  []string           `json:"artifacts"`
}

// FileTracker stores runs under <root>/<experiment>/<run_id>/ as a run.json
// file plus an artifacts/ directory.
type FileTracker struct {
	root string

	mu   sync.Mutex
	runs map[string]string // run id -> run dir
}

// NewFileTracker returns a tracker rooted at dir.
func NewFileTracker(dir string) (*FileTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewTrackingBackendError("init", err)
	}
	return &FileTracker{root: dir, runs: make(map[string]string)}, nil
}

func (t *FileTracker) StartRun(ctx context.Context, experiment string) (string, error) {
	if experiment == "" {
		experiment = "Default"
	}
	id := uuid.NewString()
	dir := filepath.Join(t.root, experiment, id)
	if err := os.MkdirAll(filepath.Join(dir, "artifacts"), 0o755); err != nil {
		return "", errors.NewTrackingBackendError("start_run", err)
	}
	rf := &runFile{
		RunID:      id,
		Experiment: experiment,
		Status:     "RUNNING",
		StartTime:  time.Now().UTC(),
		Params:     map[string]string{},
		Metrics:    map[string]float64{},
		Tags:       map[string]string{},
	}
	if err := writeRun(dir, rf); err != nil {
		return "", errors.NewTrackingBackendError("start_run", err)
	}
	t.mu.Lock()
	t.runs[id] = dir
	t.mu.Unlock()
	return id, nil
}

// dir resolves a run directory, scanning the root for runs started by
// another process.
func (t *FileTracker) dir(runID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.runs[runID]; ok {
		return d, nil
	}
	matches, err := filepath.Glob(filepath.Join(t.root, "*", runID, "run.json"))
	if err != nil || len(matches) == 0 {
		return "", errors.Newf("run %s not found", runID)
	}
	d := filepath.Dir(matches[0])
	t.runs[runID] = d
	return d, nil
}

func (t *FileTracker) mutate(op, runID string, fn func(*runFile, string) error) error {
	dir, err := t.dir(runID)
	if err != nil {
		return errors.NewTrackingBackendError(op, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rf, err := readRun(dir)
	if err != nil {
		return errors.NewTrackingBackendError(op, err)
	}
	if err := fn(rf, dir); err != nil {
		return errors.NewTrackingBackendError(op, err)
	}
	if err := writeRun(dir, rf); err != nil {
		return errors.NewTrackingBackendError(op, err)
	}
	return nil
}

func (t *FileTracker) LogParam(ctx context.Context, runID, key, value string) error {
	return t.mutate("log_param", runID, func(rf *runFile, _ string) error {
		rf.Params[key] = value
		return nil
	})
}

func (t *FileTracker) LogMetric(ctx context.Context, runID, key string, value float64) error {
	return t.mutate("log_metric", runID, func(rf *runFile, _ string) error {
		rf.Metrics[key] = value
		return nil
	})
}

func (t *FileTracker) SetTag(ctx context.Context, runID, key, value string) error {
	return t.mutate("set_tag", runID, func(rf *runFile, _ string) error {
		rf.Tags[key] = value
		return nil
	})
}

func (t *FileTracker) LogArtifact(ctx context.Context, runID, path string) error {
	return t.mutate("log_artifact", runID, func(rf *runFile, dir string) error {
		name := filepath.Base(path)
		if err := copyFile(path, filepath.Join(dir, "artifacts", name)); err != nil {
			return err
		}
		rf.Artifacts = append(rf.Artifacts, name)
		return nil
	})
}

func (t *FileTracker) SaveModel(ctx context.Context, runID string, v any, name string) error {
	return t.mutate("save_model", runID, func(rf *runFile, dir string) error {
		file := name + ".gob"
		if err := model.SaveModel(v, filepath.Join(dir, "artifacts", file)); err != nil {
			return err
		}
		rf.Artifacts = append(rf.Artifacts, file)
		return nil
	})
}

func (t *FileTracker) GetRun(ctx context.Context, runID string) (*store.RunData, error) {
	dir, err := t.dir(runID)
	if err != nil {
		return nil, errors.NewTrackingBackendError("get_run", err)
	}
	t.mu.Lock()
	rf, err := readRun(dir)
	t.mu.Unlock()
	if err != nil {
		return nil, errors.NewTrackingBackendError("get_run", err)
	}
	return &store.RunData{
		RunID:   rf.RunID,
		Metrics: maps.Clone(rf.Metrics),
		Params:  maps.Clone(rf.Params),
		Tags:    maps.Clone(rf.Tags),
	}, nil
}

func (t *FileTracker) EndRun(ctx context.Context, runID, status string) error {
	return t.mutate("end_run", runID, func(rf *runFile, _ string) error {
		now := time.Now().UTC()
		rf.Status = status
		rf.EndTime = &now
		return nil
	})
}

// Artifacts lists the artifact file names logged to a run.
func (t *FileTracker) Artifacts(runID string) ([]string, error) {
	dir, err := t.dir(runID)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rf, err := readRun(dir)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), rf.Artifacts...), nil
}

func readRun(dir string) (*runFile, error) {
	b, err := os.ReadFile(filepath.Join(dir, "run.json"))
	if err != nil {
		return nil, err
	}
	var rf runFile
	if err := json.Unmarshal(b, &rf); err != nil {
		return nil, errors.Wrap(err, "corrupt run.json")
	}
	return &rf, nil
}

// writeRun replaces run.json through a rename so readers never see a
// partial file.
func writeRun(dir string, rf *runFile) error {
	b, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, "run.json.tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, "run.json"))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
