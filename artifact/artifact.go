// Package artifact persists fitted pipelines on the filesystem, one
// directory per key.
package artifact

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/automl/core/model"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/preprocessing"
	"github.com/YuminosukeSato/automl/sklearn/pipeline"
)

const modelFile = "model.gob"

// Bundle is everything the prediction path needs besides the input row.
type Bundle struct {
	Pipeline     *pipeline.Pipeline
	Task         string
	DatasetName  string
	ModelName    string
	FeatureNames []string
	// FeatureEncoders is keyed by feature name; numeric features have none.
	FeatureEncoders map[string]*preprocessing.LabelEncoder
	// TargetEncoder is set for classification.
	TargetEncoder *preprocessing.LabelEncoder
	CreatedAt     time.Time
}

// Key returns the artifact key for a dataset and model name.
func Key(datasetName, modelName string) string {
	return datasetName + "_" + modelName
}

// Store is a filesystem-backed key to bundle mapping.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create models directory")
	}
	return &Store{root: dir}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", errors.NewValidationError("model_key", "must be a single path element", key)
	}
	return filepath.Join(s.root, key), nil
}

// Delete removes the artifact at key. A missing artifact is not an error.
func (s *Store) Delete(key string) error {
	dir, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete artifact %s", key)
	}
	return nil
}

// Save replaces the artifact at key with b.
func (s *Store) Save(key string, b *Bundle) error {
	if b == nil || b.Pipeline == nil {
		return errors.NewValueError("artifact.Save", "bundle has no pipeline")
	}
	if err := s.Delete(key); err != nil {
		return err
	}
	dir, _ := s.path(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create artifact %s", key)
	}
	return model.SaveModel(b, filepath.Join(dir, modelFile))
}

// Load reads the artifact at key. A missing artifact yields
// ModelNotFoundError.
func (s *Store) Load(key string) (*Bundle, error) {
	dir, err := s.path(key)
	if err != nil {
		return nil, err
	}
	file := filepath.Join(dir, modelFile)
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewModelNotFoundError(key)
		}
		return nil, errors.Wrapf(err, "failed to stat artifact %s", key)
	}
	var b Bundle
	if err := model.LoadModel(&b, file); err != nil {
		return nil, errors.Wrapf(err, "failed to load artifact %s", key)
	}
	return &b, nil
}

// List returns the stored keys in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list artifacts")
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), modelFile)); err == nil {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}
