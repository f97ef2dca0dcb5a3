// Package config loads the automl YAML configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/preprocessing"
)

// Pipeline holds the knobs of one AutoML run.
type Pipeline struct {
	NTrials         int     `yaml:"n_trials"`
	CVFolds         int     `yaml:"cv_folds"`
	Seed            int     `yaml:"seed"`
	TestSize        float64 `yaml:"test_size"`
	MissingMarker   string  `yaml:"missing_marker"`
	NJobs           int     `yaml:"n_jobs"`
	UnknownCategory string  `yaml:"unknown_category"`
}

// Config is the top-level configuration file.
type Config struct {
	LogLevel       string   `yaml:"log_level"`
	Database       string   `yaml:"database"`
	ModelsDir      string   `yaml:"models_dir"`
	TrackingDir    string   `yaml:"tracking_dir"`
	ExperimentName string   `yaml:"experiment_name"`
	Pipeline       Pipeline `yaml:"pipeline"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		ModelsDir:      "models",
		TrackingDir:    "mlruns",
		ExperimentName: "automl",
		Pipeline: Pipeline{
			NTrials:         50,
			CVFolds:         5,
			Seed:            42,
			TestSize:        0.2,
			MissingMarker:   "?",
			UnknownCategory: "reject",
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := Parse(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields absent from data, and
// validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "invalid yaml")
	}
	return cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.NTrials < 1 {
		return errors.NewValidationError("pipeline.n_trials", "must be positive", p.NTrials)
	}
	if p.CVFolds < 2 {
		return errors.NewValidationError("pipeline.cv_folds", "must be at least 2", p.CVFolds)
	}
	if p.TestSize <= 0 || p.TestSize >= 1 {
		return errors.NewValidationError("pipeline.test_size", "must be in (0, 1)", p.TestSize)
	}
	if p.NJobs < 0 {
		return errors.NewValidationError("pipeline.n_jobs", "must not be negative", p.NJobs)
	}
	if _, err := preprocessing.ParseUnknownPolicy(p.UnknownCategory); err != nil {
		return err
	}
	_, err := log.ParseLevel(c.LogLevel)
	return err
}

// UnknownPolicy returns the parsed unknown_category policy.
func (c *Config) UnknownPolicy() preprocessing.UnknownPolicy {
	p, _ := preprocessing.ParseUnknownPolicy(c.Pipeline.UnknownCategory)
	return p
}
