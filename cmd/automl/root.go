package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automl/artifact"
	"github.com/YuminosukeSato/automl/config"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/store"
	"github.com/YuminosukeSato/automl/tracking"
)

const defaultDBPath = "automl.db"

// globalFlags override the matching config file entries when set.
type globalFlags struct {
	configPath  string
	dbPath      string
	modelsDir   string
	trackingDir string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "automl",
		Short: "Automated model selection and tuning for tabular data",
		Long: "automl cross-validates candidate model families on a tabular dataset,\n" +
			"tunes the best one, trains the final pipeline and records the run.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "YAML config file")
	f.StringVar(&g.dbPath, "db", "", "SQLite report database (default \""+defaultDBPath+"\")")
	f.StringVar(&g.modelsDir, "models-dir", "", "model artifact directory")
	f.StringVar(&g.trackingDir, "tracking-dir", "", "experiment tracking directory")
	f.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newStatusCmd(g))
	root.AddCommand(newReportCmd(g))
	root.AddCommand(newPredictCmd(g))
	root.AddCommand(newModelsCmd(g))
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.dbPath != "" {
		cfg.Database = g.dbPath
	}
	if cfg.Database == "" {
		cfg.Database = defaultDBPath
	}
	if g.modelsDir != "" {
		cfg.ModelsDir = g.modelsDir
	}
	if g.trackingDir != "" {
		cfg.TrackingDir = g.trackingDir
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := log.SetupLogger(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is the storage wired from one config.
type env struct {
	cfg       *config.Config
	reports   *store.SQLiteStore
	artifacts *artifact.Store
	tracker   *tracking.FileTracker
}

func (g *globalFlags) open() (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	reports, err := store.NewSQLiteStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	arts, err := artifact.NewStore(cfg.ModelsDir)
	if err != nil {
		_ = reports.Close()
		return nil, err
	}
	tr, err := tracking.NewFileTracker(cfg.TrackingDir)
	if err != nil {
		_ = reports.Close()
		return nil, err
	}
	return &env{cfg: cfg, reports: reports, artifacts: arts, tracker: tr}, nil
}

func (e *env) Close() error { return e.reports.Close() }
