package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automl/automl"
	"github.com/YuminosukeSato/automl/pkg/errors"
)

type runFlags struct {
	data        string
	target      string
	task        string
	sep         string
	columns     string
	noHeader    bool
	datasetName string
	nTrials     int
}

func newRunCmd(g *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Select, tune and train a model for a dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, g, rf)
		},
	}
	f := cmd.Flags()
	f.StringVar(&rf.data, "data", "", "dataset file: .csv, .tsv, .txt, .data or .parquet (required)")
	f.StringVar(&rf.target, "target", "", "target column (required)")
	f.StringVar(&rf.task, "task", "", "classification or regression (required)")
	f.StringVar(&rf.sep, "sep", "", "field separator; \\t for tab")
	f.StringVar(&rf.columns, "columns", "", "comma-separated column names replacing the header")
	f.BoolVar(&rf.noHeader, "no-header", false, "the first line is data")
	f.StringVar(&rf.datasetName, "dataset-name", "", "name used in artifact keys (default: file name)")
	f.IntVar(&rf.nTrials, "n-trials", 0, "tuning trials (default from config)")

	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func runRun(cmd *cobra.Command, g *globalFlags, rf *runFlags) error {
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()

	opts := automl.OptionsFromConfig(e.cfg)
	if rf.nTrials > 0 {
		opts.NTrials = rf.nTrials
	}
	runner := automl.NewRunner(e.reports, e.tracker, e.artifacts, opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := automl.RunRequest{
		Path:        rf.data,
		Target:      rf.target,
		TaskType:    rf.task,
		Separator:   rf.sep,
		NoHeader:    rf.noHeader,
		DatasetName: rf.datasetName,
	}
	if rf.columns != "" {
		for _, c := range strings.Split(rf.columns, ",") {
			req.ColumnNames = append(req.ColumnNames, strings.TrimSpace(c))
		}
	}

	rep, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if rep.Status.IsError() {
		return errors.Newf("report %s: %s", rep.ReportID, rep.Status)
	}
	return nil
}
