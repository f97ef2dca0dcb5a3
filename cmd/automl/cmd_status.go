package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/store"
)

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <report-id|task-id>",
		Short: "Show the status of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := getReport(cmd, g, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Report:  %s\n", rep.ReportID)
			fmt.Fprintf(out, "Task:    %s\n", rep.TaskID)
			fmt.Fprintf(out, "Status:  %s\n", rep.Status)
			if rep.Data.BestModel != "" {
				fmt.Fprintf(out, "Best:    %s\n", rep.Data.BestModel)
			}
			if rep.Data.ModelKey != "" {
				fmt.Fprintf(out, "Model:   %s\n", rep.Data.ModelKey)
			}
			return nil
		},
	}
}

func newReportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report <report-id|task-id>",
		Short: "Print the full report of a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := getReport(cmd, g, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func getReport(cmd *cobra.Command, g *globalFlags, id string) (*store.Report, error) {
	e, err := g.open()
	if err != nil {
		return nil, err
	}
	defer e.Close()
	rep, err := e.reports.Get(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, errors.Wrapf(store.ErrReportNotFound, "%s", id)
	}
	return rep, nil
}
