package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/automl/automl"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/preprocessing"
)

type predictFlags struct {
	model    string
	task     string
	features string
	record   []string
	unknown  string
}

func newPredictCmd(g *globalFlags) *cobra.Command {
	pf := &predictFlags{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict one row with a saved model",
		Long: "Predict one row with a saved model. --features takes encoded numeric\n" +
			"values in training column order; --record takes raw name=value pairs\n" +
			"and applies the saved encoders.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, g, pf)
		},
	}
	f := cmd.Flags()
	f.StringVar(&pf.model, "model", "", "model key, {dataset}_{model} (required)")
	f.StringVar(&pf.task, "task", "", "classification or regression (required)")
	f.StringVar(&pf.features, "features", "", "comma-separated feature values")
	f.StringSliceVar(&pf.record, "record", nil, "name=value pairs")
	f.StringVar(&pf.unknown, "unknown", "", "unseen category policy: reject or bucket (default from config)")

	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("task")
	cmd.MarkFlagsMutuallyExclusive("features", "record")
	cmd.MarkFlagsOneRequired("features", "record")
	return cmd
}

func runPredict(cmd *cobra.Command, g *globalFlags, pf *predictFlags) error {
	task, err := automl.ParseTaskType(pf.task)
	if err != nil {
		return err
	}
	e, err := g.open()
	if err != nil {
		return err
	}
	defer e.Close()

	p := automl.NewPredictor(e.artifacts)
	p.Policy = e.cfg.UnknownPolicy()
	if pf.unknown != "" {
		if p.Policy, err = preprocessing.ParseUnknownPolicy(pf.unknown); err != nil {
			return err
		}
	}

	var pred automl.Prediction
	if len(pf.record) > 0 {
		record, err := parseRecord(pf.record)
		if err != nil {
			return err
		}
		pred, err = p.PredictRecord(cmd.Context(), pf.model, task, record)
		if err != nil {
			return err
		}
	} else {
		features, err := parseFeatures(pf.features)
		if err != nil {
			return err
		}
		pred, err = p.Predict(cmd.Context(), pf.model, task, features)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if task == automl.Classification {
		fmt.Fprintf(out, "prediction: %d\n", pred.Class())
		if pred.Label != "" {
			fmt.Fprintf(out, "label: %s\n", pred.Label)
		}
		return nil
	}
	fmt.Fprintf(out, "prediction: %s\n", strconv.FormatFloat(pred.Value, 'g', -1, 64))
	return nil
}

func parseFeatures(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.NewValidationError("features", "not a number", p)
		}
		out[i] = v
	}
	return out, nil
}

func parseRecord(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.NewValidationError("record", "expected name=value", kv)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
