package automl

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/dataset"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/preprocessing"
)

// PreprocessOptions controls Preprocess.
type PreprocessOptions struct {
	// MissingMarker is treated as a missing cell in addition to empty cells.
	MissingMarker string
	TestSize      float64
	Seed          int
	UnknownPolicy preprocessing.UnknownPolicy
}

// DefaultPreprocessOptions returns an 80/20 split with seed 42 and "?" as the
// missing marker.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{MissingMarker: "?", TestSize: 0.2, Seed: 42}
}

// Split is the model-ready view of a dataset.
type Split struct {
	XTrain, XVal *mat.Dense
	YTrain, YVal *mat.Dense

	FeatureNames []string
	// FeatureEncoders holds one encoder per non-numeric feature.
	FeatureEncoders map[string]*preprocessing.LabelEncoder
	// TargetEncoder is set for classification.
	TargetEncoder *preprocessing.LabelEncoder

	// TrainRows and ValRows are the dataset row numbers behind each matrix row.
	TrainRows, ValRows []int
	DroppedRows        int
}

// Preprocess drops rows with a missing cell, encodes non-numeric columns and
// splits train and validation rows.
//
// Every non-numeric feature is label encoded with classes sorted as
// LabelEncoder does, fitted on the kept rows of the column before the split. A
// classification target is always encoded so classes are 0..k-1; a
// regression target must be numeric.
func Preprocess(ds *dataset.Dataset, target string, task TaskType, opts PreprocessOptions) (*Split, error) {
	logger := log.GetLoggerWithName("automl.preprocess")
	if err := task.Validate(); err != nil {
		return nil, err
	}
	targetCol, ok := ds.Column(target)
	if !ok {
		return nil, errors.NewSchemaError(target, "target column not found")
	}
	var features []*dataset.Column
	for _, name := range ds.Columns() {
		if name == target {
			continue
		}
		c, _ := ds.Column(name)
		features = append(features, c)
	}
	if len(features) == 0 {
		return nil, errors.NewSchemaError(target, "dataset has no feature columns")
	}

	rows := keptRows(ds, append([]*dataset.Column{targetCol}, features...), opts.MissingMarker)
	if len(rows) == 0 {
		return nil, errors.NewSchemaError("", "no rows left after dropping missing values")
	}

	X := mat.NewDense(len(rows), len(features), nil)
	s := &Split{
		FeatureEncoders: make(map[string]*preprocessing.LabelEncoder),
		DroppedRows:     ds.NumRows() - len(rows),
	}
	for j, c := range features {
		s.FeatureNames = append(s.FeatureNames, c.Name)
		col, enc, err := encodeColumn(c, rows, opts.UnknownPolicy, false)
		if err != nil {
			return nil, err
		}
		if enc != nil {
			s.FeatureEncoders[c.Name] = enc
		}
		X.SetCol(j, col)
	}

	yCol, enc, err := encodeColumn(targetCol, rows, preprocessing.UnknownReject, task == Classification)
	if err != nil {
		return nil, err
	}
	if task == Regression && enc != nil {
		return nil, errors.NewSchemaError(target, "regression target must be numeric")
	}
	if task == Classification && len(enc.Classes) < 2 {
		return nil, errors.NewSchemaError(target, "classification target needs at least two classes")
	}
	s.TargetEncoder = enc
	y := mat.NewDense(len(rows), 1, yCol)

	train, val, err := preprocessing.SplitIndices(len(rows), opts.TestSize, opts.Seed)
	if err != nil {
		return nil, err
	}
	s.XTrain = preprocessing.SelectRows(X, train)
	s.XVal = preprocessing.SelectRows(X, val)
	s.YTrain = preprocessing.SelectRows(y, train)
	s.YVal = preprocessing.SelectRows(y, val)
	s.TrainRows = mapRows(rows, train)
	s.ValRows = mapRows(rows, val)

	logger.Info("preprocessed dataset",
		log.DatasetKey, ds.Name,
		log.SamplesKey, len(rows),
		log.FeaturesKey, len(features),
		"dropped_rows", s.DroppedRows,
		"encoded_features", len(s.FeatureEncoders),
		"train_rows", len(train),
		"val_rows", len(val),
	)
	return s, nil
}

func isMissing(c *dataset.Column, i int, marker string) bool {
	return c.Missing(i) || (marker != "" && strings.TrimSpace(c.String(i)) == marker)
}

// keptRows returns the rows without a missing cell in any of cols.
func keptRows(ds *dataset.Dataset, cols []*dataset.Column, marker string) []int {
	rows := make([]int, 0, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		keep := true
		for _, c := range cols {
			if isMissing(c, i, marker) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, i)
		}
	}
	return rows
}

// encodeColumn returns the column values at rows as floats. Non-numeric
// columns, or every column when force is set, go through a LabelEncoder.
func encodeColumn(c *dataset.Column, rows []int, policy preprocessing.UnknownPolicy, force bool) ([]float64, *preprocessing.LabelEncoder, error) {
	out := make([]float64, len(rows))
	numeric := !force
	raw := make([]string, len(rows))
	for i, r := range rows {
		raw[i] = strings.TrimSpace(c.String(r))
		if numeric {
			v, err := strconv.ParseFloat(raw[i], 64)
			if err != nil {
				numeric = false
				continue
			}
			out[i] = v
		}
	}
	if numeric {
		return out, nil, nil
	}
	enc := preprocessing.NewLabelEncoder(c.Name, policy)
	codes, err := enc.FitTransform(raw)
	if err != nil {
		return nil, nil, err
	}
	for i, code := range codes {
		out[i] = float64(code)
	}
	return out, enc, nil
}

func mapRows(rows, idx []int) []int {
	out := make([]int, len(idx))
	for i, k := range idx {
		out[i] = rows[k]
	}
	return out
}
