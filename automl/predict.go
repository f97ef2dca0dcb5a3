package automl

import (
	"context"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automl/artifact"
	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
	"github.com/YuminosukeSato/automl/preprocessing"
)

// Prediction is a single-row model output.
type Prediction struct {
	Task TaskType `json:"task_type"`
	// Value is the regression output, or the encoded class for
	// classification.
	Value float64 `json:"value"`
	// Label is the decoded class label for classification.
	Label string `json:"label,omitempty"`
}

// Class returns the prediction cast to an integer class code.
func (p Prediction) Class() int { return int(math.Round(p.Value)) }

// Predictor serves single-row predictions from stored artifacts.
type Predictor struct {
	Artifacts *artifact.Store
	// Policy overrides how PredictRecord encodes unseen categorical values.
	Policy preprocessing.UnknownPolicy
	Logger log.Logger
}

// NewPredictor returns a predictor over s that rejects unseen categories.
func NewPredictor(s *artifact.Store) *Predictor {
	return &Predictor{Artifacts: s, Policy: preprocessing.UnknownReject}
}

func (p *Predictor) load(modelKey string, task TaskType) (*artifact.Bundle, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	b, err := p.Artifacts.Load(modelKey)
	if err != nil {
		return nil, err
	}
	if b.Task != string(task) {
		return nil, errors.NewValueError("Predict", "model "+modelKey+" was trained for "+b.Task)
	}
	return b, nil
}

// Predict loads the artifact at modelKey and predicts one already-encoded
// feature vector.
func (p *Predictor) Predict(ctx context.Context, modelKey string, task TaskType, features []float64) (Prediction, error) {
	b, err := p.load(modelKey, task)
	if err != nil {
		return Prediction{}, err
	}
	return p.predict(ctx, b, task, features)
}

// PredictRecord encodes a raw record keyed by feature name with the stored
// encoders and predicts it.
func (p *Predictor) PredictRecord(ctx context.Context, modelKey string, task TaskType, record map[string]string) (Prediction, error) {
	b, err := p.load(modelKey, task)
	if err != nil {
		return Prediction{}, err
	}
	features, err := encodeRecord(b, record, p.Policy)
	if err != nil {
		return Prediction{}, err
	}
	return p.predict(ctx, b, task, features)
}

func (p *Predictor) predict(ctx context.Context, b *artifact.Bundle, task TaskType, features []float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if len(features) != len(b.FeatureNames) {
		return Prediction{}, errors.NewDimensionError("Predict", len(b.FeatureNames), len(features), 1)
	}
	row := mat.NewDense(1, len(features), append([]float64(nil), features...))
	out, err := b.Pipeline.Predict(row)
	if err != nil {
		return Prediction{}, err
	}
	pred := Prediction{Task: task, Value: out.At(0, 0)}
	if task == Classification {
		pred.Value = float64(pred.Class())
		if b.TargetEncoder != nil {
			if label, err := b.TargetEncoder.InverseTransform(pred.Class()); err == nil {
				pred.Label = label
			}
		}
	}
	if p.Logger != nil {
		p.Logger.Debug("prediction served", log.ModelNameKey, b.ModelName, "value", pred.Value)
	}
	return pred, nil
}

// encodeRecord maps a raw record onto the bundle's feature order.
func encodeRecord(b *artifact.Bundle, record map[string]string, policy preprocessing.UnknownPolicy) ([]float64, error) {
	out := make([]float64, len(b.FeatureNames))
	for j, name := range b.FeatureNames {
		raw, ok := record[name]
		if !ok {
			return nil, errors.NewSchemaError(name, "missing from record")
		}
		raw = strings.TrimSpace(raw)
		if enc, ok := b.FeatureEncoders[name]; ok {
			e := *enc
			e.Policy = policy
			code, err := e.Encode(raw)
			if err != nil {
				return nil, err
			}
			out[j] = float64(code)
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.NewSchemaError(name, "value "+strconv.Quote(raw)+" is not numeric")
		}
		out[j] = v
	}
	return out, nil
}
