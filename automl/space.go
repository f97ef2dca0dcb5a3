package automl

import (
	"fmt"
	"math"
	"sort"

	"github.com/c-bata/goptuna"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// ParamKind is the distribution of one hyperparameter.
type ParamKind int

const (
	// IntParam is uniform over the integers in [Low, High].
	IntParam ParamKind = iota
	// FloatParam is uniform over [Low, High].
	FloatParam
	// LogFloatParam is log-uniform over [Low, High].
	LogFloatParam
	// CategoricalParam is one of Choices.
	CategoricalParam
)

// Param declares one searchable hyperparameter.
type Param struct {
	Name    string
	Kind    ParamKind
	Low     float64
	High    float64
	Choices []any
}

// IntRange declares an integer parameter in [low, high].
func IntRange(name string, low, high int) Param {
	return Param{Name: name, Kind: IntParam, Low: float64(low), High: float64(high)}
}

// FloatRange declares a float parameter in [low, high].
func FloatRange(name string, low, high float64) Param {
	return Param{Name: name, Kind: FloatParam, Low: low, High: high}
}

// LogFloatRange declares a log-uniform float parameter in [low, high].
func LogFloatRange(name string, low, high float64) Param {
	return Param{Name: name, Kind: LogFloatParam, Low: low, High: high}
}

// Categorical declares a parameter taking one of choices.
func Categorical(name string, choices ...any) Param {
	return Param{Name: name, Kind: CategoricalParam, Choices: choices}
}

func (p Param) labels() []string {
	out := make([]string, len(p.Choices))
	for i, c := range p.Choices {
		out[i] = fmt.Sprint(c)
	}
	return out
}

// suggest draws p from trial and returns it in its native type.
func (p Param) suggest(trial goptuna.Trial) (any, error) {
	switch p.Kind {
	case IntParam:
		return trial.SuggestInt(p.Name, int(p.Low), int(p.High))
	case FloatParam:
		return trial.SuggestFloat(p.Name, p.Low, p.High)
	case LogFloatParam:
		return trial.SuggestLogFloat(p.Name, p.Low, p.High)
	case CategoricalParam:
		label, err := trial.SuggestCategorical(p.Name, p.labels())
		if err != nil {
			return nil, err
		}
		return p.normalize(label)
	default:
		return nil, errors.Newf("unknown param kind %d", p.Kind)
	}
}

// normalize converts v to p's native type. JSON round trips turn ints into
// float64 and bools into strings when they pass through labels, so both
// forms are accepted.
func (p Param) normalize(v any) (any, error) {
	switch p.Kind {
	case IntParam:
		var f float64
		switch x := v.(type) {
		case int:
			return p.checkRange(float64(x), x)
		case int64:
			f = float64(x)
		case float64:
			f = x
		default:
			return nil, errors.NewValidationError(p.Name, "expected an integer", v)
		}
		if f != math.Trunc(f) {
			return nil, errors.NewValidationError(p.Name, "expected an integer", v)
		}
		return p.checkRange(f, int(f))
	case FloatParam, LogFloatParam:
		switch x := v.(type) {
		case float64:
			return p.checkRange(x, x)
		case int:
			return p.checkRange(float64(x), float64(x))
		default:
			return nil, errors.NewValidationError(p.Name, "expected a number", v)
		}
	case CategoricalParam:
		for i, c := range p.Choices {
			if c == v || fmt.Sprint(c) == fmt.Sprint(v) {
				return p.Choices[i], nil
			}
		}
		return nil, errors.NewValidationError(p.Name, fmt.Sprintf("must be one of %v", p.Choices), v)
	default:
		return nil, errors.Newf("unknown param kind %d", p.Kind)
	}
}

func (p Param) checkRange(f float64, native any) (any, error) {
	if f < p.Low || f > p.High || math.IsNaN(f) {
		return nil, errors.NewValidationError(p.Name, fmt.Sprintf("must be in [%g, %g]", p.Low, p.High), native)
	}
	return native, nil
}

// Space is an ordered hyperparameter search space.
type Space []Param

// Names returns the parameter names in declaration order.
func (s Space) Names() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Name
	}
	return out
}

// Normalize validates params against s and converts every value to its
// native type. Missing and extra keys are errors.
func (s Space) Normalize(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for _, p := range s {
		v, ok := params[p.Name]
		if !ok {
			return nil, errors.NewValidationError(p.Name, "missing from parameter set", nil)
		}
		nv, err := p.normalize(v)
		if err != nil {
			return nil, err
		}
		out[p.Name] = nv
	}
	if len(params) != len(s) {
		extra := make([]string, 0)
		for k := range params {
			if _, err := s.find(k); err != nil {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return nil, errors.NewValidationError("params", "not in search space", extra)
	}
	return out, nil
}

// Contains reports whether params is a complete point of s.
func (s Space) Contains(params map[string]any) bool {
	_, err := s.Normalize(params)
	return err == nil
}

// Suggest samples every parameter of s from trial.
func (s Space) Suggest(trial goptuna.Trial) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for _, p := range s {
		v, err := p.suggest(trial)
		if err != nil {
			return nil, errors.Wrapf(err, "suggest %s", p.Name)
		}
		out[p.Name] = v
	}
	return out, nil
}

func (s Space) find(name string) (Param, error) {
	for _, p := range s {
		if p.Name == name {
			return p, nil
		}
	}
	return Param{}, errors.Newf("parameter %s not in space", name)
}
