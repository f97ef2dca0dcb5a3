package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// UnknownPolicy decides how a LabelEncoder treats values it did not see in Fit.
type UnknownPolicy int

const (
	// UnknownReject fails with a SchemaError.
	UnknownReject UnknownPolicy = iota
	// UnknownBucket maps every unseen value to len(Classes).
	UnknownBucket
)

// ParseUnknownPolicy converts "reject" or "unknown" to an UnknownPolicy.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch s {
	case "", "reject":
		return UnknownReject, nil
	case "unknown", "bucket":
		return UnknownBucket, nil
	default:
		return UnknownReject, errors.NewValidationError("unknown_category", "must be reject or unknown", s)
	}
}

func (p UnknownPolicy) String() string {
	if p == UnknownBucket {
		return "unknown"
	}
	return "reject"
}

// LabelEncoder maps distinct string values to dense integers 0..k-1.
//
// Classes are sorted numerically when every value parses as a number and
// lexicographically otherwise, so the mapping only depends on the set of
// values seen.
type LabelEncoder struct {
	Column  string
	Classes []string
	Policy  UnknownPolicy

	index map[string]int
}

// NewLabelEncoder returns an encoder for column with the given policy.
func NewLabelEncoder(column string, policy UnknownPolicy) *LabelEncoder {
	return &LabelEncoder{Column: column, Policy: policy}
}

// Fit learns the class list from values.
func (le *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewSchemaError(le.Column, "cannot fit label encoder on an empty column")
	}
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sortClasses(classes)
	le.Classes = classes
	le.index = le.Mapping()
	return nil
}

// Transform encodes values. Unseen values follow the encoder's policy.
func (le *LabelEncoder) Transform(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		code, err := le.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// FitTransform fits on values and encodes them.
func (le *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := le.Fit(values); err != nil {
		return nil, err
	}
	return le.Transform(values)
}

// Encode encodes a single value.
func (le *LabelEncoder) Encode(v string) (int, error) {
	index := le.index
	if index == nil {
		// decoded encoders carry only Classes
		index = le.Mapping()
	}
	if code, ok := index[v]; ok {
		return code, nil
	}
	if le.Policy == UnknownBucket {
		return len(le.Classes), nil
	}
	return 0, errors.NewSchemaError(le.Column, "value "+strconv.Quote(v)+" was not seen during fit")
}

// InverseTransform maps a code back to its class. The unknown bucket
// decodes to the empty string.
func (le *LabelEncoder) InverseTransform(code int) (string, error) {
	if code >= 0 && code < len(le.Classes) {
		return le.Classes[code], nil
	}
	if le.Policy == UnknownBucket && code == len(le.Classes) {
		return "", nil
	}
	return "", errors.NewValueError("LabelEncoder.InverseTransform", "code "+strconv.Itoa(code)+" out of range")
}

// Mapping returns class -> code.
func (le *LabelEncoder) Mapping() map[string]int {
	m := make(map[string]int, len(le.Classes))
	for i, c := range le.Classes {
		m[c] = i
	}
	return m
}

func sortClasses(classes []string) {
	numeric := true
	for _, c := range classes {
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			numeric = false
			break
		}
	}
	if !numeric {
		sort.Strings(classes)
		return
	}
	sort.SliceStable(classes, func(i, j int) bool {
		a, _ := strconv.ParseFloat(classes[i], 64)
		b, _ := strconv.ParseFloat(classes[j], 64)
		if a != b {
			return a < b
		}
		return classes[i] < classes[j]
	})
}
