package automl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

func TestCandidates_RegistryOrder(t *testing.T) {
	tests := []struct {
		task TaskType
		want []string
	}{
		{Classification, []string{"Random Forest", "Logistic Regression", "XGBoost", "LightGBM"}},
		{Regression, []string{"Random Forest", "Linear Regression", "XGBoost", "LightGBM"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			cs, err := Candidates(tt.task)
			require.NoError(t, err)
			names := make([]string, len(cs))
			for i, c := range cs {
				names[i] = c.Name
				assert.Equal(t, tt.task, c.Task)
				assert.NotEmpty(t, c.Space, "%s must declare a search space", c.Name)

				est, err := c.Default()
				require.NoError(t, err)
				assert.NotNil(t, est)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestCandidates_UnsupportedTask(t *testing.T) {
	_, err := Candidates(TaskType("clustering"))
	assert.True(t, errors.Is(err, errors.ErrUnsupportedTaskType))
}

func TestNewCandidate_WrongTask(t *testing.T) {
	_, err := NewCandidate(LogisticRegression, Regression)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedModel))

	_, err = NewCandidate(LinearRegression, Classification)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedModel))
}

func TestParseModelKind(t *testing.T) {
	k, err := ParseModelKind("XGBoost")
	require.NoError(t, err)
	assert.Equal(t, XGBoost, k)

	_, err = ParseModelKind("SVM")
	assert.True(t, errors.Is(err, errors.ErrUnsupportedModel))
	assert.Equal(t, "ModelKind(99)", ModelKind(99).String())
}

func TestCandidate_Build(t *testing.T) {
	c, err := NewCandidate(RandomForest, Classification)
	require.NoError(t, err)

	pipe, err := c.Build(map[string]any{"n_estimators": 60, "max_depth": 4, "max_features": "sqrt"})
	require.NoError(t, err)
	_, ok := pipe.NamedStep("scaler")
	assert.True(t, ok)
	_, ok = pipe.NamedStep("model")
	assert.True(t, ok)

	_, err = c.Build(map[string]any{"n_estimators": 10, "max_depth": 4, "max_features": "sqrt"})
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr), "n_estimators below the range must be rejected")
	assert.Equal(t, "n_estimators", verr.ParamName)

	_, err = c.Build(map[string]any{"n_estimators": 60})
	assert.Error(t, err)
}
