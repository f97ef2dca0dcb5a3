// Package store persists AutoML run reports. A report is created Running,
// updated once per pipeline stage and finalised exactly once.
package store

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	errorPrefix            = "Error: "
)

// ErrorStatus returns the terminal status that records msg.
func ErrorStatus(msg string) Status { return Status(errorPrefix + msg) }

// Terminal reports whether no further updates are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s.IsError()
}

// IsError reports whether s is an "Error: ..." status.
func (s Status) IsError() bool { return strings.HasPrefix(string(s), errorPrefix) }

var (
	// ErrReportFinalized is returned for any update to a finalised report.
	ErrReportFinalized = errors.New("report already finalized")
	// ErrReportNotFound is returned by Update for an unknown report id.
	ErrReportNotFound = errors.New("report not found")
	// ErrReportExists is returned by Create for a duplicate report or task id.
	ErrReportExists = errors.New("report already exists")
	// ErrInvalidTransition is returned for a status change other than
	// Running to a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// CandidateScore is the cross-validation outcome of one candidate.
type CandidateScore struct {
	CVScores    []float64 `json:"cv_scores"`
	MeanCVScore float64   `json:"mean_cv_score"`
}

// ReportData is the JSON blob stored with a report.
type ReportData struct {
	Candidates        map[string]CandidateScore `json:"candidates,omitempty"`
	CandidateOrder    []string                  `json:"candidate_order,omitempty"`
	BestModel         string                    `json:"best_model,omitempty"`
	BestParams        map[string]any            `json:"best_params,omitempty"`
	TuningScore       *float64                  `json:"tuning_score,omitempty"`
	ValidationMetrics map[string]float64        `json:"validation_metrics,omitempty"`
	ModelKey          string                    `json:"model_key,omitempty"`
}

// RunData is the tracking-backend view of a run.
type RunData struct {
	RunID   string             `json:"run_id"`
	Metrics map[string]float64 `json:"metrics"`
	Params  map[string]string  `json:"params"`
	Tags    map[string]string  `json:"tags"`
}

// Report is one pipeline run.
type Report struct {
	ReportID    string     `json:"report_id"`
	TaskID      string     `json:"task_id"`
	DatasetName string     `json:"dataset_name,omitempty"`
	ModelName   string     `json:"model_name,omitempty"`
	Status      Status     `json:"status"`
	Data        ReportData `json:"data"`
	Tracking    *RunData   `json:"tracking,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers never share maps with a store.
func (r *Report) Clone() *Report {
	out := *r
	out.Data.Candidates = maps.Clone(r.Data.Candidates)
	for k, v := range out.Data.Candidates {
		v.CVScores = append([]float64(nil), v.CVScores...)
		out.Data.Candidates[k] = v
	}
	out.Data.CandidateOrder = append([]string(nil), r.Data.CandidateOrder...)
	out.Data.BestParams = maps.Clone(r.Data.BestParams)
	out.Data.ValidationMetrics = maps.Clone(r.Data.ValidationMetrics)
	if r.Data.TuningScore != nil {
		v := *r.Data.TuningScore
		out.Data.TuningScore = &v
	}
	if r.Tracking != nil {
		t := *r.Tracking
		t.Metrics = maps.Clone(r.Tracking.Metrics)
		t.Params = maps.Clone(r.Tracking.Params)
		t.Tags = maps.Clone(r.Tracking.Tags)
		out.Tracking = &t
	}
	return &out
}

// Update is a set of field changes applied atomically. Nil fields are left
// untouched. Candidates are merged by name.
type Update struct {
	Status            *Status
	DatasetName       *string
	ModelName         *string
	Candidates        map[string]CandidateScore
	CandidateOrder    []string
	BestModel         *string
	BestParams        map[string]any
	TuningScore       *float64
	ValidationMetrics map[string]float64
	ModelKey          *string
	Tracking          *RunData
}

// WithStatus returns u with the status set.
func (u Update) WithStatus(s Status) Update {
	u.Status = &s
	return u
}

// Apply mutates r in place. It refuses to touch a terminal report and only
// allows the Running to terminal transition.
func (u Update) Apply(r *Report, now time.Time) error {
	if r.Status.Terminal() {
		return errors.Wrapf(ErrReportFinalized, "report %s is %q", r.ReportID, r.Status)
	}
	if u.Status != nil && *u.Status != r.Status && !u.Status.Terminal() {
		return errors.Wrapf(ErrInvalidTransition, "%q -> %q", r.Status, *u.Status)
	}
	if u.DatasetName != nil {
		r.DatasetName = *u.DatasetName
	}
	if u.ModelName != nil {
		r.ModelName = *u.ModelName
	}
	if len(u.Candidates) > 0 {
		if r.Data.Candidates == nil {
			r.Data.Candidates = make(map[string]CandidateScore, len(u.Candidates))
		}
		for name, score := range u.Candidates {
			r.Data.Candidates[name] = score
		}
	}
	if u.CandidateOrder != nil {
		r.Data.CandidateOrder = append([]string(nil), u.CandidateOrder...)
	}
	if u.BestModel != nil {
		r.Data.BestModel = *u.BestModel
	}
	if u.BestParams != nil {
		r.Data.BestParams = maps.Clone(u.BestParams)
	}
	if u.TuningScore != nil {
		v := *u.TuningScore
		r.Data.TuningScore = &v
	}
	if u.ValidationMetrics != nil {
		r.Data.ValidationMetrics = maps.Clone(u.ValidationMetrics)
	}
	if u.ModelKey != nil {
		r.Data.ModelKey = *u.ModelKey
	}
	if u.Tracking != nil {
		t := *u.Tracking
		r.Tracking = &t
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	r.UpdatedAt = now
	return nil
}

// ReportStore is the persistence boundary for reports. Get accepts either a
// report id or a task id and returns nil, nil when neither matches.
type ReportStore interface {
	Create(ctx context.Context, reportID, taskID string, status Status) (*Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	Update(ctx context.Context, reportID string, u Update) (*Report, error)
}

// Ptr returns a pointer to v. Handy for building an Update.
func Ptr[T any](v T) *T { return &v }
