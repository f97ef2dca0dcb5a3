package store

import (
	"context"
	"sync"
	"time"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
	byTask  map[string]string
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*Report),
		byTask:  make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, reportID, taskID string, status Status) (*Report, error) {
	if reportID == "" {
		return nil, errors.NewValidationError("report_id", "must not be empty", reportID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[reportID]; ok {
		return nil, errors.Wrapf(ErrReportExists, "report %s", reportID)
	}
	if _, ok := s.byTask[taskID]; ok && taskID != "" {
		return nil, errors.Wrapf(ErrReportExists, "task %s", taskID)
	}
	now := s.now().UTC()
	r := &Report{ReportID: reportID, TaskID: taskID, Status: status, CreatedAt: now, UpdatedAt: now}
	s.reports[reportID] = r
	if taskID != "" {
		s.byTask[taskID] = reportID
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		if reportID, byTask := s.byTask[id]; byTask {
			r = s.reports[reportID]
		}
	}
	if r == nil {
		return nil, nil
	}
	return r.Clone(), nil
}

// Update applies u to a copy and swaps it in, so a failed update leaves the
// stored report unchanged.
func (s *MemoryStore) Update(ctx context.Context, reportID string, u Update) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, errors.Wrapf(ErrReportNotFound, "report %s", reportID)
	}
	next := r.Clone()
	if err := u.Apply(next, s.now().UTC()); err != nil {
		return nil, err
	}
	s.reports[reportID] = next
	return next.Clone(), nil
}
