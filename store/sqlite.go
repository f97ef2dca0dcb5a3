package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/automl/pkg/errors"
	"github.com/YuminosukeSato/automl/pkg/log"
)

const reportSchema = `
CREATE TABLE IF NOT EXISTS reports (
	report_id    TEXT PRIMARY KEY,
	task_id      TEXT UNIQUE,
	dataset_name TEXT NOT NULL DEFAULT '',
	model_name   TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	data         TEXT NOT NULL DEFAULT '{}',
	tracking     TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
`

// SQLiteStore persists reports in a SQLite database. Updates run in an
// immediate transaction and the final UPDATE is guarded on the status read
// inside it, so a finalised row can never be rewritten.
type SQLiteStore struct {
	db     *sql.DB
	logger log.Logger
	now    func() time.Time
}

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if _, err := db.Exec(reportSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return &SQLiteStore{db: db, logger: log.GetLoggerWithName("store.sqlite"), now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries op with exponential backoff while SQLite reports the
// database as locked.
func (s *SQLiteStore) retryOnBusy(ctx context.Context, op func() error) error {
	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = op(); err == nil || !isBusy(err) {
			return err
		}
		backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
		s.logger.Debug("database busy, retrying", "attempt", i+1, "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(err, "operation failed after %d retries", maxRetries)
}

func (s *SQLiteStore) Create(ctx context.Context, reportID, taskID string, status Status) (*Report, error) {
	if reportID == "" {
		return nil, errors.NewValidationError("report_id", "must not be empty", reportID)
	}
	now := s.now().UTC()
	r := &Report{ReportID: reportID, TaskID: taskID, Status: status, CreatedAt: now, UpdatedAt: now}

	var task sql.NullString
	if taskID != "" {
		task = sql.NullString{String: taskID, Valid: true}
	}
	err := s.retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO reports (report_id, task_id, status, data, created_at, updated_at) VALUES (?, ?, ?, '{}', ?, ?)`,
			reportID, task, string(status), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, errors.Wrapf(ErrReportExists, "report %s / task %s", reportID, taskID)
		}
		return nil, errors.Wrap(err, "failed to create report")
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r                    Report
		task, tracking       sql.NullString
		status, data         string
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ReportID, &task, &r.DatasetName, &r.ModelName, &status, &data, &tracking, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.TaskID = task.String
	r.Status = Status(status)
	if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal report data")
	}
	if tracking.Valid && tracking.String != "" {
		r.Tracking = &RunData{}
		if err := json.Unmarshal([]byte(tracking.String), r.Tracking); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tracking data")
		}
	}
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, errors.Wrap(err, "bad created_at")
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, errors.Wrap(err, "bad updated_at")
	}
	return &r, nil
}

const selectReport = `SELECT report_id, task_id, dataset_name, model_name, status, data, tracking, created_at, updated_at FROM reports`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, selectReport+` WHERE report_id = ? OR task_id = ? LIMIT 1`, id, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get report")
	}
	return r, nil
}

func (s *SQLiteStore) Update(ctx context.Context, reportID string, u Update) (*Report, error) {
	var out *Report
	err := s.retryOnBusy(ctx, func() error {
		var err error
		out, err = s.update(ctx, reportID, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) update(ctx context.Context, reportID string, u Update) (*Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanReport(tx.QueryRowContext(ctx, selectReport+` WHERE report_id = ?`, reportID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrReportNotFound, "report %s", reportID)
	}
	if err != nil {
		return nil, err
	}
	prev := r.Status
	if err := u.Apply(r, s.now().UTC()); err != nil {
		return nil, err
	}

	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal report data")
	}
	var tracking sql.NullString
	if r.Tracking != nil {
		b, err := json.Marshal(r.Tracking)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal tracking data")
		}
		tracking = sql.NullString{String: string(b), Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE reports SET dataset_name = ?, model_name = ?, status = ?, data = ?, tracking = ?, updated_at = ?
		 WHERE report_id = ? AND status = ?`,
		r.DatasetName, r.ModelName, string(r.Status), string(data), tracking,
		r.UpdatedAt.Format(time.RFC3339Nano), reportID, string(prev))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, errors.Wrapf(ErrReportFinalized, "report %s changed concurrently", reportID)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}
