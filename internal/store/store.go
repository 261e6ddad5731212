// Package store persists users, report runs and finished reports in
// Postgres, and tracks live run status in Redis.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/engine"
)

// Run states persisted for asynchronous report generation.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

// New opens a Postgres connection from config and verifies it.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

// RunRecord captures one report run row, pending through completed.
type RunRecord struct {
	ID         string
	UserID     string
	Topic      string
	ReportType string
	Status     string
	Error      string
	ReportID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateRun inserts a pending run and returns its id.
func (s *Store) CreateRun(ctx context.Context, userID, topic, reportType string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO runs (user_id, topic, report_type, status) VALUES ($1,$2,$3,$4) RETURNING id`,
		userID, topic, reportType, RunStatusPending).Scan(&id)
	return id, err
}

// UpdateRunStatus moves a run through its lifecycle. reportID and runErr may
// be empty until the run finishes.
func (s *Store) UpdateRunStatus(ctx context.Context, runID, status, reportID, runErr string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$2, report_id=NULLIF($3,''), error=NULLIF($4,''), updated_at=NOW() WHERE id=$1`,
		runID, status, reportID, runErr)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *Store) GetRun(ctx context.Context, runID, userID string) (RunRecord, error) {
	var r RunRecord
	var reportID, runErr sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, topic, report_type, status, COALESCE(error,''), COALESCE(report_id::text,''), created_at, updated_at
		   FROM runs WHERE id=$1 AND user_id=$2`, runID, userID).
		Scan(&r.ID, &r.UserID, &r.Topic, &r.ReportType, &r.Status, &runErr, &reportID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	r.Error = runErr.String
	r.ReportID = reportID.String
	return r, nil
}

// ReportRecord is a stored finished report. The full document is kept as
// JSON alongside the queryable columns.
type ReportRecord struct {
	ID         string
	UserID     string
	Topic      string
	ReportType string
	Title      string
	Document   engine.Document
	CreatedAt  time.Time
}

// SaveReport stores a finished document and returns the report id.
func (s *Store) SaveReport(ctx context.Context, userID string, doc *engine.Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	var id string
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO reports (id, user_id, topic, report_type, title, document) VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		doc.ID, userID, doc.Topic, string(doc.ReportType), doc.Title, payload).Scan(&id)
	return id, err
}

func (s *Store) GetReport(ctx context.Context, reportID, userID string) (ReportRecord, error) {
	var rec ReportRecord
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, topic, report_type, title, document, created_at FROM reports WHERE id=$1 AND user_id=$2`,
		reportID, userID).
		Scan(&rec.ID, &rec.UserID, &rec.Topic, &rec.ReportType, &rec.Title, &payload, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ReportRecord{}, ErrNotFound
	}
	if err != nil {
		return ReportRecord{}, err
	}
	if err := json.Unmarshal(payload, &rec.Document); err != nil {
		return ReportRecord{}, fmt.Errorf("unmarshal document %s: %w", rec.ID, err)
	}
	return rec, nil
}

// ReportSummary is the list view of a stored report, without the document
// body.
type ReportSummary struct {
	ID         string
	Topic      string
	ReportType string
	Title      string
	CreatedAt  time.Time
}

func (s *Store) ListReports(ctx context.Context, userID string) ([]ReportSummary, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, topic, report_type, title, created_at FROM reports WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportSummary
	for rows.Next() {
		var r ReportSummary
		if err := rows.Scan(&r.ID, &r.Topic, &r.ReportType, &r.Title, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteReport(ctx context.Context, reportID, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM reports WHERE id=$1 AND user_id=$2`, reportID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}
