// File: internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// DBPool abstracts the pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides PostgreSQL persistence for completed reports. A save
// failure never discards or invalidates the in-memory report; the
// caller is warned and may retry.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// SaveOptions carries the optional collaborator references attached to
// a saved report.
type SaveOptions struct {
	FileRef     string
	StoragePath string
	// RawResult is the unnormalized analysis payload, kept for audit.
	RawResult json.RawMessage
}

const sqlInsertReport = `
        INSERT INTO reports (id, user_id, file_name, file_ref, storage_path, analyzed_at, score, grade, severity, report, raw_result)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
    `

// SaveReport persists one completed report and returns its durable
// identifier. The report itself is stored as JSONB alongside the
// queryable summary columns.
func (s *Store) SaveReport(ctx context.Context, userID, fileName string, rep *schemas.Report, opts SaveOptions) (string, error) {
	body, err := json.Marshal(rep)
	if err != nil {
		return "", &schemas.PersistenceError{Op: "save_report", Err: fmt.Errorf("failed to marshal report: %w", err)}
	}

	raw := opts.RawResult
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx, sqlInsertReport,
		id, userID, fileName, opts.FileRef, opts.StoragePath,
		rep.AnalyzedAt.UTC(), rep.Score, string(rep.Grade), string(rep.Severity),
		body, raw,
	)
	if err != nil {
		return "", &schemas.PersistenceError{Op: "save_report", Err: err}
	}

	s.log.Info("Report saved",
		zap.String("report_id", id),
		zap.String("user_id", userID),
		zap.String("file", fileName))
	return id, nil
}

const sqlGetReport = `
        SELECT report
        FROM reports
        WHERE id = $1;
    `

// GetReport loads a previously saved report by its durable identifier.
func (s *Store) GetReport(ctx context.Context, id string) (*schemas.Report, error) {
	var body []byte
	if err := s.pool.QueryRow(ctx, sqlGetReport, id).Scan(&body); err != nil {
		return nil, &schemas.PersistenceError{Op: "get_report", Err: err}
	}

	var rep schemas.Report
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, &schemas.PersistenceError{Op: "get_report", Err: fmt.Errorf("failed to unmarshal report: %w", err)}
	}
	rep.Saved = true
	rep.SavedID = id
	return &rep, nil
}
