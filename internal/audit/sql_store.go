// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/database/query"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// Dialect selects schema differences between supported SQL engines.
type Dialect string

const (
	DialectDuckDB Dialect = "duckdb"
	DialectSQLite Dialect = "sqlite3"
)

// SQLStore persists entries to the audit_log table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

// NewSQLStore creates a store on db. CreateTable must run before use.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	if dialect == "" {
		dialect = DialectDuckDB
	}
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) timestampType() string {
	if s.dialect == DialectSQLite {
		return "TIMESTAMP"
	}
	return "TIMESTAMPTZ"
}

// CreateTable creates the audit_log table and its indexes if missing.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	ts := s.timestampType()
	query := `
		CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			operation_time ` + ts + ` NOT NULL,
			user_id BIGINT,
			username TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			module TEXT NOT NULL,
			operation_type TEXT NOT NULL,
			description TEXT NOT NULL,
			request_params TEXT,
			result TEXT NOT NULL,
			execution_time BIGINT,
			error_message TEXT,
			created_at ` + ts + ` NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_audit_log_operation_time ON audit_log(operation_time);
		CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_log_module ON audit_log(module);
		CREATE INDEX IF NOT EXISTS idx_audit_log_result ON audit_log(result);
	`

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Str("dialect", string(s.dialect)).Msg("Audit log table created/verified")
	return nil
}

const insertQuery = `
	INSERT INTO audit_log (
		id, operation_time, user_id, username, ip_address,
		module, operation_type, description, request_params,
		result, execution_time, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func entryParams(e *Entry) []interface{} {
	return []interface{}{
		e.ID,
		e.OperationTime.UTC(),
		nullableInt64(e.UserID),
		e.Username,
		e.IPAddress,
		e.Module,
		e.OperationType,
		e.Description,
		nullableString(e.RequestParams),
		string(e.Result),
		nullableInt64(e.ExecutionTime),
		nullableString(e.ErrorMessage),
	}
}

// InsertOne persists a single entry.
func (s *SQLStore) InsertOne(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, insertQuery, entryParams(entry)...); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// InsertBatch persists entries in one transaction. Either all rows are
// written or none are.
func (s *SQLStore) InsertBatch(ctx context.Context, entries []*Entry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit batch: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Warn().Err(rbErr).Msg("Audit batch rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare audit batch: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e == nil {
			continue
		}
		if _, err = stmt.ExecContext(ctx, entryParams(e)...); err != nil {
			return fmt.Errorf("failed to insert audit entry %s: %w", e.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit batch: %w", err)
	}
	return nil
}

// Query returns matching entries, most recent first.
func (s *SQLStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildFilterConditions(filter)
	query := `
		SELECT id, operation_time, user_id, username, ip_address, module,
			operation_type, description, request_params, result,
			execution_time, error_message
		FROM audit_log` + where + `
		ORDER BY operation_time DESC
		LIMIT ? OFFSET ?`
	args = append(args, filter.effectiveLimit(), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e             Entry
			userID        sql.NullInt64
			execTime      sql.NullInt64
			requestParams sql.NullString
			errorMessage  sql.NullString
			result        string
		)
		if err := rows.Scan(&e.ID, &e.OperationTime, &userID, &e.Username, &e.IPAddress, &e.Module,
			&e.OperationType, &e.Description, &requestParams, &result, &execTime, &errorMessage); err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit log row")
			continue
		}
		if userID.Valid {
			e.UserID = Int64Ptr(userID.Int64)
		}
		if execTime.Valid {
			e.ExecutionTime = Int64Ptr(execTime.Int64)
		}
		e.RequestParams = requestParams.String
		e.ErrorMessage = errorMessage.String
		e.Result = Result(result)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return entries, nil
}

// Count returns the number of matching entries.
func (s *SQLStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildFilterConditions(filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit log: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes entries recorded before cutoff.
func (s *SQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_log WHERE operation_time < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

func buildFilterConditions(filter QueryFilter) (string, []interface{}) {
	wb := query.NewWhereBuilder().
		AddInt64("user_id", filter.UserID).
		AddString("module", filter.Module).
		AddString("operation_type", filter.OperationType).
		AddString("result", string(filter.Result)).
		AddTimeRange("operation_time", filter.StartTime, filter.EndTime)
	return wb.BuildWithPrefix()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

var _ Store = (*SQLStore)(nil)
