// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SQLResolver reads identities from the users table.
type SQLResolver struct {
	db *sql.DB
}

// NewSQLResolver creates a resolver on db.
func NewSQLResolver(db *sql.DB) *SQLResolver {
	return &SQLResolver{db: db}
}

// CreateTable creates the users table if missing.
func (r *SQLResolver) CreateTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL,
			display_name TEXT,
			email TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// Upsert writes a user row.
func (r *SQLResolver) Upsert(ctx context.Context, ident *Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, email) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			email = excluded.email
	`, ident.ID, ident.Username, ident.DisplayName, ident.Email)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", ident.ID, err)
	}
	return nil
}

// Lookup returns the user with id, or nil when there is none.
func (r *SQLResolver) Lookup(ctx context.Context, id int64) (*Identity, error) {
	var (
		ident       Identity
		displayName sql.NullString
		email       sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, display_name, email FROM users WHERE id = ?", id,
	).Scan(&ident.ID, &ident.Username, &displayName, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %d: %w", id, err)
	}
	ident.DisplayName = strings.TrimSpace(displayName.String)
	ident.Email = email.String
	return &ident, nil
}

var _ Resolver = (*SQLResolver)(nil)
