// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// AnonymousUsername is recorded when no actor can be resolved.
const AnonymousUsername = "anonymous"

// Entry is one recorded action.
type Entry struct {
	ID            string    `json:"id"`
	OperationTime time.Time `json:"operationTime"`
	UserID        *int64    `json:"userId,omitempty"`
	Username      string    `json:"username"`
	IPAddress     string    `json:"ipAddress"`
	Module        string    `json:"module"`
	OperationType string    `json:"operationType"`
	Description   string    `json:"description"`
	RequestParams string    `json:"requestParams,omitempty"`
	Result        Result    `json:"result"`

	// ExecutionTime is the operation duration in milliseconds.
	ExecutionTime *int64 `json:"executionTime,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`
}

// NewEntry returns an entry stamped with a fresh id and the given time.
func NewEntry(now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New().String(),
		OperationTime: now,
	}
}

// Normalize fills the invariant fields: id, timestamp and result.
// An unset result becomes failure when an error is attached, else success.
func (e *Entry) Normalize(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.OperationTime.IsZero() {
		e.OperationTime = now
	}
	if e.Result == "" {
		if e.ErrorMessage != "" {
			e.Result = ResultFailure
		} else {
			e.Result = ResultSuccess
		}
	}
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// Mapper is the persistence collaborator used by the buffer.
type Mapper interface {
	// InsertOne persists a single entry. Used by the degraded path.
	InsertOne(ctx context.Context, entry *Entry) error

	// InsertBatch persists entries in order. Used by flush.
	InsertBatch(ctx context.Context, entries []*Entry) error
}

// Store is a Mapper that can also be read and pruned.
type Store interface {
	Mapper
	Query(ctx context.Context, filter QueryFilter) ([]Entry, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// QueryFilter selects stored entries. Zero values match everything.
type QueryFilter struct {
	UserID        *int64
	Module        string
	OperationType string
	Result        Result
	StartTime     *time.Time
	EndTime       *time.Time

	// Limit defaults to 100 and is capped at 1000.
	Limit  int
	Offset int
}

func (f *QueryFilter) effectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return 100
	case f.Limit > 1000:
		return 1000
	default:
		return f.Limit
	}
}

func (f *QueryFilter) matches(e *Entry) bool {
	if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
		return false
	}
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.OperationType != "" && e.OperationType != f.OperationType {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if f.StartTime != nil && e.OperationTime.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.OperationTime.After(*f.EndTime) {
		return false
	}
	return true
}
