// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// RecordRequest is an entry submitted by an external emitter. Identity and
// IP are filled from the request when omitted.
type RecordRequest struct {
	Module        string `json:"module" validate:"required,max=64"`
	OperationType string `json:"operationType" validate:"required,max=32"`
	Description   string `json:"description" validate:"max=512"`
	RequestParams string `json:"requestParams" validate:"max=65536"`
	Result        string `json:"result" validate:"omitempty,oneof=success failure"`
	ExecutionTime *int64 `json:"executionTime" validate:"omitempty,gte=0"`
	ErrorMessage  string `json:"errorMessage" validate:"max=4096"`
	UserID        *int64 `json:"userId" validate:"omitempty,gt=0"`
	Username      string `json:"username" validate:"max=128"`
}

// parseRecordFilter reads list filters from the query string.
func parseRecordFilter(r *http.Request) (audit.QueryFilter, string) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Module:        q.Get("module"),
		OperationType: q.Get("operationType"),
		Result:        audit.Result(q.Get("result")),
		Limit:         getIntParam(r, "limit", 100),
		Offset:        getIntParam(r, "offset", 0),
	}
	if filter.Offset < 0 {
		return filter, "offset must not be negative"
	}
	if filter.Result != "" && filter.Result != audit.ResultSuccess && filter.Result != audit.ResultFailure {
		return filter, "result must be success or failure"
	}
	if v := q.Get("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, "userId must be an integer"
		}
		filter.UserID = &id
	}
	for key, dst := range map[string]**time.Time{"start": &filter.StartTime, "end": &filter.EndTime} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, key + " must be an RFC3339 timestamp"
		}
		*dst = &t
	}
	if filter.StartTime != nil && filter.EndTime != nil && filter.EndTime.Before(*filter.StartTime) {
		return filter, "end must not be before start"
	}
	return filter, ""
}

// ListRecords returns stored entries, newest first.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, problem := parseRecordFilter(r)
	if problem != "" {
		rw.BadRequest(problem)
		return
	}

	entries, err := h.store.Query(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(entries, &PaginationMeta{
		Total:   total,
		Count:   len(entries),
		Offset:  filter.Offset,
		Limit:   filter.Limit,
		HasMore: int64(filter.Offset+len(entries)) < total,
	})
}

// SubmitRecord accepts one entry for the pipeline.
func (h *Handler) SubmitRecord(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req RecordRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}

	entry := &audit.Entry{
		Module:        req.Module,
		OperationType: req.OperationType,
		Description:   req.Description,
		RequestParams: req.RequestParams,
		Result:        audit.Result(req.Result),
		ExecutionTime: req.ExecutionTime,
		ErrorMessage:  req.ErrorMessage,
		UserID:        req.UserID,
		Username:      req.Username,
	}
	h.recorder.RecordEntry(r.Context(), entry)

	logging.Ctx(r.Context()).Debug().
		Str("module", entry.Module).
		Str("operation_type", entry.OperationType).
		Msg("External audit entry accepted")
	rw.Accepted(map[string]string{"id": entry.ID})
}
