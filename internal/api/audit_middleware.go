// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
	"github.com/zhengbinger/bing-frame-sub000/internal/metrics"
	"github.com/zhengbinger/bing-frame-sub000/internal/middleware"
)

// maxAuditBody bounds how much of a request body is copied into an entry.
const maxAuditBody = 64 << 10

// MaskedValue replaces sensitive values in recorded parameters.
const MaskedValue = "******"

// Operation types derived from the HTTP method.
const (
	OpQuery  = "QUERY"
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpOther  = "OTHER"
)

// AuditSpec is the route metadata the audit middleware records.
type AuditSpec struct {
	Module      string
	Operation   string // derived from the method when empty
	Description string
	Level       string // dynconfig level; FULL when empty
}

var levelRank = map[string]int{
	dynconfig.LevelNone:  0,
	dynconfig.LevelBasic: 1,
	dynconfig.LevelFull:  2,
}

// EffectiveLevel returns the lower of a route level and the live cap.
// Unknown levels count as NONE.
func EffectiveLevel(route, limit string) string {
	if route == "" {
		route = dynconfig.LevelFull
	}
	if levelRank[strings.ToUpper(route)] <= levelRank[strings.ToUpper(limit)] {
		return normalizeLevel(route)
	}
	return normalizeLevel(limit)
}

func normalizeLevel(level string) string {
	level = strings.ToUpper(level)
	if _, ok := levelRank[level]; !ok {
		return dynconfig.LevelNone
	}
	return level
}

// OperationFor maps an HTTP method to an operation type.
func OperationFor(method string) string {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return OpQuery
	case http.MethodPost:
		return OpCreate
	case http.MethodPut, http.MethodPatch:
		return OpUpdate
	case http.MethodDelete:
		return OpDelete
	default:
		return OpOther
	}
}

// Audited records one entry per request handled by next.
//
// FULL records the request parameters, duration and error message. BASIC
// records the outcome and duration only. NONE records nothing.
func (h *Handler) Audited(spec AuditSpec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := h.config.Current()
			level := EffectiveLevel(spec.Level, snap.AuditLevel)
			metrics.RecordHTTPAudit(level)
			if level == dynconfig.LevelNone || !snap.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			var params string
			if level == dynconfig.LevelFull {
				params = captureParams(r, snap)
			}

			start := time.Now()
			rec := middleware.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start).Milliseconds()

			op := spec.Operation
			if op == "" {
				op = OperationFor(r.Method)
			}
			description := spec.Description
			if description == "" {
				description = r.Method + " " + middleware.RoutePattern(r)
			}

			entry := &audit.Entry{
				Module:        spec.Module,
				OperationType: op,
				Description:   description,
				RequestParams: params,
				Result:        audit.ResultSuccess,
				ExecutionTime: audit.Int64Ptr(elapsed),
			}
			if rec.Status() >= http.StatusBadRequest {
				entry.Result = audit.ResultFailure
				if level == dynconfig.LevelFull {
					entry.ErrorMessage = "HTTP " + strconv.Itoa(rec.Status()) + " " + http.StatusText(rec.Status())
				}
			}
			h.recorder.RecordEntry(r.Context(), entry)
		})
	}
}

// captureParams renders query and JSON body as one JSON object. The body is
// restored for the handler.
func captureParams(r *http.Request, snap dynconfig.Snapshot) string {
	params := map[string]interface{}{}

	if q := r.URL.Query(); len(q) > 0 {
		query := make(map[string]interface{}, len(q))
		for k, v := range q {
			if len(v) == 1 {
				query[k] = v[0]
			} else {
				query[k] = v
			}
		}
		params["query"] = query
	}

	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBody+1))
		rest := r.Body
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), rest), rest}
		if err == nil && len(body) > 0 {
			if len(body) > maxAuditBody {
				params["body"] = "<truncated>"
			} else {
				var decoded interface{}
				if json.Unmarshal(body, &decoded) == nil {
					params["body"] = decoded
				} else {
					params["body"] = string(body)
				}
			}
		}
	}

	if len(params) == 0 {
		return ""
	}
	var masked interface{} = params
	if snap.FieldFilter {
		masked = MaskSensitive(params, snap.SensitiveField)
	}
	data, err := json.Marshal(masked)
	if err != nil {
		return ""
	}
	return string(data)
}

// MaskSensitive returns v with the values of sensitive keys replaced.
// Keys match case-insensitively at any depth.
func MaskSensitive(v interface{}, sensitive []string) interface{} {
	if len(sensitive) == 0 {
		return v
	}
	set := make(map[string]struct{}, len(sensitive))
	for _, s := range sensitive {
		set[strings.ToLower(s)] = struct{}{}
	}
	return mask(v, set)
}

func mask(v interface{}, set map[string]struct{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if _, hit := set[strings.ToLower(k)]; hit {
				out[k] = MaskedValue
				continue
			}
			out[k] = mask(val, set)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = mask(val, set)
		}
		return out
	default:
		return v
	}
}
