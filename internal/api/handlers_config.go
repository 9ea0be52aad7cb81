// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/samber/oops"

	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// respondConfigError maps Config Store error codes to HTTP statuses.
func respondConfigError(rw *ResponseWriter, err error) {
	var details interface{}
	if oopsErr, ok := oops.AsOops(err); ok {
		details = oopsErr.Context()
	}
	switch {
	case dynconfig.HasCode(err, dynconfig.CodeValidation):
		rw.ValidationError(err.Error(), details)
	case dynconfig.HasCode(err, dynconfig.CodeVersionNotFound):
		rw.NotFound(err.Error())
	case dynconfig.HasCode(err, dynconfig.CodeImportInvalid),
		dynconfig.HasCode(err, dynconfig.CodeImportEmpty):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest, err.Error(), details)
	default:
		logging.Error().Err(err).Msg("Config operation failed")
		rw.InternalError("config operation failed")
	}
}

// GetConfig returns the live snapshot.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.config.Current())
}

// UpdateConfig merges the body onto the live snapshot and applies it.
// Fields absent from the body keep their current values.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	next := h.config.Current()
	if err := decodeJSON(r, &next); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	description := r.URL.Query().Get("description")
	if description == "" {
		description = "updated via management API"
	}
	if err := h.config.Apply(next, description, actorName(r)); err != nil {
		respondConfigError(rw, err)
		return
	}
	rw.Success(h.config.Current())
}

// ConfigHistory returns the retained history, oldest first.
func (h *Handler) ConfigHistory(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.config.History())
}

// RollbackConfig re-applies a past version.
func (h *Handler) RollbackConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version < 1 {
		rw.BadRequest("version must be a positive integer")
		return
	}
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "requested via management API"
	}
	if err := h.config.RollbackTo(version, reason, actorName(r)); err != nil {
		respondConfigError(rw, err)
		return
	}
	rw.Success(h.config.Current())
}

// ConfigStatistics summarizes the change history.
func (h *Handler) ConfigStatistics(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.config.ChangeStatistics())
}

// CheckConfigChanges reports whether an external change is pending.
func (h *Handler) CheckConfigChanges(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]bool{
		"hasUnsyncedChanges": h.config.HasUnsyncedChanges(),
	})
}

// ExportConfig returns the export document.
func (h *Handler) ExportConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	data, err := h.config.Export()
	if err != nil {
		respondConfigError(rw, err)
		return
	}
	rw.Success(json.RawMessage(data))
}

// ImportConfig applies the recognized keys of the body.
func (h *Handler) ImportConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		rw.BadRequest("failed to read request body")
		return
	}
	if err := h.config.Import(body, r.URL.Query().Get("description"), actorName(r)); err != nil {
		respondConfigError(rw, err)
		return
	}
	rw.Success(h.config.Current())
}

// ValidateConfig checks a candidate snapshot without applying it. The
// body is merged onto the live snapshot first.
func (h *Handler) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	candidate := h.config.Current()
	if err := decodeJSON(r, &candidate); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	result := map[string]interface{}{"valid": true}
	if err := h.config.Check(candidate); err != nil {
		result["valid"] = false
		result["message"] = err.Error()
	}
	rw.Success(result)
}

// ResetConfig applies the defaults.
func (h *Handler) ResetConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.config.Reset(actorName(r)); err != nil {
		respondConfigError(rw, err)
		return
	}
	rw.Success(h.config.Current())
}
