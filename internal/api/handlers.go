// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
	"github.com/zhengbinger/bing-frame-sub000/internal/identity"
	"github.com/zhengbinger/bing-frame-sub000/internal/middleware"
	"github.com/zhengbinger/bing-frame-sub000/internal/validation"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// Dependencies are the components the management surface operates on.
type Dependencies struct {
	Config   *dynconfig.Manager
	Buffer   *audit.Buffer
	Cache    *identity.Cache
	Recorder *audit.Recorder
	Store    audit.Store
}

// Handler serves the management endpoints.
type Handler struct {
	config   *dynconfig.Manager
	buffer   *audit.Buffer
	cache    *identity.Cache
	recorder *audit.Recorder
	store    audit.Store
}

// NewHandler checks deps and builds a Handler.
func NewHandler(deps Dependencies) (*Handler, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config manager is required")
	case deps.Buffer == nil:
		return nil, errors.New("api: buffer is required")
	case deps.Cache == nil:
		return nil, errors.New("api: identity cache is required")
	case deps.Recorder == nil:
		return nil, errors.New("api: recorder is required")
	case deps.Store == nil:
		return nil, errors.New("api: store is required")
	}
	return &Handler{
		config:   deps.Config,
		buffer:   deps.Buffer,
		cache:    deps.Cache,
		recorder: deps.Recorder,
		store:    deps.Store,
	}, nil
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":        "ok",
		"configVersion": h.config.Current().Version,
		"bufferSize":    h.buffer.Size(),
	})
}

// actorName names the caller for config history records.
func actorName(r *http.Request) string {
	if name := r.Header.Get(audit.UserNameHeader); name != "" {
		return name
	}
	if id, ok := (middleware.Provider{}).ActorID(r.Context()); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return audit.AnonymousUsername
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxRequestBody {
		return fmt.Errorf("request body exceeds %d bytes", maxRequestBody)
	}
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// validateRequest runs struct tag validation and writes a 400 on failure.
func validateRequest(rw *ResponseWriter, v interface{}) bool {
	if verr := validation.ValidateStruct(v); verr != nil {
		details := make(map[string]string, len(verr.Errors()))
		for _, fe := range verr.Errors() {
			details[fe.Field()] = fe.Error()
		}
		rw.ValidationError(verr.Error(), details)
		return false
	}
	return true
}

// getIntParam reads an integer query parameter.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
