// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
)

func TestEffectiveLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		route, limit, want string
	}{
		{"", dynconfig.LevelFull, dynconfig.LevelFull},
		{"", dynconfig.LevelBasic, dynconfig.LevelBasic},
		{dynconfig.LevelBasic, dynconfig.LevelFull, dynconfig.LevelBasic},
		{dynconfig.LevelFull, dynconfig.LevelNone, dynconfig.LevelNone},
		{"basic", "full", dynconfig.LevelBasic},
		{dynconfig.LevelFull, "LOUD", dynconfig.LevelNone},
	}
	for _, tt := range tests {
		if got := EffectiveLevel(tt.route, tt.limit); got != tt.want {
			t.Errorf("EffectiveLevel(%q, %q) = %q, want %q", tt.route, tt.limit, got, tt.want)
		}
	}
}

func TestOperationFor(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		http.MethodGet:     OpQuery,
		http.MethodHead:    OpQuery,
		http.MethodPost:    OpCreate,
		http.MethodPut:     OpUpdate,
		http.MethodPatch:   OpUpdate,
		http.MethodDelete:  OpDelete,
		http.MethodOptions: OpOther,
		"delete":           OpDelete,
	}
	for method, want := range tests {
		if got := OperationFor(method); got != want {
			t.Errorf("OperationFor(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestMaskSensitive(t *testing.T) {
	t.Parallel()

	in := map[string]interface{}{
		"Password": "hunter2",
		"user":     "alice",
		"nested": map[string]interface{}{
			"token": "abc",
			"items": []interface{}{map[string]interface{}{"SECRET": 1, "keep": 2}},
		},
	}
	out := MaskSensitive(in, []string{"password", "token", "secret"}).(map[string]interface{})

	if out["Password"] != MaskedValue || out["user"] != "alice" {
		t.Errorf("top level = %v", out)
	}
	nested := out["nested"].(map[string]interface{})
	if nested["token"] != MaskedValue {
		t.Errorf("nested token = %v", nested["token"])
	}
	item := nested["items"].([]interface{})[0].(map[string]interface{})
	if item["SECRET"] != MaskedValue || item["keep"] != 2 {
		t.Errorf("array item = %v", item)
	}
	if in["Password"] != "hunter2" {
		t.Error("input was modified")
	}
}

// auditedServe runs one request through Audited around next.
func auditedServe(t *testing.T, env *testEnv, spec AuditSpec, next http.HandlerFunc, req *http.Request) {
	t.Helper()
	w := httptest.NewRecorder()
	env.handler.Audited(spec)(next).ServeHTTP(w, req)
}

func setSnapshot(t *testing.T, env *testEnv, mutate func(*dynconfig.Snapshot)) {
	t.Helper()
	next := env.config.Current()
	mutate(&next)
	if err := env.config.Apply(next, "test", "tester"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestAudited_FullLevelMasksAndRestoresBody(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	setSnapshot(t, env, func(s *dynconfig.Snapshot) {
		s.AuditLevel = dynconfig.LevelFull
		s.FieldFilter = true
	})

	var seen string
	req := httptest.NewRequest(http.MethodPost, "/login?next=home", strings.NewReader(`{"user":"alice","password":"hunter2"}`))
	auditedServe(t, env, AuditSpec{Module: "auth"}, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusUnauthorized)
	}, req)

	if !strings.Contains(seen, "hunter2") {
		t.Errorf("handler saw body %q", seen)
	}

	entries := env.sink.all()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.OperationType != OpCreate || e.Module != "auth" {
		t.Errorf("entry = %+v", e)
	}
	if e.Result != audit.ResultFailure || e.ErrorMessage != "HTTP 401 Unauthorized" {
		t.Errorf("result = %s / %q", e.Result, e.ErrorMessage)
	}
	if e.ExecutionTime == nil {
		t.Error("expected execution time")
	}

	var params map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(e.RequestParams), &params); err != nil {
		t.Fatalf("params %q: %v", e.RequestParams, err)
	}
	if params["body"]["password"] != MaskedValue || params["body"]["user"] != "alice" {
		t.Errorf("body params = %v", params["body"])
	}
	if params["query"]["next"] != "home" {
		t.Errorf("query params = %v", params["query"])
	}
}

func TestAudited_FieldFilterOff(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	setSnapshot(t, env, func(s *dynconfig.Snapshot) { s.AuditLevel = dynconfig.LevelFull })

	req := httptest.NewRequest(http.MethodPut, "/x", strings.NewReader(`{"password":"plain"}`))
	auditedServe(t, env, AuditSpec{Module: "m"}, func(w http.ResponseWriter, r *http.Request) {}, req)

	entries := env.sink.all()
	if len(entries) != 1 || !strings.Contains(entries[0].RequestParams, "plain") {
		t.Errorf("entries = %+v", entries)
	}
}

func TestAudited_BasicLevel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodDelete, "/things/1", strings.NewReader(`{"a":1}`))
	auditedServe(t, env, AuditSpec{Module: "things", Description: "drop thing"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, req)

	entries := env.sink.all()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.RequestParams != "" || e.ErrorMessage != "" {
		t.Errorf("basic entry carries detail: %+v", e)
	}
	if e.Result != audit.ResultFailure || e.OperationType != OpDelete || e.Description != "drop thing" {
		t.Errorf("entry = %+v", e)
	}
}

func TestAudited_Suppressed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*dynconfig.Snapshot)
		spec   AuditSpec
	}{
		{"level none", func(s *dynconfig.Snapshot) { s.AuditLevel = dynconfig.LevelNone }, AuditSpec{Module: "m"}},
		{"route none", func(s *dynconfig.Snapshot) {}, AuditSpec{Module: "m", Level: dynconfig.LevelNone}},
		{"disabled", func(s *dynconfig.Snapshot) { s.Enabled = false }, AuditSpec{Module: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			setSnapshot(t, env, func(s *dynconfig.Snapshot) {
				s.BatchSize++
				tt.mutate(s)
			})
			called := false
			auditedServe(t, env, tt.spec, func(w http.ResponseWriter, r *http.Request) { called = true },
				httptest.NewRequest(http.MethodPost, "/x", nil))
			if !called {
				t.Error("handler not called")
			}
			if n := len(env.sink.all()); n != 0 {
				t.Errorf("entries = %d, want 0", n)
			}
		})
	}
}

func TestRouter_AuditsMutatingRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	expectStatus(t, env.do(t, http.MethodPost, "/api/audit-log/buffer/flush", nil, "X-User-Id", "8"), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/audit-log/buffer/size", nil), http.StatusOK)

	entries := env.sink.all()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != ModuleBuffer || e.Username != "bob" || e.OperationType != OpCreate {
		t.Errorf("entry = %+v", e)
	}
}
