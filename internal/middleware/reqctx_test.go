// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
)

var _ audit.RequestContext = Provider{}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"remote addr only", nil, "192.0.2.10:51234", "192.0.2.10"},
		{"forwarded for wins", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1", "Proxy-Client-IP": "198.51.100.1"}, "192.0.2.10:1", "203.0.113.5"},
		{"unknown forwarded skipped", map[string]string{"X-Forwarded-For": "unknown", "Proxy-Client-IP": "198.51.100.1"}, "192.0.2.10:1", "198.51.100.1"},
		{"unknown first entry skipped", map[string]string{"X-Forwarded-For": "unknown, 203.0.113.9"}, "192.0.2.10:1", "203.0.113.9"},
		{"weblogic header", map[string]string{"WL-Proxy-Client-IP": "198.51.100.7"}, "192.0.2.10:1", "198.51.100.7"},
		{"all proxies unknown", map[string]string{"X-Forwarded-For": "UNKNOWN", "Proxy-Client-IP": " ", "WL-Proxy-Client-IP": "unknown"}, "192.0.2.10:1", "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.11", "192.0.2.11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestContext_CapturesInfo(t *testing.T) {
	var p Provider
	var (
		actorID int64
		hasID   bool
		ip      string
		name    string
	)
	handler := RequestContext("")(func(w http.ResponseWriter, r *http.Request) {
		actorID, hasID = p.ActorID(r.Context())
		ip = p.SourceIP(r.Context())
		name = p.Header(r.Context(), audit.UserNameHeader)
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.RemoteAddr = "192.0.2.20:4000"
	req.Header.Set(DefaultActorHeader, "42")
	req.Header.Set(audit.UserNameHeader, "Alice")
	handler(httptest.NewRecorder(), req)

	if !hasID || actorID != 42 {
		t.Errorf("ActorID = %d, %v; want 42, true", actorID, hasID)
	}
	if ip != "192.0.2.20" {
		t.Errorf("SourceIP = %q", ip)
	}
	if name != "Alice" {
		t.Errorf("Header = %q", name)
	}
}

func TestRequestContext_InvalidActor(t *testing.T) {
	for _, raw := range []string{"abc", "-3", "0", ""} {
		var hasID bool
		handler := RequestContext("X-Actor")(func(w http.ResponseWriter, r *http.Request) {
			_, hasID = Provider{}.ActorID(r.Context())
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Actor", raw)
		handler(httptest.NewRecorder(), req)
		if hasID {
			t.Errorf("actor %q should not resolve", raw)
		}
	}
}

func TestProvider_EmptyContext(t *testing.T) {
	var p Provider
	ctx := context.Background()
	if _, ok := p.ActorID(ctx); ok {
		t.Error("ActorID should be absent")
	}
	if p.SourceIP(ctx) != "" || p.Header(ctx, "X-User-Name") != "" {
		t.Error("empty context should yield empty values")
	}
}

func TestWithRequestInfo(t *testing.T) {
	id := int64(9)
	ctx := WithRequestInfo(context.Background(), &RequestInfo{ActorID: &id, ClientIP: "10.1.1.1"})
	got, ok := Provider{}.ActorID(ctx)
	if !ok || got != 9 {
		t.Errorf("ActorID = %d, %v", got, ok)
	}
	if Provider{}.Header(ctx, "X-User-Name") != "" {
		t.Error("nil header map should yield empty value")
	}
}
