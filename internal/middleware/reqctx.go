// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
)

const requestInfoKey contextKey = "request_info"

// DefaultActorHeader carries the numeric id of the acting user.
const DefaultActorHeader = "X-User-Id"

// proxyHeaders are checked in order before RemoteAddr.
var proxyHeaders = []string{"X-Forwarded-For", "Proxy-Client-IP", "WL-Proxy-Client-IP"}

// RequestInfo is what the audit pipeline needs from an inbound request.
type RequestInfo struct {
	ActorID  *int64
	ClientIP string
	Header   http.Header
}

// WithRequestInfo stores info in ctx. Used by RequestContext and by callers
// recording outside an HTTP request.
func WithRequestInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}

// InfoFromContext returns the captured request info.
func InfoFromContext(ctx context.Context) (*RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey).(*RequestInfo)
	return info, ok && info != nil
}

// RequestContext captures the actor id from actorHeader, the client IP and
// a copy of the request headers.
func RequestContext(actorHeader string) func(http.HandlerFunc) http.HandlerFunc {
	if actorHeader == "" {
		actorHeader = DefaultActorHeader
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			info := &RequestInfo{
				ClientIP: ClientIP(r),
				Header:   r.Header.Clone(),
			}
			if raw := strings.TrimSpace(r.Header.Get(actorHeader)); raw != "" {
				if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
					info.ActorID = &id
				}
			}
			next(w, r.WithContext(WithRequestInfo(r.Context(), info)))
		}
	}
}

// ClientIP resolves the originating address of r.
func ClientIP(r *http.Request) string {
	for _, name := range proxyHeaders {
		if ip := firstAddress(r.Header.Get(name)); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// firstAddress returns the first usable entry of a comma-separated list.
func firstAddress(value string) string {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "unknown") {
			continue
		}
		return part
	}
	return ""
}

// Provider reads RequestInfo back out of a context. It satisfies
// audit.RequestContext.
type Provider struct{}

// ActorID returns the captured actor id.
func (Provider) ActorID(ctx context.Context) (int64, bool) {
	info, ok := InfoFromContext(ctx)
	if !ok || info.ActorID == nil {
		return 0, false
	}
	return *info.ActorID, true
}

// SourceIP returns the captured client IP.
func (Provider) SourceIP(ctx context.Context) string {
	if info, ok := InfoFromContext(ctx); ok {
		return info.ClientIP
	}
	return ""
}

// Header returns a captured request header.
func (Provider) Header(ctx context.Context, name string) string {
	if info, ok := InfoFromContext(ctx); ok && info.Header != nil {
		return info.Header.Get(name)
	}
	return ""
}
