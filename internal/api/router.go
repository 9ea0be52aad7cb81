// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhengbinger/bing-frame-sub000/internal/middleware"
)

// Module names recorded by the audit middleware.
const (
	ModuleConfig  = "audit-config"
	ModuleBuffer  = "audit-buffer"
	ModuleCache   = "identity-cache"
	ModuleRecords = "audit-records"
)

// Router wires handlers onto a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil mw uses the default middleware config.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// Setup builds the HTTP handler.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(router.chiMiddleware.RequestContext())
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	audited := func(module, description string) func(http.Handler) http.Handler {
		return h.Audited(AuditSpec{Module: module, Description: description})
	}

	r.Route("/api/audit-log", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		r.Route("/config", func(r chi.Router) {
			r.Get("/current", h.GetConfig)
			r.Get("/history", h.ConfigHistory)
			r.Get("/statistics", h.ConfigStatistics)
			r.Get("/check-changes", h.CheckConfigChanges)
			r.Get("/export", h.ExportConfig)
			r.Post("/validate", h.ValidateConfig)

			r.With(audited(ModuleConfig, "update audit configuration")).Put("/", h.UpdateConfig)
			r.With(audited(ModuleConfig, "roll back audit configuration")).Post("/rollback/{version}", h.RollbackConfig)
			r.With(audited(ModuleConfig, "import audit configuration")).Post("/import", h.ImportConfig)
			r.With(audited(ModuleConfig, "reset audit configuration")).Post("/reset", h.ResetConfig)
		})

		r.Route("/buffer", func(r chi.Router) {
			r.Get("/size", h.BufferSize)
			r.With(audited(ModuleBuffer, "flush audit buffer")).Post("/flush", h.FlushBuffer)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/statistics", h.CacheStatistics)
			r.Get("/utilization", h.CacheUtilization)
			r.With(audited(ModuleCache, "warm up identity cache")).Post("/warm-up", h.WarmUpCache)
			r.With(audited(ModuleCache, "reset identity cache statistics")).Post("/reset-statistics", h.ResetCacheStatistics)
			r.With(audited(ModuleCache, "evict identity")).Delete("/{id}", h.EvictIdentity)
			r.With(audited(ModuleCache, "evict all identities")).Delete("/", h.EvictAllIdentities)
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Post("/", h.SubmitRecord)
		})
	})

	return r
}
