// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// WarmUpRequest lists identities to preload.
type WarmUpRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=10000,dive,gt=0"`
}

// CacheStatistics returns hit, miss and sizing counters.
func (h *Handler) CacheStatistics(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.cache.Statistics())
}

// CacheUtilization returns size over capacity.
func (h *Handler) CacheUtilization(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]float64{"utilization": h.cache.Utilization()})
}

// EvictIdentity drops one id from both tiers.
func (h *Handler) EvictIdentity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		rw.BadRequest("id must be a positive integer")
		return
	}
	h.cache.Evict(r.Context(), id)
	rw.Success(map[string]int64{"evicted": id})
}

// EvictAllIdentities clears both tiers.
func (h *Handler) EvictAllIdentities(w http.ResponseWriter, r *http.Request) {
	h.cache.EvictAll(r.Context())
	NewResponseWriter(w, r).Success(map[string]bool{"cleared": true})
}

// WarmUpCache preloads the requested ids.
func (h *Handler) WarmUpCache(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req WarmUpRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}
	loaded := h.cache.WarmUp(r.Context(), req.IDs)
	rw.Success(map[string]int{"requested": len(req.IDs), "loaded": loaded})
}

// ResetCacheStatistics zeroes the counters.
func (h *Handler) ResetCacheStatistics(w http.ResponseWriter, r *http.Request) {
	h.cache.ResetStatistics()
	NewResponseWriter(w, r).Success(h.cache.Statistics())
}
