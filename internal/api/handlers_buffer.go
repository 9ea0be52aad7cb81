// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package api

import (
	"errors"
	"net/http"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// BufferStatus is the buffer size response.
type BufferStatus struct {
	Size          int    `json:"size"`
	Capacity      int    `json:"capacity"`
	BatchSize     int    `json:"batchSize"`
	FlushInterval string `json:"flushInterval"`
	Flushing      bool   `json:"flushing"`
}

// BufferSize reports the queue depth.
func (h *Handler) BufferSize(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(BufferStatus{
		Size:          h.buffer.Size(),
		Capacity:      h.buffer.Capacity(),
		BatchSize:     h.buffer.BatchSize(),
		FlushInterval: h.buffer.FlushInterval().String(),
		Flushing:      h.buffer.Flushing(),
	})
}

// FlushBuffer runs one flush now.
func (h *Handler) FlushBuffer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	n, err := h.buffer.Flush(r.Context())
	switch {
	case errors.Is(err, audit.ErrFlushInProgress):
		rw.Conflict(err.Error())
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Manual flush failed")
		rw.ServiceUnavailable("flush failed; entries were requeued")
	default:
		rw.Success(map[string]int{"flushed": n, "remaining": h.buffer.Size()})
	}
}
