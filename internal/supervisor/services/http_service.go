// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// DefaultAPIServiceName names the management API service in supervisor
// events and logs.
const DefaultAPIServiceName = "audit-api"

// HTTPServer is the lifecycle subset of *http.Server the service drives.
//
// Close is only used when graceful shutdown runs past its deadline, so a
// client stuck on a slow export or a long audit-record listing cannot hold
// the process open after the pipeline has drained.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

// HTTPServerService runs the management API under the api layer of the
// supervisor tree.
//
// ListenAndServe blocks, so it runs on its own goroutine while Serve waits
// for either a listener failure or context cancellation:
//
//   - A listener failure (port in use, bad address) is returned wrapped,
//     and suture restarts the service with backoff.
//   - Cancellation starts a graceful Shutdown bounded by shutdownTimeout.
//     Requests already inside the audit middleware finish and record
//     their entries before the buffer is drained.
//   - If Shutdown misses its deadline the server is closed outright and
//     the shutdown error is returned so the stop shows up in the
//     supervisor's unstopped-service report.
//
// Example:
//
//	server := &http.Server{Addr: cfg.Server.Addr(), Handler: router.Setup()}
//	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
	addr            string
	logger          zerolog.Logger
}

// HTTPOption customizes an HTTPServerService.
type HTTPOption func(*HTTPServerService)

// WithServiceName overrides DefaultAPIServiceName.
func WithServiceName(name string) HTTPOption {
	return func(h *HTTPServerService) {
		if name != "" {
			h.name = name
		}
	}
}

// NewHTTPServerService wraps server. shutdownTimeout bounds connection
// draining and defaults to 10s. The listen address is read from
// *http.Server for logging.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration, opts ...HTTPOption) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	h := &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            DefaultAPIServiceName,
	}
	if s, ok := server.(*http.Server); ok {
		h.addr = s.Addr
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.WithComponent(h.name)
	return h
}

// Serve implements suture.Service. http.ErrServerClosed is a clean exit.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	h.logger.Info().Str("addr", h.addr).Msg("Management API listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s: listen: %w", h.name, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.shutdownTimeout)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		h.logger.Warn().Err(err).Dur("timeout", h.shutdownTimeout).Msg("Graceful shutdown incomplete, closing connections")
		if closeErr := h.server.Close(); closeErr != nil {
			h.logger.Error().Err(closeErr).Msg("Forced close failed")
		}
		<-errCh
		return fmt.Errorf("%s: shutdown: %w", h.name, err)
	}
	<-errCh
	h.logger.Info().Msg("Management API stopped")
	return ctx.Err()
}

// String implements fmt.Stringer.
func (h *HTTPServerService) String() string {
	return h.name
}
