// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/api"
	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/config"
	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
	"github.com/zhengbinger/bing-frame-sub000/internal/middleware"
	"github.com/zhengbinger/bing-frame-sub000/internal/notify"
	"github.com/zhengbinger/bing-frame-sub000/internal/supervisor"
	"github.com/zhengbinger/bing-frame-sub000/internal/supervisor/services"
)

// warmUpTimeout bounds the startup identity preload.
const warmUpTimeout = 30 * time.Second

//nolint:gocyclo // sequential composition root
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("store", cfg.Database.Store).
		Str("driver", cfg.Database.Driver).
		Str("config_file", cfg.File).
		Bool("capture", cfg.Capture.Enabled).
		Msg("Starting audit trail pipeline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, upstream, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open audit store")
	}
	defer closeStore()

	snap := cfg.Audit
	pool := newDispatchPool(snap)
	buffer := newBuffer(store, snap, cfg.Buffer)

	cache, err := newIdentityCache(ctx, upstream, snap, cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create identity cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing identity shared tier")
		}
	}()

	pubsub, err := openPubSub(cfg.Notify)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open config notification transport")
	}
	defer func() {
		if err := pubsub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing config notification transport")
		}
	}()
	notifier := notify.NewNotifier(pubsub, cfg.Notify.Topic, cfg.Notify.Source)

	opts := []dynconfig.Option{dynconfig.WithNotifier(notifier)}
	var fileWatcher *config.FileWatcher
	if cfg.File != "" {
		fileWatcher = config.NewFileWatcher(cfg.File)
		opts = append(opts, dynconfig.WithDriftDetector(fileWatcher))
	}
	manager, err := dynconfig.NewManager(snap, opts...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Initial audit configuration rejected")
	}
	registerRetuning(manager, pool, buffer, cache)

	sink := newSink(cfg.Capture, manager, buffer, pool, os.Stdout)
	recorder, err := audit.NewRecorder(sink,
		audit.WithRequestContext(middleware.Provider{}),
		audit.WithActorResolver(cache),
		audit.WithEnabled(func() bool { return manager.Current().Enabled }),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create audit recorder")
	}

	if ids := cfg.Cache.WarmUpIDs; len(ids) > 0 && snap.CacheEnabled {
		warmCtx, warmCancel := context.WithTimeout(ctx, warmUpTimeout)
		cache.WarmUp(warmCtx, ids)
		warmCancel()
	}

	handler, err := api.NewHandler(api.Dependencies{
		Config:   manager,
		Buffer:   buffer,
		Cache:    cache,
		Recorder: recorder,
		Store:    store,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create API handler")
	}
	router := api.NewRouter(handler, api.NewChiMiddleware(chiConfig(cfg.Security)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	retention := audit.NewRetention(store, func() int { return manager.Current().RetentionDays }, cfg.Scheduler.RetentionInterval)
	tree.AddPipelineService(services.NewLoopService("audit-buffer-flusher", buffer.Run))
	tree.AddPipelineService(services.NewLoopService("audit-retention", retention.Run))
	tree.AddPipelineService(services.NewTickerService("identity-cache-sweeper", cfg.Cache.SweepInterval, func(context.Context) {
		cache.Sweep()
	}))

	tree.AddControlService(dynconfig.NewScheduler(manager, cfg.Scheduler.MonitorSpec, cfg.Scheduler.ValidationSpec))
	if fileWatcher != nil {
		tree.AddControlService(fileWatcher)
	}
	tree.AddControlService(notify.NewWatcher(pubsub, cfg.Notify.Topic, notifier.Source(), func(e notify.Event) {
		logging.Info().Str("source", e.Source).Str("kind", e.Kind).Msg("Config changed on another instance")
		manager.MarkUnsynced()
	}))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	shutdown(buffer, pool, cfg.Supervisor.ShutdownTimeout)
	logging.Info().Msg("Audit trail pipeline stopped")
}
