// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package dynconfig

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Default tick schedules.
const (
	DefaultMonitorSpec    = "@every 30s"
	DefaultValidationSpec = "@every 60m"
)

// Scheduler runs the monitor and self-validation ticks for a Manager.
type Scheduler struct {
	manager        *Manager
	monitorSpec    string
	validationSpec string
}

// NewScheduler creates a scheduler. Empty specs use the defaults.
func NewScheduler(m *Manager, monitorSpec, validationSpec string) *Scheduler {
	if monitorSpec == "" {
		monitorSpec = DefaultMonitorSpec
	}
	if validationSpec == "" {
		validationSpec = DefaultValidationSpec
	}
	return &Scheduler{
		manager:        m,
		monitorSpec:    monitorSpec,
		validationSpec: validationSpec,
	}
}

// Serve registers both ticks and runs them until ctx is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.monitorSpec, s.monitor); err != nil {
		return err
	}
	if _, err := c.AddFunc(s.validationSpec, s.validate); err != nil {
		return err
	}

	c.Start()
	s.manager.logger.Info().
		Str("monitor", s.monitorSpec).
		Str("validation", s.validationSpec).
		Msg("Config scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *Scheduler) String() string {
	return "dynconfig-scheduler"
}

func (s *Scheduler) monitor() {
	defer s.recoverTick("monitor")
	s.manager.CheckDrift()
}

func (s *Scheduler) validate() {
	defer s.recoverTick("validation")
	if err := s.manager.Validate(); err != nil {
		s.manager.logger.Error().Err(err).Msg("Live configuration failed validation")
	}
}

func (s *Scheduler) recoverTick(name string) {
	if r := recover(); r != nil {
		s.manager.logger.Error().Str("tick", name).Interface("panic", r).Msg("Config scheduler tick panicked")
	}
}
