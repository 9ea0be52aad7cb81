// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package dynconfig

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
	"github.com/zhengbinger/bing-frame-sub000/internal/metrics"
	"github.com/zhengbinger/bing-frame-sub000/internal/validation"
)

// MaxHistory bounds the number of retained History Records.
const MaxHistory = 100

// SystemActor is recorded for changes not made by a person.
const SystemActor = "system"

// Record is one immutable entry in the change history.
type Record struct {
	Version     int64     `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Snapshot    Snapshot  `json:"config"`
	Description string    `json:"changeDescription"`
	Actor       string    `json:"user"`
}

// Statistics summarizes the retained history.
type Statistics struct {
	TotalChanges  int64            `json:"totalChanges"`
	RecentChanges int64            `json:"recentChanges"`
	ChangesByUser map[string]int64 `json:"changesByUser"`
}

// Listener is told about each changed field after an update is applied.
type Listener interface {
	OnConfigChange(key string, oldValue, newValue interface{})
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(key string, oldValue, newValue interface{})

// OnConfigChange calls f.
func (f ListenerFunc) OnConfigChange(key string, oldValue, newValue interface{}) {
	f(key, oldValue, newValue)
}

// Validator replaces the built-in cross-field rules.
type Validator interface {
	Validate(s Snapshot) bool
	Message() string
}

// Notifier is told about applied changes, typically to fan them out to
// other processes.
type Notifier interface {
	OnChanged(key string, oldValue, newValue interface{})
	OnUpdateComplete(version string, success bool)
}

// DriftDetector reports whether the configuration source changed outside
// the Manager.
type DriftDetector interface {
	Changed() bool
}

type namedListener struct {
	name     string
	listener Listener
}

// Manager owns the live Snapshot and its history.
type Manager struct {
	live atomic.Pointer[Snapshot]

	mu        sync.Mutex
	history   []Record
	nextVer   int64
	listeners []namedListener
	validator Validator
	notifier  Notifier
	drift     DriftDetector

	unsynced atomic.Bool
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator installs a pluggable validator.
func WithValidator(v Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithNotifier installs a change notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithDriftDetector installs the monitor-tick hook.
func WithDriftDetector(d DriftDetector) Option {
	return func(m *Manager) { m.drift = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager validates initial, installs it as version 1 and records it.
func NewManager(initial Snapshot, opts ...Option) (*Manager, error) {
	m := &Manager{
		nextVer: 1,
		now:     time.Now,
		logger:  logging.WithComponent("dynconfig"),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.check(&initial); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.install(initial, "initial configuration", SystemActor)
	m.mu.Unlock()
	m.unsynced.Store(false)
	return m, nil
}

// Current returns a copy of the live Snapshot.
func (m *Manager) Current() Snapshot {
	return m.live.Load().Clone()
}

// History returns a copy of the retained records, oldest first.
func (m *Manager) History() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.history))
	for i, r := range m.history {
		r.Snapshot = r.Snapshot.Clone()
		out[i] = r
	}
	return out
}

// Update applies next and reports success. See Apply.
func (m *Manager) Update(next Snapshot, description, actor string) bool {
	return m.Apply(next, description, actor) == nil
}

// Apply validates and installs next. On failure the live Snapshot and
// history are unchanged. Listener and notifier failures never fail Apply.
func (m *Manager) Apply(next Snapshot, description, actor string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code(CodeApplyFailed).With("panic", r).Errorf("config apply panicked: %v", r)
		}
		if err != nil {
			metrics.RecordConfigUpdate("rejected")
			m.logger.Warn().Err(err).Str("actor", actor).Str("description", description).Msg("Config update rejected")
			m.notifyComplete(m.live.Load().Version, false)
		}
	}()

	if err := m.check(&next); err != nil {
		return err
	}

	m.mu.Lock()
	prev := *m.live.Load()
	rec := m.install(next, description, actor)
	m.mu.Unlock()

	metrics.RecordConfigUpdate("applied")
	m.logger.Info().
		Str("version", rec.Snapshot.Version).
		Str("actor", actor).
		Str("description", description).
		Msg("Config updated")

	live := m.live.Load()
	m.fire(prev, *live)
	m.notifyComplete(live.Version, true)
	return nil
}

// install appends a record for s and makes it live. Caller holds mu.
func (m *Manager) install(s Snapshot, description, actor string) Record {
	if actor == "" {
		actor = SystemActor
	}
	now := m.now()
	ver := m.nextVer
	m.nextVer++

	s = s.Clone()
	s.Version = "v" + strconv.FormatInt(ver, 10)
	s.UpdatedAt = now

	rec := Record{
		Version:     ver,
		Timestamp:   now,
		Snapshot:    s.Clone(),
		Description: description,
		Actor:       actor,
	}
	m.history = append(m.history, rec)
	if over := len(m.history) - MaxHistory; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}

	m.live.Store(&s)
	m.unsynced.Store(false)
	metrics.ConfigVersion.Set(float64(ver))
	return rec
}

// Rollback re-applies the Snapshot recorded at version.
func (m *Manager) Rollback(version int64, reason, actor string) bool {
	return m.RollbackTo(version, reason, actor) == nil
}

// RollbackTo re-applies the Snapshot recorded at version as a new update.
func (m *Manager) RollbackTo(version int64, reason, actor string) error {
	rec, ok := m.Lookup(version)
	if !ok {
		m.logger.Warn().Int64("version", version).Msg("Rollback target not found")
		return oops.Code(CodeVersionNotFound).With("version", version).Errorf("config version %d not in history", version)
	}
	return m.Apply(rec.Snapshot, fmt.Sprintf("rollback to version %d: %s", version, reason), actor)
}

// Lookup returns the record for version.
func (m *Manager) Lookup(version int64) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.history {
		if r.Version == version {
			r.Snapshot = r.Snapshot.Clone()
			return r, true
		}
	}
	return Record{}, false
}

// Reset applies the default Snapshot.
func (m *Manager) Reset(actor string) error {
	return m.Apply(DefaultSnapshot(), "reset to defaults", actor)
}

// ChangeStatistics summarizes the retained history.
func (m *Manager) ChangeStatistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-24 * time.Hour)
	stats := Statistics{
		TotalChanges:  int64(len(m.history)),
		ChangesByUser: make(map[string]int64),
	}
	for _, r := range m.history {
		if r.Timestamp.After(cutoff) {
			stats.RecentChanges++
		}
		stats.ChangesByUser[r.Actor]++
	}
	return stats
}

// HasUnsyncedChanges reports whether the source changed since the last
// successful update.
func (m *Manager) HasUnsyncedChanges() bool {
	return m.unsynced.Load()
}

// MarkUnsynced flags that the source changed outside the Manager.
func (m *Manager) MarkUnsynced() {
	if !m.unsynced.Swap(true) {
		m.logger.Info().Msg("External configuration change detected")
	}
}

// CheckDrift runs one monitor tick.
func (m *Manager) CheckDrift() {
	if !m.live.Load().DynamicConfigEnabled || m.drift == nil {
		return
	}
	if m.drift.Changed() {
		m.MarkUnsynced()
	}
}

// Validate re-checks the live Snapshot.
func (m *Manager) Validate() error {
	s := m.Current()
	return m.check(&s)
}

// Check validates s without applying it.
func (m *Manager) Check(s Snapshot) error {
	return m.check(&s)
}

// AddListener registers l under name, replacing any listener with that name.
func (m *Manager) AddListener(name string, l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.listeners {
		if m.listeners[i].name == name {
			m.listeners[i].listener = l
			return
		}
	}
	m.listeners = append(m.listeners, namedListener{name: name, listener: l})
}

// RemoveListener unregisters name.
func (m *Manager) RemoveListener(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.listeners {
		if m.listeners[i].name == name {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// ListenerNames returns registered listener names, sorted.
func (m *Manager) ListenerNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.listeners))
	for i, l := range m.listeners {
		names[i] = l.name
	}
	sort.Strings(names)
	return names
}

// SetValidator replaces the pluggable validator. Nil restores the
// built-in rules.
func (m *Manager) SetValidator(v Validator) {
	m.mu.Lock()
	m.validator = v
	m.mu.Unlock()
}

// SetNotifier replaces the change notifier.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

func (m *Manager) check(s *Snapshot) error {
	if verr := validation.ValidateStruct(s); verr != nil {
		return oops.Code(CodeValidation).With("fields", verr.Fields()).Wrap(verr)
	}

	m.mu.Lock()
	v := m.validator
	m.mu.Unlock()

	if v != nil {
		if !v.Validate(*s) {
			return oops.Code(CodeValidation).Errorf("%s", v.Message())
		}
		return nil
	}
	return builtinRules(s)
}

// CheckSnapshot applies the range tags and the built-in cross-field rules
// to s without a Manager.
func CheckSnapshot(s Snapshot) error {
	if verr := validation.ValidateStruct(&s); verr != nil {
		return oops.Code(CodeValidation).With("fields", verr.Fields()).Wrap(verr)
	}
	return builtinRules(&s)
}

// builtinRules applies the cross-field rules used when no Validator is set.
func builtinRules(s *Snapshot) error {
	if s.PoolMax <= s.PoolCore {
		return oops.Code(CodeValidation).
			With("threadPoolCore", s.PoolCore).
			With("threadPoolMax", s.PoolMax).
			Errorf("threadPoolMax must be greater than threadPoolCore")
	}
	if s.RetryCount > 0 && s.RetryInterval < 100*time.Millisecond {
		return oops.Code(CodeValidation).
			With("retryInterval", s.RetryInterval.String()).
			Errorf("retryInterval must be at least 100ms when retries are enabled")
	}
	return nil
}

func (m *Manager) fire(prev, next Snapshot) {
	changes := Diff(prev, next)
	if len(changes) == 0 {
		return
	}

	m.mu.Lock()
	listeners := append([]namedListener(nil), m.listeners...)
	notifier := m.notifier
	m.mu.Unlock()

	for _, l := range listeners {
		for _, c := range changes {
			m.deliver(l, c)
		}
	}

	if notifier == nil || !next.NotificationEnabled {
		return
	}
	for _, c := range changes {
		func() {
			defer m.recoverNotifier("OnChanged")
			notifier.OnChanged(c.Key, c.Old, c.New)
		}()
	}
}

func (m *Manager) deliver(l namedListener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ConfigListenerFailures.Inc()
			m.logger.Warn().
				Str("listener", l.name).
				Str("key", c.Key).
				Interface("panic", r).
				Msg("Config listener failed")
		}
	}()
	l.listener.OnConfigChange(c.Key, c.Old, c.New)
}

func (m *Manager) notifyComplete(version string, success bool) {
	m.mu.Lock()
	notifier := m.notifier
	m.mu.Unlock()
	live := m.live.Load()
	if notifier == nil || live == nil || !live.NotificationEnabled {
		return
	}
	defer m.recoverNotifier("OnUpdateComplete")
	notifier.OnUpdateComplete(version, success)
}

func (m *Manager) recoverNotifier(method string) {
	if r := recover(); r != nil {
		m.logger.Warn().Str("method", method).Interface("panic", r).Msg("Config notifier failed")
	}
}
