// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package dynconfig

import (
	"reflect"
	"slices"
	"strings"
	"time"
)

// Audit levels, most to least detailed.
const (
	LevelFull  = "FULL"
	LevelBasic = "BASIC"
	LevelNone  = "NONE"
)

// Snapshot is the full set of live tunables.
type Snapshot struct {
	Enabled              bool `json:"enabled" koanf:"enabled"`
	AsyncEnabled         bool `json:"asyncEnabled" koanf:"async_enabled"`
	DynamicConfigEnabled bool `json:"dynamicConfigEnabled" koanf:"dynamic_config_enabled"`
	NotificationEnabled  bool `json:"notificationEnabled" koanf:"notification_enabled"`
	CacheEnabled         bool `json:"cacheEnabled" koanf:"cache_enabled"`
	BufferPoolEnabled    bool `json:"bufferPoolEnabled" koanf:"buffer_pool_enabled"`
	ExceptionHandling    bool `json:"exceptionHandling" koanf:"exception_handling"`

	BatchSize      int           `json:"batchSize" koanf:"batch_size" validate:"gte=1,lte=10000"`
	FlushInterval  time.Duration `json:"flushInterval" koanf:"flush_interval" validate:"gte=100ms,lte=1h"`
	QueueCapacity  int           `json:"queueCapacity" koanf:"queue_capacity" validate:"gte=1,lte=1000000"`
	PoolCore       int           `json:"threadPoolCore" koanf:"thread_pool_core" validate:"gte=1,lte=1000"`
	PoolMax        int           `json:"threadPoolMax" koanf:"thread_pool_max" validate:"gtfield=PoolCore,lte=1000"`
	PoolQueue      int           `json:"threadPoolQueue" koanf:"thread_pool_queue" validate:"gte=1,lte=100000"`
	PoolKeepAlive  time.Duration `json:"threadPoolKeepAlive" koanf:"thread_pool_keep_alive" validate:"gte=1s"`
	AuditLevel     string        `json:"auditLevel" koanf:"audit_level" validate:"oneof=FULL BASIC NONE"`
	RetryCount     int           `json:"retryCount" koanf:"retry_count" validate:"gte=0,lte=10"`
	RetryInterval  time.Duration `json:"retryInterval" koanf:"retry_interval" validate:"gte=0,lte=1m"`
	MaxExecution   time.Duration `json:"maxExecutionTime" koanf:"max_execution_time" validate:"gte=0,lte=10m"`
	DeadLoopGuard  bool          `json:"deadLoopGuard" koanf:"dead_loop_guard"`
	RetentionDays  int           `json:"retentionDays" koanf:"retention_days" validate:"gte=0,lte=3650"`
	IdentityCache  int           `json:"identityCacheSize" koanf:"identity_cache_size" validate:"gte=1,lte=1000000"`
	IdentityTTL    time.Duration `json:"identityCacheTtl" koanf:"identity_cache_ttl" validate:"gte=1s,lte=24h"`
	FieldFilter    bool          `json:"fieldFilterEnabled" koanf:"field_filter_enabled"`
	SensitiveField []string      `json:"sensitiveFields" koanf:"sensitive_fields"`

	// Stamped by the Manager on apply.
	Version   string    `json:"version" koanf:"-"`
	UpdatedAt time.Time `json:"updatedAt" koanf:"-"`
}

// DefaultSnapshot returns the default tunables.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Enabled:              true,
		AsyncEnabled:         true,
		DynamicConfigEnabled: true,
		NotificationEnabled:  true,
		CacheEnabled:         true,
		BufferPoolEnabled:    true,
		ExceptionHandling:    true,
		BatchSize:            50,
		FlushInterval:        10 * time.Second,
		QueueCapacity:        10000,
		PoolCore:             5,
		PoolMax:              10,
		PoolQueue:            500,
		PoolKeepAlive:        60 * time.Second,
		AuditLevel:           LevelBasic,
		RetryCount:           3,
		RetryInterval:        time.Second,
		MaxExecution:         5 * time.Second,
		DeadLoopGuard:        true,
		RetentionDays:        30,
		IdentityCache:        1000,
		IdentityTTL:          30 * time.Minute,
		SensitiveField:       []string{"password", "token", "secret"},
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.SensitiveField = slices.Clone(s.SensitiveField)
	return s
}

// Equal reports whether two snapshots hold the same tunables. Version and
// UpdatedAt are ignored.
func (s Snapshot) Equal(other Snapshot) bool {
	return len(Diff(s, other)) == 0
}

// PersistTimeout returns the per-call persist bound, zero when the
// dead-loop guard is off.
func (s Snapshot) PersistTimeout() time.Duration {
	if !s.DeadLoopGuard {
		return 0
	}
	return s.MaxExecution
}

// Change is one field that differs between two snapshots.
type Change struct {
	Key string
	Old interface{}
	New interface{}
}

var stampedFields = map[string]bool{"Version": true, "UpdatedAt": true}

// Diff lists the tunables that differ from old to next, keyed by JSON name,
// in declaration order.
func Diff(old, next Snapshot) []Change {
	ov := reflect.ValueOf(old)
	nv := reflect.ValueOf(next)
	t := ov.Type()

	var changes []Change
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if stampedFields[f.Name] {
			continue
		}
		a := ov.Field(i).Interface()
		b := nv.Field(i).Interface()
		if reflect.DeepEqual(a, b) {
			continue
		}
		changes = append(changes, Change{Key: jsonName(f), Old: a, New: b})
	}
	return changes
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}
