// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package validation wraps a singleton go-playground/validator instance.
//
// Field names in errors come from the struct's json tag, so messages read
// the same way the management API spells its fields:
//
//	type Snapshot struct {
//	    BatchSize     int           `json:"batchSize" validate:"gte=1,lte=10000"`
//	    FlushInterval time.Duration `json:"flushInterval" validate:"gte=100ms"`
//	}
//
//	if verr := validation.ValidateStruct(&s); verr != nil {
//	    return verr
//	}
//
// Duration fields accept duration literals in gte/lte parameters.
package validation
