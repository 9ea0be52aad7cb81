// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package validation

import (
	"strings"
	"testing"
	"time"
)

type tunables struct {
	BatchSize     int           `json:"batchSize" validate:"gte=1,lte=1000"`
	FlushInterval time.Duration `json:"flushInterval" validate:"gte=100ms,lte=1h"`
	Level         string        `json:"auditLevel" validate:"oneof=NONE BASIC FULL"`
	PoolCore      int           `json:"threadPoolCore" validate:"gte=1"`
	PoolMax       int           `json:"threadPoolMax" validate:"gtfield=PoolCore"`
}

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	valid := tunables{BatchSize: 50, FlushInterval: 10 * time.Second, Level: "BASIC", PoolCore: 5, PoolMax: 10}

	tests := []struct {
		name       string
		mutate     func(*tunables)
		wantFields []string
	}{
		{name: "valid", mutate: func(*tunables) {}},
		{name: "batch size too large", mutate: func(s *tunables) { s.BatchSize = 5000 }, wantFields: []string{"batchSize"}},
		{name: "flush interval below floor", mutate: func(s *tunables) { s.FlushInterval = time.Millisecond }, wantFields: []string{"flushInterval"}},
		{name: "unknown level", mutate: func(s *tunables) { s.Level = "VERBOSE" }, wantFields: []string{"auditLevel"}},
		{name: "max not above core", mutate: func(s *tunables) { s.PoolMax = 5 }, wantFields: []string{"threadPoolMax"}},
		{
			name:       "multiple failures",
			mutate:     func(s *tunables) { s.BatchSize = 0; s.Level = "" },
			wantFields: []string{"batchSize", "auditLevel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := valid
			tt.mutate(&in)
			verr := ValidateStruct(&in)

			if len(tt.wantFields) == 0 {
				if verr != nil {
					t.Fatalf("expected no error, got %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			got := strings.Join(verr.Fields(), ",")
			if got != strings.Join(tt.wantFields, ",") {
				t.Errorf("failed fields = %s, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestValidateStruct_Messages(t *testing.T) {
	t.Parallel()

	in := tunables{BatchSize: 0, FlushInterval: time.Second, Level: "FULL", PoolCore: 1, PoolMax: 2}
	verr := ValidateStruct(&in)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if msg := verr.Error(); msg != "batchSize must be greater than or equal to 1" {
		t.Errorf("unexpected message %q", msg)
	}
}
