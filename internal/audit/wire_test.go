// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"testing"
)

func TestEncodeLine(t *testing.T) {
	e := &Entry{
		UserID:        Int64Ptr(42),
		Username:      "alice",
		IPAddress:     "10.0.0.1",
		Module:        "users",
		OperationType: "UPDATE",
		Description:   "changed role",
		RequestParams: "{\"role\":\"admin\"}",
		Result:        ResultSuccess,
		ExecutionTime: Int64Ptr(12),
	}

	want := "userId:42,username:alice,ipAddress:10.0.0.1,module:users,operationType:UPDATE," +
		"description:changed role,requestParams:{\"role\":\"admin\"},result:success,executionTime:12"
	if got := EncodeLine(e); got != want {
		t.Errorf("EncodeLine() =\n%s\nwant\n%s", got, want)
	}
}

func TestEncodeLineOmitsAbsentFields(t *testing.T) {
	e := &Entry{Username: "anonymous", Module: "auth", OperationType: "LOGIN", Result: ResultFailure, ErrorMessage: "bad password"}

	want := "username:anonymous,ipAddress:,module:auth,operationType:LOGIN,description:,requestParams:,result:failure,errorMessage:bad password"
	if got := EncodeLine(e); got != want {
		t.Errorf("EncodeLine() = %q, want %q", got, want)
	}
}

func TestParseLineRoundTripsEscapedValues(t *testing.T) {
	e := &Entry{
		UserID:        Int64Ptr(7),
		Username:      "bob",
		Module:        "orders",
		OperationType: "CREATE",
		Description:   "items a, b, c",
		RequestParams: "path=C:\\tmp,x=1",
		Result:        ResultFailure,
		ErrorMessage:  "timeout: upstream, retry later",
	}

	got := ParseLine(EncodeLine(e))
	if got.UserID == nil || *got.UserID != 7 {
		t.Fatalf("UserID = %v, want 7", got.UserID)
	}
	if got.Description != e.Description {
		t.Errorf("Description = %q, want %q", got.Description, e.Description)
	}
	if got.RequestParams != e.RequestParams {
		t.Errorf("RequestParams = %q, want %q", got.RequestParams, e.RequestParams)
	}
	if got.ErrorMessage != e.ErrorMessage {
		t.Errorf("ErrorMessage = %q, want %q", got.ErrorMessage, e.ErrorMessage)
	}
	if got.Result != ResultFailure {
		t.Errorf("Result = %q, want failure", got.Result)
	}
}

func TestParseLineLegacy(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, e *Entry)
	}{
		{
			name: "value containing colon splits on first colon",
			line: "module:net,description:connect to host:8080",
			check: func(t *testing.T, e *Entry) {
				if e.Description != "connect to host:8080" {
					t.Errorf("Description = %q", e.Description)
				}
			},
		},
		{
			name: "non-numeric userId is absent",
			line: "userId:abc,username:carol,module:x",
			check: func(t *testing.T, e *Entry) {
				if e.UserID != nil {
					t.Errorf("UserID = %v, want nil", *e.UserID)
				}
				if e.Username != "carol" {
					t.Errorf("Username = %q, want carol", e.Username)
				}
			},
		},
		{
			name: "non-numeric executionTime is absent",
			line: "executionTime:fast,module:x",
			check: func(t *testing.T, e *Entry) {
				if e.ExecutionTime != nil {
					t.Errorf("ExecutionTime = %v, want nil", *e.ExecutionTime)
				}
				if e.Module != "x" {
					t.Errorf("Module = %q, want x", e.Module)
				}
			},
		},
		{
			name: "pairs without colon and unknown keys are skipped",
			line: "garbage, module : billing ,foo:bar,operationType:PAY",
			check: func(t *testing.T, e *Entry) {
				if e.Module != "billing" {
					t.Errorf("Module = %q, want billing", e.Module)
				}
				if e.OperationType != "PAY" {
					t.Errorf("OperationType = %q, want PAY", e.OperationType)
				}
			},
		},
		{
			name: "result aliases",
			line: "result:FAILED",
			check: func(t *testing.T, e *Entry) {
				if e.Result != ResultFailure {
					t.Errorf("Result = %q, want failure", e.Result)
				}
			},
		},
		{
			name: "empty line",
			line: "",
			check: func(t *testing.T, e *Entry) {
				if e.Module != "" || e.UserID != nil {
					t.Errorf("expected empty entry, got %+v", e)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseLine(tt.line))
		})
	}
}

func TestEntryNormalize(t *testing.T) {
	e := &Entry{ErrorMessage: "boom"}
	e.Normalize(fixedTime)
	if e.ID == "" {
		t.Error("Normalize should assign an id")
	}
	if !e.OperationTime.Equal(fixedTime) {
		t.Errorf("OperationTime = %v, want %v", e.OperationTime, fixedTime)
	}
	if e.Result != ResultFailure {
		t.Errorf("Result = %q, want failure when an error is attached", e.Result)
	}

	ok := &Entry{}
	ok.Normalize(fixedTime)
	if ok.Result != ResultSuccess {
		t.Errorf("Result = %q, want success by default", ok.Result)
	}
}
