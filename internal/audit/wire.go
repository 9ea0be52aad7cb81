// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"strconv"
	"strings"
)

// Line keys, in the order EncodeLine writes them.
const (
	KeyUserID        = "userId"
	KeyUsername      = "username"
	KeyIPAddress     = "ipAddress"
	KeyModule        = "module"
	KeyOperationType = "operationType"
	KeyDescription   = "description"
	KeyRequestParams = "requestParams"
	KeyResult        = "result"
	KeyExecutionTime = "executionTime"
	KeyErrorMessage  = "errorMessage"
)

// EncodeLine renders e in the comma-separated key:value line format.
// Absent optional fields are omitted.
func EncodeLine(e *Entry) string {
	var b strings.Builder
	b.Grow(128 + len(e.Description) + len(e.RequestParams))

	write := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(key)
		b.WriteByte(':')
		escapeValue(&b, value)
	}

	if e.UserID != nil {
		write(KeyUserID, strconv.FormatInt(*e.UserID, 10))
	}
	write(KeyUsername, e.Username)
	write(KeyIPAddress, e.IPAddress)
	write(KeyModule, e.Module)
	write(KeyOperationType, e.OperationType)
	write(KeyDescription, e.Description)
	write(KeyRequestParams, e.RequestParams)
	write(KeyResult, string(e.Result))
	if e.ExecutionTime != nil {
		write(KeyExecutionTime, strconv.FormatInt(*e.ExecutionTime, 10))
	}
	if e.ErrorMessage != "" {
		write(KeyErrorMessage, e.ErrorMessage)
	}
	return b.String()
}

// ParseLine decodes a line into a partial Entry. It never fails: pairs
// without a colon and unknown keys are skipped, and numeric fields that do
// not parse are left absent. Id, timestamp and default result are not set.
func ParseLine(line string) *Entry {
	e := &Entry{}
	for _, field := range splitFields(line) {
		key, raw, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value := strings.TrimSpace(unescapeValue(raw))

		switch key {
		case KeyUserID:
			if id, err := strconv.ParseInt(value, 10, 64); err == nil {
				e.UserID = &id
			}
		case KeyUsername:
			e.Username = value
		case KeyIPAddress:
			e.IPAddress = value
		case KeyModule:
			e.Module = value
		case KeyOperationType:
			e.OperationType = value
		case KeyDescription:
			e.Description = value
		case KeyRequestParams:
			e.RequestParams = value
		case KeyResult:
			e.Result = parseResult(value)
		case KeyExecutionTime:
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
				e.ExecutionTime = &ms
			}
		case KeyErrorMessage:
			e.ErrorMessage = value
		}
	}
	return e
}

func parseResult(v string) Result {
	switch strings.ToLower(v) {
	case "success":
		return ResultSuccess
	case "failure", "fail", "failed":
		return ResultFailure
	default:
		return ""
	}
}

func escapeValue(b *strings.Builder, v string) {
	for i := 0; i < len(v); i++ {
		switch c := v[i]; c {
		case '\\', ',':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
}

// splitFields splits on commas not preceded by an escaping backslash.
// Escape sequences are kept intact for unescapeValue.
func splitFields(line string) []string {
	var fields []string
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case ',':
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	return append(fields, line[start:])
}

func unescapeValue(v string) string {
	if !strings.Contains(v, "\\") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\\' && i+1 < len(v) && (v[i+1] == '\\' || v[i+1] == ',') {
			b.WriteByte(v[i+1])
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
