// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package query builds parameterized SQL WHERE clauses.
//
// Filters with a zero value are skipped, so a filter struct can be passed
// straight through:
//
//	wb := query.NewWhereBuilder()
//	wb.AddInt64("user_id", filter.UserID)
//	wb.AddString("module", filter.Module)
//	wb.AddTimeRange("operation_time", filter.StartTime, filter.EndTime)
//	where, args := wb.BuildWithPrefix()
//	// " WHERE user_id = ? AND module = ? AND operation_time >= ?"
//
// Column names are trusted input and are never taken from a request.
package query
