// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package dynconfig

import (
	"github.com/samber/oops"
)

// Error codes carried by errors returned from this package.
const (
	CodeValidation      = "CONFIG_VALIDATION_FAILED"
	CodeVersionNotFound = "CONFIG_VERSION_NOT_FOUND"
	CodeApplyFailed     = "CONFIG_APPLY_FAILED"
	CodeImportInvalid   = "CONFIG_IMPORT_INVALID"
	CodeImportEmpty     = "CONFIG_IMPORT_NO_FIELDS"
	CodeExportFailed    = "CONFIG_EXPORT_FAILED"
)

// HasCode reports whether err carries code.
func HasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}
