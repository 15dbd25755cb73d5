// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"
	FieldPulsar    = "psr"
	FieldMethod    = "method"
	FieldReason    = "reason"
	FieldEpoch     = "epoch"
	FieldPath      = "path"
	FieldCount     = "count"
	FieldNTOAs     = "ntoas"
	FieldChi2      = "chi2"
	FieldDof       = "dof"
)
