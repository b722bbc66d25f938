// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostic

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// RECORD KIND
// =============================================================================

// RecordKind is the decoded "reason" tag of a cargo JSON message.
type RecordKind int

const (
	// KindUnknown is never returned by Classify; it is the zero value.
	KindUnknown RecordKind = iota

	// KindCompilerMessage carries a rustc/clippy diagnostic.
	KindCompilerMessage

	// KindCompilerArtifact reports a finished build artifact.
	KindCompilerArtifact

	// KindBuildScriptExecuted reports a build.rs run.
	KindBuildScriptExecuted

	// KindBuildFinished is the final record of a cargo invocation.
	KindBuildFinished
)

// String returns the cargo reason tag for the kind.
func (k RecordKind) String() string {
	switch k {
	case KindCompilerMessage:
		return "compiler-message"
	case KindCompilerArtifact:
		return "compiler-artifact"
	case KindBuildScriptExecuted:
		return "build-script-executed"
	case KindBuildFinished:
		return "build-finished"
	default:
		return "unknown"
	}
}

// kindFromReason maps a reason tag to its kind. Unknown tags map to KindUnknown.
func kindFromReason(reason string) RecordKind {
	switch reason {
	case "compiler-message":
		return KindCompilerMessage
	case "compiler-artifact":
		return KindCompilerArtifact
	case "build-script-executed":
		return KindBuildScriptExecuted
	case "build-finished":
		return KindBuildFinished
	default:
		return KindUnknown
	}
}

// =============================================================================
// SEVERITY
// =============================================================================

// Severity is the level of a diagnostic as reported by rustc.
type Severity int

const (
	// SeverityNote is an informational note. Unrecognised levels land here.
	SeverityNote Severity = iota

	// SeverityHelp is a suggestion attached to another diagnostic.
	SeverityHelp

	// SeverityWarning is an advisory lint.
	SeverityWarning

	// SeverityError is a blocking lint or compile error.
	SeverityError

	// SeverityInternal is an internal compiler error (ICE).
	SeverityInternal
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityHelp:
		return "help"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityInternal:
		return "internal compiler error"
	default:
		return "unknown"
	}
}

// IsBlocking reports whether the severity fails a check run.
func (s Severity) IsBlocking() bool {
	return s == SeverityError || s == SeverityInternal
}

// SeverityFromLevel parses a rustc "level" string.
//
// Description:
//
//	Matching is case-insensitive and ignores surrounding whitespace.
//	Unknown values map to SeverityNote, the lowest actionable level,
//	rather than failing.
//
// Inputs:
//
//	level - The level field of a compiler message (e.g., "warning")
//
// Outputs:
//
//	Severity - The parsed severity
func SeverityFromLevel(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return SeverityError
	case "error: internal compiler error", "internal compiler error", "ice":
		return SeverityInternal
	case "warning":
		return SeverityWarning
	case "help":
		return SeverityHelp
	default:
		return SeverityNote
	}
}

// =============================================================================
// SPAN AND RECORD
// =============================================================================

// Span is a source range attached to a diagnostic.
//
// Lines and columns are 1-indexed, as rustc reports them.
type Span struct {
	FileName    string
	LineStart   int
	LineEnd     int
	ColumnStart int
	ColumnEnd   int
	IsPrimary   bool
}

// Record is one parsed diagnostic.
//
// Thread Safety: Immutable after Extract returns it.
type Record struct {
	// Severity is the parsed level.
	Severity Severity

	// Message is the rendered, human-readable diagnostic text.
	// Falls back to Summary when rustc did not render one.
	Message string

	// Summary is the one-line diagnostic message.
	Summary string

	// Code is the lint or error code (e.g., "clippy::needless_return"). May be empty.
	Code string

	// Spans are the source locations in emission order. Exactly one is
	// primary when the slice is non-empty.
	Spans []Span
}

// PrimarySpan returns the span that anchors the diagnostic.
func (r *Record) PrimarySpan() (Span, bool) {
	for _, s := range r.Spans {
		if s.IsPrimary {
			return s, true
		}
	}
	return Span{}, false
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// Message is a classified cargo JSON record.
//
// Only the kind is decoded eagerly; the payload stays raw until Extract
// needs it, so artifact and build-script records cost a single decode.
type Message struct {
	Kind    RecordKind
	Payload json.RawMessage
}

// envelope is the shape shared by every cargo JSON record.
type envelope struct {
	Reason  string          `json:"reason"`
	Message json.RawMessage `json:"message"`
}

// compilerMessage is the "message" object of a compiler-message record.
type compilerMessage struct {
	Message  string     `json:"message"`
	Rendered *string    `json:"rendered"`
	Level    string     `json:"level"`
	Code     *wireCode  `json:"code"`
	Spans    []wireSpan `json:"spans"`
}

type wireCode struct {
	Code string `json:"code"`
}

type wireSpan struct {
	FileName    string `json:"file_name"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	ColumnStart int    `json:"column_start"`
	ColumnEnd   int    `json:"column_end"`
	IsPrimary   bool   `json:"is_primary"`
}
