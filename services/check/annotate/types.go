// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package annotate converts parsed diagnostics into check-run annotations
// and keeps the per-run severity tally.
package annotate

import (
	"fmt"

	"github.com/AleutianAI/clippycheck/services/check/diagnostic"
)

// Level is the annotation_level accepted by the checks API.
type Level string

const (
	LevelNotice  Level = "notice"
	LevelWarning Level = "warning"
	LevelFailure Level = "failure"
)

// LevelFor maps a diagnostic severity onto an annotation level.
func LevelFor(s diagnostic.Severity) Level {
	switch s {
	case diagnostic.SeverityError, diagnostic.SeverityInternal:
		return LevelFailure
	case diagnostic.SeverityWarning:
		return LevelWarning
	default:
		return LevelNotice
	}
}

// Annotation is one entry of a check run's output.annotations array.
//
// StartColumn and EndColumn are zero (and omitted on the wire) unless
// StartLine == EndLine, which is what the checks API requires.
type Annotation struct {
	Path            string `json:"path"`
	StartLine       int    `json:"start_line"`
	EndLine         int    `json:"end_line"`
	StartColumn     int    `json:"start_column,omitempty"`
	EndColumn       int    `json:"end_column,omitempty"`
	AnnotationLevel Level  `json:"annotation_level"`
	Message         string `json:"message"`
	Title           string `json:"title,omitempty"`
	RawDetails      string `json:"raw_details,omitempty"`
}

// Location returns path:line[:col].
func (a Annotation) Location() string {
	if a.StartColumn > 0 {
		return fmt.Sprintf("%s:%d:%d", a.Path, a.StartLine, a.StartColumn)
	}
	return fmt.Sprintf("%s:%d", a.Path, a.StartLine)
}

// =============================================================================
// TALLY
// =============================================================================

// Tally counts diagnostics by severity.
//
// Counters only ever grow. Internal compiler errors count as errors and are
// also reported separately; help messages count as notes.
type Tally struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Notes    int `json:"notes"`
	Internal int `json:"internal,omitempty"`
}

// Add records one diagnostic of the given severity.
func (t *Tally) Add(s diagnostic.Severity) {
	switch s {
	case diagnostic.SeverityInternal:
		t.Internal++
		t.Errors++
	case diagnostic.SeverityError:
		t.Errors++
	case diagnostic.SeverityWarning:
		t.Warnings++
	default:
		t.Notes++
	}
}

// Total returns the number of diagnostics counted.
func (t Tally) Total() int {
	return t.Errors + t.Warnings + t.Notes
}

// HasBlocking reports whether any error or ICE was counted.
func (t Tally) HasBlocking() bool {
	return t.Errors > 0
}
