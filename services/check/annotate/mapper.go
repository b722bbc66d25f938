// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package annotate

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/clippycheck/services/check/diagnostic"
)

const (
	// MaxMessageBytes is the checks API limit for annotation messages.
	MaxMessageBytes = 64 * 1024

	// maxTitleBytes is the checks API limit for annotation titles.
	maxTitleBytes = 255

	truncationMarker = "\n… (message truncated)"
)

// LineFilter decides whether an annotation range should be kept.
type LineFilter interface {
	// Touches reports whether lines [start, end] of the repo-relative path
	// overlap the filter.
	Touches(path string, start, end int) bool
}

// =============================================================================
// MAPPER
// =============================================================================

// Mapper turns diagnostic records into annotations.
//
// Thread Safety: Safe for concurrent use; it holds no mutable state.
type Mapper struct {
	root       string
	base       string
	maxMessage int
	filter     LineFilter
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithBaseDir sets the directory that relative span paths are resolved
// against. Relative dirs are taken relative to the repository root.
// Use it when the cargo workspace lives in a subdirectory of the repo.
func WithBaseDir(dir string) MapperOption {
	return func(m *Mapper) {
		if dir == "" {
			return
		}
		if filepath.IsAbs(dir) {
			m.base = filepath.Clean(dir)
		} else {
			m.base = filepath.Join(m.root, dir)
		}
	}
}

// WithMaxMessageBytes overrides MaxMessageBytes. Values below the marker
// length are ignored.
func WithMaxMessageBytes(n int) MapperOption {
	return func(m *Mapper) {
		if n > len(truncationMarker) {
			m.maxMessage = n
		}
	}
}

// WithLineFilter drops annotations whose range the filter does not touch.
func WithLineFilter(f LineFilter) MapperOption {
	return func(m *Mapper) {
		m.filter = f
	}
}

// NewMapper creates a mapper for the repository rooted at root.
//
// Description:
//
//	root is made absolute. An empty root means the current directory.
//	Options are applied in order after the root is resolved.
//
// Inputs:
//
//	root - Repository root that annotation paths are relative to
//	opts - Optional configuration
//
// Outputs:
//
//	*Mapper - The configured mapper
func NewMapper(root string, opts ...MapperOption) *Mapper {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}

	m := &Mapper{
		root:       abs,
		base:       abs,
		maxMessage: MaxMessageBytes,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the absolute repository root.
func (m *Mapper) Root() string {
	return m.root
}

// Map converts a record into the annotation anchored at its primary span.
//
// Description:
//
//	Non-primary spans are ignored. Line ranges are normalised so that
//	EndLine >= StartLine; columns are kept only for single-line spans and
//	normalised so that EndColumn >= StartColumn. The rendered message is
//	truncated to the API limit.
//
// Inputs:
//
//	rec - A record produced by diagnostic.Extract
//
// Outputs:
//
//	Annotation - The annotation
//	error - ErrNoSpan, ErrInvalidSpan, ErrPathOutsideRepo or ErrNotChanged
func (m *Mapper) Map(rec diagnostic.Record) (Annotation, error) {
	span, ok := rec.PrimarySpan()
	if !ok {
		return Annotation{}, ErrNoSpan
	}

	path, err := m.relativePath(span.FileName)
	if err != nil {
		return Annotation{}, err
	}

	if span.LineStart < 1 {
		return Annotation{}, fmt.Errorf("%w: line_start %d in %s", ErrInvalidSpan, span.LineStart, path)
	}
	start, end := span.LineStart, span.LineEnd
	if end < start {
		end = start
	}

	if m.filter != nil && !m.filter.Touches(path, start, end) {
		return Annotation{}, fmt.Errorf("%w: %s:%d-%d", ErrNotChanged, path, start, end)
	}

	ann := Annotation{
		Path:            path,
		StartLine:       start,
		EndLine:         end,
		AnnotationLevel: LevelFor(rec.Severity),
		Message:         Truncate(rec.Message, m.maxMessage),
		Title:           Truncate(titleFor(rec), maxTitleBytes),
	}
	if ann.Message == "" {
		ann.Message = rec.Severity.String()
	}
	if start == end && span.ColumnStart > 0 {
		ann.StartColumn = span.ColumnStart
		ann.EndColumn = span.ColumnEnd
		if ann.EndColumn < ann.StartColumn {
			ann.EndColumn = ann.StartColumn
		}
	}

	return ann, nil
}

// relativePath resolves a span file name to a slash-separated path
// relative to the repository root.
func (m *Mapper) relativePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", ErrInvalidSpan)
	}
	// rustc names macro expansions and virtual files like "<anon>".
	if strings.HasPrefix(name, "<") {
		return "", fmt.Errorf("%w: virtual file %s", ErrInvalidSpan, name)
	}

	var abs string
	if filepath.IsAbs(name) {
		abs = filepath.Clean(name)
	} else {
		abs = filepath.Join(m.base, name)
	}

	rel, err := filepath.Rel(m.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRepo, name)
	}
	if rel == "." {
		return "", fmt.Errorf("%w: %s is the repository root", ErrInvalidSpan, name)
	}

	return filepath.ToSlash(rel), nil
}

// titleFor returns the short label shown above an annotation.
func titleFor(rec diagnostic.Record) string {
	if rec.Code == "" {
		return rec.Severity.String()
	}
	return rec.Severity.String() + ": " + rec.Code
}

// Truncate shortens s to at most max bytes.
//
// Description:
//
//	Keeps the leading bytes of s, cut on a UTF-8 boundary, and appends a
//	marker so readers know text was dropped. Strings within the limit are
//	returned unchanged. A limit too small to hold "…" and one more byte
//	gets the bare cut with no marker; a limit of zero or less gives "".
//
// Inputs:
//
//	s - The text to shorten
//	max - Maximum length in bytes
//
// Outputs:
//
//	string - s, or its truncated form
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 0 {
		return ""
	}
	marker := truncationMarker
	if max <= len(marker) {
		marker = "…"
	}
	if max <= len(marker) {
		return s[:runeCut(s, max)]
	}
	return s[:runeCut(s, max-len(marker))] + marker
}

// runeCut moves n back to the start of the rune it falls in.
// It requires n < len(s).
func runeCut(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
