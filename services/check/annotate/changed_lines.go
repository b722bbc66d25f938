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
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ChangedLines records which new-side lines a unified diff adds, per file.
//
// It implements LineFilter so it can be handed to WithLineFilter.
type ChangedLines struct {
	files map[string]map[int]struct{}
}

// ParseChangedLines reads a multi-file unified diff (git diff output).
//
// Deleted files contribute nothing. Paths are taken from the new side with
// the conventional "b/" prefix removed.
func ParseChangedLines(data []byte) (*ChangedLines, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiff, err)
	}

	cl := &ChangedLines{files: make(map[string]map[int]struct{})}
	for _, fd := range fileDiffs {
		path := newSidePath(fd.NewName)
		if path == "" {
			continue
		}
		lines := cl.files[path]
		if lines == nil {
			lines = make(map[int]struct{})
			cl.files[path] = lines
		}
		for _, h := range fd.Hunks {
			addHunk(lines, h)
		}
	}
	return cl, nil
}

// LoadChangedLines reads and parses the diff stored at path.
func LoadChangedLines(path string) (*ChangedLines, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading diff file: %w", err)
	}
	return ParseChangedLines(data)
}

// Touches reports whether any line in [start, end] of path was added.
func (c *ChangedLines) Touches(path string, start, end int) bool {
	lines, ok := c.files[path]
	if !ok {
		return false
	}
	for l := start; l <= end; l++ {
		if _, ok := lines[l]; ok {
			return true
		}
	}
	return false
}

// Files returns the number of files with at least one hunk.
func (c *ChangedLines) Files() int {
	return len(c.files)
}

func newSidePath(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	return strings.TrimPrefix(name, "b/")
}

// addHunk walks the hunk body, tracking the new-side line number.
func addHunk(lines map[int]struct{}, h *diff.Hunk) {
	line := int(h.NewStartLine)
	for _, raw := range bytes.Split(h.Body, []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		switch raw[0] {
		case '+':
			lines[line] = struct{}{}
			line++
		case ' ':
			line++
		case '-', '\\':
			// old side only, or "\ No newline at end of file"
		}
	}
}
