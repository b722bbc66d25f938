// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkrun

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/clippycheck/services/check/annotate"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		tally annotate.Tally
		want  string
	}{
		{annotate.Tally{}, "No problems found"},
		{annotate.Tally{Warnings: 1}, "1 warning"},
		{annotate.Tally{Errors: 3, Warnings: 2}, "3 errors, 2 warnings"},
		{annotate.Tally{Errors: 2, Internal: 1, Notes: 4}, "1 internal compiler error, 1 error, 4 notes"},
		{annotate.Tally{Errors: 1, Internal: 1}, "1 internal compiler error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Title(tt.tally))
	}
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary(summaryInput{
		Tally:      annotate.Tally{Errors: 2, Internal: 1, Warnings: 5, Notes: 1},
		Unanchored: 1,
		Filtered:   3,
		Versions:   ToolVersions{Rustc: "rustc 1.80.0 (051478957 2024-07-21)", Clippy: "clippy 0.1.80 | odd"},
	})

	assert.Contains(t, out, "| Internal compiler error | 1 |")
	assert.Contains(t, out, "| Error | 1 |")
	assert.Contains(t, out, "| Warning | 5 |")
	assert.Contains(t, out, "| Note | 1 |")
	assert.Contains(t, out, "1 diagnostic without a location in this repository was counted")
	assert.Contains(t, out, "3 diagnostics outside the changed lines were counted")
	assert.Contains(t, out, "| rustc | rustc 1.80.0 (051478957 2024-07-21) |")
	assert.Contains(t, out, "| cargo | unknown |")
	assert.Contains(t, out, `| clippy | clippy 0.1.80 \| odd |`)
}

func TestRenderSummary_NoIceRowWhenZero(t *testing.T) {
	out := renderSummary(summaryInput{Tally: annotate.Tally{Warnings: 1}})
	assert.NotContains(t, out, "Internal compiler error")
	assert.NotContains(t, out, "counted but not annotated")
}

func TestPendingSummary(t *testing.T) {
	out := pendingSummary(ToolVersions{Cargo: "cargo 1.80.0"})
	assert.Contains(t, out, "Clippy is running.")
	assert.Contains(t, out, "| cargo | cargo 1.80.0 |")
}
