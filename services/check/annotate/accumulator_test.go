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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/clippycheck/services/check/diagnostic"
)

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator(NewMapper(t.TempDir()))

	require.NoError(t, acc.Add(record(diagnostic.SeverityWarning, primary("src/a.rs", 1, 1, 1, 2))))
	require.NoError(t, acc.Add(record(diagnostic.SeverityError, primary("src/b.rs", 2, 2, 1, 2))))
	assert.ErrorIs(t, acc.Add(record(diagnostic.SeverityError)), ErrNoSpan)
	require.NoError(t, acc.Add(record(diagnostic.SeverityHelp, primary("src/c.rs", 3, 3, 1, 2))))
	require.NoError(t, acc.Add(record(diagnostic.SeverityInternal, primary("src/d.rs", 4, 4, 1, 2))))

	assert.Equal(t, Tally{Errors: 3, Warnings: 1, Notes: 1, Internal: 1}, acc.Tally())
	assert.Equal(t, 5, acc.Tally().Total())
	assert.True(t, acc.Tally().HasBlocking())
	assert.Equal(t, 1, acc.Unanchored())
	assert.Equal(t, 0, acc.Filtered())

	anns := acc.Annotations()
	require.Len(t, anns, 4)
	assert.Equal(t, 4, acc.Len())
	assert.Equal(t, []string{"src/a.rs", "src/b.rs", "src/c.rs", "src/d.rs"},
		[]string{anns[0].Path, anns[1].Path, anns[2].Path, anns[3].Path})
	assert.Equal(t, LevelFailure, anns[3].AnnotationLevel)

	// Returned slice is a copy.
	anns[0].Path = "changed"
	assert.Equal(t, "src/a.rs", acc.Annotations()[0].Path)
}

func TestAccumulator_CountsFiltered(t *testing.T) {
	acc := NewAccumulator(NewMapper(t.TempDir(), WithLineFilter(onlyFile("src/a.rs"))))

	require.NoError(t, acc.Add(record(diagnostic.SeverityWarning, primary("src/a.rs", 1, 1, 1, 2))))
	assert.ErrorIs(t, acc.Add(record(diagnostic.SeverityWarning, primary("src/b.rs", 1, 1, 1, 2))), ErrNotChanged)

	assert.Equal(t, 2, acc.Tally().Warnings)
	assert.Equal(t, 1, acc.Filtered())
	assert.Equal(t, 0, acc.Unanchored())
	assert.Equal(t, 1, acc.Len())
}

func TestTally(t *testing.T) {
	var tally Tally
	assert.False(t, tally.HasBlocking())
	assert.Zero(t, tally.Total())

	tally.Add(diagnostic.SeverityNote)
	tally.Add(diagnostic.SeverityHelp)
	tally.Add(diagnostic.SeverityWarning)
	assert.Equal(t, Tally{Warnings: 1, Notes: 2}, tally)
	assert.False(t, tally.HasBlocking())

	tally.Add(diagnostic.SeverityInternal)
	assert.Equal(t, 1, tally.Errors)
	assert.Equal(t, 1, tally.Internal)
	assert.True(t, tally.HasBlocking())
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelFailure, LevelFor(diagnostic.SeverityError))
	assert.Equal(t, LevelFailure, LevelFor(diagnostic.SeverityInternal))
	assert.Equal(t, LevelWarning, LevelFor(diagnostic.SeverityWarning))
	assert.Equal(t, LevelNotice, LevelFor(diagnostic.SeverityNote))
	assert.Equal(t, LevelNotice, LevelFor(diagnostic.SeverityHelp))
}
