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

import "errors"

// Sentinel errors for the annotate package.
//
// None of them is fatal to a check run: the diagnostic is still tallied,
// it just does not become an annotation.
var (
	// ErrNoSpan indicates the diagnostic has no source location.
	ErrNoSpan = errors.New("diagnostic has no primary span")

	// ErrPathOutsideRepo indicates the span points outside the repository root.
	ErrPathOutsideRepo = errors.New("path outside repository root")

	// ErrInvalidSpan indicates the span cannot be represented as an annotation.
	ErrInvalidSpan = errors.New("invalid span")

	// ErrNotChanged indicates the span does not touch a changed line.
	ErrNotChanged = errors.New("span outside changed lines")

	// ErrInvalidDiff indicates a unified diff could not be parsed.
	ErrInvalidDiff = errors.New("invalid unified diff")
)
