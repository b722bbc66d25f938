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
	"errors"

	"github.com/AleutianAI/clippycheck/services/check/diagnostic"
)

// Accumulator collects annotations and tallies for one check run.
//
// Every record added is tallied, whether or not it can be anchored to a
// file. Annotations keep the order records arrived in.
//
// Thread Safety: Not safe for concurrent use. The engine owns it.
type Accumulator struct {
	mapper      *Mapper
	tally       Tally
	annotations []Annotation
	unanchored  int
	filtered    int
}

// NewAccumulator creates an empty accumulator that maps records with m.
func NewAccumulator(m *Mapper) *Accumulator {
	return &Accumulator{mapper: m}
}

// Add tallies rec and, when it has a usable span, appends its annotation.
//
// The returned error explains why no annotation was produced. It is never
// fatal; callers log it and continue.
func (a *Accumulator) Add(rec diagnostic.Record) error {
	a.tally.Add(rec.Severity)

	ann, err := a.mapper.Map(rec)
	if err != nil {
		if errors.Is(err, ErrNotChanged) {
			a.filtered++
		} else {
			a.unanchored++
		}
		return err
	}

	a.annotations = append(a.annotations, ann)
	return nil
}

// Tally returns the counts so far.
func (a *Accumulator) Tally() Tally {
	return a.tally
}

// Annotations returns a copy of the collected annotations in arrival order.
func (a *Accumulator) Annotations() []Annotation {
	out := make([]Annotation, len(a.annotations))
	copy(out, a.annotations)
	return out
}

// Len returns the number of collected annotations.
func (a *Accumulator) Len() int {
	return len(a.annotations)
}

// Unanchored returns how many records had no usable location.
func (a *Accumulator) Unanchored() int {
	return a.unanchored
}

// Filtered returns how many records fell outside the changed lines.
func (a *Accumulator) Filtered() int {
	return a.filtered
}
