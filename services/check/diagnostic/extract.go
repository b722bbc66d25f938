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
	"bytes"
	"encoding/json"
)

// Extract builds a Record from a classified message.
//
// Description:
//
//	Only KindCompilerMessage yields a record. The span list keeps the
//	emission order and is normalised so that exactly one span is primary:
//	the first span flagged by rustc, or the first span when none is flagged.
//	A message with no spans yields a record with an empty span list.
//
// Inputs:
//
//	msg - A message returned by Classify
//
// Outputs:
//
//	Record - The diagnostic
//	bool - False if msg is not a diagnostic or its payload is unreadable
func Extract(msg Message) (Record, bool) {
	if msg.Kind != KindCompilerMessage {
		return Record{}, false
	}
	payload := bytes.TrimSpace(msg.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return Record{}, false
	}

	var cm compilerMessage
	if err := json.Unmarshal(payload, &cm); err != nil {
		return Record{}, false
	}

	rec := Record{
		Severity: SeverityFromLevel(cm.Level),
		Message:  cm.Message,
		Summary:  cm.Message,
	}
	if cm.Rendered != nil && *cm.Rendered != "" {
		rec.Message = *cm.Rendered
	}
	if cm.Code != nil {
		rec.Code = cm.Code.Code
	}
	rec.Spans = normaliseSpans(cm.Spans)

	return rec, true
}

// normaliseSpans converts wire spans and leaves exactly one primary.
func normaliseSpans(in []wireSpan) []Span {
	if len(in) == 0 {
		return nil
	}

	spans := make([]Span, len(in))
	primary := -1
	for i, ws := range in {
		spans[i] = Span{
			FileName:    ws.FileName,
			LineStart:   ws.LineStart,
			LineEnd:     ws.LineEnd,
			ColumnStart: ws.ColumnStart,
			ColumnEnd:   ws.ColumnEnd,
		}
		if ws.IsPrimary && primary < 0 {
			primary = i
		}
	}
	if primary < 0 {
		primary = 0
	}
	spans[primary].IsPrimary = true

	return spans
}
