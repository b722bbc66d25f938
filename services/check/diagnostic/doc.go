// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagnostic decodes the JSON message stream that cargo emits with
// --message-format=json.
//
// Cargo interleaves one JSON object per line with free-form progress text.
// Every object carries a "reason" tag naming the record kind. This package
// decodes that tag exactly once, at the classifier boundary, into RecordKind
// and rejects unknown tags instead of letting them leak downstream.
//
// # Pipeline
//
//	raw line ──Classify──▶ Message ──Extract──▶ Record
//
// Classify never returns an error: malformed JSON, plain text and unknown
// tags are all dropped, because cargo's stdout is expected to contain them.
// Extract only yields a Record for compiler-message records.
//
// # Severity Mapping
//
//	| rustc level                       | Severity         |
//	|-----------------------------------|------------------|
//	| error                             | SeverityError    |
//	| error: internal compiler error    | SeverityInternal |
//	| warning                           | SeverityWarning  |
//	| help                              | SeverityHelp     |
//	| note, failure-note, anything else | SeverityNote     |
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package diagnostic
