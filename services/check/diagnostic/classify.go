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

// Classify decides whether a line of cargo output is a recognised JSON record.
//
// Description:
//
//	Lines that are blank, do not start with '{', fail to decode, or carry
//	an unknown "reason" tag are rejected. Rejection is not an error: cargo
//	mixes progress text into the same stream.
//
//	The returned payload is a private copy, so callers may reuse the line
//	buffer (as bufio.Scanner does).
//
// Inputs:
//
//	line - One line of cargo stdout, without the trailing newline
//
// Outputs:
//
//	Message - The classified record
//	bool - False if the line should be ignored
func Classify(line []byte) (Message, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{}, false
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Message{}, false
	}

	kind := kindFromReason(env.Reason)
	if kind == KindUnknown {
		return Message{}, false
	}

	return Message{Kind: kind, Payload: env.Message}, true
}
