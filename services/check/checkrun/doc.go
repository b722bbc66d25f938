// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkrun drives a check run from creation to its verdict.
//
// The Engine owns the run's lifecycle:
//
//	Start ──▶ Ingest (pure, per line) ──▶ Finish
//	  │                                    │
//	  POST in_progress                     PATCH annotations (chunks of 50)
//	                                       PATCH completed + conclusion
//
// Network calls are sequential and happen only in Start, Finish and Abort.
// Ingest classifies each line and feeds diagnostics into an
// annotate.Accumulator without touching the network.
//
// # Failure Modes
//
// Errors that stop the run from reaching a verdict (creation, upload or
// completion failures) wrap ErrCheckRunFailed. A run that completes with
// conclusion failure is not an error of this package; Result.Err reports it
// as ErrLintFailed.
//
// # Thread Safety
//
// An Engine is owned by one goroutine. Uploader is stateless apart from
// its configuration and may be shared.
package checkrun
