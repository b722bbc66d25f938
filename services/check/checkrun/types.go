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
	"context"
	"time"

	"github.com/AleutianAI/clippycheck/services/check/annotate"
)

// Status is the lifecycle state of a check run.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conclusion is the final verdict of a completed check run.
type Conclusion string

const (
	ConclusionSuccess Conclusion = "success"
	ConclusionFailure Conclusion = "failure"
	ConclusionNeutral Conclusion = "neutral"
)

// Output is the rendered report attached to a check run.
type Output struct {
	Title       string                `json:"title"`
	Summary     string                `json:"summary"`
	Text        string                `json:"text,omitempty"`
	Annotations []annotate.Annotation `json:"annotations,omitempty"`
}

// CreateRequest is the body of POST /repos/{owner}/{repo}/check-runs.
type CreateRequest struct {
	Name       string    `json:"name"`
	HeadSHA    string    `json:"head_sha"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	ExternalID string    `json:"external_id,omitempty"`
	Output     Output    `json:"output"`
}

// UpdateRequest is the body of PATCH /repos/{owner}/{repo}/check-runs/{id}.
//
// Zero fields are omitted so the same type serves both the per-chunk
// annotation uploads and the completion call.
type UpdateRequest struct {
	Status      Status     `json:"status,omitempty"`
	Conclusion  Conclusion `json:"conclusion,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Output      *Output    `json:"output,omitempty"`
}

// CheckRun is the subset of the checks API response the engine uses.
type CheckRun struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	HeadSHA     string     `json:"head_sha"`
	Status      Status     `json:"status"`
	Conclusion  Conclusion `json:"conclusion,omitempty"`
	HTMLURL     string     `json:"html_url,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ChecksAPI is the hosting-side check runs endpoint.
//
// Implementations: github.Client talks to the REST API; console.Checks
// prints the lifecycle for dry runs.
type ChecksAPI interface {
	// CreateCheckRun creates a new check run and returns it with its ID.
	CreateCheckRun(ctx context.Context, req CreateRequest) (CheckRun, error)

	// UpdateCheckRun patches an existing check run.
	UpdateCheckRun(ctx context.Context, id int64, req UpdateRequest) (CheckRun, error)
}

// LineSource is a pull iterator over the lint tool's output lines.
//
// *bufio.Scanner satisfies it.
type LineSource interface {
	Scan() bool
	Text() string
	Err() error
}

// ToolVersions is the toolchain context reported in the summary.
type ToolVersions struct {
	Rustc  string `json:"rustc"`
	Cargo  string `json:"cargo"`
	Clippy string `json:"clippy"`
}

// IngestStats counts what the engine saw on the line stream.
type IngestStats struct {
	// Lines is every line read, structured or not.
	Lines int

	// Records is the number of lines classified as cargo messages.
	Records int

	// Diagnostics is the number of compiler messages extracted.
	Diagnostics int
}

// Skipped returns the number of lines that were not cargo messages.
func (s IngestStats) Skipped() int {
	return s.Lines - s.Records
}

// Result describes a completed check run.
type Result struct {
	RunID       int64
	HTMLURL     string
	Conclusion  Conclusion
	Tally       annotate.Tally
	Annotations int
	Unanchored  int
	Filtered    int
	Chunks      int
	Ingest      IngestStats

	// Summary is the markdown sent as the check run's output.summary.
	Summary string
}
