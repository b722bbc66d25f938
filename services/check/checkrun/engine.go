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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/clippycheck/services/check/annotate"
	"github.com/AleutianAI/clippycheck/services/check/diagnostic"
)

type state int

const (
	stateNew state = iota
	stateRunning
	stateCompleted
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateRunning:
		return "in_progress"
	case stateCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// Config describes the check run an Engine manages.
type Config struct {
	// Name is the check run name shown in the UI.
	Name string

	// HeadSHA is the commit the run is attached to.
	HeadSHA string

	// ChunkSize is the number of annotations per upload, 1..MaxChunkSize.
	ChunkSize int

	// Retry applies to chunk uploads and the completion call.
	Retry RetryPolicy

	// Versions is reported in the summaries.
	Versions ToolVersions
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStartedAt sets the run's started_at. It defaults to the time the
// engine was created.
func WithStartedAt(t time.Time) Option {
	return func(e *Engine) {
		e.startedAt = t
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives one check run through create, ingest and complete.
//
// Thread Safety: Not safe for concurrent use.
type Engine struct {
	api       ChecksAPI
	acc       *annotate.Accumulator
	uploader  *Uploader
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	startedAt time.Time

	state state
	run   CheckRun
	stats IngestStats
}

// NewEngine creates an engine that reports through api and collects
// annotations into acc.
func NewEngine(api ChecksAPI, acc *annotate.Accumulator, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		api:    api,
		acc:    acc,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.startedAt.IsZero() {
		e.startedAt = e.now()
	}
	e.cfg.Retry = e.cfg.Retry.normalised()
	e.uploader = NewUploader(api, cfg.ChunkSize, e.cfg.Retry, e.logger)
	return e
}

// RunID returns the created run's ID, or 0 before Start.
func (e *Engine) RunID() int64 {
	return e.run.ID
}

// Stats returns what Ingest has seen so far.
func (e *Engine) Stats() IngestStats {
	return e.stats
}

// Tally returns the severity counts so far.
func (e *Engine) Tally() annotate.Tally {
	return e.acc.Tally()
}

// Start creates the check run in_progress.
//
// Description:
//
//	The creation call is made once and never retried, so a transient
//	failure cannot leave a duplicate run behind. Nothing else may touch
//	the network until Start has succeeded.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//
// Outputs:
//
//	CheckRun - The created run
//	error - ErrInvalidTransition if already started, *LifecycleError
//	        (stage "create") if the API call failed
func (e *Engine) Start(ctx context.Context) (CheckRun, error) {
	if e.state != stateNew {
		return CheckRun{}, fmt.Errorf("%w: start from %s", ErrInvalidTransition, e.state)
	}

	ctx, span := startEngineSpan(ctx, "Start", e.cfg.Name, 0)
	defer span.End()

	req := CreateRequest{
		Name:       e.cfg.Name,
		HeadSHA:    e.cfg.HeadSHA,
		Status:     StatusInProgress,
		StartedAt:  e.startedAt.UTC(),
		ExternalID: uuid.NewString(),
		Output: Output{
			Title:   e.cfg.Name,
			Summary: pendingSummary(e.cfg.Versions),
		},
	}

	run, err := e.api.CreateCheckRun(ctx, req)
	if err != nil {
		e.state = stateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return CheckRun{}, &LifecycleError{Stage: "create", Err: err}
	}

	e.run = run
	e.state = stateRunning
	span.SetAttributes(attribute.Int64("checkrun.id", run.ID))
	e.logger.Info("check run created",
		slog.Int64("run_id", run.ID),
		slog.String("name", e.cfg.Name),
		slog.String("head_sha", e.cfg.HeadSHA),
		slog.String("external_id", req.ExternalID),
	)
	return run, nil
}

// IngestLine processes one line of lint output.
//
// It reports whether the line produced a diagnostic. Lines that are not
// cargo messages are dropped. Safe to call before Start.
func (e *Engine) IngestLine(ctx context.Context, line []byte) bool {
	e.stats.Lines++

	msg, ok := diagnostic.Classify(line)
	if !ok {
		recordLine(ctx, "skipped")
		return false
	}
	e.stats.Records++
	recordLine(ctx, "record")
	recordRecord(ctx, msg.Kind.String())

	rec, ok := diagnostic.Extract(msg)
	if !ok {
		return false
	}
	e.stats.Diagnostics++
	recordDiagnostic(ctx, rec.Severity.String())

	if err := e.acc.Add(rec); err != nil {
		reason := "invalid_span"
		switch {
		case errors.Is(err, annotate.ErrNoSpan):
			reason = "no_span"
		case errors.Is(err, annotate.ErrPathOutsideRepo):
			reason = "outside_repo"
		case errors.Is(err, annotate.ErrNotChanged):
			reason = "not_changed"
		}
		recordRejected(ctx, reason)
		e.logger.Debug("diagnostic not annotated",
			slog.String("severity", rec.Severity.String()),
			slog.String("code", rec.Code),
			slog.String("reason", err.Error()),
		)
	}
	return true
}

// Ingest drains src, feeding every line to IngestLine.
//
// Ingest makes no network calls. It stops early when ctx is cancelled and
// returns src's read error, if any.
func (e *Engine) Ingest(ctx context.Context, src LineSource) error {
	if e.state == stateCompleted || e.state == stateFailed {
		return fmt.Errorf("%w: ingest after %s", ErrInvalidTransition, e.state)
	}

	for src.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.IngestLine(ctx, []byte(src.Text()))
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("reading lint output: %w", err)
	}
	return nil
}

// Finish uploads the annotations and completes the run with its verdict.
//
// Description:
//
//	Annotations are uploaded in chunks first. Only if every chunk was
//	delivered is the run patched to completed, with conclusion failure
//	when any error was counted and success otherwise. If an upload fails
//	the run is left in_progress.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//
// Outputs:
//
//	Result - The run's final state; partially filled on error
//	error - ErrInvalidTransition, or a *LifecycleError wrapping
//	        *UploadError (stage "upload") or the API error (stage "complete")
func (e *Engine) Finish(ctx context.Context) (Result, error) {
	if e.state != stateRunning {
		return Result{}, fmt.Errorf("%w: finish from %s", ErrInvalidTransition, e.state)
	}

	ctx, span := startEngineSpan(ctx, "Finish", e.cfg.Name, e.run.ID)
	defer span.End()

	tally := e.acc.Tally()
	anns := e.acc.Annotations()
	res := Result{
		RunID:       e.run.ID,
		HTMLURL:     e.run.HTMLURL,
		Tally:       tally,
		Annotations: len(anns),
		Unanchored:  e.acc.Unanchored(),
		Filtered:    e.acc.Filtered(),
		Ingest:      e.stats,
	}

	out := Output{
		Title: Title(tally),
		Summary: renderSummary(summaryInput{
			Tally:      tally,
			Unanchored: res.Unanchored,
			Filtered:   res.Filtered,
			Versions:   e.cfg.Versions,
		}),
	}

	res.Summary = out.Summary

	chunks, err := e.uploader.Upload(ctx, e.run.ID, out, anns)
	res.Chunks = chunks
	if err != nil {
		e.state = stateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return res, &LifecycleError{Stage: "upload", RunID: e.run.ID, Err: err}
	}

	conclusion := ConclusionSuccess
	if tally.HasBlocking() {
		conclusion = ConclusionFailure
	}

	run, err := e.complete(ctx, conclusion, out)
	if err != nil {
		e.state = stateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete failed")
		return res, &LifecycleError{Stage: "complete", RunID: e.run.ID, Err: err}
	}

	e.state = stateCompleted
	res.Conclusion = conclusion
	if run.HTMLURL != "" {
		res.HTMLURL = run.HTMLURL
	}
	recordRun(ctx, conclusion)
	span.SetAttributes(
		attribute.String("checkrun.conclusion", string(conclusion)),
		attribute.Int("checkrun.errors", tally.Errors),
		attribute.Int("checkrun.warnings", tally.Warnings),
		attribute.Int("checkrun.annotations", len(anns)),
	)

	e.logger.Info("check run completed",
		slog.Int64("run_id", e.run.ID),
		slog.String("conclusion", string(conclusion)),
		slog.Int("errors", tally.Errors),
		slog.Int("warnings", tally.Warnings),
		slog.Int("notes", tally.Notes),
		slog.Int("annotations", len(anns)),
		slog.Int("chunks", chunks),
	)
	return res, nil
}

// Abort completes a started run with conclusion failure and cause in its
// summary. Use it when the lint tool could not be run to the end, so the
// run does not stay in_progress.
func (e *Engine) Abort(ctx context.Context, cause error) error {
	if e.state != stateRunning {
		return fmt.Errorf("%w: abort from %s", ErrInvalidTransition, e.state)
	}

	ctx, span := startEngineSpan(ctx, "Abort", e.cfg.Name, e.run.ID)
	defer span.End()

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Clippy did not run to completion:\n\n```\n%s\n```\n\n", msg)
	writeVersions(&b, e.cfg.Versions)
	out := Output{
		Title:   "Clippy did not complete",
		Summary: annotate.Truncate(b.String(), annotate.MaxMessageBytes),
	}

	if _, err := e.complete(ctx, ConclusionFailure, out); err != nil {
		e.state = stateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "abort failed")
		return &LifecycleError{Stage: "abort", RunID: e.run.ID, Err: err}
	}
	e.state = stateCompleted
	recordRun(ctx, ConclusionFailure)
	e.logger.Warn("check run aborted",
		slog.Int64("run_id", e.run.ID),
		slog.String("cause", msg),
	)
	return nil
}

// complete patches the run to completed. The call is idempotent, so it is
// retried.
func (e *Engine) complete(ctx context.Context, conclusion Conclusion, out Output) (CheckRun, error) {
	completedAt := e.now().UTC()
	req := UpdateRequest{
		Status:      StatusCompleted,
		Conclusion:  conclusion,
		CompletedAt: &completedAt,
		Output:      &out,
	}

	var run CheckRun
	_, err := e.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		run, err = e.api.UpdateCheckRun(ctx, e.run.ID, req)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		e.logger.Warn("completing check run failed, retrying",
			slog.Int64("run_id", e.run.ID),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	})
	return run, err
}
