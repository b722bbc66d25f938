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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for check run operations.
var (
	tracer = otel.Tracer("clippycheck.checkrun")
	meter  = otel.Meter("clippycheck.checkrun")
)

// Metrics for check run operations.
var (
	linesTotal       metric.Int64Counter
	recordsTotal     metric.Int64Counter
	diagnosticsTotal metric.Int64Counter
	spansRejected    metric.Int64Counter
	chunkUploads     metric.Int64Counter
	chunkRetries     metric.Int64Counter
	uploadLatency    metric.Float64Histogram
	runsCompleted    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		linesTotal, err = meter.Int64Counter(
			"clippycheck_lines_total",
			metric.WithDescription("Lines read from the lint tool, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		recordsTotal, err = meter.Int64Counter(
			"clippycheck_records_total",
			metric.WithDescription("Cargo messages classified, by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		diagnosticsTotal, err = meter.Int64Counter(
			"clippycheck_diagnostics_total",
			metric.WithDescription("Diagnostics extracted, by severity"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		spansRejected, err = meter.Int64Counter(
			"clippycheck_spans_rejected_total",
			metric.WithDescription("Diagnostics that did not become annotations, by reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		chunkUploads, err = meter.Int64Counter(
			"clippycheck_chunk_uploads_total",
			metric.WithDescription("Annotation chunk uploads, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		chunkRetries, err = meter.Int64Counter(
			"clippycheck_chunk_retries_total",
			metric.WithDescription("Retried checks API calls"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		uploadLatency, err = meter.Float64Histogram(
			"clippycheck_upload_duration_seconds",
			metric.WithDescription("Duration of annotation uploads per run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runsCompleted, err = meter.Int64Counter(
			"clippycheck_runs_total",
			metric.WithDescription("Check runs completed, by conclusion"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startEngineSpan creates a span for a lifecycle stage.
func startEngineSpan(ctx context.Context, stage, name string, runID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine."+stage,
		trace.WithAttributes(
			attribute.String("checkrun.name", name),
			attribute.Int64("checkrun.id", runID),
		),
	)
}

// startUploadSpan creates a span covering all chunk uploads of a run.
func startUploadSpan(ctx context.Context, runID int64, annotations, chunks int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Uploader.Upload",
		trace.WithAttributes(
			attribute.Int64("checkrun.id", runID),
			attribute.Int("checkrun.annotations", annotations),
			attribute.Int("checkrun.chunks", chunks),
		),
	)
}

func recordLine(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	linesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordRecord(ctx context.Context, kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	recordsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordDiagnostic(ctx context.Context, severity string) {
	if err := initMetrics(); err != nil {
		return
	}
	diagnosticsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", severity)))
}

func recordRejected(ctx context.Context, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	spansRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func recordChunk(ctx context.Context, success bool, attempts int) {
	if err := initMetrics(); err != nil {
		return
	}
	chunkUploads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	if attempts > 1 {
		chunkRetries.Add(ctx, int64(attempts-1))
	}
}

func recordUpload(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	uploadLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

func recordRun(ctx context.Context, conclusion Conclusion) {
	if err := initMetrics(); err != nil {
		return
	}
	runsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("conclusion", string(conclusion))))
}
