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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/clippycheck/services/check/annotate"
)

// MaxChunkSize is the most annotations the checks API accepts per request.
const MaxChunkSize = 50

// Uploader sends annotations to an existing check run in ordered chunks.
//
// Thread Safety: Safe for concurrent use across different runs.
type Uploader struct {
	api       ChecksAPI
	chunkSize int
	retry     RetryPolicy
	logger    *slog.Logger
}

// NewUploader creates an uploader.
//
// chunkSize outside 1..MaxChunkSize falls back to MaxChunkSize.
func NewUploader(api ChecksAPI, chunkSize int, retry RetryPolicy, logger *slog.Logger) *Uploader {
	if chunkSize < 1 || chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		api:       api,
		chunkSize: chunkSize,
		retry:     retry.normalised(),
		logger:    logger,
	}
}

// ChunkSize returns the effective chunk size.
func (u *Uploader) ChunkSize() int {
	return u.chunkSize
}

// Upload patches the run once per chunk, in order.
//
// Description:
//
//	Each request carries out's title and summary plus one chunk of
//	annotations. Chunks are sent sequentially; a chunk is only sent after
//	the previous one succeeded. A failing chunk is retried per the
//	uploader's policy and no earlier chunk is ever resent. An empty
//	annotation list makes no calls.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing
//	runID - The check run to patch
//	out - Title and summary sent with each chunk
//	anns - Annotations in the order they should appear
//
// Outputs:
//
//	int - Number of chunks delivered
//	error - *UploadError if a chunk could not be delivered
func (u *Uploader) Upload(ctx context.Context, runID int64, out Output, anns []annotate.Annotation) (int, error) {
	chunks := Chunk(anns, u.chunkSize)
	if len(chunks) == 0 {
		return 0, nil
	}

	ctx, span := startUploadSpan(ctx, runID, len(anns), len(chunks))
	defer span.End()
	start := time.Now()

	for i, chunk := range chunks {
		req := UpdateRequest{
			Output: &Output{
				Title:       out.Title,
				Summary:     out.Summary,
				Annotations: chunk,
			},
		}

		attempts, err := u.retry.Do(ctx, func(ctx context.Context) error {
			_, err := u.api.UpdateCheckRun(ctx, runID, req)
			return err
		}, func(attempt int, err error, wait time.Duration) {
			u.logger.Warn("annotation chunk upload failed, retrying",
				slog.Int64("run_id", runID),
				slog.Int("chunk", i+1),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		})
		recordChunk(ctx, err == nil, attempts)

		if err != nil {
			uerr := &UploadError{
				Chunk:       i + 1,
				Chunks:      len(chunks),
				Annotations: len(chunk),
				Attempts:    attempts,
				Err:         err,
			}
			span.RecordError(uerr)
			span.SetStatus(codes.Error, "chunk upload failed")
			span.SetAttributes(attribute.Int("checkrun.chunks_delivered", i))
			recordUpload(ctx, time.Since(start), false)
			return i, uerr
		}

		u.logger.Debug("annotation chunk uploaded",
			slog.Int64("run_id", runID),
			slog.Int("chunk", i+1),
			slog.Int("chunks", len(chunks)),
			slog.Int("annotations", len(chunk)),
		)
	}

	span.SetAttributes(attribute.Int("checkrun.chunks_delivered", len(chunks)))
	recordUpload(ctx, time.Since(start), true)
	return len(chunks), nil
}

// Chunk splits anns into consecutive slices of at most size elements.
//
// The chunks share anns' backing array but are capped, so appending to one
// cannot overwrite the next.
func Chunk(anns []annotate.Annotation, size int) [][]annotate.Annotation {
	if size < 1 {
		size = MaxChunkSize
	}
	if len(anns) == 0 {
		return nil
	}
	chunks := make([][]annotate.Annotation, 0, (len(anns)+size-1)/size)
	for start := 0; start < len(anns); start += size {
		end := min(start+size, len(anns))
		chunks = append(chunks, anns[start:end:end])
	}
	return chunks
}
