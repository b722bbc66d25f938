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
	"net"
	"time"
)

// Sentinel errors for check run operations.
var (
	// ErrCheckRunFailed is wrapped by every error that prevents the run
	// from being completed.
	ErrCheckRunFailed = errors.New("check run failed")

	// ErrInvalidTransition indicates a lifecycle call out of order.
	ErrInvalidTransition = errors.New("invalid check run state transition")

	// ErrLintFailed indicates a completed run whose conclusion is failure.
	ErrLintFailed = errors.New("lint reported errors")
)

// LifecycleError is a fatal failure at one lifecycle stage.
//
// Stage is "create", "upload", "complete" or "abort".
type LifecycleError struct {
	Stage string
	RunID int64
	Err   error
}

func (e *LifecycleError) Error() string {
	if e.RunID != 0 {
		return fmt.Sprintf("check run %d: %s failed: %v", e.RunID, e.Stage, e.Err)
	}
	return fmt.Sprintf("check run %s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes both ErrCheckRunFailed and the cause.
func (e *LifecycleError) Unwrap() []error {
	return []error{ErrCheckRunFailed, e.Err}
}

// UploadError reports an annotation chunk that could not be delivered.
//
// Chunk is 1-based. Earlier chunks were delivered; later ones were not sent.
type UploadError struct {
	Chunk       int
	Chunks      int
	Annotations int
	Attempts    int
	Err         error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading annotation chunk %d/%d (%d annotations) failed after %d attempt(s): %v",
		e.Chunk, e.Chunks, e.Annotations, e.Attempts, e.Err)
}

// Unwrap exposes both ErrCheckRunFailed and the cause.
func (e *UploadError) Unwrap() []error {
	return []error{ErrCheckRunFailed, e.Err}
}

// Err returns nil for a passing run and an error wrapping ErrLintFailed
// otherwise.
func (r Result) Err() error {
	if r.Conclusion != ConclusionFailure {
		return nil
	}
	return fmt.Errorf("%w: %d error(s), %d warning(s)", ErrLintFailed, r.Tally.Errors, r.Tally.Warnings)
}

// =============================================================================
// RETRY CLASSIFICATION
// =============================================================================

// retryable is implemented by API errors that know whether a retry may
// succeed.
type retryable interface {
	Retryable() bool
}

// retryAfter is implemented by API errors carrying a server-requested delay.
type retryAfter interface {
	RetryAfter() time.Duration
}

// IsRetryable reports whether err is worth another attempt.
//
// Cancellation is never retryable. Errors implementing Retryable() decide
// for themselves; other network errors, timeouts included, are retryable.
// A per-request timeout wraps context.DeadlineExceeded, so whether the
// caller gave up is decided by RetryPolicy.Do from its own context.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// retryDelay returns the server-requested delay carried by err, if any.
func retryDelay(err error) (time.Duration, bool) {
	var ra retryAfter
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			return d, true
		}
	}
	return 0, false
}
