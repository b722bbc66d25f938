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
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often an idempotent checks API call is repeated.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first one included.
	MaxAttempts int

	// InitialInterval is the delay before the second attempt.
	InitialInterval time.Duration

	// MaxInterval caps the exponential delay.
	MaxInterval time.Duration

	// MaxElapsed caps the total time spent on one call.
	MaxElapsed time.Duration
}

// DefaultRetryPolicy returns the policy used for chunk uploads.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsed:      2 * time.Minute,
	}
}

func (p RetryPolicy) normalised() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = d.MaxElapsed
	}
	return p
}

// retryNotify is told about each failed attempt that will be retried.
type retryNotify func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy is exhausted.
//
// Description:
//
//	Delays grow exponentially with jitter. A server-requested delay
//	(Retry-After) replaces the computed one for that attempt. On failure
//	the last error returned by op is returned, not a backoff wrapper.
//
// Inputs:
//
//	ctx - Cancels waiting between attempts
//	op - The call to repeat
//	notify - Optional; called before each wait
//
// Outputs:
//
//	int - Number of attempts made
//	error - nil on success, otherwise the last error from op or ctx's error
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, notify retryNotify) (int, error) {
	p = p.normalised()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	attempts := 0
	var lastErr error

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if d, ok := retryDelay(err); ok {
			return struct{}{}, backoff.RetryAfter(int(math.Ceil(d.Seconds())))
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if notify != nil {
				notify(attempts, lastErr, wait)
			}
		}),
	)
	if err == nil {
		return attempts, nil
	}
	if ctx.Err() != nil || lastErr == nil {
		return attempts, err
	}
	return attempts, lastErr
}
