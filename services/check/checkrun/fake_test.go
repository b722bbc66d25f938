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
)

// fakeAPI records every checks API call.
type fakeAPI struct {
	mu sync.Mutex

	nextID  int64
	creates []CreateRequest
	updates []UpdateRequest

	// createErr fails every create.
	createErr error

	// updateErrs is consumed one entry per update call; a nil entry
	// succeeds.
	updateErrs []error
}

func (f *fakeAPI) CreateCheckRun(_ context.Context, req CreateRequest) (CheckRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates = append(f.creates, req)
	if f.createErr != nil {
		return CheckRun{}, f.createErr
	}
	f.nextID++
	started := req.StartedAt
	return CheckRun{
		ID:        f.nextID,
		Name:      req.Name,
		HeadSHA:   req.HeadSHA,
		Status:    req.Status,
		HTMLURL:   "https://github.test/runs/1",
		StartedAt: &started,
	}, nil
}

func (f *fakeAPI) UpdateCheckRun(_ context.Context, id int64, req UpdateRequest) (CheckRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, req)
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return CheckRun{}, err
		}
	}
	return CheckRun{ID: id, Status: req.Status, Conclusion: req.Conclusion, CompletedAt: req.CompletedAt}, nil
}

// chunkCalls returns the updates that carried annotations.
func (f *fakeAPI) chunkCalls() []UpdateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []UpdateRequest
	for _, u := range f.updates {
		if u.Status == "" && u.Output != nil {
			out = append(out, u)
		}
	}
	return out
}

// completions returns the updates that completed the run.
func (f *fakeAPI) completions() []UpdateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []UpdateRequest
	for _, u := range f.updates {
		if u.Status == StatusCompleted {
			out = append(out, u)
		}
	}
	return out
}

// apiErr mimics the github client's error classification.
type apiErr struct {
	status     int
	retryAfter time.Duration
}

func (e *apiErr) Error() string             { return "api error" }
func (e *apiErr) Retryable() bool           { return e.status >= 500 || e.status == 429 }
func (e *apiErr) RetryAfter() time.Duration { return e.retryAfter }

// fastRetry keeps tests quick.
func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsed:      5 * time.Second,
	}
}
