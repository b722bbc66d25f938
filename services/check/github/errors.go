// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for the github package.
var (
	// ErrNoToken indicates an empty API token.
	ErrNoToken = errors.New("github token is required")

	// ErrInvalidRepository indicates a repository not in owner/name form.
	ErrInvalidRepository = errors.New("repository must be owner/name")
)

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	Method           string
	Path             string
	StatusCode       int
	Message          string
	DocumentationURL string
	RequestID        string

	retryAfter  time.Duration
	rateLimited bool
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("github: %s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Retryable reports whether the request may succeed if repeated:
// server errors, 429, and 403 responses caused by rate limiting.
func (e *APIError) Retryable() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusForbidden:
		return e.rateLimited
	default:
		return false
	}
}

// RetryAfter returns the delay GitHub asked for, or 0.
func (e *APIError) RetryAfter() time.Duration {
	return e.retryAfter
}

// errorBody is GitHub's JSON error document.
type errorBody struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// newAPIError builds an APIError from a response and its decoded body.
func newAPIError(resp *http.Response, body errorBody, now time.Time) *APIError {
	e := &APIError{
		Method:           resp.Request.Method,
		Path:             resp.Request.URL.Path,
		StatusCode:       resp.StatusCode,
		Message:          body.Message,
		DocumentationURL: body.DocumentationURL,
		RequestID:        resp.Header.Get("X-GitHub-Request-Id"),
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(ra)); err == nil && secs > 0 {
			e.retryAfter = time.Duration(secs) * time.Second
			e.rateLimited = true
		}
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		e.rateLimited = true
		if e.retryAfter == 0 {
			if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
				if d := time.Unix(reset, 0).Sub(now); d > 0 {
					e.retryAfter = d
				}
			}
		}
	}
	if strings.Contains(strings.ToLower(body.Message), "rate limit") {
		e.rateLimited = true
	}
	return e
}
