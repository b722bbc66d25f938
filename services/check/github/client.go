// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package github is a minimal client for the GitHub check runs REST API.
//
// # Description
//
// Only the two calls a check run needs are implemented: create and update.
// Requests are rate limited client-side, carry W3C trace context, and
// authenticate with a Token kept in locked memory. Non-2xx responses are
// returned as *APIError, which classifies itself as retryable or not.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/clippycheck/services/check/checkrun"
)

const (
	// DefaultBaseURL is the public GitHub API.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	// APIVersion is sent as X-GitHub-Api-Version.
	APIVersion = "2022-11-28"

	// DefaultRateLimit is the client-side request rate, per second.
	DefaultRateLimit = 10

	// DefaultBurst is the limiter's burst size.
	DefaultBurst = 5

	defaultUserAgent = "clippycheck"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 1 << 20
)

var tracer = otel.Tracer("clippycheck.github")

// Client talks to the check runs endpoints of one repository.
type Client struct {
	baseURL    string
	owner      string
	repo       string
	token      *Token
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit sets the client-side request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for repository ("owner/name").
//
// # Inputs
//
//   - baseURL: API root, e.g. "https://api.github.com". Empty means DefaultBaseURL.
//   - repository: The repository in owner/name form.
//   - token: The API token.
//
// # Outputs
//
//   - *Client: The client.
//   - error: ErrInvalidRepository, ErrNoToken, or an invalid base URL.
func NewClient(baseURL, repository string, token *Token, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	}
	if token == nil {
		return nil, ErrNoToken
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		owner:      owner,
		repo:       repo,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		userAgent:  defaultUserAgent,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateCheckRun implements checkrun.ChecksAPI.
func (c *Client) CreateCheckRun(ctx context.Context, req checkrun.CreateRequest) (checkrun.CheckRun, error) {
	var run checkrun.CheckRun
	err := c.do(ctx, "CreateCheckRun", http.MethodPost, c.checkRunsPath(), req, &run)
	return run, err
}

// UpdateCheckRun implements checkrun.ChecksAPI.
func (c *Client) UpdateCheckRun(ctx context.Context, id int64, req checkrun.UpdateRequest) (checkrun.CheckRun, error) {
	var run checkrun.CheckRun
	err := c.do(ctx, "UpdateCheckRun", http.MethodPatch, fmt.Sprintf("%s/%d", c.checkRunsPath(), id), req, &run)
	return run, err
}

func (c *Client) checkRunsPath() string {
	return fmt.Sprintf("/repos/%s/%s/check-runs", url.PathEscape(c.owner), url.PathEscape(c.repo))
}

// do sends one JSON request and decodes a 2xx response into out.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	ctx, span := tracer.Start(ctx, "github.Client."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if err := c.token.authorize(req.Header); err != nil {
		return fmt.Errorf("open token: %w", err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("github request",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", resp.Header.Get("X-GitHub-Request-Id")),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if jerr := json.Unmarshal(raw, &eb); jerr != nil {
			eb.Message = strings.TrimSpace(string(raw))
		}
		return newAPIError(resp, eb, c.now())
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ checkrun.ChecksAPI = (*Client)(nil)
