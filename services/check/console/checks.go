// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package console prints check run activity to a terminal instead of
// sending it to the hosting API.
//
// It backs the --dry-run mode: the engine drives it exactly as it drives
// the GitHub client, so the lifecycle and every annotation can be
// inspected locally.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/AleutianAI/clippycheck/pkg/ux"
	"github.com/AleutianAI/clippycheck/services/check/annotate"
	"github.com/AleutianAI/clippycheck/services/check/checkrun"
)

// Checks is a checkrun.ChecksAPI that writes to an io.Writer.
//
// Thread Safety: Safe for concurrent use.
type Checks struct {
	mu     sync.Mutex
	w      io.Writer
	theme  ux.Theme
	nextID int64
	runs   map[int64]checkrun.CheckRun
}

var _ checkrun.ChecksAPI = (*Checks)(nil)

// NewChecks creates a console checks API printing to w.
func NewChecks(w io.Writer) *Checks {
	return &Checks{
		w:      w,
		theme:  ux.NewTheme(w),
		nextID: 1,
		runs:   make(map[int64]checkrun.CheckRun),
	}
}

// CreateCheckRun prints the new run and assigns it a local ID.
func (c *Checks) CreateCheckRun(ctx context.Context, req checkrun.CreateRequest) (checkrun.CheckRun, error) {
	if err := ctx.Err(); err != nil {
		return checkrun.CheckRun{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	started := req.StartedAt
	run := checkrun.CheckRun{
		ID:        c.nextID,
		Name:      req.Name,
		HeadSHA:   req.HeadSHA,
		Status:    req.Status,
		StartedAt: &started,
	}
	c.nextID++
	c.runs[run.ID] = run

	fmt.Fprintf(c.w, "%s %s %s\n",
		c.theme.Icon(ux.IconPending),
		c.theme.Title.Render("check run "+req.Name),
		c.theme.Muted.Render(fmt.Sprintf("(#%d, %s)", run.ID, shortSHA(req.HeadSHA))))
	return run, nil
}

// UpdateCheckRun prints the annotations carried by req and, for the
// completion call, the final verdict and summary.
func (c *Checks) UpdateCheckRun(ctx context.Context, id int64, req checkrun.UpdateRequest) (checkrun.CheckRun, error) {
	if err := ctx.Err(); err != nil {
		return checkrun.CheckRun{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.runs[id]
	if !ok {
		return checkrun.CheckRun{}, fmt.Errorf("check run %d: not found", id)
	}

	if req.Output != nil {
		for _, ann := range req.Output.Annotations {
			c.printAnnotation(ann)
		}
	}

	if req.Status != "" {
		run.Status = req.Status
	}
	if req.Conclusion != "" {
		run.Conclusion = req.Conclusion
		completed := time.Now()
		if req.CompletedAt != nil {
			completed = *req.CompletedAt
		}
		run.CompletedAt = &completed
		c.printConclusion(req)
	}
	c.runs[id] = run
	return run, nil
}

// Run returns the last known state of the run with the given ID.
func (c *Checks) Run(id int64) (checkrun.CheckRun, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.runs[id]
	return run, ok
}

func (c *Checks) printAnnotation(ann annotate.Annotation) {
	style, icon := c.theme.Level(string(ann.AnnotationLevel))
	fmt.Fprintf(c.w, "  %s %s %s\n",
		c.theme.Icon(icon),
		c.theme.Bold.Render(ann.Location()),
		style.Render(ann.Title))
	fmt.Fprintf(c.w, "    %s\n", firstLine(ann.Message))
}

func (c *Checks) printConclusion(req checkrun.UpdateRequest) {
	style, icon := c.theme.Conclusion(string(req.Conclusion))
	title := string(req.Conclusion)
	if req.Output != nil && req.Output.Title != "" {
		title = req.Output.Title
	}
	fmt.Fprintf(c.w, "%s %s\n", c.theme.Icon(icon), style.Render(title))
	if req.Output != nil && req.Output.Summary != "" {
		fmt.Fprintln(c.w, c.theme.Box.Render(req.Output.Summary))
	}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
