// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cargo

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/clippycheck/services/check/checkrun"
)

// ProbeVersions asks rustc, the program and clippy for their versions.
//
// The three probes run concurrently. A failed probe leaves its field
// empty and is logged; it never fails the run.
func ProbeVersions(ctx context.Context, ex Executor, program Program, logger *slog.Logger) checkrun.ToolVersions {
	if ex == nil {
		ex = OSExecutor{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	var v checkrun.ToolVersions
	probe := func(dst *string, name string, args ...string) func() error {
		return func() error {
			out, err := output(ctx, ex, name, args...)
			if err != nil {
				logger.Warn("version probe failed",
					slog.String("program", name),
					slog.Any("args", args),
					slog.String("error", err.Error()),
				)
				return nil
			}
			*dst = firstLine(out)
			return nil
		}
	}

	var g errgroup.Group
	g.Go(probe(&v.Rustc, "rustc", "-V"))
	g.Go(probe(&v.Cargo, program.Name, "-V"))
	g.Go(probe(&v.Clippy, program.Name, "clippy", "-V"))
	_ = g.Wait()

	logger.Debug("tool versions",
		slog.String("rustc", v.Rustc),
		slog.String("cargo", v.Cargo),
		slog.String("clippy", v.Clippy),
	)
	return v
}

// ClippyArgs builds the argument list for a clippy run.
//
// The toolchain selector must come first and --message-format=json must
// directly follow "clippy", because extra usually ends with "-- -D warnings".
func ClippyArgs(toolchain string, extra []string) []string {
	args := make([]string, 0, len(extra)+3)
	if toolchain != "" {
		args = append(args, "+"+toolchain)
	}
	args = append(args, "clippy", "--message-format=json")
	return append(args, extra...)
}
