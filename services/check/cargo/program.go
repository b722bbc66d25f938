// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cargo locates and runs the Rust tools a clippy check needs.
//
// Description:
//
//	Resolve picks cargo, or cross (installing it when missing).
//	ProbeVersions asks rustc, the program and clippy for their versions
//	concurrently. Runner starts `cargo clippy --message-format=json` and
//	exposes its stdout as a line stream for checkrun.Engine.Ingest.
//
// Thread Safety: Program and Runner are safe for concurrent use. A
// Process belongs to the goroutine that started it.
package cargo

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Executor builds commands. The default runs real binaries; tests swap it.
type Executor interface {
	Command(ctx context.Context, name string, args ...string) *exec.Cmd
}

// OSExecutor runs binaries from PATH.
type OSExecutor struct {
	// Dir is the working directory. Empty means the current one.
	Dir string

	// Env is appended to the inherited environment.
	Env []string
}

// Command implements Executor.
func (e OSExecutor) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd
}

// =============================================================================
// PROGRAM
// =============================================================================

// Program is the cargo-compatible tool clippy runs under: cargo or cross.
type Program struct {
	Name string
	ex   Executor
}

// NewProgram returns a program whose commands are built by ex.
func NewProgram(name string, ex Executor) Program {
	if ex == nil {
		ex = OSExecutor{}
	}
	return Program{Name: name, ex: ex}
}

// Command builds a command for the program.
func (p Program) Command(ctx context.Context, args ...string) *exec.Cmd {
	return p.ex.Command(ctx, p.Name, args...)
}

// Output runs the program and returns its trimmed stdout.
func (p Program) Output(ctx context.Context, args ...string) (string, error) {
	return output(ctx, p.ex, p.Name, args...)
}

func output(ctx context.Context, ex Executor, name string, args ...string) (string, error) {
	cmd := ex.Command(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", NewProcessError(name, args, code, errors.Join(ErrProgramFailed, err)).WithOutput(stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Resolve returns the program clippy should run under.
//
// Description:
//
//	Without useCross this is cargo. With useCross, `cross -V` is probed
//	and cross is used if it answers with a cross version; otherwise
//	`cargo install cross` runs first.
//
// Inputs:
//
//	ctx - Context for cancellation
//	ex - Command builder; nil means OSExecutor{}
//	useCross - Whether to build through cross
//	logger - Logger for progress messages
//
// Outputs:
//
//	Program - cargo or cross
//	error - Wraps ErrInstallFailed if cross could not be installed
func Resolve(ctx context.Context, ex Executor, useCross bool, logger *slog.Logger) (Program, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !useCross {
		return NewProgram("cargo", ex), nil
	}

	cross := NewProgram("cross", ex)
	version, err := cross.Output(ctx, "-V")
	if err == nil && strings.Contains(version, "cross") {
		logger.Debug("using installed cross", slog.String("version", firstLine(version)))
		return cross, nil
	}
	if ctx.Err() != nil {
		return Program{}, ctx.Err()
	}

	logger.Info("cross not found, installing it with cargo")
	if _, err := NewProgram("cargo", ex).Output(ctx, "install", "cross"); err != nil {
		return Program{}, errors.Join(ErrInstallFailed, err)
	}
	return cross, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
