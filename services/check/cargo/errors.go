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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the cargo package.
var (
	// ErrProgramFailed indicates a tool exited unsuccessfully.
	ErrProgramFailed = errors.New("program failed")

	// ErrInstallFailed indicates `cargo install cross` did not succeed.
	ErrInstallFailed = errors.New("installing cross failed")

	// ErrStartFailed indicates the lint process could not be started.
	ErrStartFailed = errors.New("starting program failed")
)

// ProcessError wraps a failed tool invocation with its command line.
//
// Thread Safety: Immutable after creation.
type ProcessError struct {
	// Program is the executable, e.g. "cargo".
	Program string

	// Args are the arguments it was given.
	Args []string

	// ExitCode is the exit status, or -1 if the process never ran.
	ExitCode int

	// Err is the underlying error.
	Err error

	// Output contains any stderr output.
	Output string
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	cmdline := strings.TrimSpace(e.Program + " " + strings.Join(e.Args, " "))
	if e.Output != "" {
		return fmt.Sprintf("%s (exit %d): %v: %s", cmdline, e.ExitCode, e.Err, e.Output)
	}
	return fmt.Sprintf("%s (exit %d): %v", cmdline, e.ExitCode, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// NewProcessError creates a new ProcessError.
func NewProcessError(program string, args []string, exitCode int, err error) *ProcessError {
	return &ProcessError{
		Program:  program,
		Args:     args,
		ExitCode: exitCode,
		Err:      err,
	}
}

// WithOutput returns a copy of the error with the stderr output set.
func (e *ProcessError) WithOutput(output string) *ProcessError {
	return &ProcessError{
		Program:  e.Program,
		Args:     e.Args,
		ExitCode: e.ExitCode,
		Err:      e.Err,
		Output:   strings.TrimSpace(output),
	}
}
