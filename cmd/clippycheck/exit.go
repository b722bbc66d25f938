// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"

	"github.com/AleutianAI/clippycheck/services/check/checkrun"
)

// Exit codes.
const (
	// exitOK means clippy passed and the check run was completed.
	exitOK = 0

	// exitLintFailed means the run was reported but clippy failed: it
	// exited non-zero or reported errors.
	exitLintFailed = 1

	// exitFailed means clippycheck itself could not do its job: bad
	// configuration, clippy could not be run, or the check run could not
	// be created or completed.
	exitFailed = 2
)

// exitError carries the exit code an error should produce.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, checkrun.ErrLintFailed) {
		return exitLintFailed
	}
	return exitFailed
}
