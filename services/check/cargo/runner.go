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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/AleutianAI/clippycheck/services/check/checkrun"
)

const (
	// MaxLineBytes is the longest stdout line the runner passes on. Longer
	// lines are dropped and counted, and reading continues.
	MaxLineBytes = 4 << 20

	initialLineBytes = 64 << 10
)

// Runner starts the lint tool and streams its stdout.
type Runner struct {
	program Program
	stderr  io.Writer
	echo    io.Writer
	logger  *slog.Logger
	maxLine int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStderr sets where the tool's stderr goes. Defaults to os.Stderr.
func WithStderr(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stderr = w
	}
}

// WithEcho copies every stdout line to w as it is read.
func WithEcho(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.echo = w
	}
}

// WithMaxLineBytes overrides MaxLineBytes. Non-positive values are ignored.
func WithMaxLineBytes(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner for program.
func NewRunner(program Program, opts ...RunnerOption) *Runner {
	r := &Runner{
		program: program,
		stderr:  os.Stderr,
		logger:  slog.Default(),
		maxLine: MaxLineBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the program with args.
//
// Description:
//
//	The returned Process exposes stdout as a checkrun.LineSource. The
//	caller must drain it (or not) and then call Wait exactly once.
//
// Inputs:
//
//	ctx - Kills the process when cancelled
//	args - Arguments, usually from ClippyArgs
//
// Outputs:
//
//	*Process - The running process
//	error - *ProcessError wrapping ErrStartFailed
func (r *Runner) Start(ctx context.Context, args []string) (*Process, error) {
	cmd := r.program.Command(ctx, args...)
	cmd.Stderr = r.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, NewProcessError(r.program.Name, args, -1, errors.Join(ErrStartFailed, err))
	}
	if err := cmd.Start(); err != nil {
		return nil, NewProcessError(r.program.Name, args, -1, errors.Join(ErrStartFailed, err))
	}

	r.logger.Info("lint process started",
		slog.String("program", r.program.Name),
		slog.Any("args", args),
		slog.Int("pid", cmd.Process.Pid),
	)

	return &Process{
		cmd:     cmd,
		stdout:  stdout,
		reader:  bufio.NewReaderSize(stdout, initialLineBytes),
		maxLine: r.maxLine,
		echo:    r.echo,
		logger:  r.logger,
		start:   time.Now(),
	}, nil
}

// =============================================================================
// PROCESS
// =============================================================================

// Process is a started lint tool.
//
// Stdout is read line by line. A line longer than the limit is dropped
// with a debug log instead of ending the stream.
type Process struct {
	cmd     *exec.Cmd
	stdout  io.Reader
	reader  *bufio.Reader
	maxLine int
	echo    io.Writer
	logger  *slog.Logger
	start   time.Time

	buf       []byte
	line      string
	err       error
	oversized int
}

// Scan implements checkrun.LineSource.
func (p *Process) Scan() bool {
	for {
		line, tooLong, err := p.readLine()
		if tooLong {
			p.oversized++
			p.logger.Debug("dropped oversized output line",
				slog.Int("limit_bytes", p.maxLine),
				slog.Int("dropped", p.oversized),
			)
			if err != nil {
				p.setErr(err)
				return false
			}
			continue
		}
		if err != nil && len(line) == 0 {
			p.setErr(err)
			return false
		}

		p.line = string(line)
		if p.echo != nil {
			fmt.Fprintln(p.echo, p.line)
		}
		return true
	}
}

// readLine returns the next line without its terminator. tooLong is set
// when the line exceeded maxLine; its bytes are consumed but not returned.
func (p *Process) readLine() (line []byte, tooLong bool, err error) {
	p.buf = p.buf[:0]
	for {
		var chunk []byte
		chunk, err = p.reader.ReadSlice('\n')
		if !tooLong {
			p.buf = append(p.buf, chunk...)
			// Two bytes of slack for a CRLF terminator.
			if len(p.buf) > p.maxLine+2 {
				tooLong = true
				p.buf = p.buf[:0]
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		line = trimEOL(p.buf)
		if len(line) > p.maxLine {
			tooLong = true
			line = nil
		}
		return line, tooLong, err
	}
}

func (p *Process) setErr(err error) {
	if !errors.Is(err, io.EOF) {
		p.err = err
	}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// Text implements checkrun.LineSource.
func (p *Process) Text() string {
	return p.line
}

// Err implements checkrun.LineSource.
func (p *Process) Err() error {
	return p.err
}

// Oversized returns how many lines were dropped for exceeding the limit.
func (p *Process) Oversized() int {
	return p.oversized
}

// Wait drains any unread stdout and waits for the process to exit.
//
// A non-zero exit is not an error: clippy exits non-zero when it finds
// problems. The error is only set if the process could not be waited on
// or was killed by ctx.
func (p *Process) Wait() (int, error) {
	_, _ = io.Copy(io.Discard, p.stdout)

	err := p.cmd.Wait()
	code := p.cmd.ProcessState.ExitCode()
	p.logger.Info("lint process exited",
		slog.Int("exit_code", code),
		slog.Duration("duration", time.Since(p.start)),
	)

	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && code >= 0 {
		return code, nil
	}
	return code, NewProcessError(p.cmd.Path, p.cmd.Args[1:], code, err)
}

var _ checkrun.LineSource = (*Process)(nil)
