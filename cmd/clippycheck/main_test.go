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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/clippycheck/cmd/clippycheck/config"
	"github.com/AleutianAI/clippycheck/services/check/checkrun"
)

// fakeToolchain re-executes the test binary as rustc, cargo and clippy.
type fakeToolchain struct {
	env []string

	// missingClippy makes the clippy invocation fail to start.
	missingClippy string
}

func (f fakeToolchain) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	if f.missingClippy != "" && strings.Contains(strings.Join(args, " "), "--message-format=json") {
		return exec.CommandContext(ctx, f.missingClippy)
	}
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	cmd.Env = append(cmd.Env, f.env...)
	return cmd
}

// TestHelperProcess is not a real test; it plays the rust toolchain.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	cmdline := strings.Join(args[1:], " ")

	switch {
	case cmdline == "rustc -V":
		fmt.Println("rustc 1.80.0 (051478957 2024-07-21)")
	case cmdline == "cargo -V":
		fmt.Println("cargo 1.80.0 (376290515 2024-07-16)")
	case cmdline == "cargo clippy -V":
		fmt.Println("clippy 0.1.80 (0514789 2024-07-21)")
	case strings.HasPrefix(cmdline, "cargo clippy --message-format=json"):
		fmt.Println(diagnosticLine("warning", "src/lib.rs", 3))
		if os.Getenv("HELPER_CLIPPY_ERROR") == "1" {
			fmt.Println(diagnosticLine("error", "src/main.rs", 10))
		}
		fmt.Println(`{"reason":"build-finished","success":true}`)
		if code := os.Getenv("HELPER_EXIT"); code != "" {
			var n int
			_, _ = fmt.Sscanf(code, "%d", &n)
			os.Exit(n)
		}
	default:
		fmt.Fprintf(os.Stderr, "unexpected command: %s\n", cmdline)
		os.Exit(3)
	}
}

func diagnosticLine(level, file string, line int) string {
	return fmt.Sprintf(`{"reason":"compiler-message","message":{"message":"%s message","level":"%s",`+
		`"code":{"code":"clippy::demo"},"spans":[{"file_name":"%s","line_start":%d,"line_end":%d,`+
		`"column_start":1,"column_end":5,"is_primary":true}]}}`,
		level, level, file, line, line)
}

// recordingChecks is a ChecksAPI that remembers every call.
type recordingChecks struct {
	mu      sync.Mutex
	creates []checkrun.CreateRequest
	updates []checkrun.UpdateRequest
}

func (r *recordingChecks) CreateCheckRun(_ context.Context, req checkrun.CreateRequest) (checkrun.CheckRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates = append(r.creates, req)
	return checkrun.CheckRun{ID: 7, Name: req.Name, HTMLURL: "https://github.com/octo/widgets/runs/7"}, nil
}

func (r *recordingChecks) UpdateCheckRun(_ context.Context, id int64, req checkrun.UpdateRequest) (checkrun.CheckRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, req)
	return checkrun.CheckRun{ID: id, Status: req.Status, Conclusion: req.Conclusion}, nil
}

func (r *recordingChecks) final() checkrun.UpdateRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return checkrun.UpdateRequest{}
	}
	return r.updates[len(r.updates)-1]
}

type testEnv struct {
	vars   map[string]string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (e *testEnv) environment(ex fakeToolchain, checks checkrun.ChecksAPI) environment {
	return environment{
		getenv:   func(k string) string { return e.vars[k] },
		stdout:   &e.stdout,
		stderr:   &e.stderr,
		executor: ex,
		checks:   checks,
	}
}

func actionEnv(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"INPUT_TOKEN":       "ghs_testtoken",
		"GITHUB_REPOSITORY": "octo/widgets",
		"GITHUB_SHA":        "0123456789abcdef0123456789abcdef01234567",
		"GITHUB_WORKSPACE":  t.TempDir(),
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"explicit", withExit(exitLintFailed, errors.New("x")), exitLintFailed},
		{"wrapped explicit", fmt.Errorf("outer: %w", withExit(exitFailed, errors.New("x"))), exitFailed},
		{"lint failed", fmt.Errorf("run: %w", checkrun.ErrLintFailed), exitLintFailed},
		{"other", errors.New("boom"), exitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
	assert.NoError(t, withExit(exitFailed, nil))
}

func TestExecute_Version(t *testing.T) {
	env := &testEnv{vars: map[string]string{}}
	code := execute(context.Background(), []string{"version"}, env.environment(fakeToolchain{}, nil))

	assert.Equal(t, exitOK, code)
	assert.Contains(t, env.stdout.String(), "clippycheck ")
}

func TestExecute_MissingToken(t *testing.T) {
	env := &testEnv{vars: map[string]string{}}
	code := execute(context.Background(), []string{"run"}, env.environment(fakeToolchain{}, nil))

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, env.stdout.String(), "::error::")
	assert.Contains(t, env.stdout.String(), "token is required")
}

func TestExecute_Success(t *testing.T) {
	env := &testEnv{vars: actionEnv(t)}
	checks := &recordingChecks{}

	code := execute(context.Background(), nil, env.environment(fakeToolchain{}, checks))

	require.Equal(t, exitOK, code, "stdout:\n%s\nstderr:\n%s", env.stdout.String(), env.stderr.String())
	require.Len(t, checks.creates, 1)
	assert.Equal(t, "clippy", checks.creates[0].Name)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", checks.creates[0].HeadSHA)
	assert.Contains(t, checks.creates[0].Output.Summary, "rustc 1.80.0")

	final := checks.final()
	assert.Equal(t, checkrun.StatusCompleted, final.Status)
	assert.Equal(t, checkrun.ConclusionSuccess, final.Conclusion)

	out := env.stdout.String()
	assert.Contains(t, out, "::group::"+lintGroup)
	assert.Contains(t, out, "::endgroup::")
	assert.Contains(t, out, "::add-mask::ghs_testtoken")
}

func TestExecute_ErrorsFailTheRun(t *testing.T) {
	env := &testEnv{vars: actionEnv(t)}
	checks := &recordingChecks{}
	ex := fakeToolchain{env: []string{"HELPER_CLIPPY_ERROR=1"}}

	code := execute(context.Background(), []string{"run"}, env.environment(ex, checks))

	assert.Equal(t, exitLintFailed, code)
	final := checks.final()
	assert.Equal(t, checkrun.ConclusionFailure, final.Conclusion)
	require.NotNil(t, final.Output)
	assert.Equal(t, "1 error, 1 warning", final.Output.Title)
}

func TestExecute_ClippyExitCode(t *testing.T) {
	env := &testEnv{vars: actionEnv(t)}
	checks := &recordingChecks{}
	ex := fakeToolchain{env: []string{"HELPER_EXIT=101"}}

	code := execute(context.Background(), nil, env.environment(ex, checks))

	assert.Equal(t, exitLintFailed, code)
	assert.Equal(t, checkrun.ConclusionSuccess, checks.final().Conclusion)
	assert.Contains(t, env.stdout.String(), "Clippy had exited with the 101 exit code")
}

func TestExecute_ClippyCannotStart(t *testing.T) {
	env := &testEnv{vars: actionEnv(t)}
	checks := &recordingChecks{}
	ex := fakeToolchain{missingClippy: filepath.Join(t.TempDir(), "no-such-cargo")}

	code := execute(context.Background(), nil, env.environment(ex, checks))

	assert.Equal(t, exitFailed, code)
	final := checks.final()
	assert.Equal(t, checkrun.StatusCompleted, final.Status)
	assert.Equal(t, checkrun.ConclusionFailure, final.Conclusion)
	require.NotNil(t, final.Output)
	assert.Equal(t, "Clippy did not complete", final.Output.Title)
}

func TestExecute_DryRun(t *testing.T) {
	env := &testEnv{vars: map[string]string{}}

	code := execute(context.Background(), []string{"--dry-run", "--name", "lint"}, env.environment(fakeToolchain{}, nil))

	require.Equal(t, exitOK, code, "stdout:\n%s\nstderr:\n%s", env.stdout.String(), env.stderr.String())
	out := env.stdout.String()
	assert.Contains(t, out, "check run lint")
	assert.Contains(t, out, "src/lib.rs:3:1")
	assert.Contains(t, out, "1 warning")
}

func TestExecute_DiffFileFiltersAnnotations(t *testing.T) {
	env := &testEnv{vars: actionEnv(t)}
	checks := &recordingChecks{}

	diff := "diff --git a/src/other.rs b/src/other.rs\nindex 1111111..2222222 100644\n" +
		"--- a/src/other.rs\n+++ b/src/other.rs\n@@ -1,1 +1,2 @@\n line\n+added\n"
	diffPath := filepath.Join(t.TempDir(), "pr.diff")
	require.NoError(t, os.WriteFile(diffPath, []byte(diff), 0o644))

	code := execute(context.Background(), []string{"--diff-file", diffPath}, env.environment(fakeToolchain{}, checks))

	require.Equal(t, exitOK, code)
	for _, u := range checks.updates {
		if u.Output != nil {
			assert.Empty(t, u.Output.Annotations)
		}
	}
	final := checks.final()
	require.NotNil(t, final.Output)
	assert.Equal(t, "1 warning", final.Output.Title, "filtered diagnostics still count")
}

func TestExecute_StepSummaryAndOutputs(t *testing.T) {
	vars := actionEnv(t)
	dir := t.TempDir()
	vars["GITHUB_STEP_SUMMARY"] = filepath.Join(dir, "summary.md")
	vars["GITHUB_OUTPUT"] = filepath.Join(dir, "output")
	require.NoError(t, os.WriteFile(vars["GITHUB_STEP_SUMMARY"], nil, 0o644))
	require.NoError(t, os.WriteFile(vars["GITHUB_OUTPUT"], nil, 0o644))

	env := &testEnv{vars: vars}
	code := execute(context.Background(), nil, env.environment(fakeToolchain{}, &recordingChecks{}))
	require.Equal(t, exitOK, code)

	summary, err := os.ReadFile(vars["GITHUB_STEP_SUMMARY"])
	require.NoError(t, err)
	assert.Contains(t, string(summary), "[1 warning](https://github.com/octo/widgets/runs/7)")
	assert.Contains(t, string(summary), "## Results")
	assert.Contains(t, string(summary), "| Warning | 1 |")
	assert.Contains(t, string(summary), "## Versions")

	outputs, err := os.ReadFile(vars["GITHUB_OUTPUT"])
	require.NoError(t, err)
	assert.Contains(t, string(outputs), "conclusion")
	assert.Contains(t, string(outputs), "success")
}

func TestStepSummary_WithoutURL(t *testing.T) {
	got := stepSummary(checkrun.Result{Conclusion: checkrun.ConclusionSuccess})
	assert.True(t, strings.HasPrefix(got, "### No problems found\n"))
	assert.Contains(t, got, "**success**")
	assert.NotContains(t, got, "## Results")

	got = stepSummary(checkrun.Result{Conclusion: checkrun.ConclusionSuccess, Summary: "## Results\n"})
	assert.True(t, strings.HasSuffix(got, "\n## Results\n"))
}

func TestWorkspaceDir(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, ".", workspaceDir(cfg))

	cfg.GitHub.Workspace = "/repo"
	assert.Equal(t, "/repo", workspaceDir(cfg))

	cfg.WorkingDirectory = "crates/core"
	assert.Equal(t, filepath.Join("/repo", "crates/core"), workspaceDir(cfg))

	cfg.WorkingDirectory = "/elsewhere"
	assert.Equal(t, "/elsewhere", workspaceDir(cfg))
}
