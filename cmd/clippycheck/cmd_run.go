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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/clippycheck/cmd/clippycheck/config"
	"github.com/AleutianAI/clippycheck/pkg/logging"
	"github.com/AleutianAI/clippycheck/services/check/annotate"
	"github.com/AleutianAI/clippycheck/services/check/cargo"
	"github.com/AleutianAI/clippycheck/services/check/checkrun"
	"github.com/AleutianAI/clippycheck/services/check/console"
	"github.com/AleutianAI/clippycheck/services/check/github"
	"github.com/AleutianAI/clippycheck/services/check/telemetry"
)

const lintGroup = "Executing cargo clippy (JSON output)"

func runCommand(cmd *cobra.Command, env environment, flags *runFlags) error {
	cfg, err := loadConfig(cmd, env, flags)
	if err != nil {
		return withExit(exitFailed, err)
	}
	return run(cmd.Context(), cfg, env)
}

// run performs one check: resolve the toolchain, create the run, lint,
// upload the annotations and complete the run.
func run(ctx context.Context, cfg config.Config, env environment) error {
	action := githubactions.New(
		githubactions.WithWriter(env.stdout),
		githubactions.WithGetenv(env.getenv),
	)
	if cfg.Token != "" {
		action.AddMask(cfg.Token)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return withExit(exitFailed, err)
	}
	logger := logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.Log.Format),
		LogDir:  cfg.Log.Dir,
		Service: "clippycheck",
		Output:  env.stderr,
	})
	defer logger.Close()
	log := logger.Slog()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return withExit(exitFailed, err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()
	ctx = telemetry.ContextFromEnv(ctx)

	acc, err := newAccumulator(cfg, log)
	if err != nil {
		return withExit(exitFailed, err)
	}

	api, err := checksAPI(cfg, env, log)
	if err != nil {
		return withExit(exitFailed, err)
	}
	if _, ok := api.(*github.Client); ok {
		defer github.Purge()
	}

	ex := env.executor
	if ex == nil {
		ex = cargo.OSExecutor{Dir: workspaceDir(cfg)}
	}
	program, err := cargo.Resolve(ctx, ex, cfg.UseCross, log)
	if err != nil {
		return withExit(exitFailed, err)
	}
	versions := cargo.ProbeVersions(ctx, ex, program, log)

	engine := checkrun.NewEngine(api, acc, checkrun.Config{
		Name:      cfg.Name,
		HeadSHA:   cfg.GitHub.HeadSHA,
		ChunkSize: cfg.Upload.ChunkSize,
		Retry:     cfg.Upload.RetryPolicy(),
		Versions:  versions,
	}, checkrun.WithLogger(log), checkrun.WithStartedAt(processStart))

	if _, err := engine.Start(ctx); err != nil {
		return withExit(exitFailed, err)
	}

	action.Group(lintGroup)
	exit, lintErr := lint(ctx, engine, program, cfg, env, log)
	action.EndGroup()

	if lintErr != nil {
		if err := engine.Abort(context.WithoutCancel(ctx), lintErr); err != nil {
			log.Error("failed to abort check run", slog.String("error", err.Error()))
		}
		return withExit(exitFailed, lintErr)
	}

	result, err := engine.Finish(ctx)
	if err != nil {
		return withExit(exitFailed, err)
	}

	report(action, env, result, log)
	if cfg.MetricsTextfile != "" {
		if err := telemetry.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn("metrics textfile not written", slog.String("error", err.Error()))
		}
	}

	if exit != 0 {
		return withExit(exitLintFailed, fmt.Errorf("Clippy had exited with the %d exit code", exit))
	}
	return withExit(exitLintFailed, result.Err())
}

// lint runs clippy and streams its output into the engine. It returns
// clippy's exit code; the error is set only if clippy could not be run
// to the end or its output could not be read.
func lint(ctx context.Context, engine *checkrun.Engine, program cargo.Program, cfg config.Config, env environment, log *slog.Logger) (int, error) {
	runner := cargo.NewRunner(program,
		cargo.WithStderr(env.stderr),
		cargo.WithEcho(env.stdout),
		cargo.WithRunnerLogger(log),
	)
	proc, err := runner.Start(ctx, cargo.ClippyArgs(cfg.Toolchain, cfg.Args))
	if err != nil {
		return -1, err
	}

	ingestErr := engine.Ingest(ctx, proc)
	code, waitErr := proc.Wait()
	if n := proc.Oversized(); n > 0 {
		log.Warn("dropped oversized clippy output lines",
			slog.Int("lines", n),
			slog.Int("limit_bytes", cargo.MaxLineBytes),
		)
	}
	if err := errors.Join(ingestErr, waitErr); err != nil {
		return code, err
	}
	return code, nil
}

func newAccumulator(cfg config.Config, log *slog.Logger) (*annotate.Accumulator, error) {
	opts := []annotate.MapperOption{annotate.WithBaseDir(cfg.WorkingDirectory)}
	if cfg.DiffFile != "" {
		changed, err := annotate.LoadChangedLines(cfg.DiffFile)
		if err != nil {
			return nil, err
		}
		log.Info("restricting annotations to changed lines",
			slog.String("diff", cfg.DiffFile),
			slog.Int("files", changed.Files()),
		)
		opts = append(opts, annotate.WithLineFilter(changed))
	}
	return annotate.NewAccumulator(annotate.NewMapper(repoRoot(cfg), opts...)), nil
}

func checksAPI(cfg config.Config, env environment, log *slog.Logger) (checkrun.ChecksAPI, error) {
	switch {
	case env.checks != nil:
		return env.checks, nil
	case cfg.DryRun:
		return console.NewChecks(env.stdout), nil
	}

	token, err := github.NewToken(cfg.Token)
	if err != nil {
		return nil, err
	}
	opts := []github.Option{
		github.WithUserAgent("clippycheck/" + buildVersion()),
		github.WithLogger(log),
	}
	if cfg.GitHub.RateLimit > 0 {
		opts = append(opts, github.WithRateLimit(rate.Limit(cfg.GitHub.RateLimit), github.DefaultBurst))
	}
	client, err := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Repository, token, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// report publishes the result as step outputs and, when the job has a
// step summary file, as markdown on the workflow run page.
func report(action *githubactions.Action, env environment, result checkrun.Result, log *slog.Logger) {
	if env.getenv("GITHUB_OUTPUT") != "" {
		action.SetOutput("conclusion", string(result.Conclusion))
		action.SetOutput("check-run-id", strconv.FormatInt(result.RunID, 10))
		action.SetOutput("errors", strconv.Itoa(result.Tally.Errors))
		action.SetOutput("warnings", strconv.Itoa(result.Tally.Warnings))
	}
	if env.getenv("GITHUB_STEP_SUMMARY") != "" {
		action.AddStepSummary(stepSummary(result))
	}
	log.Debug("run reported",
		slog.Int("annotations", result.Annotations),
		slog.Int("unanchored", result.Unanchored),
		slog.Int("filtered", result.Filtered),
		slog.Int("chunks", result.Chunks),
		slog.Int("skipped_lines", result.Ingest.Skipped()),
	)
}

// stepSummary is the heading, the conclusion line and the run's own
// markdown summary.
func stepSummary(result checkrun.Result) string {
	title := checkrun.Title(result.Tally)
	heading := "### " + title
	if result.HTMLURL != "" {
		heading = fmt.Sprintf("### [%s](%s)", title, result.HTMLURL)
	}
	out := heading + "\n\n" + conclusionLine(result) + "\n"
	if result.Summary != "" {
		out += "\n" + result.Summary
	}
	return out
}

func conclusionLine(result checkrun.Result) string {
	return fmt.Sprintf("Clippy check concluded with **%s**: %d annotation(s) in %d request(s).",
		result.Conclusion, result.Annotations, result.Chunks)
}

// repoRoot is the directory annotation paths are relative to.
func repoRoot(cfg config.Config) string {
	if cfg.GitHub.Workspace != "" {
		return cfg.GitHub.Workspace
	}
	return "."
}

// workspaceDir is where cargo runs.
func workspaceDir(cfg config.Config) string {
	switch {
	case cfg.WorkingDirectory == "":
		return repoRoot(cfg)
	case filepath.IsAbs(cfg.WorkingDirectory):
		return cfg.WorkingDirectory
	default:
		return filepath.Join(repoRoot(cfg), cfg.WorkingDirectory)
	}
}
