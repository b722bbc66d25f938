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
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/clippycheck/cmd/clippycheck/config"
	"github.com/AleutianAI/clippycheck/services/check/cargo"
	"github.com/AleutianAI/clippycheck/services/check/checkrun"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// environment is everything the commands take from the process.
type environment struct {
	getenv func(string) string
	stdout io.Writer
	stderr io.Writer

	// executor runs cargo, cross and rustc. Nil means the real binaries.
	executor cargo.Executor

	// checks replaces the hosting API. Nil means GitHub, or the console
	// when --dry-run is set.
	checks checkrun.ChecksAPI
}

func defaultEnvironment() environment {
	return environment{
		getenv: os.Getenv,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// runFlags mirror the action inputs. Only flags set on the command line
// override the loaded configuration.
type runFlags struct {
	configPath       string
	dryRun           bool
	diffFile         string
	metricsTextfile  string
	logLevel         string
	logFormat        string
	chunkSize        int
	name             string
	toolchain        string
	args             string
	useCross         bool
	workingDirectory string
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, env environment) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	action := githubactions.New(
		githubactions.WithWriter(env.stdout),
		githubactions.WithGetenv(env.getenv),
	)
	action.Errorf("%s", err)
	return exitCode(err)
}

func newRootCmd(env environment) *cobra.Command {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:   "clippycheck",
		Short: "Run cargo clippy and publish the results as a GitHub check run",
		Long: `clippycheck runs cargo clippy with JSON output, turns every diagnostic
into a check run annotation and completes the run with a summary.

Inputs are read from the INPUT_* variables set by GitHub Actions, an
optional YAML file and the flags below, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(cmd, env, flags)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run clippy and report the check run (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(cmd, env, flags)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the clippycheck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clippycheck %s\n", buildVersion())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML configuration file")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "print the check run instead of creating it")
	pf.StringVar(&flags.diffFile, "diff-file", "", "only annotate lines added by this unified diff")
	pf.StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write prometheus metrics to this file after the run")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: auto, text, json")
	pf.IntVar(&flags.chunkSize, "chunk-size", 0, "annotations per update request (1-50)")
	pf.StringVar(&flags.name, "name", "", "check run name")
	pf.StringVar(&flags.toolchain, "toolchain", "", "rustup toolchain, e.g. nightly")
	pf.StringVar(&flags.args, "args", "", "extra arguments for cargo clippy")
	pf.BoolVar(&flags.useCross, "use-cross", false, "run clippy through cross")
	pf.StringVar(&flags.workingDirectory, "working-directory", "", "cargo workspace relative to the repository root")

	root.AddCommand(runCmd, versionCmd)
	return root
}

// loadConfig layers the changed flags over config.Load and validates.
func loadConfig(cmd *cobra.Command, env environment, flags *runFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath, env.getenv)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if changed("diff-file") {
		cfg.DiffFile = flags.diffFile
	}
	if changed("metrics-textfile") {
		cfg.MetricsTextfile = flags.metricsTextfile
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	if changed("chunk-size") {
		cfg.Upload.ChunkSize = flags.chunkSize
	}
	if changed("name") {
		cfg.Name = flags.name
	}
	if changed("toolchain") {
		cfg.Toolchain = trimToolchain(flags.toolchain)
	}
	if changed("args") {
		args, err := config.ParseArgs(flags.args)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Args = args
	}
	if changed("use-cross") {
		cfg.UseCross = flags.useCross
	}
	if changed("working-directory") {
		cfg.WorkingDirectory = flags.workingDirectory
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func trimToolchain(s string) string {
	if len(s) > 0 && s[0] == '+' {
		return s[1:]
	}
	return s
}

func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return version
}
