// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config assembles the clippycheck configuration from defaults, an
// optional YAML file, the action inputs and the GitHub Actions context.
package config

import (
	"time"

	"github.com/AleutianAI/clippycheck/services/check/checkrun"
	"github.com/AleutianAI/clippycheck/services/check/github"
	"github.com/AleutianAI/clippycheck/services/check/telemetry"
)

// Config is the complete configuration of one clippycheck invocation.
type Config struct {
	// Token authenticates against the checks API. It is never read from
	// the YAML file.
	Token string `yaml:"-"`

	// Name is the check run name shown on the commit.
	Name string `yaml:"name" validate:"required,max=255"`

	// Toolchain is a rustup toolchain, passed as "+<toolchain>".
	Toolchain string `yaml:"toolchain" validate:"omitempty,excludes=+"`

	// Args are extra arguments appended to "cargo clippy".
	Args []string `yaml:"args"`

	// UseCross runs clippy through cross instead of cargo.
	UseCross bool `yaml:"use_cross"`

	// WorkingDirectory is the cargo workspace, relative to the repository root.
	WorkingDirectory string `yaml:"working_directory"`

	// DiffFile restricts annotations to lines added by this unified diff.
	DiffFile string `yaml:"diff_file"`

	// DryRun prints the check run to the console instead of creating it.
	DryRun bool `yaml:"dry_run"`

	// MetricsTextfile receives the prometheus metrics after the run.
	MetricsTextfile string `yaml:"metrics_textfile"`

	GitHub    GitHubConfig     `yaml:"github"`
	Upload    UploadConfig     `yaml:"upload"`
	Log       LogConfig        `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// GitHubConfig locates the repository and commit being checked.
type GitHubConfig struct {
	APIURL     string  `yaml:"api_url" validate:"required,url"`
	Repository string  `yaml:"repository" validate:"omitempty,repository"`
	HeadSHA    string  `yaml:"head_sha" validate:"omitempty,hexadecimal,min=7,max=64"`
	Workspace  string  `yaml:"workspace"`
	RateLimit  float64 `yaml:"rate_limit" validate:"gte=0"`
}

// UploadConfig tunes annotation delivery.
type UploadConfig struct {
	ChunkSize   int           `yaml:"chunk_size" validate:"gte=0,lte=50"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=0,lte=20"`
	MaxElapsed  time.Duration `yaml:"max_elapsed" validate:"gte=0"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=auto text json"`
	Dir    string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Name: "clippy",
		GitHub: GitHubConfig{
			APIURL:    github.DefaultBaseURL,
			RateLimit: github.DefaultRateLimit,
		},
		Upload: UploadConfig{
			ChunkSize:   checkrun.MaxChunkSize,
			MaxAttempts: checkrun.DefaultRetryPolicy().MaxAttempts,
			MaxElapsed:  checkrun.DefaultRetryPolicy().MaxElapsed,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// RetryPolicy returns the upload retry policy described by c.
func (c UploadConfig) RetryPolicy() checkrun.RetryPolicy {
	p := checkrun.DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.MaxElapsed > 0 {
		p.MaxElapsed = c.MaxElapsed
	}
	return p
}
