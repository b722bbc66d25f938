// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// env is a fake environment for Load.
type env map[string]string

func (e env) get(key string) string { return e[key] }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", env{}.get)
	require.NoError(t, err)

	assert.Equal(t, "clippy", cfg.Name)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
	assert.Equal(t, 50, cfg.Upload.ChunkSize)
	assert.Empty(t, cfg.Token)
	assert.False(t, cfg.UseCross)
}

func TestLoad_ActionInputs(t *testing.T) {
	cfg, err := Load("", env{
		"INPUT_TOKEN":             "ghs_secret",
		"INPUT_TOOLCHAIN":         "+nightly",
		"INPUT_ARGS":              `--all-features --message "a b" -- -D warnings`,
		"INPUT_USE-CROSS":         "true",
		"INPUT_NAME":              "Clippy (nightly)",
		"INPUT_WORKING-DIRECTORY": "crates/core",
	}.get)
	require.NoError(t, err)

	assert.Equal(t, "ghs_secret", cfg.Token)
	assert.Equal(t, "nightly", cfg.Toolchain)
	assert.Equal(t, []string{"--all-features", "--message", "a b", "--", "-D", "warnings"}, cfg.Args)
	assert.True(t, cfg.UseCross)
	assert.Equal(t, "Clippy (nightly)", cfg.Name)
	assert.Equal(t, "crates/core", cfg.WorkingDirectory)
}

func TestLoad_UseCrossOnlyForLiteralTrue(t *testing.T) {
	for _, v := range []string{"True", "yes", "1", "false"} {
		cfg, err := Load("", env{"INPUT_USE-CROSS": v}.get)
		require.NoError(t, err)
		assert.False(t, cfg.UseCross, "use-cross=%q", v)
	}
}

func TestLoad_InvalidArgs(t *testing.T) {
	_, err := Load("", env{"INPUT_ARGS": `--features "unterminated`}.get)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoad_GitHubContext(t *testing.T) {
	cfg, err := Load("", env{
		"GITHUB_REPOSITORY": "octo/widgets",
		"GITHUB_SHA":        "1111111111111111111111111111111111111111",
		"GITHUB_API_URL":    "https://ghe.example.com/api/v3",
		"GITHUB_WORKSPACE":  "/home/runner/work/widgets",
	}.get)
	require.NoError(t, err)

	assert.Equal(t, "octo/widgets", cfg.GitHub.Repository)
	assert.Equal(t, "1111111111111111111111111111111111111111", cfg.GitHub.HeadSHA)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.APIURL)
	assert.Equal(t, "/home/runner/work/widgets", cfg.GitHub.Workspace)
}

func TestLoad_PullRequestHeadWins(t *testing.T) {
	event := writeFile(t, "event.json", `{
		"pull_request": {"head": {"sha": "2222222222222222222222222222222222222222"}}
	}`)

	cfg, err := Load("", env{
		"GITHUB_SHA":        "1111111111111111111111111111111111111111",
		"GITHUB_EVENT_PATH": event,
	}.get)
	require.NoError(t, err)
	assert.Equal(t, "2222222222222222222222222222222222222222", cfg.GitHub.HeadSHA)
}

func TestLoad_PushEventUsesSHA(t *testing.T) {
	event := writeFile(t, "event.json", `{"ref": "refs/heads/main"}`)

	cfg, err := Load("", env{
		"GITHUB_SHA":        "1111111111111111111111111111111111111111",
		"GITHUB_EVENT_PATH": event,
	}.get)
	require.NoError(t, err)
	assert.Equal(t, "1111111111111111111111111111111111111111", cfg.GitHub.HeadSHA)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "clippycheck.yaml", `
name: lint
toolchain: stable
args: ["--workspace"]
upload:
  chunk_size: 20
  max_attempts: 6
  max_elapsed: 30s
log:
  level: debug
  format: json
`)

	cfg, err := Load(path, env{"INPUT_TOOLCHAIN": "+beta"}.get)
	require.NoError(t, err)

	assert.Equal(t, "lint", cfg.Name)
	assert.Equal(t, "beta", cfg.Toolchain, "inputs override the file")
	assert.Equal(t, []string{"--workspace"}, cfg.Args)
	assert.Equal(t, 20, cfg.Upload.ChunkSize)
	assert.Equal(t, "debug", cfg.Log.Level)

	policy := cfg.Upload.RetryPolicy()
	assert.Equal(t, 6, policy.MaxAttempts)
	assert.Equal(t, 30*time.Second, policy.MaxElapsed)
}

func TestLoad_YAMLErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), env{}.get)
	assert.ErrorIs(t, err, ErrConfigFile)

	path := writeFile(t, "bad.yaml", "nmae: typo\n")
	_, err = Load(path, env{}.get)
	assert.ErrorIs(t, err, ErrConfigFile)
}

func TestLoad_EmptyYAMLFile(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")
	cfg, err := Load(path, env{}.get)
	require.NoError(t, err)
	assert.Equal(t, "clippy", cfg.Name)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Token = "t"
		cfg.GitHub.Repository = "octo/widgets"
		cfg.GitHub.HeadSHA = "abcdef1"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing token", func(c *Config) { c.Token = "" }, ErrMissingToken},
		{"dry run without token", func(c *Config) { c.Token = ""; c.DryRun = true; c.GitHub.Repository = "" }, nil},
		{"missing repository", func(c *Config) { c.GitHub.Repository = "" }, ErrMissingContext},
		{"missing sha", func(c *Config) { c.GitHub.HeadSHA = "" }, ErrMissingContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad repository", func(c *Config) { c.GitHub.Repository = "widgets" }},
		{"bad sha", func(c *Config) { c.GitHub.HeadSHA = "not-a-sha" }},
		{"empty name", func(c *Config) { c.Name = "" }},
		{"chunk too large", func(c *Config) { c.Upload.ChunkSize = 51 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad api url", func(c *Config) { c.GitHub.APIURL = "not a url" }},
		{"bad exporter", func(c *Config) { c.Telemetry.TraceExporter = "zipkin" }},
		{"toolchain with plus", func(c *Config) { c.Toolchain = "+nightly" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DryRun = true
			tt.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
