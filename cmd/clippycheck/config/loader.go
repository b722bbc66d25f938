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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-shellwords"
	"github.com/sethvargo/go-githubactions"
	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigFile indicates the YAML file could not be read or parsed.
	ErrConfigFile = errors.New("invalid config file")

	// ErrInvalidInput indicates an action input could not be interpreted.
	ErrInvalidInput = errors.New("invalid action input")

	// ErrMissingToken indicates no token was supplied outside a dry run.
	ErrMissingToken = errors.New("token is required unless dry-run is set")

	// ErrMissingContext indicates the repository or commit is unknown.
	ErrMissingContext = errors.New("repository and head SHA are required unless dry-run is set")
)

// configValidate is the validator instance for Config.
// Initialized in init() with custom validators.
var configValidate *validator.Validate

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("repository", validateRepository)
}

// validateRepository checks for "owner/name".
func validateRepository(fl validator.FieldLevel) bool {
	return repositoryPattern.MatchString(fl.Field().String())
}

// Load builds the configuration.
//
// Description:
//
//	Layers, lowest precedence first: DefaultConfig, the YAML file at path
//	(skipped when path is empty), the action inputs (INPUT_* variables)
//	and the GitHub Actions context (GITHUB_* variables and the event
//	payload). CLI flags are applied by the caller afterwards, followed by
//	Validate.
//
// Inputs:
//
//	path - Optional YAML config file
//	getenv - Environment lookup, normally os.Getenv
//
// Outputs:
//
//	Config - The merged configuration
//	error - Wraps ErrConfigFile or ErrInvalidInput
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigFile, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigFile, path, err)
		}
	}

	action := githubactions.New(githubactions.WithGetenv(getenv))
	if err := applyInputs(&cfg, action); err != nil {
		return Config{}, err
	}
	if err := applyContext(&cfg, action); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyInputs reads the action inputs. Unset inputs leave cfg unchanged.
func applyInputs(cfg *Config, action *githubactions.Action) error {
	if v := action.GetInput("token"); v != "" {
		cfg.Token = v
	}
	if v := action.GetInput("toolchain"); v != "" {
		cfg.Toolchain = strings.TrimPrefix(v, "+")
	}
	if v := action.GetInput("args"); v != "" {
		args, err := ParseArgs(v)
		if err != nil {
			return err
		}
		cfg.Args = args
	}
	if v := action.GetInput("use-cross"); v != "" {
		cfg.UseCross = v == "true"
	}
	if v := action.GetInput("name"); v != "" {
		cfg.Name = v
	}
	if v := action.GetInput("working-directory"); v != "" {
		cfg.WorkingDirectory = v
	}
	return nil
}

// applyContext fills in the repository, commit, API root and workspace.
//
// For pull_request events the PR head commit is used rather than
// GITHUB_SHA, which names the temporary merge commit.
func applyContext(cfg *Config, action *githubactions.Action) error {
	gh, err := action.Context()
	if err != nil {
		return fmt.Errorf("reading GitHub context: %w", err)
	}

	if gh.Repository != "" {
		cfg.GitHub.Repository = gh.Repository
	}
	if sha := headSHA(gh.Event); sha != "" {
		cfg.GitHub.HeadSHA = sha
	} else if gh.SHA != "" {
		cfg.GitHub.HeadSHA = gh.SHA
	}
	if gh.APIURL != "" {
		cfg.GitHub.APIURL = gh.APIURL
	}
	if gh.Workspace != "" {
		cfg.GitHub.Workspace = gh.Workspace
	}
	return nil
}

// headSHA returns event.pull_request.head.sha, or "".
func headSHA(event map[string]any) string {
	pr, ok := event["pull_request"].(map[string]any)
	if !ok {
		return ""
	}
	head, ok := pr["head"].(map[string]any)
	if !ok {
		return ""
	}
	sha, _ := head["sha"].(string)
	return sha
}

// ParseArgs splits s with shell quoting rules.
func ParseArgs(s string) ([]string, error) {
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: args: %v", ErrInvalidInput, err)
	}
	return args, nil
}

// Validate checks the merged configuration.
//
// Outside a dry run a token, repository and head SHA are required.
func Validate(cfg Config) error {
	if err := configValidate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.DryRun {
		return nil
	}
	if cfg.Token == "" {
		return ErrMissingToken
	}
	if cfg.GitHub.Repository == "" || cfg.GitHub.HeadSHA == "" {
		return ErrMissingContext
	}
	return nil
}
