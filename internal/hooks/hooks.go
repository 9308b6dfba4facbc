// Package hooks runs user-configured commands at the lifecycle points of an
// evaluation run.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/timsvoice/specimin/internal/utils"
)

// Point names a lifecycle point.
type Point string

const (
	BeforeRun  Point = "before_run"
	AfterRun   Point = "after_run"
	BeforeCase Point = "before_case"
	AfterCase  Point = "after_case"
)

// Environment variables set for hook commands. Variables that do not apply to
// a lifecycle point are not set.
const (
	EnvRunDir     = "SPECIMIN_RUN_DIR"
	EnvCaseDir    = "SPECIMIN_CASE_DIR"
	EnvCaseID     = "SPECIMIN_CASE_ID"
	EnvCasePassed = "SPECIMIN_CASE_PASSED"
	EnvErrorKind  = "SPECIMIN_ERROR_KIND"
	EnvReport     = "SPECIMIN_REPORT"
	EnvPassRate   = "SPECIMIN_PASS_RATE"
	EnvPassing    = "SPECIMIN_PASSING"
)

// HookConfig defines a single hook command. The command is split on
// whitespace and run without a shell; $VAR and ${VAR} in it are expanded from
// the hook environment.
type HookConfig struct {
	Command          string `yaml:"command" json:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`
	ExitCodes        []int  `yaml:"exit_codes,omitempty" json:"exit_codes,omitempty"`
	ErrorOnFail      bool   `yaml:"error_on_fail,omitempty" json:"error_on_fail,omitempty"`
}

// HooksConfig holds all lifecycle hooks.
type HooksConfig struct {
	BeforeRun  []HookConfig `yaml:"before_run,omitempty" json:"before_run,omitempty"`
	AfterRun   []HookConfig `yaml:"after_run,omitempty" json:"after_run,omitempty"`
	BeforeCase []HookConfig `yaml:"before_case,omitempty" json:"before_case,omitempty"`
	AfterCase  []HookConfig `yaml:"after_case,omitempty" json:"after_case,omitempty"`
}

// For returns the hooks configured for p.
func (c HooksConfig) For(p Point) []HookConfig {
	switch p {
	case BeforeRun:
		return c.BeforeRun
	case AfterRun:
		return c.AfterRun
	case BeforeCase:
		return c.BeforeCase
	case AfterCase:
		return c.AfterCase
	default:
		return nil
	}
}

// Env is the set of variables added to the process environment of a hook.
type Env map[string]string

// Runner executes hook commands at lifecycle points.
type Runner struct {
	// Verbose logs hook output at info level instead of debug.
	Verbose bool
}

// Execute runs hooks in order. dir is the default working directory; relative
// working directories are resolved against it. A failing hook stops the
// sequence only when it sets error_on_fail.
func (r *Runner) Execute(ctx context.Context, point Point, hooks []HookConfig, dir string, env Env) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook %s: context canceled: %w", point, err)
		}

		if err := r.runHook(ctx, point, i, h, dir, env); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, point Point, index int, h HookConfig, dir string, env Env) error {
	if strings.TrimSpace(h.Command) == "" {
		return fmt.Errorf("hook %s[%d]: empty command", point, index)
	}

	lookup := func(name string) string {
		if v, ok := env[name]; ok {
			return v
		}
		return os.Getenv(name)
	}
	parts := strings.Fields(h.Command)
	for i := range parts {
		parts[i] = os.Expand(parts[i], lookup)
	}

	//nolint:gosec // hook commands come from the project configuration
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = dir
	if h.WorkingDirectory != "" {
		cmd.Dir = utils.ResolvePath(h.WorkingDirectory, dir)
	}
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	output, err := cmd.CombinedOutput()

	if len(output) > 0 {
		level := slog.LevelDebug
		if r.Verbose {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "hook output", "hook", point, "index", index, "output", strings.TrimSpace(string(output)))
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// e.g. command not found
			if h.ErrorOnFail {
				return fmt.Errorf("hook %s[%d]: %w", point, index, err)
			}
			slog.Warn("hook failed, continuing", "hook", point, "index", index, "error", err)
			return nil
		}
		exitCode = exitErr.ExitCode()
	}

	if !isAcceptableExit(exitCode, h.ExitCodes) {
		if h.ErrorOnFail {
			return fmt.Errorf("hook %s[%d]: command exited with code %d", point, index, exitCode)
		}
		slog.Warn("hook exited with an unexpected code, continuing", "hook", point, "index", index, "exit_code", exitCode)
	}

	return nil
}

// isAcceptableExit checks whether exitCode is in the allowed list.
// An empty allowedCodes list defaults to allowing only exit code 0.
func isAcceptableExit(exitCode int, allowedCodes []int) bool {
	if len(allowedCodes) == 0 {
		return exitCode == 0
	}
	for _, code := range allowedCodes {
		if exitCode == code {
			return true
		}
	}
	return false
}
