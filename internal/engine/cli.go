package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/runner"
)

// Retry ceiling for transient failures on read-only engine calls.
const readRetryMaxElapsed = 30 * time.Second

// CLIClient drives the engine by shelling out to its command line
// (sqlmesh by default). Read-only calls are retried with exponential
// backoff on transient errors; Plan and Migrate are never retried
// because replaying a mutation is worse than surfacing its failure.
type CLIClient struct {
	command     string
	projectPath string
	run         *runner.Runner
}

// NewCLIClient creates a client for the given engine command.
// projectPath, when set, is passed to every invocation as --paths.
func NewCLIClient(command, projectPath string, timeout time.Duration) *CLIClient {
	if command == "" {
		command = "sqlmesh"
	}
	return &CLIClient{
		command:     command,
		projectPath: projectPath,
		run:         runner.New(timeout),
	}
}

var _ Client = (*CLIClient)(nil)

func (c *CLIClient) Status(ctx context.Context) (*Result, error) {
	// Version probe doubles as the installation/readiness check.
	return c.execute(ctx, true, "--version")
}

func (c *CLIClient) Audit(ctx context.Context, model string) (*Result, error) {
	args := c.projectArgs("audit")
	if model != "" {
		args = append(args, model)
	}
	return c.execute(ctx, true, args...)
}

func (c *CLIClient) Test(ctx context.Context, model string) (*Result, error) {
	args := c.projectArgs("test")
	if model != "" {
		args = append(args, model)
	}
	return c.execute(ctx, true, args...)
}

func (c *CLIClient) Diff(ctx context.Context, environment string) (*Result, error) {
	args := c.projectArgs("diff")
	if environment != "" {
		args = append(args, "--environment", environment)
	}
	return c.execute(ctx, true, args...)
}

func (c *CLIClient) Plan(ctx context.Context, environment string, autoApply bool) (*Result, error) {
	args := c.projectArgs("plan")
	if environment != "" {
		args = append(args, "--environment", environment)
	}
	if autoApply {
		args = append(args, "--auto-apply")
	}
	return c.execute(ctx, false, args...)
}

func (c *CLIClient) Migrate(ctx context.Context, environment string) (*Result, error) {
	args := c.projectArgs("migrate")
	if environment != "" {
		args = append(args, "--environment", environment)
	}
	return c.execute(ctx, false, args...)
}

func (c *CLIClient) projectArgs(subcommand string) []string {
	args := []string{subcommand}
	if c.projectPath != "" {
		args = append(args, "--paths", c.projectPath)
	}
	return args
}

func (c *CLIClient) execute(ctx context.Context, readOnly bool, args ...string) (*Result, error) {
	invoke := func() (*Result, error) {
		res, err := c.run.Run(ctx, c.command, args, nil)
		if err != nil {
			return nil, err
		}
		return &Result{
			Success: res.ExitCode == 0,
			Stdout:  res.Stdout,
			Stderr:  res.Stderr,
		}, nil
	}

	if !readOnly {
		return invoke()
	}

	bo := newReadRetryBackoff()
	var result *Result
	err := backoff.Retry(func() error {
		res, err := invoke()
		if err != nil {
			// Spawn and timeout failures won't heal on retry.
			return backoff.Permanent(err)
		}
		result = res
		if !res.Success && isTransient(res.Stderr) {
			return fmt.Errorf("transient engine failure: %s", firstLine(res.Stderr))
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil && result == nil {
		return nil, err
	}
	// A retry budget exhausted on a transient failure still yields the
	// last result; the caller sees Success=false with the real stderr.
	return result, nil
}

func newReadRetryBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = readRetryMaxElapsed
	return bo
}

// isTransient reports whether an engine failure looks like a momentary
// infrastructure problem worth retrying rather than a real validation
// or model failure.
func isTransient(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"database is locked",
		"too many connections",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
