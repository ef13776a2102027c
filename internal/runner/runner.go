// Package runner executes rollback scripts and engine commands as
// subprocesses with captured output and a hard timeout.
//
// Three failure kinds are kept distinct: the executable could not be
// started (*SpawnError), the process ran but exceeded its deadline
// (*TimeoutError), or it exited non-zero (reported through
// Result.ExitCode, never as an error — callers decide whether a
// non-zero exit is fatal).
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"
)

// DefaultTimeout bounds a single subprocess invocation when the caller
// does not supply its own deadline.
const DefaultTimeout = 5 * time.Minute

// Result is the typed outcome of a subprocess invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// SpawnError means the executable could not be started at all
// (missing file, permission denied). Distinct from a script-level
// failure: the script never ran.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError means the process was killed after exceeding its
// deadline. The whole process group is killed so backgrounded
// children do not outlive the parent.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Path, e.Timeout)
}

// Runner executes subprocesses with a shared default timeout.
type Runner struct {
	timeout time.Duration
}

// New creates a Runner. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{timeout: timeout}
}

// Run executes path with args and the given extra environment variables,
// capturing stdout and stderr. The process inherits the parent
// environment; entries in env override it. A non-zero exit returns a
// populated Result and a nil error.
func (r *Runner) Run(ctx context.Context, path string, args []string, env map[string]string) (*Result, error) {
	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- path comes from the story mapping or engine config,
	// both operator-controlled files.
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = mergedEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run the process in its own group so a timeout kills any children
	// the script spawned, not just the immediate process.
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return nil, &TimeoutError{Path: path, Timeout: timeout}
	case err := <-done:
		res := &Result{
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Elapsed: time.Since(start),
		}
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				res.ExitCode = exitErr.ExitCode()
				return res, nil
			}
			return nil, &SpawnError{Path: path, Err: err}
		}
		return res, nil
	}
}

// mergedEnv returns the parent environment with overrides applied, in
// deterministic order so tests can assert on it.
func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	if len(overrides) == 0 {
		return env
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
