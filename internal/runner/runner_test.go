//go:build unix

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRun_CapturesOutputAndExitZero(t *testing.T) {
	path := writeScript(t, "ok.sh", "echo out\necho err >&2\n")

	r := New(10 * time.Second)
	res, err := r.Run(context.Background(), path, nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
	if res.Elapsed <= 0 {
		t.Fatalf("elapsed not recorded")
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	path := writeScript(t, "fail.sh", "echo broken >&2\nexit 3\n")

	r := New(10 * time.Second)
	res, err := r.Run(context.Background(), path, nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Stderr != "broken\n" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestRun_EnvOverridesReachScript(t *testing.T) {
	path := writeScript(t, "env.sh", `printf '%s' "$ROLLBACK_DRY_RUN"`+"\n")

	r := New(10 * time.Second)
	res, err := r.Run(context.Background(), path, nil, map[string]string{"ROLLBACK_DRY_RUN": "1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "1" {
		t.Fatalf("stdout = %q, want %q", res.Stdout, "1")
	}
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	path := writeScript(t, "slow.sh", "sleep 30 &\nsleep 30\n")

	r := New(200 * time.Millisecond)
	start := time.Now()
	_, err := r.Run(context.Background(), path, nil, nil)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took %s, children likely survived", elapsed)
	}
}

func TestRun_MissingExecutableIsSpawnError(t *testing.T) {
	r := New(time.Second)
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "nope.sh"), nil, nil)

	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want SpawnError", err)
	}
}
