//go:build unix

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine writes a shell script that echoes its arguments, so tests
// can assert on the exact command line the client builds.
func fakeEngine(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlmesh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0700))
	return path
}

func TestCLIClient_BuildsEngineArgs(t *testing.T) {
	path := fakeEngine(t, `echo "$@"`+"\n")
	c := NewCLIClient(path, "/proj", 10*time.Second)
	ctx := context.Background()

	res, err := c.Plan(ctx, "staging", true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "plan --paths /proj --environment staging --auto-apply\n", res.Stdout)

	res, err = c.Migrate(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "migrate --paths /proj --environment prod\n", res.Stdout)

	res, err = c.Audit(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "audit --paths /proj orders\n", res.Stdout)

	res, err = c.Diff(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, "diff --paths /proj --environment staging\n", res.Stdout)

	res, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "--version\n", res.Stdout)
}

func TestCLIClient_NonZeroExitIsFailureNotError(t *testing.T) {
	path := fakeEngine(t, "echo 'audit failed: orders_not_null' >&2\nexit 1\n")
	c := NewCLIClient(path, "", 10*time.Second)

	res, err := c.Audit(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "audit failed")
}

func TestCLIClient_TransientFailureIsRetried(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "attempted")
	path := filepath.Join(dir, "sqlmesh")
	// First call fails with a transient marker; subsequent calls succeed.
	script := "#!/bin/sh\nif [ ! -f " + marker + " ]; then\n" +
		"  touch " + marker + "\n" +
		"  echo 'database is locked' >&2\n" +
		"  exit 1\nfi\necho ok\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0700))

	c := NewCLIClient(path, "", 10*time.Second)
	res, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ok\n", res.Stdout)
}

func TestCLIClient_RealFailureIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	count := filepath.Join(dir, "count")
	path := filepath.Join(dir, "sqlmesh")
	script := "#!/bin/sh\necho x >> " + count + "\necho 'model orders: audit failure' >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0700))

	c := NewCLIClient(path, "", 10*time.Second)
	res, err := c.Audit(context.Background(), "orders")
	require.NoError(t, err)
	assert.False(t, res.Success)

	data, err := os.ReadFile(count)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data), "non-transient failure must run exactly once")
}
