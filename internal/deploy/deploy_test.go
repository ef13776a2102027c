package deploy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/engine"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/lockfile"
)

var pipelineOrder = []string{
	"pre_validation",
	"create_shadow",
	"shadow_validation",
	"safety_checks",
	"atomic_swap",
	"post_validation",
}

func newTestOrchestrator(t *testing.T, fake *engine.Fake, opts ...Option) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	log := NewLog(filepath.Join(dir, "deployments.json"))
	return New(fake, log, nil, dir, opts...)
}

func stepNames(rec *Record) []string {
	var names []string
	for _, s := range rec.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestDeploy_HappyPathRunsAllStepsInOrder(t *testing.T) {
	fake := &engine.Fake{}
	o := newTestOrchestrator(t, fake)

	rec, err := o.Deploy(context.Background(), "prod")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, pipelineOrder, stepNames(rec))
	for _, s := range rec.Steps {
		assert.Equal(t, StepCompleted, s.Status, s.Name)
		assert.NotNil(t, s.CompletedAt, s.Name)
	}
	assert.NotNil(t, rec.CompletedAt)
	assert.False(t, rec.RollbackAttempted)

	// Persisted to the log under its ID.
	got, err := o.Status(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestDeploy_MutatingFlagOnlyOnAtomicSwap(t *testing.T) {
	o := newTestOrchestrator(t, &engine.Fake{})

	rec, err := o.Deploy(context.Background(), "prod")
	require.NoError(t, err)

	for _, s := range rec.Steps {
		if s.Name == "atomic_swap" {
			assert.True(t, s.Mutating)
		} else {
			assert.False(t, s.Mutating, s.Name)
		}
	}
}

func TestDeploy_PreValidationFailureAbortsBeforeAnyMutation(t *testing.T) {
	fake := &engine.Fake{
		TestResult: &engine.Result{Success: false, Stderr: "3 tests failed"},
	}
	o := newTestOrchestrator(t, fake)

	rec, err := o.Deploy(context.Background(), "prod")
	require.Error(t, err)

	var vf *ValidationFailureError
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "pre_validation", vf.Step)
	assert.Equal(t, "tests_passing", vf.Check)

	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, []string{"pre_validation"}, stepNames(rec))
	assert.Equal(t, StepFailed, rec.Steps[0].Status)
	assert.True(t, rec.RollbackAttempted)
	assert.NotContains(t, fake.Calls, "migrate:prod")
}

func TestDeploy_BreakingChangeInDiffFailsPreValidation(t *testing.T) {
	fake := &engine.Fake{
		DiffResult: &engine.Result{Success: true, Stdout: "ALTER TABLE orders DROP COLUMN total;"},
	}
	o := newTestOrchestrator(t, fake)

	rec, err := o.Deploy(context.Background(), "prod")
	require.Error(t, err)

	var vf *ValidationFailureError
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "no_breaking_changes", vf.Check)
	assert.Contains(t, vf.Detail, "DROP COLUMN")
	assert.Equal(t, StatusFailed, rec.Status)
}

func TestDeploy_SafetyPolicyHookFailure(t *testing.T) {
	fake := &engine.Fake{}
	o := newTestOrchestrator(t, fake, WithPolicy(SafetyPolicy{
		RollbackPossible: func(ctx context.Context, env string) (bool, string, error) {
			return false, "no prior snapshot for prod", nil
		},
	}))

	rec, err := o.Deploy(context.Background(), "prod")
	require.Error(t, err)

	var vf *ValidationFailureError
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "safety_checks", vf.Step)
	assert.Equal(t, "rollback_possible", vf.Check)
	assert.Equal(t, "no prior snapshot for prod", vf.Detail)

	// safety_checks failed before the swap was attempted.
	assert.Equal(t, []string{"pre_validation", "create_shadow", "shadow_validation", "safety_checks"},
		stepNames(rec))
	assert.NotContains(t, fake.Calls, "migrate:prod")
}

func TestDeploy_PostValidationFailuresAreWarningsNotFatal(t *testing.T) {
	fake := &engine.Fake{}
	o := newTestOrchestrator(t, fake)

	// Flip tests to failing after the swap: pre_validation and
	// shadow_validation must still pass, so swap the result via a
	// policy hook that runs just before atomic_swap.
	flipped := false
	o.policy.RollbackPossible = func(ctx context.Context, env string) (bool, string, error) {
		if !flipped {
			fake.TestResult = &engine.Result{Success: false, Stderr: "smoke test flake"}
			flipped = true
		}
		return true, "", nil
	}

	rec, err := o.Deploy(context.Background(), "prod")
	require.NoError(t, err, "post_validation failures must not fail the deployment")

	assert.Equal(t, StatusCompleted, rec.Status)
	last := rec.Steps[len(rec.Steps)-1]
	assert.Equal(t, "post_validation", last.Name)
	assert.Equal(t, StepCompleted, last.Status)
	require.NotEmpty(t, last.Warnings)
	assert.Contains(t, last.Warnings[0], "smoke tests failed")
}

func TestDeploy_ShadowTestsRunAgainstShadow(t *testing.T) {
	fake := &engine.Fake{}
	o := newTestOrchestrator(t, fake, WithShadowTests([]string{"orders_rowcount", "revenue_parity"}))

	_, err := o.Deploy(context.Background(), "prod")
	require.NoError(t, err)

	assert.Contains(t, fake.Calls, "test:orders_rowcount")
	assert.Contains(t, fake.Calls, "test:revenue_parity")
}

func TestDeploy_SwapFailureMarksRollbackAttempted(t *testing.T) {
	fake := &engine.Fake{
		MigrateResult: &engine.Result{Success: false, Stderr: "migration conflict"},
	}
	o := newTestOrchestrator(t, fake)

	rec, err := o.Deploy(context.Background(), "prod")
	require.Error(t, err)

	assert.Equal(t, StatusFailed, rec.Status)
	assert.True(t, rec.RollbackAttempted)
	last := rec.Steps[len(rec.Steps)-1]
	assert.Equal(t, "atomic_swap", last.Name)
	assert.Equal(t, StepFailed, last.Status)
}

func TestDeploy_EnvironmentLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(filepath.Join(dir, "deployments.json"))
	o := New(&engine.Fake{}, log, nil, dir)

	// Hold the lock the orchestrator will want.
	held, err := lockfile.Acquire(filepath.Join(dir, "deploy-prod.lock"))
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	_, err = o.Deploy(context.Background(), "prod")
	require.ErrorIs(t, err, ErrDeploymentInProgress)

	// A different environment is unaffected.
	_, err = o.Deploy(context.Background(), "staging")
	require.NoError(t, err)
}

func TestDeploy_EmptyEnvironmentRejected(t *testing.T) {
	o := newTestOrchestrator(t, &engine.Fake{})
	_, err := o.Deploy(context.Background(), "")
	require.Error(t, err)
}

func TestHistory_NewestFirstAndLimited(t *testing.T) {
	o := newTestOrchestrator(t, &engine.Fake{})

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := o.Deploy(context.Background(), fmt.Sprintf("env%d", i))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	hist, err := o.History(2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, ids[2], hist[0].ID)
	assert.Equal(t, ids[1], hist[1].ID)

	all, err := o.History(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLog_CappedAtMaxEntries(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "deployments.json"))

	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	for i := 0; i < MaxLogEntries+10; i++ {
		rec := &Record{
			ID:          fmt.Sprintf("deploy-%04d", i),
			Environment: "prod",
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			Status:      StatusCompleted,
		}
		require.NoError(t, log.Append(rec))
	}

	records, err := log.Records()
	require.NoError(t, err)
	require.Len(t, records, MaxLogEntries)

	// Oldest evicted first.
	assert.Equal(t, "deploy-0010", records[0].ID)
	assert.Equal(t, fmt.Sprintf("deploy-%04d", MaxLogEntries+9), records[len(records)-1].ID)
}

func TestLog_FindUnknownID(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "deployments.json"))
	_, err := log.Find("deploy-nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDeploy_EngineErrorSurfacesWrapped(t *testing.T) {
	fake := &engine.Fake{Err: errors.New("sqlmesh binary not found")}
	o := newTestOrchestrator(t, fake)

	rec, err := o.Deploy(context.Background(), "prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlmesh binary not found")
	assert.Equal(t, StatusFailed, rec.Status)
}

func TestReport_ContainsAllSteps(t *testing.T) {
	o := newTestOrchestrator(t, &engine.Fake{})

	rec, err := o.Deploy(context.Background(), "prod")
	require.NoError(t, err)

	report := Report(rec)
	assert.True(t, strings.HasPrefix(report, "# Deployment Report: "+rec.ID))
	for _, name := range pipelineOrder {
		assert.Contains(t, report, "| "+name+" |")
	}
	assert.Contains(t, report, "**Environment:** prod")
	assert.Contains(t, report, "**Status:** completed")
}

func TestReport_FailedDeployment(t *testing.T) {
	fake := &engine.Fake{
		MigrateResult: &engine.Result{Success: false, Stderr: "migration conflict"},
	}
	o := newTestOrchestrator(t, fake)

	rec, _ := o.Deploy(context.Background(), "prod")
	report := Report(rec)

	assert.Contains(t, report, "**Status:** failed")
	assert.Contains(t, report, "**Rollback attempted:** yes")
	assert.Contains(t, report, "migration conflict")
}

func TestNewRecordID_Shape(t *testing.T) {
	id := newRecordID(time.Date(2024, 1, 15, 9, 30, 42, 0, time.UTC))
	assert.True(t, strings.HasPrefix(id, "deploy-20240115-093042-"))
	assert.Len(t, id, len("deploy-20240115-093042-")+8)
}

func TestDeploy_ClockDrivesDuration(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	o := newTestOrchestrator(t, &engine.Fake{}, withClock(clock))
	rec, err := o.Deploy(context.Background(), "prod")
	require.NoError(t, err)
	assert.Greater(t, rec.DurationMS, int64(0))
}
