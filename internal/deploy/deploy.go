package deploy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/audit"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/engine"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/lockfile"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/telemetry"
)

// ErrDeploymentInProgress means another deployment holds the lock for
// the target environment.
var ErrDeploymentInProgress = errors.New("deployment already in progress for this environment")

// PolicyCheck is a safety-check hook. It returns pass/fail plus a
// human-readable detail for the failure path.
type PolicyCheck func(ctx context.Context, environment string) (ok bool, detail string, err error)

// SafetyPolicy holds the pluggable safety checks. Unset hooks default
// to pass, pending a concrete backend.
type SafetyPolicy struct {
	SchemaCompatible      PolicyCheck
	PerformanceAcceptable PolicyCheck
	RollbackPossible      PolicyCheck
}

// Orchestrator runs blue-green deployments.
type Orchestrator struct {
	engine      engine.Client
	log         *Log
	aud         *audit.Logger
	costs       *telemetry.CostTracker
	lockDir     string
	policy      SafetyPolicy
	shadowTests []string

	now func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy installs the safety-check hooks.
func WithPolicy(p SafetyPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithShadowTests sets the synthetic tests re-run against the shadow
// environment during shadow_validation.
func WithShadowTests(names []string) Option {
	return func(o *Orchestrator) { o.shadowTests = names }
}

// WithCostTracker installs the cost reporting collaborator.
func WithCostTracker(t *telemetry.CostTracker) Option {
	return func(o *Orchestrator) { o.costs = t }
}

func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. lockDir holds the per-environment lock
// files; aud may be nil to discard audit events.
func New(client engine.Client, log *Log, aud *audit.Logger, lockDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:  client,
		log:     log,
		aud:     aud,
		lockDir: lockDir,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type stepFunc func(ctx context.Context, env string) (result string, warnings []string, err error)

type stepDef struct {
	name     string
	mutating bool
	fn       stepFunc
}

func (o *Orchestrator) pipeline() []stepDef {
	return []stepDef{
		{"pre_validation", false, o.preValidation},
		{"create_shadow", false, o.createShadow},
		{"shadow_validation", false, o.shadowValidation},
		{"safety_checks", false, o.safetyChecks},
		{"atomic_swap", true, o.atomicSwap},
		{"post_validation", false, o.postValidation},
	}
}

// Deploy runs the six-step blue-green pipeline against environment.
// The returned record is fully populated even on failure, preserving
// the partial step history; the error is non-nil whenever the record
// status is failed. Steps run strictly sequentially: each depends on
// the previous step's side effects.
func (o *Orchestrator) Deploy(ctx context.Context, environment string) (*Record, error) {
	if environment == "" {
		return nil, fmt.Errorf("deploy: environment is required")
	}

	lock, err := lockfile.Acquire(filepath.Join(o.lockDir, "deploy-"+environment+".lock"))
	if err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			return nil, fmt.Errorf("deploy to %s: %w", environment, ErrDeploymentInProgress)
		}
		return nil, fmt.Errorf("deploy to %s: %w", environment, err)
	}
	defer func() { _ = lock.Release() }()

	started := o.now()
	rec := &Record{
		ID:          newRecordID(started),
		Environment: environment,
		StartedAt:   started,
		Status:      StatusInProgress,
	}

	_ = o.aud.LogSecurityEvent("info", "deployment_started", map[string]any{
		"deployment":  rec.ID,
		"environment": environment,
	})

	for _, def := range o.pipeline() {
		if stepErr := o.runStep(ctx, rec, environment, def); stepErr != nil {
			o.fail(ctx, rec, stepErr)
			if logErr := o.log.Append(rec); logErr != nil {
				return rec, errors.Join(stepErr, logErr)
			}
			return rec, stepErr
		}
	}

	completed := o.now()
	rec.Status = StatusCompleted
	rec.CompletedAt = &completed
	rec.DurationMS = completed.Sub(rec.StartedAt).Milliseconds()

	_ = o.aud.DeploymentCompleted(rec.ID, environment, completed.Sub(rec.StartedAt))
	o.costs.TrackExecution(ctx, environment, telemetry.Usage{
		ComputeHours:    completed.Sub(rec.StartedAt).Hours(),
		ModelsProcessed: int64(len(rec.Steps)),
		Deployment:      true,
	})

	if err := o.log.Append(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// runStep executes one step through the uniform executor: the step is
// timestamped and appended to the record regardless of outcome, so the
// audit trail is complete even on partial failure.
func (o *Orchestrator) runStep(ctx context.Context, rec *Record, env string, def stepDef) error {
	step := Step{
		Name:      def.name,
		Status:    StepRunning,
		Mutating:  def.mutating,
		StartedAt: o.now(),
	}

	result, warnings, err := def.fn(ctx, env)

	ended := o.now()
	step.DurationMS = ended.Sub(step.StartedAt).Milliseconds()
	step.Warnings = warnings

	if err != nil {
		step.Status = StepFailed
		step.FailedAt = &ended
		step.Error = err.Error()
		rec.Steps = append(rec.Steps, step)
		return err
	}

	step.Status = StepCompleted
	step.CompletedAt = &ended
	step.Result = result
	rec.Steps = append(rec.Steps, step)
	return nil
}

// fail marks the record failed and attempts a rollback.
func (o *Orchestrator) fail(ctx context.Context, rec *Record, cause error) {
	failed := o.now()
	rec.Status = StatusFailed
	rec.FailedAt = &failed
	rec.Error = cause.Error()
	rec.DurationMS = failed.Sub(rec.StartedAt).Milliseconds()

	_ = o.aud.DeploymentFailed(rec.ID, rec.Environment, cause.Error())
	o.rollback(ctx, rec)
}

// rollback records the rollback attempt after a failed deployment.
// Only atomic_swap mutates; the engine is trusted to self-revert a
// failed migrate, so no destructive engine operation is re-run here.
// When no mutating step completed there is nothing to undo and the
// attempt is a no-op beyond the audit trail.
func (o *Orchestrator) rollback(ctx context.Context, rec *Record) {
	rec.RollbackAttempted = true

	swapped := false
	for _, step := range rec.Steps {
		if step.Mutating && step.Status == StepCompleted {
			swapped = true
			break
		}
	}

	_ = o.aud.LogSecurityEvent("warning", "deployment_rollback", map[string]any{
		"deployment":    rec.ID,
		"environment":   rec.Environment,
		"swap_occurred": swapped,
	})
}

// History returns the most recent n deployments, newest first. n <= 0
// returns everything.
func (o *Orchestrator) History(n int) ([]*Record, error) {
	records, err := o.log.Records()
	if err != nil {
		return nil, err
	}
	// newest last on disk -> reverse
	out := make([]*Record, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, records[i])
		if n > 0 && len(out) == n {
			break
		}
	}
	return out, nil
}

// Status returns the logged record with the given ID.
func (o *Orchestrator) Status(id string) (*Record, error) {
	return o.log.Find(id)
}
