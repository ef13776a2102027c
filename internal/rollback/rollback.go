package rollback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/audit"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/flags"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/runner"
)

// UnknownStoryError is returned for story IDs with no mapping.
type UnknownStoryError struct {
	StoryID string
}

func (e *UnknownStoryError) Error() string {
	return fmt.Sprintf("unknown story %q", e.StoryID)
}

// ScriptExecutionError means the rollback script ran and exited
// non-zero. Carries the exit code and captured stderr for human
// remediation; distinct from a spawn failure (script missing or not
// startable).
type ScriptExecutionError struct {
	StoryID  string
	Script   string
	ExitCode int
	Stderr   string
}

func (e *ScriptExecutionError) Error() string {
	return fmt.Sprintf("rollback script for story %s exited %d: %s",
		e.StoryID, e.ExitCode, e.Stderr)
}

// Result is the outcome of one story rollback.
type Result struct {
	StoryID  string `json:"story"`
	Feature  string `json:"feature"`
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// Options controls a single story rollback.
type Options struct {
	DryRun   bool
	Verbose  bool
	Reason   string
	KeepFlag bool // leave the mapped feature flag untouched on success
}

// MultiOptions controls a multi-story rollback.
type MultiOptions struct {
	ContinueOnError bool
	DryRun          bool
}

// Orchestrator executes story rollbacks.
type Orchestrator struct {
	mappings   Mappings
	scriptsDir string
	store      *flags.Store
	run        *runner.Runner
	aud        *audit.Logger
}

// New creates an orchestrator. store may be nil when no registry is
// available; flag state then reports disabled and successful rollbacks
// skip the flag update.
func New(mappings Mappings, scriptsDir string, store *flags.Store, run *runner.Runner, aud *audit.Logger) *Orchestrator {
	return &Orchestrator{
		mappings:   mappings,
		scriptsDir: scriptsDir,
		store:      store,
		run:        run,
		aud:        aud,
	}
}

// RollbackStory executes the rollback script for storyID. The script
// receives ROLLBACK_DRY_RUN=1 or 0 in its environment. A non-zero exit
// returns a ScriptExecutionError; on success the mapped feature flag is
// disabled (unless dry-run or KeepFlag) and an audit pair is emitted.
func (o *Orchestrator) RollbackStory(ctx context.Context, storyID string, opts Options) (*Result, error) {
	mapping, ok := o.mappings[storyID]
	if !ok {
		return nil, &UnknownStoryError{StoryID: storyID}
	}

	scriptPath := filepath.Join(o.scriptsDir, mapping.Script)
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("rollback script for story %s not found at %s: %w",
			storyID, scriptPath, err)
	}

	_ = o.aud.RollbackInitiated(storyID, mapping.Feature, opts.Reason, opts.DryRun)

	dryRun := "0"
	if opts.DryRun {
		dryRun = "1"
	}
	res, err := o.run.Run(ctx, scriptPath, nil, map[string]string{
		"ROLLBACK_DRY_RUN": dryRun,
	})
	if err != nil {
		return nil, fmt.Errorf("rolling back story %s: %w", storyID, err)
	}

	result := &Result{
		StoryID:  storyID,
		Feature:  mapping.Feature,
		Success:  res.ExitCode == 0,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	}

	if res.ExitCode != 0 {
		return result, &ScriptExecutionError{
			StoryID:  storyID,
			Script:   mapping.Script,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}

	if !opts.DryRun && !opts.KeepFlag && o.store != nil {
		if _, err := o.store.DisableFeature(mapping.Feature, false); err != nil {
			// A mapping may reference a feature absent from this
			// environment's registry; the rollback itself succeeded.
			var unknown *flags.UnknownFeatureError
			if !errors.As(err, &unknown) {
				return result, fmt.Errorf("disabling feature %s after rollback: %w",
					mapping.Feature, err)
			}
		}
	}

	_ = o.aud.RollbackCompleted(storyID, mapping.Feature, opts.DryRun)
	return result, nil
}

// RollbackMultipleStories rolls back storyIDs in reverse of the given
// order: later stories may depend on earlier ones, so undo proceeds
// newest-first. Results are returned in execution order. On the first
// failure the run stops (the failing result included) unless
// ContinueOnError is set; err is the first failure either way.
func (o *Orchestrator) RollbackMultipleStories(ctx context.Context, storyIDs []string, opts MultiOptions) ([]*Result, error) {
	var results []*Result
	var firstErr error

	for i := len(storyIDs) - 1; i >= 0; i-- {
		storyID := storyIDs[i]
		res, err := o.RollbackStory(ctx, storyID, Options{DryRun: opts.DryRun})
		if res == nil && err != nil {
			// Precondition failure (unknown story, missing script):
			// no script ran, synthesize a failed result so the caller
			// still sees which story stopped the run.
			res = &Result{StoryID: storyID, ExitCode: -1, Stderr: err.Error()}
		}
		results = append(results, res)

		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("story %s: %w", storyID, err)
			}
			if !opts.ContinueOnError {
				return results, firstErr
			}
		}
	}
	return results, firstErr
}
