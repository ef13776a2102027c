package deploy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ValidationFailureError means a boolean pre/shadow/safety check came
// back false. The deployment aborts before any mutation; safe to retry
// once the root cause is fixed.
type ValidationFailureError struct {
	Step   string
	Check  string
	Detail string
}

func (e *ValidationFailureError) Error() string {
	msg := fmt.Sprintf("%s: check %s failed", e.Step, e.Check)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Destructive-SQL screens. Regex over the diff text is a heuristic;
// the patterns are word-anchored to limit false positives.
var breakingChangePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`),
	regexp.MustCompile(`(?i)\bDROP\s+COLUMN\b`),
	regexp.MustCompile(`(?i)\bALTER\s+\S+[^;]*\bNOT\s+NULL\b`),
	regexp.MustCompile(`(?i)\bDELETE\s+FROM\b`),
}

var dataLossPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bDROP\b`),
	regexp.MustCompile(`(?i)\bTRUNCATE\b`),
	regexp.MustCompile(`(?i)\bDELETE\b`),
}

func matchAny(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, p := range patterns {
		if m := p.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

// preValidation runs the four gate checks. All must pass; any false
// aborts before any mutation occurs.
func (o *Orchestrator) preValidation(ctx context.Context, env string) (string, []string, error) {
	const step = "pre_validation"

	status, err := o.engine.Status(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine status: %w", step, err)
	}
	if !status.Success {
		return "", nil, &ValidationFailureError{Step: step, Check: "environment_ready", Detail: firstLine(status.Stderr)}
	}

	auditRes, err := o.engine.Audit(ctx, "")
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine audit: %w", step, err)
	}
	if !auditRes.Success {
		return "", nil, &ValidationFailureError{Step: step, Check: "models_valid", Detail: firstLine(auditRes.Stderr)}
	}

	testRes, err := o.engine.Test(ctx, "")
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine test: %w", step, err)
	}
	if !testRes.Success {
		return "", nil, &ValidationFailureError{Step: step, Check: "tests_passing", Detail: firstLine(testRes.Stderr)}
	}

	diffRes, err := o.engine.Diff(ctx, env)
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine diff: %w", step, err)
	}
	if match, found := matchAny(breakingChangePatterns, diffRes.Stdout); found {
		return "", nil, &ValidationFailureError{Step: step, Check: "no_breaking_changes",
			Detail: fmt.Sprintf("destructive pattern %q in diff", match)}
	}

	return "environment_ready, models_valid, tests_passing, no_breaking_changes", nil, nil
}

// createShadow materializes the candidate through the engine's
// non-destructive planning primitive; nothing is exposed to traffic.
func (o *Orchestrator) createShadow(ctx context.Context, env string) (string, []string, error) {
	const step = "create_shadow"

	res, err := o.engine.Plan(ctx, env, false)
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine plan: %w", step, err)
	}
	if !res.Success {
		return "", nil, &ValidationFailureError{Step: step, Check: "shadow_created", Detail: firstLine(res.Stderr)}
	}
	return "shadow environment planned for " + env, nil, nil
}

// shadowValidation re-runs audits plus the configured synthetic tests
// against the shadow.
func (o *Orchestrator) shadowValidation(ctx context.Context, env string) (string, []string, error) {
	const step = "shadow_validation"

	res, err := o.engine.Audit(ctx, "")
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine audit: %w", step, err)
	}
	if !res.Success {
		return "", nil, &ValidationFailureError{Step: step, Check: "shadow_audits", Detail: firstLine(res.Stderr)}
	}

	for _, name := range o.shadowTests {
		res, err := o.engine.Test(ctx, name)
		if err != nil {
			return "", nil, fmt.Errorf("%s: test %s: %w", step, name, err)
		}
		if !res.Success {
			return "", nil, &ValidationFailureError{Step: step, Check: "shadow_test:" + name, Detail: firstLine(res.Stderr)}
		}
	}

	return fmt.Sprintf("audits passed, %d synthetic tests passed", len(o.shadowTests)), nil, nil
}

// safetyChecks runs the pre-swap screens: the data-loss diff scan plus
// the three policy hooks.
func (o *Orchestrator) safetyChecks(ctx context.Context, env string) (string, []string, error) {
	const step = "safety_checks"

	diffRes, err := o.engine.Diff(ctx, env)
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine diff: %w", step, err)
	}
	if match, found := matchAny(dataLossPatterns, diffRes.Stdout); found {
		return "", nil, &ValidationFailureError{Step: step, Check: "no_data_loss",
			Detail: fmt.Sprintf("data-loss pattern %q in diff", match)}
	}

	for _, hook := range []struct {
		name string
		fn   PolicyCheck
	}{
		{"schema_compatible", o.policy.SchemaCompatible},
		{"performance_acceptable", o.policy.PerformanceAcceptable},
		{"rollback_possible", o.policy.RollbackPossible},
	} {
		if hook.fn == nil {
			continue // unset hooks default to pass
		}
		ok, detail, err := hook.fn(ctx, env)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %s: %w", step, hook.name, err)
		}
		if !ok {
			return "", nil, &ValidationFailureError{Step: step, Check: hook.name, Detail: detail}
		}
	}

	return "no_data_loss, schema_compatible, performance_acceptable, rollback_possible", nil, nil
}

// atomicSwap is the sole mutating, traffic-affecting step.
func (o *Orchestrator) atomicSwap(ctx context.Context, env string) (string, []string, error) {
	const step = "atomic_swap"

	res, err := o.engine.Migrate(ctx, env)
	if err != nil {
		return "", nil, fmt.Errorf("%s: engine migrate: %w", step, err)
	}
	if !res.Success {
		return "", nil, &ValidationFailureError{Step: step, Check: "migration", Detail: firstLine(res.Stderr)}
	}
	return "traffic cut over to " + env, nil, nil
}

// postValidation runs smoke tests and an error scan after the swap.
// Failures here are warnings, not fatal: the swap already happened and
// bouncing traffic again on a flaky smoke test is worse than paging.
func (o *Orchestrator) postValidation(ctx context.Context, env string) (string, []string, error) {
	const step = "post_validation"
	var warnings []string

	testRes, err := o.engine.Test(ctx, "")
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("smoke tests errored: %v", err))
	} else if !testRes.Success {
		warnings = append(warnings, "smoke tests failed: "+firstLine(testRes.Stderr))
	}

	auditRes, err := o.engine.Audit(ctx, "")
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("post-swap audit errored: %v", err))
	} else if !auditRes.Success {
		warnings = append(warnings, "post-swap audit failed: "+firstLine(auditRes.Stderr))
	}

	if len(warnings) > 0 {
		_ = o.aud.LogSecurityEvent("warning", "post_validation_warnings", map[string]any{
			"environment": env,
			"warnings":    warnings,
		})
		return "completed with warnings", warnings, nil
	}
	return "smoke tests and error scan clean", nil, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
