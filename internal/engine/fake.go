package engine

import (
	"context"
	"sync"
)

// Fake is an in-memory Client for tests and dry wiring. Each operation
// returns the configured result (success with empty output when
// unconfigured) and is appended to Calls.
type Fake struct {
	mu    sync.Mutex
	Calls []string

	StatusResult  *Result
	AuditResult   *Result
	TestResult    *Result
	DiffResult    *Result
	PlanResult    *Result
	MigrateResult *Result

	// Err, when set, is returned by every operation.
	Err error
}

var _ Client = (*Fake)(nil)

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}

func (f *Fake) result(r *Result) (*Result, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if r == nil {
		return &Result{Success: true}, nil
	}
	return r, nil
}

func (f *Fake) Status(ctx context.Context) (*Result, error) {
	f.record("status")
	return f.result(f.StatusResult)
}

func (f *Fake) Audit(ctx context.Context, model string) (*Result, error) {
	f.record("audit:" + model)
	return f.result(f.AuditResult)
}

func (f *Fake) Test(ctx context.Context, model string) (*Result, error) {
	f.record("test:" + model)
	return f.result(f.TestResult)
}

func (f *Fake) Diff(ctx context.Context, environment string) (*Result, error) {
	f.record("diff:" + environment)
	return f.result(f.DiffResult)
}

func (f *Fake) Plan(ctx context.Context, environment string, autoApply bool) (*Result, error) {
	call := "plan:" + environment
	if autoApply {
		call += ":auto"
	}
	f.record(call)
	return f.result(f.PlanResult)
}

func (f *Fake) Migrate(ctx context.Context, environment string) (*Result, error) {
	f.record("migrate:" + environment)
	return f.result(f.MigrateResult)
}
