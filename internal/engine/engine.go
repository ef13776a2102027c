// Package engine provides the transformation-engine client used by the
// deployment orchestrator. The engine owns all SQL execution; dpa only
// drives it through a narrow request/response surface and inspects the
// text it returns.
package engine

import "context"

// Result is the structured outcome of one engine invocation.
type Result struct {
	Success bool
	Stdout  string
	Stderr  string
}

// Client is the consumed engine contract. Status, Audit, Test, and
// Diff are read-only; Plan materializes a candidate without exposing
// it to traffic; Migrate is the sole traffic-affecting operation.
type Client interface {
	Status(ctx context.Context) (*Result, error)
	Audit(ctx context.Context, model string) (*Result, error)
	Test(ctx context.Context, model string) (*Result, error)
	Diff(ctx context.Context, environment string) (*Result, error)
	Plan(ctx context.Context, environment string, autoApply bool) (*Result, error)
	Migrate(ctx context.Context, environment string) (*Result, error)
}
