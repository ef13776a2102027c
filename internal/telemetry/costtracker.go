package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Usage describes the cost impact of one deployment execution.
type Usage struct {
	ComputeHours    float64
	ModelsProcessed int64
	Deployment      bool
}

// CostTracker records per-environment execution cost metrics.
type CostTracker struct {
	computeHours metric.Float64Counter
	models       metric.Int64Counter
	deployments  metric.Int64Counter
}

// NewCostTracker creates the cost instruments on the global meter.
// With telemetry disabled the instruments are no-ops.
func NewCostTracker() (*CostTracker, error) {
	meter := otel.Meter(instrumentationScope)

	computeHours, err := meter.Float64Counter("dpa.deploy.compute_hours",
		metric.WithDescription("Compute hours consumed by deployments"))
	if err != nil {
		return nil, fmt.Errorf("cost tracker: %w", err)
	}
	models, err := meter.Int64Counter("dpa.deploy.models_processed",
		metric.WithDescription("Models processed during deployments"))
	if err != nil {
		return nil, fmt.Errorf("cost tracker: %w", err)
	}
	deployments, err := meter.Int64Counter("dpa.deploy.deployments",
		metric.WithDescription("Completed deployment count"))
	if err != nil {
		return nil, fmt.Errorf("cost tracker: %w", err)
	}

	return &CostTracker{
		computeHours: computeHours,
		models:       models,
		deployments:  deployments,
	}, nil
}

// TrackExecution records the cost impact of a deployment to environment.
// A nil tracker discards.
func (t *CostTracker) TrackExecution(ctx context.Context, environment string, u Usage) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("environment", environment),
		attribute.Bool("deployment", u.Deployment),
	)
	t.computeHours.Add(ctx, u.ComputeHours, attrs)
	t.models.Add(ctx, u.ModelsProcessed, attrs)
	if u.Deployment {
		t.deployments.Add(ctx, 1, attrs)
	}
}
