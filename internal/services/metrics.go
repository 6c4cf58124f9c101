package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "huddle-admin/backend/internal/services"

// Metrics holds the orchestrator's OpenTelemetry instruments.
type Metrics struct {
	runsStarted    metric.Int64Counter
	matchesCreated metric.Int64Counter
	recoveries     metric.Int64Counter
	completions    metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error
	if m.runsStarted, err = meter.Int64Counter("generation_runs_started",
		metric.WithDescription("Generation runs queued by admins")); err != nil {
		return nil, err
	}
	if m.matchesCreated, err = meter.Int64Counter("rating_matches_created",
		metric.WithDescription("Rating matches seeded by the bracket builder")); err != nil {
		return nil, err
	}
	if m.recoveries, err = meter.Int64Counter("recovery_operations",
		metric.WithDescription("Force-complete and reset operations")); err != nil {
		return nil, err
	}
	if m.completions, err = meter.Int64Counter("completions_ingested",
		metric.WithDescription("Completions written by the generation worker")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) runStarted(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.runsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

func (m *Metrics) matches(ctx context.Context, source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.matchesCreated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) recovery(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.recoveries.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *Metrics) completion(ctx context.Context, ready bool) {
	if m == nil {
		return
	}
	m.completions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("instance_ready", ready)))
}
