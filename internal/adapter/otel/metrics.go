package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "medscribe"

// Metrics holds the orchestrator metric instruments.
type Metrics struct {
	FragmentsProcessed metric.Int64Counter
	FragmentsFailed    metric.Int64Counter
	AgentActivations   metric.Int64Counter
	AgentFailures      metric.Int64Counter
	PipelineDuration   metric.Float64Histogram
	Confidence         metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.FragmentsProcessed, err = meter.Int64Counter("medscribe.fragments.processed",
		metric.WithDescription("Fragments that produced a response"))
	if err != nil {
		return nil, err
	}

	m.FragmentsFailed, err = meter.Int64Counter("medscribe.fragments.failed",
		metric.WithDescription("Fragments aborted by a pipeline error"))
	if err != nil {
		return nil, err
	}

	m.AgentActivations, err = meter.Int64Counter("medscribe.agent.activations",
		metric.WithDescription("Agents activated by their trigger rules"))
	if err != nil {
		return nil, err
	}

	m.AgentFailures, err = meter.Int64Counter("medscribe.agent.failures",
		metric.WithDescription("Agent invocations that failed, panicked or timed out"))
	if err != nil {
		return nil, err
	}

	m.PipelineDuration, err = meter.Float64Histogram("medscribe.pipeline.duration_seconds",
		metric.WithDescription("Fragment pipeline duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.Confidence, err = meter.Float64Histogram("medscribe.response.confidence",
		metric.WithDescription("Aggregate response confidence"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
