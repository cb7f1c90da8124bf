package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	msotel "github.com/Strob0t/MedScribe/internal/adapter/otel"
	"github.com/Strob0t/MedScribe/internal/config"
	"github.com/Strob0t/MedScribe/internal/domain"
	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/domain/trigger"
	"github.com/Strob0t/MedScribe/internal/logger"
	"github.com/Strob0t/MedScribe/internal/port/extraction"
	"github.com/Strob0t/MedScribe/internal/port/specialist"
)

// Stage names used in failure reports.
const (
	StageValidation     = "validation"
	StageExtraction     = "extraction"
	StageClassification = "classification"
	StagePersistence    = "persistence"
	StagePipeline       = "pipeline"
)

// AgentInfo describes a registered agent for listings.
type AgentInfo struct {
	Name    string `json:"name"`
	Trigger string `json:"trigger,omitempty"`
}

// Orchestrator runs the per-fragment pipeline: extraction, classification,
// trigger evaluation, concurrent agent dispatch and aggregation. The agent
// list is fixed at construction and read-only afterwards.
type Orchestrator struct {
	extractor  extraction.Extractor
	classifier *IntentClassifier
	agents     []specialist.Agent
	cfg        config.Orchestrator
	metrics    *msotel.Metrics
	now        func() time.Time
}

// NewOrchestrator creates an Orchestrator. Agents are evaluated and
// aggregated in the given order.
func NewOrchestrator(ext extraction.Extractor, cls *IntentClassifier, agents []specialist.Agent, cfg config.Orchestrator) *Orchestrator {
	return &Orchestrator{
		extractor:  ext,
		classifier: cls,
		agents:     append([]specialist.Agent(nil), agents...),
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetMetrics enables metric recording.
func (o *Orchestrator) SetMetrics(m *msotel.Metrics) { o.metrics = m }

// SetClock overrides the clock used for ProcessedAt.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Agents lists the registered agents in declaration order.
func (o *Orchestrator) Agents() []AgentInfo {
	out := make([]AgentInfo, 0, len(o.agents))
	for _, a := range o.agents {
		info := AgentInfo{Name: a.Name()}
		if d, ok := a.(interface{ Trigger() string }); ok {
			info.Trigger = d.Trigger()
		}
		out = append(out, info)
	}
	return out
}

// Process runs the pipeline for one fragment. Pipeline errors (validation,
// extraction, classification) abort the fragment and are returned; agent
// failures only degrade the response.
func (o *Orchestrator) Process(ctx context.Context, frag fragment.Fragment) (*agent.Response, error) {
	if err := frag.Validate(); err != nil {
		return nil, err
	}
	if frag.ID == "" {
		frag.ID = uuid.NewString()
	}
	ctx = logger.WithFragmentID(ctx, frag.ID)
	ctx, span := msotel.StartFragmentSpan(ctx, frag.ID, frag.SubjectID)
	defer span.End()
	start := time.Now()

	resp, err := o.process(ctx, frag)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if o.metrics != nil {
			o.metrics.FragmentsFailed.Add(ctx, 1)
		}
		slog.WarnContext(ctx, "fragment aborted", "error", err)
		return nil, err
	}

	resp.ID = uuid.NewString()
	resp.FragmentID = frag.ID
	resp.SubjectID = frag.SubjectID
	resp.ProcessedAt = o.now().UTC()

	span.SetAttributes(
		attribute.String("response.status", string(resp.Status)),
		attribute.Int("response.agents", len(resp.TriggeredAgents)),
	)
	if o.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("status", string(resp.Status)))
		o.metrics.FragmentsProcessed.Add(ctx, 1, attrs)
		o.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		if resp.AggregateConfidence != nil {
			o.metrics.Confidence.Record(ctx, *resp.AggregateConfidence)
		}
	}
	slog.InfoContext(ctx, "fragment processed",
		"status", resp.Status,
		"agents", resp.TriggeredAgents,
		"documents", len(resp.Documents),
		"duration", time.Since(start),
	)
	return resp, nil
}

func (o *Orchestrator) process(ctx context.Context, frag fragment.Fragment) (*agent.Response, error) {
	extCtx, extSpan := msotel.StartStageSpan(ctx, StageExtraction)
	entities, err := o.extractor.Extract(extCtx, frag.Text)
	extSpan.End()
	if err != nil {
		if !errors.Is(err, domain.ErrExtraction) {
			err = fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		return nil, err
	}

	clsCtx, clsSpan := msotel.StartStageSpan(ctx, StageClassification)
	intents, err := o.classifier.Classify(clsCtx, frag, entities)
	clsSpan.End()
	if err != nil {
		return nil, err
	}

	signals := trigger.NewSignals(frag.Text, intents, entities)
	var active []specialist.Agent
	for _, a := range o.agents {
		if a.ShouldActivate(signals) {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		resp := agent.NoAgentActivated()
		return &resp, nil
	}
	if o.metrics != nil {
		for _, a := range active {
			o.metrics.AgentActivations.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", a.Name())))
		}
	}

	outcomes := o.dispatch(ctx, active, frag, entities, intents)
	resp := agent.Aggregate(outcomes)
	if ctx.Err() != nil {
		resp.Status = agent.StatusDegraded
	}
	return &resp, nil
}

// dispatch runs the active agents concurrently. Outcomes keep the order of
// active regardless of completion order. A failing agent never cancels its
// siblings, so the group is not derived from ctx.
func (o *Orchestrator) dispatch(ctx context.Context, active []specialist.Agent, frag fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) []agent.Outcome {
	outcomes := make([]agent.Outcome, len(active))
	var g errgroup.Group
	if o.cfg.MaxParallel > 0 {
		g.SetLimit(o.cfg.MaxParallel)
	}
	for i, a := range active {
		g.Go(func() error {
			outcomes[i] = o.run(ctx, a, frag, clinical.Clone(entities), maps.Clone(intents))
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *Orchestrator) run(ctx context.Context, a specialist.Agent, frag fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (out agent.Outcome) {
	out.Agent = a.Name()
	if err := ctx.Err(); err != nil {
		out.Err = fmt.Errorf("%w: %w", domain.ErrAgentExecution, err)
		return out
	}

	if o.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AgentTimeout)
		defer cancel()
	}
	ctx, span := msotel.StartAgentSpan(ctx, out.Agent)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			out.Result = agent.Result{}
			out.Err = fmt.Errorf("%w: panic: %v", domain.ErrAgentExecution, r)
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
			if o.metrics != nil {
				o.metrics.AgentFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", out.Agent)))
			}
			slog.WarnContext(ctx, "agent failed", "agent", out.Agent, "error", out.Err)
		}
	}()

	res, err := a.Process(ctx, frag, entities, intents)
	if err != nil {
		out.Err = fmt.Errorf("%w: %w", domain.ErrAgentExecution, err)
		return out
	}
	out.Result = res.Normalize()
	return out
}
