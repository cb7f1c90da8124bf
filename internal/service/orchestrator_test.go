package service_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/MedScribe/internal/config"
	"github.com/Strob0t/MedScribe/internal/domain"
	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/domain/temporal"
	"github.com/Strob0t/MedScribe/internal/port/generation"
	port "github.com/Strob0t/MedScribe/internal/port/specialist"
	"github.com/Strob0t/MedScribe/internal/service"
	"github.com/Strob0t/MedScribe/internal/specialist"
)

var fixedNow = time.Date(2024, time.March, 10, 14, 30, 0, 0, temporal.Zone)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// defaultAgents builds the stock agents with canned generators.
func defaultAgents(t *testing.T, cal *fakeCalendar) []port.Agent {
	t.Helper()
	gens := map[string]generation.Generator{}
	for _, a := range config.DefaultAgents() {
		name := a.Name
		gens[name] = generation.Func(func(context.Context, string) (string, error) {
			return "conteúdo " + name, nil
		})
	}
	specs, err := specialist.Specs(config.DefaultAgents(), specialist.Deps{
		Generators: gens,
		Calendar:   cal,
		Now:        func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatal(err)
	}
	reg := port.NewRegistry()
	if err := specialist.Register(reg); err != nil {
		t.Fatal(err)
	}
	agents, err := reg.Build(specs)
	if err != nil {
		t.Fatal(err)
	}
	return agents
}

func newOrchestrator(ext *fakeExtractor, llm *fakeCompleter, agents []port.Agent, cfg config.Orchestrator) *service.Orchestrator {
	o := service.NewOrchestrator(ext, service.NewIntentClassifier(llm), agents, cfg)
	o.SetClock(func() time.Time { return fixedNow })
	return o
}

func TestOrchestrator_PrescriptionScenario(t *testing.T) {
	ext := &fakeExtractor{entities: []clinical.Entity{
		{Text: "ibuprofeno", Category: clinical.CategoryMedicationName, Confidence: 0.98},
		{Text: "600mg", Category: clinical.CategoryDosage, Confidence: 0.95},
		{Text: "duas vezes ao dia", Category: clinical.CategoryFrequency, Confidence: 0.9},
	}}
	llm := &fakeCompleter{reply: `{"prescribe": 0.85}`}
	o := newOrchestrator(ext, llm, defaultAgents(t, &fakeCalendar{}), config.Orchestrator{MaxParallel: 4})

	resp, err := o.Process(context.Background(), fragment.Fragment{
		Text: "paciente vai tomar ibuprofeno 600mg duas vezes ao dia", Speaker: "doctor", Confidence: 0.95,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Status != agent.StatusCompleted {
		t.Fatalf("status = %s", resp.Status)
	}
	if strings.Join(resp.TriggeredAgents, ",") != "prescription,evolution" {
		t.Fatalf("triggered = %v", resp.TriggeredAgents)
	}
	if len(resp.Documents) != 2 || resp.Documents[0].Type != specialist.DocPrescription || resp.Documents[1].Type != specialist.DocEvolution {
		t.Fatalf("unexpected documents %+v", resp.Documents)
	}
	if resp.AggregateConfidence == nil || !approx(*resp.AggregateConfidence, 0.9) {
		t.Fatalf("aggregate = %v, want 0.9", resp.AggregateConfidence)
	}
	if resp.ID == "" || resp.FragmentID == "" || !resp.ProcessedAt.Equal(fixedNow) {
		t.Errorf("response identity not populated: %+v", resp)
	}
}

func TestOrchestrator_IntentAloneActivatesAgents(t *testing.T) {
	tests := []struct {
		name, reply, text string
		triggered         string
		docs              int
		aggregate         float64
	}{
		// Without medication entities the prescription agent is listed but
		// reports confidence 0, leaving evolution as the only contributor.
		{"prescribe", `{"prescribe": 0.95}`, "vou passar o ibuprofeno para o senhor", "prescription,evolution", 1, 0.9},
		{"report", `{"report": 0.8}`, "preciso daquele papel para o trabalho", "report,evolution", 2, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{reply: tt.reply}, defaultAgents(t, &fakeCalendar{}), config.Orchestrator{})
			resp, err := o.Process(context.Background(), fragment.Fragment{Text: tt.text, Confidence: 0.9})
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(resp.TriggeredAgents, ",") != tt.triggered {
				t.Fatalf("triggered = %v, want %s", resp.TriggeredAgents, tt.triggered)
			}
			if len(resp.Documents) != tt.docs || resp.Documents[len(resp.Documents)-1].Type != specialist.DocEvolution {
				t.Fatalf("documents = %+v", resp.Documents)
			}
			if resp.AggregateConfidence == nil || !approx(*resp.AggregateConfidence, tt.aggregate) {
				t.Fatalf("aggregate = %v, want %v", resp.AggregateConfidence, tt.aggregate)
			}
		})
	}
}

func TestOrchestrator_AppointmentScenario(t *testing.T) {
	cal := &fakeCalendar{}
	o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{reply: `{"schedule": 0.75}`}, defaultAgents(t, cal), config.Orchestrator{})

	resp, err := o.Process(context.Background(), fragment.Fragment{Text: "vamos marcar retorno em 15 dias", Confidence: 0.8, SubjectID: "p-9"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(resp.TriggeredAgents, ",") != "appointment,evolution" {
		t.Fatalf("triggered = %v", resp.TriggeredAgents)
	}
	if len(resp.Actions) != 1 || !strings.Contains(resp.Actions[0], "25/03/2024 14:30") {
		t.Fatalf("actions = %v", resp.Actions)
	}
	if len(cal.events) != 1 || resp.SubjectID != "p-9" {
		t.Fatalf("expected one booking for p-9, got %d events", len(cal.events))
	}
}

func TestOrchestrator_OnlyEvolutionScenario(t *testing.T) {
	llm := &fakeCompleter{reply: `{"prescribe": 0.05, "schedule": 0.1, "report": 0.05, "document_evolution": 0.6}`}
	o := newOrchestrator(&fakeExtractor{}, llm, defaultAgents(t, &fakeCalendar{}), config.Orchestrator{})

	resp, err := o.Process(context.Background(), fragment.Fragment{Text: "o paciente disse que dormiu bem", Speaker: "patient", Confidence: 0.72})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.TriggeredAgents) != 1 || resp.TriggeredAgents[0] != "evolution" {
		t.Fatalf("triggered = %v", resp.TriggeredAgents)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Type != specialist.DocEvolution {
		t.Fatalf("documents = %+v", resp.Documents)
	}
	if !approx(*resp.AggregateConfidence, 0.72) {
		t.Errorf("aggregate = %v, want 0.72", *resp.AggregateConfidence)
	}
}

func TestOrchestrator_NoAgentActivated(t *testing.T) {
	idle := &stubAgent{name: "idle"}
	o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{reply: `{}`}, []port.Agent{idle}, config.Orchestrator{})

	resp, err := o.Process(context.Background(), fragment.Fragment{Text: "bom dia"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != agent.StatusNoAgentActivated || resp.AggregateConfidence != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.TriggeredAgents) != 0 || idle.calls.Load() != 0 {
		t.Fatal("no agent may run")
	}
}

func TestOrchestrator_PipelineErrorsAbort(t *testing.T) {
	tests := []struct {
		name        string
		ext         *fakeExtractor
		llm         *fakeCompleter
		frag        fragment.Fragment
		want        error
		classifyRun bool
	}{
		{"validation", &fakeExtractor{}, &fakeCompleter{reply: `{}`}, fragment.Fragment{Text: "  "}, domain.ErrValidation, false},
		{"extraction", &fakeExtractor{err: errors.New("503")}, &fakeCompleter{reply: `{}`}, fragment.Fragment{Text: "x"}, domain.ErrExtraction, false},
		{"classification backend", &fakeExtractor{}, &fakeCompleter{err: errors.New("timeout")}, fragment.Fragment{Text: "x"}, domain.ErrClassification, true},
		{"classification parse", &fakeExtractor{}, &fakeCompleter{reply: "not json"}, fragment.Fragment{Text: "x"}, domain.ErrClassificationParse, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			always := documentAgent("always", 1)
			o := newOrchestrator(tt.ext, tt.llm, []port.Agent{always}, config.Orchestrator{})

			resp, err := o.Process(context.Background(), tt.frag)
			if !errors.Is(err, tt.want) || resp != nil {
				t.Fatalf("expected %v and nil response, got %v / %+v", tt.want, err, resp)
			}
			if always.calls.Load() != 0 {
				t.Error("no agent may run after a pipeline error")
			}
			if ran := tt.llm.calls.Load() > 0; ran != tt.classifyRun {
				t.Errorf("classifier ran = %t, want %t", ran, tt.classifyRun)
			}
		})
	}
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	panicky := &stubAgent{name: "panicky", activate: true,
		process: func(context.Context, fragment.Fragment, []clinical.Entity, clinical.IntentVector) (agent.Result, error) {
			panic("boom")
		}}
	failing := &stubAgent{name: "failing", activate: true,
		process: func(context.Context, fragment.Fragment, []clinical.Entity, clinical.IntentVector) (agent.Result, error) {
			return agent.Result{}, errors.New("backend down")
		}}
	ok := documentAgent("ok", 0.6)

	o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{reply: `{}`}, []port.Agent{panicky, failing, ok}, config.Orchestrator{MaxParallel: 3})
	resp, err := o.Process(context.Background(), fragment.Fragment{Text: "x"})
	if err != nil {
		t.Fatalf("agent failures must not fail the fragment: %v", err)
	}
	if resp.Status != agent.StatusDegraded {
		t.Fatalf("status = %s, want degraded", resp.Status)
	}
	if len(resp.Failures) != 2 || resp.Failures[0].Agent != "panicky" || resp.Failures[1].Agent != "failing" {
		t.Fatalf("failures = %+v", resp.Failures)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Type != "ok" {
		t.Fatalf("surviving agent result lost: %+v", resp.Documents)
	}
	if !approx(*resp.AggregateConfidence, 0.6) {
		t.Errorf("aggregate = %v, failed agents must not count", *resp.AggregateConfidence)
	}
	if len(resp.Actions) != 2 || !strings.Contains(resp.Actions[0], "panicky") {
		t.Errorf("actions = %v", resp.Actions)
	}
}

func TestOrchestrator_AgentTimeout(t *testing.T) {
	slow := &stubAgent{name: "slow", activate: true,
		process: func(ctx context.Context, _ fragment.Fragment, _ []clinical.Entity, _ clinical.IntentVector) (agent.Result, error) {
			<-ctx.Done()
			return agent.Result{}, ctx.Err()
		}}
	fast := documentAgent("fast", 0.5)

	o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{reply: `{}`}, []port.Agent{slow, fast},
		config.Orchestrator{MaxParallel: 2, AgentTimeout: 20 * time.Millisecond})
	resp, err := o.Process(context.Background(), fragment.Fragment{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != agent.StatusDegraded || len(resp.Failures) != 1 || resp.Failures[0].Agent != "slow" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(resp.Failures[0].Error, context.DeadlineExceeded.Error()) {
		t.Errorf("failure should mention the deadline: %q", resp.Failures[0].Error)
	}
}

func TestOrchestrator_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	blocking := &stubAgent{name: "blocking", activate: true,
		process: func(ctx context.Context, _ fragment.Fragment, _ []clinical.Entity, _ clinical.IntentVector) (agent.Result, error) {
			close(started)
			<-ctx.Done()
			return agent.Result{}, ctx.Err()
		}}
	finished := make(chan struct{})
	done := &stubAgent{name: "done", activate: true,
		process: func(context.Context, fragment.Fragment, []clinical.Entity, clinical.IntentVector) (agent.Result, error) {
			defer close(finished)
			return agent.Result{Documents: []agent.Document{{Type: "done"}}, Confidence: 0.9}, nil
		}}
	o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{reply: `{}`}, []port.Agent{done, blocking}, config.Orchestrator{})

	go func() {
		<-started
		<-finished
		cancel()
	}()
	resp, err := o.Process(ctx, fragment.Fragment{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != agent.StatusDegraded {
		t.Fatalf("status = %s, want degraded", resp.Status)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Type != "done" {
		t.Fatalf("completed result must be kept: %+v", resp.Documents)
	}
}

func TestOrchestrator_BoundedParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	work := func(context.Context, fragment.Fragment, []clinical.Entity, clinical.IntentVector) (agent.Result, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return agent.Result{Actions: []string{"ok"}, Confidence: 1}, nil
	}
	var agents []port.Agent
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		agents = append(agents, &stubAgent{name: name, activate: true, process: work})
	}

	o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{reply: `{}`}, agents, config.Orchestrator{MaxParallel: 2})
	resp, err := o.Process(context.Background(), fragment.Fragment{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
	if len(resp.Actions) != 5 {
		t.Errorf("actions = %v", resp.Actions)
	}
}

func TestOrchestrator_DeclarationOrderAndEntityIsolation(t *testing.T) {
	mutator := &stubAgent{name: "mutator", activate: true,
		process: func(_ context.Context, _ fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (agent.Result, error) {
			time.Sleep(15 * time.Millisecond)
			entities[0].Text = "tampered"
			intents[clinical.IntentPrescribe] = 1
			return agent.Result{Actions: []string{"mutator"}, Confidence: 0.5}, nil
		}}
	var seen string
	var seenScore float64
	reader := &stubAgent{name: "reader", activate: true,
		process: func(_ context.Context, _ fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (agent.Result, error) {
			time.Sleep(30 * time.Millisecond)
			seen = entities[0].Text
			seenScore = intents.Score(clinical.IntentPrescribe)
			return agent.Result{Actions: []string{"reader"}, Confidence: 0.5}, nil
		}}
	ext := &fakeExtractor{entities: []clinical.Entity{{Text: "ibuprofeno", Category: clinical.CategoryMedicationName}}}

	o := newOrchestrator(ext, &fakeCompleter{reply: `{"prescribe": 0.2}`}, []port.Agent{mutator, reader}, config.Orchestrator{MaxParallel: 2})
	resp, err := o.Process(context.Background(), fragment.Fragment{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if seen != "ibuprofeno" || seenScore != 0.2 {
		t.Errorf("reader observed %q / %v, agents must not share inputs", seen, seenScore)
	}
	if strings.Join(resp.Actions, ",") != "mutator,reader" {
		t.Errorf("actions = %v, want declaration order", resp.Actions)
	}
}

func TestOrchestrator_Agents(t *testing.T) {
	o := newOrchestrator(&fakeExtractor{}, &fakeCompleter{}, defaultAgents(t, &fakeCalendar{}), config.Orchestrator{})
	infos := o.Agents()
	if len(infos) != 4 || infos[0].Name != "prescription" || infos[3].Name != "evolution" {
		t.Fatalf("agents = %+v", infos)
	}
	if infos[3].Trigger != "any(always)" {
		t.Errorf("evolution trigger = %q", infos[3].Trigger)
	}
}
