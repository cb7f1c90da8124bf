package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/port/generation"
	port "github.com/Strob0t/MedScribe/internal/port/specialist"
)

// Report drafts a medical report. Every report references the CID-10
// classification for its diagnoses.
type Report struct {
	base
	gen      generation.Generator
	template string
}

// NewReport is the factory for the report kind.
func NewReport(s port.Spec) (port.Agent, error) {
	b, err := newBase(s)
	if err != nil {
		return nil, err
	}
	if s.Generator == nil {
		return nil, errNoGenerator
	}
	return &Report{base: b, gen: s.Generator, template: s.Template}, nil
}

func (r *Report) Process(ctx context.Context, frag fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (agent.Result, error) {
	conditions := clinical.Filter(entities, clinical.CategoryCondition)
	procedures := clinical.Filter(entities, clinical.CategoryProcedure)
	tests := clinical.Filter(entities, clinical.CategoryTest)

	confidence := intents.Score(clinical.IntentReport)
	if confidence == 0 {
		confidence = clinical.MeanConfidence(append(clinical.Clone(conditions), procedures...))
	}

	content, err := r.gen.Generate(ctx, describe(frag,
		section{"Classificação", []string{DiagnosisClassification}},
		section{"Condições", clinical.Texts(conditions)},
		section{"Procedimentos", clinical.Texts(procedures)},
		section{"Exames", clinical.Texts(tests)},
	))
	if err != nil {
		return agent.Result{}, fmt.Errorf("generate report: %w", err)
	}

	return agent.Result{
		Documents: []agent.Document{{
			Type:     DocReport,
			Content:  content,
			Template: r.template,
			Metadata: map[string]string{
				"classification": DiagnosisClassification,
				"conditions":     strings.Join(clinical.Texts(conditions), ", "),
				"procedures":     strings.Join(clinical.Texts(procedures), ", "),
			},
			GeneratedAt: r.now(),
		}},
		Actions:    []string{},
		Confidence: confidence,
	}, nil
}
