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

// Prescription drafts a prescription from medication, dosage and frequency
// entities. A medication entity is a hard precondition: intent alone never
// produces a prescription.
type Prescription struct {
	base
	gen      generation.Generator
	template string
}

// NewPrescription is the factory for the prescription kind.
func NewPrescription(s port.Spec) (port.Agent, error) {
	b, err := newBase(s)
	if err != nil {
		return nil, err
	}
	if s.Generator == nil {
		return nil, errNoGenerator
	}
	return &Prescription{base: b, gen: s.Generator, template: s.Template}, nil
}

func (p *Prescription) Process(ctx context.Context, frag fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (agent.Result, error) {
	meds := clinical.Filter(entities, clinical.CategoryMedicationName)
	if len(meds) == 0 {
		return agent.Result{}, nil
	}
	dosages := clinical.Texts(clinical.Filter(entities, clinical.CategoryDosage))
	freqs := clinical.Texts(clinical.Filter(entities, clinical.CategoryFrequency))
	routes := clinical.Texts(clinical.Filter(entities, clinical.CategoryRouteOrMode))
	names := clinical.Texts(meds)

	confidence := intents.Score(clinical.IntentPrescribe)
	if confidence == 0 {
		confidence = clinical.MeanConfidence(meds)
	}

	content, err := p.gen.Generate(ctx, describe(frag,
		section{"Medicamentos", names},
		section{"Dosagens", dosages},
		section{"Frequências", freqs},
		section{"Vias", routes},
	))
	if err != nil {
		return agent.Result{}, fmt.Errorf("generate prescription: %w", err)
	}

	return agent.Result{
		Documents: []agent.Document{{
			Type:     DocPrescription,
			Content:  content,
			Template: p.template,
			Metadata: map[string]string{
				"medications": strings.Join(names, ", "),
				"dosages":     strings.Join(dosages, ", "),
				"frequencies": strings.Join(freqs, ", "),
			},
			GeneratedAt: p.now(),
		}},
		Actions:    []string{},
		Confidence: confidence,
	}, nil
}
