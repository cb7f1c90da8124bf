package specialist

import (
	"context"
	"fmt"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/port/generation"
	port "github.com/Strob0t/MedScribe/internal/port/specialist"
)

// Evolution records a running clinical note for every fragment so each one
// leaves an audit trail. Its confidence is the fragment's own.
type Evolution struct {
	base
	gen      generation.Generator
	template string
}

// NewEvolution is the factory for the evolution kind.
func NewEvolution(s port.Spec) (port.Agent, error) {
	b, err := newBase(s)
	if err != nil {
		return nil, err
	}
	if s.Generator == nil {
		return nil, errNoGenerator
	}
	return &Evolution{base: b, gen: s.Generator, template: s.Template}, nil
}

func (e *Evolution) Process(ctx context.Context, frag fragment.Fragment, entities []clinical.Entity, _ clinical.IntentVector) (agent.Result, error) {
	items := make([]string, 0, len(entities))
	for _, ent := range entities {
		items = append(items, fmt.Sprintf("%s (%s)", ent.Text, ent.Category))
	}

	content, err := e.gen.Generate(ctx, describe(frag, section{"Entidades", items}))
	if err != nil {
		return agent.Result{}, fmt.Errorf("generate evolution note: %w", err)
	}

	meta := map[string]string{"speaker": frag.Speaker}
	if frag.SubjectID != "" {
		meta["subject_id"] = frag.SubjectID
	}
	return agent.Result{
		Documents: []agent.Document{{
			Type:        DocEvolution,
			Content:     content,
			Template:    e.template,
			Metadata:    meta,
			GeneratedAt: e.now(),
		}},
		Actions:    []string{},
		Confidence: frag.Confidence,
	}, nil
}
