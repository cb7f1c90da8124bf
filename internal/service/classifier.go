package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/MedScribe/internal/domain"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/port/llm"
)

// IntentClassifier scores a fragment against the fixed intent labels.
type IntentClassifier struct {
	llm llm.Completer
}

// NewIntentClassifier creates a classifier backed by a completion model.
func NewIntentClassifier(c llm.Completer) *IntentClassifier {
	return &IntentClassifier{llm: c}
}

// Classify builds the prompt, asks the model and parses the reply strictly.
// A backend failure wraps domain.ErrClassification; a reply that does not
// parse wraps domain.ErrClassificationParse.
func (c *IntentClassifier) Classify(ctx context.Context, frag fragment.Fragment, entities []clinical.Entity) (clinical.IntentVector, error) {
	reply, err := c.llm.Complete(ctx, BuildIntentPrompt(frag, entities))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrClassification, err)
	}
	return clinical.ParseIntentVector(reply)
}

// BuildIntentPrompt renders the classification prompt for one fragment.
func BuildIntentPrompt(frag fragment.Fragment, entities []clinical.Entity) string {
	labels := make([]string, 0, len(clinical.Intents))
	for _, i := range clinical.Intents {
		labels = append(labels, `"`+string(i)+`"`)
	}

	var b strings.Builder
	b.WriteString("Você classifica trechos de consultas médicas transcritas.\n")
	b.WriteString("Atribua a cada intenção uma confiança entre 0 e 1.\n")
	fmt.Fprintf(&b, "Intenções: %s.\n", strings.Join(labels, ", "))
	b.WriteString("Responda somente com um objeto JSON cujas chaves são as intenções e cujos valores são números.\n\n")
	fmt.Fprintf(&b, "Falante: %s\n", frag.Speaker)
	fmt.Fprintf(&b, "Trecho: %s\n", frag.Text)
	if len(entities) > 0 {
		b.WriteString("Entidades:\n")
		for _, e := range entities {
			fmt.Fprintf(&b, "- %s (%s)\n", e.Text, e.Category)
		}
	}
	return b.String()
}
