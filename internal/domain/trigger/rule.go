// Package trigger implements the declarative activation rules attached to
// specialized agents. Evaluation is pure: no rule performs I/O, so the same
// Signals always yield the same decision.
package trigger

import (
	"fmt"
	"strings"

	"github.com/Strob0t/MedScribe/internal/domain/clinical"
)

// Signals is the immutable view of one fragment that rules evaluate.
type Signals struct {
	// Text is the fragment text after Normalize.
	Text     string
	Intents  clinical.IntentVector
	Entities []clinical.Entity
}

// NewSignals builds Signals, normalizing the raw fragment text once.
func NewSignals(text string, intents clinical.IntentVector, entities []clinical.Entity) Signals {
	return Signals{Text: Normalize(text), Intents: intents, Entities: entities}
}

// Rule is a predicate deciding whether an agent activates.
type Rule interface {
	Matches(s Signals) bool
	String() string
}

// Keyword activates when the text contains any keyword (folded substring
// match) and the intent score strictly exceeds Threshold.
type Keyword struct {
	Intent    clinical.Intent
	Threshold float64
	keywords  []string
}

// NewKeyword creates a keyword rule. Keywords are normalized up front.
func NewKeyword(intent clinical.Intent, threshold float64, keywords ...string) *Keyword {
	k := &Keyword{Intent: intent, Threshold: threshold}
	for _, w := range keywords {
		if w = Normalize(strings.TrimSpace(w)); w != "" {
			k.keywords = append(k.keywords, w)
		}
	}
	return k
}

func (k *Keyword) Matches(s Signals) bool {
	if s.Intents.Score(k.Intent) <= k.Threshold {
		return false
	}
	for _, w := range k.keywords {
		if strings.Contains(s.Text, w) {
			return true
		}
	}
	return false
}

func (k *Keyword) String() string {
	return fmt.Sprintf("keyword(%s>%.2f, %s)", k.Intent, k.Threshold, strings.Join(k.keywords, "|"))
}

// Entity activates when at least one entity has one of the categories.
type Entity struct {
	Categories []clinical.Category
}

func (e *Entity) Matches(s Signals) bool {
	return clinical.HasCategory(s.Entities, e.Categories...)
}

func (e *Entity) String() string {
	names := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		names = append(names, string(c))
	}
	return "entity(" + strings.Join(names, "|") + ")"
}

// Intent activates when the intent score strictly exceeds Threshold,
// regardless of wording.
type Intent struct {
	Intent    clinical.Intent
	Threshold float64
}

func (i *Intent) Matches(s Signals) bool {
	return s.Intents.Score(i.Intent) > i.Threshold
}

func (i *Intent) String() string {
	return fmt.Sprintf("intent(%s>%.2f)", i.Intent, i.Threshold)
}

// Always activates unconditionally.
type Always struct{}

func (Always) Matches(Signals) bool { return true }
func (Always) String() string       { return "always" }

// AnyOf is the default combinator: logical OR. An empty set never matches.
type AnyOf []Rule

func (a AnyOf) Matches(s Signals) bool {
	for _, r := range a {
		if r.Matches(s) {
			return true
		}
	}
	return false
}

func (a AnyOf) String() string { return "any(" + join(a) + ")" }

// AllOf is logical AND. An empty set never matches.
type AllOf []Rule

func (a AllOf) Matches(s Signals) bool {
	if len(a) == 0 {
		return false
	}
	for _, r := range a {
		if !r.Matches(s) {
			return false
		}
	}
	return true
}

func (a AllOf) String() string { return "all(" + join(a) + ")" }

func join(rules []Rule) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}
