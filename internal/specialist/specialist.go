// Package specialist implements the stock specialized agents: prescription,
// appointment, report and evolution. Each one is built from a port Spec and
// receives its remote handles (generator, calendar) already initialized.
package specialist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/MedScribe/internal/config"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/domain/trigger"
	port "github.com/Strob0t/MedScribe/internal/port/specialist"
)

// Document types produced by the stock agents.
const (
	DocPrescription = "Receita Médica"
	DocReport       = "Laudo Médico"
	DocEvolution    = "Evolução Clínica"

	// DiagnosisClassification is the legal classification scheme every
	// report refers to.
	DiagnosisClassification = "CID-10"
)

var errNoGenerator = errors.New("generator is required")

// base carries what every agent shares: its name and trigger rule.
type base struct {
	name string
	rule trigger.Rule
	now  func() time.Time
}

func newBase(s port.Spec) (base, error) {
	if s.Name == "" {
		return base{}, errors.New("name is required")
	}
	if s.Rule == nil {
		return base{}, errors.New("rule is required")
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return base{name: s.Name, rule: s.Rule, now: now}, nil
}

func (b *base) Name() string { return b.name }

func (b *base) ShouldActivate(s trigger.Signals) bool { return b.rule.Matches(s) }

// Trigger describes the activation rule for listings.
func (b *base) Trigger() string { return b.rule.String() }

// Register adds the stock agent kinds to r.
func Register(r *port.Registry) error {
	for kind, f := range map[string]port.Factory{
		config.KindPrescription: NewPrescription,
		config.KindAppointment:  NewAppointment,
		config.KindReport:       NewReport,
		config.KindEvolution:    NewEvolution,
	} {
		if err := r.Register(kind, f); err != nil {
			return err
		}
	}
	return nil
}

// BuildRule turns an agent's trigger configuration into a rule set. Rules
// are OR-combined unless the agent asks for match: all.
func BuildRule(a config.Agent) (trigger.Rule, error) {
	rules := make([]trigger.Rule, 0, len(a.Triggers))
	for i, t := range a.Triggers {
		switch t.Type {
		case "keyword":
			intent, err := knownIntent(t.Intent)
			if err != nil {
				return nil, fmt.Errorf("trigger %d: %w", i, err)
			}
			rules = append(rules, trigger.NewKeyword(intent, t.Threshold, t.Keywords...))
		case "entity":
			cats := make([]clinical.Category, 0, len(t.Categories))
			for _, c := range t.Categories {
				cats = append(cats, clinical.Category(strings.ToUpper(strings.TrimSpace(c))))
			}
			rules = append(rules, &trigger.Entity{Categories: cats})
		case "intent":
			intent, err := knownIntent(t.Intent)
			if err != nil {
				return nil, fmt.Errorf("trigger %d: %w", i, err)
			}
			rules = append(rules, &trigger.Intent{Intent: intent, Threshold: t.Threshold})
		case "always":
			rules = append(rules, trigger.Always{})
		default:
			return nil, fmt.Errorf("trigger %d: unknown type %q", i, t.Type)
		}
	}
	if a.Match == "all" {
		return trigger.AllOf(rules), nil
	}
	return trigger.AnyOf(rules), nil
}

func knownIntent(s string) (clinical.Intent, error) {
	i := clinical.Intent(s)
	if !i.IsKnown() {
		return "", fmt.Errorf("unknown intent %q", s)
	}
	return i, nil
}

// describe renders the structured input handed to a generator.
func describe(frag fragment.Fragment, sections ...section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Falante: %s\n", orDash(frag.Speaker))
	if !frag.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Horário: %s\n", frag.Timestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Transcrição: %s\n", frag.Text)
	for _, s := range sections {
		fmt.Fprintf(&b, "%s: %s\n", s.title, orDash(strings.Join(s.items, "; ")))
	}
	return b.String()
}

type section struct {
	title string
	items []string
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
