package specialist

import (
	"fmt"
	"time"

	"github.com/Strob0t/MedScribe/internal/config"
	"github.com/Strob0t/MedScribe/internal/port/calendar"
	"github.com/Strob0t/MedScribe/internal/port/generation"
	port "github.com/Strob0t/MedScribe/internal/port/specialist"
)

// Deps are the handles the composition root created for the agents.
// Generators is keyed by agent name.
type Deps struct {
	Generators    map[string]generation.Generator
	Calendar      calendar.Calendar
	EventDuration time.Duration
	Now           func() time.Time
}

// Specs converts configured agents into registry specs, in order.
func Specs(agents []config.Agent, deps Deps) ([]port.Spec, error) {
	specs := make([]port.Spec, 0, len(agents))
	for _, a := range agents {
		rule, err := BuildRule(a)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.Name, err)
		}
		opts := make(map[string]string, len(a.Options)+1)
		for k, v := range a.Options {
			opts[k] = v
		}
		if _, ok := opts[OptionEventDuration]; !ok && deps.EventDuration > 0 {
			opts[OptionEventDuration] = deps.EventDuration.String()
		}
		specs = append(specs, port.Spec{
			Name:      a.Name,
			Kind:      a.Kind,
			Rule:      rule,
			Template:  a.Template,
			Generator: deps.Generators[a.Name],
			Calendar:  deps.Calendar,
			Now:       deps.Now,
			Options:   opts,
		})
	}
	return specs, nil
}

// NeedsGenerator reports whether agents of kind produce documents.
func NeedsGenerator(kind string) bool {
	return kind != config.KindAppointment
}
