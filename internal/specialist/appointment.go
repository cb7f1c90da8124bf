package specialist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/domain/temporal"
	"github.com/Strob0t/MedScribe/internal/port/calendar"
	port "github.com/Strob0t/MedScribe/internal/port/specialist"
)

// OptionEventDuration is the Spec option holding the appointment length
// (a time.ParseDuration string).
const OptionEventDuration = "event_duration"

const (
	defaultEventDuration = 30 * time.Minute
	actionTimeLayout     = "02/01/2006 15:04"
)

// Appointment books a follow-up when the fragment names a relative date.
// A calendar failure is reported as an action, not an error, with half the
// schedule confidence: the slot was computed but not booked.
type Appointment struct {
	base
	cal      calendar.Calendar
	duration time.Duration
}

// NewAppointment is the factory for the appointment kind.
func NewAppointment(s port.Spec) (port.Agent, error) {
	b, err := newBase(s)
	if err != nil {
		return nil, err
	}
	if s.Calendar == nil {
		return nil, errors.New("calendar is required")
	}
	d := defaultEventDuration
	if v := s.Options[OptionEventDuration]; v != "" {
		if d, err = time.ParseDuration(v); err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid %s %q", OptionEventDuration, v)
		}
	}
	return &Appointment{base: b, cal: s.Calendar, duration: d}, nil
}

func (a *Appointment) Process(ctx context.Context, frag fragment.Fragment, _ []clinical.Entity, intents clinical.IntentVector) (agent.Result, error) {
	proposal := temporal.Extract(frag.Text, a.now())
	if !proposal.Valid {
		return agent.Result{}, nil
	}
	start := temporal.AdjustToBusinessHours(proposal.At)
	score := intents.Score(clinical.IntentSchedule)
	when := start.Format(actionTimeLayout)

	subject := "Consulta de retorno"
	if frag.SubjectID != "" {
		subject += " - " + frag.SubjectID
	}
	id, err := a.cal.CreateEvent(ctx, calendar.Event{
		Subject: subject,
		Start:   start,
		End:     start.Add(a.duration),
		Body:    frag.Text,
	})
	if err != nil {
		if ctx.Err() != nil {
			return agent.Result{}, fmt.Errorf("create event: %w", err)
		}
		return agent.Result{
			Actions:    []string{fmt.Sprintf("Falha ao agendar consulta para %s: %v", when, err)},
			Confidence: score / 2,
		}, nil
	}

	return agent.Result{
		Actions:    []string{fmt.Sprintf("Consulta agendada para %s (evento %s)", when, id)},
		Confidence: score,
	}, nil
}
