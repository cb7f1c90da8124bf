package agent

import "time"

// Status summarizes how a fragment was handled.
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusDegraded         Status = "degraded"
	StatusNoAgentActivated Status = "no_agent_activated"
)

// Failure annotates an activated agent whose contribution was lost.
type Failure struct {
	Agent string `json:"agent"`
	Error string `json:"error"`
}

// Outcome is what the orchestrator collects for one activated agent.
// Err is set when the agent failed, timed out or was cancelled; Result is
// then the zero Result.
type Outcome struct {
	Agent  string
	Result Result
	Err    error
}

// Response is the aggregated answer for one fragment.
type Response struct {
	ID                  string     `json:"id"`
	FragmentID          string     `json:"fragment_id"`
	SubjectID           string     `json:"subject_id,omitempty"`
	Status              Status     `json:"status"`
	TriggeredAgents     []string   `json:"triggered_agents"`
	Documents           []Document `json:"documents"`
	Actions             []string   `json:"actions"`
	AggregateConfidence *float64   `json:"aggregate_confidence"`
	Failures            []Failure  `json:"failures,omitempty"`
	ProcessedAt         time.Time  `json:"processed_at"`
}

// NoAgentActivated builds the response for a fragment no trigger fired on.
// It carries no aggregate confidence.
func NoAgentActivated() Response {
	return Response{
		Status:          StatusNoAgentActivated,
		TriggeredAgents: []string{},
		Documents:       []Document{},
		Actions:         []string{},
	}
}

// Aggregate merges outcomes, which must be in agent declaration order.
// Documents and actions are concatenated in that order; the aggregate
// confidence is the mean of strictly positive confidences, or 0 when every
// activated agent reported 0. Any failed outcome degrades the response and
// contributes a failure action plus a Failure note.
func Aggregate(outcomes []Outcome) Response {
	if len(outcomes) == 0 {
		return NoAgentActivated()
	}

	resp := Response{
		Status:          StatusCompleted,
		TriggeredAgents: make([]string, 0, len(outcomes)),
		Documents:       []Document{},
		Actions:         []string{},
	}

	var sum float64
	var positive int
	for i := range outcomes {
		o := &outcomes[i]
		resp.TriggeredAgents = append(resp.TriggeredAgents, o.Agent)

		if o.Err != nil {
			resp.Status = StatusDegraded
			resp.Failures = append(resp.Failures, Failure{Agent: o.Agent, Error: o.Err.Error()})
			resp.Actions = append(resp.Actions, FailureAction(o.Agent, o.Err))
			continue
		}

		r := o.Result.Normalize()
		resp.Documents = append(resp.Documents, r.Documents...)
		resp.Actions = append(resp.Actions, r.Actions...)
		if r.Confidence > 0 {
			sum += r.Confidence
			positive++
		}
	}

	conf := 0.0
	if positive > 0 {
		conf = sum / float64(positive)
	}
	resp.AggregateConfidence = &conf
	return resp
}

// FailureAction is the action string recorded for a failed agent.
func FailureAction(agentName string, err error) string {
	return "agent " + agentName + " failed: " + err.Error()
}
