package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/service"
)

// FragmentAPI is the subset of service.FragmentService the handlers need.
type FragmentAPI interface {
	Submit(ctx context.Context, frag fragment.Fragment) (*agent.Response, error)
	GetResponse(ctx context.Context, id string) (*agent.Response, error)
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]agent.Response, error)
}

// AgentLister reports the configured agents in declaration order.
type AgentLister interface {
	Agents() []service.AgentInfo
}

// Check probes one dependency for readiness.
type Check func(ctx context.Context) error

// BreakerState reports a circuit breaker's state, see resilience.Breaker.
type BreakerState interface {
	State() string
}

// BreakerCheck fails readiness while the breaker rejects calls.
func BreakerCheck(b BreakerState) Check {
	return func(context.Context) error {
		if b.State() == "open" {
			return errors.New("circuit open")
		}
		return nil
	}
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Fragments FragmentAPI
	Agents    AgentLister
	Version   string
	// Checks are run by /health/ready, keyed by dependency name.
	Checks map[string]Check
}

// submitFragmentRequest is the POST /api/v1/fragments body. A missing
// timestamp defaults to the receive time and a missing confidence to 1.
type submitFragmentRequest struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Speaker    string     `json:"speaker"`
	Timestamp  *time.Time `json:"timestamp"`
	SubjectID  string     `json:"subject_id"`
	Confidence *float64   `json:"confidence"`
}

// SubmitFragment handles POST /api/v1/fragments.
func (h *Handlers) SubmitFragment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitFragmentRequest](w, r)
	if !ok {
		return
	}
	frag := fragment.Fragment{
		ID:         strings.TrimSpace(req.ID),
		Text:       req.Text,
		Speaker:    req.Speaker,
		SubjectID:  req.SubjectID,
		Confidence: 1,
	}
	if req.Confidence != nil {
		frag.Confidence = *req.Confidence
	}
	if req.Timestamp != nil {
		frag.Timestamp = *req.Timestamp
	} else {
		frag.Timestamp = time.Now().UTC()
	}

	resp, err := h.Fragments.Submit(r.Context(), frag)
	if err != nil {
		writeDomainError(w, err, "fragment not processed")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetResponse handles GET /api/v1/responses/{id}.
func (h *Handlers) GetResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Fragments.GetResponse(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "response not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSubjectResponses handles GET /api/v1/subjects/{id}/responses.
func (h *Handlers) ListSubjectResponses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Fragments.ListBySubject(r.Context(), urlParam(r, "id"), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	if list == nil {
		list = []agent.Response{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListAgents handles GET /api/v1/agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	agents := []service.AgentInfo{}
	if h.Agents != nil {
		agents = h.Agents.Agents()
	}
	writeJSON(w, http.StatusOK, agents)
}

// Health handles GET /health. It never touches dependencies.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.Version})
}

// Ready handles GET /health/ready and fails with 503 when any check fails.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(h.Checks)+1)
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	if status == http.StatusOK {
		report["status"] = "ready"
	} else {
		report["status"] = "degraded"
	}
	writeJSON(w, status, report)
}
