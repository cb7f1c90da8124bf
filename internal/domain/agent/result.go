// Package agent defines the values produced by specialized agents and the
// aggregated response the orchestrator assembles from them.
package agent

import "time"

// Document is a generated clinical document. Ownership passes to the caller
// of the orchestrator for persistence or delivery.
type Document struct {
	Type        string            `json:"type"`
	Content     string            `json:"content"`
	Template    string            `json:"template"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Result is the outcome of one agent invocation. An agent that found nothing
// to do returns the zero Result, not a sentinel, so aggregation is uniform.
type Result struct {
	Documents  []Document `json:"documents"`
	Actions    []string   `json:"actions"`
	Confidence float64    `json:"confidence"`
}

// Empty reports whether the result carries neither documents nor actions.
func (r Result) Empty() bool {
	return len(r.Documents) == 0 && len(r.Actions) == 0
}

// Normalize applies the result rules: confidence is clamped to [0,1]
// and forced to 0 when no document or action was produced.
func (r Result) Normalize() Result {
	if r.Empty() {
		r.Confidence = 0
		return r
	}
	r.Confidence = Clamp(r.Confidence)
	return r
}

// Clamp limits c to [0,1].
func Clamp(c float64) float64 {
	switch {
	case c != c, c < 0: // NaN or negative
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
