package clinical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/Strob0t/MedScribe/internal/domain"
)

// Intent is one of the fixed intent labels the classifier scores.
type Intent string

const (
	IntentPrescribe         Intent = "prescribe"
	IntentSchedule          Intent = "schedule"
	IntentReport            Intent = "report"
	IntentDocumentEvolution Intent = "document_evolution"
	IntentRefer             Intent = "refer"
)

// Intents lists every known label in a stable order.
var Intents = []Intent{
	IntentPrescribe,
	IntentSchedule,
	IntentReport,
	IntentDocumentEvolution,
	IntentRefer,
}

// IsKnown reports whether i is one of the fixed labels.
func (i Intent) IsKnown() bool {
	for _, k := range Intents {
		if k == i {
			return true
		}
	}
	return false
}

// IntentVector maps each label to a confidence in [0,1]. Missing labels
// score 0. Treat it as immutable after parsing.
type IntentVector map[Intent]float64

// Score returns the confidence for the label, 0 when absent.
func (v IntentVector) Score(i Intent) float64 {
	return v[i]
}

// ParseIntentVector parses a classifier reply into an IntentVector. The
// reply is untrusted: it must be a single JSON object (optionally wrapped in
// one markdown code fence) whose keys are known labels and whose values are
// numbers within [0,1]. Anything else fails with ErrClassificationParse.
func ParseIntentVector(raw string) (IntentVector, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return nil, fmt.Errorf("%w: empty reply", domain.ErrClassificationParse)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassificationParse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: reply is not a JSON object", domain.ErrClassificationParse)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", domain.ErrClassificationParse)
	}

	v := make(IntentVector, len(Intents))
	for _, label := range Intents {
		v[label] = 0
	}
	for key, rawVal := range fields {
		label := Intent(key)
		if !label.IsKnown() {
			return nil, fmt.Errorf("%w: unknown intent label %q", domain.ErrClassificationParse, key)
		}
		score, err := parseScore(rawVal)
		if err != nil {
			return nil, fmt.Errorf("%w: label %q: %v", domain.ErrClassificationParse, key, err)
		}
		v[label] = score
	}
	return v, nil
}

func parseScore(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, fmt.Errorf("score is not a number")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("score is not a number")
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("score is not a finite number")
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("score %v outside [0,1]", f)
	}
	return f, nil
}

// stripCodeFence removes a single surrounding ``` fence (with optional
// language tag). Models add it even when told not to.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		tag := strings.TrimSpace(inner[:nl])
		if tag == "" || tag == "json" {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
