package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation
// (future-proof for new message types).
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch subject {
	case SubjectFragmentReceived:
		var p FragmentReceivedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("schema validation failed for %s: text is required", subject)
		}
		return nil
	case SubjectFragmentProcessed:
		return unmarshalInto(subject, data, &FragmentProcessedPayload{})
	case SubjectFragmentFailed:
		return unmarshalInto(subject, data, &FragmentFailedPayload{})
	default:
		return nil
	}
}

func unmarshalInto(subject string, data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
