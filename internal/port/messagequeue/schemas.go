package messagequeue

import (
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
)

// FragmentReceivedPayload is the schema for fragments.received messages.
type FragmentReceivedPayload struct {
	FragmentID string    `json:"fragment_id"`
	Text       string    `json:"text"`
	Speaker    string    `json:"speaker"`
	Timestamp  time.Time `json:"timestamp"`
	SubjectID  string    `json:"subject_id"`
	Confidence float64   `json:"confidence"`
}

// FragmentProcessedPayload is the schema for fragments.processed messages.
type FragmentProcessedPayload struct {
	FragmentID string         `json:"fragment_id"`
	SubjectID  string         `json:"subject_id"`
	Response   agent.Response `json:"response"`
}

// FragmentFailedPayload is the schema for fragments.failed messages.
type FragmentFailedPayload struct {
	FragmentID string `json:"fragment_id"`
	SubjectID  string `json:"subject_id"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}
