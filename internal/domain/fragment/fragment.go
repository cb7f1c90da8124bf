// Package fragment defines the transcript fragment consumed by the orchestrator.
package fragment

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain"
)

// Fragment is one bounded unit of transcribed speech. It is treated as an
// immutable value once it enters the pipeline.
type Fragment struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Speaker    string    `json:"speaker"`
	Timestamp  time.Time `json:"timestamp"`
	SubjectID  string    `json:"subject_id,omitempty"`
	Confidence float64   `json:"confidence"`
}

// Validate checks the fragment can be processed.
func (f *Fragment) Validate() error {
	if strings.TrimSpace(f.Text) == "" {
		return fmt.Errorf("%w: text is required", domain.ErrValidation)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be within [0,1], got %v", domain.ErrValidation, f.Confidence)
	}
	return nil
}
