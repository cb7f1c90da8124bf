// Package extraction defines the port for clinical entity extraction.
package extraction

import (
	"context"

	"github.com/Strob0t/MedScribe/internal/domain/clinical"
)

// Extractor turns raw fragment text into typed clinical entities, in
// extraction order. Implementations may wait on an asynchronous remote job.
// Failures wrap domain.ErrExtraction.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]clinical.Entity, error)
}
