// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
)

// Store is the port interface for database operations.
type Store interface {
	// SaveResponse persists a processed fragment together with its response.
	SaveResponse(ctx context.Context, frag *fragment.Fragment, resp *agent.Response) error

	// GetResponse returns the response with the given ID or domain.ErrNotFound.
	GetResponse(ctx context.Context, id string) (*agent.Response, error)

	// ListResponsesBySubject returns the newest responses for a subject first.
	ListResponsesBySubject(ctx context.Context, subjectID string, limit int) ([]agent.Response, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
