// Package calendar defines the port for creating calendar events.
package calendar

import (
	"context"
	"time"
)

// Event is a calendar entry to be created.
type Event struct {
	Subject string    `json:"subject"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Body    string    `json:"body"`
}

// Calendar creates events and returns the backend's event ID. Failures wrap
// domain.ErrExternalAction.
type Calendar interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
}
