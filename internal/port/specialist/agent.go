// Package specialist defines the capability every specialized agent exposes
// and the registry that builds the ordered agent list from configuration.
package specialist

import (
	"context"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/domain/trigger"
)

// Agent is implemented by every specialized agent.
type Agent interface {
	// Name identifies the agent in responses and logs.
	Name() string

	// ShouldActivate evaluates the agent's trigger rule. It must be pure:
	// no I/O, no mutation of the signals.
	ShouldActivate(s trigger.Signals) bool

	// Process runs the agent for one fragment. Expected business conditions
	// (nothing to do) return the zero Result; unexpected failures return an
	// error, which the orchestrator isolates.
	Process(ctx context.Context, frag fragment.Fragment, entities []clinical.Entity, intents clinical.IntentVector) (agent.Result, error)
}
