// Package llm defines the port for single-shot language-model completions.
package llm

import "context"

// Completer sends a prompt and returns the raw reply text. The reply is
// untrusted and must be parsed by the caller.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
