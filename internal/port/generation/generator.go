// Package generation defines the port agents use to produce document bodies.
package generation

import "context"

// Generator produces a document body from structured input. A Generator is
// an immutable handle created once at startup; how the backend reaches the
// final text (threads, runs, polling) is hidden behind Generate.
type Generator interface {
	Generate(ctx context.Context, input string) (string, error)
}

// Func adapts an ordinary function to Generator.
type Func func(ctx context.Context, input string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}
