// Package provider abstracts the model backends the playground runs against.
package provider

import (
	"context"
	"fmt"
)

// Result is what a completed model call returns.
type Result struct {
	Text       string
	TokensUsed int
}

// Provider executes a single prompt against a model. Implementations must
// honor ctx deadlines; there is no mid-flight cancellation beyond that.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, model, input string) (*Result, error)
}

// Error wraps any failure from a model backend (rate limit, timeout, content
// policy). Callers must treat it as "no charge": a failed call never debits.
type Error struct {
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider call failed for model %q: %v", e.Model, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
