// Package llm wraps the text-generation backends used by the LLM scorer.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answers with no text
var ErrEmptyResponse = errors.New("llm returned empty response")

// Generator turns a prompt into model text
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Close() error
}
