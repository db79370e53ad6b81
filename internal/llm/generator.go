// Package llm holds the generative-model port used for query interpretation
// and coaching replies, with the retry, observation and structured-output
// helpers shared by its backends.
package llm

import "context"

// Generator turns a prompt into model text. It is the only contract the rest
// of the pipeline relies on; output is not guaranteed to be well formed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
