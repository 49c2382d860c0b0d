package llm

import (
	"context"
	"log/slog"

	"docubrain/internal/domain"
)

// Answerer turns generator failures into a readable message so the caller
// always has something to show and record.
type Answerer struct {
	gen    domain.Generator
	logger *slog.Logger
}

func NewAnswerer(gen domain.Generator, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{gen: gen, logger: logger}
}

// Answer returns the model's reply or an error description. The second
// return value reports whether the reply came from the model.
func (a *Answerer) Answer(ctx context.Context, reference, question string) (string, bool) {
	answer, err := a.gen.Generate(ctx, reference, question)
	if err != nil {
		a.logger.Error("generation failed", "error", err)
		return "Error communicating with the language model: " + err.Error(), false
	}
	return answer, true
}
