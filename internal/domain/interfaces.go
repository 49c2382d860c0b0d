package domain

import (
	"context"
	"time"
)

// Metadata describes where an indexed chunk came from.
type Metadata struct {
	FileName  string    `json:"file_name"`
	ChunkID   int       `json:"chunk_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is a single chunk held by the document store.
// Its position in the store is also its row in the similarity index.
type Record struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Text     string   `json:"text"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Mode selects how a question is put to the language model.
type Mode string

const (
	ModeAnswer Mode = "answer"
	ModeMCQ    Mode = "mcq"
	ModeQuiz   Mode = "quiz"
)

// ParseMode maps user input to a Mode; unknown values fall back to ModeAnswer.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeAnswer, ModeMCQ, ModeQuiz:
		return Mode(s), true
	}
	return ModeAnswer, false
}

// Chunker splits extracted document text into retrieval units.
type Chunker interface {
	Chunk(text string) []string
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Generator produces an answer for a question grounded in the given context.
type Generator interface {
	Generate(ctx context.Context, reference, question string) (string, error)
}
