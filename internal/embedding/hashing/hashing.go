package hashing

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultDimension matches the width of small sentence-embedding models.
const DefaultDimension = 384

const stopwordWeight = 0.1

// Embedder maps text to a fixed-width vector by hashing its terms into buckets.
// It needs no corpus preparation, so vectors stay comparable as documents come and go.
type Embedder struct {
	dimension int
	stopwords map[string]struct{}
}

// NewEmbedder creates a hashing embedder producing vectors of the given width.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension, stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes one vector per text. Vectors are not normalized here.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	tf := make(map[string]int)
	for _, tok := range tokenize(text) {
		tf[tok]++
	}
	for tok, count := range tf {
		// Sublinear term frequency
		w := 1 + math.Log(float64(count))
		if _, isStop := e.stopwords[tok]; isStop {
			w *= stopwordWeight
		}
		vec[xxhash.Sum64String(tok)%uint64(e.dimension)] += float32(w)
	}
	return vec
}

func tokenize(text string) []string {
	raw := strings.Fields(strings.ToLower(text))
	out := raw[:0]
	for _, t := range raw {
		trimmed := strings.TrimFunc(t, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if trimmed == "" {
			trimmed = t
		}
		out = append(out, trimmed)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"و", "در", "به", "از", "که", "این", "را", "با", "است", "برای", "آن", "یک", "تا", "هم",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
