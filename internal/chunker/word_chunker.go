package chunker

import "strings"

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// WordChunker splits text into windows of whitespace-delimited words with overlap.
type WordChunker struct {
	chunkSize int
	overlap   int
}

func NewWordChunker(chunkSize, overlap int) *WordChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &WordChunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk returns the non-empty word windows of text in document order.
// Each window starts chunkSize-overlap words after the previous one; the last
// window is the first one that reaches the final word.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		if chunk := strings.TrimSpace(strings.Join(words[start:end], " ")); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}
