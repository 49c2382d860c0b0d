package chunker

import (
	"strconv"
	"strings"
	"testing"
)

func numberedWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	return words
}

func TestChunk_ShortTextIsSingleChunk(t *testing.T) {
	c := NewWordChunker(10, 2)
	chunks := c.Chunk("  alpha   beta\n\tgamma ")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "alpha beta gamma" {
		t.Errorf("unexpected chunk %q", chunks[0])
	}
}

func TestChunk_ExactlyChunkSizeIsSingleChunk(t *testing.T) {
	c := NewWordChunker(5, 2)
	chunks := c.Chunk(strings.Join(numberedWords(5), " "))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %q", len(chunks), chunks)
	}
}

func TestChunk_EmptyAndWhitespace(t *testing.T) {
	c := NewWordChunker(5, 1)
	if got := c.Chunk(""); len(got) != 0 {
		t.Errorf("expected no chunks for empty text, got %q", got)
	}
	if got := c.Chunk(" \n\t  "); len(got) != 0 {
		t.Errorf("expected no chunks for whitespace text, got %q", got)
	}
}

func TestChunk_WindowsAndOverlap(t *testing.T) {
	c := NewWordChunker(4, 1)
	chunks := c.Chunk(strings.Join(numberedWords(10), " "))
	want := []string{
		"w0 w1 w2 w3",
		"w3 w4 w5 w6",
		"w6 w7 w8 w9",
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestChunk_ReconstructsWordSequence(t *testing.T) {
	for _, tc := range []struct{ size, overlap, words int }{
		{500, 50, 1234},
		{7, 3, 50},
		{3, 0, 10},
		{2, 1, 9},
	} {
		c := NewWordChunker(tc.size, tc.overlap)
		words := numberedWords(tc.words)
		chunks := c.Chunk(strings.Join(words, " "))

		var rebuilt []string
		for i, ch := range chunks {
			if strings.TrimSpace(ch) == "" {
				t.Fatalf("size=%d overlap=%d: chunk %d is empty", tc.size, tc.overlap, i)
			}
			parts := strings.Fields(ch)
			if len(parts) > tc.size {
				t.Fatalf("size=%d: chunk %d has %d words", tc.size, i, len(parts))
			}
			if i > 0 {
				parts = parts[tc.overlap:]
			}
			rebuilt = append(rebuilt, parts...)
		}
		if strings.Join(rebuilt, " ") != strings.Join(words, " ") {
			t.Errorf("size=%d overlap=%d: overlap-free join does not match the input", tc.size, tc.overlap)
		}
	}
}

func TestChunk_Restartable(t *testing.T) {
	c := NewWordChunker(3, 1)
	text := strings.Join(numberedWords(11), " ")
	first := c.Chunk(text)
	second := c.Chunk(text)
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Error("chunking the same text twice should give the same result")
	}
}

func TestNewWordChunker_ClampsParameters(t *testing.T) {
	c := NewWordChunker(0, -3)
	if c.chunkSize != DefaultChunkSize || c.overlap != 0 {
		t.Errorf("unexpected clamp result: size=%d overlap=%d", c.chunkSize, c.overlap)
	}
	c = NewWordChunker(4, 9)
	if c.overlap != 3 {
		t.Errorf("overlap should clamp to size-1, got %d", c.overlap)
	}
}
