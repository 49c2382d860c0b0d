// Package history records question/answer exchanges in a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docubrain/internal/domain"
)

// Message is one exchange with the sources that grounded the answer.
type Message struct {
	ID        int                   `json:"id"`
	Timestamp time.Time             `json:"timestamp"`
	Question  string                `json:"question"`
	Answer    string                `json:"answer"`
	Sources   []domain.SearchResult `json:"sources"`
}

// History is an append-only transcript persisted after every change.
type History struct {
	mu       sync.Mutex
	path     string
	logger   *slog.Logger
	now      func() time.Time
	messages []Message
}

// Load opens the transcript at path. A missing or unreadable file yields an
// empty history; the latter is logged.
func Load(path string, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	h := &History{path: path, logger: logger, now: time.Now}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("failed to read chat history", "path", path, "error", err)
		}
		return h
	}
	if err := json.Unmarshal(data, &h.messages); err != nil {
		logger.Error("failed to parse chat history", "path", path, "error", err)
		h.messages = nil
	}
	return h
}

// Add appends an exchange and saves. The message is kept even if saving fails.
func (h *History) Add(question, answer string, sources []domain.SearchResult) (Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sources == nil {
		sources = []domain.SearchResult{}
	}
	msg := Message{
		ID:        len(h.messages) + 1,
		Timestamp: h.now(),
		Question:  question,
		Answer:    answer,
		Sources:   sources,
	}
	h.messages = append(h.messages, msg)
	return msg, h.save()
}

// Messages returns a copy of the whole transcript.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Last returns up to n of the most recent messages, oldest first.
func (h *History) Last(n int) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if n >= 0 && len(h.messages) > n {
		start = len(h.messages) - n
	}
	out := make([]Message, len(h.messages)-start)
	copy(out, h.messages[start:])
	return out
}

// Len returns the number of recorded exchanges.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Clear empties the transcript and saves.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
	return h.save()
}

func (h *History) save() error {
	msgs := h.messages
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		h.logger.Warn("failed to save chat history", "path", h.path, "error", err)
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
