// Package pdf pulls plain text out of PDF documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxFileSize caps how much of a document is held in memory for extraction.
const MaxFileSize = 200 << 20

// ErrNoText is returned when a document parses but carries no extractable text,
// which is the usual outcome for scanned PDFs.
var ErrNoText = errors.New("no text extracted from pdf")

// Extractor reads PDFs page by page.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger falls back to slog.Default.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractFile reads the document at path and returns its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}
	if stat.Size() > MaxFileSize {
		return "", fmt.Errorf("pdf %s is %d bytes, limit is %d", path, stat.Size(), MaxFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return e.ExtractBytes(ctx, content)
}

// ExtractBytes returns the text of every page, in page order, separated by
// newlines. Pages that fail to decode are skipped with a warning.
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to extract page text", "page", i, "error", err)
			continue
		}
		texts = append(texts, text)
	}

	out := strings.Join(texts, "\n")
	if strings.TrimSpace(out) == "" {
		return "", ErrNoText
	}
	e.logger.Debug("pdf extracted", "pages", pages, "chars", len(out))
	return out, nil
}
