package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"docubrain/internal/domain"
	"docubrain/internal/files"
	"docubrain/internal/history"
	"docubrain/internal/llm"
	"docubrain/internal/pdf"
	"docubrain/internal/vectordb"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoDocuments   = errors.New("no documents have been added yet")
	ErrNoResults     = errors.New("no results found for the question")
	ErrUnknownFile   = errors.New("file not found")
)

// TextExtractor pulls plain text out of a stored document.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Deps are the collaborators a RAGService is assembled from.
type Deps struct {
	Files      *files.Manager
	Extractor  TextExtractor
	Chunker    domain.Chunker
	DB         *vectordb.DB
	Summarizer domain.Summarizer
	Generator  domain.Generator
	History    *history.History
	Logger     *slog.Logger
}

// Options tune retrieval and summaries.
type Options struct {
	TopK             int
	SummarySentences int
}

// RAGService ties document storage, retrieval and generation together.
type RAGService struct {
	files            *files.Manager
	extractor        TextExtractor
	chunker          domain.Chunker
	db               *vectordb.DB
	summarizer       domain.Summarizer
	answerer         *llm.Answerer
	history          *history.History
	topK             int
	summarySentences int
	logger           *slog.Logger
}

func NewRAGService(deps Deps, opts Options) *RAGService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &RAGService{
		files:            deps.Files,
		extractor:        deps.Extractor,
		chunker:          deps.Chunker,
		db:               deps.DB,
		summarizer:       deps.Summarizer,
		answerer:         llm.NewAnswerer(deps.Generator, logger),
		history:          deps.History,
		topK:             opts.TopK,
		summarySentences: opts.SummarySentences,
		logger:           logger,
	}
}

// IngestReport describes a successfully added document.
type IngestReport struct {
	StoredName string
	Chunks     int
	Summary    string
	// Warning is set when the document was added but the snapshot could not be saved.
	Warning string
}

// Ingest copies the PDF at path into the data directory, extracts and chunks
// its text and indexes the chunks under the stored name. On failure the stored
// copy is removed again.
func (s *RAGService) Ingest(ctx context.Context, path string) (IngestReport, error) {
	name, err := s.files.Import(path)
	if err != nil {
		return IngestReport{}, err
	}
	report := IngestReport{StoredName: name}
	discard := func() {
		if _, err := s.files.Delete(name); err != nil {
			s.logger.Warn("failed to remove stored file", "file", name, "error", err)
		}
	}

	text, err := s.extractor.ExtractFile(ctx, s.files.Path(name))
	if err != nil {
		discard()
		return IngestReport{}, fmt.Errorf("extract %s: %w", path, err)
	}
	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		discard()
		return IngestReport{}, fmt.Errorf("extract %s: %w", path, pdf.ErrNoText)
	}

	if err := s.db.AddDocuments(ctx, chunks, name); err != nil {
		if !errors.Is(err, vectordb.ErrPersist) {
			discard()
			return IngestReport{}, fmt.Errorf("index %s: %w", path, err)
		}
		report.Warning = err.Error()
	}
	report.Chunks = len(chunks)

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(text, s.summarySentences)
		if err != nil {
			s.logger.Warn("summary failed", "file", name, "error", err)
		}
		report.Summary = summary
	}
	s.logger.Info("document ingested", "file", name, "chunks", len(chunks))
	return report, nil
}

// RemoveReport describes what Remove did.
type RemoveReport struct {
	FileDeleted bool
	Chunks      int
	Warning     string
}

// Remove deletes every chunk indexed under name and then the stored file. The
// file is kept when the chunks could not be removed, so a retry still finds it.
func (s *RAGService) Remove(ctx context.Context, name string) (RemoveReport, error) {
	var report RemoveReport
	n, err := s.db.RemoveDocumentsByFile(ctx, name)
	if err != nil {
		if !errors.Is(err, vectordb.ErrPersist) {
			return report, fmt.Errorf("remove %s from index: %w", name, err)
		}
		report.Warning = err.Error()
	}
	report.Chunks = n
	deleted, err := s.files.Delete(name)
	if err != nil {
		return report, err
	}
	report.FileDeleted = deleted
	if !deleted && n == 0 {
		return report, fmt.Errorf("%w: %s", ErrUnknownFile, name)
	}
	s.logger.Info("document removed", "file", name, "chunks", n, "file_deleted", deleted)
	return report, nil
}

// AskRequest is a question restricted to SelectedFiles. A nil selection
// searches every file.
type AskRequest struct {
	Question      string
	Mode          domain.Mode
	SelectedFiles []string
}

// Answer is the model's reply plus the chunks it was grounded on.
type Answer struct {
	Question string
	Text     string
	Sources  []domain.SearchResult
	// Generated is false when Text describes a generation failure.
	Generated bool
	Warning   string
}

// Ask retrieves the chunks nearest to the question, sends them to the
// language model and records the exchange.
func (s *RAGService) Ask(ctx context.Context, req AskRequest) (Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if s.db.Len() == 0 {
		return Answer{}, ErrNoDocuments
	}
	question = llm.ApplyMode(req.Mode, question)

	results, err := s.db.Search(ctx, question, s.topK, req.SelectedFiles)
	if err != nil {
		return Answer{}, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return Answer{}, ErrNoResults
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	text, ok := s.answerer.Answer(ctx, strings.Join(texts, "\n\n"), question)
	ans := Answer{Question: question, Text: text, Sources: results, Generated: ok}
	if _, err := s.history.Add(question, text, results); err != nil {
		ans.Warning = err.Error()
	}
	return ans, nil
}

// Files lists the stored documents.
func (s *RAGService) Files() ([]string, error) { return s.files.List() }

// History returns up to n of the latest exchanges.
func (s *RAGService) History(n int) []history.Message { return s.history.Last(n) }

func (s *RAGService) ClearHistory() error { return s.history.Clear() }

// Stats summarises what the service holds.
type Stats struct {
	Files         int
	Chunks        int
	TotalSizeMB   float64
	Conversations int
}

func (s *RAGService) Stats() (Stats, error) {
	names, err := s.files.List()
	if err != nil {
		return Stats{}, err
	}
	size, err := s.files.TotalSizeMB()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Files:         len(names),
		Chunks:        s.db.Len(),
		TotalSizeMB:   size,
		Conversations: s.history.Len(),
	}, nil
}
