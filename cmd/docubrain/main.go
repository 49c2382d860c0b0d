package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docubrain/internal/chunker"
	"docubrain/internal/config"
	"docubrain/internal/domain"
	"docubrain/internal/embedding"
	"docubrain/internal/embedding/hashing"
	"docubrain/internal/embedding/openai"
	"docubrain/internal/files"
	"docubrain/internal/history"
	"docubrain/internal/llm"
	"docubrain/internal/logger"
	"docubrain/internal/pdf"
	"docubrain/internal/service"
	"docubrain/internal/summarizer"
	"docubrain/internal/tui"
	"docubrain/internal/vectordb"
	"docubrain/internal/vectorstore"
	"docubrain/internal/vectorstore/memory"
	"docubrain/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docubrain/config.yaml if not provided)")
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	config.ApplyEnv(cfg)

	lg, closer, err := logger.Open(cfg.Log)
	if err != nil {
		log.Fatalf("failed to open log: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(lg)

	ctx := context.Background()

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		emb = hashing.NewEmbedder(cfg.Embedder.Hashing.Dimension)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		emb = client
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "words", "":
		ch = chunker.NewWordChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	default:
		log.Fatalf("unknown chunker: %s", cfg.Chunker.Type)
	}

	var factory vectorstore.Factory
	switch cfg.VectorStore.Type {
	case "memory", "":
		factory = memory.Factory{}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		factory = qdrant.Factory{Config: qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		}}
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	case "none":
	default:
		log.Fatalf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	fm, err := files.NewManager(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to prepare data dir: %v", err)
	}
	db := vectordb.Open(ctx, emb, factory, vectordb.NewFileStore(cfg.VectorStore.Path),
		vectordb.WithFilter(vectordb.FilterByName(cfg.VectorStore.Filter)),
		vectordb.WithLogger(lg.With("component", "vectordb")),
	)
	gen := llm.NewClient(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey(),
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout(),
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, lg.With("component", "llm"))

	svc := service.NewRAGService(service.Deps{
		Files:      fm,
		Extractor:  pdf.NewExtractor(lg.With("component", "pdf")),
		Chunker:    ch,
		DB:         db,
		Summarizer: sum,
		Generator:  gen,
		History:    history.Load(cfg.History.Path, lg),
		Logger:     lg.With("component", "service"),
	}, service.Options{TopK: cfg.Search.TopK, SummarySentences: cfg.Summarizer.MaxSentences})

	intro := ""
	if len(inputs) > 0 {
		var b strings.Builder
		for _, p := range inputs {
			report, err := svc.Ingest(ctx, p)
			if err != nil {
				fmt.Fprintf(&b, "✗ %s: %v\n", p, err)
				continue
			}
			fmt.Fprintf(&b, "✓ %s stored as %s (%d chunks)\n", p, report.StoredName, report.Chunks)
			if report.Summary != "" {
				fmt.Fprintf(&b, "  summary: %s\n", report.Summary)
			}
		}
		intro = b.String()
	}

	m := tui.New(ctx, svc, intro)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
