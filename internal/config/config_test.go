package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Embedder.Type != "hashing" || cfg.Embedder.Hashing.Dimension != 384 {
		t.Errorf("unexpected embedder defaults %+v", cfg.Embedder)
	}
	if cfg.Chunker.ChunkSize != 500 || cfg.Chunker.ChunkOverlap != 50 {
		t.Errorf("unexpected chunker defaults %+v", cfg.Chunker)
	}
	if cfg.Search.TopK != 5 || cfg.VectorStore.Filter != "post" {
		t.Errorf("unexpected search defaults %+v %+v", cfg.Search, cfg.VectorStore)
	}
	if cfg.VectorStore.Path != filepath.Join("data", "vector_db.gob") {
		t.Errorf("unexpected snapshot path %q", cfg.VectorStore.Path)
	}
	if cfg.LLM.Model != "google/gemma-3n-e2b-it:free" || cfg.LLM.MaxTokens != 1000 || cfg.LLM.TimeoutSecs != 30 {
		t.Errorf("unexpected llm defaults %+v", cfg.LLM)
	}
}

func TestLoad_FileWithPartialSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
data_dir: /var/lib/docubrain
embedder:
  type: openai
vector_store:
  type: qdrant
  filter: pre
llm:
  model: my/model
  requests_per_minute: 20
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Embedder.OpenAI == nil || cfg.Embedder.OpenAI.APIKeyEnv != "OPENAI_API_KEY" || cfg.Embedder.OpenAI.BatchSize != 32 {
		t.Errorf("openai embedder defaults not applied: %+v", cfg.Embedder.OpenAI)
	}
	if cfg.VectorStore.Qdrant == nil || cfg.VectorStore.Qdrant.URL != "http://localhost:6333" {
		t.Errorf("qdrant defaults not applied: %+v", cfg.VectorStore.Qdrant)
	}
	if cfg.VectorStore.Filter != "pre" {
		t.Errorf("filter overwritten: %q", cfg.VectorStore.Filter)
	}
	if cfg.History.Path != "/var/lib/docubrain/chat_history.json" {
		t.Errorf("history path should follow data_dir, got %q", cfg.History.Path)
	}
	if cfg.LLM.Model != "my/model" || cfg.LLM.RequestsPerMinute != 20 || cfg.LLM.APIKeyEnv != "OPENROUTER_API_KEY" {
		t.Errorf("unexpected llm section %+v", cfg.LLM)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("embedder: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.LLM.Model = "other/model"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.LLM.Model != "other/model" || got.Chunker.ChunkSize != 500 {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestApplyEnvAndAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_BASE_URL", "http://localhost:9999/v1/chat/completions")
	t.Setenv("OPENROUTER_MODEL", "env/model")
	t.Setenv("OPENROUTER_API_KEY", "k-123")

	cfg := defaultConfig()
	ApplyEnv(cfg)
	if cfg.LLM.BaseURL != "http://localhost:9999/v1/chat/completions" || cfg.LLM.Model != "env/model" {
		t.Errorf("env overrides not applied: %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey() != "k-123" {
		t.Errorf("unexpected api key %q", cfg.LLM.APIKey())
	}
}
