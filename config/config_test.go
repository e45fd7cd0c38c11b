package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "port: \"9000\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Port)
	}
	if cfg.RAG.ChunkSize != 400 {
		t.Errorf("chunk_size = %d, want default 400", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ChunkOverlap != 60 {
		t.Errorf("chunk_overlap = %d, want default 60", cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != 10 {
		t.Errorf("top_k = %d, want default 10", cfg.RAG.TopK)
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("chat_model = %q", cfg.ChatModel)
	}
	if cfg.PlannerModel != "gpt-4o" {
		t.Errorf("planner_model = %q", cfg.PlannerModel)
	}
	if cfg.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", cfg.Temperature)
	}
	if cfg.VectorStore.Backend != "chromem" {
		t.Errorf("vector store backend = %q, want chromem", cfg.VectorStore.Backend)
	}
	if cfg.MaxUploadSize != 10<<20 {
		t.Errorf("max_upload_size = %d, want %d", cfg.MaxUploadSize, 10<<20)
	}
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "3000"
chat_model: gpt-4o
rag:
  chunk_size: 800
  chunk_overlap: 120
  top_k: 4
vector_store:
  backend: weaviate
  weaviate:
    host: weaviate.internal:8080
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != "3000" || cfg.ChatModel != "gpt-4o" {
		t.Errorf("overrides not applied: port=%q model=%q", cfg.Port, cfg.ChatModel)
	}
	if cfg.RAG.ChunkSize != 800 || cfg.RAG.ChunkOverlap != 120 || cfg.RAG.TopK != 4 {
		t.Errorf("rag overrides not applied: %+v", cfg.RAG)
	}
	if cfg.VectorStore.Backend != "weaviate" {
		t.Errorf("backend = %q, want weaviate", cfg.VectorStore.Backend)
	}
	if cfg.VectorStore.Weaviate.Host != "weaviate.internal:8080" {
		t.Errorf("weaviate host = %q", cfg.VectorStore.Weaviate.Host)
	}
}

func TestLoadConfig_EnvAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	path := writeConfig(t, "port: \"8080\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test-123" {
		t.Errorf("OpenAIAPIKey = %q, want value from environment", cfg.OpenAIAPIKey)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() with missing file should fail")
	}
}
