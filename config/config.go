package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"port"`
	UploadDir     string `mapstructure:"upload_dir"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`

	AIBackend    string   `mapstructure:"ai_backend"`
	AIEndpoint   string   `mapstructure:"ai_endpoint"`
	OpenAIAPIKey string   `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKey []string `mapstructure:"gemini_api_keys"`

	ChatModel      string  `mapstructure:"chat_model"`
	PlannerModel   string  `mapstructure:"planner_model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Temperature    float32 `mapstructure:"temperature"`

	RAG         RAGConfig         `mapstructure:"rag"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Search      SearchConfig      `mapstructure:"search"`
}

type RAGConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

type VectorStoreConfig struct {
	Backend    string              `mapstructure:"backend"` // chromem or weaviate
	Path       string              `mapstructure:"path"`    // chromem persistence dir, empty for in-memory
	Collection string              `mapstructure:"collection"`
	Weaviate   WeaviateStoreConfig `mapstructure:"weaviate"`
}

type WeaviateStoreConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

type SearchConfig struct {
	APIKey     string `mapstructure:"GOOGLE_SEARCH_API_KEY"`
	EngineID   string `mapstructure:"engine_id"`
	MaxResults int    `mapstructure:"max_results"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("vector_store.weaviate.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")
	v.BindEnv("search.GOOGLE_SEARCH_API_KEY", "GOOGLE_SEARCH_API_KEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("max_upload_size", 10<<20)
	v.SetDefault("ai_backend", "openai")
	v.SetDefault("chat_model", "gpt-4o-mini")
	v.SetDefault("planner_model", "gpt-4o")
	v.SetDefault("embedding_model", "text-embedding-3-large")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("rag.chunk_size", 400)
	v.SetDefault("rag.chunk_overlap", 60)
	v.SetDefault("rag.top_k", 10)
	v.SetDefault("vector_store.backend", "chromem")
	v.SetDefault("vector_store.collection", "documents")
	v.SetDefault("search.max_results", 3)
}
