package database

import (
	"context"

	"doc-assistant/types"
)

// Chat represents a conversation
type Chat struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ChatMessage is one utterance inside a chat
type ChatMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	ChatID    string `json:"chat_id"`
	CreatedAt int64  `json:"created_at"`
}

// ChatStore keeps per-session conversation history. All implementations
// hold state for the lifetime of the process only.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	ListChats(ctx context.Context) ([]Chat, error)
	DeleteChat(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, message *ChatMessage) error
	GetMessages(ctx context.Context, chatID string) ([]ChatMessage, error)
}

// VectorStore defines the interface for similarity search over embedded
// document chunks. Embeddings are produced by the caller; backends never
// vectorize on their own.
type VectorStore interface {
	UpsertDocument(ctx context.Context, doc *types.Document, embedding []float32) error
	BatchInsertDocuments(ctx context.Context, docs []types.Document, embeddings [][]float32) error

	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]types.Document, []float32, error)
	SearchSimilarWithMetadata(ctx context.Context, embedding []float32, metadata types.Metadata, limit int) ([]types.Document, []float32, error)

	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}
