package types

import (
	"context"
)

const (
	TypeWebsocketPing       = "ping"
	TypeWebsocketPong       = "pong"
	TypeWebsocketChat       = "chat"
	TypeWebsocketDelta      = "delta"
	TypeWebsocketProcessing = "processing"
	TypeWebsocketError      = "error"
)

type WebsocketRequest struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketChatPayload struct {
	ChatId  string `json:"chat_id,omitempty"`
	Message string `json:"message"`
}

type WebSocketResponse struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketChatResponse struct {
	ChatId  string      `json:"chat_id"`
	Message string      `json:"message"`
	Sources []SourceRef `json:"sources,omitempty"`
}

type WebSocketDeltaResponse struct {
	ChatId string `json:"chat_id"`
	Delta  string `json:"delta"`
}

type WebSocketProcessingResponse struct {
	Message string `json:"message"`
}

// FunctionHandler is a type for handling function calls
type FunctionHandler func(ctx context.Context, args []byte) (any, error)

// Handle stream responses
type StreamHandler func(response string)

type SearchRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

type SearchResponse struct {
	Documents []Document `json:"documents"`
}
