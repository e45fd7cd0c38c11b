package service

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"

	"doc-assistant/types"
)

// AIService is a chat completion backend. The system prompt selects the
// persona for a call; registered functions are exposed to the model as
// callable tools on every request.
type AIService interface {
	Chat(ctx context.Context, system string, messages []types.Message) (*types.Message, error)
	ChatStream(ctx context.Context, system string, messages []types.Message, handler types.StreamHandler) error
	RegisterFunctionCall(name, description string, params jsonschema.Definition, handler types.FunctionHandler) error
}
