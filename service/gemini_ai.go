package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"doc-assistant/types"
)

// GeminiService is the alternate chat backend. It rotates across API keys
// when a request fails.
type GeminiService struct {
	apiKeys       []string
	currentKey    int
	client        *genai.Client
	modelName     string
	functionsCall map[string]types.FunctionHandler
	tools         []*genai.Tool
	mu            sync.Mutex
}

func NewGeminiService(apiKeys []string, modelName string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}

	service := &GeminiService{
		apiKeys:       apiKeys,
		currentKey:    0,
		modelName:     modelName,
		functionsCall: make(map[string]types.FunctionHandler),
	}

	if err := service.initClient(); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *GeminiService) initClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) rotateAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	if err := s.client.Close(); err != nil {
		return err
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) newModel(system string) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	model.Tools = s.tools
	return model
}

func (s *GeminiService) Chat(ctx context.Context, system string, messages []types.Message) (*types.Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, msg := range messages[:len(messages)-1] {
		history = append(history, &genai.Content{
			Parts: []genai.Part{genai.Text(msg.Content)},
			Role:  geminiRole(msg.Role),
		})
	}
	prompt := messages[len(messages)-1].Content

	model := s.newModel(system)
	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		if err := s.rotateAPIKey(); err != nil {
			return nil, err
		}
		model = s.newModel(system)
		chat = model.StartChat()
		chat.History = history
		resp, err = chat.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
	}

	if len(resp.Candidates) == 0 {
		return nil, errors.New("no response generated")
	}

	candidate := resp.Candidates[0]
	if funcs := candidate.FunctionCalls(); len(funcs) > 0 {
		resp, err = s.handleFunctionCall(ctx, chat, funcs)
		if err != nil {
			return nil, err
		}
	}

	content := ""
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					content += string(text)
				}
			}
		}
	}

	return &types.Message{
		Role:    types.RoleAssistant,
		Content: content,
	}, nil
}

func (s *GeminiService) handleFunctionCall(ctx context.Context, chat *genai.ChatSession, functions []genai.FunctionCall) (*genai.GenerateContentResponse, error) {
	funcResults := []genai.Part{}
	for _, function := range functions {
		handler, exists := s.functionsCall[function.Name]
		if !exists {
			return nil, fmt.Errorf("unknown function: %s", function.Name)
		}

		argsBytes, err := json.Marshal(function.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal function args: %w", err)
		}
		result, err := handler(ctx, argsBytes)
		if err != nil {
			return nil, fmt.Errorf("function execution failed: %w", err)
		}
		funcResults = append(funcResults, genai.FunctionResponse{
			Name:     function.Name,
			Response: map[string]any{"result": result},
		})
	}
	resp, err := chat.SendMessage(ctx, funcResults...)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("no response generated")
	}
	candidate := resp.Candidates[0]
	if funcs := candidate.FunctionCalls(); len(funcs) > 0 {
		return s.handleFunctionCall(ctx, chat, funcs)
	}

	return resp, nil
}

func (s *GeminiService) ChatStream(ctx context.Context, system string, messages []types.Message, handler types.StreamHandler) error {
	if len(messages) == 0 {
		return errors.New("no messages provided")
	}
	if handler == nil {
		return errors.New("no stream handler provided")
	}
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, msg := range messages[:len(messages)-1] {
		history = append(history, &genai.Content{
			Parts: []genai.Part{genai.Text(msg.Content)},
			Role:  geminiRole(msg.Role),
		})
	}
	prompt := messages[len(messages)-1].Content

	model := s.newModel(system)
	chat := model.StartChat()
	chat.History = history
	iter := chat.SendMessageStream(ctx, genai.Text(prompt))

	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}

		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					handler(string(text))
				}
			}
		}
	}
	return nil
}

// RegisterFunctionCall adds a new function to the model's capabilities
func (s *GeminiService) RegisterFunctionCall(name, description string, params jsonschema.Definition, handler types.FunctionHandler) error {
	if _, exists := s.functionsCall[name]; exists {
		return errors.New("function already registered: " + name)
	}
	functionDeclaration := &genai.FunctionDeclaration{
		Name:        name,
		Description: description,
		Parameters:  toGenaiSchema(params),
	}
	s.tools = append(s.tools, &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{functionDeclaration},
	})
	s.functionsCall[name] = handler
	return nil
}

func geminiRole(role string) string {
	if role == types.RoleAssistant {
		return "model"
	}
	return "user"
}

func toGenaiSchema(def jsonschema.Definition) *genai.Schema {
	schema := &genai.Schema{
		Description: def.Description,
	}
	switch def.Type {
	case jsonschema.Object:
		schema.Type = genai.TypeObject
	case jsonschema.String:
		schema.Type = genai.TypeString
	case jsonschema.Number:
		schema.Type = genai.TypeNumber
	case jsonschema.Integer:
		schema.Type = genai.TypeInteger
	case jsonschema.Boolean:
		schema.Type = genai.TypeBoolean
	case jsonschema.Array:
		schema.Type = genai.TypeArray
	}
	if def.Items != nil {
		schema.Items = toGenaiSchema(*def.Items)
	}
	if len(def.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(def.Properties))
		for propName, prop := range def.Properties {
			schema.Properties[propName] = toGenaiSchema(prop)
		}
	}
	schema.Required = def.Required
	return schema
}
