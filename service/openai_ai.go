package service

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"doc-assistant/types"
)

type OpenAIService struct {
	client        *openai.Client
	functionsCall map[string]types.FunctionHandler
	tools         []openai.Tool
	model         string
	temperature   float32
}

func NewOpenAIService(baseURL, apiKey, model string, temperature float32) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIService{
		client:        client,
		functionsCall: make(map[string]types.FunctionHandler),
		tools:         make([]openai.Tool, 0),
		model:         model,
		temperature:   temperature,
	}
}

func (s *OpenAIService) Chat(ctx context.Context, system string, messages []types.Message) (*types.Message, error) {
	openaiMessages := s.convertMessages(system, messages)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Messages:    openaiMessages,
			Tools:       s.tools,
			Model:       s.model,
			Temperature: s.temperature,
		},
	)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response generated")
	}

	if resp.Choices[0].FinishReason == openai.FinishReasonToolCalls {
		resp, err = s.handleFunctionCall(ctx, openaiMessages, resp)
		if err != nil {
			return nil, err
		}
	}

	return &types.Message{
		Role:    types.RoleAssistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func (s *OpenAIService) ChatStream(ctx context.Context, system string, messages []types.Message, streamHandler types.StreamHandler) error {
	openaiMessages := s.convertMessages(system, messages)

	stream, err := s.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Messages:    openaiMessages,
			Model:       s.model,
			Temperature: s.temperature,
		},
	)
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Error().Err(err).Msg("error receiving response from stream")
			return err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		streamHandler(resp.Choices[0].Delta.Content)
	}
}

func (s *OpenAIService) RegisterFunctionCall(name, description string, params jsonschema.Definition, handler types.FunctionHandler) error {
	if _, exists := s.functionsCall[name]; exists {
		return errors.New("function already registered: " + name)
	}
	f := openai.FunctionDefinition{
		Name:        name,
		Description: description,
		Parameters:  params,
	}
	t := openai.Tool{
		Type:     openai.ToolTypeFunction,
		Function: &f,
	}
	s.functionsCall[name] = handler
	s.tools = append(s.tools, t)
	return nil
}

func (s *OpenAIService) convertMessages(system string, messages []types.Message) []openai.ChatCompletionMessage {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == types.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return openaiMessages
}

func (s *OpenAIService) handleFunctionCall(ctx context.Context, openaiMessages []openai.ChatCompletionMessage, resp openai.ChatCompletionResponse) (openai.ChatCompletionResponse, error) {
	openaiMessages = append(openaiMessages, resp.Choices[0].Message)
	for _, toolCall := range resp.Choices[0].Message.ToolCalls {
		if toolCall.Type != openai.ToolTypeFunction {
			continue
		}
		handler := s.functionsCall[toolCall.Function.Name]
		if handler == nil {
			return openai.ChatCompletionResponse{}, errors.New("no handler found for function call " + toolCall.Function.Name)
		}
		result, err := handler(ctx, []byte(toolCall.Function.Arguments))
		if err != nil {
			return openai.ChatCompletionResponse{}, err
		}
		content, ok := result.(string)
		if !ok {
			return openai.ChatCompletionResponse{}, errors.New("function " + toolCall.Function.Name + " returned a non-string result")
		}
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    content,
			Name:       toolCall.Function.Name,
			ToolCallID: toolCall.ID,
		})
	}
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Messages:    openaiMessages,
			Tools:       s.tools,
			Model:       s.model,
			Temperature: s.temperature,
		},
	)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no response generated")
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonToolCalls {
		return s.handleFunctionCall(ctx, openaiMessages, resp)
	}
	return resp, nil
}
