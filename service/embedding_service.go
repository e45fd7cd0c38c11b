package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"doc-assistant/utils"
)

// Embedder produces vector representations of text through a hosted model.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	embedBatchSize  = 100
	embedMaxRetries = 3
)

type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.createWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := e.createWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != end-i {
			return nil, fmt.Errorf("embedding batch %d-%d returned %d vectors", i, end, len(resp.Data))
		}
		for _, item := range resp.Data {
			embeddings = append(embeddings, item.Embedding)
		}
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) createWithRetry(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= embedMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return openai.EmbeddingResponse{}, ctx.Err()
			case <-time.After(utils.CalculateBackoff(time.Second, attempt)):
			}
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: input,
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("embedding request failed")
	}
	return openai.EmbeddingResponse{}, fmt.Errorf("embedding request failed after %d attempts: %w", embedMaxRetries+1, lastErr)
}
