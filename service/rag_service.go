package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"doc-assistant/database"
	"doc-assistant/types"
)

// ErrNoDocuments means a question arrived before anything was indexed.
var ErrNoDocuments = errors.New("no documents have been uploaded yet, please upload files first")

const qaSystemPrompt = `You are a helpful assistant answering questions about the user's uploaded documents. Answer using only the provided context. If the context does not contain the answer, say that you don't know instead of guessing.`

const condenseSystemPrompt = `Given the following conversation and a follow-up question, rephrase the follow-up question to be a standalone question that can be understood without the conversation. Return only the rephrased question.`

// RAGService answers questions over uploaded documents: condense the
// question against history, retrieve the nearest chunks, answer from them.
type RAGService struct {
	ai       AIService
	embedder Embedder
	store    database.VectorStore
	chats    database.ChatStore
	topK     int
}

func NewRAGService(ai AIService, embedder Embedder, store database.VectorStore, chats database.ChatStore, topK int) *RAGService {
	if topK <= 0 {
		topK = 10
	}
	return &RAGService{
		ai:       ai,
		embedder: embedder,
		store:    store,
		chats:    chats,
		topK:     topK,
	}
}

// Ask runs one conversational turn. An empty chatID starts a new session.
func (s *RAGService) Ask(ctx context.Context, chatID, question string) (*types.ChatResponse, error) {
	chatID, history, docs, err := s.prepareTurn(ctx, chatID, question)
	if err != nil {
		return nil, err
	}

	answer, err := s.ai.Chat(ctx, qaSystemPrompt, answerMessages(history, question, docs))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if err := s.recordExchange(ctx, chatID, question, answer.Content); err != nil {
		return nil, err
	}

	return &types.ChatResponse{
		ChatId:  chatID,
		Message: answer,
		Sources: sourcesFromDocs(docs),
	}, nil
}

// AskStream behaves like Ask but delivers the answer through handler as it
// is generated. The returned response carries the full accumulated answer.
func (s *RAGService) AskStream(ctx context.Context, chatID, question string, handler types.StreamHandler) (*types.ChatResponse, error) {
	chatID, history, docs, err := s.prepareTurn(ctx, chatID, question)
	if err != nil {
		return nil, err
	}

	var answer strings.Builder
	err = s.ai.ChatStream(ctx, qaSystemPrompt, answerMessages(history, question, docs), func(delta string) {
		answer.WriteString(delta)
		handler(delta)
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if err := s.recordExchange(ctx, chatID, question, answer.String()); err != nil {
		return nil, err
	}

	return &types.ChatResponse{
		ChatId: chatID,
		Message: &types.Message{
			Role:    types.RoleAssistant,
			Content: answer.String(),
		},
		Sources: sourcesFromDocs(docs),
	}, nil
}

// Search runs a plain similarity query without touching any chat session.
func (s *RAGService) Search(ctx context.Context, query string, tags []string, limit int) ([]types.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query must not be empty")
	}
	if limit <= 0 {
		limit = s.topK
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check document index: %w", err)
	}
	if count == 0 {
		return nil, ErrNoDocuments
	}
	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	docs, _, err := s.store.SearchSimilarWithMetadata(ctx, embedding, types.Metadata{Tags: tags}, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	return docs, nil
}

func (s *RAGService) prepareTurn(ctx context.Context, chatID, question string) (string, []database.ChatMessage, []types.Document, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, nil, errors.New("question must not be empty")
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to check document index: %w", err)
	}
	if count == 0 {
		return "", nil, nil, ErrNoDocuments
	}

	if chatID == "" {
		chat := &database.Chat{Title: truncate(question, 80)}
		if err := s.chats.CreateChat(ctx, chat); err != nil {
			return "", nil, nil, fmt.Errorf("failed to create chat: %w", err)
		}
		chatID = chat.ID
	}

	history, err := s.chats.GetMessages(ctx, chatID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	standalone := question
	if len(history) > 0 {
		standalone = s.condenseQuestion(ctx, history, question)
	}

	embedding, err := s.embedder.EmbedQuery(ctx, standalone)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to embed question: %w", err)
	}

	docs, _, err := s.store.SearchSimilar(ctx, embedding, s.topK)
	if err != nil {
		return "", nil, nil, fmt.Errorf("similarity search failed: %w", err)
	}

	return chatID, history, docs, nil
}

// condenseQuestion rewrites a follow-up into a standalone question. On
// failure the original question is used as the search query instead.
func (s *RAGService) condenseQuestion(ctx context.Context, history []database.ChatMessage, question string) string {
	var transcript strings.Builder
	for _, msg := range history {
		transcript.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
	}
	transcript.WriteString(fmt.Sprintf("Follow-up question: %s", question))

	condensed, err := s.ai.Chat(ctx, condenseSystemPrompt, []types.Message{
		{Role: types.RoleUser, Content: transcript.String()},
	})
	if err != nil || strings.TrimSpace(condensed.Content) == "" {
		log.Warn().Err(err).Msg("failed to condense question, using it as-is")
		return question
	}
	return strings.TrimSpace(condensed.Content)
}

func (s *RAGService) recordExchange(ctx context.Context, chatID, question, answer string) error {
	userMsg := &database.ChatMessage{ChatID: chatID, Role: types.RoleUser, Content: question}
	if err := s.chats.CreateMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("failed to record user message: %w", err)
	}
	assistantMsg := &database.ChatMessage{ChatID: chatID, Role: types.RoleAssistant, Content: answer}
	if err := s.chats.CreateMessage(ctx, assistantMsg); err != nil {
		return fmt.Errorf("failed to record assistant message: %w", err)
	}
	return nil
}

func answerMessages(history []database.ChatMessage, question string, docs []types.Document) []types.Message {
	messages := make([]types.Message, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, types.Message{Role: msg.Role, Content: msg.Content})
	}

	var prompt strings.Builder
	prompt.WriteString("Context:\n")
	for _, doc := range docs {
		ref := doc.Metadata.Title
		if page, ok := doc.Metadata.Custom["page"]; ok && page != "" {
			ref = fmt.Sprintf("%s, page %s", ref, page)
		}
		prompt.WriteString(fmt.Sprintf("[%s]\n%s\n\n", ref, doc.Content))
	}
	prompt.WriteString(fmt.Sprintf("Question: %s", question))

	return append(messages, types.Message{Role: types.RoleUser, Content: prompt.String()})
}

func sourcesFromDocs(docs []types.Document) []types.SourceRef {
	var sources []types.SourceRef
	seen := make(map[string]bool)
	for _, doc := range docs {
		ref := types.SourceRef{
			Title: doc.Metadata.Title,
			Page:  doc.Metadata.Custom["page"],
		}
		key := ref.Title + "#" + ref.Page
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, ref)
	}
	return sources
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
