package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"

	"doc-assistant/database"
	"doc-assistant/types"
)

type fakeAICall struct {
	system   string
	messages []types.Message
}

type fakeAI struct {
	calls   []fakeAICall
	replies []string
	err     error
}

func (f *fakeAI) nextReply() string {
	if len(f.replies) == 0 {
		return "ok"
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply
}

func (f *fakeAI) Chat(ctx context.Context, system string, messages []types.Message) (*types.Message, error) {
	f.calls = append(f.calls, fakeAICall{system: system, messages: messages})
	if f.err != nil {
		return nil, f.err
	}
	return &types.Message{Role: types.RoleAssistant, Content: f.nextReply()}, nil
}

func (f *fakeAI) ChatStream(ctx context.Context, system string, messages []types.Message, handler types.StreamHandler) error {
	f.calls = append(f.calls, fakeAICall{system: system, messages: messages})
	if f.err != nil {
		return f.err
	}
	for _, word := range strings.SplitAfter(f.nextReply(), " ") {
		handler(word)
	}
	return nil
}

func (f *fakeAI) RegisterFunctionCall(name, description string, params jsonschema.Definition, handler types.FunctionHandler) error {
	return nil
}

type fakeEmbedder struct {
	queries []string
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeVectorStore struct {
	docs        []types.Document
	lastLimit   int
	lastFilter  types.Metadata
	searchCalls int
}

func (f *fakeVectorStore) UpsertDocument(ctx context.Context, doc *types.Document, embedding []float32) error {
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeVectorStore) BatchInsertDocuments(ctx context.Context, docs []types.Document, embeddings [][]float32) error {
	f.docs = append(f.docs, docs...)
	return nil
}

func (f *fakeVectorStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]types.Document, []float32, error) {
	f.searchCalls++
	f.lastLimit = limit
	scores := make([]float32, len(f.docs))
	return f.docs, scores, nil
}

func (f *fakeVectorStore) SearchSimilarWithMetadata(ctx context.Context, embedding []float32, metadata types.Metadata, limit int) ([]types.Document, []float32, error) {
	f.searchCalls++
	f.lastLimit = limit
	f.lastFilter = metadata
	scores := make([]float32, len(f.docs))
	return f.docs, scores, nil
}

func (f *fakeVectorStore) Count(ctx context.Context) (int, error) {
	return len(f.docs), nil
}

func (f *fakeVectorStore) Reset(ctx context.Context) error {
	f.docs = nil
	return nil
}

func testDoc(title, page, content string) types.Document {
	return types.Document{
		Content: content,
		Metadata: types.Metadata{
			Title:  title,
			Custom: map[string]string{"page": page},
		},
	}
}

func TestAsk_EmptyIndex(t *testing.T) {
	rag := NewRAGService(&fakeAI{}, &fakeEmbedder{}, &fakeVectorStore{}, database.NewMemoryChatStore(), 10)

	_, err := rag.Ask(context.Background(), "", "What does the manual say?")
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("Ask() error = %v, want ErrNoDocuments", err)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	store := &fakeVectorStore{docs: []types.Document{testDoc("manual", "1", "content")}}
	rag := NewRAGService(&fakeAI{}, &fakeEmbedder{}, store, database.NewMemoryChatStore(), 10)

	if _, err := rag.Ask(context.Background(), "", "   "); err == nil {
		t.Fatal("Ask() with blank question should fail")
	}
}

func TestAsk_NewChat(t *testing.T) {
	ai := &fakeAI{replies: []string{"The warranty lasts two years."}}
	store := &fakeVectorStore{docs: []types.Document{
		testDoc("manual", "3", "Warranty: two years from purchase."),
		testDoc("manual", "3", "Duplicate chunk from the same page."),
		testDoc("manual", "7", "Unrelated chunk."),
	}}
	chats := database.NewMemoryChatStore()
	rag := NewRAGService(ai, &fakeEmbedder{}, store, chats, 5)

	res, err := rag.Ask(context.Background(), "", "How long is the warranty?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.ChatId == "" {
		t.Error("Ask() did not assign a chat id")
	}
	if res.Message.Content != "The warranty lasts two years." {
		t.Errorf("answer = %q", res.Message.Content)
	}

	// Sources are deduplicated per title and page.
	if len(res.Sources) != 2 {
		t.Fatalf("got %d sources, want 2: %+v", len(res.Sources), res.Sources)
	}
	if res.Sources[0].Title != "manual" || res.Sources[0].Page != "3" {
		t.Errorf("first source = %+v", res.Sources[0])
	}

	if store.lastLimit != 5 {
		t.Errorf("search limit = %d, want topK 5", store.lastLimit)
	}

	// One exchange is recorded: the question and the answer.
	history, err := chats.GetMessages(context.Background(), res.ChatId)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	if history[0].Role != types.RoleUser || history[1].Role != types.RoleAssistant {
		t.Errorf("history roles = %s, %s", history[0].Role, history[1].Role)
	}

	// First turn goes straight to answering, no condense call.
	if len(ai.calls) != 1 {
		t.Fatalf("ai called %d times, want 1", len(ai.calls))
	}
	if !strings.Contains(ai.calls[0].messages[len(ai.calls[0].messages)-1].Content, "Context:") {
		t.Error("answer prompt is missing retrieved context")
	}
}

func TestAsk_FollowUpCondensesQuestion(t *testing.T) {
	ai := &fakeAI{replies: []string{
		"Two years.",
		"What does the warranty cover for the blender?",
		"It covers motor failures.",
	}}
	store := &fakeVectorStore{docs: []types.Document{testDoc("manual", "1", "Warranty details.")}}
	chats := database.NewMemoryChatStore()
	rag := NewRAGService(ai, &fakeEmbedder{}, store, chats, 10)
	embedder := &fakeEmbedder{}
	rag.embedder = embedder

	first, err := rag.Ask(context.Background(), "", "How long is the blender warranty?")
	if err != nil {
		t.Fatalf("first Ask() error = %v", err)
	}
	if _, err := rag.Ask(context.Background(), first.ChatId, "What does it cover?"); err != nil {
		t.Fatalf("second Ask() error = %v", err)
	}

	// Second turn condenses first, then answers. Three AI calls in total.
	if len(ai.calls) != 3 {
		t.Fatalf("ai called %d times, want 3", len(ai.calls))
	}
	if ai.calls[1].system != condenseSystemPrompt {
		t.Errorf("second call system prompt = %q, want condense prompt", ai.calls[1].system)
	}
	if !strings.Contains(ai.calls[1].messages[0].Content, "Follow-up question: What does it cover?") {
		t.Errorf("condense prompt missing follow-up: %q", ai.calls[1].messages[0].Content)
	}

	// Retrieval uses the condensed question.
	lastQuery := embedder.queries[len(embedder.queries)-1]
	if lastQuery != "What does the warranty cover for the blender?" {
		t.Errorf("retrieval query = %q, want condensed question", lastQuery)
	}

	history, _ := chats.GetMessages(context.Background(), first.ChatId)
	if len(history) != 4 {
		t.Errorf("history has %d messages, want 4", len(history))
	}
}

func TestAskStream_AccumulatesAnswer(t *testing.T) {
	ai := &fakeAI{replies: []string{"Streamed answer here."}}
	store := &fakeVectorStore{docs: []types.Document{testDoc("guide", "2", "Chunk.")}}
	rag := NewRAGService(ai, &fakeEmbedder{}, store, database.NewMemoryChatStore(), 10)

	var deltas []string
	res, err := rag.AskStream(context.Background(), "", "Question?", func(delta string) {
		deltas = append(deltas, delta)
	})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	if len(deltas) < 2 {
		t.Errorf("got %d deltas, want streaming in pieces", len(deltas))
	}
	if got := strings.Join(deltas, ""); got != "Streamed answer here." {
		t.Errorf("joined deltas = %q", got)
	}
	if res.Message.Content != "Streamed answer here." {
		t.Errorf("final message = %q", res.Message.Content)
	}
	if len(res.Sources) != 1 {
		t.Errorf("got %d sources, want 1", len(res.Sources))
	}
}

func TestSearch(t *testing.T) {
	store := &fakeVectorStore{docs: []types.Document{testDoc("manual", "1", "chunk")}}
	rag := NewRAGService(&fakeAI{}, &fakeEmbedder{}, store, database.NewMemoryChatStore(), 7)

	if _, err := rag.Search(context.Background(), "  ", nil, 5); err == nil {
		t.Error("Search() with blank query should fail")
	}

	docs, err := rag.Search(context.Background(), "warranty", []string{"appliance"}, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("got %d docs, want 1", len(docs))
	}
	if store.lastLimit != 7 {
		t.Errorf("limit = %d, want topK fallback 7", store.lastLimit)
	}
	if len(store.lastFilter.Tags) != 1 || store.lastFilter.Tags[0] != "appliance" {
		t.Errorf("tags filter = %+v", store.lastFilter.Tags)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	rag := NewRAGService(&fakeAI{}, &fakeEmbedder{}, &fakeVectorStore{}, database.NewMemoryChatStore(), 10)

	_, err := rag.Search(context.Background(), "warranty", nil, 5)
	if !errors.Is(err, ErrNoDocuments) {
		t.Errorf("Search() error = %v, want ErrNoDocuments", err)
	}
}
