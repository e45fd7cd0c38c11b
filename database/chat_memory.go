package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryChatStore holds conversation history in process memory. Sessions
// disappear on restart, which is the intended lifetime for this service.
type MemoryChatStore struct {
	mu       sync.RWMutex
	chats    map[string]*Chat
	messages map[string][]ChatMessage
}

func NewMemoryChatStore() *MemoryChatStore {
	return &MemoryChatStore{
		chats:    make(map[string]*Chat),
		messages: make(map[string][]ChatMessage),
	}
}

func (s *MemoryChatStore) CreateChat(ctx context.Context, chat *Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	if _, exists := s.chats[chat.ID]; exists {
		return fmt.Errorf("chat %s already exists", chat.ID)
	}
	now := time.Now().Unix()
	if chat.CreatedAt == 0 {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now
	stored := *chat
	s.chats[chat.ID] = &stored
	return nil
}

func (s *MemoryChatStore) GetChat(ctx context.Context, id string) (*Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %s not found", id)
	}
	copied := *chat
	return &copied, nil
}

func (s *MemoryChatStore) ListChats(ctx context.Context) ([]Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chats := make([]Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		chats = append(chats, *chat)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt < chats[j].CreatedAt
	})
	return chats, nil
}

func (s *MemoryChatStore) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[id]; !ok {
		return fmt.Errorf("chat %s not found", id)
	}
	delete(s.chats, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryChatStore) CreateMessage(ctx context.Context, message *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[message.ChatID]
	if !ok {
		return fmt.Errorf("chat %s not found", message.ChatID)
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt == 0 {
		message.CreatedAt = time.Now().Unix()
	}
	s.messages[message.ChatID] = append(s.messages[message.ChatID], *message)
	chat.UpdatedAt = time.Now().Unix()
	return nil
}

// GetMessages returns the history of a chat in insertion order.
func (s *MemoryChatStore) GetMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.chats[chatID]; !ok {
		return nil, fmt.Errorf("chat %s not found", chatID)
	}
	stored := s.messages[chatID]
	messages := make([]ChatMessage, len(stored))
	copy(messages, stored)
	return messages, nil
}
