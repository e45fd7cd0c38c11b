package types

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in the conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	ChatId  string `json:"chat_id,omitempty"`
	Message string `json:"message"`
}

// SourceRef points back at the document a retrieved chunk came from.
type SourceRef struct {
	Title string `json:"title"`
	Page  string `json:"page,omitempty"`
}

type ChatResponse struct {
	ChatId  string      `json:"chat_id"`
	Message *Message    `json:"message"`
	Sources []SourceRef `json:"sources,omitempty"`
}
