package model

// ChatState is the client-visible snapshot of one visitor's assistant.
type ChatState struct {
	VisitorID string       `json:"visitor_id"`
	Page      PageID       `json:"page"`
	Path      string       `json:"path"`
	IsOpen    bool         `json:"is_open"`
	IsTyping  bool         `json:"is_typing"`
	Messages  []Message    `json:"messages"`
	Stats     SessionStats `json:"stats"`
}

type SendResponse struct {
	UserMessage    Message `json:"user_message"`
	Reply          Message `json:"reply"`
	Source         string  `json:"source"`
	Degraded       bool    `json:"degraded"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
}

type ConversationListResponse struct {
	Conversations []ConversationSession `json:"conversations"`
	Total         int                   `json:"total"`
}

type PageContextResponse struct {
	Path string `json:"path"`
	Page PageID `json:"page"`
}

// WSResponse is a server frame on the live chat socket.
// Type is one of state, message, typing, error.
type WSResponse struct {
	Type    string     `json:"type"`
	State   *ChatState `json:"state,omitempty"`
	Message *Message   `json:"message,omitempty"`
	Typing  bool       `json:"typing,omitempty"`
	Error   string     `json:"error,omitempty"`
}
