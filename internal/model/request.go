package model

type OpenChatRequest struct {
	Path string `json:"path"`
}

type NavigateRequest struct {
	Path string `json:"path" binding:"required"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type RatingRequest struct {
	Score int `json:"score" binding:"required,min=1,max=5"`
}

type IntentRequest struct {
	Message string `json:"message" binding:"required"`
}

// WSRequest is a client frame on the live chat socket.
// Type is one of open, page, message, clear, close.
type WSRequest struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
}
