package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// GreetingID is the fixed id of the assistant greeting that opens a
// conversation.
const GreetingID = "greeting"

// PageID names a site section, e.g. "marketplace".
type PageID string

type Message struct {
	ID          string           `json:"id"`
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Timestamp   time.Time        `json:"timestamp"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Metadata    *MessageMetadata `json:"metadata,omitempty"`
}

type MessageMetadata struct {
	Files        []string      `json:"files,omitempty"`
	CodeBlocks   []CodeBlock   `json:"code_blocks,omitempty"`
	QuickActions []QuickAction `json:"quick_actions,omitempty"`
	Mode         string        `json:"mode,omitempty"`
	Step         int           `json:"step,omitempty"`
	Intent       string        `json:"intent,omitempty"`
	Confidence   float64       `json:"confidence,omitempty"`
	Source       string        `json:"source,omitempty"`
	Degraded     bool          `json:"degraded,omitempty"`
}

type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type QuickAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Clone returns a deep copy so callers can never alias stored messages.
func (m Message) Clone() Message {
	out := m
	if m.Suggestions != nil {
		out.Suggestions = append([]string(nil), m.Suggestions...)
	}
	if m.Metadata != nil {
		md := *m.Metadata
		if md.Files != nil {
			md.Files = append([]string(nil), md.Files...)
		}
		if md.CodeBlocks != nil {
			md.CodeBlocks = append([]CodeBlock(nil), md.CodeBlocks...)
		}
		if md.QuickActions != nil {
			md.QuickActions = append([]QuickAction(nil), md.QuickActions...)
		}
		out.Metadata = &md
	}
	return out
}

// CloneMessages deep-copies a message list. A nil input yields an empty,
// non-nil slice.
func CloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
