package model

import "time"

// ConversationSession is an archived, immutable snapshot of a conversation.
type ConversationSession struct {
	SessionID    string     `json:"session_id"`
	Messages     []Message  `json:"messages"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Context      PageID     `json:"context"`
	Tags         []string   `json:"tags"`
	Satisfaction *int       `json:"satisfaction,omitempty"`
}

func (s ConversationSession) Clone() ConversationSession {
	out := s
	out.Messages = CloneMessages(s.Messages)
	out.Tags = append([]string{}, s.Tags...)
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	if s.Satisfaction != nil {
		v := *s.Satisfaction
		out.Satisfaction = &v
	}
	return out
}

type SessionStats struct {
	MessageCount int           `json:"message_count"`
	Duration     time.Duration `json:"duration"`
	Topics       []string      `json:"topics"`
	Satisfaction *int          `json:"satisfaction,omitempty"`
}
