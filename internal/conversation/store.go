// Package conversation holds the live message list of one visitor and the
// bounded archive of past sessions.
//
// A Store is not safe for concurrent use; the owning assistant serializes
// access to it.
package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"pyx-backend/internal/model"
)

// DefaultArchiveLimit is the number of archived sessions kept per visitor.
const DefaultArchiveLimit = 50

var (
	ErrSessionNotFound = errors.New("conversation session not found")
	ErrInvalidRating   = errors.New("satisfaction must be between 1 and 5")
)

type Store struct {
	messages     []model.Message
	topics       []string
	archive      []model.ConversationSession
	startTime    time.Time
	startPage    model.PageID
	page         model.PageID
	satisfaction *int
	// savedLen is the live length at the last Save; -1 when never saved.
	savedLen int
	limit    int
	now          func() time.Time
}

type Option func(*Store)

func WithArchiveLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		savedLen: -1,
		limit:    DefaultArchiveLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPage records the page the visitor is currently on. A session takes
// its context from the page active when its first message was added.
func (s *Store) SetPage(page model.PageID) {
	s.page = page
}

// AddMessage stamps partial with an id (unless it already carries one) and
// the current time, appends it and returns the stored copy.
func (s *Store) AddMessage(partial model.Message) model.Message {
	msg := partial.Clone()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.Timestamp = s.now()

	if len(s.messages) == 0 {
		s.startTime = msg.Timestamp
		s.startPage = s.page
	}
	s.messages = append(s.messages, msg)

	if msg.Role == model.RoleUser {
		s.topics = mergeTopics(s.topics, ExtractTopics(msg.Content))
	}
	return msg.Clone()
}

// ReplaceGreeting swaps the greeting for a freshly built one when the
// conversation consists of nothing else. It reports whether it did.
func (s *Store) ReplaceGreeting(greeting model.Message) bool {
	if len(s.messages) != 1 || s.messages[0].ID != model.GreetingID {
		return false
	}
	s.messages = nil
	greeting.ID = model.GreetingID
	s.AddMessage(greeting)
	return true
}

func (s *Store) Messages() []model.Message {
	return model.CloneMessages(s.messages)
}

func (s *Store) Len() int {
	return len(s.messages)
}

// HasUnsaved reports whether the live conversation holds more than the
// lone greeting and has changed since it was last archived.
func (s *Store) HasUnsaved() bool {
	if len(s.messages) == 0 {
		return false
	}
	if len(s.messages) == 1 && s.messages[0].ID == model.GreetingID {
		return false
	}
	return len(s.messages) != s.savedLen
}

// History returns up to n of the most recent messages, oldest first.
func (s *Store) History(n int) []model.Message {
	if n <= 0 || n >= len(s.messages) {
		return model.CloneMessages(s.messages)
	}
	return model.CloneMessages(s.messages[len(s.messages)-n:])
}

func (s *Store) Topics() []string {
	return append([]string{}, s.topics...)
}

// Rate attaches a 1..5 satisfaction score to the live session.
func (s *Store) Rate(score int) error {
	if score < 1 || score > 5 {
		return ErrInvalidRating
	}
	s.satisfaction = &score
	return nil
}

func (s *Store) Stats() model.SessionStats {
	stats := model.SessionStats{
		MessageCount: len(s.messages),
		Topics:       s.Topics(),
	}
	if len(s.messages) > 0 {
		stats.Duration = s.now().Sub(s.startTime)
	}
	if s.satisfaction != nil {
		v := *s.satisfaction
		stats.Satisfaction = &v
	}
	return stats
}

// Save archives a snapshot of the live conversation without touching it.
// It returns nil when there is nothing to save.
func (s *Store) Save() *model.ConversationSession {
	if len(s.messages) == 0 {
		return nil
	}

	end := s.now()
	context := s.startPage
	if context == "" {
		context = s.page
	}
	snapshot := model.ConversationSession{
		SessionID: uuid.New().String(),
		Messages:  model.CloneMessages(s.messages),
		StartTime: s.startTime,
		EndTime:   &end,
		Context:   context,
		Tags:      s.Topics(),
	}
	if s.satisfaction != nil {
		v := *s.satisfaction
		snapshot.Satisfaction = &v
	}

	s.savedLen = len(s.messages)
	s.archive = append([]model.ConversationSession{snapshot}, s.archive...)
	if len(s.archive) > s.limit {
		s.archive = s.archive[:s.limit]
	}

	out := snapshot.Clone()
	return &out
}

// Clear archives the live conversation, if any, and empties it. Clearing
// an empty conversation does nothing and returns nil.
func (s *Store) Clear() *model.ConversationSession {
	if len(s.messages) == 0 {
		return nil
	}
	archived := s.Save()
	s.reset()
	return archived
}

func (s *Store) reset() {
	s.messages = nil
	s.topics = nil
	s.startTime = time.Time{}
	s.startPage = ""
	s.satisfaction = nil
	s.savedLen = -1
}

// Load makes an archived session the live conversation. The live list is
// left untouched when the id is unknown.
func (s *Store) Load(sessionID string) error {
	for _, session := range s.archive {
		if session.SessionID != sessionID {
			continue
		}
		s.reset()
		s.messages = model.CloneMessages(session.Messages)
		for _, m := range s.messages {
			if m.Role == model.RoleUser {
				s.topics = mergeTopics(s.topics, ExtractTopics(m.Content))
			}
		}
		s.startTime = session.StartTime
		s.startPage = session.Context
		s.savedLen = len(s.messages)
		if session.Satisfaction != nil {
			v := *session.Satisfaction
			s.satisfaction = &v
		}
		return nil
	}
	return ErrSessionNotFound
}

// Search matches query case-insensitively against message text and tags.
// An empty query returns the whole archive.
func (s *Store) Search(query string) []model.ConversationSession {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.ConversationSession, 0)
	for _, session := range s.archive {
		if q == "" || sessionMatches(session, q) {
			out = append(out, session.Clone())
		}
	}
	return out
}

func sessionMatches(session model.ConversationSession, q string) bool {
	for _, tag := range session.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	for _, m := range session.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

// Archive returns the archived sessions, newest first.
func (s *Store) Archive() []model.ConversationSession {
	out := make([]model.ConversationSession, len(s.archive))
	for i, session := range s.archive {
		out[i] = session.Clone()
	}
	return out
}

// RestoreArchive replaces the archive with previously persisted sessions,
// truncated to the archive limit.
func (s *Store) RestoreArchive(sessions []model.ConversationSession) {
	if len(sessions) > s.limit {
		sessions = sessions[:s.limit]
	}
	s.archive = make([]model.ConversationSession, len(sessions))
	for i, session := range sessions {
		s.archive[i] = session.Clone()
	}
}
