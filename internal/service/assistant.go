package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pyx-backend/internal/ai"
	"pyx-backend/internal/config"
	"pyx-backend/internal/conversation"
	"pyx-backend/internal/greeting"
	"pyx-backend/internal/intent"
	"pyx-backend/internal/metrics"
	"pyx-backend/internal/model"
	"pyx-backend/internal/pagectx"
	"pyx-backend/internal/persist"
	"pyx-backend/internal/recommend"
	"pyx-backend/pkg/logger"
)

var (
	ErrBusy         = errors.New("a reply is already being generated")
	ErrEmptyMessage = errors.New("message is empty")
)

// GeneratorFactory builds the response generator for resolved settings.
type GeneratorFactory func(ctx context.Context, s ai.Settings) *ai.Generator

// Deps are the collaborators shared by every assistant.
type Deps struct {
	Config       *config.Config
	Store        *persist.Store
	Metrics      *metrics.Metrics
	Recommender  *recommend.Engine
	NewGenerator GeneratorFactory
}

func (d *Deps) withDefaults() {
	if d.Config == nil {
		d.Config = &config.Config{}
	}
	if d.Recommender == nil {
		d.Recommender = recommend.NewEngine()
	}
	if d.NewGenerator == nil {
		m := d.Metrics
		d.NewGenerator = func(ctx context.Context, s ai.Settings) *ai.Generator {
			return ai.NewGenerator(ctx, s, m)
		}
	}
}

// ProgressEvent reports one stage of a reply while it is produced.
type ProgressEvent struct {
	Stage     string    `json:"stage"` // classified, generating, completed
	Message   string    `json:"message"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	StageClassified = "classified"
	StageGenerating = "generating"
	StageCompleted  = "completed"
)

// Assistant is the chat orchestrator for one visitor. All state changes go
// through its methods; mu guards them. persistMu orders writes to the store
// and is always taken before mu.
type Assistant struct {
	mu        sync.Mutex
	persistMu sync.Mutex

	visitorID string
	deps      Deps

	conv  *conversation.Store
	gen   *ai.Generator
	prefs model.UserPreferences

	profile  model.UserProfile
	aiConfig model.AIServiceConfig

	page     model.PageID
	path     string
	isOpen   bool
	isTyping bool

	// sessionID identifies the live conversation to the generator.
	sessionID string
	// epoch changes whenever the live conversation is replaced, so a reply
	// that finishes afterwards is not appended to the wrong conversation.
	epoch      int
	lastActive time.Time
}

// NewAssistant restores the visitor's documents from deps.Store, if set.
// Load failures are logged and the defaults are used.
func NewAssistant(ctx context.Context, visitorID string, deps Deps) *Assistant {
	deps.withDefaults()

	a := &Assistant{
		visitorID:  visitorID,
		deps:       deps,
		conv:       conversation.NewStore(conversation.WithArchiveLimit(deps.Config.Chat.ArchiveLimit)),
		prefs:      model.DefaultPreferences(),
		page:       pagectx.Default,
		path:       "/",
		sessionID:  uuid.New().String(),
		lastActive: time.Now(),
	}
	a.restore(ctx)
	a.gen = deps.NewGenerator(ctx, ai.ResolveSettings(deps.Config.AI, a.aiConfig))
	a.conv.SetPage(a.page)
	return a
}

func (a *Assistant) restore(ctx context.Context) {
	store := a.deps.Store
	if store == nil {
		return
	}
	if prefs, err := store.LoadPreferences(ctx, a.visitorID); err != nil {
		a.loadFailed("preferences", err)
	} else {
		a.prefs = prefs
	}
	if profile, err := store.LoadProfile(ctx, a.visitorID); err != nil {
		a.loadFailed("profile", err)
	} else {
		a.profile = profile
	}
	if cfg, err := store.LoadAIConfig(ctx, a.visitorID); err != nil {
		a.loadFailed("ai-config", err)
	} else {
		a.aiConfig = cfg
	}
	if sessions, err := store.LoadConversations(ctx, a.visitorID); err != nil {
		a.loadFailed("conversations", err)
	} else {
		a.conv.RestoreArchive(sessions)
	}
}

func (a *Assistant) loadFailed(kind string, err error) {
	a.deps.Metrics.RecordStorageError("load_" + kind)
	logger.Warnf("Failed to load %s for visitor %s, using defaults: %v", kind, a.visitorID, err)
}

func (a *Assistant) VisitorID() string { return a.visitorID }

// LastActive is when the assistant last handled a call.
func (a *Assistant) LastActive() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActive
}

func (a *Assistant) touch() {
	a.lastActive = time.Now()
}

// Open shows the chat. An empty conversation gets the page greeting, and a
// lone greeting from another page is rebuilt for this one.
func (a *Assistant) Open(ctx context.Context, path string) model.ChatState {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touch()

	previous := a.page
	if path != "" {
		a.setPath(path)
	}
	a.isOpen = true
	if a.conv.Len() == 0 {
		a.conv.AddMessage(greeting.Build(a.page, a.profile, a.prefs))
	} else if a.page != previous {
		a.conv.ReplaceGreeting(greeting.Build(a.page, a.profile, a.prefs))
	}
	return a.snapshot()
}

// Close hides the chat and archives a snapshot of the conversation. The
// live conversation is kept, so reopening continues it.
func (a *Assistant) Close(ctx context.Context) (model.ChatState, error) {
	a.mu.Lock()
	a.touch()
	a.isOpen = false
	archived := a.archiveLive()
	state := a.snapshot()
	a.mu.Unlock()

	if !archived {
		return state, nil
	}
	return state, a.persistConversations(ctx)
}

// archiveLive snapshots the live conversation when it has changed since it
// was last archived. Callers hold a.mu.
func (a *Assistant) archiveLive() bool {
	if !a.conv.HasUnsaved() {
		return false
	}
	a.conv.Save()
	a.deps.Metrics.RecordArchived()
	return true
}

// Navigate records a page change. A conversation holding only the greeting
// gets the new page's greeting instead.
func (a *Assistant) Navigate(ctx context.Context, path string) model.ChatState {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touch()

	previous := a.page
	a.setPath(path)
	if a.page != previous {
		a.conv.ReplaceGreeting(greeting.Build(a.page, a.profile, a.prefs))
	}
	return a.snapshot()
}

func (a *Assistant) setPath(path string) {
	a.path = path
	a.page = pagectx.Resolve(path)
	a.conv.SetPage(a.page)
}

// Send answers one visitor message.
func (a *Assistant) Send(ctx context.Context, text string) (*model.SendResponse, error) {
	return a.SendWithProgress(ctx, text, nil)
}

// SendWithProgress is Send with stage callbacks for streaming transports.
// Only one message may be pending at a time; a second call returns ErrBusy.
func (a *Assistant) SendWithProgress(ctx context.Context, text string, progress func(ProgressEvent)) (*model.SendResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	a.mu.Lock()
	if a.isTyping {
		a.mu.Unlock()
		a.deps.Metrics.RecordBusy()
		return nil, ErrBusy
	}
	a.touch()

	result := intent.Classify(text)
	history := a.conv.History(a.deps.Config.AI.HistoryTurns)
	userMsg := a.conv.AddMessage(model.Message{
		Role:    model.RoleUser,
		Content: text,
		Metadata: &model.MessageMetadata{
			Intent:     result.Intent,
			Confidence: result.Confidence,
			Files:      result.Entity(intent.EntityFile),
		},
	})
	a.isTyping = true
	epoch := a.epoch
	gen := a.gen
	req := &ai.Request{
		SessionID:   a.sessionID,
		Input:       text,
		Page:        a.page,
		Profile:     a.profile.Clone(),
		Preferences: a.prefs,
		History:     history,
	}
	a.mu.Unlock()

	a.deps.Metrics.RecordMessage(string(model.RoleUser))
	a.deps.Metrics.RecordIntent(result.Intent)
	emit(progress, ProgressEvent{Stage: StageClassified, Message: "Message received", Intent: result.Intent})
	emit(progress, ProgressEvent{Stage: StageGenerating, Message: "PyX is typing"})

	resp := gen.Generate(ctx, req)

	reply := model.Message{
		Role:        model.RoleAssistant,
		Content:     resp.Content,
		Suggestions: resp.Suggestions,
		Metadata: &model.MessageMetadata{
			CodeBlocks: ExtractCodeBlocks(resp.Content),
			Source:     resp.Source,
			Degraded:   resp.Degraded(),
		},
	}

	a.mu.Lock()
	a.isTyping = false
	a.touch()
	if a.epoch == epoch {
		reply = a.conv.AddMessage(reply)
	} else {
		logger.Debugf("Dropping reply for visitor %s: conversation replaced while generating", a.visitorID)
	}
	a.mu.Unlock()

	a.deps.Metrics.RecordMessage(string(model.RoleAssistant))
	emit(progress, ProgressEvent{Stage: StageCompleted, Message: "Reply ready"})

	out := &model.SendResponse{
		UserMessage: userMsg,
		Reply:       reply,
		Source:      resp.Source,
		Degraded:    resp.Degraded(),
	}
	if resp.Fallback != nil {
		out.FallbackReason = string(resp.Fallback.Reason)
	}
	return out, nil
}

func emit(progress func(ProgressEvent), ev ProgressEvent) {
	if progress == nil {
		return
	}
	ev.Timestamp = time.Now()
	progress(ev)
}

var fencePattern = regexp.MustCompile("(?s)```([\\w+#.-]*)[^\\n]*\\n(.*?)```")

// ExtractCodeBlocks returns the fenced code blocks in content, in order.
func ExtractCodeBlocks(content string) []model.CodeBlock {
	matches := fencePattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]model.CodeBlock, 0, len(matches))
	for _, m := range matches {
		lang := m[1]
		if lang == "" {
			lang = "text"
		}
		blocks = append(blocks, model.CodeBlock{Language: lang, Code: strings.TrimRight(m[2], "\n")})
	}
	return blocks
}

// ClearChat archives the live conversation, if any, and empties it.
func (a *Assistant) ClearChat(ctx context.Context) (*model.ConversationSession, error) {
	a.mu.Lock()
	a.touch()
	archived := a.conv.Clear()
	if archived != nil {
		a.replaceConversation()
	}
	a.mu.Unlock()

	if archived == nil {
		return nil, nil
	}
	a.deps.Metrics.RecordArchived()
	return archived, a.persistConversations(ctx)
}

// SaveConversation archives a snapshot and keeps chatting.
func (a *Assistant) SaveConversation(ctx context.Context) (*model.ConversationSession, error) {
	a.mu.Lock()
	a.touch()
	saved := a.conv.Save()
	a.mu.Unlock()

	if saved == nil {
		return nil, nil
	}
	a.deps.Metrics.RecordArchived()
	return saved, a.persistConversations(ctx)
}

// LoadConversation makes an archived session the live conversation.
func (a *Assistant) LoadConversation(ctx context.Context, sessionID string) (model.ChatState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touch()

	if err := a.conv.Load(sessionID); err != nil {
		return model.ChatState{}, err
	}
	a.replaceConversation()
	return a.snapshot(), nil
}

func (a *Assistant) replaceConversation() {
	a.epoch++
	a.sessionID = uuid.New().String()
}

func (a *Assistant) SearchConversations(query string) []model.ConversationSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touch()
	return a.conv.Search(query)
}

// Conversations lists the archive, newest first.
func (a *Assistant) Conversations() []model.ConversationSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.Archive()
}

func (a *Assistant) Stats() model.SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.Stats()
}

func (a *Assistant) RateSession(score int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touch()
	return a.conv.Rate(score)
}

func (a *Assistant) Preferences() model.UserPreferences {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prefs
}

func (a *Assistant) UpdatePreferences(ctx context.Context, prefs model.UserPreferences) error {
	a.mu.Lock()
	a.touch()
	a.prefs = prefs
	a.refreshGreeting()
	a.mu.Unlock()

	return persistDoc(ctx, a, "preferences",
		func() model.UserPreferences { return a.prefs },
		a.deps.Store.SavePreferences)
}

func (a *Assistant) Profile() model.UserProfile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile.Clone()
}

func (a *Assistant) UpdateProfile(ctx context.Context, profile model.UserProfile) error {
	a.mu.Lock()
	a.touch()
	a.profile = profile.Clone()
	a.refreshGreeting()
	a.mu.Unlock()

	return persistDoc(ctx, a, "profile",
		func() model.UserProfile { return a.profile.Clone() },
		a.deps.Store.SaveProfile)
}

// refreshGreeting re-personalises a conversation that is still only the
// greeting.
func (a *Assistant) refreshGreeting() {
	a.conv.ReplaceGreeting(greeting.Build(a.page, a.profile, a.prefs))
}

// AIConfig returns the visitor's provider selection with keys masked.
func (a *Assistant) AIConfig() model.AIServiceConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aiConfig.Masked()
}

// ProviderName is the provider the next reply will be requested from.
func (a *Assistant) ProviderName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen.ProviderName()
}

// UpdateAIConfig replaces the provider selection and rebuilds the
// generator. Keys left empty or still masked keep their stored value.
func (a *Assistant) UpdateAIConfig(ctx context.Context, cfg model.AIServiceConfig) error {
	if cfg.Provider != "" && !isKnownProvider(cfg.Provider) {
		return &ValidationError{Field: "provider", Message: "unknown provider " + cfg.Provider}
	}

	a.mu.Lock()
	next := cfg.Clone()
	for name, key := range a.aiConfig.APIKeys {
		if v, ok := next.APIKeys[name]; !ok || v == "" || strings.HasPrefix(v, "****") {
			if next.APIKeys == nil {
				next.APIKeys = make(map[string]string)
			}
			next.APIKeys[name] = key
		}
	}
	for name, v := range next.APIKeys {
		if v == "" || strings.HasPrefix(v, "****") {
			delete(next.APIKeys, name)
		}
	}
	a.aiConfig = next
	a.gen = a.deps.NewGenerator(ctx, ai.ResolveSettings(a.deps.Config.AI, next))
	provider := a.gen.ProviderName()
	a.touch()
	a.mu.Unlock()

	logger.Infof("Visitor %s switched AI provider to %s", a.visitorID, provider)
	return persistDoc(ctx, a, "ai-config",
		func() model.AIServiceConfig { return a.aiConfig.Clone() },
		a.deps.Store.SaveAIConfig)
}

func isKnownProvider(name string) bool {
	for _, p := range model.KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

func (a *Assistant) Recommendations(limit int) []recommend.Recommendation {
	a.mu.Lock()
	profile := a.profile.Clone()
	a.mu.Unlock()
	return a.deps.Recommender.Recommend(profile, limit)
}

// State is the client-visible snapshot.
func (a *Assistant) State() model.ChatState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Assistant) snapshot() model.ChatState {
	return model.ChatState{
		VisitorID: a.visitorID,
		Page:      a.page,
		Path:      a.path,
		IsOpen:    a.isOpen,
		IsTyping:  a.isTyping,
		Messages:  a.conv.Messages(),
		Stats:     a.conv.Stats(),
	}
}

// Persist archives the live conversation if it holds anything new, then
// writes the archive to the store.
func (a *Assistant) Persist(ctx context.Context) error {
	a.mu.Lock()
	a.archiveLive()
	a.mu.Unlock()
	return a.persistConversations(ctx)
}

func (a *Assistant) persistConversations(ctx context.Context) error {
	return persistDoc(ctx, a, "conversations", a.conv.Archive, a.deps.Store.SaveConversations)
}

// persistDoc reads the document under mu only once persistMu is held, so
// writes reach the store in order and a slow write never overwrites a newer
// document.
func persistDoc[T any](ctx context.Context, a *Assistant, kind string, read func() T, save func(context.Context, string, T) error) error {
	if a.deps.Store == nil {
		return nil
	}
	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	a.mu.Lock()
	doc := read()
	a.mu.Unlock()
	return a.saved(kind, save(ctx, a.visitorID, doc))
}

func (a *Assistant) saved(kind string, err error) error {
	if err != nil {
		a.deps.Metrics.RecordStorageError("save_" + kind)
		logger.Errorf("Failed to save %s for visitor %s: %v", kind, a.visitorID, err)
	}
	return err
}

// ValidationError rejects a malformed settings update.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
