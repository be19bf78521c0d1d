package persist

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyx-backend/internal/conversation"
	"pyx-backend/internal/model"
	"pyx-backend/internal/storage"
)

func newTestStore(t *testing.T, secret string) (*Store, storage.Storage) {
	t.Helper()
	backend := storage.NewMemoryStorage()
	require.NoError(t, backend.Init())
	return NewStore(backend, "pyx", secret), backend
}

func TestMissingDocumentsYieldDefaults(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "")

	prefs, err := s.LoadPreferences(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), prefs)

	profile, err := s.LoadProfile(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.UserProfile{}, profile)

	sessions, err := s.LoadConversations(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestPreferencesRoundTripUsesEnvelope(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "")

	prefs := model.DefaultPreferences()
	prefs.Theme = "dark"
	prefs.ResponseStyle = model.StyleTechnical
	require.NoError(t, s.SavePreferences(ctx, "v1", prefs))

	raw, err := backend.Get(ctx, "pyx:v1:preferences")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"schema_version":1`)
	assert.Contains(t, string(raw), `"response_style":"technical"`)

	got, err := s.LoadPreferences(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, prefs, got)
}

func TestLegacyCamelCaseDocumentIsMigrated(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "")

	legacy := `{"theme":"dark","language":"fr","responseStyle":"detailed","showCode":false,"tutorials":false}`
	require.NoError(t, backend.Set(ctx, "pyx:v1:preferences", []byte(legacy)))

	got, err := s.LoadPreferences(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Theme)
	assert.Equal(t, "fr", got.Language)
	assert.Equal(t, model.StyleDetailed, got.ResponseStyle)
	assert.False(t, got.ShowCodeExamples)
	assert.False(t, got.TutorialsEnabled)
}

func TestLegacyConversationArrayIsMigrated(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "")

	legacy := `[{"sessionId":"abc","messages":[{"id":"m1","role":"user","content":"hi"}],"startTime":"2024-01-01T00:00:00Z","context":"home","tags":["agent"]}]`
	require.NoError(t, backend.Set(ctx, "pyx:v1:conversations", []byte(legacy)))

	sessions, err := s.LoadConversations(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "abc", sessions[0].SessionID)
	assert.Equal(t, model.PageID("home"), sessions[0].Context)
	assert.Equal(t, 2024, sessions[0].StartTime.Year())
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, "hi", sessions[0].Messages[0].Content)
}

func TestLegacyAIConfigKeepsProviderAndTimeout(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "")

	legacy := `{"preferredProvider":"openai","apiKeys":{"openai":"sk-legacy"},"temperature":0.3,"maxTokens":500,"timeout":30000}`
	require.NoError(t, backend.Set(ctx, "pyx:v1:ai-config", []byte(legacy)))

	cfg, err := s.LoadAIConfig(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-legacy", cfg.APIKeys[model.ProviderOpenAI])
	assert.Equal(t, 500, cfg.MaxTokens)
	assert.Equal(t, int64(30000), cfg.TimeoutMS)
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
}

func TestNewerSchemaIsRejected(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "")
	require.NoError(t, backend.Set(ctx, "pyx:v1:profile", []byte(`{"schema_version":7,"data":{"role":"developer"}}`)))

	profile, err := s.LoadProfile(ctx, "v1")
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
	assert.Equal(t, model.UserProfile{}, profile)
}

func TestConversationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "")

	end := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rating := 4
	in := []model.ConversationSession{{
		SessionID:    "s1",
		Messages:     []model.Message{{ID: "m1", Role: model.RoleUser, Content: "build an agent"}},
		StartTime:    end.Add(-time.Minute),
		EndTime:      &end,
		Context:      "dashboard",
		Tags:         []string{"agent"},
		Satisfaction: &rating,
	}}
	require.NoError(t, s.SaveConversations(ctx, "v1", in))

	out, err := s.LoadConversations(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].SessionID)
	assert.True(t, end.Equal(*out[0].EndTime))
	assert.Equal(t, 4, *out[0].Satisfaction)
}

func TestConversationsKeepNewestFirstOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "")

	archive := conversation.NewStore()
	for _, text := range []string{"older", "newer"} {
		archive.AddMessage(model.Message{Role: model.RoleUser, Content: text})
		require.NotNil(t, archive.Clear())
	}
	require.NoError(t, s.SaveConversations(ctx, "v1", archive.Archive()))

	out, err := s.LoadConversations(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "newer", out[0].Messages[0].Content)
	assert.Equal(t, "older", out[1].Messages[0].Content)
}

func TestAIConfigKeysEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "server-secret")

	cfg := model.AIServiceConfig{
		Provider: model.ProviderOpenAI,
		APIKeys:  map[string]string{model.ProviderOpenAI: "sk-test-1234"},
	}
	require.NoError(t, s.SaveAIConfig(ctx, "v1", cfg))

	raw, err := backend.Get(ctx, "pyx:v1:ai-config")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-test-1234")
	assert.Contains(t, string(raw), sealedPrefix)

	got, err := s.LoadAIConfig(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234", got.APIKeys[model.ProviderOpenAI])
	// the caller's map is untouched
	assert.Equal(t, "sk-test-1234", cfg.APIKeys[model.ProviderOpenAI])
}

func TestAIConfigWrongSecretDropsKey(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "first")
	require.NoError(t, s.SaveAIConfig(ctx, "v1", model.AIServiceConfig{
		Provider: model.ProviderOpenAI,
		APIKeys:  map[string]string{model.ProviderOpenAI: "sk-test-1234"},
	}))

	other := NewStore(backend, "pyx", "second")
	got, err := other.LoadAIConfig(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOpenAI, got.Provider)
	assert.NotContains(t, got.APIKeys, model.ProviderOpenAI)
}

func TestAIConfigWithoutSecretIsPlain(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t, "")
	require.NoError(t, s.SaveAIConfig(ctx, "v1", model.AIServiceConfig{
		APIKeys: map[string]string{model.ProviderAnthropic: "sk-ant"},
	}))
	raw, err := backend.Get(ctx, "pyx:v1:ai-config")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "sk-ant")
}

func TestVisitorsAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "")
	require.NoError(t, s.SaveProfile(ctx, "alice", model.UserProfile{Role: "developer"}))
	require.NoError(t, s.SavePreferences(ctx, "alice", model.DefaultPreferences()))
	require.NoError(t, s.SaveProfile(ctx, "bob", model.UserProfile{}))

	visitors, err := s.Visitors(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, visitors)

	require.NoError(t, s.DeleteVisitor(ctx, "alice"))
	visitors, err = s.Visitors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, visitors)
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "response_style", toSnake("responseStyle"))
	assert.Equal(t, "session_id", toSnake("sessionId"))
	assert.Equal(t, "theme", toSnake("theme"))
	assert.True(t, strings.HasPrefix(toSnake("codeBlocks"), "code_"))
}
