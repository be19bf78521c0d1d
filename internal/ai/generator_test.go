package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyx-backend/internal/config"
	"pyx-backend/internal/metrics"
	pyxmodel "pyx-backend/internal/model"
	"pyx-backend/internal/pagectx"
	"pyx-backend/pkg/logger"
)

func testRequest(input string) *Request {
	return &Request{
		SessionID: "session-1",
		Input:     input,
		Page:      pagectx.Home,
		Profile:   pyxmodel.UserProfile{Role: "developer"},
		History: []pyxmodel.Message{
			{Role: pyxmodel.RoleAssistant, Content: "Hi, I'm PyX"},
			{Role: pyxmodel.RoleUser, Content: "earlier question"},
		},
	}
}

func openAISettings(baseURL, key string) Settings {
	return Settings{
		Provider:     pyxmodel.ProviderOpenAI,
		APIKey:       key,
		BaseURL:      baseURL,
		Model:        "gpt-test",
		Temperature:  0.5,
		MaxTokens:    200,
		Timeout:      5 * time.Second,
		HistoryTurns: 6,
	}
}

func TestOpenAISuccess(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "You can build an agent via our API."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	m := metrics.NewMetrics()
	g := NewGenerator(context.Background(), openAISettings(server.URL+"/v1", "sk-test"), m)
	resp := g.Generate(context.Background(), testRequest("how do I build an agent?"))

	assert.False(t, resp.Degraded())
	assert.Equal(t, pyxmodel.ProviderOpenAI, resp.Source)
	assert.Equal(t, "You can build an agent via our API.", resp.Content)
	assert.Equal(t, []string{"Show me how to create an agent", "Show API documentation"}, resp.Suggestions)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Current page: home")
	assert.Contains(t, got.Messages[0].Content, "Visitor role: developer")
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "earlier question", got.Messages[2].Content)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "how do I build an agent?", got.Messages[3].Content)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("openai", "false")))
}

func TestOpenAIUnauthorizedFallsBackToLocal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	}))
	defer server.Close()

	m := metrics.NewMetrics()
	g := NewGenerator(context.Background(), openAISettings(server.URL+"/v1", "sk-bad"), m)
	req := testRequest("hello there")
	resp := g.Generate(context.Background(), req)

	require.True(t, resp.Degraded())
	assert.Equal(t, pyxmodel.ProviderLocal, resp.Source)
	assert.Equal(t, ReasonHTTPStatus, resp.Fallback.Reason)
	assert.Equal(t, http.StatusUnauthorized, resp.Fallback.StatusCode)
	assert.True(t, errors.Is(resp.Fallback, ErrProviderUnavailable))
	assert.Equal(t, localAnswer(req).Content, resp.Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFallbacks.WithLabelValues("openai", "http_status")))
}

func TestOpenAINetworkFailureFallsBackToLocal(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	g := NewGenerator(context.Background(), openAISettings(url+"/v1", "sk-test"), nil)
	resp := g.Generate(context.Background(), testRequest("hi"))

	require.True(t, resp.Degraded())
	assert.Equal(t, ReasonNetwork, resp.Fallback.Reason)
	assert.Equal(t, pyxmodel.ProviderLocal, resp.Source)
}

func TestMissingKeyMatchesLocalOutput(t *testing.T) {
	for _, provider := range []string{pyxmodel.ProviderOpenAI, pyxmodel.ProviderAnthropic, pyxmodel.ProviderGemini} {
		remote := NewGenerator(context.Background(), Settings{Provider: provider}, nil)
		local := NewGenerator(context.Background(), Settings{Provider: pyxmodel.ProviderLocal}, nil)

		for _, input := range []string{"build me a bot", "hello"} {
			req := testRequest(input)
			r := remote.Generate(context.Background(), req)
			l := local.Generate(context.Background(), testRequest(input))

			assert.Equal(t, l.Content, r.Content, provider)
			assert.Equal(t, l.Suggestions, r.Suggestions, provider)
			require.True(t, r.Degraded(), provider)
			assert.Equal(t, ReasonMissingKey, r.Fallback.Reason)
			assert.False(t, l.Degraded())
		}
		assert.Equal(t, provider, remote.ProviderName())
	}
}

func TestMissingKeyNoticeLoggedOncePerSession(t *testing.T) {
	require.NoError(t, logger.Init("info", "text"))
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(&bytes.Buffer{})

	g := NewGenerator(context.Background(), Settings{Provider: pyxmodel.ProviderOpenAI}, nil)
	for i := 0; i < 3; i++ {
		g.Generate(context.Background(), &Request{SessionID: "a", Input: "hi"})
	}
	g.Generate(context.Background(), &Request{SessionID: "b", Input: "hi"})

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "No API key configured"))
	assert.Contains(t, out, "level=info")
	assert.NotContains(t, out, "level=error")
}

func TestUnsupportedProvider(t *testing.T) {
	g := NewGenerator(context.Background(), Settings{Provider: "mystery"}, nil)
	resp := g.Generate(context.Background(), testRequest("hi"))

	require.True(t, resp.Degraded())
	assert.Equal(t, ReasonUnsupported, resp.Fallback.Reason)
}

func TestNilProviderAnswersLocally(t *testing.T) {
	g := NewGeneratorWithProvider(nil, nil)
	resp := g.Generate(context.Background(), testRequest("hi"))

	assert.False(t, resp.Degraded())
	assert.Equal(t, pyxmodel.ProviderLocal, resp.Source)
}

type fakeChatModel struct {
	out  *schema.Message
	err  error
	seen []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = input
	return f.out, f.err
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestEinoProviderSuccess(t *testing.T) {
	chat := &fakeChatModel{out: &schema.Message{
		Role:    schema.Assistant,
		Content: "Here is an example.",
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		},
	}}
	p := newEinoProviderWithModel(Settings{Provider: pyxmodel.ProviderAnthropic, HistoryTurns: 1}, chat)

	resp := NewGeneratorWithProvider(p, nil).Generate(context.Background(), testRequest("show me"))

	assert.False(t, resp.Degraded())
	assert.Equal(t, pyxmodel.ProviderAnthropic, resp.Source)
	assert.Equal(t, []string{"Show me an example"}, resp.Suggestions)
	assert.Equal(t, 7, resp.Usage.TotalTokens)

	// system + one history turn + input
	require.Len(t, chat.seen, 3)
	assert.Equal(t, schema.System, chat.seen[0].Role)
	assert.Equal(t, "earlier question", chat.seen[1].Content)
	assert.Equal(t, schema.User, chat.seen[2].Role)
}

func TestEinoProviderErrorFallsBack(t *testing.T) {
	chat := &fakeChatModel{err: errors.New("status 429: rate limited")}
	p := newEinoProviderWithModel(Settings{Provider: pyxmodel.ProviderQwen}, chat)

	resp := NewGeneratorWithProvider(p, nil).Generate(context.Background(), testRequest("hello"))

	require.True(t, resp.Degraded())
	assert.Equal(t, ReasonProviderError, resp.Fallback.Reason)
	assert.Equal(t, pyxmodel.ProviderQwen, resp.Fallback.Provider)
	assert.Equal(t, pyxmodel.ProviderLocal, resp.Source)
}

func TestEinoProviderEmptyResponse(t *testing.T) {
	p := newEinoProviderWithModel(Settings{Provider: pyxmodel.ProviderDoubao}, &fakeChatModel{out: &schema.Message{}})

	resp := NewGeneratorWithProvider(p, nil).Generate(context.Background(), testRequest("hello"))

	require.True(t, resp.Degraded())
	assert.Equal(t, ReasonEmptyResponse, resp.Fallback.Reason)
}

func TestBuildTurnsTruncatesHistory(t *testing.T) {
	req := testRequest("now")
	req.History = append(req.History,
		pyxmodel.Message{Role: pyxmodel.RoleSystem, Content: "ignored"},
		pyxmodel.Message{Role: pyxmodel.RoleAssistant, Content: "latest"},
	)

	turns := buildTurns(req, 2)
	require.Len(t, turns, 3)
	assert.Equal(t, pyxmodel.RoleSystem, turns[0].role)
	assert.Equal(t, "latest", turns[1].content)
	assert.Equal(t, "now", turns[2].content)
}

func TestResolveSettings(t *testing.T) {
	defaults := config.AIConfig{
		Provider:     "openai",
		Temperature:  0.7,
		MaxTokens:    1000,
		Timeout:      30 * time.Second,
		HistoryTurns: 6,
		OpenAI:       config.ProviderConfig{APIKey: "server-key", Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"},
		Anthropic:    config.ProviderConfig{Model: "claude-3-5-haiku-latest"},
	}

	s := ResolveSettings(defaults, pyxmodel.AIServiceConfig{})
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "server-key", s.APIKey)
	assert.Equal(t, "gpt-4o-mini", s.Model)
	assert.Equal(t, 30*time.Second, s.Timeout)

	s = ResolveSettings(defaults, pyxmodel.AIServiceConfig{
		Provider:    "anthropic",
		APIKeys:     map[string]string{"anthropic": "visitor-key"},
		Temperature: 0.2,
		TimeoutMS:   1500,
	})
	assert.Equal(t, "anthropic", s.Provider)
	assert.Equal(t, "visitor-key", s.APIKey)
	assert.Equal(t, "claude-3-5-haiku-latest", s.Model)
	assert.Equal(t, float32(0.2), s.Temperature)
	assert.Equal(t, 1000, s.MaxTokens)
	assert.Equal(t, 1500*time.Millisecond, s.Timeout)

	s = ResolveSettings(config.AIConfig{}, pyxmodel.AIServiceConfig{})
	assert.Equal(t, pyxmodel.ProviderLocal, s.Provider)
}

func TestProviderUnavailableErrorMessage(t *testing.T) {
	err := &ProviderUnavailableError{Provider: "openai", Reason: ReasonHTTPStatus, StatusCode: 429, Err: errors.New("slow down")}
	assert.Equal(t, "provider openai unavailable: http_status (status 429): slow down", err.Error())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
