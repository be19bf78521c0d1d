package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"pyx-backend/internal/model"
	"pyx-backend/internal/utils"
	"pyx-backend/pkg/logger"
)

// EinoProvider adapts any eino chat model (Claude, Doubao, Qwen, Gemini).
type EinoProvider struct {
	name        string
	chat        einomodel.BaseChatModel
	temperature float32
	maxTokens   int
	timeout     time.Duration
	turns       int
}

var _ Provider = (*EinoProvider)(nil)

func NewEinoProvider(ctx context.Context, s Settings) (*EinoProvider, error) {
	chat, err := newChatModel(ctx, s)
	if err != nil {
		return nil, err
	}
	return newEinoProviderWithModel(s, chat), nil
}

func newEinoProviderWithModel(s Settings, chat einomodel.BaseChatModel) *EinoProvider {
	return &EinoProvider{
		name:        s.Provider,
		chat:        chat,
		temperature: s.Temperature,
		maxTokens:   s.MaxTokens,
		timeout:     s.Timeout,
		turns:       s.HistoryTurns,
	}
}

func newChatModel(ctx context.Context, s Settings) (einomodel.BaseChatModel, error) {
	switch s.Provider {
	case model.ProviderAnthropic:
		maxTokens := s.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 1024
		}
		cfg := &claude.Config{
			APIKey:    s.APIKey,
			Model:     s.Model,
			MaxTokens: maxTokens,
		}
		if s.BaseURL != "" {
			baseURL := s.BaseURL
			cfg.BaseURL = &baseURL
		}
		return claude.NewChatModel(ctx, cfg)

	case model.ProviderDoubao:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:  s.APIKey,
			Model:   s.Model,
			BaseURL: s.BaseURL,
		})

	case model.ProviderQwen:
		maxTokens := s.MaxTokens
		temperature := s.Temperature
		return qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL:     s.BaseURL,
			APIKey:      s.APIKey,
			Model:       s.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			Timeout:     s.Timeout,
			HTTPClient:  utils.NewHTTPClient(s.Timeout),
		})

	case model.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  s.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  s.Model,
		})
	}
	return nil, fmt.Errorf("no eino model for provider %q", s.Provider)
}

func (p *EinoProvider) Name() string { return p.name }

func (p *EinoProvider) Generate(ctx context.Context, req *Request) (*Completion, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	turns := buildTurns(req, p.turns)
	messages := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, &schema.Message{Role: schemaRole(t.role), Content: t.content})
	}

	var opts []einomodel.Option
	if p.temperature != 0 {
		opts = append(opts, einomodel.WithTemperature(p.temperature))
	}
	if p.maxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(p.maxTokens))
	}

	logger.Debugf("%s request: messages=%d", p.name, len(messages))
	out, err := p.chat.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, classify(p.name, err)
	}
	if out == nil || out.Content == "" {
		return nil, unavailable(p.name, ReasonEmptyResponse, nil)
	}

	completion := &Completion{Content: out.Content}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		u := out.ResponseMeta.Usage
		completion.Usage = &Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return completion, nil
}

func schemaRole(r model.Role) schema.RoleType {
	switch r {
	case model.RoleSystem:
		return schema.System
	case model.RoleAssistant:
		return schema.Assistant
	default:
		return schema.User
	}
}
