package ai

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pyx-backend/internal/model"
	"pyx-backend/internal/utils"
	"pyx-backend/pkg/logger"
)

// OpenAIProvider talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	turns       int
}

var _ Provider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(s Settings) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		clientConfig.BaseURL = s.BaseURL
	}
	clientConfig.HTTPClient = utils.NewHTTPClient(s.Timeout)

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       s.Model,
		temperature: s.Temperature,
		maxTokens:   s.MaxTokens,
		timeout:     s.Timeout,
		turns:       s.HistoryTurns,
	}
}

func (p *OpenAIProvider) Name() string { return model.ProviderOpenAI }

func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Completion, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	turns := buildTurns(req, p.turns)
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openaiRole(t.role),
			Content: t.content,
		})
	}

	logger.Debugf("openai request: model=%s messages=%d", p.model, len(messages))
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return nil, classify(p.Name(), err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, unavailable(p.Name(), ReasonEmptyResponse, nil)
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func openaiRole(r model.Role) string {
	switch r {
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
