// Package ai turns a visitor message plus its page and profile context into
// an assistant reply. One provider is selected at construction; any remote
// failure degrades to the local canned-answer table.
package ai

import (
	"context"
	"fmt"
	"time"

	"pyx-backend/internal/config"
	"pyx-backend/internal/model"
)

// RequestVersion is bumped whenever Request gains or changes fields.
const RequestVersion = 1

// Request is everything a provider may use to answer.
type Request struct {
	Version     int
	SessionID   string
	Input       string
	Page        model.PageID
	Profile     model.UserProfile
	Preferences model.UserPreferences
	// History holds the turns before Input, oldest first.
	History []model.Message
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	Content     string
	Suggestions []string
	Usage       *Usage
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Completion, error)
}

// Settings is the resolved configuration for one provider instance.
type Settings struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
	HistoryTurns int
	LocalDelay   time.Duration
}

// ResolveSettings overlays a visitor's choices on the server defaults.
func ResolveSettings(defaults config.AIConfig, override model.AIServiceConfig) Settings {
	provider := defaults.Provider
	if override.Provider != "" {
		provider = override.Provider
	}
	if provider == "" {
		provider = model.ProviderLocal
	}

	pc := defaults.ProviderSettings(provider)
	s := Settings{
		Provider:     provider,
		APIKey:       pc.APIKey,
		BaseURL:      pc.BaseURL,
		Model:        pc.Model,
		Temperature:  defaults.Temperature,
		MaxTokens:    defaults.MaxTokens,
		Timeout:      defaults.Timeout,
		HistoryTurns: defaults.HistoryTurns,
		LocalDelay:   defaults.LocalDelay,
	}
	if key := override.APIKeys[provider]; key != "" {
		s.APIKey = key
	}
	if m := override.Models[provider]; m != "" {
		s.Model = m
	}
	if override.Temperature != 0 {
		s.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		s.MaxTokens = override.MaxTokens
	}
	if d := override.TimeoutDuration(); d > 0 {
		s.Timeout = d
	}
	return s
}

// NewProvider builds the provider named in s. A remote provider without a
// key returns a *ProviderUnavailableError with ReasonMissingKey and no
// provider; callers answer locally instead.
func NewProvider(ctx context.Context, s Settings) (Provider, error) {
	switch s.Provider {
	case model.ProviderLocal, "":
		return NewLocalProvider(s.LocalDelay), nil
	case model.ProviderOpenAI:
		if s.APIKey == "" {
			return nil, unavailable(s.Provider, ReasonMissingKey, nil)
		}
		return NewOpenAIProvider(s), nil
	case model.ProviderAnthropic, model.ProviderDoubao, model.ProviderQwen, model.ProviderGemini:
		if s.APIKey == "" {
			return nil, unavailable(s.Provider, ReasonMissingKey, nil)
		}
		p, err := NewEinoProvider(ctx, s)
		if err != nil {
			return nil, unavailable(s.Provider, ReasonProviderError, err)
		}
		return p, nil
	default:
		return nil, unavailable(s.Provider, ReasonUnsupported, fmt.Errorf("unknown provider %q", s.Provider))
	}
}
