package model

import "time"

type ResponseStyle string

const (
	StyleConcise   ResponseStyle = "concise"
	StyleDetailed  ResponseStyle = "detailed"
	StyleTechnical ResponseStyle = "technical"
)

type UserPreferences struct {
	Theme            string        `json:"theme"`
	Language         string        `json:"language"`
	ResponseStyle    ResponseStyle `json:"response_style"`
	ShowCodeExamples bool          `json:"show_code_examples"`
	TutorialsEnabled bool          `json:"tutorials_enabled"`
}

func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Theme:            "light",
		Language:         "en",
		ResponseStyle:    StyleConcise,
		ShowCodeExamples: true,
		TutorialsEnabled: true,
	}
}

// UserProfile is self-reported and never validated. Every field is optional.
type UserProfile struct {
	Role            string   `json:"role,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Goals           []string `json:"goals,omitempty"`
}

func (p UserProfile) Clone() UserProfile {
	out := p
	if p.Interests != nil {
		out.Interests = append([]string(nil), p.Interests...)
	}
	if p.Goals != nil {
		out.Goals = append([]string(nil), p.Goals...)
	}
	return out
}

const (
	ProviderLocal     = "local"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderDoubao    = "doubao"
	ProviderQwen      = "qwen"
	ProviderGemini    = "gemini"
)

// KnownProviders lists the accepted AIServiceConfig.Provider values.
var KnownProviders = []string{
	ProviderLocal, ProviderOpenAI, ProviderAnthropic,
	ProviderDoubao, ProviderQwen, ProviderGemini,
}

// AIServiceConfig is a visitor's provider selection. Zero values defer to
// the server-wide defaults.
type AIServiceConfig struct {
	Provider    string            `json:"provider"`
	APIKeys     map[string]string `json:"api_keys,omitempty"`
	Models      map[string]string `json:"models,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	TimeoutMS   int64             `json:"timeout_ms,omitempty"`
}

// TimeoutDuration converts TimeoutMS; zero means the server default.
func (c AIServiceConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c AIServiceConfig) Clone() AIServiceConfig {
	out := c
	out.APIKeys = cloneStringMap(c.APIKeys)
	out.Models = cloneStringMap(c.Models)
	return out
}

// Masked returns a copy safe to hand to clients: every key is reduced to
// its last four characters.
func (c AIServiceConfig) Masked() AIServiceConfig {
	out := c.Clone()
	for name, key := range out.APIKeys {
		if len(key) <= 4 {
			out.APIKeys[name] = "****"
			continue
		}
		out.APIKeys[name] = "****" + key[len(key)-4:]
	}
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
