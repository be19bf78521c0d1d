package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Session SessionConfig `mapstructure:"session"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	StreamTimeout  time.Duration `mapstructure:"stream_timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig selects the durable key-value backend.
// Type is one of memory, disk, sqlite, mysql, postgres, redis.
type StorageConfig struct {
	Type      string      `mapstructure:"type"`
	DataDir   string      `mapstructure:"data_dir"`
	CacheSize int         `mapstructure:"cache_size"`
	KeyPrefix string      `mapstructure:"key_prefix"`
	SecretKey string      `mapstructure:"secret_key"`
	SQL       SQLConfig   `mapstructure:"sql"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type SQLConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AIConfig holds the server-wide defaults for response generation.
// Visitors may override provider, keys and sampling through their own
// persisted AI settings.
type AIConfig struct {
	Provider     string         `mapstructure:"provider"`
	Temperature  float32        `mapstructure:"temperature"`
	MaxTokens    int            `mapstructure:"max_tokens"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	HistoryTurns int            `mapstructure:"history_turns"`
	LocalDelay   time.Duration  `mapstructure:"local_delay"`
	OpenAI       ProviderConfig `mapstructure:"openai"`
	Anthropic    ProviderConfig `mapstructure:"anthropic"`
	Doubao       ProviderConfig `mapstructure:"doubao"`
	Qwen         ProviderConfig `mapstructure:"qwen"`
	Gemini       ProviderConfig `mapstructure:"gemini"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type ChatConfig struct {
	ArchiveLimit int `mapstructure:"archive_limit"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var cfg *Config

// providerKeyEnv lists the conventional environment variables consulted
// when the config file leaves a provider key empty.
var providerKeyEnv = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"},
	"doubao":    {"DOUBAO_API_KEY", "ARK_API_KEY"},
	"qwen":      {"DASHSCOPE_API_KEY", "QWEN_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.stream_timeout", 2*time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization"})
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 256)
	v.SetDefault("storage.key_prefix", "pyx")
	v.SetDefault("storage.sql.max_open_conns", 10)
	v.SetDefault("storage.redis.addr", "127.0.0.1:6379")

	v.SetDefault("ai.provider", "local")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_tokens", 1000)
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.history_turns", 6)
	v.SetDefault("ai.local_delay", 800*time.Millisecond)
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.doubao.model", "doubao-seed-1-6-250615")
	v.SetDefault("ai.qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("ai.qwen.model", "qwen-plus")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	for _, p := range []string{"openai", "anthropic", "doubao", "qwen", "gemini"} {
		// registered so PYX_AI_<PROVIDER>_API_KEY is seen by Unmarshal
		v.SetDefault("ai."+p+".api_key", "")
	}
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.sql.dsn", "")
	v.SetDefault("storage.redis.username", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)

	v.SetDefault("chat.archive_limit", 50)

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads the YAML file at configPath. An empty path loads defaults and
// environment overrides only. A .env file in the working directory is
// loaded first when present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PYX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}

	// 配置文件优先，未设置时回退到常用环境变量
	c.AI.OpenAI.APIKey = keyFromEnv(c.AI.OpenAI.APIKey, "openai")
	c.AI.Anthropic.APIKey = keyFromEnv(c.AI.Anthropic.APIKey, "anthropic")
	c.AI.Doubao.APIKey = keyFromEnv(c.AI.Doubao.APIKey, "doubao")
	c.AI.Qwen.APIKey = keyFromEnv(c.AI.Qwen.APIKey, "qwen")
	c.AI.Gemini.APIKey = keyFromEnv(c.AI.Gemini.APIKey, "gemini")

	cfg = c
	return c, nil
}

func keyFromEnv(current, provider string) string {
	if current != "" {
		return current
	}
	for _, name := range providerKeyEnv[provider] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ProviderSettings returns the settings block for a provider name.
func (a AIConfig) ProviderSettings(provider string) ProviderConfig {
	switch provider {
	case "openai":
		return a.OpenAI
	case "anthropic":
		return a.Anthropic
	case "doubao":
		return a.Doubao
	case "qwen":
		return a.Qwen
	case "gemini":
		return a.Gemini
	default:
		return ProviderConfig{}
	}
}

func Get() *Config {
	return cfg
}
