package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ProviderMistral  = "mistral"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderScripted = "scripted"
)

var (
	Providers  = []string{ProviderMistral, ProviderOpenAI, ProviderGemini, ProviderScripted}
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"json", "console"}
)

type Config struct {
	Provider string        `toml:"provider" yaml:"provider"`
	Model    ModelConfig   `toml:"model" yaml:"model"`
	Loop     LoopConfig    `toml:"loop" yaml:"loop"`
	Session  SessionConfig `toml:"session" yaml:"session"`
	Invoice  InvoiceConfig `toml:"invoice" yaml:"invoice"`
	Server   ServerConfig  `toml:"server" yaml:"server"`
	Log      LogConfig     `toml:"log" yaml:"log"`

	// Secrets only come from the environment (or .env files); they are never
	// read from or written to the config file.
	Secrets Secrets `toml:"-" yaml:"secrets,omitempty"`
}

type ModelConfig struct {
	// Name is the provider's model id; empty selects the provider default.
	Name       string `toml:"name" yaml:"name"`
	BaseURL    string `toml:"base_url" yaml:"base_url"`
	Timeout    string `toml:"timeout" yaml:"timeout"`
	MaxRetries int    `toml:"max_retries" yaml:"max_retries"`
	// Script is the response script replayed by the scripted provider.
	Script string `toml:"script" yaml:"script"`
}

type LoopConfig struct {
	MaxRounds int `toml:"max_rounds" yaml:"max_rounds"`
}

type SessionConfig struct {
	Role     string `toml:"role" yaml:"role"`
	Persona  string `toml:"persona" yaml:"persona"`
	Currency string `toml:"currency" yaml:"currency"`
	// SeedPath is the workspace seed; empty uses the bundled sample.
	SeedPath string `toml:"seed_path" yaml:"seed_path"`
}

type InvoiceConfig struct {
	FallbackSequence int `toml:"fallback_sequence" yaml:"fallback_sequence"`
	DueDays          int `toml:"due_days" yaml:"due_days"`
}

type ServerConfig struct {
	Listen string `toml:"listen" yaml:"listen"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type Secrets struct {
	MistralAPIKey string `yaml:"mistral_api_key,omitempty"`
	OpenAIAPIKey  string `yaml:"openai_api_key,omitempty"`
	GeminiAPIKey  string `yaml:"gemini_api_key,omitempty"`
}

func Default() Config {
	return Config{
		Provider: ProviderMistral,
		Model: ModelConfig{
			Timeout:    "60s",
			MaxRetries: 3,
		},
		Loop: LoopConfig{MaxRounds: 3},
		Session: SessionConfig{
			Role:     "owner",
			Persona:  "PA",
			Currency: "USD",
		},
		Invoice: InvoiceConfig{
			FallbackSequence: 81,
			DueDays:          14,
		},
		Server: ServerConfig{Listen: "127.0.0.1:8088"},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

// DefaultPath returns ~/.config/bizassist/config.toml (or the platform
// equivalent).
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "bizassist", "config.toml"), nil
}

// CallTimeout parses Model.Timeout; zero means unbounded.
func (c Config) CallTimeout() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Model.Timeout))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// APIKey returns the credential for the configured provider and the env var
// it is read from. The scripted provider needs none.
func (c Config) APIKey() (key, envName string) {
	switch c.Provider {
	case ProviderMistral:
		return c.Secrets.MistralAPIKey, "MISTRAL_API_KEY"
	case ProviderOpenAI:
		return c.Secrets.OpenAIAPIKey, "OPENAI_API_KEY"
	case ProviderGemini:
		return c.Secrets.GeminiAPIKey, "GEMINI_API_KEY"
	default:
		return "", ""
	}
}

func stringIn(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
