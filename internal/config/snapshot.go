package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Snapshot returns a copy of cfg safe to print or persist: secrets are
// replaced by where they come from.
func Snapshot(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	c.Secrets = Secrets{
		MistralAPIKey: redactSecret(cfg.Secrets.MistralAPIKey, "MISTRAL_API_KEY"),
		OpenAIAPIKey:  redactSecret(cfg.Secrets.OpenAIAPIKey, "OPENAI_API_KEY"),
		GeminiAPIKey:  redactSecret(cfg.Secrets.GeminiAPIKey, "GEMINI_API_KEY"),
	}
	return &c
}

func redactSecret(value, envName string) string {
	if value == "" {
		return ""
	}
	return "<from env " + envName + ">"
}

// SnapshotYAML renders the redacted config as YAML.
func SnapshotYAML(cfg *Config) ([]byte, error) {
	snap := Snapshot(cfg)
	if snap == nil {
		return nil, fmt.Errorf("config is nil")
	}
	return yaml.Marshal(snap)
}

const templateHeader = `# bizassist configuration.
# Precedence: defaults < this file < .env / .env.local < environment < flags.
# API keys are read from MISTRAL_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY only.

`

// Template renders cfg as a commented TOML file, without secrets.
func Template(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes Template(cfg) to path, refusing to replace an existing
// file unless force is set.
func WriteTemplate(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := Template(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
