package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Options for loading config.
type Options struct {
	// ConfigPath is the config file; empty uses DefaultPath. A missing file
	// is not an error.
	ConfigPath string
	// DotEnvDir holds .env and .env.local; empty means the working directory.
	DotEnvDir string
	// SkipValidate skips Validate, e.g. for config print.
	SkipValidate bool
	// RequireCredentials makes a missing provider API key an error.
	RequireCredentials bool
	// Overrides apply last. Nil means no CLI overrides.
	Overrides *Overrides
}

// Overrides holds CLI flag values; only non-nil fields are applied.
type Overrides struct {
	Provider  *string
	Model     *string
	BaseURL   *string
	MaxRounds *int
	Role      *string
	Persona   *string
	Currency  *string
	SeedPath  *string
	Listen    *string
	LogLevel  *string
	LogFormat *string
}

// Load builds config with precedence: defaults → config file → .env files →
// environment → Overrides. Errors are prefixed CONFIG_INVALID.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	dir := opts.DotEnvDir
	if dir == "" {
		dir = "."
	}
	if err := loadDotEnvFiles(dir); err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: failed loading dotenv files: %w", err)
	}
	if err := mergeEnv(&cfg); err != nil {
		return nil, err
	}
	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg, opts.RequireCredentials); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// mergeFile decodes path over cfg. TOML is the default; .yaml and .yml
// files are read as YAML.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("CONFIG_INVALID: cannot read config file %s: %w", path, err)
	}
	secrets := cfg.Secrets
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("CONFIG_INVALID: malformed YAML in %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("CONFIG_INVALID: malformed TOML in %s: %w", path, err)
		}
	}
	cfg.Secrets = secrets
	return nil
}

func mergeEnv(cfg *Config) error {
	setString := func(name string, target *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*target = v
		}
	}
	setString("BIZASSIST_PROVIDER", &cfg.Provider)
	setString("BIZASSIST_MODEL", &cfg.Model.Name)
	setString("BIZASSIST_BASE_URL", &cfg.Model.BaseURL)
	setString("BIZASSIST_SCRIPT", &cfg.Model.Script)
	setString("BIZASSIST_ROLE", &cfg.Session.Role)
	setString("BIZASSIST_PERSONA", &cfg.Session.Persona)
	setString("BIZASSIST_CURRENCY", &cfg.Session.Currency)
	setString("BIZASSIST_SEED", &cfg.Session.SeedPath)
	setString("BIZASSIST_LISTEN", &cfg.Server.Listen)
	setString("BIZASSIST_LOG_LEVEL", &cfg.Log.Level)

	if v := strings.TrimSpace(os.Getenv("BIZASSIST_MAX_ROUNDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONFIG_INVALID: BIZASSIST_MAX_ROUNDS=%q is not an integer", v)
		}
		cfg.Loop.MaxRounds = n
	}

	setString("MISTRAL_API_KEY", &cfg.Secrets.MistralAPIKey)
	setString("OPENAI_API_KEY", &cfg.Secrets.OpenAIAPIKey)
	setString("GEMINI_API_KEY", &cfg.Secrets.GeminiAPIKey)
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	set := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(o.Provider, &cfg.Provider)
	set(o.Model, &cfg.Model.Name)
	set(o.BaseURL, &cfg.Model.BaseURL)
	set(o.Role, &cfg.Session.Role)
	set(o.Persona, &cfg.Session.Persona)
	set(o.Currency, &cfg.Session.Currency)
	set(o.SeedPath, &cfg.Session.SeedPath)
	set(o.Listen, &cfg.Server.Listen)
	set(o.LogLevel, &cfg.Log.Level)
	set(o.LogFormat, &cfg.Log.Format)
	if o.MaxRounds != nil {
		cfg.Loop.MaxRounds = *o.MaxRounds
	}
}
