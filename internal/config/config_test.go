package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

var envNames = []string{
	"BIZASSIST_PROVIDER", "BIZASSIST_MODEL", "BIZASSIST_BASE_URL", "BIZASSIST_SCRIPT",
	"BIZASSIST_MAX_ROUNDS", "BIZASSIST_ROLE", "BIZASSIST_PERSONA", "BIZASSIST_CURRENCY",
	"BIZASSIST_SEED", "BIZASSIST_LISTEN", "BIZASSIST_LOG_LEVEL",
	"MISTRAL_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
}

// isolate blanks every variable Load reads; t.Setenv restores them.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
	}
	return t.TempDir()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	dir := isolate(t)
	cfg, err := Load(Options{ConfigPath: filepath.Join(dir, "absent.toml"), DotEnvDir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Default()
	if cfg.Provider != want.Provider || cfg.Loop.MaxRounds != 3 || cfg.Invoice.FallbackSequence != 81 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CallTimeout() != 60*time.Second {
		t.Fatalf("timeout = %v", cfg.CallTimeout())
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `provider = "openai"

[loop]
max_rounds = 5

[session]
role = "viewer"
persona = "intern"
currency = "gbp"

[invoice]
fallback_sequence = 1
`)
	cfg, err := Load(Options{ConfigPath: path, DotEnvDir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Loop.MaxRounds != 5 || cfg.Session.Role != "viewer" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Invoice.FallbackSequence != 1 || cfg.Invoice.DueDays != 14 {
		t.Fatalf("unset keys should keep defaults: %+v", cfg.Invoice)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "provider: gemini\nserver:\n  listen: \"0.0.0.0:9000\"\nsecrets:\n  gemini_api_key: from-file\n")
	cfg, err := Load(Options{ConfigPath: path, DotEnvDir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "gemini" || cfg.Server.Listen != "0.0.0.0:9000" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Secrets.GeminiAPIKey != "" {
		t.Fatal("secrets must not be read from the config file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "provider = \n")
	_, err := Load(Options{ConfigPath: path, DotEnvDir: dir})
	if err == nil || !strings.HasPrefix(err.Error(), "CONFIG_INVALID: malformed TOML") {
		t.Fatalf("expected malformed TOML error, got %v", err)
	}
}

func TestPrecedence_FileEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[session]\nrole = \"viewer\"\npersona = \"Intern\"\ncurrency = \"EUR\"\n")
	t.Setenv("BIZASSIST_ROLE", "manager")
	t.Setenv("BIZASSIST_PERSONA", "Accountant")

	persona := "PA"
	cfg, err := Load(Options{ConfigPath: path, DotEnvDir: dir, Overrides: &Overrides{Persona: &persona}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.Currency != "EUR" {
		t.Errorf("file should beat defaults, got %q", cfg.Session.Currency)
	}
	if cfg.Session.Role != "manager" {
		t.Errorf("env should beat file, got %q", cfg.Session.Role)
	}
	if cfg.Session.Persona != "PA" {
		t.Errorf("overrides should beat env, got %q", cfg.Session.Persona)
	}
}

func TestLoad_DotEnvFillsMissingEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "MISTRAL_API_KEY=from_dotenv\nBIZASSIST_MAX_ROUNDS=4\n")
	writeFile(t, filepath.Join(dir, ".env.local"), "BIZASSIST_MAX_ROUNDS=6\n")

	cfg, err := Load(Options{ConfigPath: filepath.Join(dir, "none.toml"), DotEnvDir: dir, RequireCredentials: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Secrets.MistralAPIKey != "from_dotenv" {
		t.Fatalf("unexpected api key: %q", cfg.Secrets.MistralAPIKey)
	}
	if cfg.Loop.MaxRounds != 6 {
		t.Fatalf(".env.local should win over .env, got %d", cfg.Loop.MaxRounds)
	}
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "MISTRAL_API_KEY=from_dotenv\n")
	t.Setenv("MISTRAL_API_KEY", "from_env")

	cfg, err := Load(Options{ConfigPath: filepath.Join(dir, "none.toml"), DotEnvDir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Secrets.MistralAPIKey != "from_env" {
		t.Fatalf("unexpected api key: %q", cfg.Secrets.MistralAPIKey)
	}
}

func TestLoad_BadMaxRoundsEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("BIZASSIST_MAX_ROUNDS", "three")
	_, err := Load(Options{ConfigPath: filepath.Join(dir, "none.toml"), DotEnvDir: dir})
	if err == nil || !strings.Contains(err.Error(), "BIZASSIST_MAX_ROUNDS") {
		t.Fatalf("expected max rounds error, got %v", err)
	}
}

func TestValidate_MissingKeyIsActionable(t *testing.T) {
	cfg := Default()
	cfg.Provider = ProviderGemini
	err := Validate(&cfg, true)
	if err == nil {
		t.Fatal("expected error when API key missing")
	}
	msg := err.Error()
	for _, want := range []string{"CONFIG_INVALID", "GEMINI_API_KEY", "Set env"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should contain %q, got: %s", want, msg)
		}
	}
	if err := Validate(&cfg, false); err != nil {
		t.Fatalf("credentials are optional unless required: %v", err)
	}
}

func TestValidate_ScriptedNeedsScript(t *testing.T) {
	cfg := Default()
	cfg.Provider = ProviderScripted
	if err := Validate(&cfg, true); err == nil || !strings.Contains(err.Error(), "BIZASSIST_SCRIPT") {
		t.Fatalf("expected script hint, got %v", err)
	}
	cfg.Model.Script = "script.json"
	if err := Validate(&cfg, true); err != nil {
		t.Fatalf("scripted provider needs no key: %v", err)
	}
}

func TestValidate_Enums(t *testing.T) {
	cases := map[string]func(*Config){
		"provider=":              func(c *Config) { c.Provider = "claude" },
		"session.role=":          func(c *Config) { c.Session.Role = "admin" },
		"session.persona=":       func(c *Config) { c.Session.Persona = "Butler" },
		"session.currency=":      func(c *Config) { c.Session.Currency = "JPY" },
		"log.level=":             func(c *Config) { c.Log.Level = "trace" },
		"log.format=":            func(c *Config) { c.Log.Format = "xml" },
		"loop.max_rounds=":       func(c *Config) { c.Loop.MaxRounds = 0 },
		"model.timeout=":         func(c *Config) { c.Model.Timeout = "soon" },
		"invoice.due_days=":      func(c *Config) { c.Invoice.DueDays = -1 },
		"server.listen=":         func(c *Config) { c.Server.Listen = "8088" },
		"invoice.fallback_seque": func(c *Config) { c.Invoice.FallbackSequence = 0 },
	}
	for want, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		err := Validate(&cfg, false)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("%s: unexpected error %v", want, err)
		}
	}
}

func TestSnapshot_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Secrets.MistralAPIKey = "sk-live-123"
	raw, err := SnapshotYAML(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "sk-live-123") {
		t.Fatalf("snapshot leaks secret: %s", raw)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	secrets := decoded["secrets"].(map[string]any)
	if secrets["mistral_api_key"] != "<from env MISTRAL_API_KEY>" {
		t.Fatalf("unexpected redaction: %#v", secrets)
	}
	if _, ok := secrets["openai_api_key"]; ok {
		t.Fatal("unset secrets should be omitted")
	}
	if cfg.Secrets.MistralAPIKey != "sk-live-123" {
		t.Fatal("snapshot must not mutate the input")
	}
}

func TestWriteTemplate_RoundTrips(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")
	cfg := Default()
	cfg.Secrets.OpenAIAPIKey = "never-written"
	cfg.Loop.MaxRounds = 7
	if err := WriteTemplate(path, cfg, false); err != nil {
		t.Fatalf("WriteTemplate: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "never-written") {
		t.Fatal("template must not contain secrets")
	}
	if err := WriteTemplate(path, cfg, false); err == nil {
		t.Fatal("existing file must not be replaced without force")
	}

	loaded, err := Load(Options{ConfigPath: path, DotEnvDir: dir})
	if err != nil {
		t.Fatalf("Load template: %v", err)
	}
	if loaded.Loop.MaxRounds != 7 {
		t.Fatalf("template did not round-trip: %+v", loaded)
	}
}
