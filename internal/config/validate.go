package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"bizassist/internal/model"
)

// Validate checks enums and ranges. With requireCredentials set, the API key
// of the configured provider must be present. Errors carry a remediation
// hint so the CLI can print them as-is and exit 2.
func Validate(cfg *Config, requireCredentials bool) error {
	if cfg == nil {
		return fmt.Errorf("CONFIG_INVALID: nil config")
	}
	if !stringIn(cfg.Provider, Providers) {
		return fmt.Errorf("CONFIG_INVALID: provider=%q; allowed: %s", cfg.Provider, strings.Join(Providers, ", "))
	}
	if err := validateEnums(cfg); err != nil {
		return err
	}
	if err := validateRanges(cfg); err != nil {
		return err
	}
	if !requireCredentials {
		return nil
	}
	if cfg.Provider == ProviderScripted {
		if strings.TrimSpace(cfg.Model.Script) == "" {
			return fmt.Errorf("CONFIG_INVALID: provider=scripted needs a response script\nSet model.script in the config file or env: BIZASSIST_SCRIPT=path/to/script.json")
		}
		return nil
	}
	if key, env := cfg.APIKey(); strings.TrimSpace(key) == "" {
		return fmt.Errorf("CONFIG_INVALID: Missing %s\nSet env: %s=...\nOr add it to .env.local", env, env)
	}
	return nil
}

func validateEnums(cfg *Config) error {
	roles := make([]string, 0, len(model.Roles))
	for _, r := range model.Roles {
		roles = append(roles, string(r))
	}
	if !stringIn(cfg.Session.Role, roles) {
		return fmt.Errorf("CONFIG_INVALID: session.role=%q; allowed: %s", cfg.Session.Role, strings.Join(roles, ", "))
	}

	personas := make([]string, 0, len(model.Personas))
	known := false
	for _, p := range model.Personas {
		personas = append(personas, string(p))
		known = known || strings.EqualFold(cfg.Session.Persona, string(p))
	}
	if !known {
		return fmt.Errorf("CONFIG_INVALID: session.persona=%q; allowed: %s", cfg.Session.Persona, strings.Join(personas, ", "))
	}

	if _, ok := model.ParseCurrency(cfg.Session.Currency); !ok {
		currencies := make([]string, 0, len(model.Currencies))
		for _, c := range model.Currencies {
			currencies = append(currencies, string(c))
		}
		return fmt.Errorf("CONFIG_INVALID: session.currency=%q; allowed: %s", cfg.Session.Currency, strings.Join(currencies, ", "))
	}
	if !stringIn(cfg.Log.Level, LogLevels) {
		return fmt.Errorf("CONFIG_INVALID: log.level=%q; allowed: %s", cfg.Log.Level, strings.Join(LogLevels, ", "))
	}
	if !stringIn(cfg.Log.Format, LogFormats) {
		return fmt.Errorf("CONFIG_INVALID: log.format=%q; allowed: %s", cfg.Log.Format, strings.Join(LogFormats, ", "))
	}
	return nil
}

func validateRanges(cfg *Config) error {
	if cfg.Loop.MaxRounds < 1 {
		return fmt.Errorf("CONFIG_INVALID: loop.max_rounds=%d; must be at least 1", cfg.Loop.MaxRounds)
	}
	if cfg.Model.MaxRetries < 0 {
		return fmt.Errorf("CONFIG_INVALID: model.max_retries=%d; must not be negative", cfg.Model.MaxRetries)
	}
	if t := strings.TrimSpace(cfg.Model.Timeout); t != "" {
		if d, err := time.ParseDuration(t); err != nil || d < 0 {
			return fmt.Errorf("CONFIG_INVALID: model.timeout=%q; use a duration such as 60s", cfg.Model.Timeout)
		}
	}
	if cfg.Invoice.FallbackSequence < 1 {
		return fmt.Errorf("CONFIG_INVALID: invoice.fallback_sequence=%d; must be at least 1", cfg.Invoice.FallbackSequence)
	}
	if cfg.Invoice.DueDays < 0 {
		return fmt.Errorf("CONFIG_INVALID: invoice.due_days=%d; must not be negative", cfg.Invoice.DueDays)
	}
	if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.Server.Listen)); err != nil {
		return fmt.Errorf("CONFIG_INVALID: server.listen=%q; expected host:port", cfg.Server.Listen)
	}
	return nil
}
