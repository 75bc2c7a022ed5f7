package cli

import (
	"context"
	"fmt"
	"strings"

	"bizassist/internal/config"
	"bizassist/internal/gemini"
	"bizassist/internal/mistral"
	"bizassist/internal/model"
)

// newChatModel builds the configured provider and reports the model id in
// use.
func newChatModel(ctx context.Context, cfg *config.Config) (model.ChatModel, string, error) {
	key, _ := cfg.APIKey()
	name := strings.TrimSpace(cfg.Model.Name)
	switch cfg.Provider {
	case config.ProviderMistral, config.ProviderOpenAI:
		var c *mistral.Client
		if cfg.Provider == config.ProviderOpenAI {
			c = mistral.NewOpenAIClient(cfg.Model.BaseURL, key)
		} else {
			c = mistral.NewClient(cfg.Model.BaseURL, key)
		}
		if name != "" {
			c.Model = name
		}
		c.MaxRetries = cfg.Model.MaxRetries
		return c, c.Model, nil
	case config.ProviderGemini:
		if name == "" {
			name = gemini.DefaultModel
		}
		c, err := gemini.New(ctx, gemini.Options{APIKey: key, Model: name, BaseURL: cfg.Model.BaseURL})
		if err != nil {
			return nil, "", err
		}
		return c, name, nil
	case config.ProviderScripted:
		m, err := model.LoadScript(cfg.Model.Script)
		if err != nil {
			return nil, "", fmt.Errorf("CONFIG_INVALID: %w", err)
		}
		return m, "script:" + cfg.Model.Script, nil
	default:
		return nil, "", fmt.Errorf("CONFIG_INVALID: unknown provider %q", cfg.Provider)
	}
}
