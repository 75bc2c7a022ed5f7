package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bizassist/internal/config"
	"bizassist/internal/logging"
	"bizassist/internal/model"
	"bizassist/internal/orchestrator"
	"bizassist/internal/tools"
	"bizassist/internal/workspace"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *workspace.Store
	registry *tools.Registry
	orc      *orchestrator.Orchestrator
	session  tools.Session
	provider string
	model    string
}

type appOptions struct {
	// withModel builds the chat model; commands that only read the
	// workspace leave it unset and need no credentials.
	withModel bool
}

func overridesFromFlags() *config.Overrides {
	o := &config.Overrides{}
	set := func(v string) *string {
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}
	o.Provider = set(globalFlags.Provider)
	o.Model = set(globalFlags.Model)
	o.Role = set(globalFlags.Role)
	o.Persona = set(globalFlags.Persona)
	o.Currency = set(globalFlags.Currency)
	o.SeedPath = set(globalFlags.Seed)
	o.LogLevel = set(globalFlags.LogLevel)
	if globalFlags.JSON {
		format := "json"
		o.LogFormat = &format
	}
	return o
}

func loadConfig(requireCredentials bool, extra func(*config.Overrides)) (*config.Config, error) {
	overrides := overridesFromFlags()
	if extra != nil {
		extra(overrides)
	}
	cfg, err := config.Load(config.Options{
		ConfigPath:         globalFlags.ConfigPath,
		RequireCredentials: requireCredentials,
		Overrides:          overrides,
	})
	if err != nil {
		return nil, withCode(ExitConfigInvalid, err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Verbose: globalFlags.Verbose})
	if err != nil {
		return nil, withCode(ExitConfigInvalid, fmt.Errorf("CONFIG_INVALID: %w", err))
	}

	store, err := workspace.OpenOrSample(cfg.Session.SeedPath, workspace.WithInvoiceFallbackSequence(cfg.Invoice.FallbackSequence))
	if err != nil {
		return nil, withCode(ExitSeedInvalid, fmt.Errorf("SEED_INVALID: %w", err))
	}
	sess, err := sessionFromConfig(cfg)
	if err != nil {
		return nil, withCode(ExitConfigInvalid, err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: tools.NewRegistry(tools.New(store, tools.WithDefaultDueDays(cfg.Invoice.DueDays)), logger.Named("tools")),
		session:  sess,
		provider: cfg.Provider,
	}
	if !opts.withModel {
		return a, nil
	}

	chat, name, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, withCode(ExitConfigInvalid, err)
	}
	a.model = name
	a.orc = orchestrator.New(chat, a.registry,
		orchestrator.WithMaxRounds(cfg.Loop.MaxRounds),
		orchestrator.WithCallTimeout(cfg.CallTimeout()),
		orchestrator.WithLogger(logger.Named("orchestrator")),
	)
	logger.Debug("app ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", name),
		zap.String("seed", seedLabel(cfg.Session.SeedPath)),
		zap.Int("max_rounds", cfg.Loop.MaxRounds))
	return a, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func sessionFromConfig(cfg *config.Config) (tools.Session, error) {
	role, ok := model.ParseRole(cfg.Session.Role)
	if !ok {
		return tools.Session{}, fmt.Errorf("CONFIG_INVALID: session.role=%q", cfg.Session.Role)
	}
	currency, ok := model.ParseCurrency(cfg.Session.Currency)
	if !ok {
		return tools.Session{}, fmt.Errorf("CONFIG_INVALID: session.currency=%q", cfg.Session.Currency)
	}
	sess := tools.Session{
		Role:     role,
		Persona:  model.ParsePersona(cfg.Session.Persona),
		Currency: currency,
		Clock:    model.SystemClock,
	}
	if today := strings.TrimSpace(globalFlags.Today); today != "" {
		t, err := time.Parse(model.DateLayout, today)
		if err != nil {
			return tools.Session{}, fmt.Errorf("CONFIG_INVALID: --today=%q; use YYYY-MM-DD", today)
		}
		sess.Clock = model.FixedClock(t.Add(9 * time.Hour))
	}
	return sess, nil
}

func seedLabel(path string) string {
	if strings.TrimSpace(path) == "" {
		return "bundled sample"
	}
	return path
}
