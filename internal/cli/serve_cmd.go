package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bizassist/internal/appstate"
	"bizassist/internal/config"
	"bizassist/internal/httpapi"
	"bizassist/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant over a JSON HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	serveListen  string
	serveArchive string
	serveRate    float64
	serveBurst   int
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "host:port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveArchive, "archive", "", "archive every run to this SQLite file")
	serveCmd.Flags().Float64Var(&serveRate, "rate", 1, "runs per second allowed per client address (0 disables)")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 5, "burst of runs allowed per client address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(true, func(o *config.Overrides) {
		if serveListen != "" {
			o.Listen = &serveListen
		}
	})
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, appOptions{withModel: true})
	if err != nil {
		return err
	}
	defer a.close()

	opts := httpapi.Options{
		Orchestrator:  a.orc,
		Store:         a.store,
		Session:       a.session,
		Stats:         appstate.NewRunStats(),
		Logger:        a.logger,
		RunsPerSecond: serveRate,
		Burst:         serveBurst,
	}
	if serveArchive != "" {
		archive := store.NewSQLiteArchive(serveArchive)
		if err := archive.Init(ctx); err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		opts.Archive = archive
	}
	srv, err := httpapi.NewServer(opts)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return withCode(ExitBindFailure, fmt.Errorf("server bind failure: %w", err))
	}
	url := "http://" + listener.Addr().String()

	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		emitNDJSON(out, "info", "server_started", map[string]interface{}{"url": url, "provider": a.provider, "model": a.model})
	} else if !globalFlags.Quiet {
		s := newStyles(out, false)
		fmt.Fprintln(out, s.header("bizassist API"))
		fmt.Fprintln(out, s.kv("URL", url))
		fmt.Fprintln(out, s.kv("Model", a.provider+" "+a.model))
		fmt.Fprintln(out, s.kv("Role", string(a.session.Role)))
		fmt.Fprintln(out, s.kv("Workspace", seedLabel(cfg.Session.SeedPath)))
		fmt.Fprintln(out, s.dim("  POST /v1/runs  GET /v1/tools  GET /v1/stats  GET /v1/workspace/{collection}  GET /v1/invoices/{id}/pdf"))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", zap.Error(context.Cause(gctx)))
		return nil
	})
	return g.Wait()
}
