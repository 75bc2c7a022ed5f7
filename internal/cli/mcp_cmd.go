package cli

import (
	"context"

	"github.com/spf13/cobra"

	"bizassist/internal/appstate"
	"bizassist/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the business tools to MCP clients over stdio",
	Long:  "mcp publishes every workspace tool to an MCP client on stdin/stdout. The session role from config applies to every call. With --ask, an extra ask tool runs a full assistant turn.",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

var mcpAsk bool

func init() {
	mcpCmd.Flags().BoolVar(&mcpAsk, "ask", false, "also publish the ask tool (needs model credentials)")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(mcpAsk, nil)
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr as JSON.
	cfg.Log.Format = "json"
	a, err := newApp(ctx, cfg, appOptions{withModel: mcpAsk})
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := mcpserver.New(a.registry, mcpserver.Options{
		Name:         "bizassist",
		Version:      version,
		Session:      a.session,
		Orchestrator: a.orc,
		Stats:        appstate.NewRunStats(),
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	return srv.ServeStdio()
}
