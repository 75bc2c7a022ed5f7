// Package mcpserver publishes the business tools to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"bizassist/internal/appstate"
	"bizassist/internal/model"
	"bizassist/internal/orchestrator"
	"bizassist/internal/tools"
)

// AskTool is the extra tool that runs a whole assistant turn.
const AskTool = "ask"

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// Session is applied to every call. MCP clients cannot change the role.
	Session tools.Session
	// Orchestrator, when set, also publishes the ask tool.
	Orchestrator *orchestrator.Orchestrator
	// Stats, when set, counts ask runs.
	Stats  *appstate.RunStats
	Logger *zap.Logger
}

// Server adapts a tool registry to an MCP server.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
	opts     Options
	logger   *zap.Logger
	names    []string
}

func New(registry *tools.Registry, opts Options) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("mcpserver: registry is required")
	}
	if opts.Name == "" {
		opts.Name = "bizassist"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp: server.NewMCPServer(opts.Name, opts.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		registry: registry,
		opts:     opts,
		logger:   logger.Named("mcp"),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) registerTools() error {
	for _, def := range s.registry.Definitions() {
		schema, err := json.Marshal(def.InputSchema)
		if err != nil {
			return fmt.Errorf("encode schema for %s: %w", def.Name, err)
		}
		name := string(def.Name)
		s.mcp.AddTool(mcp.NewToolWithRawSchema(name, def.Description, schema), s.toolHandler(name))
		s.names = append(s.names, name)
	}
	if s.opts.Orchestrator != nil {
		ask := mcp.NewTool(AskTool,
			mcp.WithDescription("Ask the business assistant to carry out a request using the workspace tools."),
			mcp.WithString("command", mcp.Required(), mcp.Description("What you want done, in plain language")),
			mcp.WithString("tab", mcp.Description("Optional focus area, such as Invoices or Tasks")),
		)
		s.mcp.AddTool(ask, s.askHandler)
		s.names = append(s.names, AskTool)
	}
	return nil
}

// ToolNames lists the published tools in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.names...)
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving JSON-RPC on stdin and stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP on stdio", zap.Strings("tools", s.names))
	return server.ServeStdio(s.mcp)
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := model.ToolCall{Name: name, Arguments: req.GetArguments()}
		outcome, terr := s.registry.Invoke(ctx, s.opts.Session, call)
		if terr != nil {
			s.logger.Debug("tool failed", zap.String("tool", name), zap.String("kind", string(terr.Kind)))
			return mcp.NewToolResultError(terr.Error()), nil
		}
		raw, err := json.Marshal(outcome)
		if err != nil {
			return mcp.NewToolResultError("encode result: " + err.Error()), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

func (s *Server) askHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return mcp.NewToolResultError(model.MissingField("command is required").Error()), nil
	}
	tab, _ := args["tab"].(string)

	finish := s.opts.Stats.Begin()
	res, err := s.opts.Orchestrator.Run(ctx, orchestrator.Request{Command: command, Session: s.opts.Session, Tab: tab})
	finish(res, err)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	b.WriteString(res.Answer)
	if res.State != orchestrator.StateDone {
		fmt.Fprintf(&b, "\n\n(state: %s)", res.State)
	}
	return mcp.NewToolResultText(b.String()), nil
}
