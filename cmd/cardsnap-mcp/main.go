package main

import (
	"context"
	"flag"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/cardsnap/internal/adapters/mcp"
	"github.com/kirillkom/cardsnap/internal/bootstrap"
	"github.com/kirillkom/cardsnap/internal/config"
	"github.com/kirillkom/cardsnap/internal/observability/logging"
)

func main() {
	configFlag := flag.String("config", os.Getenv(config.ConfigFileEnv), "path to a YAML config file")
	flag.Parse()

	// stdout carries the MCP protocol; logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "cardsnap-mcp", "warn")

	cfg, err := config.LoadFrom(*configFlag)
	if err != nil {
		logger.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger = logging.NewJSONLoggerTo(os.Stderr, "cardsnap-mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mcpServer := server.NewMCPServer(
		"cardsnap-mcp",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(
		mcp.NewTool("ping",
			mcp.WithDescription("Health check, returns pong"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("pong"), nil
		},
	)

	mcpadapter.RegisterReadTools(mcpServer, app.Cards)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
