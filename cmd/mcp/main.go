// Package main provides the entry point for the TraceLens MCP (Model Context Protocol) server.
package main

import (
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"tracelens/internal/app"
	"tracelens/internal/config"
	mcpsrv "tracelens/internal/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// stdout carries the protocol, so logs go to stderr.
	logger := app.NewLogger(os.Stderr, cfg.App.LogLevel)

	components, err := app.Build(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	s := server.NewMCPServer(
		"tracelens-mcp",
		"1.0.0",
	)

	mcpsrv.New(components.Orchestrator, components.Monitor).RegisterTools(s)

	logger.Info("TraceLens MCP server listening on stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
