package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pgmcp/internal/config"
	"github.com/hazyhaar/pgmcp/internal/db"
	internalmcp "github.com/hazyhaar/pgmcp/internal/mcp"
	"github.com/hazyhaar/pgmcp/pkg/audit"
	"github.com/hazyhaar/pgmcp/pkg/mcprt"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("pgmcp %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pgmcp — PostgreSQL over MCP

Usage:
  pgmcp serve [--config config.toml] [--transport stdio|sse] [--addr :8080]
  pgmcp version
  pgmcp help

Commands:
  serve     Start the MCP server
  version   Print version
  help      Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	transport := fs.String("transport", "", "transport (overrides config): stdio or sse")
	addr := fs.String("addr", "", "SSE listen address (overrides config)")
	fs.Parse(args)

	// stdout carries the MCP stdio transport; all logging goes to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *transport != "" {
		cfg.Server.Transport = *transport
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	database, err := db.Open(ctx, cfg.Database.ConnString(), cfg.Database.PoolSize)
	cancel()
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	serverVersion, err := database.ServerVersion(ctx)
	cancel()
	if err != nil {
		log.Fatalf("checking connectivity: %v", err)
	}
	slog.Info("connected", "server", serverVersion)

	var auditLog audit.Logger
	if cfg.Audit.Path != "" {
		fileLog, err := audit.NewFileLogger(cfg.Audit.Path)
		if err != nil {
			log.Fatalf("opening audit log: %v", err)
		}
		defer fileLog.Close()
		auditLog = fileLog
	}

	store, err := mcprt.NewStore(cfg.Tools.DataDir)
	if err != nil {
		log.Fatalf("opening tool store: %v", err)
	}

	srv := server.NewMCPServer(
		"pgmcp",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(internalmcp.Instructions),
	)

	reg := mcprt.NewRegistry(srv, store, database, auditLog, internalmcp.ProtectedTools)
	internalmcp.RegisterTools(srv, database, database, reg, auditLog, cfg.Tools.Toolsets)

	if err := reg.LoadPersisted(context.Background()); err != nil {
		log.Fatalf("loading persisted tools: %v", err)
	}

	slog.Info("pgmcp starting",
		"version", version,
		"transport", cfg.Server.Transport,
		"toolsets", cfg.Tools.Toolsets,
		"data_dir", cfg.Tools.DataDir,
	)

	switch cfg.Server.Transport {
	case "stdio":
		if err := server.ServeStdio(srv); err != nil {
			log.Fatalf("server error: %v", err)
		}
	case "sse":
		sseServer := server.NewSSEServer(srv)
		slog.Info("SSE listening", "addr", cfg.Server.Addr)
		if err := http.ListenAndServe(cfg.Server.Addr, sseServer); err != nil {
			log.Fatalf("SSE server error: %v", err)
		}
	}
}
