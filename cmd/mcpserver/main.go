// gasoline-mcp-core — the connection and protocol core of an MCP server,
// speaking JSON-RPC 2.0 over stdio. Tools, resources, prompts, and auth are
// supplied by a host process through the internal/mcp provider interfaces;
// this binary wires an empty provider set by default, which is enough to
// exercise initialize/ping/cancel end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brennhill/gasoline-mcp-core/internal/config"
	"github.com/brennhill/gasoline-mcp-core/internal/logging"
	"github.com/brennhill/gasoline-mcp-core/internal/server"
	"github.com/brennhill/gasoline-mcp-core/internal/transport"
	"github.com/brennhill/gasoline-mcp-core/internal/util"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "show version")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gasoline-mcp-core v%s\n", version)
		os.Exit(0)
	}

	log := logging.FromSlog(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)})))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gasoline-mcp-core: config error: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.ServerInfo{
		Name:              "gasoline-mcp-core",
		Version:           version,
		SupportedVersions: cfg.SupportedProtocolVersions,
		Instructions:      "Connection and protocol core. Tools, resources, and prompts are supplied by the host process.",
	}, server.Providers{}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv.RunIdleSweeper(ctx.Done())

	stdio := transport.NewStdio(os.Stdin, os.Stdout, 0)
	conn, err := srv.Accept(stdio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gasoline-mcp-core: accept failed: %v\n", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	util.SafeGo(func() {
		srv.Serve(ctx, conn, stdio)
		close(done)
	})

	select {
	case <-ctx.Done():
	case <-done:
	}
	srv.CloseAll("shutdown")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
