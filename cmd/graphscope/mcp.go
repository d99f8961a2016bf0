// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sigil-dev/graphscope/internal/mcptools"
	"github.com/sigil-dev/graphscope/internal/session"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve graph exploration tools over MCP (stdio)",
		Long: "Run a Model Context Protocol server on stdin/stdout. The tools load, expand and\n" +
			"describe one in-memory graph session. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: runMCP,
	}

	cmd.Flags().String("root", "", "entity to load into the session before serving")

	return cmd
}

func runMCP(cmd *cobra.Command, _ []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _ := cmd.Flags().GetString("root")
	logger := slog.Default()

	ex, err := WireExplorer(viper.GetViper(), WireOptions{Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = ex.Close() }()

	sess, err := ex.Sessions.Create(ctx, session.CreateOptions{Name: "mcp", Root: rdf.ExpandURI(root)})
	if err != nil {
		return err
	}

	srv, err := mcptools.New(mcptools.Options{Session: sess, Version: version, Logger: logger})
	if err != nil {
		return err
	}
	logger.Info("serving mcp tools on stdio", "session", sess.ID, "root", sess.Root)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
