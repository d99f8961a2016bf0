// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/server"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the graphscope HTTP server",
		Long: "Load configuration, connect to the SPARQL endpoint, and serve the exploration API.\n" +
			"Edits to the config file are picked up without a restart, except for the listen address.",
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, viper.GetViper())
}

func serve(ctx context.Context, v *viper.Viper) error {
	logger := slog.Default()

	ex, err := WireExplorer(v, WireOptions{Logger: logger, Snapshots: true})
	if err != nil {
		return sigilerr.Wrap(err, sigilerr.CodeCLISetupFailure, "wiring explorer")
	}
	defer func() { _ = ex.Close() }()

	cfg := ex.Config.Current()
	srv, err := server.New(server.ConfigFrom(cfg, version), server.Services{
		Sessions:  ex.Sessions,
		Lookup:    ex.Resolver,
		Endpoint:  ex.Client,
		Snapshots: ex.Snapshots,
		Metrics:   ex.Client.Metrics().Handler(),
		Logger:    logger,
	})
	if err != nil {
		return sigilerr.Wrap(err, sigilerr.CodeCLISetupFailure, "creating server")
	}
	defer func() { _ = srv.Close() }()

	listen := cfg.Networking.Listen
	ex.Config.OnChange(func(next *config.Config) {
		if next.Networking.Listen != listen {
			logger.Warn("listen address changed, restart to apply", "current", listen, "configured", next.Networking.Listen)
		}
	})
	ex.Config.Watch()

	logger.Info("starting graphscope",
		"version", version,
		"endpoint", cfg.Endpoint.URL,
		"dialect", cfg.Endpoint.Type,
		"listen", listen,
	)
	return srv.Start(ctx)
}
