// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/secrets"
	"github.com/sigil-dev/graphscope/internal/server"
	"github.com/sigil-dev/graphscope/internal/sparql"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

// probeTimeout bounds the endpoint ASK probe.
const probeTimeout = 15 * time.Second

// endpointProbe sends a trivial ASK query to the endpoint cfg names. Tests
// replace it to avoid the network.
var endpointProbe = func(ctx context.Context, cfg *config.Config) error {
	client, err := sparql.NewClient(sparql.Options{Config: config.NewStatic(cfg)})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return client.Ping(ctx)
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, configuration, SPARQL endpoint reachability, a running server, and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", defaultServerAddr, "server address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	dataDir := resolveDataDir()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", checkConfig},
		{"Endpoint", func() string { return checkEndpoint(cmd.Context()) }},
		{"Server", func() string { return checkServer(addr) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the data directory from viper or the default.
func resolveDataDir() string {
	if dataDir := viper.GetString("data_dir"); dataDir != "" {
		return dataDir
	}
	return config.DefaultDataDir()
}

func checkBinary() string {
	return fmt.Sprintf("graphscope %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig() string {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}
	source := "using defaults (no config file found)"
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		source = fmt.Sprintf("loaded from %s", cfgFile)
	}
	if n := len(cfg.Diagnostics()); n > 0 {
		return fmt.Sprintf("%s, %d warning(s)", source, n)
	}
	return source
}

func checkEndpoint(ctx context.Context) string {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return "skipped (config invalid)"
	}
	if err := secrets.ConfigResolver(secretStoreFactory())(cfg); err != nil {
		return fmt.Sprintf("token unavailable: %s", err)
	}

	start := time.Now()
	if err := endpointProbe(ctx, cfg); err != nil {
		return fmt.Sprintf("unreachable %s: %s", cfg.Endpoint.URL, err)
	}
	return fmt.Sprintf("%s answered ASK in %s", cfg.Endpoint.URL, time.Since(start).Round(time.Millisecond))
}

func checkServer(addr string) string {
	var body server.StatusBody
	if err := newAPIClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if sigilerr.HasCode(err, sigilerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'graphscope serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to home directory if data dir doesn't exist yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
