// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"io"

	"github.com/sigil-dev/graphscope/internal/server"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Query a running server's status endpoint and display endpoint health and session count.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", defaultServerAddr, "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body server.StatusBody
	if err := newAPIClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if sigilerr.HasCode(err, sigilerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	printStatus(out, addr, body)
	return nil
}

func printStatus(w io.Writer, addr string, body server.StatusBody) {
	_, _ = fmt.Fprintf(w, "Server at %s: %s (version %s, %d session(s))\n", addr, body.Status, body.Version, body.Sessions)
	ep := body.Endpoint
	if ep == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "  endpoint:  %s\n", ep.Endpoint)
	_, _ = fmt.Fprintf(w, "  breaker:   %s\n", ep.Breaker)
	_, _ = fmt.Fprintf(w, "  queries:   %d completed, %d pending, %d failed\n", ep.CompletedQueries, ep.Pending, ep.FailureCount)
	if ep.LastError != "" {
		_, _ = fmt.Fprintf(w, "  last error: %s\n", ep.LastError)
	}
	if ep.CooldownUntil != nil {
		_, _ = fmt.Fprintf(w, "  cooling down until %s\n", ep.CooldownUntil.Format("15:04:05"))
	}
}
