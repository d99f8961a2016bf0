// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/relations"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/server"
	"github.com/sigil-dev/graphscope/internal/session"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// Handlers are never invoked during spec generation, so the session
	// manager runs on no-op lookups and a default config.
	sessions, err := session.NewManager(session.Options{
		Config:    config.NewStatic(config.Default()),
		Resolver:  stubResolver{},
		Relations: stubRelations{},
	})
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeCLISetupFailure, "creating session manager: %w", err)
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, server.Services{
		Sessions: sessions,
		Lookup:   stubResolver{},
	})
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op stubs for spec generation. Methods are never called.

type stubResolver struct{}

func (stubResolver) FetchInfo(context.Context, string) resolver.Info { return resolver.Info{} }
func (stubResolver) FetchLabels(context.Context, []string) map[string]string {
	return nil
}

func (stubResolver) FetchPropertyLabels(context.Context, []string) map[string]string {
	return nil
}
func (stubResolver) FetchImage(context.Context, string) (string, bool) { return "", false }
func (stubResolver) FetchImages(context.Context, []string) map[string]string {
	return nil
}

func (stubResolver) FetchProperties(context.Context, rdf.Term, resolver.ProgressFunc) []resolver.Property {
	return nil
}

func (stubResolver) FetchRelatedNodes(context.Context, rdf.Term, string) []resolver.Related {
	return nil
}

type stubRelations struct{}

func (stubRelations) FetchMultipleRelations(context.Context, []rdf.Term, []rdf.Term) []relations.Relation {
	return nil
}
