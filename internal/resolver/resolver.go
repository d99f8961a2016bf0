// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package resolver turns endpoint bindings into domain-shaped records:
// labels, descriptions, images, property lists and related nodes. Every
// lookup degrades to a defined fallback when the endpoint fails or leaves
// an optional value unbound; callers never see query errors.
package resolver

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/sparql"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
)

// Querier runs a SPARQL SELECT and returns its bindings.
type Querier interface {
	Query(ctx context.Context, body string) ([]rdf.Binding, error)
}

// Options configures a Resolver.
type Options struct {
	Client Querier
	Config config.Source
	Logger *slog.Logger

	// Concurrency bounds how many batch queries one call keeps waiting on
	// the client at once. Defaults to 4.
	Concurrency int
}

// Resolver resolves entity metadata through a shared query client.
type Resolver struct {
	client      Querier
	cfg         config.Source
	logger      *slog.Logger
	concurrency int
}

// New creates a Resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Client == nil {
		return nil, sigilerr.New(sigilerr.CodeResolverRequestInvalid, "resolver requires a query client")
	}
	if opts.Config == nil {
		return nil, sigilerr.New(sigilerr.CodeResolverRequestInvalid, "resolver requires a config source")
	}
	r := &Resolver{
		client:      opts.Client,
		cfg:         opts.Config,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.concurrency <= 0 {
		r.concurrency = 4
	}
	return r, nil
}

// settings is the per-call view of configuration a lookup needs.
type settings struct {
	cfg     *config.Config
	dialect sparql.Dialect
	lang    string
}

func (r *Resolver) settings() settings {
	cfg := r.cfg.Current()
	d, err := sparql.LookupDialect(cfg.Endpoint.Type)
	if err != nil {
		r.logger.Warn("unknown endpoint dialect, using wikidata", "type", cfg.Endpoint.Type)
		d = sparql.Wikidata
	}
	return settings{cfg: cfg, dialect: d, lang: cfg.Endpoint.Lang}
}

// query runs body and swallows failures into an empty result. The client
// has already reported the failure to its observers.
func (r *Resolver) query(ctx context.Context, op, body string) []rdf.Binding {
	bindings, err := r.client.Query(ctx, body)
	if err != nil {
		r.logger.Debug("resolver lookup returned no results", "op", op, "error", err)
		return nil
	}
	return bindings
}

// uriTerms keeps the values that can appear in a VALUES clause as IRIs,
// dropping duplicates.
func uriTerms(uris []string) []rdf.Term {
	seen := make(map[string]bool, len(uris))
	out := make([]rdf.Term, 0, len(uris))
	for _, u := range uris {
		if seen[u] || !rdf.IsURI(u) {
			continue
		}
		seen[u] = true
		out = append(out, rdf.URI(u))
	}
	return out
}

// queryable reports whether t can be embedded in a query pattern.
func queryable(t rdf.Term) bool {
	switch t.Kind {
	case rdf.KindURI:
		return rdf.IsURI(t.Value)
	case rdf.KindLiteral:
		return true
	default:
		return false
	}
}

func valuesClause(variable string, terms []rdf.Term) string {
	return "VALUES " + variable + " { " + rdf.FormatTerms(terms) + " }"
}

// batches splits terms into chunks of the configured batch size.
func batches(terms []rdf.Term, size int) [][]rdf.Term {
	if size <= 0 {
		size = len(terms)
	}
	if len(terms) == 0 {
		return nil
	}
	return slices.Collect(slices.Chunk(terms, size))
}

// firstPerSubject keeps the first non-empty value bound to valueVar for
// each subject.
func firstPerSubject(bindings []rdf.Binding, subjectVar, valueVar string, into map[string]string) {
	for _, b := range bindings {
		subject := b.Value(subjectVar)
		value := strings.TrimSpace(b.Value(valueVar))
		if subject == "" || value == "" {
			continue
		}
		if _, ok := into[subject]; !ok {
			into[subject] = value
		}
	}
}
