// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package relations discovers the triples that connect two known node sets
// with a handful of batched queries instead of one query per pair.
package relations

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/sparql"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"golang.org/x/sync/errgroup"
)

// Querier runs a SPARQL SELECT and returns its bindings.
type Querier interface {
	Query(ctx context.Context, body string) ([]rdf.Binding, error)
}

// LabelResolver resolves predicate labels in bulk.
type LabelResolver interface {
	FetchPropertyLabels(ctx context.Context, uris []string) map[string]string
}

// Relation is one discovered triple. Subject and Object always reflect the
// true direction of the triple, whichever set each endpoint came from.
type Relation struct {
	Subject  rdf.Term `json:"subject"`
	Property string   `json:"property"`
	Object   rdf.Term `json:"object"`
	Label    string   `json:"label,omitempty"`
}

// Options configures a Fetcher.
type Options struct {
	Client      Querier
	Labels      LabelResolver
	Config      config.Source
	Logger      *slog.Logger
	Concurrency int
}

// Fetcher finds relations between node sets.
type Fetcher struct {
	client      Querier
	labels      LabelResolver
	cfg         config.Source
	logger      *slog.Logger
	concurrency int
}

// New creates a Fetcher. Labels may be nil, in which case
// FetchMultipleRelations labels predicates with their URI.
func New(opts Options) (*Fetcher, error) {
	if opts.Client == nil {
		return nil, sigilerr.New(sigilerr.CodeRelationsRequestInvalid, "relation fetcher requires a query client")
	}
	if opts.Config == nil {
		return nil, sigilerr.New(sigilerr.CodeRelationsRequestInvalid, "relation fetcher requires a config source")
	}
	f := &Fetcher{
		client:      opts.Client,
		labels:      opts.Labels,
		cfg:         opts.Config,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.concurrency <= 0 {
		f.concurrency = 4
	}
	return f, nil
}

type tripleKey struct {
	subject  rdf.Term
	property string
	object   rdf.Term
}

// FetchRelations returns every triple with one endpoint in subjects and the
// other in objects, in either direction. Literal endpoints are matched by
// their literal form. objects is capped at limits.relation_max_nodes,
// keeping its tail, and both sets are split into batches of
// limits.batch_size. Failed batches contribute nothing.
func (f *Fetcher) FetchRelations(ctx context.Context, subjects, objects []rdf.Term) []Relation {
	cfg := f.cfg.Current()
	dialect, err := sparql.LookupDialect(cfg.Endpoint.Type)
	if err != nil {
		dialect = sparql.Wikidata
	}

	subjects = queryable(subjects)
	objects = queryable(objects)
	if limit := cfg.Limits.RelationMaxNodes; limit > 0 && len(objects) > limit {
		objects = objects[len(objects)-limit:]
	}
	if len(subjects) == 0 || len(objects) == 0 {
		return nil
	}

	subjectBatches := chunk(subjects, cfg.Limits.BatchSize)
	objectBatches := chunk(objects, cfg.Limits.BatchSize)

	type job struct{ subjects, objects []rdf.Term }
	jobs := make([]job, 0, len(subjectBatches)*len(objectBatches))
	for _, sb := range subjectBatches {
		for _, ob := range objectBatches {
			jobs = append(jobs, job{sb, ob})
		}
	}

	results := make([][]rdf.Binding, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			body := relationsQuery(j.subjects, j.objects, dialect.FilterProperty("?property"))
			bindings, err := f.client.Query(gctx, body)
			if err != nil {
				f.logger.Debug("relation batch returned no results", "error", err)
				return nil
			}
			results[i] = bindings
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[tripleKey]bool)
	var out []Relation
	for _, bindings := range results {
		for _, b := range bindings {
			rel, ok := normalize(b)
			if !ok || cfg.ExcludesProperty(rel.Property) {
				continue
			}
			key := tripleKey{rel.Subject, rel.Property, rel.Object}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, rel)
		}
	}
	return out
}

// FetchMultipleRelations is FetchRelations followed by one batched label
// lookup for every distinct predicate found.
func (f *Fetcher) FetchMultipleRelations(ctx context.Context, subjects, objects []rdf.Term) []Relation {
	rels := f.FetchRelations(ctx, subjects, objects)
	if len(rels) == 0 {
		return rels
	}

	var predicates []string
	for _, r := range rels {
		if !slices.Contains(predicates, r.Property) {
			predicates = append(predicates, r.Property)
		}
	}

	var labels map[string]string
	if f.labels != nil {
		labels = f.labels.FetchPropertyLabels(ctx, predicates)
	}
	for i := range rels {
		if l := labels[rels[i].Property]; l != "" {
			rels[i].Label = l
		} else {
			rels[i].Label = rels[i].Property
		}
	}
	return rels
}

func relationsQuery(subjects, objects []rdf.Term, filter string) string {
	return fmt.Sprintf(`SELECT DISTINCT ?subject ?property ?object ?direction WHERE {
  VALUES ?subject { %s }
  VALUES ?object { %s }
  { ?subject ?property ?object . BIND("out" AS ?direction) }
  UNION
  { ?object ?property ?subject . BIND("in" AS ?direction) }
  %s
}`, rdf.FormatTerms(subjects), rdf.FormatTerms(objects), filter)
}

// normalize turns one binding into a Relation. A binding tagged "in"
// matched ?object ?property ?subject, so its endpoints are swapped.
func normalize(b rdf.Binding) (Relation, bool) {
	subject, ok1 := b.Get("subject")
	object, ok2 := b.Get("object")
	property := b.Value("property")
	if !ok1 || !ok2 || property == "" {
		return Relation{}, false
	}
	if b.Value("direction") == "in" {
		subject, object = object, subject
	}
	return Relation{Subject: subject, Property: property, Object: object}, true
}

// queryable drops blank nodes and duplicates, keeping first occurrences.
func queryable(terms []rdf.Term) []rdf.Term {
	seen := make(map[rdf.Term]bool, len(terms))
	out := make([]rdf.Term, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		switch {
		case t.Kind == rdf.KindURI && rdf.IsURI(t.Value), t.Kind == rdf.KindLiteral:
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func chunk(terms []rdf.Term, size int) [][]rdf.Term {
	if size <= 0 {
		size = len(terms)
	}
	return slices.Collect(slices.Chunk(terms, size))
}
