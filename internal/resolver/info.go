// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package resolver

import (
	"context"
	"fmt"

	"github.com/sigil-dev/graphscope/pkg/rdf"
	"golang.org/x/sync/errgroup"
)

// Info is the display metadata of one entity. Label falls back to the URI;
// Description and Type fall back to "".
type Info struct {
	URI         string `json:"uri"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
}

// FetchInfo looks up label, description and a coarse type label of uri in
// a single query.
func (r *Resolver) FetchInfo(ctx context.Context, uri string) Info {
	info := Info{URI: uri, Label: uri}
	if !rdf.IsURI(uri) {
		return info
	}

	s := r.settings()
	body := fmt.Sprintf(`SELECT ?label ?description ?typeLabel WHERE {
  %s
  OPTIONAL { %s }
  OPTIONAL { %s }
  OPTIONAL { %s }
} LIMIT 1`,
		valuesClause("?subject", []rdf.Term{rdf.URI(uri)}),
		s.dialect.LabelOf("?subject", "?label", s.lang),
		s.dialect.DescriptionOf("?subject", "?description", s.lang),
		s.dialect.TypeLabelOf("?subject", "?typeLabel", s.lang),
	)

	bindings := r.query(ctx, "info", body)
	if len(bindings) == 0 {
		return info
	}
	b := bindings[0]
	if v := b.Value("label"); v != "" {
		info.Label = v
	}
	info.Description = b.Value("description")
	info.Type = b.Value("typeLabel")
	return info
}

// FetchLabels resolves the labels of many entities. Every input appears in
// the result; entities without a label in the configured language map to
// themselves.
func (r *Resolver) FetchLabels(ctx context.Context, uris []string) map[string]string {
	s := r.settings()
	return r.fetchLabels(ctx, "labels", uris, func(subject, label string) string {
		return s.dialect.LabelOf(subject, label, s.lang)
	})
}

// FetchPropertyLabels resolves predicate labels. On Wikidata these live on
// the property entity rather than the direct-claim predicate.
func (r *Resolver) FetchPropertyLabels(ctx context.Context, uris []string) map[string]string {
	s := r.settings()
	return r.fetchLabels(ctx, "property_labels", uris, func(subject, label string) string {
		return s.dialect.PropertyLabelOf(subject, label, s.lang)
	})
}

func (r *Resolver) fetchLabels(ctx context.Context, op string, uris []string, pattern func(subject, label string) string) map[string]string {
	labels := r.perSubject(ctx, op, uris, func(values string) string {
		return fmt.Sprintf("SELECT ?subject ?label WHERE {\n  %s\n  %s\n}", values, pattern("?subject", "?label"))
	}, "label")

	out := make(map[string]string, len(uris))
	for _, u := range uris {
		if l, ok := labels[u]; ok {
			out[u] = l
		} else {
			out[u] = u
		}
	}
	return out
}

// FetchImage returns an image URL for uri, if the endpoint knows one.
func (r *Resolver) FetchImage(ctx context.Context, uri string) (string, bool) {
	img, ok := r.FetchImages(ctx, []string{uri})[uri]
	return img, ok
}

// FetchImages resolves image URLs for many entities. Entities without an
// image are absent from the result.
func (r *Resolver) FetchImages(ctx context.Context, uris []string) map[string]string {
	s := r.settings()
	return r.perSubject(ctx, "images", uris, func(values string) string {
		return fmt.Sprintf("SELECT ?subject ?image WHERE {\n  %s\n  %s\n}", values, s.dialect.ImageOf("?subject", "?image"))
	}, "image")
}

// perSubject runs one batched VALUES query per chunk of uris and keeps the
// first value per subject.
func (r *Resolver) perSubject(ctx context.Context, op string, uris []string, build func(values string) string, valueVar string) map[string]string {
	terms := uriTerms(uris)
	out := make(map[string]string, len(terms))
	if len(terms) == 0 {
		return out
	}

	chunks := batches(terms, r.settings().cfg.Limits.BatchSize)
	results := make([][]rdf.Binding, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = r.query(gctx, op, build(valuesClause("?subject", chunk)))
			return nil
		})
	}
	_ = g.Wait()

	// Merge in chunk order so "first match" is deterministic.
	for _, bindings := range results {
		firstPerSubject(bindings, "subject", valueVar, out)
	}
	return out
}
