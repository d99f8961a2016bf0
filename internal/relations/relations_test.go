// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package relations_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/relations"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ex = "http://example.org/"
	a  = ex + "A"
	b  = ex + "B"
	c  = ex + "C"
	d  = ex + "D"
	p  = ex + "p"
	q  = ex + "q"
)

type fakeQuerier struct {
	mu      sync.Mutex
	queries []string
	handler func(body string) ([]rdf.Binding, error)
}

func (f *fakeQuerier) Query(_ context.Context, body string) ([]rdf.Binding, error) {
	f.mu.Lock()
	f.queries = append(f.queries, body)
	f.mu.Unlock()
	if f.handler == nil {
		return nil, nil
	}
	return f.handler(body)
}

func (f *fakeQuerier) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeLabels map[string]string

func (l fakeLabels) FetchPropertyLabels(_ context.Context, uris []string) map[string]string {
	out := map[string]string{}
	for _, u := range uris {
		if v, ok := l[u]; ok {
			out[u] = v
		} else {
			out[u] = u
		}
	}
	return out
}

func row(subject, property, object rdf.Term, direction string) rdf.Binding {
	return rdf.Binding{
		"subject":   subject,
		"property":  property,
		"object":    object,
		"direction": rdf.Literal(direction),
	}
}

func newFetcher(t *testing.T, fq *fakeQuerier, labels relations.LabelResolver, mutate ...func(*config.Config)) *relations.Fetcher {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	f, err := relations.New(relations.Options{Client: fq, Labels: labels, Config: config.NewStatic(cfg)})
	require.NoError(t, err)
	return f
}

func uris(values ...string) []rdf.Term {
	out := make([]rdf.Term, len(values))
	for i, v := range values {
		out[i] = rdf.URI(v)
	}
	return out
}

// ---------------------------------------------------------------------------
// Orientation
// ---------------------------------------------------------------------------

func TestFetchRelations_NormalizesDirection(t *testing.T) {
	fq := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{
			row(rdf.URI(a), rdf.URI(p), rdf.URI(c), "in"),
			row(rdf.URI(a), rdf.URI(q), rdf.URI(d), "out"),
		}, nil
	}}
	f := newFetcher(t, fq, nil)

	rels := f.FetchRelations(context.Background(), uris(a, b), uris(c, d))
	require.Len(t, rels, 2)
	assert.Equal(t, relations.Relation{Subject: rdf.URI(c), Property: p, Object: rdf.URI(a)}, rels[0])
	assert.Equal(t, relations.Relation{Subject: rdf.URI(a), Property: q, Object: rdf.URI(d)}, rels[1])

	body := fq.recorded()[0]
	assert.Contains(t, body, "VALUES ?subject { <http://example.org/A> <http://example.org/B> }")
	assert.Contains(t, body, "VALUES ?object { <http://example.org/C> <http://example.org/D> }")
	assert.Contains(t, body, `BIND("in" AS ?direction)`)
	assert.Contains(t, body, "[] wikibase:directClaim ?property .")
}

func TestFetchRelations_DedupesAcrossBatches(t *testing.T) {
	fq := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{row(rdf.URI(a), rdf.URI(p), rdf.URI(c), "out")}, nil
	}}
	f := newFetcher(t, fq, nil, func(c *config.Config) { c.Limits.BatchSize = 1 })

	rels := f.FetchRelations(context.Background(), uris(a, b), uris(c, d))
	assert.Len(t, fq.recorded(), 4, "2x2 batches")
	assert.Len(t, rels, 1)
}

func TestFetchRelations_LiteralEndpoints(t *testing.T) {
	fq := &fakeQuerier{}
	f := newFetcher(t, fq, nil)

	objects := []rdf.Term{
		rdf.LangLiteral("Douglas Adams", "en"),
		rdf.TypedLiteral("42", "http://www.w3.org/2001/XMLSchema#integer"),
		{Kind: rdf.KindBlank, Value: "b0"},
	}
	f.FetchRelations(context.Background(), uris(a), objects)

	body := fq.recorded()[0]
	assert.Contains(t, body, `"Douglas Adams"@en`)
	assert.Contains(t, body, `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`)
	assert.NotContains(t, body, "b0", "blank nodes cannot be matched across queries")
}

// ---------------------------------------------------------------------------
// Capacity
// ---------------------------------------------------------------------------

func TestFetchRelations_CapsExistingSet(t *testing.T) {
	fq := &fakeQuerier{}
	f := newFetcher(t, fq, nil, func(c *config.Config) { c.Limits.RelationMaxNodes = 2 })

	f.FetchRelations(context.Background(), uris(a), uris(ex+"old1", ex+"old2", c, d))
	body := fq.recorded()[0]
	assert.NotContains(t, body, "old1")
	assert.NotContains(t, body, "old2")
	assert.Contains(t, body, "<http://example.org/C> <http://example.org/D>")
}

func TestFetchRelations_EmptySetsSkipNetwork(t *testing.T) {
	fq := &fakeQuerier{}
	f := newFetcher(t, fq, nil)

	assert.Empty(t, f.FetchRelations(context.Background(), nil, uris(c)))
	assert.Empty(t, f.FetchRelations(context.Background(), uris(a), nil))
	assert.Empty(t, fq.recorded())
}

func TestFetchRelations_ExcludedPredicates(t *testing.T) {
	fq := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{
			row(rdf.URI(a), rdf.URI(p), rdf.URI(c), "out"),
			row(rdf.URI(a), rdf.URI("http://dbpedia.org/ontology/wikiPageWikiLink"), rdf.URI(c), "out"),
		}, nil
	}}
	f := newFetcher(t, fq, nil, func(c *config.Config) {
		c.Endpoint.Type = config.EndpointDBpedia
		c.Properties.Exclude = []string{"http://dbpedia.org/ontology/wikiPage*"}
	})

	rels := f.FetchRelations(context.Background(), uris(a), uris(c))
	require.Len(t, rels, 1)
	assert.Equal(t, p, rels[0].Property)
	assert.False(t, strings.Contains(fq.recorded()[0], "wikibase:directClaim"), "dbpedia has no property filter")
}

func TestFetchRelations_FailureIsEmpty(t *testing.T) {
	fq := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) { return nil, assert.AnError }}
	f := newFetcher(t, fq, nil)
	assert.Empty(t, f.FetchRelations(context.Background(), uris(a), uris(c)))
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

func TestFetchMultipleRelations_LabelsPredicates(t *testing.T) {
	fq := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{
			row(rdf.URI(a), rdf.URI(p), rdf.URI(c), "out"),
			row(rdf.URI(b), rdf.URI(p), rdf.URI(d), "out"),
			row(rdf.URI(a), rdf.URI(q), rdf.URI(d), "in"),
		}, nil
	}}
	f := newFetcher(t, fq, fakeLabels{p: "knows"})

	rels := f.FetchMultipleRelations(context.Background(), uris(a, b), uris(c, d))
	require.Len(t, rels, 3)
	assert.Equal(t, "knows", rels[0].Label)
	assert.Equal(t, "knows", rels[1].Label)
	assert.Equal(t, q, rels[2].Label, "unlabelled predicates fall back to their URI")
	assert.Equal(t, rdf.URI(d), rels[2].Subject)
}
