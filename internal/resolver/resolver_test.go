// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package resolver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/sparql"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const (
	wd    = "http://www.wikidata.org/entity/"
	wdt   = "http://www.wikidata.org/prop/direct/"
	q42   = wd + "Q42"
	q5    = wd + "Q5"
	p31   = wdt + "P31"
	p18   = wdt + "P18"
	image = "http://commons.wikimedia.org/wiki/Special:FilePath/Douglas%20adams.jpg"
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

// bind builds a binding from alternating variable/value pairs. Values that
// look like IRIs become URI terms, everything else a plain literal.
func bind(pairs ...string) rdf.Binding {
	b := rdf.Binding{}
	for i := 0; i+1 < len(pairs); i += 2 {
		b[pairs[i]] = rdf.TermFor(pairs[i+1])
	}
	return b
}

func newResolver(t *testing.T, q resolver.Querier, mutate ...func(*config.Config)) *resolver.Resolver {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	r, err := resolver.New(resolver.Options{Client: q, Config: config.NewStatic(cfg)})
	require.NoError(t, err)
	return r
}

// ---------------------------------------------------------------------------
// FetchInfo
// ---------------------------------------------------------------------------

func TestFetchInfo(t *testing.T) {
	q := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{bind("label", "Douglas Adams", "description", "English writer", "typeLabel", "human")}, nil
	}}
	r := newResolver(t, q)

	info := r.FetchInfo(context.Background(), q42)
	assert.Equal(t, resolver.Info{URI: q42, Label: "Douglas Adams", Description: "English writer", Type: "human"}, info)

	queries := q.recorded()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "VALUES ?subject { wd:Q42 }")
	assert.Contains(t, queries[0], "schema:description")
	assert.Contains(t, queries[0], `FILTER(LANG(?label) = "en")`)
	assert.Contains(t, queries[0], "LIMIT 1")
}

func TestFetchInfo_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		bindings []rdf.Binding
		err      error
	}{
		{"no rows", nil, nil},
		{"unbound optionals", []rdf.Binding{{}}, nil},
		{"query failed", nil, assert.AnError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, &fakeQuerier{handler: func(string) ([]rdf.Binding, error) { return tt.bindings, tt.err }})
			info := r.FetchInfo(context.Background(), q42)
			assert.Equal(t, q42, info.Label)
			assert.Empty(t, info.Description)
			assert.Empty(t, info.Type)
		})
	}
}

func TestFetchInfo_LiteralSkipsNetwork(t *testing.T) {
	q := &fakeQuerier{}
	r := newResolver(t, q)

	info := r.FetchInfo(context.Background(), "42 is the answer")
	assert.Equal(t, "42 is the answer", info.Label)
	assert.Empty(t, q.recorded())
}

func TestFetchInfo_DBpediaDialect(t *testing.T) {
	q := &fakeQuerier{}
	r := newResolver(t, q, func(c *config.Config) {
		c.Endpoint.Type = config.EndpointDBpedia
		c.Endpoint.Lang = "de"
	})

	r.FetchInfo(context.Background(), "http://dbpedia.org/resource/Berlin")
	queries := q.recorded()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "dbr:Berlin")
	assert.Contains(t, queries[0], "rdfs:comment")
	assert.Contains(t, queries[0], `FILTER(LANG(?label) = "de")`)
}

// ---------------------------------------------------------------------------
// Labels and images
// ---------------------------------------------------------------------------

func TestFetchLabels_BatchesAndFallsBack(t *testing.T) {
	q := &fakeQuerier{handler: func(body string) ([]rdf.Binding, error) {
		var out []rdf.Binding
		if strings.Contains(body, "wd:Q1 ") {
			out = append(out, bind("subject", wd+"Q1", "label", "universe"), bind("subject", wd+"Q1", "label", "cosmos"))
		}
		if strings.Contains(body, "wd:Q5 ") {
			out = append(out, bind("subject", q5, "label", "human"))
		}
		return out, nil
	}}
	r := newResolver(t, q, func(c *config.Config) { c.Limits.BatchSize = 2 })

	uris := []string{wd + "Q1", wd + "Q2", wd + "Q3", wd + "Q4", q5, "plain literal"}
	labels := r.FetchLabels(context.Background(), uris)

	assert.Len(t, q.recorded(), 3, "five IRIs in batches of two")
	assert.Equal(t, "universe", labels[wd+"Q1"], "first label per subject wins")
	assert.Equal(t, "human", labels[q5])
	assert.Equal(t, wd+"Q2", labels[wd+"Q2"])
	assert.Equal(t, "plain literal", labels["plain literal"])
	assert.Len(t, labels, len(uris))
}

func TestFetchLabels_FailureFallsBackToURIs(t *testing.T) {
	r := newResolver(t, &fakeQuerier{handler: func(string) ([]rdf.Binding, error) { return nil, assert.AnError }})
	labels := r.FetchLabels(context.Background(), []string{q42, q5})
	assert.Equal(t, map[string]string{q42: q42, q5: q5}, labels)
}

func TestFetchPropertyLabels_UsesDirectClaimOnWikidata(t *testing.T) {
	q := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{bind("subject", p31, "label", "instance of")}, nil
	}}
	r := newResolver(t, q)

	labels := r.FetchPropertyLabels(context.Background(), []string{p31})
	assert.Equal(t, "instance of", labels[p31])
	assert.Contains(t, q.recorded()[0], "wikibase:directClaim ?subject")
}

func TestFetchImages(t *testing.T) {
	q := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{bind("subject", q42, "image", image)}, nil
	}}
	r := newResolver(t, q)

	images := r.FetchImages(context.Background(), []string{q42, q5})
	assert.Equal(t, map[string]string{q42: image}, images)

	img, ok := r.FetchImage(context.Background(), q42)
	assert.True(t, ok)
	assert.Equal(t, image, img)

	_, ok = r.FetchImage(context.Background(), q5)
	assert.False(t, ok)
	assert.Contains(t, q.recorded()[0], "wdt:P18")
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func TestFetchProperties(t *testing.T) {
	q := &fakeQuerier{handler: func(body string) ([]rdf.Binding, error) {
		switch {
		case strings.Contains(body, "SELECT DISTINCT ?property"):
			return []rdf.Binding{
				bind("property", p31),
				bind("property", p18),
				bind("property", "http://schema.org/about"),
			}, nil
		case strings.Contains(body, "COUNT(?out)") && strings.Contains(body, "wdt:P31"):
			return []rdf.Binding{bind("outCount", "1", "inCount", "0")}, nil
		case strings.Contains(body, "COUNT(?out)"):
			return []rdf.Binding{bind("outCount", "2", "inCount", "7")}, nil
		case strings.Contains(body, "?subject ?label"):
			return []rdf.Binding{bind("subject", p31, "label", "instance of")}, nil
		}
		return nil, nil
	}}
	r := newResolver(t, q, func(c *config.Config) {
		c.Properties.Exclude = []string{"http://schema.org/*"}
	})

	var progress []int
	props := r.FetchProperties(context.Background(), rdf.URI(q42), func(p int) { progress = append(progress, p) })

	require.Len(t, props, 2, "excluded predicate is dropped")
	assert.Equal(t, resolver.Property{URI: p31, Label: "instance of", InCount: 0, OutCount: 1}, props[0])
	assert.Equal(t, resolver.Property{URI: p18, Label: p18, InCount: 7, OutCount: 2}, props[1])
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])

	first := q.recorded()[0]
	assert.Contains(t, first, "[] wikibase:directClaim ?property .")
	for _, body := range q.recorded() {
		if strings.Contains(body, "COUNT(?out)") {
			assert.Contains(t, body, "LIMIT 100")
		}
	}
}

func TestFetchProperties_Empty(t *testing.T) {
	var progress []int
	r := newResolver(t, &fakeQuerier{handler: func(string) ([]rdf.Binding, error) { return nil, assert.AnError }})
	props := r.FetchProperties(context.Background(), rdf.URI(q42), func(p int) { progress = append(progress, p) })
	assert.Empty(t, props)
	assert.Equal(t, []int{100}, progress)
}

func TestFetchProperty(t *testing.T) {
	q := &fakeQuerier{handler: func(body string) ([]rdf.Binding, error) {
		if strings.Contains(body, "COUNT") {
			return []rdf.Binding{bind("outCount", "3", "inCount", "4")}, nil
		}
		return []rdf.Binding{bind("subject", p31, "label", "instance of")}, nil
	}}
	r := newResolver(t, q)

	p := r.FetchProperty(context.Background(), rdf.URI(q42), p31)
	assert.Equal(t, resolver.Property{URI: p31, Label: "instance of", InCount: 4, OutCount: 3}, p)
}

// ---------------------------------------------------------------------------
// Related nodes
// ---------------------------------------------------------------------------

func TestFetchRelatedNodes(t *testing.T) {
	q := &fakeQuerier{handler: func(string) ([]rdf.Binding, error) {
		return []rdf.Binding{
			bind("object", q5, "label", "human", "direction", "out", "propertyLabel", "instance of"),
			bind("object", q5, "label", "human", "direction", "in", "propertyLabel", "instance of"),
			bind("object", wd+"Q16521", "direction", "in"),
			{"object": rdf.TypedLiteral("1952-03-11", "http://www.w3.org/2001/XMLSchema#date"), "direction": rdf.Literal("out")},
		}, nil
	}}
	r := newResolver(t, q)

	related := r.FetchRelatedNodes(context.Background(), rdf.URI(q42), p31)
	require.Len(t, related, 3)
	assert.Equal(t, resolver.Related{Term: rdf.URI(q5), Label: "human", Direction: resolver.DirectionOut, PropertyLabel: "instance of"}, related[0])
	assert.Equal(t, resolver.Related{Term: rdf.URI(wd + "Q16521"), Label: wd + "Q16521", Direction: resolver.DirectionIn}, related[1])
	assert.Equal(t, "1952-03-11", related[2].Label)
	assert.True(t, related[2].Term.IsLiteral())

	body := q.recorded()[0]
	assert.Contains(t, body, `wd:Q42 wdt:P31 ?object . BIND("out" AS ?direction)`)
	assert.Contains(t, body, `?object wdt:P31 wd:Q42 . BIND("in" AS ?direction)`)
	assert.Contains(t, body, "LIMIT 100")
	assert.Contains(t, body, "OPTIONAL { [] wikibase:directClaim wdt:P31 ; rdfs:label ?propertyLabel .")
}

func TestFetchRelatedNodes_LiteralSubject(t *testing.T) {
	q := &fakeQuerier{}
	r := newResolver(t, q)

	r.FetchRelatedNodes(context.Background(), rdf.LangLiteral("Douglas Adams", "en"), "http://www.w3.org/2000/01/rdf-schema#label")
	require.Len(t, q.recorded(), 1)
	assert.Contains(t, q.recorded()[0], `?object rdfs:label "Douglas Adams"@en`)
}

func TestFetchRelatedNodes_Non200YieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Endpoint.URL = srv.URL
	cfg.Limits.RateLimit = 0
	src := config.NewStatic(cfg)

	client, err := sparql.NewClient(sparql.Options{Config: src})
	require.NoError(t, err)
	defer client.Close()

	r, err := resolver.New(resolver.Options{Client: client, Config: src})
	require.NoError(t, err)

	related := r.FetchRelatedNodes(context.Background(), rdf.URI(q42), p31)
	assert.Empty(t, related)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := resolver.New(resolver.Options{Config: config.NewStatic(config.Default())})
	require.Error(t, err)
	_, err = resolver.New(resolver.Options{Client: &fakeQuerier{}})
	require.Error(t, err)
}
