// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/notify"
	"github.com/sigil-dev/graphscope/internal/relations"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/sparql"
	"github.com/sigil-dev/graphscope/internal/view"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
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

	wd   = "http://www.wikidata.org/entity/"
	wdt  = "http://www.wikidata.org/prop/direct/"
	q42  = wd + "Q42"
	q5   = wd + "Q5"
	q165 = wd + "Q16521"
	p31  = wdt + "P31"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeResolver struct {
	mu         sync.Mutex
	calls      map[string]int
	info       map[string]resolver.Info
	labels     map[string]string
	images     map[string]string
	properties map[string][]resolver.Property
	related    map[string][]resolver.Related
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		calls:      map[string]int{},
		info:       map[string]resolver.Info{},
		labels:     map[string]string{},
		images:     map[string]string{},
		properties: map[string][]resolver.Property{},
		related:    map[string][]resolver.Related{},
	}
}

func (f *fakeResolver) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeResolver) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeResolver) FetchInfo(_ context.Context, uri string) resolver.Info {
	f.record("info")
	if info, ok := f.info[uri]; ok {
		return info
	}
	return resolver.Info{URI: uri, Label: uri}
}

func (f *fakeResolver) FetchLabels(_ context.Context, uris []string) map[string]string {
	f.record("labels")
	return f.lookup(uris)
}

func (f *fakeResolver) FetchPropertyLabels(_ context.Context, uris []string) map[string]string {
	f.record("property_labels")
	return f.lookup(uris)
}

func (f *fakeResolver) lookup(uris []string) map[string]string {
	out := map[string]string{}
	for _, u := range uris {
		if l, ok := f.labels[u]; ok {
			out[u] = l
		} else {
			out[u] = u
		}
	}
	return out
}

func (f *fakeResolver) FetchImage(_ context.Context, uri string) (string, bool) {
	f.record("image")
	img, ok := f.images[uri]
	return img, ok
}

func (f *fakeResolver) FetchImages(_ context.Context, uris []string) map[string]string {
	f.record("images")
	out := map[string]string{}
	for _, u := range uris {
		if img, ok := f.images[u]; ok {
			out[u] = img
		}
	}
	return out
}

func (f *fakeResolver) FetchProperties(_ context.Context, subject rdf.Term, progress resolver.ProgressFunc) []resolver.Property {
	f.record("properties")
	progress(50)
	progress(100)
	return f.properties[subject.Value]
}

func (f *fakeResolver) FetchRelatedNodes(_ context.Context, subject rdf.Term, property string) []resolver.Related {
	f.record("related")
	out := slices.Clone(f.related[subject.Value+" "+property])
	if l, ok := f.labels[property]; ok {
		for i := range out {
			out[i].PropertyLabel = l
		}
	}
	return out
}

type fakeRelations struct {
	mu       sync.Mutex
	rels     []relations.Relation
	subjects [][]rdf.Term
	objects  [][]rdf.Term
}

func (f *fakeRelations) FetchMultipleRelations(_ context.Context, subjects, objects []rdf.Term) []relations.Relation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subjects)
	f.objects = append(f.objects, objects)
	return slices.Clone(f.rels)
}

func (f *fakeRelations) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subjects)
}

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) Notify(e notify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) has(kind notify.Kind, state string, progress int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Kind == kind && e.State == state && e.Progress == progress {
			return true
		}
	}
	return false
}

type fixture struct {
	graph     *graph.Graph
	mirror    *view.Mirror
	resolver  *fakeResolver
	relations *fakeRelations
	events    *eventLog
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Fetch.Image = false
	cfg.Fetch.Related = false
	for _, m := range mutate {
		m(cfg)
	}
	f := &fixture{
		mirror:    view.NewMirror(0),
		resolver:  newFakeResolver(),
		relations: &fakeRelations{},
		events:    &eventLog{},
	}
	g, err := graph.New(graph.Options{
		ID:        "test",
		Config:    config.NewStatic(cfg),
		Resolver:  f.resolver,
		Relations: f.relations,
		Renderer:  f.mirror,
		Notifier:  f.events,
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)
	f.graph = g
	return f
}

func (f *fixture) node(t *testing.T, id string, visible bool) {
	t.Helper()
	_, err := f.graph.FindOrCreateNode(context.Background(), graph.NodeSpec{ID: id, Visible: visible})
	require.NoError(t, err)
}

func (f *fixture) edge(t *testing.T, from, property, to, label string) {
	t.Helper()
	_, err := f.graph.CreateEdge(context.Background(), from, property, to, label)
	require.NoError(t, err)
}

func renderedNodes(m *view.Mirror) []string {
	return m.NodeIDs()
}

func renderedPairs(m *view.Mirror) [][2]string {
	var out [][2]string
	for _, e := range m.State().Edges {
		out = append(out, [2]string{e.From, e.To})
	}
	return out
}

func ids(nodes []graph.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

// relatedResults answers a related-nodes query for A through p with B
// (outgoing) and C (incoming).
const relatedResults = `{"head":{"vars":["object","label","direction","propertyLabel"]},"results":{"bindings":[
{"object":{"type":"uri","value":"http://example.org/B"},"label":{"type":"literal","value":"B","xml:lang":"en"},
 "direction":{"type":"literal","value":"out"},"propertyLabel":{"type":"literal","value":"links to","xml:lang":"en"}},
{"object":{"type":"uri","value":"http://example.org/C"},"label":{"type":"literal","value":"C","xml:lang":"en"},
 "direction":{"type":"literal","value":"in"},"propertyLabel":{"type":"literal","value":"links to","xml:lang":"en"}}
]}}`

// newEndpointGraph wires a graph to the real client, resolver and relation
// fetcher talking to handler.
func newEndpointGraph(t *testing.T, handler http.HandlerFunc, mutate ...func(*config.Config)) (*graph.Graph, *eventLog) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Endpoint.URL = srv.URL
	cfg.Limits.RateLimit = 0
	for _, m := range mutate {
		m(cfg)
	}
	src := config.NewStatic(cfg)

	client, err := sparql.NewClient(sparql.Options{Config: src})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	res, err := resolver.New(resolver.Options{Client: client, Config: src})
	require.NoError(t, err)
	rels, err := relations.New(relations.Options{Client: client, Labels: res, Config: src})
	require.NoError(t, err)

	events := &eventLog{}
	g, err := graph.New(graph.Options{
		ID: "endpoint", Config: src, Resolver: res, Relations: rels,
		Renderer: view.NewMirror(0), Notifier: events,
	})
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g, events
}

// ---------------------------------------------------------------------------
// Nodes and edges
// ---------------------------------------------------------------------------

func TestFindOrCreateNode_MergesLongerLabel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.graph.FindOrCreateNode(ctx, graph.NodeSpec{ID: a, Label: "Ada"})
	require.NoError(t, err)
	n, err := f.graph.FindOrCreateNode(ctx, graph.NodeSpec{ID: a, Label: "Ada Lovelace", Description: "mathematician"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", n.Label)
	assert.Equal(t, "mathematician", n.Description)

	n, err = f.graph.FindOrCreateNode(ctx, graph.NodeSpec{ID: a, Label: "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", n.Label, "a shorter label never replaces a longer one")

	nodes, err := f.graph.Nodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestFindOrCreateNode_ResolvedLabelBeatsURIFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.graph.FindOrCreateNode(ctx, graph.NodeSpec{ID: q42})
	require.NoError(t, err)
	assert.Equal(t, q42, n.Label)

	n, err = f.graph.FindOrCreateNode(ctx, graph.NodeSpec{ID: q42, Label: "Douglas Adams"})
	require.NoError(t, err)
	assert.Equal(t, "Douglas Adams", n.Label)

	n, err = f.graph.FindOrCreateNode(ctx, graph.NodeSpec{ID: q42, Label: q42})
	require.NoError(t, err)
	assert.Equal(t, "Douglas Adams", n.Label)
}

func TestCreateEdge_ReverseMarksBidirectional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.node(t, a, true)
	f.node(t, b, true)

	created, err := f.graph.CreateEdge(ctx, a, p, b, "knows")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.graph.CreateEdge(ctx, a, p, b, "knows")
	require.NoError(t, err)
	assert.False(t, created)
	edges, err := f.graph.Edges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.False(t, edges[0].Bidirectional, "same orientation is a plain no-op")

	created, err = f.graph.CreateEdge(ctx, b, p, a, "knows")
	require.NoError(t, err)
	assert.False(t, created)
	edges, err = f.graph.Edges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Bidirectional)
	assert.Equal(t, graph.EdgeID(a, p, b), graph.EdgeID(b, p, a))
}

func TestCreateEdge_DistinctPredicatesAreDistinctEdges(t *testing.T) {
	f := newFixture(t)
	f.node(t, a, true)
	f.node(t, b, true)
	f.edge(t, a, p, b, "")
	f.edge(t, a, q, b, "")

	edges, err := f.graph.Edges(context.Background())
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, p, edges[0].Label, "label falls back to the predicate")
}

// ---------------------------------------------------------------------------
// Visible diff
// ---------------------------------------------------------------------------

func TestUpdateData_EdgeVisibleIffBothEndpointsVisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{a, b, c} {
		f.node(t, id, false)
	}
	f.edge(t, a, p, b, "ab")
	f.edge(t, b, p, c, "bc")

	for mask := range 8 {
		visible := map[string]bool{a: mask&1 != 0, b: mask&2 != 0, c: mask&4 != 0}
		var show, hide []string
		for _, id := range []string{a, b, c} {
			if visible[id] {
				show = append(show, id)
			} else {
				hide = append(hide, id)
			}
		}
		require.NoError(t, f.graph.ShowNodes(ctx, show))
		require.NoError(t, f.graph.HideNodes(ctx, hide))

		var want [][2]string
		if visible[a] && visible[b] {
			want = append(want, [2]string{a, b})
		}
		if visible[b] && visible[c] {
			want = append(want, [2]string{b, c})
		}
		assert.ElementsMatch(t, want, renderedPairs(f.mirror), "mask %03b", mask)
		assert.ElementsMatch(t, show, renderedNodes(f.mirror), "mask %03b", mask)
	}
}

func TestUpdateData_RepeatedSyncIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.node(t, a, true)
	require.NoError(t, f.graph.UpdateData(ctx, true))

	seq := f.mirror.State().Seq
	stabilized := f.mirror.Stabilizations()
	require.NoError(t, f.graph.UpdateData(ctx, true))
	assert.Equal(t, seq, f.mirror.State().Seq)
	assert.Equal(t, stabilized, f.mirror.Stabilizations())

	steps, _, err := f.graph.HistoryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
}

func TestUpdateData_StabilizesOnlyWithoutAnimations(t *testing.T) {
	tests := []struct {
		name       string
		animations bool
		want       int
	}{
		{"animations off", false, 1},
		{"animations on", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(c *config.Config) { c.View.Animations = tt.animations })
			f.node(t, a, false)
			require.NoError(t, f.graph.ShowNode(context.Background(), a))
			assert.Equal(t, tt.want, f.mirror.Stabilizations())
			if tt.want > 0 {
				assert.True(t, f.events.has(notify.KindLoading, notify.StateStabilizing, 0))
			}
		})
	}
}

func TestUpdateData_HiddenEdgeLabels(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.View.HideEdgeLabels = true })
	f.node(t, a, true)
	f.node(t, b, true)
	f.edge(t, a, p, b, "knows")
	require.NoError(t, f.graph.UpdateData(context.Background(), true))

	edges := f.mirror.State().Edges
	require.Len(t, edges, 1)
	assert.Empty(t, edges[0].Label)
	assert.Equal(t, "knows", edges[0].Title)
}

func TestShowNode_UnknownNode(t *testing.T) {
	f := newFixture(t)
	err := f.graph.ShowNode(context.Background(), a)
	require.Error(t, err)
	assert.True(t, sigilerr.IsNotFound(err))
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestUndoRedo_RestoresVisibleSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nodes := []string{a, b, c}
	for _, id := range nodes {
		f.node(t, id, false)
	}
	for _, id := range nodes {
		require.NoError(t, f.graph.ShowNode(ctx, id))
	}
	after := renderedNodes(f.mirror)
	require.ElementsMatch(t, nodes, after)

	for range nodes {
		moved, err := f.graph.Undo(ctx)
		require.NoError(t, err)
		assert.True(t, moved)
	}
	assert.Empty(t, renderedNodes(f.mirror))
	moved, err := f.graph.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, moved)

	for range nodes {
		moved, err := f.graph.Redo(ctx)
		require.NoError(t, err)
		assert.True(t, moved)
	}
	assert.ElementsMatch(t, after, renderedNodes(f.mirror))
	moved, err = f.graph.Redo(ctx)
	require.NoError(t, err)
	assert.False(t, moved)

	steps, index, err := f.graph.HistoryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, steps, "replaying history records nothing")
	assert.Equal(t, 3, index)
}

func TestUndo_NewStepTruncatesRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.node(t, a, false)
	f.node(t, b, false)
	require.NoError(t, f.graph.ShowNode(ctx, a))
	require.NoError(t, f.graph.ShowNode(ctx, b))

	_, err := f.graph.Undo(ctx)
	require.NoError(t, err)
	require.NoError(t, f.graph.HideNode(ctx, a))

	steps, index, err := f.graph.HistoryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, steps)
	assert.Equal(t, 2, index)

	moved, err := f.graph.Redo(ctx)
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = f.graph.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, renderedNodes(f.mirror))
}

// ---------------------------------------------------------------------------
// Expansion
// ---------------------------------------------------------------------------

func TestLoadRelatedNodes_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.resolver.info[q42] = resolver.Info{URI: q42, Label: "Douglas Adams"}
	f.resolver.labels[p31] = "instance of"
	f.resolver.related[q42+" "+p31] = []resolver.Related{
		{Term: rdf.URI(q165), Label: "taxon", Direction: resolver.DirectionOut},
		{Term: rdf.URI(q5), Label: "human", Direction: resolver.DirectionOut},
	}

	_, err := f.graph.LoadNode(ctx, q42, true)
	require.NoError(t, err)

	related, err := f.graph.LoadRelatedNodes(ctx, q42, p31, graph.ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{q5, q165}, ids(related), "sorted by label")
	for _, n := range related {
		assert.True(t, n.Visible)
	}

	nodes, err := f.graph.Nodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	edges, err := f.graph.Edges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, "instance of", e.Label)
		assert.Equal(t, q42, e.From)
	}
	assert.Len(t, f.mirror.State().Edges, 2)

	subject, err := f.graph.Node(ctx, q42)
	require.NoError(t, err)
	require.Len(t, subject.Properties, 1)
	assert.True(t, subject.Properties[0].Fetched)
	assert.Equal(t, []string{q5, q165}, subject.Properties[0].Related)
	assert.True(t, f.events.has(notify.KindLoading, notify.StateRelated, 0))
}

func TestLoadRelatedNodes_FetchedPropertyShortCircuits(t *testing.T) {
	var requests atomic.Int32
	g, _ := newEndpointGraph(t, func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(relatedResults))
	}, func(c *config.Config) {
		c.Fetch.Related = false
		c.Fetch.Image = false
	})
	ctx := context.Background()

	first, err := g.LoadRelatedNodes(ctx, a, p, graph.ExpandOptions{})
	require.NoError(t, err)
	second, err := g.LoadRelatedNodes(ctx, a, p, graph.ExpandOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), requests.Load(), "one query for two expansions")
	assert.Equal(t, []string{b, c}, ids(first))
	assert.Equal(t, ids(first), ids(second))

	edges, err := g.Edges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, "links to", e.Label, "predicate label comes with the related nodes")
	}
	assert.Equal(t, c, edges[1].From, "incoming relations point at the subject")
	assert.Equal(t, a, edges[1].To)
}

func TestLoadRelatedNodes_PropertyLabelFallsBackToURI(t *testing.T) {
	f := newFixture(t)
	f.resolver.related[a+" "+p] = []resolver.Related{{Term: rdf.URI(b), Label: "B"}}

	_, err := f.graph.LoadRelatedNodes(context.Background(), a, p, graph.ExpandOptions{})
	require.NoError(t, err)

	edges, err := f.graph.Edges(context.Background())
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, p, edges[0].Label)
	assert.Zero(t, f.resolver.called("property_labels"))
}

func TestLoadRelatedNodes_VisibleNodesComeLast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.node(t, c, true)
	f.resolver.related[a+" "+p] = []resolver.Related{
		{Term: rdf.URI(b), Label: "B"},
		{Term: rdf.URI(c), Label: "Aardvark"},
	}

	related, err := f.graph.LoadRelatedNodes(ctx, a, p, graph.ExpandOptions{SkipRelations: true})
	require.NoError(t, err)
	assert.Equal(t, []string{b, c}, ids(related))
}

func TestLoadRelatedNodes_PlacesNewNodes(t *testing.T) {
	f := newFixture(t)
	f.resolver.related[a+" "+p] = []resolver.Related{{Term: rdf.URI(b), Label: "B"}}
	at := graph.Position{X: 12, Y: -3}

	related, err := f.graph.LoadRelatedNodes(context.Background(), a, p, graph.ExpandOptions{Position: &at, SkipRelations: true})
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, at, related[0].Position)

	pos, ok := f.mirror.Position(b)
	require.True(t, ok)
	assert.Equal(t, at, pos)
}

func TestLoadRelatedNodes_Hidden(t *testing.T) {
	f := newFixture(t)
	f.resolver.related[a+" "+p] = []resolver.Related{{Term: rdf.URI(b), Label: "B"}}

	related, err := f.graph.LoadRelatedNodes(context.Background(), a, p, graph.ExpandOptions{Hidden: true})
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.False(t, related[0].Visible)
	assert.Empty(t, renderedNodes(f.mirror))
}

func TestLoadRelatedNodes_HiddenKeepsPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed := graph.Position{X: 4, Y: 8}
	_, err := f.graph.FindOrCreateNode(ctx, graph.NodeSpec{ID: b, Position: &placed})
	require.NoError(t, err)
	f.resolver.related[a+" "+p] = []resolver.Related{{Term: rdf.URI(b), Label: "B"}}

	at := graph.Position{X: 100, Y: 100}
	_, err = f.graph.LoadRelatedNodes(ctx, a, p, graph.ExpandOptions{Hidden: true, Position: &at})
	require.NoError(t, err)

	node, err := f.graph.Node(ctx, b)
	require.NoError(t, err)
	assert.False(t, node.Visible)
	assert.Equal(t, placed, node.Position)
}

func TestLoadRelatedNodes_LiteralObjects(t *testing.T) {
	f := newFixture(t)
	f.resolver.related[a+" "+p] = []resolver.Related{
		{Term: rdf.LangLiteral("Douglas", "en"), Label: "Douglas"},
	}

	related, err := f.graph.LoadRelatedNodes(context.Background(), a, p, graph.ExpandOptions{})
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, graph.KindLiteral, related[0].Kind)
	assert.Equal(t, "en", related[0].Lang)
	assert.Equal(t, graph.ShapeBox, f.mirror.State().Nodes[0].Shape)
}

func TestLoadRelatedNodes_DetachedRelations(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Fetch.Related = true })
	ctx := context.Background()
	f.node(t, a, true)
	f.resolver.related[a+" "+p] = []resolver.Related{
		{Term: rdf.URI(b), Label: "B"},
		{Term: rdf.URI(c), Label: "C"},
	}
	f.relations.rels = []relations.Relation{
		{Subject: rdf.URI(b), Property: q, Object: rdf.URI(c), Label: "q-label"},
	}

	_, err := f.graph.LoadRelatedNodes(ctx, a, p, graph.ExpandOptions{})
	require.NoError(t, err)
	f.graph.Wait()

	require.Equal(t, 1, f.relations.calls())
	assert.Equal(t, []rdf.Term{rdf.URI(b), rdf.URI(c)}, f.relations.subjects[0])
	assert.Equal(t, []rdf.Term{rdf.URI(a), rdf.URI(b), rdf.URI(c)}, f.relations.objects[0])

	assert.Contains(t, renderedPairs(f.mirror), [2]string{b, c})
	node, err := f.graph.Node(ctx, b)
	require.NoError(t, err)
	require.Len(t, node.Properties, 2)
	assert.Equal(t, "q-label", node.Properties[1].Label)
	assert.Equal(t, []string{c}, node.Properties[1].Related)
}

func TestLoadRelations_HiddenEndpointDoesNotResync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.node(t, a, true)
	f.node(t, b, true)
	f.node(t, d, false)
	require.NoError(t, f.graph.UpdateData(ctx, true))
	seq := f.mirror.State().Seq

	f.relations.rels = []relations.Relation{{Subject: rdf.URI(b), Property: q, Object: rdf.URI(d)}}
	created, err := f.graph.LoadRelations(ctx, []string{b}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, seq, f.mirror.State().Seq)

	f.relations.rels = []relations.Relation{{Subject: rdf.URI(a), Property: q, Object: rdf.URI(b)}}
	created, err = f.graph.LoadRelations(ctx, []string{a}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Greater(t, f.mirror.State().Seq, seq)
	assert.Contains(t, renderedPairs(f.mirror), [2]string{a, b})
}

func TestLoadRelatedNodes_DetachedImages(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Fetch.Image = true })
	f.resolver.related[a+" "+p] = []resolver.Related{
		{Term: rdf.URI(b), Label: "B"},
		{Term: rdf.LangLiteral("x", "en"), Label: "x"},
	}
	f.resolver.images[b] = "http://img.example.org/b.jpg"

	_, err := f.graph.LoadRelatedNodes(context.Background(), a, p, graph.ExpandOptions{})
	require.NoError(t, err)
	f.graph.Wait()

	var found bool
	for _, n := range f.mirror.State().Nodes {
		if n.ID == b {
			found = true
			assert.Equal(t, graph.ShapeImage, n.Shape)
			assert.Equal(t, "http://img.example.org/b.jpg", n.Image)
		}
	}
	assert.True(t, found)
}

func TestLoadRelatedNodes_EndpointFailureLeavesGraphUnchanged(t *testing.T) {
	g, events := newEndpointGraph(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	ctx := context.Background()
	related, err := g.LoadRelatedNodes(ctx, a, p, graph.ExpandOptions{})
	require.NoError(t, err)
	assert.Empty(t, related)

	nodes, err := g.Nodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.True(t, events.has(notify.KindError, "", 0), "failures reach the graph's notifier")
}

// ---------------------------------------------------------------------------
// Loading nodes
// ---------------------------------------------------------------------------

func TestLoadNode_Literal(t *testing.T) {
	f := newFixture(t)
	n, err := f.graph.LoadNode(context.Background(), "42", true)
	require.NoError(t, err)
	assert.Equal(t, graph.KindLiteral, n.Kind)
	assert.True(t, n.Visible)
	assert.Zero(t, f.resolver.called("info"))
	assert.Equal(t, []string{"42"}, renderedNodes(f.mirror))
}

func TestLoadNode_URI(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Fetch.Image = true })
	f.resolver.info[q42] = resolver.Info{URI: q42, Label: "Douglas Adams", Description: "English writer", Type: "human"}
	f.resolver.images[q42] = "http://img.example.org/adams.jpg"

	n, err := f.graph.LoadNode(context.Background(), q42, true)
	require.NoError(t, err)
	assert.Equal(t, "Douglas Adams", n.Label)
	assert.Equal(t, "English writer", n.Description)
	assert.Equal(t, "human", n.Type)
	assert.Equal(t, graph.ShapeImage, n.Shape())
	assert.Equal(t, 1, f.resolver.called("image"))
}

func TestLoadNode_RevealsHiddenNode(t *testing.T) {
	f := newFixture(t)
	f.node(t, a, false)
	n, err := f.graph.LoadNode(context.Background(), a, true)
	require.NoError(t, err)
	assert.True(t, n.Visible)
	assert.Equal(t, []string{a}, renderedNodes(f.mirror))
}

func TestLoadNodes_BatchesLookups(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Fetch.Image = true })
	f.resolver.labels[a] = "Alpha"
	f.resolver.images[b] = "http://img.example.org/b.jpg"

	nodes, err := f.graph.LoadNodes(context.Background(), []string{a, b, "plain"}, true)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "Alpha", nodes[0].Label)
	assert.Equal(t, "http://img.example.org/b.jpg", nodes[1].Image)
	assert.Equal(t, graph.KindLiteral, nodes[2].Kind)
	assert.Equal(t, 1, f.resolver.called("labels"))
	assert.Equal(t, 1, f.resolver.called("images"))
	assert.Len(t, renderedNodes(f.mirror), 3)

	steps, _, err := f.graph.HistoryState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, steps, "one sync for the whole batch")
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func TestGetProperties_LoadsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.resolver.properties[a] = []resolver.Property{{URI: p, Label: "knows", InCount: 1, OutCount: 2}}

	var progress []int
	n, err := f.graph.GetProperties(ctx, a, func(pct int) { progress = append(progress, pct) })
	require.NoError(t, err)
	assert.True(t, n.Fetched)
	require.Len(t, n.Properties, 1)
	assert.Equal(t, graph.Property{URI: p, Label: "knows", InCount: 1, OutCount: 2}, n.Properties[0])
	assert.Equal(t, []int{50, 100}, progress)
	assert.True(t, f.events.has(notify.KindLoading, notify.StateProperties, 100))

	_, err = f.graph.GetProperties(ctx, a, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.resolver.called("properties"))
}

func TestLoadProperties_KeepsExpansionState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.resolver.related[a+" "+p] = []resolver.Related{{Term: rdf.URI(b), Label: "B"}}
	f.resolver.properties[a] = []resolver.Property{{URI: p, Label: "knows", OutCount: 1}}

	_, err := f.graph.LoadRelatedNodes(ctx, a, p, graph.ExpandOptions{SkipRelations: true})
	require.NoError(t, err)
	n, err := f.graph.LoadProperties(ctx, a, nil)
	require.NoError(t, err)
	require.Len(t, n.Properties, 1)
	assert.True(t, n.Properties[0].Fetched)
	assert.Equal(t, []string{b}, n.Properties[0].Related)
	assert.Equal(t, 1, n.Properties[0].OutCount)
}

func TestLoadProperties_EmptyLeavesGraphUnchanged(t *testing.T) {
	f := newFixture(t)
	n, err := f.graph.LoadProperties(context.Background(), a, nil)
	require.NoError(t, err)
	assert.False(t, n.Fetched)
	nodes, err := f.graph.Nodes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

// ---------------------------------------------------------------------------
// Locking
// ---------------------------------------------------------------------------

func TestToggleNodeLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.node(t, a, true)
	require.NoError(t, f.graph.UpdateData(ctx, true))

	at := graph.Position{X: 3, Y: 4}
	n, err := f.graph.ToggleNodeLock(ctx, a, &at)
	require.NoError(t, err)
	assert.True(t, n.Fixed)
	assert.Equal(t, at, n.Position)
	assert.True(t, f.mirror.State().Nodes[0].Fixed)

	n, err = f.graph.ToggleNodeLock(ctx, a, nil)
	require.NoError(t, err)
	assert.False(t, n.Fixed)
	assert.Equal(t, at, n.Position)

	_, err = f.graph.ToggleNodeLock(ctx, b, nil)
	assert.True(t, sigilerr.IsNotFound(err))
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

func chain(t *testing.T, f *fixture) {
	t.Helper()
	for _, id := range []string{a, b, c, d} {
		f.node(t, id, true)
	}
	f.edge(t, a, p, b, "")
	f.edge(t, b, p, c, "")
	f.edge(t, c, p, d, "")
	require.NoError(t, f.graph.UpdateData(context.Background(), true))
}

func viewNodes(m *view.Mirror) map[string]graph.ViewNode {
	out := map[string]graph.ViewNode{}
	for _, n := range m.State().Nodes {
		out[n.ID] = n
	}
	return out
}

func TestFilters_HighlightWithinRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chain(t, f)

	_, err := f.graph.AddFilter(ctx, graph.NodeFilter{Node: a, Range: 1, Color: "#ff0000", Active: true})
	require.NoError(t, err)

	nodes := viewNodes(f.mirror)
	assert.Equal(t, "#ff0000", nodes[a].Color)
	assert.Equal(t, "#ff0000", nodes[b].Color)
	assert.True(t, nodes[c].Hidden)
	assert.True(t, nodes[d].Hidden)
	for _, e := range f.mirror.State().Edges {
		assert.Equal(t, e.From != a, e.Hidden, "edge %s-%s", e.From, e.To)
	}

	all, err := f.graph.Nodes(ctx)
	require.NoError(t, err)
	for _, n := range all {
		assert.True(t, n.Visible, "filters never change visibility")
	}

	_, err = f.graph.AddFilter(ctx, graph.NodeFilter{Node: d, Range: 2, Color: "#0000ff", Active: true})
	require.NoError(t, err)
	nodes = viewNodes(f.mirror)
	assert.Equal(t, "#7f007f", nodes[b].Color, "overlapping filters blend")
	assert.Equal(t, "#0000ff", nodes[c].Color)
	assert.False(t, nodes[c].Hidden)

	removed, err := f.graph.RemoveFilter(ctx, a)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.graph.RemoveFilter(ctx, d)
	require.NoError(t, err)
	assert.True(t, removed)
	for id, n := range viewNodes(f.mirror) {
		assert.Empty(t, n.Color, id)
		assert.False(t, n.Hidden, id)
	}
}

func TestFilters_InactiveAndDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chain(t, f)

	added, err := f.graph.AddFilter(ctx, graph.NodeFilter{Node: b, Range: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, added.Range)
	assert.Equal(t, "#f59e0b", added.Color)
	for _, n := range viewNodes(f.mirror) {
		assert.Empty(t, n.Color, "inactive filters have no effect")
	}

	_, err = f.graph.AddFilter(ctx, graph.NodeFilter{Node: b, Range: 0, Color: "#00ff00", Active: true})
	require.NoError(t, err)
	filters, err := f.graph.Filters(ctx)
	require.NoError(t, err)
	assert.Len(t, filters, 1, "one filter per node")
	nodes := viewNodes(f.mirror)
	assert.Equal(t, "#00ff00", nodes[b].Color)
	assert.True(t, nodes[a].Hidden)

	_, err = f.graph.AddFilter(ctx, graph.NodeFilter{Node: b, Color: "red"})
	assert.True(t, sigilerr.IsInvalidInput(err))
	_, err = f.graph.AddFilter(ctx, graph.NodeFilter{Node: ex + "missing"})
	assert.True(t, sigilerr.IsNotFound(err))
}

func TestBlendColors(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"#ff0000"}, "#ff0000"},
		{[]string{"#fff", "#000000"}, "#7f7f7f"},
		{[]string{"#ff0000", "bogus"}, "#ff0000"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, graph.BlendColors(tt.in), "%v", tt.in)
	}
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chain(t, f)
	require.NoError(t, f.graph.HideNode(ctx, d))
	_, err := f.graph.AddFilter(ctx, graph.NodeFilter{Node: a, Range: 1, Color: "#ff0000"})
	require.NoError(t, err)
	f.mirror.SetPosition(a, graph.Position{X: 7, Y: 8})

	snap, err := f.graph.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	assert.Equal(t, graph.Position{X: 7, Y: 8}, snap.Nodes[0].Position)

	g := newFixture(t)
	require.NoError(t, g.graph.Restore(ctx, snap))
	assert.Equal(t, renderedNodes(f.mirror), renderedNodes(g.mirror))
	assert.ElementsMatch(t, renderedPairs(f.mirror), renderedPairs(g.mirror))

	steps, index, err := g.graph.HistoryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(snap.History), steps)
	assert.Equal(t, snap.HistoryIndex, index)

	moved, err := g.graph.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Contains(t, renderedNodes(g.mirror), d)
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name string
		snap graph.Snapshot
	}{
		{"dangling edge", graph.Snapshot{Nodes: []graph.Node{{ID: a}}, Edges: []graph.Edge{{From: a, To: b}}}},
		{"duplicate node", graph.Snapshot{Nodes: []graph.Node{{ID: a}, {ID: a}}}},
		{"filter on missing node", graph.Snapshot{Filters: []graph.NodeFilter{{Node: a}}}},
		{"history index", graph.Snapshot{HistoryIndex: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			require.Error(t, err)
			assert.True(t, sigilerr.HasCode(err, sigilerr.CodeGraphRequestInvalid))
		})
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestGraph_LoopRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.graph.RunOnLoopForTest(ctx, func() { panic("boom") })
	require.Error(t, err)
	assert.True(t, sigilerr.HasCode(err, sigilerr.CodeGraphLoopFailure))

	_, err = f.graph.Nodes(ctx)
	assert.NoError(t, err)
}

func TestGraph_ClosedRejectsWork(t *testing.T) {
	f := newFixture(t)
	f.graph.Close()
	_, err := f.graph.Nodes(context.Background())
	require.Error(t, err)
	assert.True(t, sigilerr.HasCode(err, sigilerr.CodeGraphLoopClosed))
}

func TestGraph_CloseReleasesConcurrentCallers(t *testing.T) {
	for range 50 {
		f := newFixture(t)
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.graph.Nodes(context.Background())
				if err != nil {
					assert.True(t, sigilerr.HasCode(err, sigilerr.CodeGraphLoopClosed))
				}
			}()
		}
		f.graph.Close()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("callers still blocked after Close")
		}
	}
}

func TestGraph_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.graph.Nodes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := graph.New(graph.Options{})
	require.Error(t, err)
	assert.True(t, sigilerr.HasCode(err, sigilerr.CodeGraphRequestInvalid))
}
