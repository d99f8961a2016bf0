// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package session_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/relations"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/session"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = "http://www.wikidata.org/entity/Q42"

type stubResolver struct{}

func (stubResolver) FetchInfo(_ context.Context, uri string) resolver.Info {
	return resolver.Info{URI: uri, Label: "Douglas Adams"}
}

func (stubResolver) FetchLabels(_ context.Context, uris []string) map[string]string {
	out := map[string]string{}
	for _, u := range uris {
		out[u] = u
	}
	return out
}

func (s stubResolver) FetchPropertyLabels(ctx context.Context, uris []string) map[string]string {
	return s.FetchLabels(ctx, uris)
}

func (stubResolver) FetchImage(context.Context, string) (string, bool) { return "", false }

func (stubResolver) FetchImages(context.Context, []string) map[string]string { return nil }

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

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(session.Options{
		Config:    config.NewStatic(config.Default()),
		Resolver:  stubResolver{},
		Relations: stubRelations{},
	})
	require.NoError(t, err)
	t.Cleanup(m.CloseAll)
	return m
}

func TestManager_CreateWithRoot(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, session.CreateOptions{Name: "  adams ", Root: root})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "adams", s.Name)

	n, err := s.Graph.Node(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "Douglas Adams", n.Label)
	assert.True(t, n.Visible)
	assert.Equal(t, []string{root}, s.Mirror.NodeIDs())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestManager_CreateFromSnapshot(t *testing.T) {
	m := newManager(t)
	snap := graph.Snapshot{Nodes: []graph.Node{{ID: root, Label: "Douglas Adams", Kind: graph.KindURI, Visible: true, TempVisible: true}}}

	s, err := m.Create(context.Background(), session.CreateOptions{Snapshot: &snap})
	require.NoError(t, err)
	assert.Equal(t, []string{root}, s.Mirror.NodeIDs())
}

func TestManager_InvalidSnapshotIsRejected(t *testing.T) {
	m := newManager(t)
	snap := graph.Snapshot{Edges: []graph.Edge{{From: "x", To: "y"}}}

	_, err := m.Create(context.Background(), session.CreateOptions{Snapshot: &snap})
	require.Error(t, err)
	assert.Zero(t, m.Count())
}

func TestManager_ListAndClose(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, session.CreateOptions{})
	require.NoError(t, err)
	second, err := m.Create(ctx, session.CreateOptions{})
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	require.NoError(t, m.Close(first.ID))
	assert.Equal(t, 1, m.Count())

	_, err = first.Graph.Nodes(ctx)
	assert.True(t, sigilerr.HasCode(err, sigilerr.CodeGraphLoopClosed), "closing a session stops its graph")

	err = m.Close(first.ID)
	assert.True(t, sigilerr.IsNotFound(err))
	_, err = m.Get(first.ID)
	assert.True(t, sigilerr.IsNotFound(err))

	m.CloseAll()
	assert.Zero(t, m.Count())
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	_, err := session.NewManager(session.Options{})
	assert.True(t, sigilerr.HasCode(err, sigilerr.CodeSessionCreateFailure))
}
