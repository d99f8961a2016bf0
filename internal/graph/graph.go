// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package graph holds the authoritative node and edge collections of one
// exploration and keeps a Renderer in sync with their visible subset.
//
// All graph state is owned by a single event loop. Exported methods submit
// work to it and return copies; SPARQL lookups run off the loop and merge
// their results back onto it.
package graph

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/notify"
	"github.com/sigil-dev/graphscope/internal/relations"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/sparql"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
)

// Resolver is the entity lookup surface the graph needs.
type Resolver interface {
	FetchInfo(ctx context.Context, uri string) resolver.Info
	FetchLabels(ctx context.Context, uris []string) map[string]string
	FetchPropertyLabels(ctx context.Context, uris []string) map[string]string
	FetchImage(ctx context.Context, uri string) (string, bool)
	FetchImages(ctx context.Context, uris []string) map[string]string
	FetchProperties(ctx context.Context, subject rdf.Term, progress resolver.ProgressFunc) []resolver.Property
	FetchRelatedNodes(ctx context.Context, subject rdf.Term, property string) []resolver.Related
}

// RelationFetcher discovers edges between node sets.
type RelationFetcher interface {
	FetchMultipleRelations(ctx context.Context, subjects, objects []rdf.Term) []relations.Relation
}

// Options configures a Graph.
type Options struct {
	ID        string
	Config    config.Source
	Resolver  Resolver
	Relations RelationFetcher
	Renderer  Renderer
	Notifier  notify.Notifier
	Logger    *slog.Logger
}

// Graph is one exploration: its nodes, edges, filters and history.
type Graph struct {
	id        string
	cfg       config.Source
	resolver  Resolver
	relations RelationFetcher
	renderer  Renderer
	notifier  notify.Notifier
	logger    *slog.Logger

	loop *loop

	// Detached continuations.
	bg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc

	// Owned by the loop.
	nodes        map[string]*Node
	nodeOrder    []string
	edges        map[string]*Edge
	edgeOrder    []string
	filters      map[string]*NodeFilter
	filterOrder  []string
	history      []Step
	historyIndex int
}

// New creates a Graph and starts its event loop.
func New(opts Options) (*Graph, error) {
	switch {
	case opts.Config == nil:
		return nil, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "graph requires a config source")
	case opts.Resolver == nil:
		return nil, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "graph requires a resolver")
	case opts.Relations == nil:
		return nil, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "graph requires a relation fetcher")
	case opts.Renderer == nil:
		return nil, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "graph requires a renderer")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop
	}

	g := &Graph{
		id:        opts.ID,
		cfg:       opts.Config,
		resolver:  opts.Resolver,
		relations: opts.Relations,
		renderer:  opts.Renderer,
		notifier:  notifier,
		logger:    logger.With("graph_id", opts.ID),
		nodes:     make(map[string]*Node),
		edges:     make(map[string]*Edge),
		filters:   make(map[string]*NodeFilter),
	}
	g.bgCtx, g.bgCancel = context.WithCancel(sparql.WithNotifier(context.Background(), notifier))
	g.loop = newLoop(opts.ID, g.logger)
	return g, nil
}

// ID returns the graph's identifier.
func (g *Graph) ID() string { return g.id }

// Wait blocks until every detached continuation started so far has
// finished, including its merge.
func (g *Graph) Wait() { g.bg.Wait() }

// Close cancels detached continuations and stops the event loop.
func (g *Graph) Close() {
	g.bgCancel()
	g.loop.close()
	g.bg.Wait()
}

// do runs fn on the loop.
func (g *Graph) do(ctx context.Context, fn func() error) error {
	return g.loop.submit(ctx, func(context.Context) error { return fn() })
}

// queryContext routes query failures of a call to the graph's notifier.
func (g *Graph) queryContext(ctx context.Context) context.Context {
	return sparql.WithNotifier(ctx, g.notifier)
}

// detach runs fn in the background. It is only called from the loop.
func (g *Graph) detach(name string, fn func(ctx context.Context) error) {
	if g.bgCtx.Err() != nil {
		return
	}
	g.bg.Add(1)
	go func() {
		defer g.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("detached continuation panic recovered",
					"continuation", name,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		if err := fn(g.bgCtx); err != nil && g.bgCtx.Err() == nil {
			g.logger.Warn("detached continuation failed", "continuation", name, "error", err)
		}
	}()
}

func (g *Graph) nodeNotFound(id string) error {
	return sigilerr.New(sigilerr.CodeGraphNodeNotFound, "node not found", sigilerr.FieldURI(id))
}

// FindOrCreateNode returns the node with spec.ID, merging spec into it, or
// creates it. It never fails on its own; errors come from a closed graph
// or a done ctx.
func (g *Graph) FindOrCreateNode(ctx context.Context, spec NodeSpec) (Node, error) {
	if spec.ID == "" {
		return Node{}, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "node id is required")
	}
	var out Node
	err := g.do(ctx, func() error {
		n, _ := g.findOrCreateNode(spec)
		out = n.clone()
		return nil
	})
	return out, err
}

// CreateEdge adds an edge and reports whether it was new. An existing edge
// for the same unordered triple is reused.
func (g *Graph) CreateEdge(ctx context.Context, from, property, to, label string) (bool, error) {
	var created bool
	err := g.do(ctx, func() error {
		_, created = g.createEdge(from, property, to, label)
		return nil
	})
	return created, err
}

// Node returns a copy of the node with id.
func (g *Graph) Node(ctx context.Context, id string) (Node, error) {
	var out Node
	err := g.do(ctx, func() error {
		n, ok := g.nodes[id]
		if !ok {
			return g.nodeNotFound(id)
		}
		out = n.clone()
		return nil
	})
	return out, err
}

// Nodes returns copies of every node in insertion order.
func (g *Graph) Nodes(ctx context.Context) ([]Node, error) {
	var out []Node
	err := g.do(ctx, func() error {
		out = g.nodeCopies(g.nodeOrder)
		return nil
	})
	return out, err
}

// Edges returns copies of every edge in insertion order.
func (g *Graph) Edges(ctx context.Context) ([]Edge, error) {
	var out []Edge
	err := g.do(ctx, func() error {
		out = make([]Edge, 0, len(g.edgeOrder))
		for _, id := range g.edgeOrder {
			out = append(out, *g.edges[id])
		}
		return nil
	})
	return out, err
}

func (g *Graph) nodeCopies(ids []string) []Node {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n.clone())
		}
	}
	return out
}

// ShowNode reveals a node and syncs the renderer.
func (g *Graph) ShowNode(ctx context.Context, id string) error {
	return g.setVisible(ctx, []string{id}, true)
}

// HideNode hides a node and syncs the renderer. The node stays in the graph.
func (g *Graph) HideNode(ctx context.Context, id string) error {
	return g.setVisible(ctx, []string{id}, false)
}

// ShowNodes reveals several nodes with a single sync.
func (g *Graph) ShowNodes(ctx context.Context, ids []string) error {
	return g.setVisible(ctx, ids, true)
}

// HideNodes hides several nodes with a single sync.
func (g *Graph) HideNodes(ctx context.Context, ids []string) error {
	return g.setVisible(ctx, ids, false)
}

func (g *Graph) setVisible(ctx context.Context, ids []string, visible bool) error {
	return g.do(ctx, func() error {
		for _, id := range ids {
			if _, ok := g.nodes[id]; !ok {
				return g.nodeNotFound(id)
			}
		}
		for _, id := range ids {
			g.nodes[id].Visible = visible
		}
		g.updateData(true, false)
		return nil
	})
}

// ToggleNodeLock pins or unpins a node. A non-nil position is recorded
// as its new location.
func (g *Graph) ToggleNodeLock(ctx context.Context, id string, position *Position) (Node, error) {
	var out Node
	err := g.do(ctx, func() error {
		n, ok := g.nodes[id]
		if !ok {
			return g.nodeNotFound(id)
		}
		n.Fixed = !n.Fixed
		if position != nil {
			n.Position = *position
		}
		if n.Visible {
			g.renderer.UpdateNodes(n.view())
		}
		out = n.clone()
		return nil
	})
	return out, err
}

// UpdateNode records a position reported by the renderer.
func (g *Graph) UpdateNode(ctx context.Context, id string, position Position) error {
	return g.do(ctx, func() error {
		n, ok := g.nodes[id]
		if !ok {
			return g.nodeNotFound(id)
		}
		n.Position = position
		if n.Visible {
			g.renderer.UpdateNodes(n.view())
		}
		return nil
	})
}

// UpdateData syncs the renderer with the visible subset of the graph.
func (g *Graph) UpdateData(ctx context.Context, visible bool) error {
	return g.do(ctx, func() error {
		g.updateData(visible, false)
		return nil
	})
}
