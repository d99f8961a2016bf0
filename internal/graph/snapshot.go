// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"

	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// Snapshot is a self-contained copy of a graph's state.
type Snapshot struct {
	Nodes        []Node       `json:"nodes"`
	Edges        []Edge       `json:"edges"`
	Filters      []NodeFilter `json:"filters,omitempty"`
	History      []Step       `json:"history,omitempty"`
	HistoryIndex int          `json:"history_index"`
}

// Validate checks that every edge, filter and history cursor refers to
// something in the snapshot.
func (s Snapshot) Validate() error {
	ids := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return sigilerr.New(sigilerr.CodeGraphRequestInvalid, "snapshot node without id")
		}
		if ids[n.ID] {
			return sigilerr.New(sigilerr.CodeGraphRequestInvalid, "duplicate snapshot node", sigilerr.FieldURI(n.ID))
		}
		ids[n.ID] = true
	}
	for _, e := range s.Edges {
		if !ids[e.From] || !ids[e.To] {
			return sigilerr.New(sigilerr.CodeGraphRequestInvalid, "snapshot edge has a missing endpoint",
				sigilerr.Field("edge", e.ID))
		}
	}
	for _, f := range s.Filters {
		if !ids[f.Node] {
			return sigilerr.New(sigilerr.CodeGraphRequestInvalid, "snapshot filter on a missing node", sigilerr.FieldURI(f.Node))
		}
	}
	if s.HistoryIndex < 0 || s.HistoryIndex > len(s.History) {
		return sigilerr.New(sigilerr.CodeGraphRequestInvalid, "snapshot history index out of range",
			sigilerr.Field("history_index", s.HistoryIndex))
	}
	return nil
}

// Snapshot copies the graph's state, first pulling current node positions
// from the renderer.
func (g *Graph) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := g.do(ctx, func() error {
		g.syncPositions()
		out.Nodes = g.nodeCopies(g.nodeOrder)
		out.Edges = make([]Edge, 0, len(g.edgeOrder))
		for _, id := range g.edgeOrder {
			out.Edges = append(out.Edges, *g.edges[id])
		}
		out.Filters = g.filterCopies()
		out.History = make([]Step, len(g.history))
		for i, s := range g.history {
			out.History[i] = s.clone()
		}
		out.HistoryIndex = g.historyIndex
		return nil
	})
	return out, err
}

func (g *Graph) syncPositions() {
	positions := g.renderer.Positions(g.renderer.NodeIDs()...)
	for id, p := range positions {
		if n, ok := g.nodes[id]; ok {
			n.Position = p
		}
	}
}

// Restore replaces the graph's state with s and redraws it. Edge ids are
// recomputed so a snapshot from any source dedupes the same way.
func (g *Graph) Restore(ctx context.Context, s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return g.do(ctx, func() error {
		if ids := g.renderer.EdgeIDs(); len(ids) > 0 {
			g.renderer.RemoveEdges(ids...)
		}
		if ids := g.renderer.NodeIDs(); len(ids) > 0 {
			g.renderer.RemoveNodes(ids...)
		}

		g.nodes = make(map[string]*Node, len(s.Nodes))
		g.nodeOrder = make([]string, 0, len(s.Nodes))
		for _, n := range s.Nodes {
			c := n.clone()
			g.nodes[c.ID] = &c
			g.nodeOrder = append(g.nodeOrder, c.ID)
		}

		g.edges = make(map[string]*Edge, len(s.Edges))
		g.edgeOrder = make([]string, 0, len(s.Edges))
		for _, e := range s.Edges {
			e.ID = edgeID(e.From, e.Property, e.To)
			if _, ok := g.edges[e.ID]; ok {
				continue
			}
			if e.HiddenLabel == "" {
				e.HiddenLabel = e.Label
			}
			g.edges[e.ID] = &e
			g.edgeOrder = append(g.edgeOrder, e.ID)
		}

		g.filters = make(map[string]*NodeFilter, len(s.Filters))
		g.filterOrder = g.filterOrder[:0]
		for _, f := range s.Filters {
			if _, ok := g.filters[f.Node]; !ok {
				g.filterOrder = append(g.filterOrder, f.Node)
			}
			g.filters[f.Node] = &f
		}

		g.history = make([]Step, len(s.History))
		for i, step := range s.History {
			g.history[i] = step.clone()
		}
		g.historyIndex = s.HistoryIndex

		g.updateData(true, true)
		return nil
	})
}
