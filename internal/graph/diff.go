// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"github.com/sigil-dev/graphscope/internal/notify"
)

// updateData reconciles the renderer with the visible subset of the graph.
//
// A node is drawn iff it is visible. An edge is drawn iff both of its
// endpoints are visible; edges carry no visibility of their own. The diff
// is taken against the renderer's current id sets, so repeating a sync
// whose state already matches is a no-op. Additions are applied before
// removals and edges are removed before their nodes.
func (g *Graph) updateData(visible, isHistory bool) {
	cfg := g.cfg.Current()

	rendered := toSet(g.renderer.NodeIDs())
	var addNodes []ViewNode
	wantNodes := make(map[string]bool)
	var added []string
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if !n.Visible {
			continue
		}
		wantNodes[id] = true
		if !rendered[id] {
			addNodes = append(addNodes, n.view())
			added = append(added, id)
		}
	}
	var removed []string
	for _, id := range g.renderer.NodeIDs() {
		if !wantNodes[id] {
			removed = append(removed, id)
		}
	}

	renderedEdges := toSet(g.renderer.EdgeIDs())
	var addEdges, relabel []ViewEdge
	wantEdges := make(map[string]bool)
	for _, id := range g.edgeOrder {
		e := g.edges[id]
		if g.applyEdgeLabel(e, cfg.View.HideEdgeLabels) && renderedEdges[id] {
			relabel = append(relabel, e.view())
		}
		if !g.edgeVisible(e) {
			continue
		}
		wantEdges[id] = true
		if !renderedEdges[id] {
			addEdges = append(addEdges, e.view())
		}
	}
	var removedEdges []string
	for _, id := range g.renderer.EdgeIDs() {
		if !wantEdges[id] {
			removedEdges = append(removedEdges, id)
		}
	}

	if len(addNodes) > 0 {
		g.renderer.AddNodes(addNodes...)
	}
	if len(addEdges) > 0 {
		g.renderer.AddEdges(addEdges...)
	}
	if len(relabel) > 0 {
		g.renderer.UpdateEdges(relabel...)
	}
	if len(removedEdges) > 0 {
		g.renderer.RemoveEdges(removedEdges...)
	}
	if len(removed) > 0 {
		g.renderer.RemoveNodes(removed...)
	}

	structural := len(added) > 0 || len(removed) > 0 || len(addEdges) > 0 || len(removedEdges) > 0
	if !isHistory && (len(added) > 0 || len(removed) > 0) {
		g.pushHistory(added, removed)
	}
	if structural && visible && !cfg.View.Animations {
		g.notifier.Notify(notify.Loading(notify.StateStabilizing, 0))
		g.renderer.Stabilize()
	}
	g.refreshFilters()
}

// applyEdgeLabel blanks or restores the display label of e and reports
// whether it changed.
func (g *Graph) applyEdgeLabel(e *Edge, hide bool) bool {
	want := e.HiddenLabel
	if hide {
		want = ""
	}
	if e.Label == want {
		return false
	}
	e.Label = want
	return true
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
