// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// AddFilter highlights the nodes within f.Range hops of f.Node. A
// negative range or empty colour takes the view defaults. Adding a filter
// for a node that already has one replaces it.
func (g *Graph) AddFilter(ctx context.Context, f NodeFilter) (NodeFilter, error) {
	if f.Node == "" {
		return NodeFilter{}, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "filter node is required")
	}
	view := g.cfg.Current().View
	if f.Range < 0 {
		f.Range = view.FilterRange
	}
	if f.Color == "" {
		f.Color = view.FilterColor
	}
	if _, ok := parseColor(f.Color); !ok {
		return NodeFilter{}, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "filter colour must be #rgb or #rrggbb",
			sigilerr.Field("color", f.Color))
	}

	err := g.do(ctx, func() error {
		if _, ok := g.nodes[f.Node]; !ok {
			return g.nodeNotFound(f.Node)
		}
		if _, ok := g.filters[f.Node]; !ok {
			g.filterOrder = append(g.filterOrder, f.Node)
		}
		stored := f
		g.filters[f.Node] = &stored
		g.refreshFilters()
		return nil
	})
	return f, err
}

// RemoveFilter drops the filter on node, if any.
func (g *Graph) RemoveFilter(ctx context.Context, node string) (bool, error) {
	var removed bool
	err := g.do(ctx, func() error {
		if _, ok := g.filters[node]; !ok {
			return nil
		}
		delete(g.filters, node)
		g.filterOrder = slices.DeleteFunc(g.filterOrder, func(id string) bool { return id == node })
		g.refreshFilters()
		removed = true
		return nil
	})
	return removed, err
}

// Filters returns every filter in the order they were added.
func (g *Graph) Filters(ctx context.Context) ([]NodeFilter, error) {
	var out []NodeFilter
	err := g.do(ctx, func() error {
		out = g.filterCopies()
		return nil
	})
	return out, err
}

func (g *Graph) filterCopies() []NodeFilter {
	out := make([]NodeFilter, 0, len(g.filterOrder))
	for _, id := range g.filterOrder {
		out = append(out, *g.filters[id])
	}
	return out
}

// RefreshFilters recomputes filter highlights against the current render.
func (g *Graph) RefreshFilters(ctx context.Context) error {
	return g.do(ctx, func() error {
		g.refreshFilters()
		return nil
	})
}

// refreshFilters recomputes colours and temp_visible bits. With no active
// filter every node and edge is shown uncoloured. Otherwise nodes within
// range of an active filter are shown in the blend of the colours that
// reach them and every other node is hidden until the filters change.
// Only temp_visible and colours change; visible is never touched.
func (g *Graph) refreshFilters() {
	reached := make(map[string][]string)
	effective := 0
	rendered := toSet(g.renderer.NodeIDs())
	for _, id := range g.filterOrder {
		f := g.filters[id]
		if !f.Active || !rendered[f.Node] {
			continue
		}
		effective++
		for _, n := range g.withinRange(f.Node, f.Range) {
			reached[n] = append(reached[n], f.Color)
		}
	}

	var nodeUpdates []ViewNode
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		color, temp := "", true
		if effective > 0 {
			colors, ok := reached[id]
			temp = ok
			if ok {
				color = blendColors(colors)
			}
		}
		if n.Color == color && n.TempVisible == temp {
			continue
		}
		n.Color, n.TempVisible = color, temp
		if rendered[id] {
			nodeUpdates = append(nodeUpdates, n.view())
		}
	}

	renderedEdges := toSet(g.renderer.EdgeIDs())
	var edgeUpdates []ViewEdge
	for _, id := range g.edgeOrder {
		e := g.edges[id]
		from, to := g.nodes[e.From], g.nodes[e.To]
		if from == nil || to == nil {
			continue
		}
		temp := from.TempVisible && to.TempVisible
		color := ""
		if effective > 0 && from.Color != "" && to.Color != "" {
			color = blendColors([]string{from.Color, to.Color})
		}
		if e.Color == color && e.TempVisible == temp {
			continue
		}
		e.Color, e.TempVisible = color, temp
		if renderedEdges[id] {
			edgeUpdates = append(edgeUpdates, e.view())
		}
	}

	if len(nodeUpdates) > 0 {
		g.renderer.UpdateNodes(nodeUpdates...)
	}
	if len(edgeUpdates) > 0 {
		g.renderer.UpdateEdges(edgeUpdates...)
	}
}

// withinRange walks the rendered graph breadth first from root and
// returns every node at most hops away, root included.
func (g *Graph) withinRange(root string, hops int) []string {
	seen := map[string]bool{root: true}
	out := []string{root}
	frontier := []string{root}
	for range max(hops, 0) {
		var next []string
		for _, id := range frontier {
			for _, n := range g.renderer.ConnectedNodes(id) {
				if seen[n] {
					continue
				}
				seen[n] = true
				out = append(out, n)
				next = append(next, n)
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return out
}

type rgb struct{ r, g, b int }

func parseColor(s string) (rgb, bool) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return rgb{}, false
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, true
}

// blendColors averages colours channel by channel. Unparseable colours
// are skipped.
func blendColors(colors []string) string {
	var sum rgb
	n := 0
	for _, c := range colors {
		v, ok := parseColor(c)
		if !ok {
			continue
		}
		sum.r += v.r
		sum.g += v.g
		sum.b += v.b
		n++
	}
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("#%02x%02x%02x", sum.r/n, sum.g/n, sum.b/n)
}
