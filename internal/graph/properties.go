// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"

	"github.com/sigil-dev/graphscope/internal/notify"
	"github.com/sigil-dev/graphscope/internal/resolver"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// GetProperties returns the node uri with its property list, loading the
// list first unless it was already fetched.
func (g *Graph) GetProperties(ctx context.Context, uri string, progress resolver.ProgressFunc) (Node, error) {
	var (
		out Node
		hit bool
	)
	err := g.do(ctx, func() error {
		if n, ok := g.nodes[uri]; ok && n.Fetched {
			out, hit = n.clone(), true
		}
		return nil
	})
	if err != nil || hit {
		return out, err
	}
	return g.LoadProperties(ctx, uri, progress)
}

// LoadProperties fetches the property list of uri with in and out counts
// and merges it into the node. Progress is reported to progress and to
// the graph's notifier. Properties already on the node keep their fetched
// state and related nodes. An empty result leaves the graph untouched.
func (g *Graph) LoadProperties(ctx context.Context, uri string, progress resolver.ProgressFunc) (Node, error) {
	if uri == "" {
		return Node{}, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "node uri is required")
	}

	spec := subjectSpec(uri)
	subject := (&Node{ID: spec.ID, Kind: spec.Kind}).Term()
	err := g.do(ctx, func() error {
		if n, ok := g.nodes[uri]; ok {
			subject = n.Term()
		}
		return nil
	})
	if err != nil {
		return Node{}, err
	}

	report := func(pct int) {
		g.notifier.Notify(loadingEvent(notify.StateProperties, pct, uri))
		if progress != nil {
			progress(pct)
		}
	}
	props := g.resolver.FetchProperties(g.queryContext(ctx), subject, report)

	var out Node
	err = g.do(ctx, func() error {
		n, ok := g.nodes[uri]
		if !ok && len(props) == 0 {
			out = Node{ID: spec.ID, Label: spec.Label, Kind: spec.Kind, TempVisible: true}
			return nil
		}
		if !ok {
			n, _ = g.findOrCreateNode(spec)
		}
		for _, p := range props {
			existing := n.attachProperty(p.URI, p.Label)
			existing.InCount = p.InCount
			existing.OutCount = p.OutCount
		}
		if len(props) > 0 {
			n.Fetched = true
		}
		out = n.clone()
		return nil
	})
	return out, err
}
