// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"
	"slices"

	"github.com/sigil-dev/graphscope/internal/notify"
	"github.com/sigil-dev/graphscope/internal/resolver"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// LoadNode resolves uri and merges it into the graph. Literals are created
// directly without a query. For URIs the label, description and, when
// fetch.image is on, the image are fetched concurrently. With visible set
// the node is revealed and the renderer synced.
func (g *Graph) LoadNode(ctx context.Context, uri string, visible bool) (Node, error) {
	if uri == "" {
		return Node{}, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "node uri is required")
	}

	spec := NodeSpec{ID: uri, Label: uri, Kind: KindLiteral}
	if rdf.IsURI(uri) {
		spec = g.fetchNodeSpec(g.queryContext(ctx), uri)
	}
	spec.Visible = visible

	var out Node
	err := g.do(ctx, func() error {
		n, created := g.findOrCreateNode(spec)
		if visible && (created || !n.Visible) {
			n.Visible = true
			g.updateData(true, false)
		}
		out = n.clone()
		return nil
	})
	return out, err
}

func (g *Graph) fetchNodeSpec(ctx context.Context, uri string) NodeSpec {
	var (
		info  resolver.Info
		image string
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		info = g.resolver.FetchInfo(ctx, uri)
		return nil
	})
	if g.cfg.Current().Fetch.Image {
		eg.Go(func() error {
			image, _ = g.resolver.FetchImage(ctx, uri)
			return nil
		})
	}
	_ = eg.Wait()

	return NodeSpec{
		ID:          uri,
		Label:       info.Label,
		Description: info.Description,
		Type:        info.Type,
		Kind:        KindURI,
		Image:       image,
	}
}

// LoadNodes loads several nodes with one batched label lookup and, when
// fetch.image is on, one batched image lookup, then syncs once.
func (g *Graph) LoadNodes(ctx context.Context, uris []string, visible bool) ([]Node, error) {
	var iris []string
	for _, u := range uris {
		if rdf.IsURI(u) && !slices.Contains(iris, u) {
			iris = append(iris, u)
		}
	}

	qctx := g.queryContext(ctx)
	var labels, images map[string]string
	eg, ectx := errgroup.WithContext(qctx)
	eg.Go(func() error {
		labels = g.resolver.FetchLabels(ectx, iris)
		return nil
	})
	if g.cfg.Current().Fetch.Image {
		eg.Go(func() error {
			images = g.resolver.FetchImages(ectx, iris)
			return nil
		})
	}
	_ = eg.Wait()

	var out []Node
	err := g.do(ctx, func() error {
		changed := false
		ids := make([]string, 0, len(uris))
		for _, u := range uris {
			if u == "" {
				continue
			}
			spec := NodeSpec{ID: u, Label: u, Kind: KindLiteral, Visible: visible}
			if rdf.IsURI(u) {
				spec = NodeSpec{ID: u, Label: labels[u], Kind: KindURI, Image: images[u], Visible: visible}
			}
			n, created := g.findOrCreateNode(spec)
			if visible && (created || !n.Visible) {
				n.Visible = true
				changed = true
			}
			ids = append(ids, n.ID)
		}
		if changed {
			g.updateData(true, false)
		}
		out = g.nodeCopies(ids)
		return nil
	})
	return out, err
}

// ExpandOptions tunes LoadRelatedNodes. The zero value reveals related
// nodes at the subject's position and starts relation discovery.
type ExpandOptions struct {
	// Hidden merges related nodes without revealing them.
	Hidden bool
	// Position is where newly revealed nodes are placed.
	Position *Position
	// SkipRelations disables relation discovery for this expansion.
	SkipRelations bool
}

// LoadRelatedNodes expands property on the node uri.
//
// A property that was already fetched returns its cached related nodes
// without a query. Otherwise the related nodes are fetched, sorted by
// label, merged and linked to the subject, and the property is marked
// fetched. An empty result leaves the graph untouched. Nodes that were not
// visible before come first in the result, followed by those that already
// were. The renderer is synced before returning. Relation discovery and
// image lookups for the new nodes run detached and merge their results
// when they arrive.
func (g *Graph) LoadRelatedNodes(ctx context.Context, uri, property string, opts ExpandOptions) ([]Node, error) {
	if uri == "" || property == "" {
		return nil, sigilerr.New(sigilerr.CodeGraphRequestInvalid, "uri and property are required")
	}

	var (
		cached  []Node
		hit     bool
		subject rdf.Term
		label   string
	)
	err := g.do(ctx, func() error {
		n, ok := g.nodes[uri]
		if !ok {
			spec := subjectSpec(uri)
			subject = (&Node{ID: spec.ID, Kind: spec.Kind}).Term()
			return nil
		}
		subject = n.Term()
		if p := n.property(property); p != nil {
			label = p.Label
			if p.Fetched {
				cached, hit = g.nodeCopies(p.Related), true
			}
		}
		return nil
	})
	if err != nil || hit {
		return cached, err
	}

	g.notifier.Notify(loadingEvent(notify.StateRelated, 0, uri))
	defer g.notifier.Notify(loadingEvent(notify.StateIdle, 100, uri))

	related := g.resolver.FetchRelatedNodes(g.queryContext(ctx), subject, property)
	sortRelated(related, g.cfg.Current().Endpoint.Lang)

	if len(related) == 0 {
		return []Node{}, nil
	}
	if label == "" || label == property {
		label = relatedPropertyLabel(related, property)
	}

	var out []Node
	err = g.do(ctx, func() error {
		subjectNode, _ := g.findOrCreateNode(subjectSpec(uri))
		if p := subjectNode.property(property); p != nil && p.Fetched {
			out = g.nodeCopies(p.Related)
			return nil
		}
		subjectNode.attachProperty(property, label)

		pos := subjectNode.Position
		if rp, ok := g.renderer.Position(subjectNode.ID); ok {
			pos = rp
		}
		if opts.Position != nil {
			pos = *opts.Position
		}

		var revealed, existing []string
		for _, r := range related {
			spec := SpecForTerm(r.Term, r.Label)
			n, _ := g.findOrCreateNode(spec)
			if n.Visible {
				existing = append(existing, n.ID)
			} else {
				if !opts.Hidden {
					n.Position = pos
					n.Visible = true
				}
				revealed = append(revealed, n.ID)
			}
			if r.Direction == resolver.DirectionIn {
				g.createEdge(n.ID, property, subjectNode.ID, label)
			} else {
				g.createEdge(subjectNode.ID, property, n.ID, label)
			}
			g.linkRelated(subjectNode.ID, property, n.ID, label)
		}
		order := append(slices.Clone(revealed), existing...)
		p := subjectNode.property(property)
		p.Related = append(slices.Clone(order), slices.DeleteFunc(p.Related, func(id string) bool {
			return slices.Contains(order, id)
		})...)
		p.Fetched = true

		g.updateData(!opts.Hidden, false)

		cfg := g.cfg.Current()
		if len(revealed) > 0 && !opts.SkipRelations && cfg.Fetch.Related {
			g.startRelations(revealed, !opts.Hidden)
		}
		if len(revealed) > 0 && cfg.Fetch.Image {
			g.startImages(revealed)
		}

		out = g.nodeCopies(order)
		return nil
	})
	return out, err
}

// relatedPropertyLabel returns the first predicate label bound alongside
// the related nodes, falling back to the predicate URI itself.
func relatedPropertyLabel(related []resolver.Related, property string) string {
	for _, r := range related {
		if r.PropertyLabel != "" {
			return r.PropertyLabel
		}
	}
	return property
}

func subjectSpec(uri string) NodeSpec {
	if rdf.IsURI(uri) {
		return NodeSpec{ID: uri, Label: uri, Kind: KindURI}
	}
	return NodeSpec{ID: uri, Label: uri, Kind: KindLiteral}
}

// sortRelated orders related nodes by label using the collation rules of
// lang.
func sortRelated(related []resolver.Related, lang string) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	c := collate.New(tag)
	slices.SortStableFunc(related, func(a, b resolver.Related) int {
		return c.CompareString(a.Label, b.Label)
	})
}

// startRelations discovers relations between ids and every node in the
// graph in the background.
func (g *Graph) startRelations(ids []string, visible bool) {
	ids = slices.Clone(ids)
	g.detach("relations", func(ctx context.Context) error {
		_, err := g.LoadRelations(ctx, ids, visible)
		return err
	})
}

// startImages looks up images for ids in the background and patches the
// nodes in place.
func (g *Graph) startImages(ids []string) {
	var uris []string
	for _, id := range ids {
		if g.nodes[id].Kind == KindURI {
			uris = append(uris, id)
		}
	}
	if len(uris) == 0 {
		return
	}
	g.detach("images", func(ctx context.Context) error {
		images := g.resolver.FetchImages(ctx, uris)
		if len(images) == 0 {
			return nil
		}
		return g.do(ctx, func() error {
			g.patchImages(images)
			return nil
		})
	})
}

func (g *Graph) patchImages(images map[string]string) {
	var patched []ViewNode
	for _, id := range g.nodeOrder {
		url, ok := images[id]
		if !ok || url == "" {
			continue
		}
		n := g.nodes[id]
		n.Image = url
		if n.Visible {
			patched = append(patched, n.view())
		}
	}
	if len(patched) > 0 {
		g.renderer.UpdateNodes(patched...)
	}
}

// LoadRelations finds relations between the nodes ids and every node in
// the graph, then merges the edges and property links. The renderer is
// synced again only when a new edge joins two visible nodes. It returns
// the number of edges created.
func (g *Graph) LoadRelations(ctx context.Context, ids []string, visible bool) (int, error) {
	var subjects, objects []rdf.Term
	err := g.do(ctx, func() error {
		for _, id := range ids {
			if n, ok := g.nodes[id]; ok {
				subjects = append(subjects, n.Term())
			}
		}
		for _, id := range g.nodeOrder {
			objects = append(objects, g.nodes[id].Term())
		}
		return nil
	})
	if err != nil || len(subjects) == 0 {
		return 0, err
	}

	g.notifier.Notify(notify.Loading(notify.StateRelations, 0))
	rels := g.relations.FetchMultipleRelations(g.queryContext(ctx), subjects, objects)
	g.notifier.Notify(notify.Loading(notify.StateRelations, 100))
	if len(rels) == 0 {
		return 0, nil
	}

	var created int
	err = g.do(ctx, func() error {
		material := false
		for _, rel := range rels {
			from, ok1 := g.nodes[rel.Subject.Value]
			to, ok2 := g.nodes[rel.Object.Value]
			if !ok1 || !ok2 {
				continue
			}
			e, isNew := g.createEdge(from.ID, rel.Property, to.ID, rel.Label)
			g.linkRelated(from.ID, rel.Property, to.ID, rel.Label)
			if isNew {
				created++
				if g.edgeVisible(e) {
					material = true
				}
			}
		}
		if material {
			g.updateData(visible, false)
		}
		return nil
	})
	return created, err
}

func loadingEvent(state string, progress int, uri string) notify.Event {
	e := notify.Loading(state, progress)
	e.URI = uri
	return e
}
