// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"slices"

	"github.com/sigil-dev/graphscope/pkg/rdf"
)

// NodeKind is the RDF term kind a node stands for.
type NodeKind string

const (
	KindURI     NodeKind = "uri"
	KindLiteral NodeKind = "literal"
)

// Position is a point on the render canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one entity or literal value in the graph. Its ID is the URI, or
// the lexical value for literals, and is unique within a graph.
type Node struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type,omitempty"`
	Kind        NodeKind   `json:"kind"`
	Datatype    string     `json:"datatype,omitempty"`
	Lang        string     `json:"lang,omitempty"`
	Image       string     `json:"image,omitempty"`
	Color       string     `json:"color,omitempty"`
	Visible     bool       `json:"visible"`
	TempVisible bool       `json:"temp_visible"`
	Fetched     bool       `json:"fetched"`
	Fixed       bool       `json:"fixed"`
	Position    Position   `json:"position"`
	Properties  []Property `json:"properties,omitempty"`
}

// Term returns the RDF term the node stands for.
func (n *Node) Term() rdf.Term {
	if n.Kind == KindLiteral {
		return rdf.Term{Kind: rdf.KindLiteral, Value: n.ID, Datatype: n.Datatype, Lang: n.Lang}
	}
	return rdf.URI(n.ID)
}

// Shape is the render shape for the node.
func (n *Node) Shape() string {
	switch {
	case n.Image != "":
		return ShapeImage
	case n.Kind == KindLiteral:
		return ShapeBox
	default:
		return ShapeDot
	}
}

func (n *Node) property(uri string) *Property {
	for i := range n.Properties {
		if n.Properties[i].URI == uri {
			return &n.Properties[i]
		}
	}
	return nil
}

// attachProperty returns the node's property for uri, appending it first
// if the node does not have it yet.
func (n *Node) attachProperty(uri, label string) *Property {
	if p := n.property(uri); p != nil {
		if p.Label == "" || p.Label == p.URI {
			if label != "" {
				p.Label = label
			}
		}
		return p
	}
	if label == "" {
		label = uri
	}
	n.Properties = append(n.Properties, Property{URI: uri, Label: label})
	return &n.Properties[len(n.Properties)-1]
}

func (n *Node) view() ViewNode {
	return ViewNode{
		ID:     n.ID,
		Label:  n.Label,
		Title:  n.Description,
		Shape:  n.Shape(),
		Image:  n.Image,
		Color:  n.Color,
		X:      n.Position.X,
		Y:      n.Position.Y,
		Fixed:  n.Fixed,
		Hidden: !n.TempVisible,
		Kind:   n.Kind,
	}
}

func (n *Node) clone() Node {
	c := *n
	c.Properties = make([]Property, len(n.Properties))
	for i, p := range n.Properties {
		p.Related = slices.Clone(p.Related)
		c.Properties[i] = p
	}
	return c
}

// Property is a predicate attached to one subject node. Related holds the
// IDs of the nodes it connects to, resolved against the graph at use time.
type Property struct {
	URI      string   `json:"uri"`
	Label    string   `json:"label"`
	InCount  int      `json:"in_count"`
	OutCount int      `json:"out_count"`
	Fetched  bool     `json:"fetched"`
	Related  []string `json:"related,omitempty"`
}

func (p *Property) link(id string) {
	if !slices.Contains(p.Related, id) {
		p.Related = append(p.Related, id)
	}
}

// Edge is a predicate between two nodes. At most one edge exists per
// unordered (from, property, to) triple.
type Edge struct {
	ID            string `json:"id"`
	From          string `json:"from"`
	Property      string `json:"property"`
	To            string `json:"to"`
	Label         string `json:"label"`
	HiddenLabel   string `json:"hidden_label"`
	Bidirectional bool   `json:"bidirectional"`
	Color         string `json:"color,omitempty"`
	TempVisible   bool   `json:"temp_visible"`
}

func (e *Edge) view() ViewEdge {
	arrows := "to"
	if e.Bidirectional {
		arrows = "to,from"
	}
	return ViewEdge{
		ID:     e.ID,
		From:   e.From,
		To:     e.To,
		Label:  e.Label,
		Title:  e.HiddenLabel,
		Arrows: arrows,
		Color:  e.Color,
		Hidden: !e.TempVisible,
	}
}

// edgeID is the same for both orientations of a triple.
func edgeID(from, property, to string) string {
	if to < from {
		from, to = to, from
	}
	return from + " " + property + " " + to
}

// NodeFilter highlights every node within Range hops of Node.
type NodeFilter struct {
	Node   string `json:"node"`
	Range  int    `json:"range"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

// StepEntry sets the visibility of a group of nodes.
type StepEntry struct {
	Nodes   []string `json:"nodes"`
	Visible bool     `json:"visible"`
}

// Step is one undoable visibility change.
type Step struct {
	Entries []StepEntry `json:"entries"`
}

func (s Step) clone() Step {
	entries := make([]StepEntry, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = StepEntry{Nodes: slices.Clone(e.Nodes), Visible: e.Visible}
	}
	return Step{Entries: entries}
}

// NodeSpec describes a node to find or create.
type NodeSpec struct {
	ID          string
	Label       string
	Description string
	Type        string
	Kind        NodeKind
	Datatype    string
	Lang        string
	Image       string
	Visible     bool
	Position    *Position
}

// SpecForTerm returns a NodeSpec carrying t's identity and kind.
func SpecForTerm(t rdf.Term, label string) NodeSpec {
	spec := NodeSpec{ID: t.Value, Label: label, Kind: KindURI}
	if t.IsLiteral() {
		spec.Kind = KindLiteral
		spec.Datatype = t.Datatype
		spec.Lang = t.Lang
	}
	return spec
}

// findOrCreateNode returns the node with spec.ID, merging in a strictly
// longer label or description, or creates it. A label equal to the ID is
// a fallback and never wins over a resolved one.
func (g *Graph) findOrCreateNode(spec NodeSpec) (*Node, bool) {
	if n, ok := g.nodes[spec.ID]; ok {
		if longerLabel(n.Label, spec.Label, n.ID) {
			n.Label = spec.Label
		}
		if len(spec.Description) > len(n.Description) {
			n.Description = spec.Description
		}
		if n.Type == "" {
			n.Type = spec.Type
		}
		if n.Image == "" {
			n.Image = spec.Image
		}
		return n, false
	}

	kind := spec.Kind
	if kind == "" {
		kind = KindURI
	}
	label := spec.Label
	if label == "" {
		label = spec.ID
	}
	n := &Node{
		ID:          spec.ID,
		Label:       label,
		Description: spec.Description,
		Type:        spec.Type,
		Kind:        kind,
		Datatype:    spec.Datatype,
		Lang:        spec.Lang,
		Image:       spec.Image,
		Visible:     spec.Visible,
		TempVisible: true,
	}
	if spec.Position != nil {
		n.Position = *spec.Position
	}
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	return n, true
}

func longerLabel(current, candidate, id string) bool {
	if candidate == "" || candidate == current {
		return false
	}
	if current == id {
		return true
	}
	if candidate == id {
		return false
	}
	return len(candidate) > len(current)
}

// createEdge adds an edge unless one already exists for the unordered
// triple. Creating the reverse orientation of an existing edge marks it
// bidirectional instead.
func (g *Graph) createEdge(from, property, to, label string) (*Edge, bool) {
	id := edgeID(from, property, to)
	if e, ok := g.edges[id]; ok {
		if !e.Bidirectional && e.From == to && e.To == from && from != to {
			e.Bidirectional = true
			if g.edgeVisible(e) {
				g.renderer.UpdateEdges(e.view())
			}
		}
		return e, false
	}

	if label == "" {
		label = property
	}
	e := &Edge{
		ID:          id,
		From:        from,
		Property:    property,
		To:          to,
		Label:       label,
		HiddenLabel: label,
		TempVisible: true,
	}
	if g.cfg.Current().View.HideEdgeLabels {
		e.Label = ""
	}
	g.edges[id] = e
	g.edgeOrder = append(g.edgeOrder, id)
	return e, true
}

// edgeVisible reports whether both endpoints of e are visible.
func (g *Graph) edgeVisible(e *Edge) bool {
	from, ok := g.nodes[e.From]
	if !ok || !from.Visible {
		return false
	}
	to, ok := g.nodes[e.To]
	return ok && to.Visible
}

// linkRelated records the edge on both endpoints' property lists.
func (g *Graph) linkRelated(from, property, to, label string) {
	if n, ok := g.nodes[from]; ok {
		n.attachProperty(property, label).link(to)
	}
	if n, ok := g.nodes[to]; ok {
		n.attachProperty(property, label).link(from)
	}
}
