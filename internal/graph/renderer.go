// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

// Node shapes understood by the render engine.
const (
	ShapeDot   = "dot"
	ShapeBox   = "box"
	ShapeImage = "circularImage"
)

// ViewNode is the render engine's disposable copy of a visible node.
type ViewNode struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Title  string   `json:"title,omitempty"`
	Shape  string   `json:"shape"`
	Image  string   `json:"image,omitempty"`
	Color  string   `json:"color,omitempty"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Fixed  bool     `json:"fixed"`
	Hidden bool     `json:"hidden"`
	Kind   NodeKind `json:"kind"`
}

// ViewEdge is the render engine's disposable copy of a visible edge.
type ViewEdge struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Label  string `json:"label"`
	Title  string `json:"title,omitempty"`
	Arrows string `json:"arrows"`
	Color  string `json:"color,omitempty"`
	Hidden bool   `json:"hidden"`
}

// Renderer is the only surface through which the graph touches the visual
// layer. The graph calls it from its event loop only.
type Renderer interface {
	AddNodes(nodes ...ViewNode)
	UpdateNodes(nodes ...ViewNode)
	RemoveNodes(ids ...string)
	AddEdges(edges ...ViewEdge)
	UpdateEdges(edges ...ViewEdge)
	RemoveEdges(ids ...string)

	NodeIDs() []string
	EdgeIDs() []string
	Position(id string) (Position, bool)
	Positions(ids ...string) map[string]Position
	ConnectedNodes(id string) []string
	ConnectedEdges(id string) []string

	Stabilize()
	Redraw()
}
