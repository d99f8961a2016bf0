// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package view is the render side of graph synchronisation. Mirror keeps
// the rendered node and edge sets in memory and streams every change as a
// Patch; Bridge relays those patches to a browser render engine over a
// websocket and feeds drag positions back into the graph.
package view

import (
	"slices"
	"sync"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/graph"
)

// Op names a Patch operation.
type Op string

const (
	OpReset       Op = "reset"
	OpAddNodes    Op = "add_nodes"
	OpUpdateNodes Op = "update_nodes"
	OpRemoveNodes Op = "remove_nodes"
	OpAddEdges    Op = "add_edges"
	OpUpdateEdges Op = "update_edges"
	OpRemoveEdges Op = "remove_edges"
	OpStabilize   Op = "stabilize"
	OpRedraw      Op = "redraw"
)

// Options are the presentation settings a render engine applies globally.
type Options struct {
	HideEdgeLabels  bool `json:"hide_edge_labels"`
	SmoothEdges     bool `json:"smooth_edges"`
	HideEdgesOnDrag bool `json:"hide_edges_on_drag"`
	Animations      bool `json:"animations"`
}

// OptionsFrom extracts render options from a config snapshot.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		HideEdgeLabels:  cfg.View.HideEdgeLabels,
		SmoothEdges:     cfg.View.SmoothEdges,
		HideEdgesOnDrag: cfg.View.HideEdgesOnDrag,
		Animations:      cfg.View.Animations,
	}
}

// Patch is one change to the rendered view.
type Patch struct {
	Seq     uint64           `json:"seq"`
	Op      Op               `json:"op"`
	Nodes   []graph.ViewNode `json:"nodes,omitempty"`
	Edges   []graph.ViewEdge `json:"edges,omitempty"`
	IDs     []string         `json:"ids,omitempty"`
	Options *Options         `json:"options,omitempty"`
}

// State is the full rendered view at one sequence number.
type State struct {
	Seq   uint64           `json:"seq"`
	Nodes []graph.ViewNode `json:"nodes"`
	Edges []graph.ViewEdge `json:"edges"`
}

// Mirror is an in-memory graph.Renderer. It is safe for concurrent use.
type Mirror struct {
	mu        sync.RWMutex
	nodes     map[string]graph.ViewNode
	nodeOrder []string
	edges     map[string]graph.ViewEdge
	edgeOrder []string
	seq       uint64
	stabilize int

	subs   map[int]chan Patch
	nextID int
	buffer int
}

var _ graph.Renderer = (*Mirror)(nil)

// NewMirror returns an empty Mirror whose subscribers buffer up to buffer
// patches.
func NewMirror(buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 256
	}
	return &Mirror{
		nodes:  make(map[string]graph.ViewNode),
		edges:  make(map[string]graph.ViewEdge),
		subs:   make(map[int]chan Patch),
		buffer: buffer,
	}
}

// Subscribe returns the current state and a channel of every later patch,
// plus a cancel func that closes the channel. A subscriber that falls
// behind by more than the buffer is dropped and its channel closed.
func (m *Mirror) Subscribe() (State, <-chan Patch, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Patch, m.buffer)
	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	var once sync.Once
	return m.stateLocked(), ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// publishLocked must be called with m.mu held for writing.
func (m *Mirror) publishLocked(p Patch) {
	m.seq++
	p.Seq = m.seq
	for id, ch := range m.subs {
		select {
		case ch <- p:
		default:
			delete(m.subs, id)
			close(ch)
		}
	}
}

// State returns a copy of the rendered view.
func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Mirror) stateLocked() State {
	s := State{
		Seq:   m.seq,
		Nodes: make([]graph.ViewNode, 0, len(m.nodeOrder)),
		Edges: make([]graph.ViewEdge, 0, len(m.edgeOrder)),
	}
	for _, id := range m.nodeOrder {
		s.Nodes = append(s.Nodes, m.nodes[id])
	}
	for _, id := range m.edgeOrder {
		s.Edges = append(s.Edges, m.edges[id])
	}
	return s
}

// Stabilizations reports how many stabilisation passes were requested.
func (m *Mirror) Stabilizations() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stabilize
}

func (m *Mirror) AddNodes(nodes ...graph.ViewNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range nodes {
		if _, ok := m.nodes[n.ID]; !ok {
			m.nodeOrder = append(m.nodeOrder, n.ID)
		}
		m.nodes[n.ID] = n
	}
	m.publishLocked(Patch{Op: OpAddNodes, Nodes: nodes})
}

// UpdateNodes replaces rendered nodes. Nodes that are not rendered are
// ignored.
func (m *Mirror) UpdateNodes(nodes ...graph.ViewNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var applied []graph.ViewNode
	for _, n := range nodes {
		if _, ok := m.nodes[n.ID]; ok {
			m.nodes[n.ID] = n
			applied = append(applied, n)
		}
	}
	if len(applied) > 0 {
		m.publishLocked(Patch{Op: OpUpdateNodes, Nodes: applied})
	}
}

func (m *Mirror) RemoveNodes(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.nodes, id)
	}
	m.nodeOrder = slices.DeleteFunc(m.nodeOrder, func(id string) bool {
		_, ok := m.nodes[id]
		return !ok
	})
	m.publishLocked(Patch{Op: OpRemoveNodes, IDs: ids})
}

func (m *Mirror) AddEdges(edges ...graph.ViewEdge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range edges {
		if _, ok := m.edges[e.ID]; !ok {
			m.edgeOrder = append(m.edgeOrder, e.ID)
		}
		m.edges[e.ID] = e
	}
	m.publishLocked(Patch{Op: OpAddEdges, Edges: edges})
}

// UpdateEdges replaces rendered edges. Edges that are not rendered are
// ignored.
func (m *Mirror) UpdateEdges(edges ...graph.ViewEdge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var applied []graph.ViewEdge
	for _, e := range edges {
		if _, ok := m.edges[e.ID]; ok {
			m.edges[e.ID] = e
			applied = append(applied, e)
		}
	}
	if len(applied) > 0 {
		m.publishLocked(Patch{Op: OpUpdateEdges, Edges: applied})
	}
}

func (m *Mirror) RemoveEdges(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.edges, id)
	}
	m.edgeOrder = slices.DeleteFunc(m.edgeOrder, func(id string) bool {
		_, ok := m.edges[id]
		return !ok
	})
	m.publishLocked(Patch{Op: OpRemoveEdges, IDs: ids})
}

func (m *Mirror) NodeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.nodeOrder)
}

func (m *Mirror) EdgeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.edgeOrder)
}

func (m *Mirror) Position(id string) (graph.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return graph.Position{}, false
	}
	return graph.Position{X: n.X, Y: n.Y}, true
}

// Positions returns the positions of ids, or of every rendered node when
// ids is empty.
func (m *Mirror) Positions(ids ...string) map[string]graph.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(ids) == 0 {
		ids = m.nodeOrder
	}
	out := make(map[string]graph.Position, len(ids))
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok {
			out[id] = graph.Position{X: n.X, Y: n.Y}
		}
	}
	return out
}

// SetPosition records a position reported by the render engine. It does
// not publish a patch since the engine already drew it.
func (m *Mirror) SetPosition(id string, p graph.Position) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	n.X, n.Y = p.X, p.Y
	m.nodes[id] = n
	return true
}

// ConnectedNodes returns the rendered neighbours of id in edge order.
func (m *Mirror) ConnectedNodes(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, eid := range m.edgeOrder {
		e := m.edges[eid]
		var other string
		switch id {
		case e.From:
			other = e.To
		case e.To:
			other = e.From
		default:
			continue
		}
		if _, ok := m.nodes[other]; ok && !slices.Contains(out, other) {
			out = append(out, other)
		}
	}
	return out
}

// ConnectedEdges returns the ids of rendered edges touching id.
func (m *Mirror) ConnectedEdges(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, eid := range m.edgeOrder {
		e := m.edges[eid]
		if e.From == id || e.To == id {
			out = append(out, eid)
		}
	}
	return out
}

func (m *Mirror) Stabilize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stabilize++
	m.publishLocked(Patch{Op: OpStabilize})
}

func (m *Mirror) Redraw() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(Patch{Op: OpRedraw})
}
