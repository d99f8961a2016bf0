// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/view"
	"lukechampine.com/blake3"
)

func (s *Server) registerGraphRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "load-nodes",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/nodes",
		Summary:     "Load nodes",
		Tags:        []string{"graph"},
	}, s.handleLoadNodes)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-properties",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/properties",
		Summary:     "Get a node's properties",
		Tags:        []string{"graph"},
	}, s.handleGetProperties)

	huma.Register(s.api, huma.Operation{
		OperationID: "expand",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/expand",
		Summary:     "Expand a node along a property",
		Tags:        []string{"graph"},
	}, s.handleExpand)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-visibility",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/visibility",
		Summary:     "Show or hide nodes",
		Tags:        []string{"graph"},
	}, s.handleVisibility)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggle-lock",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/lock",
		Summary:     "Pin or unpin a node",
		Tags:        []string{"graph"},
	}, s.handleLock)

	huma.Register(s.api, huma.Operation{
		OperationID: "undo",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/undo",
		Summary:     "Undo the last visibility step",
		Tags:        []string{"graph"},
	}, s.handleUndo)

	huma.Register(s.api, huma.Operation{
		OperationID: "redo",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/redo",
		Summary:     "Redo the next visibility step",
		Tags:        []string{"graph"},
	}, s.handleRedo)

	huma.Register(s.api, huma.Operation{
		OperationID: "add-filter",
		Method:      http.MethodPut,
		Path:        "/api/v1/sessions/{id}/filters",
		Summary:     "Highlight a node's neighbourhood",
		Tags:        []string{"graph"},
	}, s.handleAddFilter)

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-filter",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sessions/{id}/filters",
		Summary:     "Remove a node filter",
		Tags:        []string{"graph"},
	}, s.handleRemoveFilter)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-graph",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/graph",
		Summary:     "Full graph model",
		Tags:        []string{"graph"},
	}, s.handleGraph)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-view",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/view",
		Summary:     "Rendered view",
		Tags:        []string{"graph"},
	}, s.handleView)
}

// --- Request/Response types for huma ---

type loadNodesInput struct {
	ID   string `path:"id"`
	Body struct {
		URIs   []string `json:"uris" minItems:"1" maxItems:"500" doc:"URIs or literals to load"`
		Hidden bool     `json:"hidden,omitempty" doc:"Merge without revealing"`
	}
}

type nodesOutput struct {
	Body struct {
		Nodes []graph.Node `json:"nodes"`
	}
}

type nodeOutput struct {
	Body graph.Node
}

type propertiesInput struct {
	ID      string `path:"id"`
	URI     string `query:"uri" required:"true" minLength:"1"`
	Refresh bool   `query:"refresh" doc:"Re-fetch even when already loaded"`
}

type expandInput struct {
	ID   string `path:"id"`
	Body struct {
		URI           string          `json:"uri" minLength:"1"`
		Property      string          `json:"property" minLength:"1"`
		Hidden        bool            `json:"hidden,omitempty"`
		Position      *graph.Position `json:"position,omitempty"`
		SkipRelations bool            `json:"skip_relations,omitempty"`
	}
}

type visibilityInput struct {
	ID   string `path:"id"`
	Body struct {
		URIs    []string `json:"uris" minItems:"1" maxItems:"1000"`
		Visible bool     `json:"visible"`
	}
}

type visibilityOutput struct {
	Body struct {
		Updated int `json:"updated"`
	}
}

type lockInput struct {
	ID   string `path:"id"`
	Body struct {
		URI      string          `json:"uri" minLength:"1"`
		Position *graph.Position `json:"position,omitempty"`
	}
}

type historyOutput struct {
	Body struct {
		Applied bool `json:"applied"`
		Steps   int  `json:"steps"`
		Index   int  `json:"index"`
	}
}

type addFilterInput struct {
	ID   string `path:"id"`
	Body struct {
		URI    string `json:"uri" minLength:"1"`
		Range  *int   `json:"range,omitempty" minimum:"0" doc:"Hop radius; defaults to view.filter_range"`
		Color  string `json:"color,omitempty" doc:"#rgb or #rrggbb; defaults to view.filter_color"`
		Active *bool  `json:"active,omitempty"`
	}
}

type filterOutput struct {
	Body graph.NodeFilter
}

type removeFilterInput struct {
	ID  string `path:"id"`
	URI string `query:"uri" required:"true" minLength:"1"`
}

type removeFilterOutput struct {
	Body struct {
		Removed bool `json:"removed"`
	}
}

type graphOutput struct {
	Body graph.Snapshot
}

type viewInput struct {
	ID          string `path:"id"`
	IfNoneMatch string `header:"If-None-Match"`
}

type viewOutput struct {
	ETag string `header:"ETag"`
	Body view.State
}

// --- Handlers ---

func (s *Server) handleLoadNodes(ctx context.Context, input *loadNodesInput) (*nodesOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	visible := !input.Body.Hidden

	out := &nodesOutput{}
	if len(input.Body.URIs) == 1 {
		n, err := g.LoadNode(ctx, input.Body.URIs[0], visible)
		if err != nil {
			return nil, s.apiError("loading node", err)
		}
		out.Body.Nodes = []graph.Node{n}
		return out, nil
	}
	nodes, err := g.LoadNodes(ctx, input.Body.URIs, visible)
	if err != nil {
		return nil, s.apiError("loading nodes", err)
	}
	out.Body.Nodes = nodes
	return out, nil
}

func (s *Server) handleGetProperties(ctx context.Context, input *propertiesInput) (*nodeOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	load := g.GetProperties
	if input.Refresh {
		load = g.LoadProperties
	}
	n, err := load(ctx, input.URI, nil)
	if err != nil {
		return nil, s.apiError("getting properties", err)
	}
	return &nodeOutput{Body: n}, nil
}

func (s *Server) handleExpand(ctx context.Context, input *expandInput) (*nodesOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	nodes, err := g.LoadRelatedNodes(ctx, input.Body.URI, input.Body.Property, graph.ExpandOptions{
		Hidden:        input.Body.Hidden,
		Position:      input.Body.Position,
		SkipRelations: input.Body.SkipRelations,
	})
	if err != nil {
		return nil, s.apiError("expanding node", err)
	}
	out := &nodesOutput{}
	out.Body.Nodes = nodes
	return out, nil
}

func (s *Server) handleVisibility(ctx context.Context, input *visibilityInput) (*visibilityOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	apply := g.HideNodes
	if input.Body.Visible {
		apply = g.ShowNodes
	}
	if err := apply(ctx, input.Body.URIs); err != nil {
		return nil, s.apiError("setting visibility", err)
	}
	out := &visibilityOutput{}
	out.Body.Updated = len(input.Body.URIs)
	return out, nil
}

func (s *Server) handleLock(ctx context.Context, input *lockInput) (*nodeOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	n, err := g.ToggleNodeLock(ctx, input.Body.URI, input.Body.Position)
	if err != nil {
		return nil, s.apiError("toggling lock", err)
	}
	return &nodeOutput{Body: n}, nil
}

func (s *Server) history(ctx context.Context, id string, step func(*graph.Graph, context.Context) (bool, error)) (*historyOutput, error) {
	g, err := s.graphFor(id)
	if err != nil {
		return nil, err
	}
	applied, err := step(g, ctx)
	if err != nil {
		return nil, s.apiError("applying history step", err)
	}
	steps, index, err := g.HistoryState(ctx)
	if err != nil {
		return nil, s.apiError("reading history", err)
	}
	out := &historyOutput{}
	out.Body.Applied = applied
	out.Body.Steps = steps
	out.Body.Index = index
	return out, nil
}

func (s *Server) handleUndo(ctx context.Context, input *sessionIDInput) (*historyOutput, error) {
	return s.history(ctx, input.ID, (*graph.Graph).Undo)
}

func (s *Server) handleRedo(ctx context.Context, input *sessionIDInput) (*historyOutput, error) {
	return s.history(ctx, input.ID, (*graph.Graph).Redo)
}

func (s *Server) handleAddFilter(ctx context.Context, input *addFilterInput) (*filterOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	f := graph.NodeFilter{Node: input.Body.URI, Range: -1, Color: input.Body.Color, Active: true}
	if input.Body.Range != nil {
		f.Range = *input.Body.Range
	}
	if input.Body.Active != nil {
		f.Active = *input.Body.Active
	}
	stored, err := g.AddFilter(ctx, f)
	if err != nil {
		return nil, s.apiError("adding filter", err)
	}
	return &filterOutput{Body: stored}, nil
}

func (s *Server) handleRemoveFilter(ctx context.Context, input *removeFilterInput) (*removeFilterOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	removed, err := g.RemoveFilter(ctx, input.URI)
	if err != nil {
		return nil, s.apiError("removing filter", err)
	}
	out := &removeFilterOutput{}
	out.Body.Removed = removed
	return out, nil
}

func (s *Server) handleGraph(ctx context.Context, input *sessionIDInput) (*graphOutput, error) {
	g, err := s.graphFor(input.ID)
	if err != nil {
		return nil, err
	}
	snap, err := g.Snapshot(ctx)
	if err != nil {
		return nil, s.apiError("reading graph", err)
	}
	return &graphOutput{Body: snap}, nil
}

func (s *Server) handleView(_ context.Context, input *viewInput) (*viewOutput, error) {
	sess, err := s.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, s.apiError("finding session", err)
	}
	state := sess.Mirror.State()
	etag, err := viewETag(state)
	if err != nil {
		return nil, s.apiError("hashing view", err)
	}
	if input.IfNoneMatch == etag {
		return nil, huma.Status304NotModified()
	}
	return &viewOutput{ETag: etag, Body: state}, nil
}

// viewETag hashes the rendered nodes and edges. The sequence number is left
// out so a no-op patch does not invalidate cached views.
func viewETag(state view.State) (string, error) {
	data, err := json.Marshal(struct {
		Nodes []graph.ViewNode `json:"nodes"`
		Edges []graph.ViewEdge `json:"edges"`
	}{state.Nodes, state.Edges})
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}
