// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/session"
	"github.com/sigil-dev/graphscope/pkg/health"
)

func (s *Server) registerSystemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Endpoint health and session count",
		Tags:        []string{"system"},
	}, s.handleStatus)

	s.router.Get("/metrics", s.handleMetrics)
}

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create a session",
		Description:   "Starts an empty graph, loading and revealing the root when one is given.",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List sessions",
		Tags:        []string{"sessions"},
	}, s.handleListSessions)

	huma.Register(s.api, huma.Operation{
		OperationID: "close-session",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Close a session",
		Tags:        []string{"sessions"},
	}, s.handleCloseSession)
}

// --- Request/Response types for huma ---

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

// StatusBody reports the server and endpoint state.
type StatusBody struct {
	Status   string          `json:"status" example:"ok"`
	Version  string          `json:"version"`
	Sessions int             `json:"sessions"`
	Endpoint *health.Metrics `json:"endpoint,omitempty"`
}

type statusOutput struct {
	Body StatusBody
}

// SessionSummary describes a live session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Root         string    `json:"root,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Nodes        int       `json:"nodes"`
	Edges        int       `json:"edges"`
	HistorySteps int       `json:"history_steps"`
	HistoryIndex int       `json:"history_index"`
}

type createSessionInput struct {
	Body struct {
		Name string `json:"name,omitempty" maxLength:"200" doc:"Display name"`
		Root string `json:"root,omitempty" maxLength:"2048" doc:"URI or literal loaded as the root node"`
	}
}

type sessionOutput struct {
	Body SessionSummary
}

type listSessionsOutput struct {
	Body struct {
		Sessions []SessionSummary `json:"sessions"`
	}
}

type sessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type closeSessionOutput struct {
	Body struct {
		Status string `json:"status" example:"closed"`
	}
}

// --- Handlers ---

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Version = s.cfg.Version
	out.Body.Sessions = s.svc.Sessions.Count()
	if s.svc.Endpoint != nil {
		h := s.svc.Endpoint.Health()
		out.Body.Endpoint = &h
		if !h.Available {
			out.Body.Status = "degraded"
		}
	}
	return out, nil
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.svc.Metrics == nil {
		http.Error(w, `{"error":"metrics not configured"}`, http.StatusServiceUnavailable)
		return
	}
	s.svc.Metrics.ServeHTTP(w, r)
}

func (s *Server) summarize(ctx context.Context, sess *session.Session) (SessionSummary, error) {
	nodes, err := sess.Graph.Nodes(ctx)
	if err != nil {
		return SessionSummary{}, err
	}
	edges, err := sess.Graph.Edges(ctx)
	if err != nil {
		return SessionSummary{}, err
	}
	steps, index, err := sess.Graph.HistoryState(ctx)
	if err != nil {
		return SessionSummary{}, err
	}
	return SessionSummary{
		ID:           sess.ID,
		Name:         sess.Name,
		Root:         sess.Root,
		CreatedAt:    sess.CreatedAt,
		Nodes:        len(nodes),
		Edges:        len(edges),
		HistorySteps: steps,
		HistoryIndex: index,
	}, nil
}

func (s *Server) handleCreateSession(ctx context.Context, input *createSessionInput) (*sessionOutput, error) {
	sess, err := s.svc.Sessions.Create(ctx, session.CreateOptions{Name: input.Body.Name, Root: input.Body.Root})
	if err != nil {
		return nil, s.apiError("creating session", err)
	}
	summary, err := s.summarize(ctx, sess)
	if err != nil {
		return nil, s.apiError("creating session", err)
	}
	return &sessionOutput{Body: summary}, nil
}

func (s *Server) handleListSessions(ctx context.Context, _ *struct{}) (*listSessionsOutput, error) {
	out := &listSessionsOutput{}
	out.Body.Sessions = []SessionSummary{}
	for _, sess := range s.svc.Sessions.List() {
		summary, err := s.summarize(ctx, sess)
		if err != nil {
			// Closed between List and summarize.
			continue
		}
		out.Body.Sessions = append(out.Body.Sessions, summary)
	}
	return out, nil
}

func (s *Server) handleCloseSession(_ context.Context, input *sessionIDInput) (*closeSessionOutput, error) {
	if err := s.svc.Sessions.Close(input.ID); err != nil {
		return nil, s.apiError("closing session", err)
	}
	out := &closeSessionOutput{}
	out.Body.Status = "closed"
	return out, nil
}

// graphFor returns the graph of the session named in the path.
func (s *Server) graphFor(id string) (*graph.Graph, error) {
	sess, err := s.svc.Sessions.Get(id)
	if err != nil {
		return nil, s.apiError("finding session", err)
	}
	return sess.Graph, nil
}
