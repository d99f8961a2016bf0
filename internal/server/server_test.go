// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/relations"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/server"
	"github.com/sigil-dev/graphscope/internal/session"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/health"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adams = "http://www.wikidata.org/entity/Q42"
	human = "http://www.wikidata.org/entity/Q5"
	p31   = "http://www.wikidata.org/prop/direct/P31"
)

type fakeResolver struct{}

var labels = map[string]string{adams: "Douglas Adams", human: "human", p31: "instance of"}

func (fakeResolver) FetchInfo(_ context.Context, uri string) resolver.Info {
	return resolver.Info{URI: uri, Label: labels[uri]}
}

func (fakeResolver) FetchLabels(_ context.Context, uris []string) map[string]string {
	out := map[string]string{}
	for _, u := range uris {
		if l, ok := labels[u]; ok {
			out[u] = l
		}
	}
	return out
}

func (r fakeResolver) FetchPropertyLabels(ctx context.Context, uris []string) map[string]string {
	return r.FetchLabels(ctx, uris)
}

func (fakeResolver) FetchImage(context.Context, string) (string, bool) { return "", false }

func (fakeResolver) FetchImages(context.Context, []string) map[string]string { return nil }

func (fakeResolver) FetchProperties(_ context.Context, subject rdf.Term, progress resolver.ProgressFunc) []resolver.Property {
	if progress != nil {
		progress(100)
	}
	if subject.Value != adams {
		return nil
	}
	return []resolver.Property{{URI: p31, Label: "instance of", OutCount: 1}}
}

func (fakeResolver) FetchRelatedNodes(_ context.Context, subject rdf.Term, property string) []resolver.Related {
	if subject.Value != adams || property != p31 {
		return nil
	}
	return []resolver.Related{{Term: rdf.URI(human), Label: "human", Direction: resolver.DirectionOut}}
}

type noRelations struct{}

func (noRelations) FetchMultipleRelations(context.Context, []rdf.Term, []rdf.Term) []relations.Relation {
	return nil
}

type fakeEndpoint struct{ available bool }

func (e fakeEndpoint) Health() health.Metrics {
	return health.Metrics{Endpoint: "https://query.example.org/sparql", Available: e.available}
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Fetch.Image = false
	m, err := session.NewManager(session.Options{
		Config:    config.NewStatic(cfg),
		Resolver:  fakeResolver{},
		Relations: noRelations{},
	})
	require.NoError(t, err)
	t.Cleanup(m.CloseAll)
	return m
}

func newServer(t *testing.T, svc server.Services) *server.Server {
	t.Helper()
	if svc.Sessions == nil {
		svc.Sessions = newManager(t)
	}
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func call(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	manager := newManager(t)
	tests := []struct {
		name string
		cfg  server.Config
		svc  server.Services
	}{
		{name: "empty listen address", cfg: server.Config{}, svc: server.Services{Sessions: manager}},
		{name: "missing sessions", cfg: server.Config{ListenAddr: "127.0.0.1:0"}},
		{
			name: "invalid rate limit",
			cfg:  server.Config{ListenAddr: "127.0.0.1:0", RateLimit: server.RateLimitConfig{RequestsPerSecond: 1}},
			svc:  server.Services{Sessions: manager},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.New(tt.cfg, tt.svc)
			require.Error(t, err)
			assert.True(t, sigilerr.HasCode(err, sigilerr.CodeServerConfigInvalid))
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Networking.CORSOrigins = []string{"http://localhost:3000"}
	cfg.Networking.RateLimit.MaxStreams = 3

	got := server.ConfigFrom(cfg, "1.2.3")
	assert.Equal(t, cfg.Networking.Listen, got.ListenAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, got.CORSOrigins)
	assert.Equal(t, 3, got.RateLimit.MaxStreams)
	assert.Equal(t, "1.2.3", got.Version)
}

// ---------------------------------------------------------------------------
// System routes
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	srv := newServer(t, server.Services{})
	w := call(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestOpenAPI_ListsRoutes(t *testing.T) {
	srv := newServer(t, server.Services{})
	w := call(t, srv.Handler(), http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	doc := decode[struct {
		Paths map[string]any `json:"paths"`
	}](t, w)
	for _, path := range []string{
		"/api/v1/sessions",
		"/api/v1/sessions/{id}/expand",
		"/api/v1/sessions/{id}/view",
		"/api/v1/sessions/{id}/events",
		"/api/v1/sessions/{id}/ws",
		"/api/v1/snapshots",
		"/api/v1/properties",
	} {
		assert.Contains(t, doc.Paths, path)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		endpoint server.EndpointStatus
		want     string
	}{
		{name: "no endpoint", want: "ok"},
		{name: "healthy endpoint", endpoint: fakeEndpoint{available: true}, want: "ok"},
		{name: "cooling endpoint", endpoint: fakeEndpoint{available: false}, want: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, server.Services{Endpoint: tt.endpoint})
			w := call(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil)
			require.Equal(t, http.StatusOK, w.Code)

			body := decode[server.StatusBody](t, w)
			assert.Equal(t, tt.want, body.Status)
			assert.Equal(t, "dev", body.Version)
			assert.Equal(t, tt.endpoint != nil, body.Endpoint != nil)
		})
	}
}

func TestMetrics(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv := newServer(t, server.Services{})
		w := call(t, srv.Handler(), http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("configured", func(t *testing.T) {
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("graphscope_sparql_queries_total 3\n"))
		})
		srv := newServer(t, server.Services{Metrics: metrics})
		w := call(t, srv.Handler(), http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "graphscope_sparql_queries_total")
	})
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func createSession(t *testing.T, h http.Handler, root string) server.SessionSummary {
	t.Helper()
	w := call(t, h, http.MethodPost, "/api/v1/sessions", map[string]string{"name": "adams", "root": root})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[server.SessionSummary](t, w)
}

func TestSessions_Lifecycle(t *testing.T) {
	srv := newServer(t, server.Services{})
	h := srv.Handler()

	created := createSession(t, h, adams)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "adams", created.Name)
	assert.Equal(t, adams, created.Root)
	assert.Equal(t, 1, created.Nodes)

	w := call(t, h, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Sessions []server.SessionSummary `json:"sessions"`
	}](t, w)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, created.ID, list.Sessions[0].ID)

	w = call(t, h, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = call(t, h, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, h, http.MethodGet, "/api/v1/sessions", nil)
	assert.JSONEq(t, `{"sessions":[]}`, w.Body.String())
}

func TestSessions_UnknownSession(t *testing.T) {
	srv := newServer(t, server.Services{})
	h := srv.Handler()

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/sessions/missing/graph", nil},
		{http.MethodGet, "/api/v1/sessions/missing/view", nil},
		{http.MethodPost, "/api/v1/sessions/missing/undo", nil},
		{http.MethodPost, "/api/v1/sessions/missing/nodes", map[string]any{"uris": []string{adams}}},
		{http.MethodGet, "/api/v1/sessions/missing/events", nil},
		{http.MethodGet, "/api/v1/sessions/missing/ws", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := call(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		})
	}
}
