// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/sigil-dev/graphscope/internal/notify"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// heartbeatInterval keeps idle event streams open through proxies.
var heartbeatInterval = 25 * time.Second

func (s *Server) registerStreamRoutes() {
	s.router.Get("/api/v1/sessions/{id}/events", s.limiter.streams(s.handleEvents))
	s.router.Get("/api/v1/sessions/{id}/ws", s.limiter.streams(s.handleViewSocket))

	// Both handlers need the raw ResponseWriter, so the chi routes above
	// serve them and the OpenAPI entries are added by hand.
	pathParam := []*huma.Param{{
		Name:     "id",
		In:       "path",
		Required: true,
		Schema:   &huma.Schema{Type: "string"},
	}}
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "session-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/events",
		Summary:     "Stream session notifications via SSE",
		Description: "Progress, loading, error and info events. Each SSE event is named after its kind.",
		Tags:        []string{"streams"},
		Parameters:  pathParam,
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{Type: "string", Description: "Server-sent event stream"},
					},
				},
			},
			"404": {Description: "Session not found"},
			"429": {Description: "Too many open streams"},
		},
	})
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "session-view-socket",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/ws",
		Summary:     "Synchronise the rendered view over a websocket",
		Description: "The server sends a reset patch followed by incremental patches; the client sends drag, select, stabilized and expand messages.",
		Tags:        []string{"streams"},
		Parameters:  pathParam,
		Responses: map[string]*huma.Response{
			"101": {Description: "Switching protocols"},
			"404": {Description: "Session not found"},
			"429": {Description: "Too many open streams"},
		},
	})
}

func (s *Server) writeStreamError(w http.ResponseWriter, err error) {
	status := sigilerr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	msg, _ := json.Marshal(map[string]string{"error": err.Error()})
	if _, werr := w.Write(msg); werr != nil {
		s.logger.Warn("writing stream error", "error", werr)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStreamError(w, err)
		return
	}

	events, cancel := sess.Hub.Subscribe()
	defer cancel()

	rc := http.NewResponseController(w)
	// Event streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clearing write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flush := func() {
		// httptest.ResponseRecorder and some wrappers cannot flush.
		_ = rc.Flush()
	}
	flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flush()
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				s.logger.Debug("event stream closed", "session_id", sess.ID, "error", err)
				return
			}
			flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e notify.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return err
}

func (s *Server) handleViewSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStreamError(w, err)
		return
	}
	sess.Bridge.ServeHTTP(w, r)
}
