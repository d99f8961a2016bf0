// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/graphscope/internal/session"
	"github.com/sigil-dev/graphscope/internal/store"
)

func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "save-snapshot",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{id}/snapshots",
		Summary:       "Save the session graph",
		Tags:          []string{"snapshots"},
		DefaultStatus: http.StatusCreated,
	}, s.handleSaveSnapshot)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots",
		Summary:     "List saved snapshots, newest first",
		Tags:        []string{"snapshots"},
	}, s.handleListSnapshots)

	huma.Register(s.api, huma.Operation{
		OperationID:   "restore-snapshot",
		Method:        http.MethodPost,
		Path:          "/api/v1/snapshots/{id}/restore",
		Summary:       "Open a saved snapshot as a new session",
		Tags:          []string{"snapshots"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRestoreSnapshot)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-snapshot",
		Method:      http.MethodDelete,
		Path:        "/api/v1/snapshots/{id}",
		Summary:     "Delete a saved snapshot",
		Tags:        []string{"snapshots"},
	}, s.handleDeleteSnapshot)
}

// --- Request/Response types for huma ---

type saveSnapshotInput struct {
	ID   string `path:"id"`
	Body struct {
		Name string `json:"name,omitempty" maxLength:"200"`
	}
}

type snapshotInfoOutput struct {
	Body store.SnapshotInfo
}

type listSnapshotsInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"1000" default:"100"`
	Offset int `query:"offset" minimum:"0"`
}

type listSnapshotsOutput struct {
	Body struct {
		Snapshots []store.SnapshotInfo `json:"snapshots"`
	}
}

type snapshotIDInput struct {
	ID string `path:"id" doc:"Snapshot ID"`
}

type deleteSnapshotOutput struct {
	Body struct {
		Status string `json:"status" example:"deleted"`
	}
}

// --- Handlers ---

func (s *Server) handleSaveSnapshot(ctx context.Context, input *saveSnapshotInput) (*snapshotInfoOutput, error) {
	if s.svc.Snapshots == nil {
		return nil, huma.Error503ServiceUnavailable("snapshot store not configured")
	}
	sess, err := s.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, s.apiError("finding session", err)
	}
	snap, err := sess.Graph.Snapshot(ctx)
	if err != nil {
		return nil, s.apiError("saving snapshot", err)
	}
	name := input.Body.Name
	if name == "" {
		name = sess.Name
	}
	rec := &store.Record{
		SnapshotInfo: store.SnapshotInfo{Name: name, Root: sess.Root},
		Snapshot:     snap,
	}
	if err := s.svc.Snapshots.Save(ctx, rec); err != nil {
		return nil, s.apiError("saving snapshot", err)
	}
	s.logger.Info("snapshot saved", "session", sess.ID, "snapshot", rec.ID, "nodes", rec.NodeCount)
	return &snapshotInfoOutput{Body: rec.SnapshotInfo}, nil
}

func (s *Server) handleListSnapshots(ctx context.Context, input *listSnapshotsInput) (*listSnapshotsOutput, error) {
	if s.svc.Snapshots == nil {
		return nil, huma.Error503ServiceUnavailable("snapshot store not configured")
	}
	infos, err := s.svc.Snapshots.List(ctx, store.ListOpts{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, s.apiError("listing snapshots", err)
	}
	out := &listSnapshotsOutput{}
	out.Body.Snapshots = infos
	return out, nil
}

func (s *Server) handleRestoreSnapshot(ctx context.Context, input *snapshotIDInput) (*sessionOutput, error) {
	if s.svc.Snapshots == nil {
		return nil, huma.Error503ServiceUnavailable("snapshot store not configured")
	}
	rec, err := s.svc.Snapshots.Get(ctx, input.ID)
	if err != nil {
		return nil, s.apiError("loading snapshot", err)
	}
	sess, err := s.svc.Sessions.Create(ctx, session.CreateOptions{Name: rec.Name, Snapshot: &rec.Snapshot})
	if err != nil {
		return nil, s.apiError("restoring snapshot", err)
	}
	summary, err := s.summarize(ctx, sess)
	if err != nil {
		return nil, s.apiError("restoring snapshot", err)
	}
	return &sessionOutput{Body: summary}, nil
}

func (s *Server) handleDeleteSnapshot(ctx context.Context, input *snapshotIDInput) (*deleteSnapshotOutput, error) {
	if s.svc.Snapshots == nil {
		return nil, huma.Error503ServiceUnavailable("snapshot store not configured")
	}
	if err := s.svc.Snapshots.Delete(ctx, input.ID); err != nil {
		return nil, s.apiError("deleting snapshot", err)
	}
	out := &deleteSnapshotOutput{}
	out.Body.Status = "deleted"
	return out, nil
}
