// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package store persists explored graphs as named snapshots.
package store

import (
	"context"
	"time"

	"github.com/sigil-dev/graphscope/internal/graph"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// SnapshotInfo describes a saved snapshot without its contents.
type SnapshotInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Root      string    `json:"root,omitempty" yaml:"root,omitempty"`
	NodeCount int       `json:"node_count" yaml:"node_count"`
	EdgeCount int       `json:"edge_count" yaml:"edge_count"`
	Checksum  string    `json:"checksum" yaml:"checksum"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Record is a snapshot together with its metadata.
type Record struct {
	SnapshotInfo
	Snapshot graph.Snapshot `json:"snapshot"`
}

// ListOpts pages through List results. A zero Limit means no limit.
type ListOpts struct {
	Limit  int
	Offset int
}

// SnapshotStore saves and loads graph snapshots.
type SnapshotStore interface {
	// Save stores rec, assigning an ID and creation time when unset, and
	// fills in the counts and checksum. Saving an existing ID replaces it.
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns snapshots newest first.
	List(ctx context.Context, opts ListOpts) ([]SnapshotInfo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Prepare validates rec and fills in the derived metadata. Backends call it
// at the start of Save.
func Prepare(rec *Record, newID func() string, now time.Time) error {
	if rec == nil {
		return sigilerr.New(sigilerr.CodeStoreSnapshotInvalid, "snapshot record is nil")
	}
	if err := rec.Snapshot.Validate(); err != nil {
		return sigilerr.Wrap(err, sigilerr.CodeStoreSnapshotInvalid, "invalid snapshot")
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	rec.NodeCount = len(rec.Snapshot.Nodes)
	rec.EdgeCount = len(rec.Snapshot.Edges)

	sum, err := Checksum(rec.Snapshot)
	if err != nil {
		return err
	}
	rec.Checksum = sum
	return nil
}
