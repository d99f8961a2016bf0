// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/store"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// Compile-time interface check.
var _ store.SnapshotStore = (*SnapshotStore)(nil)

// nodePredicate marks the triple that carries a node's state. Edge triples
// use the edge's own predicate URI.
const nodePredicate = "urn:graphscope:node"

// SnapshotStore implements store.SnapshotStore backed by SQLite. Snapshot
// metadata lives in the snapshots table; nodes and edges are rows in a
// triples table keyed by snapshot.
type SnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSnapshotStore opens (or creates) a SQLite database at dbPath.
func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrateSnapshots(db); err != nil {
		_ = db.Close()
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "migrating snapshot tables: %w", err)
	}

	return &SnapshotStore{db: db, logger: slog.Default(), now: time.Now}, nil
}

func migrateSnapshots(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS snapshots (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	root          TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL,
	node_count    INTEGER NOT NULL,
	edge_count    INTEGER NOT NULL,
	filters       TEXT NOT NULL DEFAULT '[]',
	history       TEXT NOT NULL DEFAULT '[]',
	history_index INTEGER NOT NULL DEFAULT 0,
	created       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS triples (
	snapshot  TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	subject   TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object    TEXT NOT NULL,
	ord       INTEGER NOT NULL,
	metadata  TEXT NOT NULL,
	UNIQUE(snapshot, subject, predicate, object)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created);
CREATE INDEX IF NOT EXISTS idx_spo ON triples(snapshot, subject, predicate, object);
CREATE INDEX IF NOT EXISTS idx_pos ON triples(snapshot, predicate, object, subject);
CREATE INDEX IF NOT EXISTS idx_ord ON triples(snapshot, ord);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save stores rec, replacing any snapshot with the same ID.
func (s *SnapshotStore) Save(ctx context.Context, rec *store.Record) error {
	if err := store.Prepare(rec, uuid.NewString, s.now()); err != nil {
		return err
	}

	filters, err := json.Marshal(orEmpty(rec.Snapshot.Filters))
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "marshalling filters: %w", err)
	}
	history, err := json.Marshal(orEmpty(rec.Snapshot.History))
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "marshalling history: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `INSERT INTO snapshots (id, name, root, checksum, node_count, edge_count, filters, history, history_index, created)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	root = excluded.root,
	checksum = excluded.checksum,
	node_count = excluded.node_count,
	edge_count = excluded.edge_count,
	filters = excluded.filters,
	history = excluded.history,
	history_index = excluded.history_index,
	created = excluded.created`

	if _, err := tx.ExecContext(ctx, upsert,
		rec.ID, rec.Name, rec.Root, rec.Checksum, rec.NodeCount, rec.EdgeCount,
		string(filters), string(history), rec.Snapshot.HistoryIndex, formatTime(rec.CreatedAt),
	); err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "putting snapshot %s: %w", rec.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM triples WHERE snapshot = ?`, rec.ID); err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "clearing snapshot triples %s: %w", rec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO triples (snapshot, subject, predicate, object, ord, metadata) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "preparing triple insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	ord := 0
	for _, n := range rec.Snapshot.Nodes {
		meta, err := json.Marshal(n)
		if err != nil {
			return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "marshalling node %s: %w", n.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, n.ID, nodePredicate, string(n.Kind), ord, string(meta)); err != nil {
			return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "putting node triple %s: %w", n.ID, err)
		}
		ord++
	}
	for _, e := range rec.Snapshot.Edges {
		meta, err := json.Marshal(e)
		if err != nil {
			return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "marshalling edge %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, e.From, e.Property, e.To, ord, string(meta)); err != nil {
			return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "putting edge triple %s: %w", e.ID, err)
		}
		ord++
	}

	if err := tx.Commit(); err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "committing snapshot %s: %w", rec.ID, err)
	}
	s.logger.Debug("snapshot saved", "snapshot_id", rec.ID, "nodes", rec.NodeCount, "edges", rec.EdgeCount)
	return nil
}

// Get loads the snapshot with id.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*store.Record, error) {
	const q = `SELECT id, name, root, checksum, node_count, edge_count, filters, history, history_index, created
FROM snapshots WHERE id = ?`

	var (
		rec              store.Record
		filters, history string
		created          string
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&rec.ID, &rec.Name, &rec.Root, &rec.Checksum, &rec.NodeCount, &rec.EdgeCount,
		&filters, &history, &rec.Snapshot.HistoryIndex, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sigilerr.New(sigilerr.CodeStoreSnapshotNotFound, "snapshot not found", sigilerr.Field("snapshot_id", id))
	}
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "querying snapshot %s: %w", id, err)
	}
	rec.CreatedAt = parseTime(created)

	if err := json.Unmarshal([]byte(filters), &rec.Snapshot.Filters); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "decoding filters of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(history), &rec.Snapshot.History); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "decoding history of %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT predicate, metadata FROM triples WHERE snapshot = ? ORDER BY ord`, id)
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "querying triples of %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var predicate, meta string
		if err := rows.Scan(&predicate, &meta); err != nil {
			return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "scanning triple: %w", err)
		}
		if predicate == nodePredicate {
			var n graph.Node
			if err := json.Unmarshal([]byte(meta), &n); err != nil {
				return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "decoding node of %s: %w", id, err)
			}
			rec.Snapshot.Nodes = append(rec.Snapshot.Nodes, n)
			continue
		}
		var e graph.Edge
		if err := json.Unmarshal([]byte(meta), &e); err != nil {
			return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "decoding edge of %s: %w", id, err)
		}
		rec.Snapshot.Edges = append(rec.Snapshot.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "iterating triples of %s: %w", id, err)
	}
	return &rec, nil
}

// List returns snapshot metadata, newest first.
func (s *SnapshotStore) List(ctx context.Context, opts store.ListOpts) ([]store.SnapshotInfo, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	const q = `SELECT id, name, root, checksum, node_count, edge_count, created
FROM snapshots ORDER BY created DESC, id LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "listing snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []store.SnapshotInfo{}
	for rows.Next() {
		var (
			info    store.SnapshotInfo
			created string
		)
		if err := rows.Scan(&info.ID, &info.Name, &info.Root, &info.Checksum, &info.NodeCount, &info.EdgeCount, &created); err != nil {
			return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "scanning snapshot: %w", err)
		}
		info.CreatedAt = parseTime(created)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "iterating snapshots: %w", err)
	}
	return out, nil
}

// Delete removes the snapshot with id and its triples.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "deleting snapshot %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "checking rows for snapshot %s: %w", id, err)
	}
	if n == 0 {
		return sigilerr.New(sigilerr.CodeStoreSnapshotNotFound, "snapshot not found", sigilerr.Field("snapshot_id", id))
	}
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
