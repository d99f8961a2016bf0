// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/graphscope/internal/store"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// DatabaseFile is the snapshot database name inside the data directory.
const DatabaseFile = "snapshots.db"

func init() {
	store.RegisterBackend("sqlite", newSnapshotStore)
}

func newSnapshotStore(dataDir string) (store.SnapshotStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreDatabaseFailure, "creating data dir: %w", err)
	}
	return NewSnapshotStore(filepath.Join(dataDir, DatabaseFile))
}
