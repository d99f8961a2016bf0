// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"sync"

	"github.com/sigil-dev/graphscope/internal/config"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// SnapshotStoreFactory opens a snapshot store rooted at dataDir.
type SnapshotStoreFactory func(dataDir string) (SnapshotStore, error)

var (
	factories   = map[string]SnapshotStoreFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory SnapshotStoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends returns the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	return out
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *config.StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewSnapshotStore opens the configured backend under dataDir.
func NewSnapshotStore(cfg *config.StorageConfig, dataDir string) (SnapshotStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(dataDir)
}
