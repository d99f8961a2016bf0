// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import "log/slog"

// WarnExposedToken is a no-op on Windows, which uses ACLs rather than mode bits.
func WarnExposedToken(path string, cfg *Config) {
	if path != "" && cfg != nil && cfg.Endpoint.AuthToken != "" {
		slog.Debug("config permission check not implemented on Windows", "path", path)
	}
}
