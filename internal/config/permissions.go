// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// WarnExposedToken logs a warning when the config file at path stores a
// plain-text endpoint.auth_token and is readable by group or others. Token
// values given as keyring:// references are never flagged.
func WarnExposedToken(path string, cfg *Config) {
	if path == "" || cfg == nil {
		return
	}
	token := cfg.Endpoint.AuthToken
	if token == "" || strings.HasPrefix(token, "keyring://") {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}

	const groupRead fs.FileMode = 0o040
	const otherRead fs.FileMode = 0o004

	if mode := info.Mode(); mode.Perm()&(groupRead|otherRead) != 0 {
		slog.Warn(
			"config file holds a plain-text endpoint token and has insecure permissions",
			"path", path,
			"mode", mode,
			"recommended", "0600 or a keyring:// reference",
		)
	}
}
