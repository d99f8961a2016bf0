// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package health

import "time"

// Metrics exposes the current health state of a SPARQL endpoint for
// monitoring and operator visibility. All fields are point-in-time snapshots
// safe to serialize to JSON.
type Metrics struct {
	Endpoint         string     `json:"endpoint"`
	CompletedQueries int64      `json:"completed_queries"`
	FailureCount     int64      `json:"failure_count"`
	Pending          int64      `json:"pending"`
	LastFailureAt    *time.Time `json:"last_failure_at,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	CooldownUntil    *time.Time `json:"cooldown_until,omitempty"`
	Breaker          string     `json:"breaker"`
	Available        bool       `json:"available"`
}
