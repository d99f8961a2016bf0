// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sparql

import "time"

// NewLimiterForTest exposes the dispatch limiter with an injectable clock.
func NewLimiterForTest(now func() time.Time) func(time.Duration) time.Duration {
	l := &limiter{now: now}
	return l.reserve
}

// EndpointHealthy exposes the breaker success predicate.
var EndpointHealthy = endpointHealthy
