// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sparql

import (
	"sync"
	"time"
)

// limiter hands out dispatch slots spaced at least one interval apart.
// Slots are granted in reservation order, so waiters are released FIFO and
// the spacing holds across every caller of the client.
type limiter struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newLimiter() *limiter {
	return &limiter{now: time.Now}
}

// reserve claims the next free slot and returns how long to wait for it.
// The interval is passed per call so a reloaded rate limit applies to the
// next reservation.
func (l *limiter) reserve(interval time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	slot := now
	if !l.last.IsZero() {
		if next := l.last.Add(interval); next.After(slot) {
			slot = next
		}
	}
	l.last = slot
	return slot.Sub(now)
}
