// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

const (
	cleanupInterval = 5 * time.Minute
	staleThreshold  = 10 * time.Minute
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxStreams caps concurrent event and view streams per IP. Zero means unlimited.
	MaxStreams int
	// MaxVisitors is the maximum number of unique IPs tracked concurrently.
	// Zero applies the default of 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return sigilerr.Errorf(sigilerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return sigilerr.Errorf(sigilerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)", c.Burst, c.RequestsPerSecond)
	}
	if c.MaxStreams < 0 {
		return sigilerr.Errorf(sigilerr.CodeServerConfigInvalid,
			"rate limit max streams must not be negative (got %d)", c.MaxStreams)
	}
	if c.MaxVisitors < 0 {
		return sigilerr.Errorf(sigilerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitorEntry struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
	streams    int
}

// rateLimiter is a per-IP token bucket plus a per-IP stream counter.
type rateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitorEntry
}

func newRateLimiter(cfg RateLimitConfig, done <-chan struct{}) *rateLimiter {
	l := &rateLimiter{cfg: cfg, now: time.Now, visitors: make(map[string]*visitorEntry)}
	if cfg.RequestsPerSecond > 0 || cfg.MaxStreams > 0 {
		go l.cleanupLoop(done)
	}
	return l
}

func (l *rateLimiter) cleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-done:
			return
		}
	}
}

// cleanup drops stale idle visitors, then evicts the least recently seen
// idle ones while the map is over its cap.
func (l *rateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if v.streams == 0 && now.Sub(v.lastSeen) > staleThreshold {
			delete(l.visitors, ip)
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
	}

	if l.cfg.MaxVisitors <= 0 || len(entries) <= l.cfg.MaxVisitors {
		return
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
	evicted := 0
	for _, e := range entries {
		if len(l.visitors) <= l.cfg.MaxVisitors {
			break
		}
		if l.visitors[e.ip].streams > 0 {
			continue
		}
		delete(l.visitors, e.ip)
		evicted++
	}
	slog.Warn("rate limiter visitor map cap enforced",
		"evicted", evicted, "max_visitors", l.cfg.MaxVisitors, "remaining", len(l.visitors))
}

func (l *rateLimiter) visitorLocked(ip string) *visitorEntry {
	v, ok := l.visitors[ip]
	if !ok {
		now := l.now()
		v = &visitorEntry{tokens: float64(l.cfg.Burst), lastSeen: now, lastRefill: now}
		l.visitors[ip] = v
	}
	return v
}

// allow takes one token from ip's bucket.
func (l *rateLimiter) allow(ip string) bool {
	if l.cfg.RequestsPerSecond <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.visitorLocked(ip)
	now := l.now()
	v.lastSeen = now
	v.tokens = min(v.tokens+now.Sub(v.lastRefill).Seconds()*l.cfg.RequestsPerSecond, float64(l.cfg.Burst))
	v.lastRefill = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// acquireStream reserves a stream slot for ip. The caller releases it.
func (l *rateLimiter) acquireStream(ip string) bool {
	if l.cfg.MaxStreams <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.visitorLocked(ip)
	v.lastSeen = l.now()
	if v.streams >= l.cfg.MaxStreams {
		return false
	}
	v.streams++
	return true
}

func (l *rateLimiter) releaseStream(ip string) {
	if l.cfg.MaxStreams <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.visitors[ip]; ok {
		v.streams = max(v.streams-1, 0)
		v.lastSeen = l.now()
	}
}

// clientIP strips the port from RemoteAddr so clients are limited by IP,
// not by connection.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	if _, err := w.Write([]byte(`{"error":"` + msg + `"}`)); err != nil {
		slog.Warn("failed to write rate limit response", "error", err)
	}
}

// middleware enforces the request rate limit.
func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	if l.cfg.RequestsPerSecond <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			writeTooManyRequests(w, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// streams wraps a long-lived handler with the per-IP stream cap.
func (l *rateLimiter) streams(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.acquireStream(ip) {
			slog.Warn("stream limit exceeded", "ip", ip, "path", r.URL.Path)
			writeTooManyRequests(w, "too many open streams")
			return
		}
		defer l.releaseStream(ip)
		next(w, r)
	}
}

// visitorCount reports how many IPs are tracked.
func (l *rateLimiter) visitorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
