// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package session owns the live graphs of a process. Each session pairs a
// graph with its render mirror, websocket bridge and notification hub, and
// every session shares one query client so the endpoint rate limit stays
// global.
package session

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/notify"
	"github.com/sigil-dev/graphscope/internal/view"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// Session is one live exploration.
type Session struct {
	ID        string
	Name      string
	Root      string
	CreatedAt time.Time

	Graph  *graph.Graph
	Mirror *view.Mirror
	Hub    *notify.Hub
	Bridge *view.Bridge

	seq uint64
}

func (s *Session) close() {
	s.Graph.Close()
	s.Hub.Close()
}

// CreateOptions describes a new session.
type CreateOptions struct {
	Name string
	// Root is loaded and revealed when set.
	Root string
	// Snapshot is restored when set, before Root is loaded.
	Snapshot *graph.Snapshot
}

// Options configures a Manager.
type Options struct {
	Config    config.Source
	Resolver  graph.Resolver
	Relations graph.RelationFetcher
	Logger    *slog.Logger
}

// Manager creates, tracks and closes sessions.
type Manager struct {
	cfg       config.Source
	resolver  graph.Resolver
	relations graph.RelationFetcher
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	seq      uint64
}

// NewManager returns an empty Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Config == nil || opts.Resolver == nil || opts.Relations == nil {
		return nil, sigilerr.New(sigilerr.CodeSessionCreateFailure, "session manager requires config, resolver and relation fetcher")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       opts.Config,
		resolver:  opts.Resolver,
		relations: opts.Relations,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}, nil
}

// Create starts a session. A failed restore closes the half-built session
// and returns the error; a root that cannot be resolved still yields a
// session holding the root under its own URI.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	id := uuid.New().String()
	mirror := view.NewMirror(0)
	hub := notify.NewHub(64)

	g, err := graph.New(graph.Options{
		ID:        id,
		Config:    m.cfg,
		Resolver:  m.resolver,
		Relations: m.relations,
		Renderer:  mirror,
		Notifier:  hub,
		Logger:    m.logger,
	})
	if err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeSessionCreateFailure, "creating graph", sigilerr.FieldSessionID(id))
	}
	bridge, err := view.NewBridge(view.BridgeOptions{Mirror: mirror, Controller: g, Config: m.cfg, Logger: m.logger})
	if err != nil {
		g.Close()
		return nil, sigilerr.Wrap(err, sigilerr.CodeSessionCreateFailure, "creating view bridge", sigilerr.FieldSessionID(id))
	}

	s := &Session{
		ID:        id,
		Name:      strings.TrimSpace(opts.Name),
		Root:      opts.Root,
		CreatedAt: time.Now().UTC(),
		Graph:     g,
		Mirror:    mirror,
		Hub:       hub,
		Bridge:    bridge,
	}

	if opts.Snapshot != nil {
		if err := g.Restore(ctx, *opts.Snapshot); err != nil {
			s.close()
			return nil, err
		}
	}
	if opts.Root != "" {
		if _, err := g.LoadNode(ctx, opts.Root, true); err != nil {
			s.close()
			return nil, err
		}
	}

	m.mu.Lock()
	m.seq++
	s.seq = m.seq
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id, "root", opts.Root)
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sigilerr.New(sigilerr.CodeSessionNotFound, "session not found", sigilerr.FieldSessionID(id))
	}
	return s, nil
}

// List returns every session, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops a session and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return sigilerr.New(sigilerr.CodeSessionNotFound, "session not found", sigilerr.FieldSessionID(id))
	}
	s.close()
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// CloseAll stops every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Go(s.close)
	}
	wg.Wait()
}
