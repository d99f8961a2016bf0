// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package view

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/graph"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Controller receives interactions reported by the render engine.
type Controller interface {
	UpdateNode(ctx context.Context, id string, position graph.Position) error
	ToggleNodeLock(ctx context.Context, id string, position *graph.Position) (graph.Node, error)
}

// ClientMessage is sent by the render engine.
//
//	{"type":"position","id":"…","x":1,"y":2}  a node was dragged
//	{"type":"lock","id":"…","x":1,"y":2}      a node was pinned or unpinned
type ClientMessage struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	Mirror     *Mirror
	Controller Controller
	Config     config.Source
	Logger     *slog.Logger
}

// Bridge serves one graph's view over websockets.
type Bridge struct {
	mirror     *Mirror
	controller Controller
	cfg        config.Source
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewBridge creates a Bridge.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Mirror == nil || opts.Controller == nil || opts.Config == nil {
		return nil, sigilerr.New(sigilerr.CodeViewRequestInvalid, "view bridge requires a mirror, controller and config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		mirror:     opts.Mirror,
		controller: opts.Controller,
		cfg:        opts.Config,
		logger:     logger,
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
		CheckOrigin:     b.checkOrigin,
	}
	return b, nil
}

// checkOrigin accepts same-host requests and the configured CORS origins.
func (b *Bridge) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := b.cfg.Current().Networking.CORSOrigins
	if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// ServeHTTP upgrades the request and streams the view until either side
// closes. The first message is always a reset carrying the full state and
// the render options.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	state, patches, cancel := b.mirror.Subscribe()
	opts := OptionsFrom(b.cfg.Current())
	reset := Patch{Seq: state.Seq, Op: OpReset, Nodes: state.Nodes, Edges: state.Edges, Options: &opts}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.writePump(conn, reset, patches)
	}()

	b.readPump(r.Context(), conn)
	cancel()
	<-done
}

func (b *Bridge) writePump(conn *websocket.Conn, reset Patch, patches <-chan Patch) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	if err := b.write(conn, reset); err != nil {
		return
	}
	for {
		select {
		case p, ok := <-patches:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "view subscriber fell behind"))
				return
			}
			if err := b.write(conn, p); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *Bridge) write(conn *websocket.Conn, p Patch) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(p); err != nil {
		b.logger.Debug("websocket write failed", "op", p.Op, "error", err)
		return sigilerr.Wrap(err, sigilerr.CodeViewSendFailure, "writing view patch")
	}
	return nil
}

func (b *Bridge) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Debug("ignoring malformed view message", "error", err)
			continue
		}
		if err := b.Handle(ctx, msg); err != nil {
			b.logger.Debug("view message rejected", "type", msg.Type, "error", err)
		}
	}
}

// Handle applies one render engine message.
func (b *Bridge) Handle(ctx context.Context, msg ClientMessage) error {
	pos := graph.Position{X: msg.X, Y: msg.Y}
	switch msg.Type {
	case "position":
		b.mirror.SetPosition(msg.ID, pos)
		return b.controller.UpdateNode(ctx, msg.ID, pos)
	case "lock":
		b.mirror.SetPosition(msg.ID, pos)
		_, err := b.controller.ToggleNodeLock(ctx, msg.ID, &pos)
		return err
	default:
		return sigilerr.New(sigilerr.CodeViewRequestInvalid, "unknown view message type", sigilerr.Field("type", msg.Type))
	}
}
