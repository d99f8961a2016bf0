// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// task is a unit of work submitted to a loop.
type task struct {
	fn     func(context.Context) error
	ctx    context.Context
	result chan<- error
}

// loop serialises every access to one graph's state. Tasks run one at a
// time in FIFO order on a single goroutine, so graph state needs no locks.
// Tasks must never block on I/O and must never submit to their own loop.
type loop struct {
	graphID string
	logger  *slog.Logger
	queue   chan task
	done    chan struct{}
	closing chan struct{}

	once sync.Once
}

func newLoop(graphID string, logger *slog.Logger) *loop {
	l := &loop{
		graphID: graphID,
		logger:  logger,
		queue:   make(chan task, 256),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)
	for {
		select {
		case t := <-l.queue:
			l.execute(t)
		case <-l.closing:
			for {
				select {
				case t := <-l.queue:
					l.execute(t)
				default:
					return
				}
			}
		}
	}
}

func (l *loop) execute(t task) {
	if err := t.ctx.Err(); err != nil {
		t.result <- err
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("graph loop panic recovered",
					"graph_id", l.graphID,
					"panic", r,
					"stack", string(debug.Stack()))
				err = sigilerr.Errorf(sigilerr.CodeGraphLoopFailure, "graph task panic: %v", r)
			}
		}()
		err = t.fn(t.ctx)
	}()

	t.result <- err
}

// submit runs fn on the loop and blocks until it returns. If ctx is done
// before fn starts, fn is skipped and ctx.Err() is returned.
func (l *loop) submit(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-l.closing:
		return sigilerr.New(sigilerr.CodeGraphLoopClosed, "graph is closed", sigilerr.Field("graph_id", l.graphID))
	default:
	}

	result := make(chan error, 1)
	t := task{fn: fn, ctx: ctx, result: result}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closing:
		return sigilerr.New(sigilerr.CodeGraphLoopClosed, "graph is closed", sigilerr.Field("graph_id", l.graphID))
	case l.queue <- t:
	}

	// A task enqueued before the loop drains always runs. One that lands
	// after the drain never will, so the loop exiting ends the wait too.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return sigilerr.New(sigilerr.CodeGraphLoopClosed, "graph is closed", sigilerr.Field("graph_id", l.graphID))
		}
	}
}

// close stops accepting work, drains what is queued and waits for the
// loop goroutine to exit. Safe to call more than once.
func (l *loop) close() {
	l.once.Do(func() {
		close(l.closing)
		<-l.done
	})
}
