// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package notify carries progress, loading and failure events from the
// query and graph layers to whoever is listening. Publishing never blocks
// and never depends on a subscriber being present.
package notify

import (
	"sync"
	"time"
)

// Kind classifies an Event.
type Kind string

const (
	KindProgress Kind = "progress"
	KindLoading  Kind = "loading"
	KindError    Kind = "error"
	KindInfo     Kind = "info"
	KindView     Kind = "view"
)

// Loading states reported while an expansion is running.
const (
	StateRelated     = "related"
	StateRelations   = "relations"
	StateStabilizing = "stabilizing"
	StateProperties  = "properties"
	StateIdle        = "idle"
)

// Event is a single notification.
type Event struct {
	Kind     Kind      `json:"kind"`
	State    string    `json:"state,omitempty"`
	Progress int       `json:"progress,omitempty"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	URI      string    `json:"uri,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier receives events.
type Notifier interface {
	Notify(Event)
}

// Func adapts a function to Notifier.
type Func func(Event)

func (f Func) Notify(e Event) { f(e) }

// Nop discards every event.
var Nop Notifier = Func(func(Event) {})

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

// Failure builds an error event.
func Failure(msg string, err error) Event {
	e := Event{Kind: KindError, Message: msg, At: time.Now()}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Loading builds a loading-state event.
func Loading(state string, progress int) Event {
	return Event{Kind: KindLoading, State: state, Progress: progress, At: time.Now()}
}

// Hub is a Notifier with cancellable subscriptions. Slow subscribers lose
// events rather than stalling the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
}

// NewHub returns a Hub whose subscriber channels buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Notify publishes e to every subscriber without blocking.
func (h *Hub) Notify(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later Subscribe calls get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
